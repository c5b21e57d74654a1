package main

import (
	"os"

	"github.com/halvard/coxswain/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
