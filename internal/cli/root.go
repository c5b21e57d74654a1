// Package cli implements the coxswain command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

const version = "0.1.0-dev"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "coxswain",
	Short: "A schedule-to-execution coordinator for agent crews",
	Long: `Coxswain turns cron schedules into supervised crew executions:

  - Cron-driven schedules stored in a single SQLite file
  - Full execution lifecycle tracking, durable and queryable
  - Background dispatch with panic containment and graceful draining
  - Real-time execution events over WebSocket
  - Prometheus metrics on /metrics

Start the server:
  coxswain serve

Inspect the database:
  coxswain db info`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./coxswain.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("coxswain")
	}

	viper.SetEnvPrefix("COXSWAIN")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			log.Debug().Str("file", viper.ConfigFileUsed()).Msg("Using config file")
		}
	}
}

// setupLogging configures zerolog based on verbosity.
func setupLogging() {
	output := zerolog.ConsoleWriter{Out: os.Stderr}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// Version returns the version string.
func Version() string {
	return fmt.Sprintf("coxswain version %s", version)
}
