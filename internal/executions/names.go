package executions

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

var nameAdjectives = []string{
	"amber", "bold", "brisk", "calm", "clever", "crimson", "daring",
	"eager", "fleet", "gentle", "keen", "lucid", "mellow", "nimble",
	"quiet", "rapid", "silver", "steady", "swift", "vivid",
}

var nameNouns = []string{
	"albatross", "beacon", "current", "dolphin", "estuary", "fathom",
	"gull", "harbor", "inlet", "jetty", "keel", "lagoon", "mast",
	"narrows", "oar", "pennant", "rudder", "sextant", "tide", "wake",
}

// GenerateRunName produces a readable run name like "brisk-harbor-a3f2".
func GenerateRunName() string {
	adj := pick(nameAdjectives)
	noun := pick(nameNouns)

	suffix := make([]byte, 2)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Sprintf("%s-%s", adj, noun)
	}

	return fmt.Sprintf("%s-%s-%s", adj, noun, hex.EncodeToString(suffix))
}

func pick(list []string) string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(list))))
	if err != nil {
		return list[0]
	}
	return list[n.Int64()]
}
