package util

import (
	"fmt"
	"math/rand"
)

// GenerateSessionID produces a short, human-memorable identifier for a
// crawl run, stamped into the startup and shutdown log lines so the runs
// interleaved in one rotated log file can be told apart.
func GenerateSessionID() string {
	verbs := []string{
		"crawling", "scouting", "mapping", "tracing", "sweeping",
		"harvesting", "threading", "following", "probing", "charting",
	}
	nouns := []string{
		"orbweaver", "tarantula", "wolfspider", "jumper", "recluse",
		"huntsman", "widow", "funnelweb", "crab", "trapdoor",
	}

	verb := verbs[rand.Intn(len(verbs))]
	noun := nouns[rand.Intn(len(nouns))]
	suffix := fmt.Sprintf("%04x", rand.Intn(65536))

	return fmt.Sprintf("%s_%s_%s", verb, noun, suffix)
}
