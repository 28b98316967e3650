package util

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether stdout is attached to a TTY.
func IsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// ShouldUseColors decides whether to emit ANSI colour. Honours the
// NO_COLOR convention (https://no-color.org/) first, then the generic
// FORCE_COLOR override, then this crawler's own SPIDER_FORCE_COLORS,
// and finally falls back to TTY detection.
func ShouldUseColors() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force := os.Getenv("FORCE_COLOR"); force != "" {
		return force != "0"
	}
	if force := os.Getenv("SPIDER_FORCE_COLORS"); force != "" {
		return strings.EqualFold(force, "true")
	}
	return IsTerminal()
}
