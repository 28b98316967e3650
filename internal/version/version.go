// Package version carries the build metadata stamped in at link time
// and renders the startup banner.
package version

import (
	"fmt"
	"log"
	"strings"

	"github.com/zaxtyson/spidercrawl/theme"
)

var (
	Name        = "spidercrawl"
	Authors     = "zaxtyson"
	Description = "Concurrent fetch engine for a single upstream API"
	Version     = "v0.0.1"
	Commit      = "none"
	Date        = "nowish"
	User        = "local"
)

const (
	GithubHomeText  = "github.com/zaxtyson/spidercrawl"
	GithubHomeUri   = "https://github.com/zaxtyson/spidercrawl"
	GithubLatestUri = "https://github.com/zaxtyson/spidercrawl/releases/latest"
)

// PrintVersionInfo writes the banner; extendedInfo adds the commit,
// build date, and builder lines --version shows.
func PrintVersionInfo(extendedInfo bool, vlog *log.Logger) {
	githubUri := theme.Hyperlink(GithubHomeUri, GithubHomeText)
	latestUri := theme.Hyperlink(GithubLatestUri, Version)

	var b strings.Builder

	b.WriteString(theme.ColourSplash(`
╔──────────────────────────────────────────────╗
│             _    __                          │
│   ___ ___  (_)__/ /__ ___________ __    __   │
│  (_-</ _ \/ / _  / -_) __/ __/ _ '/ |/|/ /   │
│ /___/ .__/_/\_,_/\__/_/  \__/\_,_/|__,__/    │
│    /_/                                       │` + "\n"))

	b.WriteString(theme.ColourSplash("│ "))
	b.WriteString(theme.StyleUrl(githubUri))
	b.WriteString(" ")
	b.WriteString(theme.ColourVersion(latestUri))
	b.WriteString(theme.ColourSplash("       │\n"))
	b.WriteString(theme.ColourSplash("╚──────────────────────────────────────────────╝"))

	if extendedInfo {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf(" Commit: %s\n", Commit))
		b.WriteString(fmt.Sprintf("  Built: %s\n", Date))
		b.WriteString(fmt.Sprintf("  Using: %s\n", User))
	}

	vlog.Println(b.String())
}
