// Package theme centralises every colour the crawler ever prints, so a
// deployment on a light terminal (or a colour-blind operator) can swap
// the whole scheme with one config key.
package theme

import (
	"github.com/pterm/pterm"
)

// Theme is the colour scheme for log output and console rendering.
type Theme struct {
	// Log level colours
	Debug *pterm.Style
	Info  *pterm.Style
	Warn  *pterm.Style
	Error *pterm.Style
	Fatal *pterm.Style

	// Component colours
	Success   *pterm.Style
	Highlight *pterm.Style
	Muted     *pterm.Style
	Accent    *pterm.Style

	// Functional colours
	Primary   pterm.Color
	Secondary pterm.Color
	Danger    pterm.Color
	Warning   pterm.Color
	Good      pterm.Color

	// Crawler domain styling
	Proxy      *pterm.Style
	Identifier *pterm.Style
	Counts     *pterm.Style
	Numbers    *pterm.Style

	ProxyAvailable pterm.Color
	ProxyCooling   pterm.Color
	ProxyInvalid   pterm.Color
}

// palette is the handful of base colours a variant actually chooses;
// build derives the full Theme from it.
type palette struct {
	info      pterm.Color
	warn      pterm.Color
	danger    pterm.Color
	primary   pterm.Color
	secondary pterm.Color
	accent    pterm.Color
	numbers   pterm.Color
	cooling   pterm.Color
}

func (p palette) build() *Theme {
	return &Theme{
		Debug: pterm.NewStyle(pterm.FgLightBlue),
		Info:  pterm.NewStyle(p.info),
		Warn:  pterm.NewStyle(p.warn, pterm.Bold),
		Error: pterm.NewStyle(p.danger, pterm.Bold),
		Fatal: pterm.NewStyle(pterm.FgWhite, pterm.BgRed, pterm.Bold),

		Success:   pterm.NewStyle(p.info, pterm.Bold),
		Highlight: pterm.NewStyle(p.secondary, pterm.Bold),
		Muted:     pterm.NewStyle(pterm.FgGray),
		Accent:    pterm.NewStyle(p.accent),

		Primary:   p.primary,
		Secondary: p.secondary,
		Danger:    p.danger,
		Warning:   p.warn,
		Good:      p.info,

		Proxy:      pterm.NewStyle(p.secondary),
		Identifier: pterm.NewStyle(p.accent),
		Counts:     pterm.NewStyle(p.warn, pterm.Bold),
		Numbers:    pterm.NewStyle(p.numbers),

		ProxyAvailable: p.info,
		ProxyCooling:   p.cooling,
		ProxyInvalid:   p.danger,
	}
}

// Default is the scheme used when no theme is configured.
func Default() *Theme {
	return palette{
		info:      pterm.FgGreen,
		warn:      pterm.FgYellow,
		danger:    pterm.FgRed,
		primary:   pterm.FgBlue,
		secondary: pterm.FgCyan,
		accent:    pterm.FgMagenta,
		numbers:   pterm.FgLightYellow,
		cooling:   pterm.FgYellow,
	}.build()
}

// Dark brightens everything a step for dark terminal backgrounds.
func Dark() *Theme {
	return palette{
		info:      pterm.FgLightGreen,
		warn:      pterm.FgLightYellow,
		danger:    pterm.FgLightRed,
		primary:   pterm.FgLightBlue,
		secondary: pterm.FgLightCyan,
		accent:    pterm.FgLightMagenta,
		numbers:   pterm.FgLightYellow,
		cooling:   pterm.FgLightYellow,
	}.build()
}

// Light favours high-contrast colours for light backgrounds; cooling
// proxies render in the danger colour since yellow is unreadable there.
func Light() *Theme {
	t := palette{
		info:      pterm.FgGreen,
		warn:      pterm.FgRed,
		danger:    pterm.FgRed,
		primary:   pterm.FgBlue,
		secondary: pterm.FgCyan,
		accent:    pterm.FgMagenta,
		numbers:   pterm.FgBlack,
		cooling:   pterm.FgRed,
	}.build()
	t.Info = pterm.NewStyle(pterm.FgBlack)
	t.Highlight = pterm.NewStyle(pterm.FgBlue, pterm.Bold)
	return t
}

// GetTheme maps a config value to a theme, falling back to Default.
func GetTheme(name string) *Theme {
	switch name {
	case "dark":
		return Dark()
	case "light":
		return Light()
	default:
		return Default()
	}
}

// ColourSplash styles the startup banner text.
func ColourSplash(message ...any) string {
	return pterm.LightGreen(message...)
}

// ColourVersion styles version numbers in the startup banner.
func ColourVersion(message ...any) string {
	return pterm.LightYellow(message...)
}

// StyleUrl styles URLs and hyperlinks.
func StyleUrl(message ...any) string {
	return pterm.LightBlue(message...)
}

// Hyperlink wraps text in an OSC 8 terminal hyperlink.
func Hyperlink(uri string, text string) string {
	return "\x1b]8;;" + uri + "\x07" + text + "\x1b]8;;\x07" + "\x1b[0m"
}
