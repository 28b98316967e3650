// Package format renders raw counters into the short human strings the
// /stats surface and the shutdown report print.
package format

import (
	"fmt"
	"time"
)

const zeroPercent = "0%"

// Bytes renders a byte count with the appropriate binary unit suffix.
func Bytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"KB", "MB", "GB", "TB", "PB"}
	return fmt.Sprintf("%.2f %s", float64(bytes)/float64(div), units[exp])
}

// Duration formats a duration in a readable way.
func Duration(d time.Duration) string {
	if d < time.Second {
		return d.String()
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// Percentage renders the proportion of a counter pair (e.g. available vs.
// total proxies) as a one-decimal percentage string.
func Percentage(value float64) string {
	if value == 0 {
		return zeroPercent
	}
	if value == 100.0 {
		return "100%"
	}
	return fmt.Sprintf("%.1f%%", value)
}

// Ratio is a convenience wrapper around Percentage for part-of-whole counts,
// returning "0%" when whole is zero rather than dividing by it.
func Ratio(part, whole int) string {
	if whole == 0 {
		return zeroPercent
	}
	return Percentage(float64(part) / float64(whole) * 100)
}
