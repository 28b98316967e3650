package logger

import "strings"

// stripAnsiCodes removes \x1b[...m colour escape sequences from a log
// attribute's string value, used by fastReplaceAttr so rotated log
// files stay plain text even when a value was built with pterm styling.
func stripAnsiCodes(s string) string {
	if !strings.ContainsRune(s, '\x1b') {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] == '\x1b' && i+1 < len(s) && s[i+1] == '[' {
			// Skip to the terminating letter of the CSI sequence.
			i += 2
			for i < len(s) && !isAlpha(s[i]) {
				i++
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isAlpha(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
