package logger

import (
	"fmt"
	"log/slog"
	"os"
)

// Fatal logs msg at error level via the default slog logger, then exits 1.
func Fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

// Fatalf formats msg printf-style before logging it and exiting 1.
func Fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}

// FatalWithLogger logs through logger rather than the default slog logger,
// so callers holding a *StyledLogger's underlying *slog.Logger exit through
// the same sink their other log lines went to.
func FatalWithLogger(logger *slog.Logger, msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(1)
}
