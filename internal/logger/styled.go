package logger

import (
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"
	"github.com/zaxtyson/spidercrawl/internal/core/domain"
	"github.com/zaxtyson/spidercrawl/theme"
)

// StyledLogger wraps a slog.Logger with crawl-domain helpers so call
// sites don't hand-format proxy addresses, identifiers, and counters on
// every line.
type StyledLogger struct {
	logger *slog.Logger
	theme  *theme.Theme
}

// NewStyledLogger binds a logger to a theme.
func NewStyledLogger(logger *slog.Logger, theme *theme.Theme) *StyledLogger {
	return &StyledLogger{
		logger: logger,
		theme:  theme,
	}
}

// NewWithTheme builds the slog.Logger from cfg and wraps it in one call.
func NewWithTheme(cfg *Config) (*slog.Logger, *StyledLogger, func(), error) {
	logger, cleanup, err := New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return logger, NewStyledLogger(logger, theme.GetTheme(cfg.Theme)), cleanup, nil
}

func (sl *StyledLogger) Debug(msg string, args ...any) {
	sl.logger.Debug(msg, args...)
}

func (sl *StyledLogger) Info(msg string, args ...any) {
	sl.logger.Info(msg, args...)
}

func (sl *StyledLogger) Warn(msg string, args ...any) {
	sl.logger.Warn(msg, args...)
}

func (sl *StyledLogger) Error(msg string, args ...any) {
	sl.logger.Error(msg, args...)
}

// suffixed appends one theme-styled token to msg.
func suffixed(msg string, style *pterm.Style, v any) string {
	return fmt.Sprintf("%s %s", msg, style.Sprint(v))
}

// InfoWithCount logs msg followed by a styled parenthesised count.
func (sl *StyledLogger) InfoWithCount(msg string, count int, args ...any) {
	sl.logger.Info(fmt.Sprintf("%s %s", msg, sl.theme.Counts.Sprint("(", count, ")")), args...)
}

// InfoWithProxy logs msg followed by a styled host:port proxy address.
func (sl *StyledLogger) InfoWithProxy(msg string, addr string, args ...any) {
	sl.logger.Info(suffixed(msg, sl.theme.Proxy, addr), args...)
}

// WarnWithProxy is InfoWithProxy at warn level, used when a proxy is
// invalidated.
func (sl *StyledLogger) WarnWithProxy(msg string, addr string, args ...any) {
	sl.logger.Warn(suffixed(msg, sl.theme.Proxy, addr), args...)
}

func (sl *StyledLogger) ErrorWithProxy(msg string, addr string, args ...any) {
	sl.logger.Error(suffixed(msg, sl.theme.Proxy, addr), args...)
}

// InfoWithIdentifier logs msg followed by a styled crawl identifier (mid).
func (sl *StyledLogger) InfoWithIdentifier(msg string, id int64, args ...any) {
	sl.logger.Info(suffixed(msg, sl.theme.Identifier, id), args...)
}

func (sl *StyledLogger) WarnWithIdentifier(msg string, id int64, args ...any) {
	sl.logger.Warn(suffixed(msg, sl.theme.Identifier, id), args...)
}

// InfoWithNumbers substitutes styled numbers into a printf-style msg.
func (sl *StyledLogger) InfoWithNumbers(msg string, numbers ...int64) {
	styled := make([]any, len(numbers))
	for i, num := range numbers {
		styled[i] = sl.theme.Numbers.Sprint(num)
	}
	sl.logger.Info(fmt.Sprintf(msg, styled...))
}

// InfoProxyState logs msg with the proxy address coloured per its
// lifecycle state.
func (sl *StyledLogger) InfoProxyState(msg string, addr string, state domain.ProxyState, args ...any) {
	var stateColor pterm.Color
	switch state {
	case domain.ProxyAvailable:
		stateColor = sl.theme.ProxyAvailable
	case domain.ProxyCooling:
		stateColor = sl.theme.ProxyCooling
	case domain.ProxyInvalid, domain.ProxyExpired:
		stateColor = sl.theme.ProxyInvalid
	default:
		stateColor = sl.theme.Primary
	}

	sl.logger.Info(fmt.Sprintf("%s %s is %s", msg,
		sl.theme.Proxy.Sprint(addr),
		pterm.NewStyle(stateColor).Sprint(state.String())), args...)
}

// InfoPoolStats logs a one-line snapshot of proxy pool composition.
func (sl *StyledLogger) InfoPoolStats(msg string, available, cooling, invalid int, args ...any) {
	allArgs := make([]any, 0, len(args)+6)
	allArgs = append(allArgs, args...)
	allArgs = append(allArgs,
		"available", pterm.NewStyle(sl.theme.ProxyAvailable).Sprint(available),
		"cooling", pterm.NewStyle(sl.theme.ProxyCooling).Sprint(cooling),
		"invalid", pterm.NewStyle(sl.theme.ProxyInvalid).Sprint(invalid),
	)
	sl.logger.Info(msg, allArgs...)
}

// GetUnderlying exposes the wrapped slog.Logger for collaborators that
// want plain structured logging (e.g. FatalWithLogger).
func (sl *StyledLogger) GetUnderlying() *slog.Logger {
	return sl.logger
}

// With returns a StyledLogger carrying additional key-value context.
func (sl *StyledLogger) With(args ...any) *StyledLogger {
	return &StyledLogger{
		logger: sl.logger.With(args...),
		theme:  sl.theme,
	}
}
