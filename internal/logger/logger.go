// Package logger builds the process-wide slog.Logger: a pretty pterm
// handler or JSON handler on stdout, optionally teed into a rotating
// file, all sharing one level. The JSON and file handlers share one
// attribute-rewrite pass; the pterm handler does not use it.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/zaxtyson/spidercrawl/internal/util"
	"github.com/zaxtyson/spidercrawl/theme"
)

// Config controls where log lines go and how they are rendered.
type Config struct {
	Level      string
	LogDir     string
	Theme      string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	FileOutput bool
	PrettyLogs bool
}

const (
	DefaultLogOutputName = "spidercrawl.log"

	LogLevelDebug   = "debug"
	LogLevelInfo    = "info"
	LogLevelWarn    = "warn"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

// New assembles the configured handler chain and returns the logger
// plus a cleanup func that closes any file sink.
func New(cfg *Config) (*slog.Logger, func(), error) {
	level := parseLevel(cfg.Level)

	handlers := []slog.Handler{stdoutHandler(cfg, level)}
	cleanup := func() {}

	if cfg.FileOutput {
		fileHandler, closeFile, err := rotatingFileHandler(cfg, level)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, fileHandler)
		cleanup = closeFile
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0]), cleanup, nil
	}
	return slog.New(&teeHandler{handlers: handlers}), cleanup, nil
}

// stdoutHandler picks the console rendering: pterm when pretty logs are
// requested and the terminal can take colour, JSON otherwise (piped
// output, CI, containers).
func stdoutHandler(cfg *Config, level slog.Level) slog.Handler {
	if cfg.PrettyLogs && util.ShouldUseColors() {
		appTheme := theme.GetTheme(cfg.Theme)
		plogger := pterm.DefaultLogger.
			WithLevel(ptermLevel(level)).
			WithWriter(os.Stdout).
			WithFormatter(pterm.LogFormatterColorful).
			WithKeyStyles(map[string]pterm.Style{
				"level": *appTheme.Info,
				"msg":   *appTheme.Info,
				"time":  *appTheme.Muted,
			})
		return pterm.NewSlogHandler(plogger)
	}

	return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: fastReplaceAttr,
	})
}

// rotatingFileHandler writes JSON lines through lumberjack so long
// crawls don't fill the disk with one giant log file.
func rotatingFileHandler(cfg *Config, level slog.Level) (slog.Handler, func(), error) {
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, DefaultLogOutputName),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}

	handler := slog.NewJSONHandler(rotator, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: fastReplaceAttr,
	})
	return handler, func() { _ = rotator.Close() }, nil
}

// fastReplaceAttr normalises timestamps and strips ANSI colour escapes
// out of attribute values, so the JSON/file sinks stay machine-parseable
// even when a value was built with pterm styling.
func fastReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{
			Key:   "timestamp",
			Value: slog.StringValue(a.Value.Time().Format("2006-01-02 15:04:05")),
		}
	}

	switch a.Value.Kind() {
	case slog.KindString:
		if s := a.Value.String(); strings.ContainsRune(s, '\x1b') {
			return slog.Attr{Key: a.Key, Value: slog.StringValue(stripAnsiCodes(s))}
		}
	case slog.KindAny:
	default:
		return slog.Attr{Key: a.Key, Value: slog.StringValue(fmt.Sprintf("%v", a.Value.Any()))}
	}
	return a
}

// teeHandler fans one record out to every handler whose level admits it.
type teeHandler struct {
	handlers []slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &teeHandler{handlers: next}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &teeHandler{handlers: next}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn, LogLevelWarning:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	case LogLevelInfo:
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}

func ptermLevel(level slog.Level) pterm.LogLevel {
	switch level {
	case slog.LevelDebug:
		return pterm.LogLevelTrace
	case slog.LevelWarn:
		return pterm.LogLevelWarn
	case slog.LevelError:
		return pterm.LogLevelError
	default:
		return pterm.LogLevelInfo
	}
}
