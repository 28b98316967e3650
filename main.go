package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/zaxtyson/spidercrawl/internal/app"
	"github.com/zaxtyson/spidercrawl/internal/env"
	"github.com/zaxtyson/spidercrawl/internal/logger"
	"github.com/zaxtyson/spidercrawl/internal/util"
	"github.com/zaxtyson/spidercrawl/internal/version"
	"github.com/zaxtyson/spidercrawl/pkg/container"
	"github.com/zaxtyson/spidercrawl/pkg/format"
	"github.com/zaxtyson/spidercrawl/pkg/nerdstats"
)

func main() {
	startTime := time.Now()

	vlog := log.New(log.Writer(), "", 0)
	wantVersionOnly := len(os.Args) > 1 && os.Args[1] == "--version"
	version.PrintVersionInfo(wantVersionOnly, vlog)
	if wantVersionOnly {
		return
	}

	logInstance, styledLogger, cleanup, err := logger.NewWithTheme(buildLoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()
	slog.SetDefault(logInstance)

	if err := run(startTime, styledLogger); err != nil {
		logger.FatalWithLogger(logInstance, "Crawler exited with error", "error", err)
	}
}

func run(startTime time.Time, styledLogger *logger.StyledLogger) error {
	sessionID := util.GenerateSessionID()
	styledLogger.Info("Initialising", "version", version.Version, "pid", os.Getpid(), "session", sessionID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		styledLogger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	application, err := app.New(startTime, styledLogger)
	if err != nil {
		return fmt.Errorf("creating application: %w", err)
	}

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("starting application: %w", err)
	}

	<-ctx.Done()

	if err := application.Stop(context.Background()); err != nil {
		styledLogger.Error("Error during shutdown", "error", err)
	}

	if application.ShowNerdStats() {
		reportProcessStats(styledLogger, startTime)
	}

	styledLogger.Info("spidercrawl has shutdown", "session", sessionID)
	return nil
}

// reportProcessStats logs the end-of-run runtime snapshot. A GC runs
// first so the heap numbers describe live data, not garbage awaiting
// collection.
func reportProcessStats(styled *logger.StyledLogger, startTime time.Time) {
	runtime.GC()
	stats := nerdstats.Snapshot(startTime)

	styled.Info("Heap after final GC",
		"alloc", format.Bytes(stats.HeapAlloc),
		"sys", format.Bytes(stats.HeapSys),
		"inuse", format.Bytes(stats.HeapInuse),
		"released", format.Bytes(stats.HeapReleased),
		"stack_inuse", format.Bytes(stats.StackInuse),
		"pressure", stats.GetMemoryPressure(),
	)

	styled.Info("Allocation totals",
		"allocated", format.Bytes(stats.TotalAlloc),
		"mallocs", stats.Mallocs,
		"frees", stats.Frees,
		"net_objects", util.SafeInt64Diff(stats.Mallocs, stats.Frees),
	)

	if stats.NumGC > 0 {
		styled.Info("Garbage collection",
			"cycles", stats.NumGC,
			"last", stats.LastGC.Format(time.RFC3339),
			"total_pause", format.Duration(stats.TotalGCTime),
			"avg_pause", nerdstats.CalculateAverageGCPause(stats),
			"cpu_fraction", fmt.Sprintf("%.4f%%", stats.GCCPUFraction*100),
		)
	}

	styled.Info("Scheduler",
		"goroutines", stats.NumGoroutines,
		"health", stats.GetGoroutineHealthStatus(),
		"cgo_calls", stats.NumCgoCall,
		"num_cpu", stats.NumCPU,
		"gomaxprocs", stats.GOMAXPROCS,
	)

	styled.Info("Runtime",
		"uptime", format.Duration(stats.Uptime),
		"go_version", stats.GoVersion,
	)

	if buildInfo := stats.GetBuildInfoSummary(); len(buildInfo) > 0 {
		buildArgs := make([]any, 0, len(buildInfo)*2)
		for key, value := range buildInfo {
			buildArgs = append(buildArgs, key, value)
		}
		styled.Info("Build Info", buildArgs...)
	}
}

// buildLoggerConfig assembles the logger's config from env vars. Inside
// a container, file logging and pterm's pretty rendering both default
// off (stdout already goes to the orchestrator's log collector, and
// there's rarely a real TTY); explicit env vars still win.
func buildLoggerConfig() *logger.Config {
	fileOutputDefault := true
	prettyDefault := true
	if container.IsContainerised() {
		fileOutputDefault = false
		prettyDefault = false
	}

	return &logger.Config{
		Level:      env.GetEnvOrDefault("SPIDER_LOG_LEVEL", "info"),
		FileOutput: env.GetEnvBoolOrDefault("SPIDER_FILE_OUTPUT", fileOutputDefault),
		LogDir:     env.GetEnvOrDefault("SPIDER_LOG_DIR", "./logs"),
		MaxSize:    env.GetEnvIntOrDefault("SPIDER_MAX_SIZE", 100),
		MaxBackups: env.GetEnvIntOrDefault("SPIDER_MAX_BACKUPS", 5),
		MaxAge:     env.GetEnvIntOrDefault("SPIDER_MAX_AGE", 30),
		Theme:      env.GetEnvOrDefault("SPIDER_THEME", "default"),
		PrettyLogs: env.GetEnvBoolOrDefault("SPIDER_PRETTY_LOGS", prettyDefault),
	}
}
