// Package app wires ProxyPool, HttpClient, IdPool, RecordAssembler, and
// Dispatcher into one runnable process, and exposes a small /health and
// /stats HTTP surface alongside the crawl engine: config-driven
// construction, a goroutine-served http.Server, and a
// context-cancellation-first shutdown.
package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/zaxtyson/spidercrawl/internal/adapter/assembler"
	"github.com/zaxtyson/spidercrawl/internal/adapter/httpclient"
	"github.com/zaxtyson/spidercrawl/internal/adapter/idpool"
	"github.com/zaxtyson/spidercrawl/internal/adapter/proxypool"
	"github.com/zaxtyson/spidercrawl/internal/adapter/sink"
	"github.com/zaxtyson/spidercrawl/internal/config"
	"github.com/zaxtyson/spidercrawl/internal/core/ports"
	"github.com/zaxtyson/spidercrawl/internal/dispatcher"
	"github.com/zaxtyson/spidercrawl/internal/logger"
	"github.com/zaxtyson/spidercrawl/internal/router"
	"github.com/zaxtyson/spidercrawl/pkg/format"
	"github.com/zaxtyson/spidercrawl/pkg/profiler"
)

// Application owns the full wiring for one crawl run plus its status
// HTTP surface.
type Application struct {
	startTime time.Time
	config    *config.Config
	logger    *logger.StyledLogger

	server   *http.Server
	registry *router.RouteRegistry

	proxyPool  ports.ProxyPool
	httpClient *httpclient.Client
	idPool     ports.IdPool
	sink       ports.Sink
	dispatcher *dispatcher.Dispatcher

	errCh chan error
}

// New loads configuration and constructs every component; nothing is
// started yet (that happens in Start).
func New(startTime time.Time, log *logger.StyledLogger) (*Application, error) {
	cfg, err := config.Load(nil)
	if err != nil {
		return nil, fmt.Errorf("app: loading config: %w", err)
	}

	source, target, err := buildProxySource(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("app: building proxy source: %w", err)
	}
	proxyPool := proxypool.New(source, target, cfg.ProxyPool.Enable, log)

	client := httpclient.New(httpclient.Config{
		RetryTimes:     cfg.HTTPClient.RetryTimes,
		TotalTimeout:   cfg.HTTPClient.Timeout.Total,
		ConnectTimeout: cfg.HTTPClient.Timeout.Connect,
		DNSServers:     cfg.HTTPClient.DNSServer,
	}, proxyPool, log)

	idPool := idpool.New(cfg.IdPool.SnapshotPath, cfg.IdPool.FrontierCap, cfg.IdPool.RetryInterval, log)

	recordAssembler := assembler.New(client, assembler.DefaultEndpoints(), int64(cfg.SpiderFilter.MinFollower), log)

	recordSink, err := sink.New(cfg.SpiderConfig.SavePath)
	if err != nil {
		return nil, fmt.Errorf("app: opening sink: %w", err)
	}

	d := dispatcher.New(cfg.SpiderConfig.ParallelCoTasks, idPool, recordAssembler, recordSink, log)

	registry := router.NewRouteRegistry(log)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Application{
		startTime:  startTime,
		config:     cfg,
		logger:     log,
		server:     server,
		registry:   registry,
		proxyPool:  proxyPool,
		httpClient: client,
		idPool:     idPool,
		sink:       recordSink,
		dispatcher: d,
		errCh:      make(chan error, 1),
	}, nil
}

// Start brings up the proxy pool and id pool, seeds the frontier from the
// configured seed file, then starts the worker pool and the status server.
func (a *Application) Start(ctx context.Context) error {
	go func() {
		select {
		case err := <-a.errCh:
			a.logger.Error("app: server startup error", "error", err)
		case <-ctx.Done():
			return
		}
	}()

	if a.config.Engineering.EnableProfiler {
		profiler.InitialiseProfiler(a.config.Engineering.ProfilerAddr)
	}

	a.proxyPool.Start(ctx)

	if err := a.idPool.Start(ctx); err != nil {
		return fmt.Errorf("app: starting idpool: %w", err)
	}

	seeds, err := loadSeeds(a.config.SpiderConfig.SeedPath)
	if err != nil {
		a.logger.Error("app: loading seeds", "error", err)
	} else if len(seeds) > 0 {
		a.idPool.Offer(seeds)
		a.logger.InfoWithCount("app: seeded frontier", len(seeds))
	}

	a.dispatcher.Start(ctx)

	a.startWebServer()

	a.logger.Info("app: started", "bind", a.server.Addr, "workers", a.config.SpiderConfig.ParallelCoTasks)
	return nil
}

// Stop cancels proxy maintenance, waits for the workers to exit (they stop
// once the ctx given to Start is cancelled), closes the sink, dumps the
// IdPool snapshot, then shuts the status server down last so /stats stays
// reachable for as long as possible during drain. The HTTP client's pooled
// connections are not closed here.
func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.config.Server.ShutdownTimeout)
	defer cancel()

	a.proxyPool.Stop()
	a.dispatcher.Stop()

	if err := a.sink.Close(); err != nil {
		a.logger.Error("app: closing sink", "error", err)
	}

	if err := a.idPool.Stop(); err != nil {
		a.logger.Error("app: persisting idpool snapshot", "error", err)
	}

	if err := a.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("app: http server shutdown: %w", err)
	}
	return nil
}

// ShowNerdStats reports whether the end-of-run runtime report is enabled.
func (a *Application) ShowNerdStats() bool {
	return a.config.Engineering.ShowNerdStats
}

func (a *Application) startWebServer() {
	mux := http.NewServeMux()
	a.registry.RegisterWithMethod("/health", a.healthHandler, "Liveness probe", "GET")
	a.registry.RegisterWithMethod("/stats", a.statsHandler, "IdPool/ProxyPool/HttpClient counters", "GET")
	a.registry.WireUp(mux)
	a.server.Handler = mux

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.errCh <- err
		}
	}()
}

func (a *Application) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func (a *Application) statsHandler(w http.ResponseWriter, _ *http.Request) {
	proxyStats := a.proxyPool.Stats()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"uptime":             format.Duration(time.Since(a.startTime)),
		"idpool":             a.idPool.Stats(),
		"proxy_pool":         proxyStats,
		"proxy_availability": format.Ratio(proxyStats.Available, proxyStats.Total),
		"http":               a.httpClient.Metrics(),
		"dispatcher":         a.dispatcher.Stats(),
		"events":             a.dispatcher.Events().Stats(),
	})
}

func buildProxySource(cfg *config.Config, log *logger.StyledLogger) (ports.ProxySource, int, error) {
	switch cfg.ProxyPool.Type {
	case "zhima":
		return &proxypool.ZhimaSource{API: cfg.ProxyPool.Zhima.API, Client: http.DefaultClient}, cfg.ProxyPool.Zhima.PoolSize, nil
	case "juliang":
		return &proxypool.JuliangSource{API: cfg.ProxyPool.Juliang.API, Client: http.DefaultClient}, cfg.ProxyPool.Juliang.PoolSize, nil
	case "file", "":
		return &proxypool.FileSource{Path: cfg.ProxyPool.File.Path}, 0, nil
	default:
		return nil, 0, fmt.Errorf("unrecognised proxy_pool.type %q", cfg.ProxyPool.Type)
	}
}

// loadSeeds reads newline-delimited integer identifiers from path. Missing
// file is not an error: a fresh deployment may seed purely from a restored
// IdPool snapshot.
func loadSeeds(path string) ([]int64, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	var seeds []int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			continue
		}
		seeds = append(seeds, id)
	}
	return seeds, scanner.Err()
}
