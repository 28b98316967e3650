// Package nerdstats snapshots the Go runtime (heap, GC, goroutines) for
// the end-of-run report main.go logs after a crawl shuts down. See
// https://pkg.go.dev/runtime#MemStats for field-level detail.
package nerdstats

import (
	"runtime"
	"runtime/debug"
	"time"

	"github.com/zaxtyson/spidercrawl/pkg/format"
)

// NerdStats is one point-in-time runtime snapshot.
type NerdStats struct {
	// Heap and stack
	HeapAlloc    uint64
	HeapSys      uint64
	HeapInuse    uint64
	HeapReleased uint64
	StackInuse   uint64
	StackSys     uint64
	TotalAlloc   uint64 // cumulative bytes allocated over the run
	Mallocs      uint64
	Frees        uint64

	// Garbage collection
	NumGC         uint32
	LastGC        time.Time
	TotalGCTime   time.Duration
	GCCPUFraction float64

	// Scheduler
	NumGoroutines int
	NumCgoCall    int64

	// Process
	NumCPU     int
	GOMAXPROCS int
	GoVersion  string
	Uptime     time.Duration

	BuildInfo *debug.BuildInfo
}

// Snapshot reads the runtime counters; startTime anchors Uptime.
func Snapshot(startTime time.Time) *NerdStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := &NerdStats{
		HeapAlloc:    m.HeapAlloc,
		HeapSys:      m.HeapSys,
		HeapInuse:    m.HeapInuse,
		HeapReleased: m.HeapReleased,
		StackInuse:   m.StackInuse,
		StackSys:     m.StackSys,
		TotalAlloc:   m.TotalAlloc,
		Mallocs:      m.Mallocs,
		Frees:        m.Frees,

		NumGC:         m.NumGC,
		GCCPUFraction: m.GCCPUFraction,

		NumGoroutines: runtime.NumGoroutine(),
		NumCgoCall:    runtime.NumCgoCall(),

		NumCPU:     runtime.NumCPU(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
		GoVersion:  runtime.Version(),
		Uptime:     time.Since(startTime),
	}

	if m.LastGC > 0 {
		stats.LastGC = time.Unix(0, int64(m.LastGC))
		stats.TotalGCTime = time.Duration(m.PauseTotalNs)
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		stats.BuildInfo = info
	}

	return stats
}

// GetMemoryPressure classifies heap usage for the shutdown report.
func (ns *NerdStats) GetMemoryPressure() string {
	heapUsageRatio := float64(ns.HeapInuse) / float64(ns.HeapSys)
	allocsPerFree := float64(ns.Mallocs) / float64(ns.Frees+1)

	switch {
	case heapUsageRatio > 0.9 && allocsPerFree > 1.5:
		return "HIGH"
	case heapUsageRatio > 0.7 || allocsPerFree > 1.2:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// GetGoroutineHealthStatus classifies the goroutine count against fixed
// thresholds (100, 500, 1000) that do not depend on the configured
// worker count.
func (ns *NerdStats) GetGoroutineHealthStatus() string {
	switch {
	case ns.NumGoroutines > 1000:
		return "CONCERNING"
	case ns.NumGoroutines > 500:
		return "ELEVATED"
	case ns.NumGoroutines > 100:
		return "NORMAL"
	default:
		return "HEALTHY"
	}
}

// GetBuildInfoSummary extracts the build settings worth logging.
func (ns *NerdStats) GetBuildInfoSummary() map[string]string {
	summary := make(map[string]string)
	if ns.BuildInfo == nil {
		return summary
	}

	summary["path"] = ns.BuildInfo.Path
	summary["main_version"] = ns.BuildInfo.Main.Version

	for _, setting := range ns.BuildInfo.Settings {
		switch setting.Key {
		case "CGO_ENABLED", "GOARCH", "GOOS", "vcs.revision", "vcs.time":
			summary[setting.Key] = setting.Value
		}
	}
	return summary
}

// CalculateAverageGCPause renders mean GC pause, or "N/A" before the
// first collection.
func CalculateAverageGCPause(stats *NerdStats) string {
	if stats.NumGC == 0 {
		return "N/A"
	}
	return format.Duration(stats.TotalGCTime / time.Duration(stats.NumGC))
}
