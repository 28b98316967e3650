// Package eventbus is a small generic pub/sub bus used to fan crawl
// outcomes out to in-process observers. Publishers never block: slow
// subscribers lose events (counted, not silent) rather than stalling a
// dispatcher worker mid-crawl.
package eventbus

import (
	"context"
	"log"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// EventBusConfig tunes per-subscriber buffering and the reaping of
// subscribers that stopped draining their channel.
type EventBusConfig struct {
	BufferSize      int
	CleanupPeriod   time.Duration
	InactiveTimeout time.Duration
}

// DefaultConfig gives each subscriber a buffer of 100 events, enough to
// absorb the burst between two polls of a slow consumer without growing
// unbounded. /stats reads Stats() and does not subscribe.
var DefaultConfig = EventBusConfig{
	BufferSize:      100,
	CleanupPeriod:   5 * time.Minute,
	InactiveTimeout: 10 * time.Minute,
}

// EventBus delivers events of type T to any number of subscribers over
// an xsync map, so Publish never takes a lock on the hot path.
type EventBus[T any] struct {
	listeners *xsync.Map[string, *listener[T]]
	async     *WorkerPool[T]
	seq       atomic.Uint64
	closed    atomic.Bool

	bufferSize  int
	reapEvery   time.Duration
	stopReaping chan struct{}
}

// listener is one subscription: a buffered channel plus the bookkeeping
// the reaper needs to spot dead consumers.
type listener[T any] struct {
	ch       chan T
	id       string
	lastSeen atomic.Int64
	dropped  atomic.Uint64
	live     atomic.Bool
}

// New builds a bus with DefaultConfig.
func New[T any]() *EventBus[T] {
	return NewWithConfig[T](DefaultConfig)
}

// NewWithConfig builds a bus, starts its async worker pool, and (when
// CleanupPeriod > 0) starts the inactive-subscriber reaper.
func NewWithConfig[T any](cfg EventBusConfig) *EventBus[T] {
	eb := &EventBus[T]{
		listeners:   xsync.NewMap[string, *listener[T]](),
		bufferSize:  cfg.BufferSize,
		reapEvery:   cfg.CleanupPeriod,
		stopReaping: make(chan struct{}),
	}
	eb.async = NewWorkerPool(eb, 4, 1000)

	if cfg.CleanupPeriod > 0 {
		go eb.reapLoop(cfg.InactiveTimeout)
	}
	return eb
}

// Subscribe registers a new listener and returns its receive channel
// plus an unsubscribe func. The subscription also dies with ctx. On an
// already-shut-down bus the returned channel is closed immediately.
func (eb *EventBus[T]) Subscribe(ctx context.Context) (<-chan T, func()) {
	if eb.closed.Load() {
		ch := make(chan T)
		close(ch)
		return ch, func() {}
	}

	l := &listener[T]{
		id: "sub_" + strconv.FormatUint(eb.seq.Add(1), 10),
		ch: make(chan T, eb.bufferSize),
	}
	l.lastSeen.Store(time.Now().UnixNano())
	l.live.Store(true)
	eb.listeners.Store(l.id, l)

	go func() {
		<-ctx.Done()
		eb.detach(l.id)
	}()

	return l.ch, func() { eb.detach(l.id) }
}

// Publish offers the event to every live listener without blocking and
// reports how many actually received it. A listener whose buffer is
// full loses this event and has its drop counter bumped.
func (eb *EventBus[T]) Publish(event T) int {
	if eb.closed.Load() {
		return 0
	}

	delivered := 0
	now := time.Now().UnixNano()
	eb.listeners.Range(func(_ string, l *listener[T]) bool {
		if !l.live.Load() {
			return true
		}
		select {
		case l.ch <- event:
			l.lastSeen.Store(now)
			delivered++
		default:
			l.dropped.Add(1)
		}
		return true
	})
	return delivered
}

// PublishAsync hands the event to the worker pool so the caller returns
// immediately even while a Publish fan-out is in progress.
func (eb *EventBus[T]) PublishAsync(event T) {
	if eb.closed.Load() {
		return
	}
	eb.async.PublishAsync(event)
}

// Shutdown stops the worker pool (events still queued there are lost),
// stops the reaper, and detaches every listener. Channels are deliberately left open: closing them could
// panic a Publish racing with Shutdown, and unreferenced channels are
// collected anyway.
func (eb *EventBus[T]) Shutdown() {
	if !eb.closed.CompareAndSwap(false, true) {
		return
	}

	eb.async.Shutdown()
	close(eb.stopReaping)

	eb.listeners.Range(func(_ string, l *listener[T]) bool {
		l.live.Store(false)
		return true
	})
	eb.listeners.Clear()
}

// EventBusStats is a point-in-time snapshot surfaced at /stats.
type EventBusStats struct {
	TotalSubscribers  int
	ActiveSubscribers int
	// TotalDropped counts events lost to full per-subscriber buffers.
	TotalDropped uint64
	// AsyncDropped counts events PublishAsync discarded before they ever
	// reached a subscriber (full async queue or mid-shutdown).
	AsyncDropped uint64
	IsShutdown   bool
}

// Stats aggregates subscriber and drop counters.
func (eb *EventBus[T]) Stats() EventBusStats {
	stats := EventBusStats{
		IsShutdown:   eb.closed.Load(),
		AsyncDropped: eb.async.Dropped(),
	}
	if stats.IsShutdown {
		return stats
	}

	eb.listeners.Range(func(_ string, l *listener[T]) bool {
		stats.TotalSubscribers++
		if l.live.Load() {
			stats.ActiveSubscribers++
		}
		stats.TotalDropped += l.dropped.Load()
		return true
	})
	return stats
}

// detach marks the listener dead before removing it from the map, so a
// concurrent Publish that already holds the pointer sees live=false
// instead of sending into a channel nobody drains.
func (eb *EventBus[T]) detach(id string) {
	if l, ok := eb.listeners.Load(id); ok {
		l.live.Store(false)
		eb.listeners.Delete(id)
	}
}

// reapLoop periodically drops listeners that went quiet for longer than
// inactiveTimeout, bounding leak from subscribers that never called
// their cleanup func.
func (eb *EventBus[T]) reapLoop(inactiveTimeout time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("eventbus: reaper panic recovered: %v", r)
		}
	}()

	ticker := time.NewTicker(eb.reapEvery)
	defer ticker.Stop()

	for {
		select {
		case <-eb.stopReaping:
			return
		case <-ticker.C:
			eb.reapInactive(inactiveTimeout)
		}
	}
}

func (eb *EventBus[T]) reapInactive(timeout time.Duration) {
	cutoff := time.Now().Add(-timeout).UnixNano()

	var stale []string
	eb.listeners.Range(func(id string, l *listener[T]) bool {
		if !l.live.Load() || l.lastSeen.Load() < cutoff {
			stale = append(stale, id)
		}
		return true
	})
	for _, id := range stale {
		eb.detach(id)
	}
}
