package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_DrainsQueueIntoBus(t *testing.T) {
	bus := New[crawlOutcome]()
	defer bus.Shutdown()

	ch, cleanup := bus.Subscribe(context.Background())
	defer cleanup()

	wp := NewWorkerPool(bus, 2, 16)
	defer wp.Shutdown()

	for mid := int64(1); mid <= 10; mid++ {
		wp.PublishAsync(crawlOutcome{Mid: mid, Outcome: "written"})
	}

	seen := make(map[int64]bool)
	deadline := time.After(2 * time.Second)
	for len(seen) < 10 {
		select {
		case got := <-ch:
			seen[got.Mid] = true
		case <-deadline:
			t.Fatalf("only %d of 10 events arrived", len(seen))
		}
	}
	assert.Zero(t, wp.Dropped())
}

func TestWorkerPool_FullQueueIncrementsDropped(t *testing.T) {
	bus := New[crawlOutcome]()
	defer bus.Shutdown()

	// Zero workers: nothing drains the queue, so the first two publishes
	// fill it and the rest drop.
	wp := NewWorkerPool(bus, 0, 2)

	for mid := int64(1); mid <= 6; mid++ {
		wp.PublishAsync(crawlOutcome{Mid: mid})
	}
	assert.Equal(t, uint64(4), wp.Dropped())

	wp.Shutdown()
}

func TestWorkerPool_DroppedCounterTracksShutdown(t *testing.T) {
	bus := New[crawlOutcome]()
	defer bus.Shutdown()

	wp := NewWorkerPool(bus, 1, 8)
	wp.Shutdown()

	before := wp.Dropped()
	wp.PublishAsync(crawlOutcome{Mid: 42, Outcome: "failed"})
	wp.PublishAsync(crawlOutcome{Mid: 43, Outcome: "failed"})
	assert.Equal(t, before+2, wp.Dropped())
}

func TestWorkerPool_ShutdownWaitsForWorkers(t *testing.T) {
	bus := New[crawlOutcome]()
	defer bus.Shutdown()

	wp := NewWorkerPool(bus, 4, 64)
	for mid := int64(0); mid < 32; mid++ {
		wp.PublishAsync(crawlOutcome{Mid: mid})
	}

	done := make(chan struct{})
	go func() {
		wp.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return")
	}
}

func TestEventBus_StatsExposesAsyncDropped(t *testing.T) {
	bus := New[crawlOutcome]()
	bus.Shutdown()

	// Publishing through the bus after shutdown is a no-op and must not
	// touch the async counter; driving the pool directly does.
	bus.PublishAsync(crawlOutcome{Mid: 1})
	require.Zero(t, bus.Stats().AsyncDropped)

	bus.async.PublishAsync(crawlOutcome{Mid: 2})
	assert.Equal(t, uint64(1), bus.Stats().AsyncDropped)
}
