package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// crawlOutcome mirrors the shape the dispatcher publishes: one event per
// processed identifier.
type crawlOutcome struct {
	Mid     int64
	Outcome string
}

func TestEventBus_DeliversToSubscriber(t *testing.T) {
	bus := New[crawlOutcome]()
	defer bus.Shutdown()

	ch, cleanup := bus.Subscribe(context.Background())
	defer cleanup()

	delivered := bus.Publish(crawlOutcome{Mid: 12345, Outcome: "written"})
	require.Equal(t, 1, delivered)

	select {
	case got := <-ch:
		assert.Equal(t, int64(12345), got.Mid)
		assert.Equal(t, "written", got.Outcome)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outcome event")
	}
}

func TestEventBus_BroadcastsToAllSubscribers(t *testing.T) {
	bus := New[crawlOutcome]()
	defer bus.Shutdown()

	const subs = 4
	channels := make([]<-chan crawlOutcome, 0, subs)
	for i := 0; i < subs; i++ {
		ch, cleanup := bus.Subscribe(context.Background())
		defer cleanup()
		channels = append(channels, ch)
	}

	delivered := bus.Publish(crawlOutcome{Mid: 7, Outcome: "filtered"})
	require.Equal(t, subs, delivered)

	for i, ch := range channels {
		select {
		case got := <-ch:
			assert.Equal(t, int64(7), got.Mid, "subscriber %d", i)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}
}

func TestEventBus_ContextCancelDetachesSubscriber(t *testing.T) {
	bus := New[crawlOutcome]()
	defer bus.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	ch, cleanup := bus.Subscribe(ctx)
	defer cleanup()

	cancel()

	// Detach happens on a goroutine watching ctx.Done; give it a moment.
	require.Eventually(t, func() bool {
		return bus.Stats().TotalSubscribers == 0
	}, time.Second, 10*time.Millisecond)

	bus.Publish(crawlOutcome{Mid: 1, Outcome: "failed"})
	select {
	case got := <-ch:
		t.Fatalf("detached subscriber received %+v", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEventBus_FullBufferDropsAndCounts(t *testing.T) {
	bus := NewWithConfig[crawlOutcome](EventBusConfig{
		BufferSize:      2,
		CleanupPeriod:   time.Hour,
		InactiveTimeout: time.Hour,
	})
	defer bus.Shutdown()

	_, cleanup := bus.Subscribe(context.Background())
	defer cleanup()

	// Nobody drains the channel: the first two fill the buffer, the
	// next three are dropped.
	for mid := int64(1); mid <= 5; mid++ {
		bus.Publish(crawlOutcome{Mid: mid, Outcome: "written"})
	}

	stats := bus.Stats()
	assert.Equal(t, uint64(3), stats.TotalDropped)
	assert.Equal(t, 1, stats.ActiveSubscribers)
}

func TestEventBus_PublishAsyncReachesSubscriber(t *testing.T) {
	bus := New[crawlOutcome]()
	defer bus.Shutdown()

	ch, cleanup := bus.Subscribe(context.Background())
	defer cleanup()

	bus.PublishAsync(crawlOutcome{Mid: 99, Outcome: "written"})

	select {
	case got := <-ch:
		assert.Equal(t, int64(99), got.Mid)
	case <-time.After(time.Second):
		t.Fatal("async publish never arrived")
	}
}

func TestEventBus_ShutdownStopsDelivery(t *testing.T) {
	bus := New[crawlOutcome]()

	_, cleanup := bus.Subscribe(context.Background())
	defer cleanup()

	bus.Shutdown()

	assert.Equal(t, 0, bus.Publish(crawlOutcome{Mid: 1, Outcome: "written"}))
	assert.True(t, bus.Stats().IsShutdown)

	// Subscribing after shutdown hands back a closed channel, so a
	// late-starting consumer's range loop exits instead of hanging.
	ch, cleanup2 := bus.Subscribe(context.Background())
	defer cleanup2()
	_, open := <-ch
	assert.False(t, open)
}

func TestEventBus_ShutdownIsIdempotent(t *testing.T) {
	bus := New[crawlOutcome]()
	bus.Shutdown()
	assert.NotPanics(t, func() { bus.Shutdown() })
}

func TestEventBus_UnsubscribeIsIdempotent(t *testing.T) {
	bus := New[crawlOutcome]()
	defer bus.Shutdown()

	_, cleanup := bus.Subscribe(context.Background())
	cleanup()
	assert.NotPanics(t, cleanup)
	assert.Equal(t, 0, bus.Stats().TotalSubscribers)
}

func TestEventBus_ReaperRemovesIdleSubscribers(t *testing.T) {
	bus := NewWithConfig[crawlOutcome](EventBusConfig{
		BufferSize:      8,
		CleanupPeriod:   20 * time.Millisecond,
		InactiveTimeout: 50 * time.Millisecond,
	})
	defer bus.Shutdown()

	_, cleanup := bus.Subscribe(context.Background())
	defer cleanup()

	// No publishes touch lastSeen, so the subscriber ages past the
	// inactive cutoff and the reaper collects it.
	require.Eventually(t, func() bool {
		return bus.Stats().TotalSubscribers == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventBus_ConcurrentPublishAndSubscribe(t *testing.T) {
	bus := New[crawlOutcome]()
	defer bus.Shutdown()

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(base int64) {
			defer wg.Done()
			for i := int64(0); i < 50; i++ {
				bus.Publish(crawlOutcome{Mid: base*1000 + i, Outcome: "written"})
			}
		}(int64(p))
	}
	for s := 0; s < 4; s++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			ch, cleanup := bus.Subscribe(ctx)
			defer cleanup()
			select {
			case <-ch:
			case <-time.After(100 * time.Millisecond):
			}
		}()
	}
	wg.Wait()
}
