package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zaxtyson/spidercrawl/internal/core/domain"
	"github.com/zaxtyson/spidercrawl/internal/core/ports"
	"github.com/zaxtyson/spidercrawl/internal/logger"
)

type fakeIdPool struct {
	mu      sync.Mutex
	toPop   []int64
	offered [][]int64
	done    []int64
	failed  []int64
	popCh   chan struct{}
}

func newFakeIdPool(ids ...int64) *fakeIdPool {
	return &fakeIdPool{toPop: ids, popCh: make(chan struct{}, 1)}
}

func (f *fakeIdPool) Offer(ids []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offered = append(f.offered, ids)
}

func (f *fakeIdPool) Pop(ctx context.Context) (int64, error) {
	for {
		f.mu.Lock()
		if len(f.toPop) > 0 {
			id := f.toPop[0]
			f.toPop = f.toPop[1:]
			f.mu.Unlock()
			return id, nil
		}
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (f *fakeIdPool) MarkDone(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done = append(f.done, id)
}

func (f *fakeIdPool) MarkFailed(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, id)
}

func (f *fakeIdPool) Start(context.Context) error { return nil }
func (f *fakeIdPool) Stop() error                 { return nil }
func (f *fakeIdPool) Stats() ports.IdPoolStats    { return ports.IdPoolStats{} }

type fakeAssembler struct {
	assembleFn   func(ctx context.Context, id int64) (*domain.CompositeRecord, error)
	followingsFn func(ctx context.Context, id int64) ([]int64, error)
}

func (f *fakeAssembler) Assemble(ctx context.Context, id int64) (*domain.CompositeRecord, error) {
	return f.assembleFn(ctx, id)
}

func (f *fakeAssembler) Followings(ctx context.Context, id int64) ([]int64, error) {
	return f.followingsFn(ctx, id)
}

type fakeSink struct {
	mu      sync.Mutex
	records []*domain.CompositeRecord
}

func (f *fakeSink) Append(rec *domain.CompositeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeSink) Close() error { return nil }

func testLogger(t *testing.T) *logger.StyledLogger {
	_, l, cleanup, err := logger.NewWithTheme(&logger.Config{Level: "error"})
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return l
}

func TestDispatcher_HappyPathAppendsAndMarksDone(t *testing.T) {
	pool := newFakeIdPool(1)
	assembler := &fakeAssembler{
		assembleFn: func(_ context.Context, id int64) (*domain.CompositeRecord, error) {
			return &domain.CompositeRecord{Mid: id}, nil
		},
		followingsFn: func(_ context.Context, id int64) ([]int64, error) {
			return []int64{id + 100}, nil
		},
	}
	sink := &fakeSink{}

	d := New(2, pool, assembler, sink, testLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.records) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	d.Stop()

	assert.Contains(t, pool.done, int64(1))
	assert.Contains(t, pool.offered, []int64{101})

	stats := d.Stats()
	assert.EqualValues(t, 1, stats.Written)
	assert.Zero(t, stats.Filtered)
	assert.Zero(t, stats.Failed)
}

func TestDispatcher_AssemblyFailureMarksFailed(t *testing.T) {
	pool := newFakeIdPool(1)
	assembler := &fakeAssembler{
		assembleFn: func(context.Context, int64) (*domain.CompositeRecord, error) {
			return nil, errors.New("boom")
		},
		followingsFn: func(context.Context, int64) ([]int64, error) {
			return nil, nil
		},
	}
	sink := &fakeSink{}

	d := New(1, pool, assembler, sink, testLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	require.Eventually(t, func() bool {
		pool.mu.Lock()
		defer pool.mu.Unlock()
		return len(pool.failed) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	d.Stop()

	assert.EqualValues(t, 1, d.Stats().Failed)
}

func TestDispatcher_PopularityDropMarksDoneWithoutAppend(t *testing.T) {
	pool := newFakeIdPool(1)
	assembler := &fakeAssembler{
		assembleFn: func(context.Context, int64) (*domain.CompositeRecord, error) {
			return nil, nil
		},
		followingsFn: func(context.Context, int64) ([]int64, error) {
			return nil, nil
		},
	}
	sink := &fakeSink{}

	d := New(1, pool, assembler, sink, testLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	require.Eventually(t, func() bool {
		pool.mu.Lock()
		defer pool.mu.Unlock()
		return len(pool.done) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	d.Stop()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Empty(t, sink.records)
	assert.EqualValues(t, 1, d.Stats().Filtered)
}

func TestDispatcher_PanicInsideIterationIsRecoveredAndMarkedFailed(t *testing.T) {
	pool := newFakeIdPool(1)
	var called atomic.Bool
	assembler := &fakeAssembler{
		assembleFn: func(context.Context, int64) (*domain.CompositeRecord, error) {
			called.Store(true)
			panic("simulated programmer error")
		},
		followingsFn: func(context.Context, int64) ([]int64, error) {
			return nil, nil
		},
	}
	sink := &fakeSink{}

	d := New(1, pool, assembler, sink, testLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	require.Eventually(t, func() bool {
		return called.Load()
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		pool.mu.Lock()
		defer pool.mu.Unlock()
		return len(pool.failed) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	d.Stop()
}
