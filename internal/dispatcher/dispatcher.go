// Package dispatcher launches a fixed pool of workers that drain the
// IdPool, assemble records, and feed the sink. Each worker loops
// pop → followings → offer → assemble → append until cancelled.
package dispatcher

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/atomic"

	"github.com/zaxtyson/spidercrawl/internal/adapter/httpclient"
	"github.com/zaxtyson/spidercrawl/internal/core/ports"
	"github.com/zaxtyson/spidercrawl/internal/logger"
	"github.com/zaxtyson/spidercrawl/pkg/eventbus"
)

// Outcome classifies how one worker iteration ended, published on Events
// for any interested subscriber (the /stats surface, a future alerting
// hook) without coupling the dispatcher to who's listening.
type Outcome string

const (
	OutcomeWritten  Outcome = "written"
	OutcomeFiltered Outcome = "filtered"
	OutcomeFailed   Outcome = "failed"
)

// Event is published once per processed identifier.
type Event struct {
	Mid     int64
	Outcome Outcome
}

// Dispatcher owns N worker goroutines, each looping over the IdPool.
// Outcome counters are lock-free so /stats can read them while every
// worker is mid-iteration without touching a mutex the hot loop shares.
type Dispatcher struct {
	workerCount int
	idPool      ports.IdPool
	assembler   ports.RecordAssembler
	sink        ports.Sink
	logger      *logger.StyledLogger
	events      *eventbus.EventBus[Event]

	written  atomic.Int64
	filtered atomic.Int64
	failed   atomic.Int64

	wg sync.WaitGroup
}

// Stats is the dispatcher's cumulative outcome tally.
type Stats struct {
	Written  int64 `json:"written"`
	Filtered int64 `json:"filtered"`
	Failed   int64 `json:"failed"`
}

// New builds a Dispatcher with workerCount worker goroutines. Events are
// published asynchronously on a bounded in-process bus; subscribers that
// fall behind simply drop events rather than blocking a worker.
func New(workerCount int, idPool ports.IdPool, assembler ports.RecordAssembler, sink ports.Sink, log *logger.StyledLogger) *Dispatcher {
	return &Dispatcher{
		workerCount: workerCount,
		idPool:      idPool,
		assembler:   assembler,
		sink:        sink,
		logger:      log,
		events:      eventbus.New[Event](),
	}
}

// Events returns the event bus workers publish outcomes on; callers
// Subscribe to observe per-id processing results (e.g. for /stats).
func (d *Dispatcher) Events() *eventbus.EventBus[Event] {
	return d.events
}

// Stats reports how many identifiers each outcome has absorbed so far.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Written:  d.written.Load(),
		Filtered: d.filtered.Load(),
		Failed:   d.failed.Load(),
	}
}

// record tallies one finished iteration and publishes it for subscribers.
func (d *Dispatcher) record(mid int64, outcome Outcome) {
	switch outcome {
	case OutcomeWritten:
		d.written.Inc()
	case OutcomeFiltered:
		d.filtered.Inc()
	case OutcomeFailed:
		d.failed.Inc()
	}
	d.events.PublishAsync(Event{Mid: mid, Outcome: outcome})
}

// Start launches the worker pool; workers run until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Stop blocks until all workers have exited, then shuts down the event bus.
func (d *Dispatcher) Stop() {
	d.wg.Wait()
	d.events.Shutdown()
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		mid, err := d.idPool.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			d.logger.Error("dispatcher: pop failed", "worker", id, "error", err)
			continue
		}

		d.processOne(ctx, mid)
	}
}

// processOne runs one iteration of the worker loop. Any panic is
// recovered and converted into a failed id so one bad upstream response
// can't kill the worker.
func (d *Dispatcher) processOne(ctx context.Context, mid int64) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatcher: worker panic recovered", "mid", mid, "recovered", r)
			d.idPool.MarkFailed(mid)
			d.record(mid, OutcomeFailed)
		}
	}()

	neighbors, err := d.assembler.Followings(ctx, mid)
	if err != nil {
		d.logger.Error("dispatcher: followings fetch failed", "mid", mid, "error", err)
	} else {
		d.idPool.Offer(neighbors)
	}

	rec, err := d.assembler.Assemble(ctx, mid)
	if err != nil {
		d.logger.Error("dispatcher: assembly failed", "mid", mid, "error", err,
			"reason", httpclient.GetUserFriendlyMessage(err), "recoverable", httpclient.IsRecoverable(err))
		d.idPool.MarkFailed(mid)
		d.record(mid, OutcomeFailed)
		return
	}
	if rec == nil {
		// Either the popularity filter dropped this id, or assembly legitimately
		// produced nothing; either way this id was successfully processed.
		d.idPool.MarkDone(mid)
		d.record(mid, OutcomeFiltered)
		return
	}

	if err := d.sink.Append(rec); err != nil {
		d.logger.Error("dispatcher: sink append failed", "mid", mid, "error", err)
		d.idPool.MarkFailed(mid)
		d.record(mid, OutcomeFailed)
		return
	}

	d.idPool.MarkDone(mid)
	d.record(mid, OutcomeWritten)
}
