// Package pool wraps sync.Pool with a type parameter so callers get
// their own type back from Get without an interface{} assertion.
package pool

import "sync"

// Resettable values are zeroed on Put before returning to the pool.
type Resettable interface {
	Reset()
}

// Pool is a typed sync.Pool. The record assembler pools its video-entry
// scratch buffer through one of these across the thousands of
// identifiers a worker pool assembles per run:
//
//	type videoBuffer struct { entries []domain.VideoEntry }
//	func (b *videoBuffer) Reset() { b.entries = b.entries[:0] }
//
//	var videoBufferPool = pool.NewLitePool(func() *videoBuffer { return &videoBuffer{} })
//
//	buf := videoBufferPool.Get()
//	defer videoBufferPool.Put(buf)
type Pool[T any] struct {
	pool sync.Pool
	new  func() T
}

// NewLitePool builds a Pool around newFn. The constructor is probed
// once up front so a nil-returning constructor fails at wiring time
// rather than on some later Get under load.
func NewLitePool[T any](newFn func() T) *Pool[T] {
	if newFn == nil {
		panic("litepool: constructor must not be nil")
	}
	if any(newFn()) == nil {
		panic("litepool: constructor returned nil")
	}

	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				v := newFn()
				if any(v) == nil {
					panic("litepool: constructor returned nil")
				}
				return v
			},
		},
		new: newFn,
	}
}

func (p *Pool[T]) Get() T {
	//nolint:forcetypeassert // New only ever produces T
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(v T) {
	if r, ok := any(v).(Resettable); ok {
		r.Reset()
	}
	p.pool.Put(v)
}
