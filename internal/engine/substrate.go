package engine

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/happysantoo/vajrapulse-sub008/internal/task"
)

// ErrSubstrateFull is returned by submit when the bounded worker pool's
// queue is saturated.
var ErrSubstrateFull = errors.New("engine: concurrency substrate queue is full")

// SubstrateStats reports a substrate's current sizing for
// metrics.Collector.ObserveSubstrate: how many workers are busy, how the
// pool is sized, and how much work is waiting for a worker.
type SubstrateStats struct {
	Active   int
	PoolSize int
	CoreSize int
	MaxSize  int
	Queued   int
}

// substrate is the concurrency substrate abstraction:
// an unbounded goroutine-per-iteration model for IoBound tasks, or a
// bounded worker pool for CpuBound tasks, behind one interface.
type substrate interface {
	submit(fn func()) error
	close()
	stats() SubstrateStats
}

// newSubstrate selects the substrate per the task's declared concurrency
// hint.
func newSubstrate(hint task.ConcurrencyHint, queueSize int) substrate {
	if hint == task.CpuBound {
		return newPooledSubstrate(runtime.GOMAXPROCS(0), queueSize)
	}
	return &unboundedSubstrate{}
}

// unboundedSubstrate launches one goroutine per submitted iteration. It
// never rejects: suitable for IoBound tasks where many iterations are
// expected to be in flight concurrently, bounded only by the rate
// controller's release schedule.
type unboundedSubstrate struct {
	active atomic.Int64
}

func (u *unboundedSubstrate) submit(fn func()) error {
	u.active.Add(1)
	go func() {
		defer u.active.Add(-1)
		fn()
	}()
	return nil
}

func (u *unboundedSubstrate) close() {}

// stats reports the live goroutine count as both PoolSize and MaxSize:
// an unbounded substrate has no fixed worker count, so "how many are
// there" and "how many could there be" are the same unbounded number.
func (u *unboundedSubstrate) stats() SubstrateStats {
	active := int(u.active.Load())
	return SubstrateStats{Active: active, PoolSize: active, CoreSize: 0, MaxSize: active, Queued: 0}
}

// pooledSubstrate is a fixed-size worker pool reading from a buffered
// job queue, for CpuBound tasks where unbounded goroutine fan-out would
// thrash the scheduler.
type pooledSubstrate struct {
	jobs chan func()
	closeWg sync.WaitGroup
	closeOne sync.Once
	workers int
	active atomic.Int64
}

func newPooledSubstrate(workers, queueSize int) *pooledSubstrate {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = workers
	}
	p := &pooledSubstrate{jobs: make(chan func(), queueSize), workers: workers}
	p.closeWg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.closeWg.Done()
			for fn := range p.jobs {
				p.active.Add(1)
				fn()
				p.active.Add(-1)
			}
		}()
	}
	return p
}

func (p *pooledSubstrate) submit(fn func()) error {
	select {
	case p.jobs <- fn:
		return nil
	default:
		return ErrSubstrateFull
	}
}

func (p *pooledSubstrate) close() {
	p.closeOne.Do(func() {
		close(p.jobs)
	})
	p.closeWg.Wait()
}

// stats reports the pool's fixed worker count as both CoreSize and
// MaxSize: unlike a dynamically-resizing pool, vajrapulse's CpuBound
// substrate is sized once at construction from GOMAXPROCS and never
// grows or shrinks for the life of a run.
func (p *pooledSubstrate) stats() SubstrateStats {
	return SubstrateStats{
		Active:   int(p.active.Load()),
		PoolSize: p.workers,
		CoreSize: p.workers,
		MaxSize:  p.workers,
		Queued:   len(p.jobs),
	}
}
