// Package concurrency provides the counting-semaphore limiter backing
// parallel fan-out: each SPLIT node with a max_parallel bound owns one
// Limiter, and branch executions hold a slot from dispatch until they reach a
// terminal state.
package concurrency

import (
	"context"
	"sync/atomic"
	"time"
)

// Metrics tracks limiter usage over its lifetime.
type Metrics struct {
	TotalAcquired   int64
	TotalReleased   int64
	PeakConcurrent  int64
	TotalWaitTimeNs int64
}

// Limiter is a counting semaphore with usage metrics. A nil Limiter, and a
// limiter constructed with a non-positive bound, never blocks: both model an
// unbounded fan-out.
type Limiter struct {
	sem     chan struct{}
	active  int64
	metrics Metrics
}

// NewLimiter creates a limiter admitting at most maxConcurrent concurrent
// holders. A non-positive bound means unlimited.
func NewLimiter(maxConcurrent int) *Limiter {
	l := &Limiter{}
	if maxConcurrent > 0 {
		l.sem = make(chan struct{}, maxConcurrent)
	}
	return l
}

// TryAcquire takes a slot without blocking and reports whether it succeeded.
func (l *Limiter) TryAcquire() bool {
	if l == nil {
		return true
	}
	if l.sem == nil {
		l.acquired(0)
		return true
	}
	select {
	case l.sem <- struct{}{}:
		l.acquired(0)
		return true
	default:
		return false
	}
}

// Acquire blocks until a slot is available or the context is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil || l.sem == nil {
		if l != nil {
			l.acquired(0)
		}
		return nil
	}
	start := time.Now()
	select {
	case l.sem <- struct{}{}:
		l.acquired(time.Since(start))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot. Releasing more than was acquired is a no-op.
func (l *Limiter) Release() {
	if l == nil {
		return
	}
	if l.sem != nil {
		select {
		case <-l.sem:
		default:
			return
		}
	}
	atomic.AddInt64(&l.active, -1)
	atomic.AddInt64(&l.metrics.TotalReleased, 1)
}

// Active returns the current number of slot holders.
func (l *Limiter) Active() int64 {
	if l == nil {
		return 0
	}
	return atomic.LoadInt64(&l.active)
}

// Snapshot returns a copy of the usage metrics.
func (l *Limiter) Snapshot() Metrics {
	if l == nil {
		return Metrics{}
	}
	return Metrics{
		TotalAcquired:   atomic.LoadInt64(&l.metrics.TotalAcquired),
		TotalReleased:   atomic.LoadInt64(&l.metrics.TotalReleased),
		PeakConcurrent:  atomic.LoadInt64(&l.metrics.PeakConcurrent),
		TotalWaitTimeNs: atomic.LoadInt64(&l.metrics.TotalWaitTimeNs),
	}
}

// AverageWaitTime reports the mean time spent blocked in Acquire.
func (l *Limiter) AverageWaitTime() time.Duration {
	m := l.Snapshot()
	if m.TotalAcquired == 0 {
		return 0
	}
	return time.Duration(m.TotalWaitTimeNs / m.TotalAcquired)
}

func (l *Limiter) acquired(wait time.Duration) {
	atomic.AddInt64(&l.metrics.TotalWaitTimeNs, wait.Nanoseconds())
	atomic.AddInt64(&l.metrics.TotalAcquired, 1)
	current := atomic.AddInt64(&l.active, 1)
	for {
		peak := atomic.LoadInt64(&l.metrics.PeakConcurrent)
		if current <= peak || atomic.CompareAndSwapInt64(&l.metrics.PeakConcurrent, peak, current) {
			break
		}
	}
}
