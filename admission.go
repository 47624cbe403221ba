package main

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// OverloadError reports a queue-wait timeout. It is a retryable condition,
// not a fault.
type OverloadError struct {
	Active int64
}

func (e *OverloadError) Error() string {
	return fmt.Sprintf("server overloaded: %d extractions in progress, retry later", e.Active)
}

// AdmissionController caps concurrent extractions at a fixed ceiling. Excess
// requests wait up to queueTimeout for a capacity token; starvation beyond
// that is surfaced as OverloadError.
type AdmissionController struct {
	tokens       chan struct{}
	queueTimeout time.Duration
	stats        *ServiceStats
}

func NewAdmissionController(limit int, queueTimeout time.Duration, stats *ServiceStats) *AdmissionController {
	tokens := make(chan struct{}, limit)
	for i := 0; i < limit; i++ {
		tokens <- struct{}{}
	}
	return &AdmissionController{
		tokens:       tokens,
		queueTimeout: queueTimeout,
		stats:        stats,
	}
}

// Acquire blocks until a capacity token is available, the queue timeout
// elapses, or ctx is cancelled. A timed-out or cancelled wait can never
// consume a token afterwards: the channel receive is the only transfer of
// ownership, and the losing select arms never touch it.
func (a *AdmissionController) Acquire(ctx context.Context) (*Slot, error) {
	a.stats.EnterQueue()

	timer := time.NewTimer(a.queueTimeout)
	defer timer.Stop()

	select {
	case <-a.tokens:
		a.stats.GrantSlot()
		return &Slot{controller: a, acquired: time.Now()}, nil
	case <-timer.C:
		active := a.stats.RejectWait()
		return nil, &OverloadError{Active: active}
	case <-ctx.Done():
		a.stats.LeaveQueue()
		return nil, ctx.Err()
	}
}

// Slot is a live capacity token bound to one in-flight request. Release is
// idempotent, so the deferred release on the request path cannot double-free
// even when an error path released early.
type Slot struct {
	controller *AdmissionController
	acquired   time.Time
	release    sync.Once
}

// Release retires the slot: active count drops, elapsed time is accumulated,
// and the token returns to the pool. Safe to call more than once; only the
// first call has effect.
func (s *Slot) Release() {
	s.release.Do(func() {
		s.controller.stats.ReleaseSlot(time.Since(s.acquired))
		s.controller.tokens <- struct{}{}
	})
}
