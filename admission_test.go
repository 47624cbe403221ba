package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestAdmission(limit int, queueTimeout time.Duration) (*AdmissionController, *ServiceStats) {
	stats := NewServiceStats(limit)
	return NewAdmissionController(limit, queueTimeout, stats), stats
}

func TestAcquireUpToCeiling(t *testing.T) {
	ac, stats := newTestAdmission(3, 50*time.Millisecond)

	var slots []*Slot
	for i := 0; i < 3; i++ {
		slot, err := ac.Acquire(context.Background())
		if err != nil {
			t.Fatalf("acquire %d failed: %v", i, err)
		}
		slots = append(slots, slot)
	}

	if got := stats.Snapshot().ActiveExtractions; got != 3 {
		t.Fatalf("expected 3 active, got %d", got)
	}

	// The fourth waits for the queue timeout, then observes exactly one
	// rejection and no active-count change.
	_, err := ac.Acquire(context.Background())
	var overload *OverloadError
	if !errors.As(err, &overload) {
		t.Fatalf("expected OverloadError, got %v", err)
	}
	if overload.Active != 3 {
		t.Fatalf("expected overload report of 3 active, got %d", overload.Active)
	}

	snap := stats.Snapshot()
	if snap.QueueFullRejections != 1 {
		t.Fatalf("expected 1 rejection, got %d", snap.QueueFullRejections)
	}
	if snap.ActiveExtractions != 3 {
		t.Fatalf("active changed on rejection: %d", snap.ActiveExtractions)
	}
	if snap.WaitingInQueue != 0 {
		t.Fatalf("waiting counter leaked: %d", snap.WaitingInQueue)
	}

	for _, slot := range slots {
		slot.Release()
	}
	if got := stats.Snapshot().ActiveExtractions; got != 0 {
		t.Fatalf("expected 0 active after releases, got %d", got)
	}
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	ac, _ := newTestAdmission(1, time.Second)

	slot, err := ac.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	acquired := make(chan *Slot, 1)
	go func() {
		s, err := ac.Acquire(context.Background())
		if err != nil {
			t.Errorf("queued acquire failed: %v", err)
			return
		}
		acquired <- s
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block while the slot is held")
	case <-time.After(50 * time.Millisecond):
	}

	slot.Release()

	select {
	case second := <-acquired:
		second.Release()
	case <-time.After(time.Second):
		t.Fatal("queued acquire never got the released slot")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	ac, stats := newTestAdmission(1, 50*time.Millisecond)

	slot, err := ac.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	slot.Release()
	slot.Release()

	if got := stats.Snapshot().ActiveExtractions; got != 0 {
		t.Fatalf("double release corrupted active count: %d", got)
	}

	// Capacity must still be exactly one: a fresh acquire succeeds, a second
	// one does not.
	first, err := ac.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	if _, err := ac.Acquire(context.Background()); err == nil {
		t.Fatal("double release minted an extra capacity token")
	}
	first.Release()
}

func TestAcquireContextCancellation(t *testing.T) {
	ac, stats := newTestAdmission(1, time.Second)

	held, err := ac.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := ac.Acquire(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled acquire did not return")
	}

	snap := stats.Snapshot()
	if snap.WaitingInQueue != 0 {
		t.Fatalf("waiting counter leaked after cancellation: %d", snap.WaitingInQueue)
	}
	if snap.QueueFullRejections != 0 {
		t.Fatalf("cancellation must not count as a rejection, got %d", snap.QueueFullRejections)
	}
}

func TestSlotAccountingUnderConcurrency(t *testing.T) {
	const requests = 40
	ac, stats := newTestAdmission(4, 5*time.Second)

	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slot, err := ac.Acquire(context.Background())
			if err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			defer slot.Release()
			time.Sleep(time.Millisecond)
		}()
	}
	wg.Wait()

	snap := stats.Snapshot()
	if snap.ActiveExtractions != 0 {
		t.Fatalf("active count did not return to zero: %d", snap.ActiveExtractions)
	}
	if snap.WaitingInQueue != 0 {
		t.Fatalf("waiting count did not return to zero: %d", snap.WaitingInQueue)
	}
	if snap.TotalExtractions != requests {
		t.Fatalf("expected %d total, got %d", requests, snap.TotalExtractions)
	}
	if snap.PeakConcurrent < 1 || snap.PeakConcurrent > 4 {
		t.Fatalf("peak %d outside ceiling bounds", snap.PeakConcurrent)
	}
}
