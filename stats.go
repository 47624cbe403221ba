package main

import (
	"sync"
	"time"
)

// ServiceStats is the single shared mutable record of service load. Every
// mutation happens under one mutex so no reader ever observes a torn update.
type ServiceStats struct {
	mu sync.Mutex

	maxConcurrent int
	start         time.Time

	waiting         int64
	active          int64
	peak            int64
	total           int64
	failed          int64
	rejected        int64
	totalProcessing time.Duration
}

func NewServiceStats(maxConcurrent int) *ServiceStats {
	return &ServiceStats{maxConcurrent: maxConcurrent, start: time.Now()}
}

// EnterQueue records a request starting to wait for a slot.
func (s *ServiceStats) EnterQueue() {
	s.mu.Lock()
	s.waiting++
	s.mu.Unlock()
}

// LeaveQueue undoes EnterQueue for a wait abandoned without a grant or a
// rejection, e.g. the caller's context was cancelled.
func (s *ServiceStats) LeaveQueue() {
	s.mu.Lock()
	s.waiting--
	s.mu.Unlock()
}

// GrantSlot moves one waiter to active as a single bookkeeping unit.
func (s *ServiceStats) GrantSlot() {
	s.mu.Lock()
	s.waiting--
	s.active++
	s.total++
	if s.active > s.peak {
		s.peak = s.active
	}
	s.mu.Unlock()
}

// RejectWait records a queue timeout and returns the active count at that
// moment for the overload report.
func (s *ServiceStats) RejectWait() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiting--
	s.rejected++
	return s.active
}

// ReleaseSlot retires an active slot and folds its elapsed time into the
// running total.
func (s *ServiceStats) ReleaseSlot(elapsed time.Duration) {
	s.mu.Lock()
	s.active--
	s.totalProcessing += elapsed
	s.mu.Unlock()
}

// MarkFailed counts one failed extraction.
func (s *ServiceStats) MarkFailed() {
	s.mu.Lock()
	s.failed++
	s.mu.Unlock()
}

// Active returns the current active count.
func (s *ServiceStats) Active() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// StatsSnapshot is the externally visible view of ServiceStats, served by
// GET /stats and published to Redis.
type StatsSnapshot struct {
	ActiveExtractions    int64   `json:"active_extractions"`
	WaitingInQueue       int64   `json:"waiting_in_queue"`
	MaxConcurrent        int     `json:"max_concurrent"`
	PeakConcurrent       int64   `json:"peak_concurrent"`
	TotalExtractions     int64   `json:"total_extractions"`
	FailedExtractions    int64   `json:"failed_extractions"`
	QueueFullRejections  int64   `json:"queue_full_rejections"`
	SuccessRate          float64 `json:"success_rate"`
	AvgExtractionSeconds float64 `json:"avg_extraction_time_seconds"`
	UptimeSeconds        float64 `json:"uptime_seconds"`
}

// Snapshot copies the counters without blocking request processing for
// longer than the mutex hold.
func (s *ServiceStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	successful := s.total - s.failed
	snap := StatsSnapshot{
		ActiveExtractions:   s.active,
		WaitingInQueue:      s.waiting,
		MaxConcurrent:       s.maxConcurrent,
		PeakConcurrent:      s.peak,
		TotalExtractions:    s.total,
		FailedExtractions:   s.failed,
		QueueFullRejections: s.rejected,
		UptimeSeconds:       time.Since(s.start).Seconds(),
	}
	if s.total > 0 {
		snap.SuccessRate = roundTo(float64(successful)/float64(s.total)*100, 2)
	}
	if successful > 0 {
		snap.AvgExtractionSeconds = roundTo(s.totalProcessing.Seconds()/float64(successful), 2)
	}
	return snap
}

func roundTo(v float64, places int) float64 {
	shift := 1.0
	for i := 0; i < places; i++ {
		shift *= 10
	}
	return float64(int64(v*shift+0.5)) / shift
}
