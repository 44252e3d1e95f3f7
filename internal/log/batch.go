// Package log provides progress feedback for long-running validation
// batches.
package log

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// BatchProgress tracks a multi-candidate validation run and emits periodic
// structured progress lines. Safe for concurrent Step calls.
type BatchProgress struct {
	mu        sync.Mutex
	name      string
	total     int
	done      int
	failed    int
	startTime time.Time
	interval  time.Duration
	lastLog   time.Time
}

// NewBatchProgress creates a tracker for total candidates. Progress is
// logged at most once per interval plus once at completion.
func NewBatchProgress(name string, total int, interval time.Duration) *BatchProgress {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	now := time.Now()
	return &BatchProgress{
		name:      name,
		total:     total,
		startTime: now,
		lastLog:   now,
		interval:  interval,
	}
}

// Step records one completed candidate.
func (b *BatchProgress) Step(passed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.done++
	if !passed {
		b.failed++
	}

	now := time.Now()
	if b.done == b.total || now.Sub(b.lastLog) >= b.interval {
		b.lastLog = now
		log.Info().
			Str("batch", b.name).
			Int("done", b.done).
			Int("total", b.total).
			Int("failed", b.failed).
			Dur("elapsed", now.Sub(b.startTime)).
			Dur("eta", b.eta(now)).
			Msg("Validation batch progress")
	}
}

// eta extrapolates remaining wall-clock time from the average pace so far.
// Callers hold the mutex.
func (b *BatchProgress) eta(now time.Time) time.Duration {
	if b.done == 0 || b.done >= b.total {
		return 0
	}
	perItem := now.Sub(b.startTime) / time.Duration(b.done)
	return perItem * time.Duration(b.total-b.done)
}

// Snapshot returns completed and failed counts.
func (b *BatchProgress) Snapshot() (done, failed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done, b.failed
}
