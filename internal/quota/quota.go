// Package quota tracks how many videos each account has published per
// calendar day. Fully published records are deleted from the store, so the
// daily count lives in its own counter rather than being derived from
// surviving records.
package quota

import (
	"context"
	"sync"
	"time"
)

const dayFormat = "2006-01-02"

// Tracker counts per-account publishes against local calendar days.
type Tracker interface {
	// CountToday returns the number of publishes recorded for the account
	// on now's calendar day.
	CountToday(ctx context.Context, account string) (int, error)

	// Record counts one publish for the account at the given time.
	Record(ctx context.Context, account string, at time.Time) error
}

// MemoryTracker is an in-process Tracker for single-instance deployments
// and tests.
type MemoryTracker struct {
	mu     sync.Mutex
	counts map[string]int
	now    func() time.Time
}

// NewMemoryTracker creates an empty in-memory tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		counts: make(map[string]int),
		now:    time.Now,
	}
}

func (t *MemoryTracker) CountToday(ctx context.Context, account string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[account+":"+t.now().Format(dayFormat)], nil
}

func (t *MemoryTracker) Record(ctx context.Context, account string, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[account+":"+at.Format(dayFormat)]++
	return nil
}
