package usage

import (
	"context"
	"sync"
	"time"
)

// Tracker counts a user's executions for quota enforcement: how many agent
// executions are in flight right now, and how many started this calendar
// month. Limits themselves live in the subscription tier; the tracker only
// counts.
type Tracker interface {
	ActiveExecutions(ctx context.Context, userID string) (int, error)
	MonthlyExecutions(ctx context.Context, userID string) (int, error)
	// StartExecution records an execution start: one more active, one more
	// this month.
	StartExecution(ctx context.Context, userID string) error
	// FinishExecution records an execution end. Monthly counts are not
	// decremented; they measure starts.
	FinishExecution(ctx context.Context, userID string) error
}

// monthKey returns the rollover key for the current calendar month.
func monthKey(now time.Time) string {
	return now.UTC().Format("2006-01")
}

// MemoryTracker is an in-process Tracker for development and tests.
type MemoryTracker struct {
	active  map[string]int
	monthly map[string]int // userID|YYYY-MM -> count
	mu      sync.Mutex

	now func() time.Time
}

// NewMemoryTracker creates an empty in-memory tracker.
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		active:  make(map[string]int),
		monthly: make(map[string]int),
		now:     time.Now,
	}
}

func (t *MemoryTracker) monthlyKey(userID string) string {
	return userID + "|" + monthKey(t.now())
}

// ActiveExecutions implements Tracker.
func (t *MemoryTracker) ActiveExecutions(ctx context.Context, userID string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[userID], nil
}

// MonthlyExecutions implements Tracker.
func (t *MemoryTracker) MonthlyExecutions(ctx context.Context, userID string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.monthly[t.monthlyKey(userID)], nil
}

// StartExecution implements Tracker.
func (t *MemoryTracker) StartExecution(ctx context.Context, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[userID]++
	t.monthly[t.monthlyKey(userID)]++
	return nil
}

// FinishExecution implements Tracker.
func (t *MemoryTracker) FinishExecution(ctx context.Context, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active[userID] > 0 {
		t.active[userID]--
	}
	return nil
}
