package usage

import (
	"context"
	"testing"
	"time"
)

func TestMemoryTracker_StartFinish(t *testing.T) {
	tracker := NewMemoryTracker()
	ctx := context.Background()

	if err := tracker.StartExecution(ctx, "u1"); err != nil {
		t.Fatalf("StartExecution() error: %v", err)
	}
	if err := tracker.StartExecution(ctx, "u1"); err != nil {
		t.Fatalf("StartExecution() error: %v", err)
	}

	active, _ := tracker.ActiveExecutions(ctx, "u1")
	if active != 2 {
		t.Errorf("Expected 2 active executions, got %d", active)
	}
	monthly, _ := tracker.MonthlyExecutions(ctx, "u1")
	if monthly != 2 {
		t.Errorf("Expected 2 monthly executions, got %d", monthly)
	}

	if err := tracker.FinishExecution(ctx, "u1"); err != nil {
		t.Fatalf("FinishExecution() error: %v", err)
	}

	active, _ = tracker.ActiveExecutions(ctx, "u1")
	if active != 1 {
		t.Errorf("Expected 1 active execution after finish, got %d", active)
	}
	// Monthly counts starts and never goes down
	monthly, _ = tracker.MonthlyExecutions(ctx, "u1")
	if monthly != 2 {
		t.Errorf("Expected monthly count to stay at 2, got %d", monthly)
	}
}

func TestMemoryTracker_FinishNeverNegative(t *testing.T) {
	tracker := NewMemoryTracker()
	ctx := context.Background()

	if err := tracker.FinishExecution(ctx, "u1"); err != nil {
		t.Fatalf("FinishExecution() error: %v", err)
	}

	active, _ := tracker.ActiveExecutions(ctx, "u1")
	if active != 0 {
		t.Errorf("Active count must not go negative, got %d", active)
	}
}

func TestMemoryTracker_UsersIsolated(t *testing.T) {
	tracker := NewMemoryTracker()
	ctx := context.Background()

	_ = tracker.StartExecution(ctx, "u1")

	active, _ := tracker.ActiveExecutions(ctx, "u2")
	if active != 0 {
		t.Errorf("Expected 0 active executions for u2, got %d", active)
	}
}

func TestMemoryTracker_MonthlyRollover(t *testing.T) {
	tracker := NewMemoryTracker()
	ctx := context.Background()

	current := time.Date(2026, time.January, 31, 23, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return current }

	_ = tracker.StartExecution(ctx, "u1")
	_ = tracker.StartExecution(ctx, "u1")

	monthly, _ := tracker.MonthlyExecutions(ctx, "u1")
	if monthly != 2 {
		t.Fatalf("Expected 2 executions in January, got %d", monthly)
	}

	// The month boundary resets the count; active executions carry over
	current = time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	monthly, _ = tracker.MonthlyExecutions(ctx, "u1")
	if monthly != 0 {
		t.Errorf("Expected 0 executions in February, got %d", monthly)
	}
	active, _ := tracker.ActiveExecutions(ctx, "u1")
	if active != 2 {
		t.Errorf("Expected active executions to carry across months, got %d", active)
	}
}

func TestMonthKey(t *testing.T) {
	// Month keys are UTC; a late-evening local time must not bleed into the
	// next month's bucket
	ts := time.Date(2026, time.March, 1, 2, 0, 0, 0, time.FixedZone("UTC+3", 3*3600))
	if got := monthKey(ts); got != "2026-02" {
		t.Errorf("monthKey() = %s, want 2026-02", got)
	}
}
