package queue

import (
	"testing"
	"time"

	"github.com/Julianb233/ghl-agency-ai-sub004/pkg/types"
)

func TestEnqueuePriorityOrdering(t *testing.T) {
	q := NewTaskQueue(nil)

	q.Enqueue(&types.Task{ID: "t-low", Priority: types.PriorityLow})
	q.Enqueue(&types.Task{ID: "t-critical", Priority: types.PriorityCritical})
	q.Enqueue(&types.Task{ID: "t-normal", Priority: types.PriorityNormal})

	want := []string{"t-critical", "t-normal", "t-low"}
	for _, expected := range want {
		task := q.DequeueNext()
		if task == nil {
			t.Fatalf("DequeueNext() returned nil, expected %s", expected)
		}
		if task.ID != expected {
			t.Errorf("Expected task %s, got %s", expected, task.ID)
		}
	}

	if q.Len() != 0 {
		t.Errorf("Expected empty queue, got %d tasks", q.Len())
	}
}

func TestEnqueueFIFOWithinPriority(t *testing.T) {
	q := NewTaskQueue(nil)

	base := time.Now()
	q.Enqueue(&types.Task{ID: "first", Priority: types.PriorityHigh, CreatedAt: base})
	q.Enqueue(&types.Task{ID: "second", Priority: types.PriorityHigh, CreatedAt: base.Add(time.Millisecond)})
	q.Enqueue(&types.Task{ID: "third", Priority: types.PriorityHigh, CreatedAt: base.Add(2 * time.Millisecond)})

	for _, expected := range []string{"first", "second", "third"} {
		task := q.DequeueNext()
		if task.ID != expected {
			t.Errorf("Expected task %s, got %s", expected, task.ID)
		}
	}
}

func TestEnqueueResetsStatus(t *testing.T) {
	q := NewTaskQueue(nil)

	// Re-enqueueing a failed task puts it back to pending
	task := &types.Task{ID: "retry-me", Priority: types.PriorityNormal, Status: types.TaskStatusFailed}
	q.Enqueue(task)

	got := q.DequeueNext()
	if got.Status != types.TaskStatusPending {
		t.Errorf("Expected status pending after enqueue, got %s", got.Status)
	}
}

func TestPushFrontKeepsPosition(t *testing.T) {
	q := NewTaskQueue(nil)

	q.Enqueue(&types.Task{ID: "a", Priority: types.PriorityNormal})
	q.Enqueue(&types.Task{ID: "b", Priority: types.PriorityNormal})

	head := q.DequeueNext()
	if head.ID != "a" {
		t.Fatalf("Expected head task a, got %s", head.ID)
	}

	q.PushFront(head)

	if got := q.DequeueNext(); got.ID != "a" {
		t.Errorf("Expected pushed-back task a at head, got %s", got.ID)
	}
}

func TestDequeueNextEmpty(t *testing.T) {
	q := NewTaskQueue(nil)

	if task := q.DequeueNext(); task != nil {
		t.Errorf("Expected nil from empty queue, got %v", task)
	}
	if task := q.Peek(); task != nil {
		t.Errorf("Expected nil from empty Peek, got %v", task)
	}
}

func TestCountsByPriority(t *testing.T) {
	q := NewTaskQueue(nil)

	q.Enqueue(&types.Task{ID: "1", Priority: types.PriorityCritical})
	q.Enqueue(&types.Task{ID: "2", Priority: types.PriorityCritical})
	q.Enqueue(&types.Task{ID: "3", Priority: types.PriorityBackground})

	counts := q.CountsByPriority()
	if counts[types.PriorityCritical] != 2 {
		t.Errorf("Expected 2 critical tasks, got %d", counts[types.PriorityCritical])
	}
	if counts[types.PriorityBackground] != 1 {
		t.Errorf("Expected 1 background task, got %d", counts[types.PriorityBackground])
	}
}
