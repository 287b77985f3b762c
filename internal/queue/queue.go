package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/Julianb233/ghl-agency-ai-sub004/internal/eventbus"
	"github.com/Julianb233/ghl-agency-ai-sub004/pkg/types"
)

// TaskQueue holds pending tasks ordered by priority tier, then arrival time.
// Ordering is total and deterministic: ties within a tier are broken FIFO by
// CreatedAt, with no randomization.
type TaskQueue struct {
	tasks    []*types.Task
	eventBus *eventbus.EventBus
	mu       sync.Mutex
}

// NewTaskQueue creates an empty task queue. The event bus may be nil, in
// which case no lifecycle events are emitted.
func NewTaskQueue(eb *eventbus.EventBus) *TaskQueue {
	return &TaskQueue{
		tasks:    make([]*types.Task, 0),
		eventBus: eb,
	}
}

// Enqueue inserts a task and restores priority-then-FIFO order.
func (q *TaskQueue) Enqueue(task *types.Task) {
	if task == nil {
		return
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	// Re-enqueueing a failed task is the retry path; either way the task
	// returns to pending.
	task.Status = types.TaskStatusPending

	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.sortLocked()
	q.mu.Unlock()

	if q.eventBus != nil {
		_ = q.eventBus.PublishTaskEvent(eventbus.EventTypeTaskQueued, task.ID, "task-queue", map[string]interface{}{
			"priority": string(task.Priority),
		})
	}
}

// PushFront returns a task to the head of the queue. Used by the distribution
// loop when no eligible agent was found, so the task keeps its turn without
// emitting another queued event.
func (q *TaskQueue) PushFront(task *types.Task) {
	if task == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append([]*types.Task{task}, q.tasks...)
}

// DequeueNext removes and returns the highest-priority task, or nil when the
// queue is empty. An empty queue is a normal outcome, not an error.
func (q *TaskQueue) DequeueNext() *types.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil
	}

	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	return task
}

// Peek returns the head of the queue without removing it.
func (q *TaskQueue) Peek() *types.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil
	}
	return q.tasks[0]
}

// Len returns the number of queued tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// CountsByPriority returns the number of queued tasks per priority tier.
func (q *TaskQueue) CountsByPriority() map[types.Priority]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	counts := make(map[types.Priority]int, len(types.Priorities))
	for _, p := range types.Priorities {
		counts[p] = 0
	}
	for _, task := range q.tasks {
		counts[task.Priority]++
	}
	return counts
}

func (q *TaskQueue) sortLocked() {
	sort.SliceStable(q.tasks, func(i, j int) bool {
		if q.tasks[i].Priority.Rank() != q.tasks[j].Priority.Rank() {
			return q.tasks[i].Priority.Rank() < q.tasks[j].Priority.Rank()
		}
		return q.tasks[i].CreatedAt.Before(q.tasks[j].CreatedAt)
	})
}
