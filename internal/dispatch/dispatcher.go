package dispatch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Julianb233/ghl-agency-ai-sub004/internal/eventbus"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/metrics"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/queue"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/telemetry"
	"github.com/Julianb233/ghl-agency-ai-sub004/pkg/types"
)

// workloadStep is the fixed workload increment applied per assignment. It is
// a deliberate approximation of one unit of load and intentionally not
// proportional to the task's estimated duration. Candidate improvement, but
// preserved for compatibility with existing workload tuning.
const workloadStep = 0.2

// AgentResolver commits agent-state changes back to whoever owns the live
// pool. The dispatcher schedules against pass-local copies and never writes
// shared agent memory itself; fn runs under the owner's lock.
type AgentResolver interface {
	WithAgent(agentID string, fn func(*types.Agent)) bool
}

// QueueStatus summarizes the queue and ledger for dashboards and
// load-shedding policy.
type QueueStatus struct {
	QueueLength       int                    `json:"queue_length"`
	ActiveAssignments int                    `json:"active_assignments"`
	ByPriority        map[types.Priority]int `json:"by_priority"`
}

// Dispatcher distributes queued tasks across the agent pool and tracks
// active assignments. All ledger mutations serialize through its mutex:
// concurrent assignment attempts against the same agent must go through the
// dispatcher, never around it.
type Dispatcher struct {
	queue    *queue.TaskQueue
	strategy types.SelectionStrategy
	resolver AgentResolver
	eventBus *eventbus.EventBus
	metrics  *metrics.Metrics

	mu          sync.Mutex
	assignments map[string]*types.Assignment // taskID -> active assignment
	tasks       map[string]*types.Task       // taskID -> task, while in flight
}

// NewDispatcher creates a dispatcher. The strategy is fixed at construction
// time; resolver, event bus and metrics may be nil.
func NewDispatcher(q *queue.TaskQueue, strategy types.SelectionStrategy, resolver AgentResolver, eb *eventbus.EventBus, m *metrics.Metrics) *Dispatcher {
	if strategy == nil {
		strategy = &CapabilityStrategy{}
	}
	return &Dispatcher{
		queue:       q,
		strategy:    strategy,
		resolver:    resolver,
		eventBus:    eb,
		metrics:     m,
		assignments: make(map[string]*types.Assignment),
		tasks:       make(map[string]*types.Task),
	}
}

// Queue returns the task queue the dispatcher drains.
func (d *Dispatcher) Queue() *queue.TaskQueue {
	return d.queue
}

// StrategyName returns the name of the configured selection strategy.
func (d *Dispatcher) StrategyName() string {
	return d.strategy.Name()
}

// AssignTask offers one task to the agent pool. It returns the recorded
// assignment, or (nil, nil) when no agent is eligible: a normal scheduling
// outcome that leaves the task unassigned. The queue/filter/score/assign
// sequence is atomic with respect to other scheduling operations.
func (d *Dispatcher) AssignTask(ctx context.Context, task *types.Task, agents []*types.Agent) (*types.Assignment, error) {
	if task == nil {
		return nil, ErrNilTask
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// At most one active assignment per task id, ever.
	if _, exists := d.assignments[task.ID]; exists {
		return nil, ErrTaskAlreadyAssigned
	}

	eligible := FilterCapableAgents(task, agents)
	if len(eligible) == 0 {
		if d.metrics != nil {
			d.metrics.AssignmentMisses.Inc()
		}
		return nil, nil
	}

	agent := d.strategy.Select(task, eligible, len(d.assignments))
	if agent == nil {
		return nil, nil
	}

	now := time.Now()
	assignment := &types.Assignment{
		TaskID:            task.ID,
		AgentID:           agent.ID,
		AssignedAt:        now,
		Priority:          task.Priority,
		EstimatedDuration: task.Requirements.EstimatedDuration,
	}
	d.assignments[task.ID] = assignment
	d.tasks[task.ID] = task

	task.Status = types.TaskStatusAssigned
	task.AssignedAgent = agent.ID
	task.UpdatedAt = now

	// Commit the load to the live pool; the pass copy mirrors the result so
	// later iterations of the same pass see the updated capacity.
	committed := false
	if d.resolver != nil {
		committed = d.resolver.WithAgent(agent.ID, func(live *types.Agent) {
			live.Workload = minFloat(1.0, live.Workload+workloadStep)
			live.ActiveTasks++
			live.Status = types.AgentStatusBusy
			agent.Workload = live.Workload
			agent.ActiveTasks = live.ActiveTasks
			agent.Status = live.Status
		})
	}
	if !committed {
		// Agent left the pool between snapshot and commit (or no resolver is
		// wired); annotate the pass copy so the assignment still proceeds.
		agent.Workload = minFloat(1.0, agent.Workload+workloadStep)
		agent.ActiveTasks++
		agent.Status = types.AgentStatusBusy
	}

	if d.eventBus != nil {
		_ = d.eventBus.PublishTaskEvent(eventbus.EventTypeTaskAssigned, task.ID, "dispatcher", map[string]interface{}{
			"agent_id": agent.ID,
			"priority": string(task.Priority),
			"strategy": d.strategy.Name(),
		})
	}
	if d.metrics != nil {
		d.metrics.RecordAssignment(string(task.Priority), d.strategy.Name())
	}
	telemetry.RecordTaskAssigned(ctx)

	return assignment, nil
}

// DistributeTasks repeatedly pops the queue while tasks remain and at least
// one agent is assignable. When the head task finds no eligible agent it is
// pushed back to the front of the queue and the pass stops, so an
// unassignable task is not busy-spun over while other tasks wait. Returns
// the number of tasks assigned in the pass.
func (d *Dispatcher) DistributeTasks(ctx context.Context, agents []*types.Agent) int {
	start := time.Now()
	assigned := 0
	for d.queue.Len() > 0 && anyAssignable(agents) {
		task := d.queue.DequeueNext()
		if task == nil {
			break
		}

		assignment, err := d.AssignTask(ctx, task, agents)
		if err != nil {
			// A queued task with a live assignment indicates a caller bug;
			// drop it from the queue rather than re-assign.
			log.Printf("skipping queued task %s: %v", task.ID, err)
			continue
		}
		if assignment == nil {
			d.queue.PushFront(task)
			break
		}
		assigned++
	}

	d.updateQueueGauges()
	telemetry.RecordDispatchLatency(ctx, time.Since(start))
	return assigned
}

// CompleteTask reports successful execution of an assigned task. Calling it
// again for the same task id is a no-op: the assignment is already removed
// and no workload is decremented twice.
func (d *Dispatcher) CompleteTask(taskID string, result *types.TaskResult) *types.Assignment {
	d.mu.Lock()

	assignment, exists := d.assignments[taskID]
	if !exists {
		d.mu.Unlock()
		return nil
	}
	task := d.tasks[taskID]
	delete(d.assignments, taskID)
	delete(d.tasks, taskID)

	duration := time.Since(assignment.AssignedAt)
	if task != nil {
		task.Status = types.TaskStatusCompleted
		task.Result = result
		task.UpdatedAt = time.Now()
	}

	d.releaseAgentLocked(assignment.AgentID, true, duration)
	d.mu.Unlock()

	if d.eventBus != nil {
		data := map[string]interface{}{
			"agent_id":    assignment.AgentID,
			"duration_ms": duration.Milliseconds(),
		}
		if result != nil {
			data["result"] = result
		}
		_ = d.eventBus.PublishTaskEvent(eventbus.EventTypeTaskCompleted, taskID, "dispatcher", data)
	}
	if d.metrics != nil {
		d.metrics.RecordTaskFinished(string(assignment.Priority), true, duration.Seconds())
	}
	telemetry.RecordTaskFinished(context.Background(), true, duration)

	return assignment
}

// FailTask reports failed execution of an assigned task. The dispatcher does
// not interpret the error or auto-retry: when retry is true the emitted
// event says so and re-enqueueing is left to the caller. A cancelled task is
// reported through the same path with retry=false. Idempotent like
// CompleteTask.
func (d *Dispatcher) FailTask(taskID string, taskErr error, retry bool) *types.Assignment {
	d.mu.Lock()

	assignment, exists := d.assignments[taskID]
	if !exists {
		d.mu.Unlock()
		return nil
	}
	task := d.tasks[taskID]
	delete(d.assignments, taskID)
	delete(d.tasks, taskID)

	duration := time.Since(assignment.AssignedAt)
	if task != nil {
		task.Status = types.TaskStatusFailed
		task.UpdatedAt = time.Now()
	}

	d.releaseAgentLocked(assignment.AgentID, false, duration)
	d.mu.Unlock()

	errMsg := ""
	if taskErr != nil {
		errMsg = taskErr.Error()
	}
	if d.eventBus != nil {
		_ = d.eventBus.PublishTaskEvent(eventbus.EventTypeTaskFailed, taskID, "dispatcher", map[string]interface{}{
			"agent_id":   assignment.AgentID,
			"error":      errMsg,
			"will_retry": retry,
		})
	}
	if d.metrics != nil {
		d.metrics.RecordTaskFinished(string(assignment.Priority), false, duration.Seconds())
	}
	telemetry.RecordTaskFinished(context.Background(), false, duration)

	return assignment
}

// GetTask returns the in-flight task for a task id, if any. Useful for
// callers that want to re-enqueue a task they are about to fail.
func (d *Dispatcher) GetTask(taskID string) (*types.Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	task, exists := d.tasks[taskID]
	return task, exists
}

// GetAssignment returns the active assignment for a task id, if any.
func (d *Dispatcher) GetAssignment(taskID string) (*types.Assignment, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	assignment, exists := d.assignments[taskID]
	return assignment, exists
}

// GetAgentAssignments returns all active assignments held by an agent.
func (d *Dispatcher) GetAgentAssignments(agentID string) []*types.Assignment {
	d.mu.Lock()
	defer d.mu.Unlock()

	result := make([]*types.Assignment, 0)
	for _, assignment := range d.assignments {
		if assignment.AgentID == agentID {
			result = append(result, assignment)
		}
	}
	return result
}

// ActiveAssignmentCount returns the current size of the active ledger.
func (d *Dispatcher) ActiveAssignmentCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.assignments)
}

// GetQueueStatus returns queue length, active assignment count and a
// per-priority-tier breakdown of pending tasks.
func (d *Dispatcher) GetQueueStatus() QueueStatus {
	return QueueStatus{
		QueueLength:       d.queue.Len(),
		ActiveAssignments: d.ActiveAssignmentCount(),
		ByPriority:        d.queue.CountsByPriority(),
	}
}

// releaseAgentLocked gives an agent its capacity back after a task finished
// and folds the outcome into its rolling metrics. Caller holds d.mu; the
// agent mutation itself runs under the pool owner's lock via the resolver.
func (d *Dispatcher) releaseAgentLocked(agentID string, success bool, duration time.Duration) {
	if d.resolver == nil {
		return
	}
	stillBusy := d.agentBusyLocked(agentID)

	// Returns false when the agent left the pool while its task was in
	// flight; nothing to release then.
	d.resolver.WithAgent(agentID, func(agent *types.Agent) {
		agent.Workload = maxFloat(0, agent.Workload-workloadStep)
		if agent.ActiveTasks > 0 {
			agent.ActiveTasks--
		}

		if success {
			agent.Metrics.TasksCompleted++
		} else {
			agent.Metrics.TasksFailed++
		}
		total := agent.Metrics.TasksCompleted + agent.Metrics.TasksFailed
		if total > 0 {
			agent.Metrics.SuccessRate = float64(agent.Metrics.TasksCompleted) / float64(total)
			prev := agent.Metrics.AvgDuration
			agent.Metrics.AvgDuration = prev + (duration-prev)/time.Duration(total)
		}

		if !stillBusy && agent.Status == types.AgentStatusBusy {
			agent.Status = types.AgentStatusIdle
		}
	})
}

// agentBusyLocked reports whether the agent still holds active assignments.
// Caller holds d.mu.
func (d *Dispatcher) agentBusyLocked(agentID string) bool {
	for _, assignment := range d.assignments {
		if assignment.AgentID == agentID {
			return true
		}
	}
	return false
}

func (d *Dispatcher) updateQueueGauges() {
	if d.metrics == nil {
		return
	}
	for priority, count := range d.queue.CountsByPriority() {
		d.metrics.QueueDepth.WithLabelValues(string(priority)).Set(float64(count))
	}
}

// anyAssignable reports whether at least one agent in the pool can currently
// accept work.
func anyAssignable(agents []*types.Agent) bool {
	for _, agent := range agents {
		if agent != nil && agentAssignable(agent) {
			return true
		}
	}
	return false
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
