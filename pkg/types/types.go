package types

import (
	"strings"
	"time"
)

// Priority is the scheduling tier of a task. Lower rank dispatches first.
type Priority string

const (
	PriorityCritical   Priority = "critical"
	PriorityHigh       Priority = "high"
	PriorityNormal     Priority = "normal"
	PriorityLow        Priority = "low"
	PriorityBackground Priority = "background"
)

// Priorities lists all tiers in dispatch order.
var Priorities = []Priority{
	PriorityCritical,
	PriorityHigh,
	PriorityNormal,
	PriorityLow,
	PriorityBackground,
}

// Rank returns the numeric severity of a priority tier; critical is 0.
// Unknown tiers sort after background.
func (p Priority) Rank() int {
	for i, known := range Priorities {
		if p == known {
			return i
		}
	}
	return len(Priorities)
}

// Valid reports whether p is a known priority tier.
func (p Priority) Valid() bool {
	return p.Rank() < len(Priorities)
}

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusAssigned   TaskStatus = "assigned"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// TaskRequirements narrows which agents may execute a task.
type TaskRequirements struct {
	Capabilities      []string      `json:"capabilities,omitempty"`
	AgentType         AgentType     `json:"agent_type,omitempty"`
	EstimatedDuration time.Duration `json:"estimated_duration,omitempty"`
}

// Task represents a unit of requested work.
type Task struct {
	ID            string           `json:"id"`
	Description   string           `json:"description,omitempty"`
	UserID        string           `json:"user_id,omitempty"` // originating user, consulted by the permission gate
	Priority      Priority         `json:"priority"`
	Requirements  TaskRequirements `json:"requirements"`
	Status        TaskStatus       `json:"status"`
	AssignedAgent string           `json:"assigned_agent,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	Result        *TaskResult      `json:"result,omitempty"`
}

// TaskResult represents the outcome reported by the execution layer.
type TaskResult struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// AgentType represents different classes of agents.
type AgentType string

const (
	AgentTypeBrowser  AgentType = "browser"
	AgentTypeResearch AgentType = "research"
	AgentTypeWorkflow AgentType = "workflow"
	AgentTypeGeneral  AgentType = "general"
)

// AgentStatus represents the current state of an agent.
type AgentStatus string

const (
	AgentStatusIdle    AgentStatus = "idle"
	AgentStatusBusy    AgentStatus = "busy"
	AgentStatusOffline AgentStatus = "offline"
	AgentStatusError   AgentStatus = "error"
)

// AgentCapabilities declares what an agent can do and how well.
type AgentCapabilities struct {
	Languages          []string `json:"languages,omitempty"`
	Frameworks         []string `json:"frameworks,omitempty"`
	Domains            []string `json:"domains,omitempty"`
	Tools              []string `json:"tools,omitempty"`
	Quality            float64  `json:"quality"`     // [0,1]
	Reliability        float64  `json:"reliability"` // [0,1]
	MaxConcurrentTasks int      `json:"max_concurrent_tasks"`
}

// AllTags returns every capability tag across all capability sets.
func (c AgentCapabilities) AllTags() []string {
	tags := make([]string, 0, len(c.Languages)+len(c.Frameworks)+len(c.Domains)+len(c.Tools))
	tags = append(tags, c.Languages...)
	tags = append(tags, c.Frameworks...)
	tags = append(tags, c.Domains...)
	tags = append(tags, c.Tools...)
	return tags
}

// Satisfies reports whether some tag in the agent's combined capability
// sets contains the required tag, case-insensitively. Substring containment
// is deliberate: capability taxonomies evolve, and a superset tag like
// "python-data" should satisfy a request for "python".
func (c AgentCapabilities) Satisfies(required string) bool {
	required = strings.ToLower(required)
	for _, tag := range c.AllTags() {
		if strings.Contains(strings.ToLower(tag), required) {
			return true
		}
	}
	return false
}

// AgentMetrics tracks an agent's historical execution record.
type AgentMetrics struct {
	TasksCompleted int           `json:"tasks_completed"`
	TasksFailed    int           `json:"tasks_failed"`
	SuccessRate    float64       `json:"success_rate"` // rolling [0,1]
	AvgDuration    time.Duration `json:"avg_duration,omitempty"`
}

// Agent represents an autonomous worker's live state. It is owned by the
// orchestration layer; tasks reference agents but never own them.
type Agent struct {
	ID           string            `json:"id"`
	Name         string            `json:"name,omitempty"`
	Type         AgentType         `json:"type"`
	Status       AgentStatus       `json:"status"`
	Workload     float64           `json:"workload"` // [0,1]
	Health       float64           `json:"health"`   // [0,1], external liveness signal
	Capabilities AgentCapabilities `json:"capabilities"`
	Metrics      AgentMetrics      `json:"metrics"`
	ActiveTasks  int               `json:"active_tasks"`
}

// RemainingSlots returns how many more concurrent tasks the agent can take.
func (a *Agent) RemainingSlots() int {
	return a.Capabilities.MaxConcurrentTasks - a.ActiveTasks
}

// Clone returns a deep copy of the agent, safe to read or annotate without
// holding the pool lock.
func (a *Agent) Clone() *Agent {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Capabilities.Languages = append([]string(nil), a.Capabilities.Languages...)
	clone.Capabilities.Frameworks = append([]string(nil), a.Capabilities.Frameworks...)
	clone.Capabilities.Domains = append([]string(nil), a.Capabilities.Domains...)
	clone.Capabilities.Tools = append([]string(nil), a.Capabilities.Tools...)
	return &clone
}

// Assignment is the live binding of one task to one agent while work is in
// flight. Priority is copied from the task at assignment time, not live.
type Assignment struct {
	TaskID            string        `json:"task_id"`
	AgentID           string        `json:"agent_id"`
	AssignedAt        time.Time     `json:"assigned_at"`
	Priority          Priority      `json:"priority"`
	EstimatedDuration time.Duration `json:"estimated_duration,omitempty"`
}

// SelectionStrategy picks one agent from a pool of eligible candidates.
// activeAssignments is the current size of the active assignment ledger.
type SelectionStrategy interface {
	Select(task *Task, agents []*Agent, activeAssignments int) *Agent
	Name() string
}
