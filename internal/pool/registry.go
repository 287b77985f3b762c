package pool

import (
	"fmt"
	"sync"

	"github.com/Julianb233/ghl-agency-ai-sub004/internal/eventbus"
	"github.com/Julianb233/ghl-agency-ai-sub004/internal/metrics"
	"github.com/Julianb233/ghl-agency-ai-sub004/pkg/types"
)

// Registry owns the live agent pool and is the single writer of live agent
// state. Snapshot and GetAgent hand out copies; the dispatcher commits ledger
// effects back through WithAgent, so every mutation happens under one lock.
type Registry struct {
	agents   map[string]*types.Agent
	eventBus *eventbus.EventBus
	metrics  *metrics.Metrics
	mu       sync.RWMutex

	// onChange is notified (non-blocking) whenever the pool changes in a way
	// that may unblock queued work.
	onChange chan struct{}
}

// NewRegistry creates an empty agent registry.
func NewRegistry(eb *eventbus.EventBus, m *metrics.Metrics) *Registry {
	return &Registry{
		agents:   make(map[string]*types.Agent),
		eventBus: eb,
		metrics:  m,
		onChange: make(chan struct{}, 1),
	}
}

// Register adds an agent to the pool or replaces its registration. The pool
// stores its own copy; the caller keeps ownership of the passed agent.
func (r *Registry) Register(agent *types.Agent) error {
	if agent == nil || agent.ID == "" {
		return fmt.Errorf("agent must have an id")
	}
	if agent.Status == "" {
		agent.Status = types.AgentStatusIdle
	}

	r.mu.Lock()
	r.agents[agent.ID] = agent.Clone()
	r.mu.Unlock()

	if r.eventBus != nil {
		_ = r.eventBus.PublishAgentEvent(eventbus.EventTypeAgentRegistered, agent.ID, "agent-pool", map[string]interface{}{
			"type": string(agent.Type),
		})
	}
	r.updateGauges()
	r.notifyChange()
	return nil
}

// Deregister removes an agent from the pool. In-flight assignments are not
// touched; the dispatcher tolerates completion reports for agents that have
// already left.
func (r *Registry) Deregister(agentID string) {
	r.mu.Lock()
	_, exists := r.agents[agentID]
	delete(r.agents, agentID)
	r.mu.Unlock()

	if exists && r.eventBus != nil {
		_ = r.eventBus.PublishAgentEvent(eventbus.EventTypeAgentDeregistered, agentID, "agent-pool", nil)
	}
	r.updateGauges()
}

// GetAgent returns a copy of the agent state for an id.
func (r *Registry) GetAgent(agentID string) (*types.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, exists := r.agents[agentID]
	if !exists {
		return nil, false
	}
	return agent.Clone(), true
}

// WithAgent runs fn against the live agent under the pool lock and reports
// whether the agent was found. A status transition to idle wakes the
// distribution loop, same as UpdateStatus.
func (r *Registry) WithAgent(agentID string, fn func(*types.Agent)) bool {
	r.mu.Lock()
	agent, exists := r.agents[agentID]
	if !exists {
		r.mu.Unlock()
		return false
	}
	previous := agent.Status
	fn(agent)
	current := agent.Status
	r.mu.Unlock()

	if current != previous {
		r.updateGauges()
		if current == types.AgentStatusIdle {
			r.notifyChange()
		}
	}
	return true
}

// UpdateStatus sets an agent's status from an external liveness signal.
func (r *Registry) UpdateStatus(agentID string, status types.AgentStatus) error {
	r.mu.Lock()
	agent, exists := r.agents[agentID]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("agent %s not registered", agentID)
	}
	previous := agent.Status
	agent.Status = status
	r.mu.Unlock()

	if previous != status && r.eventBus != nil {
		_ = r.eventBus.PublishAgentEvent(eventbus.EventTypeAgentStatusChange, agentID, "agent-pool", map[string]interface{}{
			"from": string(previous),
			"to":   string(status),
		})
	}
	r.updateGauges()
	if status == types.AgentStatusIdle {
		r.notifyChange()
	}
	return nil
}

// UpdateHealth records an external health check result for an agent.
func (r *Registry) UpdateHealth(agentID string, health float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, exists := r.agents[agentID]
	if !exists {
		return fmt.Errorf("agent %s not registered", agentID)
	}
	if health < 0 {
		health = 0
	}
	if health > 1 {
		health = 1
	}
	agent.Health = health
	return nil
}

// Snapshot returns a copy of the current pool. The copies are the caller's
// to read and annotate for one scheduling pass; committing changes back to
// the live pool goes through WithAgent.
func (r *Registry) Snapshot() []*types.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agents := make([]*types.Agent, 0, len(r.agents))
	for _, agent := range r.agents {
		agents = append(agents, agent.Clone())
	}
	return agents
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Changes returns a channel that receives a tick whenever the pool changes
// in a way that may unblock queued work (registration, agent back to idle).
func (r *Registry) Changes() <-chan struct{} {
	return r.onChange
}

func (r *Registry) notifyChange() {
	select {
	case r.onChange <- struct{}{}:
	default:
	}
}

func (r *Registry) updateGauges() {
	if r.metrics == nil {
		return
	}

	counts := map[types.AgentStatus]int{
		types.AgentStatusIdle:    0,
		types.AgentStatusBusy:    0,
		types.AgentStatusOffline: 0,
		types.AgentStatusError:   0,
	}
	r.mu.RLock()
	for _, agent := range r.agents {
		counts[agent.Status]++
	}
	r.mu.RUnlock()

	for status, count := range counts {
		r.metrics.AgentsTotal.WithLabelValues(string(status)).Set(float64(count))
	}
}
