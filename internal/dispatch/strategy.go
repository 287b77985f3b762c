package dispatch

import (
	"fmt"

	"github.com/Julianb233/ghl-agency-ai-sub004/pkg/types"
)

// Strategy names accepted by NewStrategy.
const (
	StrategyCapability = "capability"
	StrategyLeastLoad  = "least_loaded"
	StrategyRoundRobin = "round_robin"
)

// NewStrategy returns the selection strategy with the given name, defaulting
// to capability-based scoring when name is empty.
func NewStrategy(name string) (types.SelectionStrategy, error) {
	switch name {
	case "", StrategyCapability:
		return &CapabilityStrategy{}, nil
	case StrategyLeastLoad:
		return &LeastLoadedStrategy{}, nil
	case StrategyRoundRobin:
		return &RoundRobinStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown selection strategy: %s", name)
	}
}

// CapabilityStrategy scores every eligible agent as a weighted sum over
// health, historical success rate, available capacity, quality and
// reliability (max 100) and picks the highest. Ties go to the first-seen
// agent in pool order; that non-determinism under ties is accepted.
type CapabilityStrategy struct{}

// Name returns the strategy identifier.
func (s *CapabilityStrategy) Name() string { return StrategyCapability }

// Select picks the highest-scoring agent, or nil for an empty pool.
func (s *CapabilityStrategy) Select(task *types.Task, agents []*types.Agent, activeAssignments int) *types.Agent {
	var best *types.Agent
	bestScore := -1.0
	for _, agent := range agents {
		if agent == nil {
			continue
		}
		score := scoreAgent(agent)
		if score > bestScore {
			best = agent
			bestScore = score
		}
	}
	return best
}

func scoreAgent(agent *types.Agent) float64 {
	return agent.Health*30 +
		agent.Metrics.SuccessRate*25 +
		(1-agent.Workload)*20 +
		agent.Capabilities.Quality*15 +
		agent.Capabilities.Reliability*10
}

// LeastLoadedStrategy picks the agent with the numerically smallest
// workload; ties go to the first-seen agent in pool order.
type LeastLoadedStrategy struct{}

// Name returns the strategy identifier.
func (s *LeastLoadedStrategy) Name() string { return StrategyLeastLoad }

// Select picks the least-loaded agent, or nil for an empty pool.
func (s *LeastLoadedStrategy) Select(task *types.Task, agents []*types.Agent, activeAssignments int) *types.Agent {
	var best *types.Agent
	for _, agent := range agents {
		if agent == nil {
			continue
		}
		if best == nil || agent.Workload < best.Workload {
			best = agent
		}
	}
	return best
}

// RoundRobinStrategy rotates through the pool keyed off the current size of
// the active assignment ledger rather than a monotonic counter. Fairness
// degrades as assignments complete and the ledger shrinks; that is an
// accepted simplification for a strategy whose purpose is simplicity.
type RoundRobinStrategy struct{}

// Name returns the strategy identifier.
func (s *RoundRobinStrategy) Name() string { return StrategyRoundRobin }

// Select picks agents[activeAssignments mod len(agents)], or nil for an
// empty pool.
func (s *RoundRobinStrategy) Select(task *types.Task, agents []*types.Agent, activeAssignments int) *types.Agent {
	if len(agents) == 0 {
		return nil
	}
	return agents[activeAssignments%len(agents)]
}
