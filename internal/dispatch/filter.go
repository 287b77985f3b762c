package dispatch

import (
	"github.com/Julianb233/ghl-agency-ai-sub004/pkg/types"
)

// workloadHeadroom is the capacity reservation threshold. Agents at or above
// it are excluded from new assignments even though their workload may still
// be below 1.0, so a completing task briefly overlapping a new one does not
// overload the agent.
const workloadHeadroom = 0.9

// FilterCapableAgents returns the subset of agents eligible to execute the
// task. Failing any predicate excludes the agent silently; an empty result
// is a normal, expected scheduling outcome, not an error.
func FilterCapableAgents(task *types.Task, agents []*types.Agent) []*types.Agent {
	if task == nil {
		return nil
	}

	eligible := make([]*types.Agent, 0, len(agents))
	for _, agent := range agents {
		if agent == nil {
			continue
		}
		if !agentAssignable(agent) {
			continue
		}
		if task.Requirements.AgentType != "" && agent.Type != task.Requirements.AgentType {
			continue
		}
		if !satisfiesAll(agent, task.Requirements.Capabilities) {
			continue
		}
		eligible = append(eligible, agent)
	}
	return eligible
}

// agentAssignable reports whether an agent can take on any new work at all:
// online, below the workload headroom and with a free concurrency slot.
func agentAssignable(agent *types.Agent) bool {
	if agent.Status != types.AgentStatusIdle && agent.Status != types.AgentStatusBusy {
		return false
	}
	if agent.Workload >= workloadHeadroom {
		return false
	}
	return agent.RemainingSlots() > 0
}

func satisfiesAll(agent *types.Agent, required []string) bool {
	for _, tag := range required {
		if !agent.Capabilities.Satisfies(tag) {
			return false
		}
	}
	return true
}
