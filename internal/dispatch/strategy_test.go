package dispatch

import (
	"testing"

	"github.com/Julianb233/ghl-agency-ai-sub004/pkg/types"
)

func TestNewStrategy(t *testing.T) {
	tests := []struct {
		name     string
		wantName string
		wantErr  bool
	}{
		{"", StrategyCapability, false},
		{"capability", StrategyCapability, false},
		{"least_loaded", StrategyLeastLoad, false},
		{"round_robin", StrategyRoundRobin, false},
		{"bogus", "", true},
	}

	for _, tt := range tests {
		strategy, err := NewStrategy(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NewStrategy(%q) expected error, got nil", tt.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("NewStrategy(%q) unexpected error: %v", tt.name, err)
			continue
		}
		if strategy.Name() != tt.wantName {
			t.Errorf("NewStrategy(%q).Name() = %s, want %s", tt.name, strategy.Name(), tt.wantName)
		}
	}
}

func TestCapabilityStrategy_PrefersLightlyLoaded(t *testing.T) {
	// A lightly loaded generalist should beat a heavily loaded specialist
	// when both pass the capability filter.
	light := makeAgent("light", types.AgentStatusIdle, 0.1, "python")
	heavy := makeAgent("heavy", types.AgentStatusBusy, 0.8, "python", "browser")

	task := &types.Task{
		ID:       "t1",
		Priority: types.PriorityNormal,
		Requirements: types.TaskRequirements{
			Capabilities: []string{"python"},
		},
	}

	eligible := FilterCapableAgents(task, []*types.Agent{heavy, light})
	if len(eligible) != 2 {
		t.Fatalf("Expected both agents eligible, got %d", len(eligible))
	}

	selected := (&CapabilityStrategy{}).Select(task, eligible, 0)
	if selected == nil || selected.ID != "light" {
		t.Errorf("Expected light agent selected, got %v", selected)
	}
}

func TestCapabilityStrategy_ScoreWeights(t *testing.T) {
	agent := &types.Agent{
		Health:   1.0,
		Workload: 0.0,
		Metrics:  types.AgentMetrics{SuccessRate: 1.0},
		Capabilities: types.AgentCapabilities{
			Quality:     1.0,
			Reliability: 1.0,
		},
	}

	if score := scoreAgent(agent); score != 100 {
		t.Errorf("Perfect agent should score 100, got %f", score)
	}

	agent.Workload = 1.0
	if score := scoreAgent(agent); score != 80 {
		t.Errorf("Fully loaded perfect agent should score 80, got %f", score)
	}
}

func TestCapabilityStrategy_EmptyPool(t *testing.T) {
	if selected := (&CapabilityStrategy{}).Select(&types.Task{}, nil, 0); selected != nil {
		t.Errorf("Expected nil for empty pool, got %v", selected)
	}
}

func TestLeastLoadedStrategy(t *testing.T) {
	agents := []*types.Agent{
		makeAgent("a", types.AgentStatusBusy, 0.6),
		makeAgent("b", types.AgentStatusIdle, 0.2),
		makeAgent("c", types.AgentStatusBusy, 0.4),
	}

	selected := (&LeastLoadedStrategy{}).Select(&types.Task{}, agents, 0)
	if selected == nil || selected.ID != "b" {
		t.Errorf("Expected least loaded agent b, got %v", selected)
	}
}

func TestLeastLoadedStrategy_TieGoesFirst(t *testing.T) {
	agents := []*types.Agent{
		makeAgent("first", types.AgentStatusIdle, 0.3),
		makeAgent("second", types.AgentStatusIdle, 0.3),
	}

	selected := (&LeastLoadedStrategy{}).Select(&types.Task{}, agents, 0)
	if selected == nil || selected.ID != "first" {
		t.Errorf("Expected tie to go to first agent, got %v", selected)
	}
}

func TestRoundRobinStrategy(t *testing.T) {
	agents := []*types.Agent{
		makeAgent("a", types.AgentStatusIdle, 0),
		makeAgent("b", types.AgentStatusIdle, 0),
		makeAgent("c", types.AgentStatusIdle, 0),
	}

	rr := &RoundRobinStrategy{}
	for i, want := range []string{"a", "b", "c", "a"} {
		selected := rr.Select(&types.Task{}, agents, i)
		if selected.ID != want {
			t.Errorf("Select with %d active assignments = %s, want %s", i, selected.ID, want)
		}
	}
}
