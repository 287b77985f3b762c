package pool

import (
	"testing"

	"github.com/Julianb233/ghl-agency-ai-sub004/pkg/types"
)

func TestRegisterAndGet(t *testing.T) {
	reg := NewRegistry(nil, nil)

	agent := &types.Agent{ID: "a1", Type: types.AgentTypeBrowser}
	if err := reg.Register(agent); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	got, ok := reg.GetAgent("a1")
	if !ok {
		t.Fatal("GetAgent() did not find registered agent")
	}
	if got.Status != types.AgentStatusIdle {
		t.Errorf("Expected default status idle, got %s", got.Status)
	}
	if reg.Len() != 1 {
		t.Errorf("Expected 1 agent, got %d", reg.Len())
	}
}

func TestRegisterRequiresID(t *testing.T) {
	reg := NewRegistry(nil, nil)

	if err := reg.Register(&types.Agent{}); err == nil {
		t.Error("Expected error for agent without id")
	}
	if err := reg.Register(nil); err == nil {
		t.Error("Expected error for nil agent")
	}
}

func TestDeregister(t *testing.T) {
	reg := NewRegistry(nil, nil)

	_ = reg.Register(&types.Agent{ID: "a1"})
	reg.Deregister("a1")

	if _, ok := reg.GetAgent("a1"); ok {
		t.Error("Expected agent removed")
	}

	// Deregistering twice is harmless
	reg.Deregister("a1")
}

func TestUpdateStatus(t *testing.T) {
	reg := NewRegistry(nil, nil)
	_ = reg.Register(&types.Agent{ID: "a1"})

	if err := reg.UpdateStatus("a1", types.AgentStatusOffline); err != nil {
		t.Fatalf("UpdateStatus() error: %v", err)
	}
	agent, _ := reg.GetAgent("a1")
	if agent.Status != types.AgentStatusOffline {
		t.Errorf("Expected offline, got %s", agent.Status)
	}

	if err := reg.UpdateStatus("missing", types.AgentStatusIdle); err == nil {
		t.Error("Expected error for unknown agent")
	}
}

func TestUpdateHealthClamps(t *testing.T) {
	reg := NewRegistry(nil, nil)
	_ = reg.Register(&types.Agent{ID: "a1"})

	_ = reg.UpdateHealth("a1", 1.7)
	agent, _ := reg.GetAgent("a1")
	if agent.Health != 1.0 {
		t.Errorf("Expected health clamped to 1.0, got %f", agent.Health)
	}

	_ = reg.UpdateHealth("a1", -0.3)
	agent, _ = reg.GetAgent("a1")
	if agent.Health != 0 {
		t.Errorf("Expected health clamped to 0, got %f", agent.Health)
	}
}

func TestChangesNotification(t *testing.T) {
	reg := NewRegistry(nil, nil)

	_ = reg.Register(&types.Agent{ID: "a1"})

	select {
	case <-reg.Changes():
	default:
		t.Fatal("Expected change notification after registration")
	}

	// Back-to-idle transitions also notify
	_ = reg.UpdateStatus("a1", types.AgentStatusBusy)
	select {
	case <-reg.Changes():
		t.Fatal("Busy transition must not notify")
	default:
	}

	_ = reg.UpdateStatus("a1", types.AgentStatusIdle)
	select {
	case <-reg.Changes():
	default:
		t.Fatal("Expected change notification on idle transition")
	}
}

func TestSnapshot(t *testing.T) {
	reg := NewRegistry(nil, nil)
	_ = reg.Register(&types.Agent{ID: "a1"})
	_ = reg.Register(&types.Agent{ID: "a2"})

	snapshot := reg.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("Expected 2 agents in snapshot, got %d", len(snapshot))
	}

	reg.Deregister("a1")
	if len(snapshot) != 2 {
		t.Error("Snapshot must not shrink after deregistration")
	}

	// Snapshot agents are copies; annotating them never touches the pool
	for _, agent := range snapshot {
		agent.Status = types.AgentStatusError
		agent.Workload = 0.7
	}
	live, _ := reg.GetAgent("a2")
	if live.Status != types.AgentStatusIdle || live.Workload != 0 {
		t.Errorf("Snapshot mutation leaked into live state: %+v", live)
	}
}

func TestGetAgentReturnsCopy(t *testing.T) {
	reg := NewRegistry(nil, nil)
	_ = reg.Register(&types.Agent{ID: "a1", Capabilities: types.AgentCapabilities{Tools: []string{"browser"}}})

	got, _ := reg.GetAgent("a1")
	got.Status = types.AgentStatusOffline
	got.Capabilities.Tools[0] = "mutated"

	live, _ := reg.GetAgent("a1")
	if live.Status != types.AgentStatusIdle {
		t.Errorf("Expected live status untouched, got %s", live.Status)
	}
	if live.Capabilities.Tools[0] != "browser" {
		t.Errorf("Expected live capabilities untouched, got %v", live.Capabilities.Tools)
	}
}

func TestWithAgent(t *testing.T) {
	reg := NewRegistry(nil, nil)
	_ = reg.Register(&types.Agent{ID: "a1", Status: types.AgentStatusBusy})
	<-reg.Changes() // drain the registration tick

	if reg.WithAgent("missing", func(a *types.Agent) {}) {
		t.Error("Expected false for unknown agent")
	}

	ok := reg.WithAgent("a1", func(a *types.Agent) {
		a.Workload = 0.4
		a.ActiveTasks = 2
	})
	if !ok {
		t.Fatal("WithAgent() did not find registered agent")
	}
	live, _ := reg.GetAgent("a1")
	if live.Workload != 0.4 || live.ActiveTasks != 2 {
		t.Errorf("Mutation not committed: %+v", live)
	}

	// No status change, no wakeup
	select {
	case <-reg.Changes():
		t.Fatal("Workload-only mutation must not notify")
	default:
	}

	// Idle transitions wake the distribution loop like UpdateStatus does
	_ = reg.WithAgent("a1", func(a *types.Agent) {
		a.Status = types.AgentStatusIdle
	})
	select {
	case <-reg.Changes():
	default:
		t.Fatal("Expected change notification on idle transition")
	}
}
