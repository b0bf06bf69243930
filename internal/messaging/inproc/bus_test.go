package inproc

import (
	"errors"
	"testing"

	"planforge/internal/domain"
)

func TestPublishToRegisteredAgent(t *testing.T) {
	bus := New(4)
	ch := bus.Register("agent-1")

	evt := domain.Event{AgentID: "agent-1", Kind: domain.EventKindPlanInvalidated, GoalName: "Enter room B"}
	if err := bus.Publish(evt); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	got := <-ch
	if got.Kind != domain.EventKindPlanInvalidated || got.GoalName != "Enter room B" {
		t.Fatalf("received %+v", got)
	}
}

func TestPublishToUnknownAgent(t *testing.T) {
	bus := New(4)
	err := bus.Publish(domain.Event{AgentID: "nobody", Kind: domain.EventKindPlanEmitted})
	if !errors.Is(err, ErrAgentNotRegistered) {
		t.Fatalf("err = %v, want ErrAgentNotRegistered", err)
	}
}

func TestPublishFullQueue(t *testing.T) {
	bus := New(1)
	bus.Register("agent-1")

	if err := bus.Publish(domain.Event{AgentID: "agent-1", Kind: domain.EventKindPlanEmitted}); err != nil {
		t.Fatalf("first publish failed: %v", err)
	}
	err := bus.Publish(domain.Event{AgentID: "agent-1", Kind: domain.EventKindPlanEmitted})
	if !errors.Is(err, ErrAgentQueueFull) {
		t.Fatalf("err = %v, want ErrAgentQueueFull", err)
	}
}

func TestUnregisterClosesChannel(t *testing.T) {
	bus := New(4)
	ch := bus.Register("agent-1")
	bus.Unregister("agent-1")

	if _, open := <-ch; open {
		t.Fatalf("channel still open after unregister")
	}
	if err := bus.Publish(domain.Event{AgentID: "agent-1"}); !errors.Is(err, ErrAgentNotRegistered) {
		t.Fatalf("err = %v, want ErrAgentNotRegistered after unregister", err)
	}
}
