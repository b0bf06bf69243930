package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"planforge/internal/domain"
)

func TestPlanUpsertPerAgentGoal(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	agentID := uuid.NewString()
	if err := store.UpsertAgent(ctx, domain.AgentSnapshot{
		ID:       agentID,
		Name:     "walker",
		Priority: 1,
		State:    domain.AgentStateIdle,
	}); err != nil {
		t.Fatalf("upsert agent: %v", err)
	}

	record := domain.PlanRecord{
		ID:       uuid.NewString(),
		AgentID:  agentID,
		GoalName: "Enter room B",
		Tasks:    []string{"goto_door", "open_door", "walk_thru_door"},
		Cost:     3,
	}
	if err := store.SavePlan(ctx, record); err != nil {
		t.Fatalf("save plan: %v", err)
	}

	// A cheaper plan for the same goal replaces the row instead of adding one.
	record.ID = uuid.NewString()
	record.Tasks = []string{"teleport"}
	record.Cost = 1
	if err := store.SavePlan(ctx, record); err != nil {
		t.Fatalf("save replacement plan: %v", err)
	}

	plans, err := store.ListPlans(ctx, agentID)
	if err != nil {
		t.Fatalf("list plans: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("expected one plan row per goal, got %d", len(plans))
	}
	if plans[0].Cost != 1 || len(plans[0].Tasks) != 1 || plans[0].Tasks[0] != "teleport" {
		t.Fatalf("replacement not applied: %+v", plans[0])
	}

	got, err := store.GetPlan(ctx, agentID, "Enter room B")
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if got.Cost != 1 {
		t.Fatalf("get plan cost = %v, want 1", got.Cost)
	}
}

func TestDeletePlanAndNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	agentID := uuid.NewString()
	if err := store.UpsertAgent(ctx, domain.AgentSnapshot{ID: agentID, Name: "walker", State: domain.AgentStateIdle}); err != nil {
		t.Fatalf("upsert agent: %v", err)
	}
	if err := store.SavePlan(ctx, domain.PlanRecord{
		ID:       uuid.NewString(),
		AgentID:  agentID,
		GoalName: "Patrol",
		Tasks:    []string{"walk"},
		Cost:     1,
	}); err != nil {
		t.Fatalf("save plan: %v", err)
	}

	if err := store.DeletePlan(ctx, agentID, "Patrol"); err != nil {
		t.Fatalf("delete plan: %v", err)
	}
	if _, err := store.GetPlan(ctx, agentID, "Patrol"); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("err = %v, want ErrPlanNotFound", err)
	}
}

func TestAgentSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	agentID := uuid.NewString()
	snap := domain.AgentSnapshot{
		ID:            agentID,
		Name:          "walker",
		Priority:      3,
		Goal:          "Enter room B",
		State:         domain.AgentStateRunning,
		CurrentTask:   "open_door",
		PlanRemaining: []string{"walk_thru_door"},
		UpdatedAt:     time.Now().UTC(),
	}
	if err := store.UpsertAgent(ctx, snap); err != nil {
		t.Fatalf("upsert agent: %v", err)
	}

	agents, err := store.ListAgents(ctx)
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	if len(agents) != 1 {
		t.Fatalf("expected one agent, got %d", len(agents))
	}
	got := agents[0]
	if got.State != domain.AgentStateRunning || got.CurrentTask != "open_door" {
		t.Fatalf("snapshot mismatch: %+v", got)
	}
	if len(got.PlanRemaining) != 1 || got.PlanRemaining[0] != "walk_thru_door" {
		t.Fatalf("plan remaining mismatch: %v", got.PlanRemaining)
	}
}

func TestAgentListOrderedByPriority(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	for i, name := range []string{"gamma", "alpha", "beta"} {
		if err := store.UpsertAgent(ctx, domain.AgentSnapshot{
			ID:       uuid.NewString(),
			Name:     name,
			Priority: 3 - i,
			State:    domain.AgentStateIdle,
		}); err != nil {
			t.Fatalf("upsert agent %s: %v", name, err)
		}
	}

	agents, err := store.ListAgents(ctx)
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	if agents[0].Name != "beta" || agents[1].Name != "alpha" || agents[2].Name != "gamma" {
		t.Fatalf("unexpected order: %s %s %s", agents[0].Name, agents[1].Name, agents[2].Name)
	}
}

func TestEventLogNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	agentID := uuid.NewString()
	kinds := []domain.EventKind{
		domain.EventKindGoalSelected,
		domain.EventKindPlanEmitted,
		domain.EventKindPlanAdopted,
		domain.EventKindTaskStarted,
	}
	for _, kind := range kinds {
		if err := store.LogEvent(ctx, domain.PlanningEvent{
			AgentID:  agentID,
			Kind:     kind,
			GoalName: "Enter room B",
		}); err != nil {
			t.Fatalf("log event %s: %v", kind, err)
		}
	}

	events, err := store.ListEvents(ctx, agentID, 2)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("limit not applied: got %d events", len(events))
	}
	if events[0].Kind != domain.EventKindTaskStarted {
		t.Fatalf("newest event = %s, want task_started", events[0].Kind)
	}

	other, err := store.ListEvents(ctx, uuid.NewString(), 10)
	if err != nil {
		t.Fatalf("list events for other agent: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("events leaked across agents: %d", len(other))
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		t.Fatalf("migrate store: %v", err)
	}
	return store
}
