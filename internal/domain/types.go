package domain

import (
	"encoding/json"
	"time"
)

// AgentState mirrors the execution lifecycle of one planning agent.
type AgentState string

const (
	AgentStateIdle    AgentState = "idle"
	AgentStateRunning AgentState = "running"
	AgentStateSuccess AgentState = "success"
	AgentStateFailure AgentState = "failure"
)

type EventKind string

const (
	EventKindGoalSelected    EventKind = "goal_selected"
	EventKindPlanEmitted     EventKind = "plan_emitted"
	EventKindPlanAdopted     EventKind = "plan_adopted"
	EventKindPlanInvalidated EventKind = "plan_invalidated"
	EventKindTaskStarted     EventKind = "task_started"
	EventKindTaskCompleted   EventKind = "task_completed"
	EventKindTaskFailed      EventKind = "task_failed"
)

// PlanRecord is a persisted plan for one (agent, goal) pair. Tasks holds
// primitive task names in execution order, ready to replay without the
// search state that produced them.
type PlanRecord struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	GoalName  string    `json:"goal_name"`
	Tasks     []string  `json:"tasks"`
	Cost      float64   `json:"cost"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlanningEvent is one row of the append-only planning audit log.
type PlanningEvent struct {
	ID        int64           `json:"id"`
	AgentID   string          `json:"agent_id"`
	Kind      EventKind       `json:"kind"`
	GoalName  string          `json:"goal_name,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AgentSnapshot is the externally visible state of an agent, served over the
// HTTP API and rendered by the monitor.
type AgentSnapshot struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Priority      int        `json:"priority"`
	Goal          string     `json:"goal,omitempty"`
	State         AgentState `json:"state"`
	CurrentTask   string     `json:"current_task,omitempty"`
	PlanRemaining []string   `json:"plan_remaining,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Event is the in-process bus envelope. AgentID addresses the recipient;
// empty Kind is never published.
type Event struct {
	AgentID   string          `json:"agent_id"`
	Kind      EventKind       `json:"kind"`
	GoalName  string          `json:"goal_name,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// PlanPayload is the JSON body attached to plan_emitted and plan_adopted
// events.
type PlanPayload struct {
	GoalName string   `json:"goal_name"`
	Tasks    []string `json:"tasks"`
	Cost     float64  `json:"cost"`
}

// InvalidatePayload is attached to plan_invalidated events so consumers know
// which goal's plan to discard.
type InvalidatePayload struct {
	GoalName string `json:"goal_name"`
	Reason   string `json:"reason,omitempty"`
}
