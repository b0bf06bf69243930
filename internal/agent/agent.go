// Package agent binds a searcher, a goal policy, and an execution cursor
// into one planning agent. The orchestrator drives agents; an Agent never
// spawns goroutines of its own.
package agent

import (
	"log"
	"time"

	"github.com/google/uuid"

	"planforge/internal/catalog"
	"planforge/internal/domain"
	"planforge/internal/facts"
	"planforge/internal/planning"
)

// Agent owns the planning and execution state for one actor. Not safe for
// concurrent use; the orchestrator serializes access.
type Agent struct {
	id       string
	name     string
	priority int

	tasks   []catalog.Task
	goals   []planning.Goal
	policy  planning.Policy
	overlay *facts.World

	searcher *planning.Searcher
	goal     string
	plan     []string // execution stack, pop from the tail
	current  string
	state    domain.AgentState

	logger *log.Logger
}

// New creates an idle agent. Priority orders agents within a tick; lower
// runs first.
func New(name string, priority int, logger *log.Logger) *Agent {
	if logger == nil {
		logger = log.Default()
	}
	return &Agent{
		id:       uuid.NewString(),
		name:     name,
		priority: priority,
		policy:   planning.TopPolicy(),
		overlay:  facts.NewWorld(),
		state:    domain.AgentStateIdle,
		logger:   logger,
	}
}

func (a *Agent) ID() string { return a.id }

func (a *Agent) Name() string { return a.name }

func (a *Agent) Priority() int { return a.priority }

func (a *Agent) State() domain.AgentState { return a.state }

func (a *Agent) CurrentTask() string { return a.current }

func (a *Agent) CurrentGoal() string { return a.goal }

// AddTask makes a task available to this agent's planner. Adding a task
// resets the searcher so the next cycle sees the widened catalog.
func (a *Agent) AddTask(task catalog.Task) {
	a.tasks = append(a.tasks, task)
	a.searcher = nil
}

// AddGoal registers a candidate goal.
func (a *Agent) AddGoal(goal planning.Goal) {
	a.goals = append(a.goals, goal)
	a.searcher = nil
}

// SetPolicy replaces the goal-selection policy. A nil policy restores the
// default.
func (a *Agent) SetPolicy(p planning.Policy) {
	if p == nil {
		p = planning.TopPolicy()
	}
	a.policy = p
}

// Overlay returns the agent's private fact layer. Facts set here shadow the
// shared world during this agent's planning only.
func (a *Agent) Overlay() *facts.World {
	return a.overlay
}

// PlanRemaining lists the primitive steps not yet executed, first-to-run
// last, matching the stored stack layout.
func (a *Agent) PlanRemaining() []string {
	return append([]string(nil), a.plan...)
}

// Snapshot renders the agent for the HTTP API and monitor.
func (a *Agent) Snapshot() domain.AgentSnapshot {
	return domain.AgentSnapshot{
		ID:            a.id,
		Name:          a.name,
		Priority:      a.priority,
		Goal:          a.goal,
		State:         a.state,
		CurrentTask:   a.current,
		PlanRemaining: a.PlanRemaining(),
		UpdatedAt:     time.Now().UTC(),
	}
}

// View merges the shared world with this agent's overlay, the overlay
// winning on conflicts.
func (a *Agent) View(shared *facts.World) *facts.World {
	if a.overlay.Len() == 0 {
		return shared
	}
	return shared.Concat(a.overlay)
}

// Plan runs one planning slice against the agent's view of the world and
// reports whether a new plan became available for the selected goal. The
// searcher persists across calls, so interrupted searches resume where they
// stopped.
func (a *Agent) Plan(reg *catalog.Registry, shared *facts.World, budget time.Duration, depthLimit int) (planning.Plan, bool) {
	view := a.View(shared)
	goal, ok := a.policy.NextGoal(a.goals, view)
	if !ok {
		return planning.Plan{}, false
	}
	if a.searcher == nil || a.goal != goal.Name {
		a.searcher = planning.NewSearcher(a.tasks, []planning.Goal{goal})
		a.goal = goal.Name
	}

	before, had := a.searcher.Plan(goal.Name)
	a.searcher.GenerateForDuration(reg, view, budget, depthLimit)
	after, ok := a.searcher.Plan(goal.Name)
	if !ok {
		return planning.Plan{}, false
	}
	if had && after.Cost == before.Cost && after.Len() == before.Len() {
		return planning.Plan{}, false
	}
	return after, true
}

// Adopt replaces the execution stack with the given plan and marks the
// agent running. An in-progress task is deactivated first.
func (a *Agent) Adopt(reg *catalog.Registry, plan planning.Plan, target any) {
	a.deactivateCurrent(reg, target)
	a.plan = plan.ExecutionStack()
	a.state = domain.AgentStateRunning
	a.logger.Printf("agent %s adopted plan for %q: %d steps, cost %.2f", a.name, a.goal, len(a.plan), plan.Cost)
}

// Step advances execution by one transition. While a task is active nothing
// happens until the host reports its outcome; otherwise the next step is
// popped and activated. An empty stack with no active task means success.
func (a *Agent) Step(reg *catalog.Registry, target any) {
	if a.state != domain.AgentStateRunning || a.current != "" {
		return
	}
	if len(a.plan) == 0 {
		a.state = domain.AgentStateSuccess
		a.logger.Printf("agent %s completed plan for %q", a.name, a.goal)
		return
	}

	next := a.plan[len(a.plan)-1]
	a.plan = a.plan[:len(a.plan)-1]
	a.current = next
	if d, ok := reg.Lookup(next); ok {
		d.Activate(target)
	}
	a.logger.Printf("agent %s started task %s", a.name, next)
}

// ReportSuccess marks the active task done and clears the cursor so the
// next Step activates the following one.
func (a *Agent) ReportSuccess(reg *catalog.Registry, target any) {
	if a.current == "" {
		return
	}
	if d, ok := reg.Lookup(a.current); ok {
		d.Deactivate(target)
	}
	a.logger.Printf("agent %s finished task %s", a.name, a.current)
	a.current = ""
}

// ReportFailure aborts the plan: the active task is deactivated, the
// remaining stack is purged, and the agent lands in the failure state until
// the next adoption.
func (a *Agent) ReportFailure(reg *catalog.Registry, target any) {
	a.logger.Printf("agent %s failed task %s, purging %d remaining steps", a.name, a.current, len(a.plan))
	a.deactivateCurrent(reg, target)
	a.plan = nil
	a.state = domain.AgentStateFailure
}

// Invalidate discards the stored plan for goalName along with any
// in-progress execution of it, typically in response to a plan_invalidated
// bus event.
func (a *Agent) Invalidate(reg *catalog.Registry, goalName string, target any) {
	if a.searcher != nil {
		a.searcher.Invalidate(goalName)
	}
	if a.goal == goalName {
		a.deactivateCurrent(reg, target)
		a.plan = nil
		a.state = domain.AgentStateIdle
	}
}

func (a *Agent) deactivateCurrent(reg *catalog.Registry, target any) {
	if a.current == "" {
		return
	}
	if d, ok := reg.Lookup(a.current); ok {
		d.Deactivate(target)
	}
	a.current = ""
}
