package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"planforge/internal/agent"
	"planforge/internal/catalog"
	"planforge/internal/domain"
	"planforge/internal/facts"
)

type Store interface {
	UpsertAgent(ctx context.Context, snap domain.AgentSnapshot) error
	ListAgents(ctx context.Context) ([]domain.AgentSnapshot, error)
	SavePlan(ctx context.Context, record domain.PlanRecord) error
	GetPlan(ctx context.Context, agentID, goalName string) (domain.PlanRecord, error)
	ListPlans(ctx context.Context, agentID string) ([]domain.PlanRecord, error)
	DeletePlan(ctx context.Context, agentID, goalName string) error
	LogEvent(ctx context.Context, event domain.PlanningEvent) error
	ListEvents(ctx context.Context, agentID string, limit int) ([]domain.PlanningEvent, error)
}

type Bus interface {
	Register(agentID string) <-chan domain.Event
	Unregister(agentID string)
	Publish(evt domain.Event) error
}

type Config struct {
	// TickInterval is the pause between planning cycles.
	TickInterval time.Duration
	// FrameBudget bounds the total planning time spent per tick across all
	// agents. Zero means unbounded.
	FrameBudget time.Duration
	// DepthLimit caps search depth per agent. Zero means unlimited.
	DepthLimit int
	// DisablePrioritySort keeps agents in registration order instead of
	// priority order.
	DisablePrioritySort bool
	// AutoExecute completes each started task in the same tick, applying
	// its postconditions to the shared world. Hosts that drive real
	// executors leave this off and call CompleteTask/FailTask themselves.
	AutoExecute bool
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 250 * time.Millisecond
	}
	if c.FrameBudget < 0 {
		c.FrameBudget = 0
	}
	return c
}

// Service drives all agents through plan/adopt/execute cycles against one
// shared world and task registry.
type Service struct {
	store  Store
	bus    Bus
	cfg    Config
	logger *log.Logger

	mu       sync.Mutex
	registry *catalog.Registry
	world    *facts.World
	agents   []*agent.Agent
	inboxes  map[string]<-chan domain.Event

	wg sync.WaitGroup
}

func New(store Store, bus Bus, registry *catalog.Registry, world *facts.World, cfg Config, logger *log.Logger) *Service {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Default()
	}
	if registry == nil {
		registry = catalog.NewRegistry()
	}
	if world == nil {
		world = facts.NewWorld()
	}
	return &Service{
		store:    store,
		bus:      bus,
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		world:    world,
		inboxes:  make(map[string]<-chan domain.Event),
	}
}

// AddAgent registers an agent with the service, subscribes it to
// invalidation events, and persists its initial snapshot so plan rows can
// reference it from the first tick.
func (s *Service) AddAgent(a *agent.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents = append(s.agents, a)
	s.inboxes[a.ID()] = s.bus.Register(a.ID())
	if err := s.store.UpsertAgent(context.Background(), a.Snapshot()); err != nil {
		s.logger.Printf("upsert agent %s: %v", a.Name(), err)
	}
}

func (s *Service) Registry() *catalog.Registry {
	return s.registry
}

// SetFact writes a fact into the shared world. Plans derived from the old
// value are not touched; callers decide whether to invalidate.
func (s *Service) SetFact(key string, value facts.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.world.Set(key, value)
}

// WorldDescription renders the shared world for the HTTP API.
func (s *Service) WorldDescription() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Describe()
}

func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.tickLoop(ctx)
	}()
}

func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.TickOnce(ctx)
		}
	}
}

// TickOnce runs one full planning cycle: drain invalidation events, then
// give each agent a planning slice and one execution transition, stopping
// early when the frame budget runs out.
func (s *Service) TickOnce(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drainInboxes(ctx)

	ordered := make([]*agent.Agent, len(s.agents))
	copy(ordered, s.agents)
	if !s.cfg.DisablePrioritySort {
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Priority() < ordered[j].Priority()
		})
	}

	start := time.Now()
	for _, a := range ordered {
		slice := s.cfg.FrameBudget
		if slice > 0 {
			slice -= time.Since(start)
			if slice <= 0 {
				break
			}
		}
		s.cycleAgent(ctx, a, slice)
	}
}

func (s *Service) cycleAgent(ctx context.Context, a *agent.Agent, slice time.Duration) {
	if plan, ok := a.Plan(s.registry, s.world, slice, s.cfg.DepthLimit); ok {
		record := domain.PlanRecord{
			ID:       uuid.NewString(),
			AgentID:  a.ID(),
			GoalName: a.CurrentGoal(),
			Tasks:    executionOrder(plan.ExecutionStack()),
			Cost:     plan.Cost,
		}
		if err := s.store.SavePlan(ctx, record); err != nil {
			s.logger.Printf("save plan agent=%s goal=%q: %v", a.Name(), record.GoalName, err)
		}
		s.logEvent(ctx, a.ID(), domain.EventKindPlanEmitted, record.GoalName, "",
			domain.PlanPayload{GoalName: record.GoalName, Tasks: record.Tasks, Cost: record.Cost})

		a.Adopt(s.registry, plan, a.Name())
		s.logEvent(ctx, a.ID(), domain.EventKindPlanAdopted, record.GoalName, "",
			domain.PlanPayload{GoalName: record.GoalName, Tasks: record.Tasks, Cost: record.Cost})
	}

	before := a.CurrentTask()
	a.Step(s.registry, a.Name())
	if started := a.CurrentTask(); started != "" && started != before {
		s.logEvent(ctx, a.ID(), domain.EventKindTaskStarted, a.CurrentGoal(), started, nil)
		if s.cfg.AutoExecute {
			s.completeLocked(ctx, a)
		}
	}

	if err := s.store.UpsertAgent(ctx, a.Snapshot()); err != nil {
		s.logger.Printf("upsert agent %s: %v", a.Name(), err)
	}
}

// CompleteTask reports the agent's active task as finished, applying its
// postconditions to the shared world.
func (s *Service) CompleteTask(ctx context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.findAgent(agentID)
	if !ok {
		return fmt.Errorf("agent %s not found", agentID)
	}
	if a.CurrentTask() == "" {
		return fmt.Errorf("agent %s has no active task", a.Name())
	}
	s.completeLocked(ctx, a)
	return s.store.UpsertAgent(ctx, a.Snapshot())
}

// FailTask reports the agent's active task as failed, purging the rest of
// its plan.
func (s *Service) FailTask(ctx context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.findAgent(agentID)
	if !ok {
		return fmt.Errorf("agent %s not found", agentID)
	}
	task := a.CurrentTask()
	if task == "" {
		return fmt.Errorf("agent %s has no active task", a.Name())
	}
	a.ReportFailure(s.registry, a.Name())
	s.logEvent(ctx, a.ID(), domain.EventKindTaskFailed, a.CurrentGoal(), task, nil)
	return s.store.UpsertAgent(ctx, a.Snapshot())
}

func (s *Service) completeLocked(ctx context.Context, a *agent.Agent) {
	task := a.CurrentTask()
	if d, ok := s.registry.Lookup(task); ok {
		s.world.Append(d.Postconditions())
	}
	a.ReportSuccess(s.registry, a.Name())
	s.logEvent(ctx, a.ID(), domain.EventKindTaskCompleted, a.CurrentGoal(), task, nil)
}

// InvalidatePlan publishes an invalidation event for the agent's stored
// plan. The event is applied at the start of the next tick.
func (s *Service) InvalidatePlan(ctx context.Context, agentID, goalName, reason string) error {
	payload, _ := json.Marshal(domain.InvalidatePayload{GoalName: goalName, Reason: reason})
	return s.bus.Publish(domain.Event{
		AgentID:   agentID,
		Kind:      domain.EventKindPlanInvalidated,
		GoalName:  goalName,
		Detail:    reason,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *Service) drainInboxes(ctx context.Context) {
	for _, a := range s.agents {
		ch, ok := s.inboxes[a.ID()]
		if !ok {
			continue
		}
		drained := false
		for !drained {
			select {
			case evt, open := <-ch:
				if !open {
					delete(s.inboxes, a.ID())
					drained = true
					break
				}
				s.handleEvent(ctx, a, evt)
			default:
				drained = true
			}
		}
	}
}

func (s *Service) handleEvent(ctx context.Context, a *agent.Agent, evt domain.Event) {
	switch evt.Kind {
	case domain.EventKindPlanInvalidated:
		a.Invalidate(s.registry, evt.GoalName, a.Name())
		if err := s.store.DeletePlan(ctx, a.ID(), evt.GoalName); err != nil {
			s.logger.Printf("delete plan agent=%s goal=%q: %v", a.Name(), evt.GoalName, err)
		}
		s.logEvent(ctx, a.ID(), domain.EventKindPlanInvalidated, evt.GoalName, evt.Detail, nil)
		s.logger.Printf("agent %s plan for %q invalidated: %s", a.Name(), evt.GoalName, evt.Detail)
	default:
		s.logger.Printf("agent %s ignored event kind %s", a.Name(), evt.Kind)
	}
}

// Agents returns live snapshots, ordered the way the tick visits them.
func (s *Service) Agents() []domain.AgentSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := make([]*agent.Agent, len(s.agents))
	copy(ordered, s.agents)
	if !s.cfg.DisablePrioritySort {
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Priority() < ordered[j].Priority()
		})
	}
	out := make([]domain.AgentSnapshot, 0, len(ordered))
	for _, a := range ordered {
		out = append(out, a.Snapshot())
	}
	return out
}

func (s *Service) ListPlans(ctx context.Context, agentID string) ([]domain.PlanRecord, error) {
	return s.store.ListPlans(ctx, agentID)
}

func (s *Service) ListEvents(ctx context.Context, agentID string, limit int) ([]domain.PlanningEvent, error) {
	return s.store.ListEvents(ctx, agentID, limit)
}

func (s *Service) findAgent(agentID string) (*agent.Agent, bool) {
	for _, a := range s.agents {
		if a.ID() == agentID {
			return a, true
		}
	}
	return nil, false
}

func (s *Service) logEvent(ctx context.Context, agentID string, kind domain.EventKind, goalName, detail string, payload any) {
	raw := json.RawMessage(nil)
	if payload != nil {
		raw = mustJSON(payload)
	}
	if err := s.store.LogEvent(ctx, domain.PlanningEvent{
		AgentID:  agentID,
		Kind:     kind,
		GoalName: goalName,
		Detail:   detail,
		Payload:  raw,
	}); err != nil {
		s.logger.Printf("log event %s agent=%s: %v", kind, agentID, err)
	}
}

// executionOrder reverses a pop-from-tail stack into first-to-last order for
// persistence and display.
func executionOrder(stack []string) []string {
	out := make([]string, 0, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		out = append(out, stack[i])
	}
	return out
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
