package planning

import (
	"sort"
	"time"

	"planforge/internal/catalog"
	"planforge/internal/facts"
)

// rootParent is the sentinel parent index of depth-0 nodes.
const rootParent = -1

// searchNode is one state in the search tree. Nodes live in the Searcher's
// arena, are never mutated after creation, and link upward only: many
// frontier nodes may share an ancestor chain.
type searchNode struct {
	task   catalog.Task
	world  *facts.World
	cost   float64
	depth  int
	parent int
}

// Searcher incrementally explores task sequences for one agent. It owns all
// of its search state, so discarding or resetting a Searcher aborts an
// in-progress search with no cleanup obligations. A Searcher is not safe for
// concurrent use; distinct Searchers share nothing but the symbol interner.
type Searcher struct {
	arena    []searchNode
	frontier []int // pending nodes; index 0 is the front
	leaves   []int // accepted solution leaves, emitted last-in-first-out
	goals    []Goal
	plans    map[string]Plan
	tasks    []catalog.Task
}

// NewSearcher seeds a searcher with the agent's available tasks and
// candidate goals. Goals are kept sorted ascending by utility, so the last
// entry is the currently pursued highest-utility goal.
func NewSearcher(tasks []catalog.Task, goals []Goal) *Searcher {
	sorted := append([]Goal(nil), goals...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Utility < sorted[j].Utility
	})
	return &Searcher{
		goals: sorted,
		plans: make(map[string]Plan),
		tasks: append([]catalog.Task(nil), tasks...),
	}
}

// CurrentGoal returns the highest-utility goal, if any.
func (s *Searcher) CurrentGoal() (Goal, bool) {
	if len(s.goals) == 0 {
		return Goal{}, false
	}
	return s.goals[len(s.goals)-1], true
}

func (s *Searcher) Goals() []Goal {
	return s.goals
}

func (s *Searcher) Tasks() []catalog.Task {
	return s.tasks
}

// Plan returns the best plan stored so far for the named goal. Absence is
// the normal "no plan yet" outcome, not an error.
func (s *Searcher) Plan(goalName string) (Plan, bool) {
	plan, ok := s.plans[goalName]
	return plan, ok
}

// Plans returns a copy of the plan table.
func (s *Searcher) Plans() map[string]Plan {
	out := make(map[string]Plan, len(s.plans))
	for name, plan := range s.plans {
		out[name] = plan
	}
	return out
}

// Invalidate drops the stored plan for the named goal and abandons the
// in-progress search so the next cycle starts fresh.
func (s *Searcher) Invalidate(goalName string) {
	delete(s.plans, goalName)
	s.Reset()
}

// Reset abandons all in-progress search state but keeps stored plans.
func (s *Searcher) Reset() {
	s.arena = nil
	s.frontier = nil
	s.leaves = nil
}

// PendingNodes reports the frontier size, for observability.
func (s *Searcher) PendingNodes() int {
	return len(s.frontier)
}

// AcceptedLeaves reports how many solution leaves await emission.
func (s *Searcher) AcceptedLeaves() int {
	return len(s.leaves)
}

// GenerateForDuration runs expand+emit steps until the frontier is empty or
// the elapsed-time budget is exceeded. The budget is advisory: it is checked
// once per full step, never mid-step, so the worst-case overrun is a single
// expand+emit iteration. A budget of zero or less means no time limit.
// A depthLimit of zero or less means no depth limit.
func (s *Searcher) GenerateForDuration(reg *catalog.Registry, world *facts.World, budget time.Duration, depthLimit int) {
	goal, ok := s.CurrentGoal()
	if !ok {
		return
	}
	start := time.Now()
	s.seed(reg, world)

	for {
		s.generateSingle(goal, reg, depthLimit)
		s.tryEmitSingle(goal)

		if budget > 0 && time.Since(start) >= budget {
			break
		}
		if len(s.frontier) == 0 {
			break
		}
	}
	s.reclaim()
}

// GenerateToCompletion runs until the frontier is exhausted, with no time
// budget. Deterministic given identical inputs; intended for tests and
// offline planning.
func (s *Searcher) GenerateToCompletion(reg *catalog.Registry, world *facts.World, depthLimit int) {
	goal, ok := s.CurrentGoal()
	if !ok {
		return
	}
	s.seed(reg, world)

	for {
		s.generateSingle(goal, reg, depthLimit)
		s.tryEmitSingle(goal)

		if len(s.frontier) == 0 {
			break
		}
	}
	s.reclaim()
}

// seed fills an empty frontier with a depth-0 node for every available task
// whose preconditions hold in the starting world.
func (s *Searcher) seed(reg *catalog.Registry, world *facts.World) {
	if len(s.frontier) != 0 {
		return
	}
	for _, task := range s.possibleTasks(world, reg) {
		post, ok := reg.Postconditions(task)
		if !ok {
			continue
		}
		merged := world.Concat(post)
		cost, ok := reg.Cost(task, merged)
		if !ok {
			continue
		}
		s.arena = append(s.arena, searchNode{
			task:   task,
			world:  merged,
			cost:   cost,
			depth:  0,
			parent: rootParent,
		})
		s.frontier = append(s.frontier, len(s.arena)-1)
	}
}

// generateSingle processes exactly one frontier node: accept it as a leaf if
// it satisfies the goal, discard it at the depth limit or on recursion, or
// expand its children to the front of the frontier (depth-first, children in
// available-task order).
func (s *Searcher) generateSingle(goal Goal, reg *catalog.Registry, depthLimit int) {
	if len(s.frontier) == 0 {
		return
	}
	idx := s.frontier[0]
	s.frontier = s.frontier[1:]
	node := s.arena[idx]

	if goal.Requires.Validate(node.world) {
		s.leaves = append(s.leaves, idx)
		return
	}
	if depthLimit > 0 && node.depth >= depthLimit {
		return
	}
	if s.hasRecursion(idx) {
		return
	}

	var children []int
	for _, task := range s.possibleTasks(node.world, reg) {
		child, ok := s.makeNode(idx, task, reg)
		if !ok {
			continue
		}
		s.arena = append(s.arena, child)
		children = append(children, len(s.arena)-1)
	}
	s.frontier = append(children, s.frontier...)
}

// tryEmitSingle pops the most recently accepted leaf and stores its plan,
// keeping a previously stored plan unless the new one is strictly cheaper.
func (s *Searcher) tryEmitSingle(goal Goal) {
	if len(s.leaves) == 0 {
		return
	}
	idx := s.leaves[len(s.leaves)-1]
	s.leaves = s.leaves[:len(s.leaves)-1]

	plan := s.unravel(idx)
	if prev, ok := s.plans[goal.Name]; ok && plan.Cost >= prev.Cost {
		return
	}
	s.plans[goal.Name] = plan
}

// unravel reconstructs a plan by walking parent links from leaf to root.
// Collection order is leaf-to-root, which is exactly the storage contract
// Plan documents.
func (s *Searcher) unravel(leaf int) Plan {
	var tasks []catalog.Task
	for i := leaf; i != rootParent; i = s.arena[i].parent {
		tasks = append(tasks, s.arena[i].task)
	}
	return Plan{Tasks: tasks, Cost: s.arena[leaf].cost}
}

// hasRecursion detects a period-2 task alternation (A,B,A,B) across four
// consecutive depths. Longer cyclic patterns are deliberately not caught;
// the depth limit bounds them instead.
func (s *Searcher) hasRecursion(idx int) bool {
	p := s.arena[idx].parent
	if p == rootParent {
		return false
	}
	pp := s.arena[p].parent
	if pp == rootParent {
		return false
	}
	ppp := s.arena[pp].parent
	if ppp == rootParent {
		return false
	}
	return s.arena[idx].task.Name() == s.arena[pp].task.Name() &&
		s.arena[p].task.Name() == s.arena[ppp].task.Name()
}

// possibleTasks filters the available tasks down to those whose
// preconditions hold in world. Tasks missing from the registry are silently
// excluded rather than failing the search.
func (s *Searcher) possibleTasks(world *facts.World, reg *catalog.Registry) []catalog.Task {
	var out []catalog.Task
	for _, task := range s.tasks {
		pre, ok := reg.Preconditions(task)
		if !ok {
			continue
		}
		if pre.Validate(world) {
			out = append(out, task)
		}
	}
	return out
}

// makeNode builds a child node: the parent's world merged with the task's
// postconditions, cumulative cost evaluated against the resulting world.
func (s *Searcher) makeNode(parent int, task catalog.Task, reg *catalog.Registry) (searchNode, bool) {
	post, ok := reg.Postconditions(task)
	if !ok {
		return searchNode{}, false
	}
	world := s.arena[parent].world.Concat(post)
	cost, ok := reg.Cost(task, world)
	if !ok {
		return searchNode{}, false
	}
	return searchNode{
		task:   task,
		world:  world,
		cost:   s.arena[parent].cost + cost,
		depth:  s.arena[parent].depth + 1,
		parent: parent,
	}, true
}

// reclaim releases the arena once nothing references it, so a finished or
// abandoned search does not pin node memory between cycles.
func (s *Searcher) reclaim() {
	if len(s.frontier) == 0 && len(s.leaves) == 0 {
		s.arena = nil
	}
}
