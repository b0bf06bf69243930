package catalog

import "planforge/internal/facts"

// Registry maps task names to behavior descriptors. Lookups for unknown
// names report ok=false so the planner can skip them instead of aborting.
type Registry struct {
	entries map[string]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Descriptor)}
}

// Register associates name with a static descriptor.
func (r *Registry) Register(name string, pre *facts.Requirements, post *facts.World, cost float64) {
	r.RegisterWithHooks(name, pre, post, cost, nil, nil)
}

// RegisterWithHooks is Register plus activation callbacks the host wants run
// when the task starts and stops.
func (r *Registry) RegisterWithHooks(
	name string,
	pre *facts.Requirements,
	post *facts.World,
	cost float64,
	activate func(target any),
	deactivate func(target any),
) {
	if pre == nil {
		pre = facts.NewRequirements()
	}
	if post == nil {
		post = facts.NewWorld()
	}
	r.entries[name] = &staticTask{
		pre:          pre,
		post:         post,
		cost:         cost,
		onActivate:   activate,
		onDeactivate: deactivate,
	}
}

// RegisterCustom installs a host-supplied descriptor, the escape hatch for
// tasks whose cost or side effects are not static.
func (r *Registry) RegisterCustom(name string, d Descriptor) {
	r.entries[name] = d
}

func (r *Registry) Lookup(name string) (Descriptor, bool) {
	d, ok := r.entries[name]
	return d, ok
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// Preconditions returns the net requirements that must hold before task can
// start. For a composite this folds over the sub-tasks in reverse execution
// order: a requirement an earlier step's postconditions already guarantee is
// dropped before that step's own preconditions are merged in, so facts
// produced inside the sequence never surface as external preconditions.
//
// TODO: re-verify the fold for chains longer than two steps with overlapping
// keys before relying on deep composites.
func (r *Registry) Preconditions(task Task) (*facts.Requirements, bool) {
	if task.IsPrimitive() {
		d, ok := r.Lookup(task.name)
		if !ok {
			return nil, false
		}
		return d.Preconditions(), true
	}
	req := facts.NewRequirements()
	for _, name := range reverseFoldOrder(task) {
		d, ok := r.Lookup(name)
		if !ok {
			return nil, false
		}
		req = req.Unmet(d.Postconditions())
		req.Append(d.Preconditions())
	}
	return req, true
}

// Postconditions returns the net effect of running task. The composite fold
// mirrors Preconditions: entries a step's preconditions would consume are
// dropped from the accumulator before that step's postconditions are merged.
func (r *Registry) Postconditions(task Task) (*facts.World, bool) {
	if task.IsPrimitive() {
		d, ok := r.Lookup(task.name)
		if !ok {
			return nil, false
		}
		return d.Postconditions(), true
	}
	world := facts.NewWorld()
	for _, name := range reverseFoldOrder(task) {
		d, ok := r.Lookup(name)
		if !ok {
			return nil, false
		}
		world = d.Preconditions().Consume(world)
		world.Append(d.Postconditions())
	}
	return world, true
}

// Conditions returns both fold results for callers that need the pair.
func (r *Registry) Conditions(task Task) (*facts.Requirements, *facts.World, bool) {
	pre, ok := r.Preconditions(task)
	if !ok {
		return nil, nil, false
	}
	post, ok := r.Postconditions(task)
	if !ok {
		return nil, nil, false
	}
	return pre, post, true
}

// Cost evaluates the task's cost against world. A composite costs the sum of
// its decomposed primitives.
func (r *Registry) Cost(task Task, world *facts.World) (float64, bool) {
	if task.IsPrimitive() {
		d, ok := r.Lookup(task.name)
		if !ok {
			return 0, false
		}
		return d.Cost(world), true
	}
	var total float64
	for _, name := range task.Decompose() {
		d, ok := r.Lookup(name)
		if !ok {
			return 0, false
		}
		total += d.Cost(world)
	}
	return total, true
}

// reverseFoldOrder yields the fold's visiting order: sub-task segments last
// to first, each segment's own decomposition kept in forward order.
func reverseFoldOrder(task Task) []string {
	segments := make([][]string, 0, len(task.subs))
	for _, sub := range task.subs {
		segments = append(segments, sub.Decompose())
	}
	var names []string
	for i := len(segments) - 1; i >= 0; i-- {
		names = append(names, segments[i]...)
	}
	return names
}
