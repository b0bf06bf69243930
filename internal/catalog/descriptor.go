package catalog

import "planforge/internal/facts"

// Descriptor is the behavior contract behind a registered task name. The
// activation hooks are opaque host side effects: the planner calls them in
// plan order against a host-supplied target and never inspects what they do.
type Descriptor interface {
	Preconditions() *facts.Requirements
	Postconditions() *facts.World
	Cost(world *facts.World) float64
	Activate(target any)
	Deactivate(target any)
}

// staticTask covers the common case of fixed conditions and a flat cost,
// with optional activation callbacks.
type staticTask struct {
	pre          *facts.Requirements
	post         *facts.World
	cost         float64
	onActivate   func(target any)
	onDeactivate func(target any)
}

func (s *staticTask) Preconditions() *facts.Requirements {
	return s.pre
}

func (s *staticTask) Postconditions() *facts.World {
	return s.post
}

func (s *staticTask) Cost(_ *facts.World) float64 {
	return s.cost
}

func (s *staticTask) Activate(target any) {
	if s.onActivate != nil {
		s.onActivate(target)
	}
}

func (s *staticTask) Deactivate(target any) {
	if s.onDeactivate != nil {
		s.onDeactivate(target)
	}
}
