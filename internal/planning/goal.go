// Package planning contains the planner core: goals, the goal-selection
// policies, and the incremental tree search that turns a task catalog and a
// world snapshot into plans.
package planning

import (
	"math/rand"
	"time"

	"planforge/internal/facts"
)

// Goal is a target condition plus a static utility score. Utility ranks
// goals against each other; it never contributes to plan cost.
type Goal struct {
	Name     string
	Requires *facts.Requirements
	Utility  float64
}

func NewGoal(name string, requires *facts.Requirements, utility float64) Goal {
	if requires == nil {
		requires = facts.NewRequirements()
	}
	return Goal{Name: name, Requires: requires, Utility: utility}
}

// Policy chooses which goal an agent pursues this cycle. Implementations
// return ok=false when no selection can be made; the planner then performs
// no work and tries again next cycle.
type Policy interface {
	NextGoal(goals []Goal, world *facts.World) (Goal, bool)
}

// PolicyFunc adapts a closure into a Policy, so hosts can inject a custom
// decision function with whatever bound state it needs.
type PolicyFunc func(goals []Goal, world *facts.World) (Goal, bool)

func (f PolicyFunc) NextGoal(goals []Goal, world *facts.World) (Goal, bool) {
	return f(goals, world)
}

// TopPolicy picks the first goal in the list. This is the default.
func TopPolicy() Policy {
	return topPolicy{}
}

// RandomPolicy picks uniformly. A nil rng gets a time-seeded source.
func RandomPolicy(rng *rand.Rand) Policy {
	return &randomPolicy{rng: ensureRand(rng)}
}

// WeightedPolicy picks with probability proportional to utility. It fails
// closed: a negative weight or an all-zero total yields no selection.
func WeightedPolicy(rng *rand.Rand) Policy {
	return &weightedPolicy{rng: ensureRand(rng)}
}

type topPolicy struct{}

func (topPolicy) NextGoal(goals []Goal, _ *facts.World) (Goal, bool) {
	if len(goals) == 0 {
		return Goal{}, false
	}
	return goals[0], true
}

type randomPolicy struct {
	rng *rand.Rand
}

func (p *randomPolicy) NextGoal(goals []Goal, _ *facts.World) (Goal, bool) {
	if len(goals) == 0 {
		return Goal{}, false
	}
	return goals[p.rng.Intn(len(goals))], true
}

type weightedPolicy struct {
	rng *rand.Rand
}

func (p *weightedPolicy) NextGoal(goals []Goal, _ *facts.World) (Goal, bool) {
	if len(goals) == 0 {
		return Goal{}, false
	}
	var total float64
	for _, g := range goals {
		if g.Utility < 0 {
			return Goal{}, false
		}
		total += g.Utility
	}
	if total <= 0 {
		return Goal{}, false
	}
	pick := p.rng.Float64() * total
	for _, g := range goals {
		pick -= g.Utility
		if pick < 0 {
			return g, true
		}
	}
	return goals[len(goals)-1], true
}

func ensureRand(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
