package planning

import (
	"math/rand"
	"testing"

	"planforge/internal/facts"
)

func testGoals() []Goal {
	return []Goal{
		NewGoal("patrol", nil, 2),
		NewGoal("eat", nil, 5),
		NewGoal("sleep", nil, 3),
	}
}

func TestTopPolicyPicksFirst(t *testing.T) {
	goal, ok := TopPolicy().NextGoal(testGoals(), facts.NewWorld())
	if !ok || goal.Name != "patrol" {
		t.Fatalf("top policy picked %v %v, want patrol", goal.Name, ok)
	}
	if _, ok := TopPolicy().NextGoal(nil, facts.NewWorld()); ok {
		t.Fatalf("top policy selected from an empty list")
	}
}

func TestRandomPolicyStaysInList(t *testing.T) {
	p := RandomPolicy(rand.New(rand.NewSource(7)))
	goals := testGoals()
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		goal, ok := p.NextGoal(goals, facts.NewWorld())
		if !ok {
			t.Fatalf("random policy failed on a non-empty list")
		}
		seen[goal.Name] = true
	}
	if len(seen) != len(goals) {
		t.Fatalf("200 draws covered %d of %d goals", len(seen), len(goals))
	}
	if _, ok := p.NextGoal(nil, facts.NewWorld()); ok {
		t.Fatalf("random policy selected from an empty list")
	}
}

func TestWeightedPolicyFavorsUtility(t *testing.T) {
	p := WeightedPolicy(rand.New(rand.NewSource(11)))
	goals := []Goal{
		NewGoal("rare", nil, 1),
		NewGoal("common", nil, 99),
	}
	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		goal, ok := p.NextGoal(goals, facts.NewWorld())
		if !ok {
			t.Fatalf("weighted policy failed on positive weights")
		}
		counts[goal.Name]++
	}
	if counts["common"] <= counts["rare"] {
		t.Fatalf("weighting had no effect: %v", counts)
	}
}

func TestWeightedPolicyFailsClosed(t *testing.T) {
	p := WeightedPolicy(rand.New(rand.NewSource(3)))

	if _, ok := p.NextGoal([]Goal{NewGoal("a", nil, 0), NewGoal("b", nil, 0)}, facts.NewWorld()); ok {
		t.Fatalf("all-zero utilities must yield no selection")
	}
	if _, ok := p.NextGoal([]Goal{NewGoal("a", nil, 5), NewGoal("b", nil, -1)}, facts.NewWorld()); ok {
		t.Fatalf("a negative utility must yield no selection")
	}
	if _, ok := p.NextGoal(nil, facts.NewWorld()); ok {
		t.Fatalf("weighted policy selected from an empty list")
	}
}

func TestPolicyFuncConsultsWorld(t *testing.T) {
	p := PolicyFunc(func(goals []Goal, world *facts.World) (Goal, bool) {
		for _, g := range goals {
			if v, ok := world.Lookup("urgent"); ok && v.Equal(facts.Str(g.Name)) {
				return g, true
			}
		}
		return Goal{}, false
	})

	world := facts.NewWorld().Set("urgent", facts.Str("sleep"))
	goal, ok := p.NextGoal(testGoals(), world)
	if !ok || goal.Name != "sleep" {
		t.Fatalf("custom policy picked %v %v, want sleep", goal.Name, ok)
	}
	if _, ok := p.NextGoal(testGoals(), facts.NewWorld()); ok {
		t.Fatalf("custom policy should fail without its trigger fact")
	}
}
