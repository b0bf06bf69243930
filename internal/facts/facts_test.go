package facts

import (
	"math"
	"sync"
	"testing"
)

func TestInternCanonical(t *testing.T) {
	a := Intern("hungry")
	b := Intern("hungry")
	if a != b {
		t.Fatalf("interning the same text produced different symbols: %v vs %v", a, b)
	}
	if a.String() != "hungry" {
		t.Fatalf("symbol text = %q, want %q", a.String(), "hungry")
	}
	if Intern("fed") == a {
		t.Fatalf("distinct text interned to the same symbol")
	}
}

func TestInternConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]Symbol, 16)
	for i := range results {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot] = Intern("concurrent-intern-key")
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatalf("concurrent interns disagree: %v vs %v", results[i], results[0])
		}
	}
}

func TestValueEquality(t *testing.T) {
	boolTrue := Bool(true)
	boolFalse := Bool(false)
	strEmpty := Str("")
	strTest := Str("test")

	if !boolTrue.Equal(Bool(true)) || !boolFalse.Equal(Bool(false)) {
		t.Fatalf("bool self-equality failed")
	}
	if boolTrue.Equal(boolFalse) {
		t.Fatalf("true equals false")
	}
	if !strEmpty.Equal(Str("")) || !strTest.Equal(Str("test")) {
		t.Fatalf("string self-equality failed")
	}
	if strEmpty.Equal(strTest) {
		t.Fatalf("distinct strings compared equal")
	}

	// cross-kind values are never equal, even with matching text
	crossPairs := [][2]Value{
		{boolTrue, strEmpty},
		{boolTrue, strTest},
		{boolFalse, strEmpty},
		{boolTrue, Str("true")},
		{Num(1), Str("1")},
		{Num(1), Bool(true)},
		{Num(0), Bool(false)},
	}
	for _, pair := range crossPairs {
		if pair[0].Equal(pair[1]) || pair[1].Equal(pair[0]) {
			t.Fatalf("cross-kind values compared equal: %v vs %v", pair[0], pair[1])
		}
	}
}

func TestNumberTotalOrder(t *testing.T) {
	cases := []struct {
		a, b float64
		want Ordering
	}{
		{1, 2, Less},
		{2, 1, Greater},
		{3.5, 3.5, Equal},
		{math.Inf(-1), math.Inf(1), Less},
		{math.NaN(), math.NaN(), Equal},
		{1, math.NaN(), Less},
	}
	for _, tc := range cases {
		got, ok := Num(tc.a).Compare(Num(tc.b))
		if !ok {
			t.Fatalf("numbers %v and %v did not compare", tc.a, tc.b)
		}
		if got != tc.want {
			t.Fatalf("compare(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
	if !Num(math.NaN()).Equal(Num(math.NaN())) {
		t.Fatalf("NaN is not equal to itself under total ordering")
	}
}

func TestCrossKindNeverOrdered(t *testing.T) {
	if _, ok := Num(1).Compare(Str("1")); ok {
		t.Fatalf("number compared against string")
	}
	if _, ok := Bool(true).Compare(Num(1)); ok {
		t.Fatalf("bool compared against number")
	}
}

func TestWorldValidation(t *testing.T) {
	base := NewWorld().
		Set("safe", Bool(true)).
		Set("running", Bool(false)).
		Set("happy", Bool(true))
	valid := NewWorld().
		Set("safe", Bool(true)).
		Set("happy", Bool(true))
	invalid := NewWorld().Set("running", Bool(true))

	if !base.Validate(valid) {
		t.Fatalf("base should validate its subset")
	}
	if base.Validate(invalid) {
		t.Fatalf("base validated a mismatching world")
	}

	// validation is asymmetric: the subset does not validate the superset
	if valid.Validate(base) {
		t.Fatalf("subset world validated a wider world")
	}
	if valid.Validate(invalid) || invalid.Validate(base) || invalid.Validate(valid) {
		t.Fatalf("unrelated worlds validated each other")
	}

	super := base.Concat(NewWorld().Set("running", Bool(true)))
	if base.Validate(invalid) {
		t.Fatalf("concat mutated the base world")
	}
	if !super.Validate(invalid) || !super.Validate(valid) {
		t.Fatalf("concatenated world should validate both subsets")
	}
}

func TestWorldAppendIsRightBiased(t *testing.T) {
	w := NewWorld().Set("room", Str("A")).Set("door_open", Bool(false))
	w.Append(NewWorld().Set("room", Str("B")))

	got, ok := w.Lookup("room")
	if !ok || !got.Equal(Str("B")) {
		t.Fatalf("overlay did not win on collision, got %v", got)
	}
	if kept, ok := w.Lookup("door_open"); !ok || !kept.Equal(Bool(false)) {
		t.Fatalf("append dropped an unrelated key")
	}
}

func TestWorldCloneIndependent(t *testing.T) {
	w := NewWorld().Set("room", Str("A"))
	clone := w.Clone()
	clone.Set("room", Str("B"))
	if got, _ := w.Lookup("room"); !got.Equal(Str("A")) {
		t.Fatalf("mutating a clone leaked into the original")
	}
}

func TestRequirementsValidation(t *testing.T) {
	req := NewRequirements().
		RequireEqual("bool_eq", Bool(true)).
		RequireEqual("str_eq", Str("something")).
		RequireEqual("num_eq", Num(3.1415)).
		RequireHas("any_key").
		RequireGreater("num_grt", Num(0)).
		RequireLess("num_lst", Num(0))

	valid := NewWorld().
		Set("bool_eq", Bool(true)).
		Set("str_eq", Str("something")).
		Set("num_eq", Num(3.1415)).
		Set("any_key", Num(25)).
		Set("num_grt", Num(10)).
		Set("num_lst", Num(-12.36))

	invalid := NewWorld().
		Set("bool_eq", Bool(false)).
		Set("str_eq", Str("else")).
		Set("num_eq", Num(3)).
		Set("num_grt", Num(-10)).
		Set("num_lst", Num(12.36))

	if !req.Validate(valid) {
		t.Fatalf("valid world failed validation")
	}
	if req.Validate(NewWorld()) {
		t.Fatalf("empty world satisfied non-empty requirements")
	}
	if req.Validate(invalid) {
		t.Fatalf("invalid world passed validation")
	}

	// vacuous truth: empty requirements accept anything
	if !NewRequirements().Validate(NewWorld()) || !NewRequirements().Validate(valid) {
		t.Fatalf("empty requirements should always validate")
	}
}

func TestHasEntrySatisfiedByPresenceAlone(t *testing.T) {
	req := NewRequirements().RequireHas("flag")
	if !req.Validate(NewWorld().Set("flag", Bool(false))) {
		t.Fatalf("HasEntry rejected a present entry")
	}
	if !req.Validate(NewWorld().Set("flag", Str("whatever"))) {
		t.Fatalf("HasEntry should not inspect the value")
	}
	if req.Validate(NewWorld()) {
		t.Fatalf("HasEntry satisfied by an absent entry")
	}
}

func TestConsumeAndUnmet(t *testing.T) {
	req := NewRequirements().
		RequireEqual("door_open", Bool(true)).
		RequireEqual("room", Str("B"))
	world := NewWorld().
		Set("door_open", Bool(true)).
		Set("room", Str("A")).
		Set("near_door", Bool(true))

	reduced := req.Consume(world)
	if _, ok := reduced.Lookup("door_open"); ok {
		t.Fatalf("consume kept a satisfied entry")
	}
	if _, ok := reduced.Lookup("room"); !ok {
		t.Fatalf("consume dropped an unsatisfied entry")
	}
	if _, ok := reduced.Lookup("near_door"); !ok {
		t.Fatalf("consume dropped an unrelated entry")
	}
	if world.Len() != 3 {
		t.Fatalf("consume mutated its input world")
	}

	unmet := req.Unmet(world)
	if unmet.Len() != 1 {
		t.Fatalf("unmet size = %d, want 1 (%s)", unmet.Len(), unmet.Describe())
	}
	if unmet.Validate(NewWorld().Set("room", Str("B"))) != true {
		t.Fatalf("unmet did not keep the room requirement")
	}
}
