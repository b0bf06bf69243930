package facts

import (
	"sort"
	"strings"
)

type predicateKind uint8

const (
	predicateHasEntry predicateKind = iota
	predicateEquals
	predicateOrdered
)

// Predicate is a condition on a single world entry: presence, equality, or
// an ordering against a reference value.
type Predicate struct {
	kind predicateKind
	ord  Ordering
	val  Value
}

// HasEntry is satisfied by presence alone, regardless of the stored value.
func HasEntry() Predicate {
	return Predicate{kind: predicateHasEntry}
}

func Equals(v Value) Predicate {
	return Predicate{kind: predicateEquals, val: v}
}

// Ordered is satisfied when comparing the world's value against v yields ord.
// Values that do not compare (different kinds) never satisfy it.
func Ordered(ord Ordering, v Value) Predicate {
	return Predicate{kind: predicateOrdered, ord: ord, val: v}
}

// Matches reports whether the predicate accepts an entry holding v.
func (p Predicate) Matches(v Value) bool {
	switch p.kind {
	case predicateHasEntry:
		return true
	case predicateEquals:
		return v.Equal(p.val)
	default:
		ord, ok := v.Compare(p.val)
		return ok && ord == p.ord
	}
}

func (p Predicate) String() string {
	switch p.kind {
	case predicateHasEntry:
		return "has"
	case predicateEquals:
		return "==" + p.val.String()
	default:
		switch p.ord {
		case Less:
			return "<" + p.val.String()
		case Greater:
			return ">" + p.val.String()
		default:
			return "<=>" + p.val.String()
		}
	}
}

// Requirements maps symbol keys to predicates that must all hold for a world
// to satisfy the set. Keys are unique; inserting twice keeps the last.
type Requirements struct {
	entries map[Symbol]Predicate
}

func NewRequirements() *Requirements {
	return &Requirements{entries: make(map[Symbol]Predicate)}
}

// Require interns key and stores p, returning the set for chaining.
func (r *Requirements) Require(key string, p Predicate) *Requirements {
	r.Insert(Intern(key), p)
	return r
}

func (r *Requirements) RequireEqual(key string, v Value) *Requirements {
	return r.Require(key, Equals(v))
}

func (r *Requirements) RequireGreater(key string, v Value) *Requirements {
	return r.Require(key, Ordered(Greater, v))
}

func (r *Requirements) RequireLess(key string, v Value) *Requirements {
	return r.Require(key, Ordered(Less, v))
}

func (r *Requirements) RequireHas(key string) *Requirements {
	return r.Require(key, HasEntry())
}

func (r *Requirements) Insert(key Symbol, p Predicate) {
	if r.entries == nil {
		r.entries = make(map[Symbol]Predicate)
	}
	r.entries[key] = p
}

func (r *Requirements) Len() int {
	return len(r.entries)
}

func (r *Requirements) Clone() *Requirements {
	clone := &Requirements{entries: make(map[Symbol]Predicate, len(r.entries))}
	for k, p := range r.entries {
		clone.entries[k] = p
	}
	return clone
}

// Validate reports whether every predicate is satisfied by the corresponding
// world entry. A missing entry fails; an empty set is vacuously true.
func (r *Requirements) Validate(world *World) bool {
	for key, pred := range r.entries {
		value, ok := world.Get(key)
		if !ok {
			return false
		}
		if !pred.Matches(value) {
			return false
		}
	}
	return true
}

// Consume returns a copy of world with every entry removed whose stored
// predicate is already satisfied: a prerequisite absorbed the fact, so it no
// longer needs tracking.
func (r *Requirements) Consume(world *World) *World {
	reduced := world.Clone()
	for key, pred := range r.entries {
		value, ok := world.Get(key)
		if !ok {
			continue
		}
		if pred.Matches(value) {
			reduced.Erase(key)
		}
	}
	return reduced
}

// Unmet returns the subset of requirements not yet satisfied by world.
func (r *Requirements) Unmet(world *World) *Requirements {
	reduced := r.Clone()
	for key, pred := range r.entries {
		value, ok := world.Get(key)
		if !ok {
			continue
		}
		if pred.Matches(value) {
			delete(reduced.entries, key)
		}
	}
	return reduced
}

// Append merges other into r; other wins on key collisions.
func (r *Requirements) Append(other *Requirements) {
	if r.entries == nil {
		r.entries = make(map[Symbol]Predicate, other.Len())
	}
	for key, pred := range other.entries {
		r.entries[key] = pred
	}
}

func (r *Requirements) Describe() string {
	parts := make([]string, 0, len(r.entries))
	for key, pred := range r.entries {
		parts = append(parts, key.String()+" "+pred.String())
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
