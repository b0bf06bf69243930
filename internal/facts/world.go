package facts

import (
	"sort"
	"strings"
)

// World is a set of known facts: unique symbol keys mapped to typed values.
// It represents either the shared global world or an agent-local overlay.
// All operations are value-semantic; Clone produces a fully independent copy.
type World struct {
	entries map[Symbol]Value
}

func NewWorld() *World {
	return &World{entries: make(map[Symbol]Value)}
}

// Set interns key and stores value, returning the world for chaining.
func (w *World) Set(key string, value Value) *World {
	w.Insert(Intern(key), value)
	return w
}

func (w *World) Insert(key Symbol, value Value) {
	if w.entries == nil {
		w.entries = make(map[Symbol]Value)
	}
	w.entries[key] = value
}

func (w *World) Get(key Symbol) (Value, bool) {
	v, ok := w.entries[key]
	return v, ok
}

func (w *World) Lookup(key string) (Value, bool) {
	return w.Get(Intern(key))
}

func (w *World) Erase(key Symbol) {
	delete(w.entries, key)
}

func (w *World) Clear() {
	w.entries = make(map[Symbol]Value)
}

func (w *World) Len() int {
	return len(w.entries)
}

func (w *World) Clone() *World {
	clone := &World{entries: make(map[Symbol]Value, len(w.entries))}
	for k, v := range w.entries {
		clone.entries[k] = v
	}
	return clone
}

// Validate reports whether every fact in other is present and equal in w.
// The test is an asymmetric subset check: a wider world validates a narrower
// one, never the reverse.
func (w *World) Validate(other *World) bool {
	for key, want := range other.entries {
		have, ok := w.entries[key]
		if !ok {
			return false
		}
		if !have.Equal(want) {
			return false
		}
	}
	return true
}

// Append merges other into w; other wins on key collisions.
func (w *World) Append(other *World) {
	if w.entries == nil {
		w.entries = make(map[Symbol]Value, other.Len())
	}
	for key, value := range other.entries {
		w.entries[key] = value
	}
}

// Concat returns a new world holding w merged with other (other wins).
func (w *World) Concat(other *World) *World {
	merged := w.Clone()
	merged.Append(other)
	return merged
}

// AsRequirements converts every fact into an Equals predicate.
func (w *World) AsRequirements() *Requirements {
	req := NewRequirements()
	for key, value := range w.entries {
		req.Insert(key, Equals(value))
	}
	return req
}

// Describe renders the world as a stable "key=value, ..." line for logs and
// the monitor.
func (w *World) Describe() string {
	parts := make([]string, 0, len(w.entries))
	for key, value := range w.entries {
		parts = append(parts, key.String()+"="+value.String())
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
