// Package facts models what is true about a world (symbols, values, world
// state) and what must be true (predicates, requirement sets).
package facts

import (
	"fmt"
	"sync"
)

// Symbol is an interned handle for a field key or string value. Equal text
// always maps to the same Symbol, so comparisons and map lookups are cheap.
type Symbol uint32

// The intern table is process-wide and append-only: entries are never
// reclaimed, and a single mutex guards it for all planner instances. Symbol
// creation is the only cross-instance coupling in the planner.
var interner = struct {
	mu    sync.Mutex
	ids   map[string]Symbol
	names []string
}{
	ids: make(map[string]Symbol),
}

// Intern returns the canonical Symbol for name, creating it on first use.
func Intern(name string) Symbol {
	interner.mu.Lock()
	defer interner.mu.Unlock()

	if id, ok := interner.ids[name]; ok {
		return id
	}
	id := Symbol(len(interner.names))
	interner.names = append(interner.names, name)
	interner.ids[name] = id
	return id
}

func (s Symbol) String() string {
	interner.mu.Lock()
	defer interner.mu.Unlock()

	if int(s) >= len(interner.names) {
		return fmt.Sprintf("symbol#%d", uint32(s))
	}
	return interner.names[s]
}
