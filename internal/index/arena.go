// Package index holds the entries of the current navigation in stable slots.
//
// A slot index never changes once assigned, so the search engine, the
// thumbnail pipeline and the presentation layer can all refer to an entry by
// its index. Removing an entry leaves a tombstone; an entry lent to the
// thumbnail pipeline leaves an in-flight tombstone stamped with the view
// generation it was taken under.
package index

import (
	"github.com/justyntemme/pikeru/internal/epoch"
	"github.com/justyntemme/pikeru/internal/fs"
)

// State describes what a slot currently holds.
type State int

const (
	Present State = iota
	InFlight
	Removed
)

func (s State) String() string {
	switch s {
	case Present:
		return "present"
	case InFlight:
		return "in-flight"
	default:
		return "removed"
	}
}

type slot struct {
	state State
	entry fs.Entry
	gen   epoch.Token
}

// Arena is not safe for concurrent use; the controller goroutine owns it.
type Arena struct {
	slots  []slot
	byPath map[string]int
}

// New returns an empty arena.
func New() *Arena {
	return &Arena{byPath: make(map[string]int)}
}

// Len returns the number of slots, tombstones included.
func (a *Arena) Len() int { return len(a.slots) }

// Append stores e in a new slot and returns its index.
func (a *Arena) Append(e fs.Entry) int {
	i := len(a.slots)
	a.slots = append(a.slots, slot{state: Present, entry: e})
	a.byPath[e.Path] = i
	return i
}

// Find returns the slot for path unless it has been removed.
func (a *Arena) Find(path string) (int, bool) {
	i, ok := a.byPath[path]
	return i, ok
}

// State reports the state of slot i. Out-of-range indices read as Removed.
func (a *Arena) State(i int) State {
	if i < 0 || i >= len(a.slots) {
		return Removed
	}
	return a.slots[i].state
}

// Get returns the entry in slot i if it is present.
func (a *Arena) Get(i int) (fs.Entry, bool) {
	if a.State(i) != Present {
		return fs.Entry{}, false
	}
	return a.slots[i].entry, true
}

// Peek returns the entry of a present or in-flight slot. For an in-flight
// slot it is the entry as it was when taken.
func (a *Arena) Peek(i int) (fs.Entry, bool) {
	if a.State(i) == Removed {
		return fs.Entry{}, false
	}
	return a.slots[i].entry, true
}

// Path returns the path of slot i for present and in-flight slots.
func (a *Arena) Path(i int) (string, bool) {
	e, ok := a.Peek(i)
	return e.Path, ok
}

// Set replaces the entry in a present slot.
func (a *Arena) Set(i int, e fs.Entry) bool {
	if a.State(i) != Present {
		return false
	}
	a.slots[i].entry = e
	return true
}

// Take lends the entry in slot i out under gen, leaving an in-flight
// tombstone.
func (a *Arena) Take(i int, gen epoch.Token) (fs.Entry, bool) {
	if a.State(i) != Present {
		return fs.Entry{}, false
	}
	s := &a.slots[i]
	s.state = InFlight
	s.gen = gen
	return s.entry, true
}

// Generation returns the view generation an in-flight slot was taken under.
func (a *Arena) Generation(i int) (epoch.Token, bool) {
	if a.State(i) != InFlight {
		return epoch.Token{}, false
	}
	return a.slots[i].gen, true
}

// Restore puts e back into an in-flight slot.
func (a *Arena) Restore(i int, e fs.Entry) bool {
	if a.State(i) != InFlight {
		return false
	}
	a.slots[i] = slot{state: Present, entry: e}
	return true
}

// Remove tombstones slot i. An in-flight slot may be removed; its eventual
// completion then finds nothing to restore.
func (a *Arena) Remove(i int) (fs.Entry, bool) {
	if a.State(i) == Removed {
		return fs.Entry{}, false
	}
	e := a.slots[i].entry
	if j, ok := a.byPath[e.Path]; ok && j == i {
		delete(a.byPath, e.Path)
	}
	a.slots[i] = slot{state: Removed}
	return e, true
}

// Each calls fn for every present entry in index order.
func (a *Arena) Each(fn func(i int, e fs.Entry)) {
	for i := range a.slots {
		if a.slots[i].state == Present {
			fn(i, a.slots[i].entry)
		}
	}
}
