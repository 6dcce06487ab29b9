package watch

import (
	"path/filepath"
	"time"
)

type rawOp uint16

const (
	opCreate rawOp = 1 << iota
	opIsDir
	opCloseWrite
	opDelete
	opMovedFrom
	opMovedTo
	opOverflow
)

// rawEvent is a backend notification before coalescing. cookie is zero
// when the backend cannot pair renames.
type rawEvent struct {
	dir    string
	name   string
	op     rawOp
	cookie uint32
}

func (r rawEvent) path() string { return filepath.Join(r.dir, r.name) }

type heldMove struct {
	path string
	at   time.Time
}

// coalescer turns raw backend events into Create/Delete events. A file is
// announced only once it has been closed after writing, so half-written
// files never reach consumers; a rename observed as moved-from followed by
// moved-to with the same cookie becomes a single Create.
type coalescer struct {
	pending map[string]map[string]struct{} // dir -> names created but not yet closed
	moves   map[uint32]heldMove
}

func newCoalescer() *coalescer {
	return &coalescer{
		pending: make(map[string]map[string]struct{}),
		moves:   make(map[uint32]heldMove),
	}
}

func (c *coalescer) reset() {
	c.pending = make(map[string]map[string]struct{})
	c.moves = make(map[uint32]heldMove)
}

func (c *coalescer) feed(ev rawEvent, now time.Time) []Event {
	var out []Event

	if ev.op&opMovedTo != 0 && ev.cookie != 0 {
		if src, ok := c.moves[ev.cookie]; ok {
			delete(c.moves, ev.cookie)
			out = append(out, c.flushMoves()...)
			return append(out, Event{Op: Create, Path: ev.path(), From: src.path})
		}
	}

	// The kernel queues both halves of a rename back to back, so anything
	// else arriving first means the source left the watched set.
	out = append(out, c.flushMoves()...)

	switch {
	case ev.op&opOverflow != 0:
		return out

	case ev.op&opMovedFrom != 0:
		c.forget(ev.dir, ev.name)
		if ev.cookie == 0 {
			return append(out, Event{Op: Delete, Path: ev.path()})
		}
		c.moves[ev.cookie] = heldMove{path: ev.path(), at: now}

	case ev.op&opMovedTo != 0:
		c.forget(ev.dir, ev.name)
		out = append(out, Event{Op: Create, Path: ev.path()})

	case ev.op&opCreate != 0:
		if ev.op&opIsDir != 0 {
			return append(out, Event{Op: Create, Path: ev.path()})
		}
		names := c.pending[ev.dir]
		if names == nil {
			names = make(map[string]struct{})
			c.pending[ev.dir] = names
		}
		names[ev.name] = struct{}{}

	case ev.op&opCloseWrite != 0:
		if names := c.pending[ev.dir]; names != nil {
			if _, ok := names[ev.name]; ok {
				c.forget(ev.dir, ev.name)
				out = append(out, Event{Op: Create, Path: ev.path()})
			}
		}

	case ev.op&opDelete != 0:
		c.forget(ev.dir, ev.name)
		out = append(out, Event{Op: Delete, Path: ev.path()})
	}
	return out
}

// expire turns moved-from halves older than window into deletes.
func (c *coalescer) expire(now time.Time, window time.Duration) []Event {
	var out []Event
	for cookie, m := range c.moves {
		if now.Sub(m.at) >= window {
			delete(c.moves, cookie)
			out = append(out, Event{Op: Delete, Path: m.path})
		}
	}
	return out
}

func (c *coalescer) flushMoves() []Event {
	if len(c.moves) == 0 {
		return nil
	}
	out := make([]Event, 0, len(c.moves))
	for cookie, m := range c.moves {
		delete(c.moves, cookie)
		out = append(out, Event{Op: Delete, Path: m.path})
	}
	return out
}

func (c *coalescer) forget(dir, name string) {
	names := c.pending[dir]
	if names == nil {
		return
	}
	delete(names, name)
	if len(names) == 0 {
		delete(c.pending, dir)
	}
}

func (c *coalescer) pendingCount() int {
	n := 0
	for _, names := range c.pending {
		n += len(names)
	}
	return n
}
