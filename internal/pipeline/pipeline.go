// Package pipeline feeds visible entries to the thumbnail generator with a
// fixed number of tasks in flight.
//
// The pipeline pulls one entry for every completion it receives. Entries are
// taken out of the arena while a task owns them, so the arena itself tells
// the controller which slots are busy. All methods except Done must be
// called from the goroutine that owns the arena.
package pipeline

import (
	"context"

	"github.com/justyntemme/pikeru/internal/debug"
	"github.com/justyntemme/pikeru/internal/epoch"
	"github.com/justyntemme/pikeru/internal/fs"
	"github.com/justyntemme/pikeru/internal/index"
	"github.com/justyntemme/pikeru/internal/metrics"
	"github.com/justyntemme/pikeru/internal/queue"
)

// Generator resolves the preview of one entry.
type Generator interface {
	Generate(ctx context.Context, e fs.Entry) fs.Entry
}

// Completion is the outcome of one task. Hand it back to Complete.
type Completion struct {
	Index int
	Nav   epoch.Token
	Gen   epoch.Token
	Entry fs.Entry

	original fs.Entry
}

// Pipeline dispatches at most width tasks at a time.
type Pipeline struct {
	width int
	gen   Generator
	arena *index.Arena

	ctx    context.Context
	cancel context.CancelFunc
	done   *queue.Unbounded[Completion]

	gens    epoch.Counter
	nav     epoch.Token
	current epoch.Token

	order   []int
	visible map[int]struct{}
	cursor  int
	retry   []int
	running int
}

// New creates a pipeline over arena. width is clamped to at least one.
func New(width int, gen Generator, arena *index.Arena) *Pipeline {
	if width < 1 {
		width = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		width:  width,
		gen:    gen,
		arena:  arena,
		ctx:    ctx,
		cancel: cancel,
		done:   queue.New[Completion](),
	}
}

// Done delivers finished tasks.
func (p *Pipeline) Done() <-chan Completion {
	return p.done.Out()
}

// InFlight returns the number of running tasks, stale ones included.
func (p *Pipeline) InFlight() int { return p.running }

// Reset points the pipeline at a new arena for navigation nav. Tasks still
// running finish, count against the width, and are dropped on completion.
func (p *Pipeline) Reset(arena *index.Arena, nav epoch.Token) {
	p.arena = arena
	p.nav = nav
	p.current = p.gens.Next()
	p.order = nil
	p.visible = nil
	p.cursor = 0
	p.retry = nil
	debug.Log(debug.THUMB, "pipeline reset %s, %d tasks still running", nav, p.running)
}

// Prioritize replaces the visible order and starts a new view generation.
// Tasks already running keep running; new dispatches follow order.
func (p *Pipeline) Prioritize(order []int) epoch.Token {
	p.current = p.gens.Next()
	p.order = append(p.order[:0:0], order...)
	p.visible = make(map[int]struct{}, len(order))
	for _, i := range order {
		p.visible[i] = struct{}{}
	}
	p.cursor = 0
	p.retry = nil
	p.pump()
	return p.current
}

// Complete accounts for a finished task. It reports the slot and entry to
// publish when the result belongs to the current view generation; stale
// results are restored or dropped and applied is false.
func (p *Pipeline) Complete(c Completion) (i int, e fs.Entry, applied bool) {
	p.running--
	metrics.ThumbnailsInFlight.Dec()
	defer p.pump()

	if c.Nav != p.nav {
		metrics.StaleResultsDropped.WithLabelValues("thumbnail_nav").Inc()
		return c.Index, fs.Entry{}, false
	}
	if g, ok := p.arena.Generation(c.Index); !ok || g != c.Gen {
		// removed while in flight
		return c.Index, fs.Entry{}, false
	}

	if c.Gen != p.current {
		metrics.StaleResultsDropped.WithLabelValues("thumbnail_view").Inc()
		p.arena.Restore(c.Index, c.original)
		if _, ok := p.visible[c.Index]; ok {
			p.retry = append(p.retry, c.Index)
		}
		debug.Log(debug.THUMB, "stale completion for slot %d restored (gen %s, current %s)", c.Index, c.Gen, p.current)
		return c.Index, fs.Entry{}, false
	}

	p.arena.Restore(c.Index, c.Entry)
	return c.Index, c.Entry, true
}

// Close cancels running tasks and stops delivering completions.
func (p *Pipeline) Close() {
	p.cancel()
	p.done.Close()
}

func (p *Pipeline) pump() {
	for p.running < p.width {
		i, ok := p.next()
		if !ok {
			return
		}
		p.dispatch(i)
	}
}

// next returns the next unresolved present slot, restored retries first.
func (p *Pipeline) next() (int, bool) {
	for len(p.retry) > 0 {
		i := p.retry[0]
		p.retry = p.retry[1:]
		if p.wants(i) {
			return i, true
		}
	}
	for p.cursor < len(p.order) {
		i := p.order[p.cursor]
		p.cursor++
		if p.wants(i) {
			return i, true
		}
	}
	return 0, false
}

func (p *Pipeline) wants(i int) bool {
	e, ok := p.arena.Get(i)
	return ok && !e.Resolved()
}

func (p *Pipeline) dispatch(i int) {
	e, ok := p.arena.Take(i, p.current)
	if !ok {
		return
	}
	p.running++
	metrics.ThumbnailsInFlight.Inc()

	ctx, gen, done := p.ctx, p.gen, p.done
	c := Completion{Index: i, Nav: p.nav, Gen: p.current, original: e}
	go func() {
		c.Entry = gen.Generate(ctx, e)
		c.Entry.ViewEpoch = c.Gen
		done.Push(c)
	}()
}
