// Package search ranks the visible items against a fuzzy query.
//
// The Engine is an actor. Item and view updates are applied in arrival
// order; each Query snapshots the current view and ranks it on its own
// goroutine, so a long ranking never delays later updates. Every result is
// tagged with the navigation epoch and the item count it was computed
// against, which lets the consumer tell a final result from one that raced
// with newly appended items.
package search

import (
	"context"
	"path/filepath"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/justyntemme/pikeru/internal/debug"
	"github.com/justyntemme/pikeru/internal/epoch"
	"github.com/justyntemme/pikeru/internal/metrics"
	"github.com/justyntemme/pikeru/internal/queue"
)

// Item is one searchable path.
type Item struct {
	Path        string
	Name        string
	Description string
}

// Description attaches text to the item with the given path.
type Description struct {
	Path string
	Text string
}

// Match is one ranked item.
type Match struct {
	Index int
	Score int
}

// Results is the outcome of one Query.
type Results struct {
	Epoch     epoch.Token
	Term      string
	ItemCount int
	Matches   []Match
}

type opType int

const (
	opReplaceItems opType = iota
	opAppendItems
	opReplaceView
	opAppendView
	opDescribe
	opQuery
)

type command struct {
	op      opType
	paths   []string
	indices []int
	descs   []Description
	term    string
	epoch   epoch.Token
}

// Options configures an Engine.
type Options struct {
	Scorer Scorer
}

// Engine owns the item list and the view.
type Engine struct {
	score Scorer

	cmds *queue.Unbounded[command]
	out  *queue.Unbounded[Results]

	items   []Item
	byPath  map[string]int
	view    []int
	current epoch.Token
}

// New creates an engine. Run must be started before results flow.
func New(opts Options) *Engine {
	if opts.Scorer == nil {
		opts.Scorer = fuzzy.FindFrom
	}
	return &Engine{
		score:  opts.Scorer,
		cmds:   queue.New[command](),
		out:    queue.New[Results](),
		byPath: make(map[string]int),
	}
}

// ReplaceItems discards all items and starts a new epoch with paths.
func (e *Engine) ReplaceItems(paths []string, tok epoch.Token) {
	e.cmds.Push(command{op: opReplaceItems, paths: paths, epoch: tok})
}

// AppendItems adds paths after the existing items.
func (e *Engine) AppendItems(paths []string) {
	e.cmds.Push(command{op: opAppendItems, paths: paths})
}

// ReplaceView sets the ordered list of visible item indices.
func (e *Engine) ReplaceView(indices []int) {
	e.cmds.Push(command{op: opReplaceView, indices: indices})
}

// AppendView adds indices to the end of the view.
func (e *Engine) AppendView(indices []int) {
	e.cmds.Push(command{op: opAppendView, indices: indices})
}

// AttachDescriptions fills in descriptions for items that have none yet.
func (e *Engine) AttachDescriptions(descs []Description) {
	e.cmds.Push(command{op: opDescribe, descs: descs})
}

// Query ranks the current view against term.
func (e *Engine) Query(term string) {
	e.cmds.Push(command{op: opQuery, term: term})
}

// Results is closed when Run returns.
func (e *Engine) Results() <-chan Results {
	return e.out.Out()
}

// Run applies commands until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	defer e.out.Close()
	defer e.cmds.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-e.cmds.Out():
			e.apply(cmd)
		}
	}
}

func (e *Engine) apply(cmd command) {
	switch cmd.op {
	case opReplaceItems:
		e.current = cmd.epoch
		e.items = e.items[:0:0]
		e.byPath = make(map[string]int, len(cmd.paths))
		e.view = nil
		e.appendItems(cmd.paths)
		debug.Log(debug.SEARCH, "replace items: %d %s", len(cmd.paths), cmd.epoch)

	case opAppendItems:
		e.appendItems(cmd.paths)

	case opReplaceView:
		e.view = append(e.view[:0:0], cmd.indices...)

	case opAppendView:
		e.view = append(e.view, cmd.indices...)

	case opDescribe:
		n := 0
		for _, d := range cmd.descs {
			i, ok := e.byPath[d.Path]
			if !ok || e.items[i].Description != "" {
				continue
			}
			e.items[i].Description = d.Text
			n++
		}
		debug.Log(debug.SEARCH, "attached %d of %d descriptions", n, len(cmd.descs))

	case opQuery:
		e.query(cmd.term)
	}
}

func (e *Engine) appendItems(paths []string) {
	for _, p := range paths {
		e.byPath[p] = len(e.items)
		e.items = append(e.items, Item{Path: p, Name: filepath.Base(p)})
	}
}

func (e *Engine) query(term string) {
	cands := make([]candidate, 0, len(e.view))
	for _, idx := range e.view {
		if idx < 0 || idx >= len(e.items) {
			continue
		}
		it := e.items[idx]
		cands = append(cands, candidate{index: idx, name: it.Name, description: it.Description})
	}

	tok := e.current
	count := len(e.items)
	score := e.score
	out := e.out
	go func() {
		start := time.Now()
		matches := rank(score, term, cands)
		metrics.SearchQueriesTotal.Inc()
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
		debug.Log(debug.SEARCH, "query %q: %d of %d candidates in %s", term, len(matches), len(cands), time.Since(start))
		out.Push(Results{Epoch: tok, Term: term, ItemCount: count, Matches: matches})
	}()
}
