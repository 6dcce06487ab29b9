// Package app wires the index components together behind one controller
// goroutine.
//
// The Controller owns the navigation epoch and the entry arena. Every other
// component runs on its own goroutine and talks to the controller through
// channels; results tagged with a superseded epoch are dropped on receipt.
package app

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/justyntemme/pikeru/internal/crawl"
	"github.com/justyntemme/pikeru/internal/debug"
	"github.com/justyntemme/pikeru/internal/epoch"
	"github.com/justyntemme/pikeru/internal/fs"
	"github.com/justyntemme/pikeru/internal/index"
	"github.com/justyntemme/pikeru/internal/logging"
	"github.com/justyntemme/pikeru/internal/metrics"
	"github.com/justyntemme/pikeru/internal/pipeline"
	"github.com/justyntemme/pikeru/internal/queue"
	"github.com/justyntemme/pikeru/internal/search"
	"github.com/justyntemme/pikeru/internal/store"
	"github.com/justyntemme/pikeru/internal/watch"
)

// Deps are the components the controller drives. Watch, Thumbs and Store
// may be nil to run without them.
type Deps struct {
	FS      *fs.System
	Crawler *crawl.Crawler
	Search  *search.Engine
	Watch   *watch.Service
	Thumbs  pipeline.Generator
	Store   *store.DB
}

// Options are the initial view settings.
type Options struct {
	Workers    int
	Recursive  bool
	ShowHidden bool
	SortBy     SortColumn
	Ascending  bool
}

// UpdateKind tags an Update.
type UpdateKind int

const (
	UpdateReset     UpdateKind = iota // a navigation replaced every entry
	UpdateEntry                       // Entry at Index was added or changed
	UpdateRemoved                     // Index no longer holds an entry
	UpdateCrawlDone                   // the recursive crawl finished
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateReset:
		return "reset"
	case UpdateEntry:
		return "entry"
	case UpdateRemoved:
		return "removed"
	default:
		return "crawl-done"
	}
}

// Update is one change to the entry set.
type Update struct {
	Kind  UpdateKind
	Epoch epoch.Token
	Index int
	Entry fs.Entry
}

// Results is the display order for the current view. Final is false when
// the items changed while ranking; a corrected result follows.
type Results struct {
	Epoch   epoch.Token
	Term    string
	Final   bool
	Matches []search.Match
}

type cmdKind int

const (
	cmdNavigate cmdKind = iota
	cmdRecursive
	cmdShowHidden
	cmdSort
	cmdQuery
	cmdViewport
)

type command struct {
	kind  cmdKind
	roots []string
	flag  bool
	sort  SortColumn
	term  string
	order []int
}

// Controller is an actor; state below is owned by Run.
type Controller struct {
	deps Deps
	pipe *pipeline.Pipeline

	cmds    *queue.Unbounded[command]
	updates *queue.Unbounded[Update]
	results *queue.Unbounded[Results]

	navs      epoch.Counter
	nav       epoch.Token
	roots     []string
	arena     *index.Arena
	descs     map[string]string
	listed    bool // the listing for nav has arrived
	watchedOK bool // at least one navigation registered its watches

	recursive  bool
	showHidden bool
	sortBy     SortColumn
	asc        bool

	term        string
	outstanding bool // a query is being ranked
	stale       bool // the view changed since it was issued
	autoView    bool // prioritize the display order until a Viewport arrives
}

// New creates a controller. Run must be started before commands take effect.
func New(deps Deps, opts Options) *Controller {
	c := &Controller{
		deps:       deps,
		cmds:       queue.New[command](),
		updates:    queue.New[Update](),
		results:    queue.New[Results](),
		arena:      index.New(),
		descs:      make(map[string]string),
		recursive:  opts.Recursive,
		showHidden: opts.ShowHidden,
		sortBy:     opts.SortBy,
		asc:        opts.Ascending,
		autoView:   true,
	}
	if deps.Thumbs != nil {
		c.pipe = pipeline.New(opts.Workers, deps.Thumbs, c.arena)
	}
	return c
}

// Navigate replaces the roots.
func (c *Controller) Navigate(roots []string) {
	c.cmds.Push(command{kind: cmdNavigate, roots: append([]string(nil), roots...)})
}

// SetRecursive turns the crawl of descendants on or off.
func (c *Controller) SetRecursive(on bool) {
	c.cmds.Push(command{kind: cmdRecursive, flag: on})
}

// SetShowHidden includes or excludes dotfiles.
func (c *Controller) SetShowHidden(show bool) {
	c.cmds.Push(command{kind: cmdShowHidden, flag: show})
}

// SortOrder sets the display order used when no query is active.
func (c *Controller) SortOrder(col SortColumn, ascending bool) {
	c.cmds.Push(command{kind: cmdSort, sort: col, flag: ascending})
}

// Query ranks the view against term. An empty term restores the sort order.
func (c *Controller) Query(term string) {
	c.cmds.Push(command{kind: cmdQuery, term: term})
}

// Viewport tells the thumbnail pipeline which slots are visible, in order.
func (c *Controller) Viewport(order []int) {
	c.cmds.Push(command{kind: cmdViewport, order: append([]int(nil), order...)})
}

// Updates is closed when Run returns.
func (c *Controller) Updates() <-chan Update { return c.updates.Out() }

// Results is closed when Run returns.
func (c *Controller) Results() <-chan Results { return c.results.Out() }

// Run drives the components until ctx is cancelled. It returns an error
// when any root of the first navigation cannot be watched; later watch
// failures are logged.
func (c *Controller) Run(ctx context.Context) error {
	go c.deps.FS.Start()
	go c.deps.Crawler.Run(ctx)
	go c.deps.Search.Run(ctx)

	var storeResp <-chan store.Response
	if c.deps.Store != nil {
		go c.deps.Store.Start()
		storeResp = c.deps.Store.ResponseChan
	}
	var watchEvents <-chan watch.Event
	if c.deps.Watch != nil {
		watchEvents = c.deps.Watch.Events()
	}
	var done <-chan pipeline.Completion
	if c.pipe != nil {
		done = c.pipe.Done()
		defer c.pipe.Close()
	}
	defer c.results.Close()
	defer c.updates.Close()
	defer c.cmds.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case cmd := <-c.cmds.Out():
			c.handle(cmd)

		case resp := <-c.deps.FS.ResponseChan:
			if err := c.handleListing(resp); err != nil {
				return err
			}

		case b, ok := <-c.deps.Crawler.Batches():
			if ok {
				c.handleBatch(b)
			}

		case ev, ok := <-watchEvents:
			if !ok {
				watchEvents = nil
				continue
			}
			c.handleWatch(ev)

		case r, ok := <-c.deps.Search.Results():
			if ok {
				c.handleResults(r)
			}

		case comp, ok := <-done:
			if ok {
				c.handleCompletion(comp)
			}

		case resp := <-storeResp:
			c.handleDescriptions(resp)
		}
	}
}

func (c *Controller) handle(cmd command) {
	switch cmd.kind {
	case cmdNavigate:
		c.navigate(cmd.roots)

	case cmdRecursive:
		if c.recursive == cmd.flag {
			return
		}
		c.recursive = cmd.flag
		if cmd.flag {
			// The listing for this navigation already called Start while
			// disabled, so enabling crawls from the roots.
			c.deps.Crawler.SetEnabled(true)
			return
		}
		c.deps.Crawler.SetEnabled(false)
		c.navigate(c.roots)

	case cmdShowHidden:
		if c.showHidden == cmd.flag {
			return
		}
		c.showHidden = cmd.flag
		c.deps.Crawler.SetShowHidden(cmd.flag)
		c.navigate(c.roots)

	case cmdSort:
		c.sortBy, c.asc = cmd.sort, cmd.flag
		c.refreshView()

	case cmdQuery:
		c.term = cmd.term
		c.requery()

	case cmdViewport:
		c.autoView = false
		if c.pipe != nil {
			c.pipe.Prioritize(cmd.order)
		}
	}
}

func (c *Controller) navigate(roots []string) {
	c.nav = c.navs.Next()
	c.roots = roots
	c.listed = false
	c.stale = true
	debug.Log(debug.NAV, "navigate %q %s", roots, c.nav)

	req := fs.Request{Op: fs.ListRoots, Paths: roots, Epoch: c.nav}
	go func() { c.deps.FS.RequestChan <- req }()
}

func (c *Controller) handleListing(resp fs.Response) error {
	if !c.navs.IsCurrent(resp.Epoch) {
		metrics.StaleResultsDropped.WithLabelValues("listing").Inc()
		return nil
	}
	for root, err := range resp.Errs {
		logging.Warn("cannot list root", zap.String("root", root), zap.Error(err))
	}

	c.arena = index.New()
	c.descs = make(map[string]string)
	c.autoView = true
	c.listed = true

	paths := make([]string, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		if !c.showHidden && e.Hidden {
			continue
		}
		e.NavEpoch = c.nav
		c.arena.Append(e)
		paths = append(paths, e.Path)
	}

	c.deps.Search.ReplaceItems(paths, c.nav)
	if c.pipe != nil {
		c.pipe.Reset(c.arena, c.nav)
	}

	if c.deps.Watch != nil {
		if err := c.deps.Watch.SetWatched(c.nav, c.roots); err != nil {
			if !c.watchedOK {
				return err
			}
			logging.Warn("cannot watch roots", zap.Strings("roots", c.roots), zap.Error(err))
		}
		c.watchedOK = true
	}

	c.deps.Crawler.SetShowHidden(c.showHidden)
	c.deps.Crawler.SetEnabled(c.recursive)
	c.deps.Crawler.Start(c.roots, c.nav)

	c.lookupDescriptions(c.roots)

	c.updates.Push(Update{Kind: UpdateReset, Epoch: c.nav})
	for i := 0; i < c.arena.Len(); i++ {
		e, _ := c.arena.Peek(i)
		c.updates.Push(Update{Kind: UpdateEntry, Epoch: c.nav, Index: i, Entry: e})
	}
	c.refreshView()
	return nil
}

func (c *Controller) handleBatch(b crawl.Batch) {
	if !c.navs.IsCurrent(b.Epoch) || !c.listed {
		metrics.StaleResultsDropped.WithLabelValues("crawl").Inc()
		return
	}

	var paths, dirs []string
	for _, e := range b.Entries {
		if _, exists := c.arena.Find(e.Path); exists {
			continue
		}
		if d, ok := c.descs[e.Path]; ok && e.Description == "" {
			e.Description = d
		}
		i := c.arena.Append(e)
		paths = append(paths, e.Path)
		if e.IsDir() {
			dirs = append(dirs, e.Path)
		}
		c.updates.Push(Update{Kind: UpdateEntry, Epoch: c.nav, Index: i, Entry: e})
	}

	if len(paths) > 0 {
		c.deps.Search.AppendItems(paths)
		c.lookupDescriptions(dirs)
		c.refreshView()
	}
	if b.Done {
		c.updates.Push(Update{Kind: UpdateCrawlDone, Epoch: c.nav})
	}
}

func (c *Controller) handleWatch(ev watch.Event) {
	if !c.navs.IsCurrent(ev.Epoch) || !c.listed {
		metrics.StaleResultsDropped.WithLabelValues("watch").Inc()
		return
	}

	changed := false
	remove := func(path string) {
		if i, ok := c.arena.Find(path); ok {
			c.arena.Remove(i)
			c.updates.Push(Update{Kind: UpdateRemoved, Epoch: c.nav, Index: i})
			changed = true
		}
	}

	switch ev.Op {
	case watch.Delete:
		remove(ev.Path)

	case watch.Create:
		if ev.From != "" {
			remove(ev.From)
		}
		// a create over an existing name replaces it
		remove(ev.Path)

		e, err := fs.Stat(ev.Path)
		if err != nil {
			debug.Log(debug.APP, "watch create for vanished %s: %v", ev.Path, err)
			break
		}
		if !c.showHidden && e.Hidden {
			break
		}
		e.NavEpoch = c.nav
		if d, ok := c.descs[e.Path]; ok {
			e.Description = d
		}
		i := c.arena.Append(e)
		c.deps.Search.AppendItems([]string{e.Path})
		c.updates.Push(Update{Kind: UpdateEntry, Epoch: c.nav, Index: i, Entry: e})
		changed = true
	}

	if changed {
		c.refreshView()
	}
}

func (c *Controller) handleResults(r search.Results) {
	c.outstanding = false

	current := c.navs.IsCurrent(r.Epoch) && r.Term == c.term
	final := current && !c.stale && r.ItemCount == c.arena.Len()

	if !c.navs.IsCurrent(r.Epoch) {
		metrics.StaleResultsDropped.WithLabelValues("search").Inc()
	}
	if current {
		matches := dirsFirst(c.arena, r.Matches)
		c.results.Push(Results{Epoch: r.Epoch, Term: r.Term, Final: final, Matches: matches})
		if c.autoView && c.pipe != nil {
			order := make([]int, len(matches))
			for k, m := range matches {
				order[k] = m.Index
			}
			c.pipe.Prioritize(order)
		}
	}

	// Reissue at most once per completed ranking so a fast typist still
	// sees provisional results.
	if !final && c.listed {
		metrics.SearchReissuesTotal.Inc()
		c.requery()
	}
}

func (c *Controller) handleCompletion(comp pipeline.Completion) {
	i, e, applied := c.pipe.Complete(comp)
	if !applied {
		return
	}
	if d, ok := c.descs[e.Path]; ok && e.Description == "" {
		e.Description = d
		c.arena.Set(i, e)
	}
	c.updates.Push(Update{Kind: UpdateEntry, Epoch: c.nav, Index: i, Entry: e})
}

func (c *Controller) handleDescriptions(resp store.Response) {
	if resp.Err != nil || !c.navs.IsCurrent(resp.Epoch) {
		return
	}

	descs := make([]search.Description, 0, len(resp.Descriptions))
	for _, d := range resp.Descriptions {
		if _, ok := c.descs[d.Path]; ok {
			continue
		}
		c.descs[d.Path] = d.Text
		descs = append(descs, search.Description{Path: d.Path, Text: d.Text})

		i, ok := c.arena.Find(d.Path)
		if !ok {
			continue
		}
		// in-flight entries pick the text up on completion
		if e, present := c.arena.Get(i); present && e.Description == "" {
			e.Description = d.Text
			c.arena.Set(i, e)
			c.updates.Push(Update{Kind: UpdateEntry, Epoch: c.nav, Index: i, Entry: e})
		}
	}
	if len(descs) > 0 {
		c.deps.Search.AttachDescriptions(descs)
		if c.term != "" {
			c.requery()
		}
	}
}

func (c *Controller) lookupDescriptions(dirs []string) {
	if c.deps.Store == nil || len(dirs) == 0 {
		return
	}
	clean := make([]string, len(dirs))
	for i, d := range dirs {
		clean[i] = filepath.Clean(d)
	}
	req := store.Request{Op: store.Lookup, Dirs: clean, Epoch: c.nav}
	ch := c.deps.Store.RequestChan
	go func() { ch <- req }()
}

// refreshView recomputes the display order, hands it to the search engine
// and asks for a fresh ranking.
func (c *Controller) refreshView() {
	if !c.listed {
		return
	}
	c.deps.Search.ReplaceView(displayOrder(c.arena, c.sortBy, c.asc))
	c.requery()
}

func (c *Controller) requery() {
	if c.outstanding {
		c.stale = true
		return
	}
	c.outstanding = true
	c.stale = false
	c.deps.Search.Query(c.term)
}
