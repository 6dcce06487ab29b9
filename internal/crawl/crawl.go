// Package crawl discovers the descendants of the navigation roots one
// frontier slice at a time, honouring layered ignore rules.
package crawl

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/justyntemme/pikeru/internal/debug"
	"github.com/justyntemme/pikeru/internal/epoch"
	"github.com/justyntemme/pikeru/internal/fs"
	"github.com/justyntemme/pikeru/internal/ignore"
	"github.com/justyntemme/pikeru/internal/logging"
	"github.com/justyntemme/pikeru/internal/metrics"
	"github.com/justyntemme/pikeru/internal/queue"
)

// Lister returns the direct children of a directory.
type Lister func(dir string) ([]fs.Entry, error)

// DefaultBatchDirs is how many frontier directories one pump lists.
const DefaultBatchDirs = 32

// Options configures a Crawler.
type Options struct {
	UserRules          []string // gitignore lines applied at every root
	RespectIgnoreFiles bool
	IgnoreFileNames    []string // e.g. ".gitignore", ".ignore"
	ShowHidden         bool
	MaxDepth           int // 0 = unlimited; 1 = root children only
	BatchDirs          int
	Lister             Lister
}

// Batch is the output of one pump. Done is set on the batch that empties
// the frontier.
type Batch struct {
	Epoch   epoch.Token
	Entries []fs.Entry
	Done    bool
}

type node struct {
	dir   string
	depth int
	root  bool // children already known from the root listing
	chain *ignore.Chain
}

type cmdKind int

const (
	cmdStart cmdKind = iota
	cmdEnable
	cmdShowHidden
)

type command struct {
	kind    cmdKind
	roots   []string
	epoch   epoch.Token
	enabled bool
}

type pumpResult struct {
	epoch   epoch.Token
	entries []fs.Entry
	next    []node
}

// Crawler is an actor; all state below is owned by Run.
type Crawler struct {
	opts Options

	cmds    *queue.Unbounded[command]
	out     *queue.Unbounded[Batch]
	results chan pumpResult

	enabled  bool
	current  epoch.Token
	frontier []node
	pumping  bool
}

// New creates a crawler. It starts disabled.
func New(opts Options) *Crawler {
	if opts.Lister == nil {
		opts.Lister = fs.ListDir
	}
	if opts.BatchDirs <= 0 {
		opts.BatchDirs = DefaultBatchDirs
	}
	return &Crawler{
		opts:    opts,
		cmds:    queue.New[command](),
		out:     queue.New[Batch](),
		results: make(chan pumpResult, 1),
	}
}

// Start replaces the frontier with roots under a new navigation epoch.
func (c *Crawler) Start(roots []string, tok epoch.Token) {
	c.cmds.Push(command{kind: cmdStart, roots: append([]string(nil), roots...), epoch: tok})
}

// SetEnabled turns pumping on or off. Disabling discards the frontier and
// the output of the running pump; enabling only pumps a frontier set up by
// Start.
func (c *Crawler) SetEnabled(enabled bool) {
	c.cmds.Push(command{kind: cmdEnable, enabled: enabled})
}

// SetShowHidden controls whether dotfiles are crawled. It takes effect at
// the next Start.
func (c *Crawler) SetShowHidden(show bool) {
	c.cmds.Push(command{kind: cmdShowHidden, enabled: show})
}

// Batches is closed when Run returns.
func (c *Crawler) Batches() <-chan Batch {
	return c.out.Out()
}

// Run processes commands until ctx is cancelled.
func (c *Crawler) Run(ctx context.Context) {
	defer c.out.Close()
	defer c.cmds.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-c.cmds.Out():
			c.handle(cmd)
		case res := <-c.results:
			c.pumping = false
			c.finished(res)
		}
		c.maybePump()
	}
}

func (c *Crawler) handle(cmd command) {
	switch cmd.kind {
	case cmdStart:
		c.current = cmd.epoch
		c.frontier = c.frontier[:0]
		for _, root := range cmd.roots {
			root = filepath.Clean(root)
			chain := ignore.NewChain(ignore.Defaults(root), ignore.CompileLines(root, c.opts.UserRules...))
			c.frontier = append(c.frontier, node{dir: root, root: true, chain: loadLocalRules(c.opts, root, chain)})
		}
		debug.Log(debug.CRAWL, "start: %d roots %s", len(cmd.roots), cmd.epoch)
	case cmdEnable:
		c.enabled = cmd.enabled
		if !cmd.enabled {
			// Only a later Start refills the frontier.
			c.frontier = nil
		}
		debug.Log(debug.CRAWL, "enabled=%v", cmd.enabled)
	case cmdShowHidden:
		c.opts.ShowHidden = cmd.enabled
	}
}

func (c *Crawler) finished(res pumpResult) {
	if res.epoch != c.current {
		debug.Log(debug.CRAWL, "dropping batch from %s (current %s)", res.epoch, c.current)
		metrics.StaleResultsDropped.WithLabelValues("crawl").Inc()
		return
	}
	if !c.enabled {
		debug.Log(debug.CRAWL, "dropping batch from %s: disabled", res.epoch)
		return
	}

	c.frontier = append(c.frontier, res.next...)
	done := len(c.frontier) == 0
	metrics.CrawlEntriesTotal.Add(float64(len(res.entries)))
	c.out.Push(Batch{Epoch: res.epoch, Entries: res.entries, Done: done})
	if done {
		debug.Log(debug.CRAWL, "crawl complete %s", res.epoch)
	}
}

func (c *Crawler) maybePump() {
	if c.pumping || !c.enabled || len(c.frontier) == 0 {
		return
	}
	n := c.opts.BatchDirs
	if n > len(c.frontier) {
		n = len(c.frontier)
	}
	work := append([]node(nil), c.frontier[:n]...)
	c.frontier = append(c.frontier[:0:0], c.frontier[n:]...)
	c.pumping = true

	opts := c.opts
	tok := c.current
	go func() {
		c.results <- pump(opts, tok, work)
	}()
}

func pump(opts Options, tok epoch.Token, work []node) pumpResult {
	res := pumpResult{epoch: tok}
	for _, n := range work {
		children, err := opts.Lister(n.dir)
		metrics.CrawlDirsTotal.Inc()
		if err != nil {
			logging.Warn("crawl: cannot list directory", zap.String("dir", n.dir), zap.Error(err))
			continue
		}

		for _, child := range children {
			if !opts.ShowHidden && child.Hidden {
				continue
			}
			isDir := child.IsDir()
			if n.chain.Verdict(child.Path, isDir) == ignore.Ignore {
				debug.Log(debug.IGNORE, "ignored %s", child.Path)
				metrics.CrawlIgnoredTotal.Inc()
				continue
			}

			depth := n.depth + 1
			if !n.root {
				child.Recursed = true
				child.NavEpoch = tok
				res.entries = append(res.entries, child)
			}

			if !isDir || child.Symlink || fs.ShouldSkipPath(child.Path) {
				continue
			}
			if opts.MaxDepth > 0 && depth >= opts.MaxDepth {
				continue
			}
			res.next = append(res.next, node{
				dir:   child.Path,
				depth: depth,
				chain: loadLocalRules(opts, child.Path, n.chain),
			})
		}
	}
	debug.Log(debug.CRAWL, "pump: %d dirs -> %d entries, %d new dirs", len(work), len(res.entries), len(res.next))
	return res
}

func loadLocalRules(opts Options, dir string, chain *ignore.Chain) *ignore.Chain {
	if !opts.RespectIgnoreFiles {
		return chain
	}
	for _, name := range opts.IgnoreFileNames {
		m, err := ignore.Load(dir, name)
		if err != nil {
			logging.Warn("crawl: cannot read ignore file", zap.String("dir", dir), zap.String("name", name), zap.Error(err))
			continue
		}
		chain = chain.Append(m)
	}
	return chain
}
