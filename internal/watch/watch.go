// Package watch reports file creations and deletions in a set of
// directories. The watched set is replaced as a whole on every navigation;
// each event carries the navigation epoch that was current when it was
// observed.
package watch

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/justyntemme/pikeru/internal/debug"
	"github.com/justyntemme/pikeru/internal/epoch"
	"github.com/justyntemme/pikeru/internal/logging"
	"github.com/justyntemme/pikeru/internal/metrics"
	"github.com/justyntemme/pikeru/internal/queue"
)

// ErrUnsupportedBackend is returned by New for a backend that does not exist
// on this platform.
var ErrUnsupportedBackend = errors.New("watch: unsupported backend")

// Op is the kind of a coalesced event.
type Op int

const (
	Create Op = iota
	Delete
)

func (o Op) String() string {
	if o == Delete {
		return "delete"
	}
	return "create"
}

// Event is one coalesced change. From is set when the Create completes a
// rename whose source was also watched.
type Event struct {
	Op    Op
	Path  string
	From  string
	Epoch epoch.Token
}

// Backend names
const (
	BackendInotify  = "inotify"
	BackendFSNotify = "fsnotify"
)

// DefaultRenameWindow bounds how long a moved-from half waits for its
// moved-to partner.
const DefaultRenameWindow = 250 * time.Millisecond

type backend interface {
	add(dir string) error
	remove(dir string) error
	events() <-chan rawEvent
	errors() <-chan error
	close() error
}

// Options configures a Service.
type Options struct {
	Backend      string // "inotify" | "fsnotify" | "" for the platform default
	RenameWindow time.Duration
}

// DefaultBackend returns the backend used when Options.Backend is empty.
func DefaultBackend() string {
	if runtime.GOOS == "linux" {
		return BackendInotify
	}
	return BackendFSNotify
}

// Service owns one OS watch handle.
type Service struct {
	be     backend
	window time.Duration

	mu      sync.Mutex
	watched map[string]bool
	current epoch.Token
	co      *coalescer

	out  *queue.Unbounded[Event]
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// New creates the OS watch handle and starts the event loop.
func New(opts Options) (*Service, error) {
	name := opts.Backend
	if name == "" {
		name = DefaultBackend()
	}

	var (
		be  backend
		err error
	)
	switch name {
	case BackendInotify:
		be, err = newInotifyBackend()
	case BackendFSNotify:
		be, err = newFSNotifyBackend()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBackend, name)
	}
	if err != nil {
		return nil, fmt.Errorf("watch: init %s: %w", name, err)
	}

	window := opts.RenameWindow
	if window <= 0 {
		window = DefaultRenameWindow
	}

	s := &Service{
		be:      be,
		window:  window,
		watched: make(map[string]bool),
		co:      newCoalescer(),
		out:     queue.New[Event](),
		done:    make(chan struct{}),
	}
	debug.Log(debug.WATCH, "started %s backend (rename window %s)", name, window)

	s.wg.Add(1)
	go s.run()
	return s, nil
}

// SetWatched replaces the watched set with dirs. Every directory is
// attempted; the first registration error is returned.
func (s *Service) SetWatched(tok epoch.Token, dirs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for dir := range s.watched {
		if err := s.be.remove(dir); err != nil {
			// The directory may already be gone
			debug.Log(debug.WATCH, "Error unwatching %s: %v", dir, err)
		}
	}
	s.watched = make(map[string]bool, len(dirs))
	s.current = tok
	s.co.reset()

	var first error
	for _, dir := range dirs {
		if s.watched[dir] {
			continue
		}
		if err := s.be.add(dir); err != nil {
			if first == nil {
				first = fmt.Errorf("watch %s: %w", dir, err)
			}
			continue
		}
		s.watched[dir] = true
		debug.Log(debug.WATCH, "Now watching directory: %s", dir)
	}
	return first
}

// Watching reports whether dir is in the current set.
func (s *Service) Watching(dir string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watched[dir]
}

// Events returns the coalesced event stream. It is closed by Close.
func (s *Service) Events() <-chan Event {
	return s.out.Out()
}

// Close stops the event loop and releases the OS handle.
func (s *Service) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.be.close()
		s.wg.Wait()
		s.out.Close()
	})
	return err
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.window)
	defer ticker.Stop()

	events := s.be.events()
	errs := s.be.errors()

	for {
		select {
		case <-s.done:
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handle(ev)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logging.Warn("watch backend error", zap.Error(err))

		case now := <-ticker.C:
			s.mu.Lock()
			s.emit(s.co.expire(now, s.window))
			s.mu.Unlock()
		}
	}
}

func (s *Service) handle(ev rawEvent) {
	debug.Log(debug.WATCH_RAW, "raw: dir=%s name=%s op=%#x cookie=%d", ev.dir, ev.name, ev.op, ev.cookie)

	if ev.op&opOverflow != 0 {
		logging.Warn("watch queue overflowed, events were lost")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.watched[ev.dir] {
		return
	}
	s.emit(s.co.feed(ev, time.Now()))
}

// emit must be called with s.mu held.
func (s *Service) emit(events []Event) {
	for _, ev := range events {
		ev.Epoch = s.current
		debug.Log(debug.WATCH, "event: %s %s (from %q) %s", ev.Op, ev.Path, ev.From, ev.Epoch)
		metrics.WatchEvents.WithLabelValues(ev.Op.String()).Inc()
		s.out.Push(ev)
	}
}
