package watch

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// fsnotifyBackend is the portable backend. fsnotify reports neither
// close-write nor rename cookies: a Write stands in for close-write, a
// Rename is a moved-from that can never be paired, and a Create of a file
// that already has content is treated as complete.
type fsnotifyBackend struct {
	w    *fsnotify.Watcher
	evs  chan rawEvent
	errs chan error
	done chan struct{}
}

func newFSNotifyBackend() (backend, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	b := &fsnotifyBackend{
		w:    w,
		evs:  make(chan rawEvent, 64),
		errs: make(chan error, 1),
		done: make(chan struct{}),
	}
	go b.run()
	return b, nil
}

func (b *fsnotifyBackend) add(dir string) error    { return b.w.Add(dir) }
func (b *fsnotifyBackend) remove(dir string) error { return b.w.Remove(dir) }
func (b *fsnotifyBackend) events() <-chan rawEvent { return b.evs }
func (b *fsnotifyBackend) errors() <-chan error    { return b.errs }

func (b *fsnotifyBackend) close() error {
	close(b.done)
	return b.w.Close()
}

func (b *fsnotifyBackend) run() {
	defer close(b.evs)
	defer close(b.errs)

	for {
		select {
		case <-b.done:
			return

		case event, ok := <-b.w.Events:
			if !ok {
				return
			}
			ev, ok := translateFSNotify(event)
			if !ok {
				continue
			}
			select {
			case b.evs <- ev:
			case <-b.done:
				return
			}

		case err, ok := <-b.w.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				select {
				case b.evs <- rawEvent{op: opOverflow}:
				case <-b.done:
					return
				}
				continue
			}
			select {
			case b.errs <- err:
			default:
			}
		}
	}
}

func translateFSNotify(event fsnotify.Event) (rawEvent, bool) {
	ev := rawEvent{dir: filepath.Dir(event.Name), name: filepath.Base(event.Name)}
	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Lstat(event.Name)
		switch {
		case err != nil:
			return rawEvent{}, false
		case info.IsDir():
			ev.op = opCreate | opIsDir
		case info.Size() > 0:
			ev.op = opMovedTo
		default:
			ev.op = opCreate
		}
	case event.Has(fsnotify.Write):
		ev.op = opCloseWrite
	case event.Has(fsnotify.Remove):
		ev.op = opDelete
	case event.Has(fsnotify.Rename):
		ev.op = opMovedFrom
	default:
		return rawEvent{}, false
	}
	return ev, true
}
