//go:build linux

package watch

import (
	"errors"
	"os"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/justyntemme/pikeru/internal/debug"
)

const inotifyMask = unix.IN_CREATE | unix.IN_CLOSE_WRITE | unix.IN_DELETE |
	unix.IN_MOVED_FROM | unix.IN_MOVED_TO | unix.IN_ONLYDIR

var errShortRead = errors.New("watch: short read from inotify")

// inotifyBackend talks to the kernel directly so that close-write and rename
// cookies are available.
type inotifyBackend struct {
	fd   int
	file *os.File // non-blocking; Close unblocks the reader

	mu   sync.Mutex
	wds  map[int]string
	dirs map[string]int

	evs  chan rawEvent
	errs chan error
	done chan struct{}
}

func newInotifyBackend() (backend, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, os.NewSyscallError("inotify_init1", err)
	}
	b := &inotifyBackend{
		fd:   fd,
		file: os.NewFile(uintptr(fd), "inotify"),
		wds:  make(map[int]string),
		dirs: make(map[string]int),
		evs:  make(chan rawEvent, 64),
		errs: make(chan error, 1),
		done: make(chan struct{}),
	}
	go b.read()
	return b, nil
}

func (b *inotifyBackend) add(dir string) error {
	wd, err := unix.InotifyAddWatch(b.fd, dir, inotifyMask)
	if err != nil {
		return os.NewSyscallError("inotify_add_watch", err)
	}
	b.mu.Lock()
	b.wds[wd] = dir
	b.dirs[dir] = wd
	b.mu.Unlock()
	return nil
}

func (b *inotifyBackend) remove(dir string) error {
	b.mu.Lock()
	wd, ok := b.dirs[dir]
	if ok {
		delete(b.dirs, dir)
		delete(b.wds, wd)
	}
	b.mu.Unlock()
	if !ok {
		return nil
	}
	if _, err := unix.InotifyRmWatch(b.fd, uint32(wd)); err != nil {
		return os.NewSyscallError("inotify_rm_watch", err)
	}
	return nil
}

func (b *inotifyBackend) events() <-chan rawEvent { return b.evs }
func (b *inotifyBackend) errors() <-chan error     { return b.errs }

func (b *inotifyBackend) close() error {
	close(b.done)
	return b.file.Close()
}

func (b *inotifyBackend) read() {
	defer close(b.evs)
	defer close(b.errs)

	var buf [unix.SizeofInotifyEvent * 4096]byte
	for {
		n, err := b.file.Read(buf[:])
		if err != nil {
			if errors.Is(err, os.ErrClosed) {
				return
			}
			select {
			case b.errs <- err:
			case <-b.done:
				return
			default:
			}
			continue
		}
		if n < unix.SizeofInotifyEvent {
			select {
			case b.errs <- errShortRead:
			default:
			}
			continue
		}

		var offset int
		for offset <= n-unix.SizeofInotifyEvent {
			raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
			nameLen := int(raw.Len)
			var name string
			if nameLen > 0 {
				bytes := buf[offset+unix.SizeofInotifyEvent : offset+unix.SizeofInotifyEvent+nameLen]
				name = strings.TrimRight(string(bytes), "\x00")
			}
			offset += unix.SizeofInotifyEvent + nameLen

			ev, ok := b.translate(int(raw.Wd), raw.Mask, raw.Cookie, name)
			if !ok {
				continue
			}
			select {
			case b.evs <- ev:
			case <-b.done:
				return
			}
		}
	}
}

func (b *inotifyBackend) translate(wd int, mask, cookie uint32, name string) (rawEvent, bool) {
	if mask&unix.IN_Q_OVERFLOW != 0 {
		return rawEvent{op: opOverflow}, true
	}

	b.mu.Lock()
	dir, ok := b.wds[wd]
	if mask&unix.IN_IGNORED != 0 && ok {
		delete(b.wds, wd)
		delete(b.dirs, dir)
	}
	b.mu.Unlock()
	if !ok || name == "" {
		debug.Log(debug.WATCH_RAW, "inotify: dropping wd=%d mask=%#x", wd, mask)
		return rawEvent{}, false
	}

	ev := rawEvent{dir: dir, name: name, cookie: cookie}
	if mask&unix.IN_ISDIR != 0 {
		ev.op |= opIsDir
	}
	switch {
	case mask&unix.IN_CREATE != 0:
		ev.op |= opCreate
	case mask&unix.IN_CLOSE_WRITE != 0:
		ev.op |= opCloseWrite
	case mask&unix.IN_DELETE != 0:
		ev.op |= opDelete
	case mask&unix.IN_MOVED_FROM != 0:
		ev.op |= opMovedFrom
	case mask&unix.IN_MOVED_TO != 0:
		ev.op |= opMovedTo
	default:
		return rawEvent{}, false
	}
	return ev, true
}
