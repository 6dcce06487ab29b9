package fs

import (
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/justyntemme/pikeru/internal/debug"
	"github.com/justyntemme/pikeru/internal/epoch"
)

type OpType int

const (
	ListRoots OpType = iota
)

type Request struct {
	Op    OpType
	Paths []string
	Epoch epoch.Token // Navigation epoch the listing belongs to
}

type Response struct {
	Op      OpType
	Paths   []string
	Entries []Entry
	Errs    map[string]error // Per-root listing failures
	Epoch   epoch.Token
}

// System lists navigation roots off the caller's goroutine. Requests are
// served in order; the caller drops responses whose epoch is stale.
type System struct {
	RequestChan  chan Request
	ResponseChan chan Response
}

func NewSystem() *System {
	return &System{
		RequestChan:  make(chan Request, 10),
		ResponseChan: make(chan Response, 10),
	}
}

func (s *System) Start() {
	for req := range s.RequestChan {
		debug.Log(debug.FS, "Request: op=%d paths=%q epoch=%s", req.Op, req.Paths, req.Epoch)

		switch req.Op {
		case ListRoots:
			resp := s.listRoots(req.Paths)
			resp.Epoch = req.Epoch
			debug.Log(debug.FS, "ListRoots response: entries=%d errs=%d epoch=%s",
				len(resp.Entries), len(resp.Errs), resp.Epoch)
			s.ResponseChan <- resp
		}
	}
}

func (s *System) listRoots(paths []string) Response {
	resp := Response{Op: ListRoots, Paths: paths}
	for _, p := range paths {
		entries, err := ListDir(p)
		if err != nil {
			if resp.Errs == nil {
				resp.Errs = make(map[string]error)
			}
			resp.Errs[p] = err
			continue
		}
		resp.Entries = append(resp.Entries, entries...)
	}
	return resp
}

// skipDirRoots contains top-level directories never descended into
// (without trailing slash)
var skipDirRoots = map[string]bool{
	"dev":        true,
	"proc":       true,
	"sys":        true,
	"run":        true,
	"snap":       true,
	"boot":       true,
	"lost+found": true,
}

// ShouldSkipPath returns true if the path lies under a system directory that
// recursive traversal must not enter.
func ShouldSkipPath(path string) bool {
	// Must start with "/" (Unix absolute path)
	if len(path) < 2 || path[0] != '/' {
		return false
	}
	// Find end of first component (e.g., "/dev/foo" -> "dev")
	rest := path[1:]
	slashIdx := strings.IndexByte(rest, '/')
	var firstComponent string
	if slashIdx == -1 {
		firstComponent = rest // No more slashes, e.g., "/dev"
	} else {
		firstComponent = rest[:slashIdx] // e.g., "/dev/foo" -> "dev"
	}
	return skipDirRoots[firstComponent]
}

// ListDir returns the direct children of path, sorted by name. Children that
// vanish between readdir and stat are skipped; dangling symlinks are reported
// as KindNotExist.
func ListDir(path string) ([]Entry, error) {
	debug.Log(debug.FS, "ListDir: reading %q", path)

	var result []Entry
	var mu sync.Mutex

	// Symlinks are stat'ed below but never walked through
	conf := &fastwalk.Config{
		Follow: false,
	}

	pathLen := len(path)

	err := fastwalk.Walk(conf, path, func(fullPath string, d fs.DirEntry, err error) error {
		if err != nil {
			if fullPath == path {
				return err
			}
			debug.Log(debug.FS_ENTRY, "ListDir: walk error at %q: %v", fullPath, err)
			return nil // Skip errors, continue walking
		}

		// Skip the root directory itself
		if fullPath == path {
			return nil
		}

		// Only process direct children (depth 1)
		relStart := pathLen
		if relStart < len(fullPath) && (fullPath[relStart] == '/' || fullPath[relStart] == '\\') {
			relStart++
		}
		rel := fullPath[relStart:]
		if strings.ContainsAny(rel, "/\\") {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		entry, ok := newEntry(fullPath, d)
		if ok {
			mu.Lock()
			result = append(result, entry)
			mu.Unlock()
		}

		if d.IsDir() {
			return fastwalk.SkipDir
		}
		return nil
	})

	if err != nil {
		debug.Log(debug.FS, "ListDir: walk error: %v", err)
		return nil, err
	}

	// fastwalk delivers children from several workers
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	debug.Log(debug.FS, "ListDir: returning %d entries", len(result))
	return result, nil
}

// Stat builds an entry for a single path, as used by watch creates.
func Stat(path string) (Entry, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Entry{}, err
	}
	entry, _ := newEntry(path, fs.FileInfoToDirEntry(info))
	return entry, nil
}

func newEntry(fullPath string, d fs.DirEntry) (Entry, bool) {
	symlink := d.Type()&fs.ModeSymlink != 0

	// StatDirEntry follows symlinks
	info, err := fastwalk.StatDirEntry(fullPath, d)
	kind := KindUnknown
	if err != nil {
		// Try lstat as fallback for broken symlinks
		info, err = os.Lstat(fullPath)
		if err != nil {
			debug.Log(debug.FS_ENTRY, "ListDir: skipping %q: stat error: %v", d.Name(), err)
			return Entry{}, false
		}
		debug.Log(debug.FS_ENTRY, "ListDir: %q: using lstat (symlink target inaccessible)", d.Name())
		kind = KindNotExist
	} else if info.IsDir() {
		kind = KindDirectory
	}

	debug.Log(debug.FS_ENTRY, "ListDir: %q kind=%s size=%d mode=%s",
		d.Name(), kind, info.Size(), info.Mode())

	return Entry{
		Path:    fullPath,
		Name:    d.Name(),
		Kind:    kind,
		Size:    info.Size(),
		ModTime: info.ModTime().Unix(),
		Hidden:  IsHidden(d.Name()),
		Symlink: symlink,
	}, true
}
