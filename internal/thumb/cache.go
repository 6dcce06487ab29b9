package thumb

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Key names the cache artifact for a source file at a target size. Any
// change to the path, size or modification time of the source yields a new
// key.
func Key(path string, size, mtime int64, target int) string {
	h := xxhash.Sum64String(path) ^
		xxhash.Sum64String(strconv.FormatInt(size, 10)) ^
		xxhash.Sum64String(strconv.FormatInt(mtime, 10))
	return fmt.Sprintf("%016x%d", h, target)
}

// Cache stores encoded thumbnails as <key>.png files in Dir.
type Cache struct {
	Dir string
}

func (c Cache) path(key string) string {
	return filepath.Join(c.Dir, key+".png")
}

// Load returns the artifact for key if it exists and is at least as new as
// the source.
func (c Cache) Load(key string, srcMtime int64) ([]byte, bool) {
	p := c.path(key)
	info, err := os.Stat(p)
	if err != nil || info.ModTime().Unix() < srcMtime {
		return nil, false
	}
	data, err := os.ReadFile(p)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Store writes data for key. The write goes to a temp file that is renamed
// into place, so concurrent readers never see a partial artifact and
// repeated stores of the same key are harmless.
func (c Cache) Store(key string, data []byte) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(c.Dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), c.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename into cache: %w", err)
	}
	return nil
}

// DefaultDir returns $XDG_CACHE_HOME/pikeru/thumbnails or its platform
// equivalent.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "pikeru", "thumbnails"), nil
}
