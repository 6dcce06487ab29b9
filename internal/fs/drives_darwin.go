//go:build darwin

package fs

import (
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charlievieth/fastwalk"
)

const volumesDir = "/Volumes"

// ListDrives returns the entries of /Volumes. The boot volume, a symlink to
// "/", is listed first.
func ListDrives() []Drive {
	var (
		mu     sync.Mutex
		boot   []Drive
		drives []Drive
	)

	conf := &fastwalk.Config{Follow: true}
	err := fastwalk.Walk(conf, volumesDir, func(p string, d iofs.DirEntry, err error) error {
		if err != nil || p == volumesDir {
			return nil
		}
		if filepath.Dir(p) != volumesDir || !d.IsDir() {
			return fastwalk.SkipDir
		}

		drive := Drive{Name: d.Name(), Path: p}
		if target, err := os.Readlink(p); err == nil && target == "/" {
			drive.Path = "/"
		} else if _, err := os.Stat(p); err != nil {
			return fastwalk.SkipDir
		}

		mu.Lock()
		if drive.Path == "/" {
			boot = append(boot, drive)
		} else {
			drives = append(drives, drive)
		}
		mu.Unlock()
		return fastwalk.SkipDir
	})
	if err != nil || len(boot)+len(drives) == 0 {
		return []Drive{{Name: "/", Path: "/"}}
	}

	sort.Slice(drives, func(i, j int) bool { return drives[i].Name < drives[j].Name })
	return append(boot, drives...)
}
