//go:build linux

package fs

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

var virtualFSTypes = map[string]bool{
	"tmpfs":    true,
	"devtmpfs": true,
	"cgroup":   true,
	"cgroup2":  true,
	"overlay":  true,
	"squashfs": true,
}

// ListDrives returns the real mounts from /proc/mounts, root first.
func ListDrives() []Drive {
	drives := []Drive{{Name: "/", Path: "/"}}

	f, err := os.Open("/proc/mounts")
	if err != nil {
		return drives
	}
	defer f.Close()

	seen := map[string]bool{"/": true}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			continue
		}
		mount, fsType := fields[1], fields[2]
		if seen[mount] || virtualFSTypes[fsType] || ShouldSkipPath(mount) {
			continue
		}
		seen[mount] = true

		name := mount
		if strings.HasPrefix(mount, "/media/") || strings.HasPrefix(mount, "/mnt/") {
			name = filepath.Base(mount)
		}
		drives = append(drives, Drive{Name: name, Path: mount})
	}
	return drives
}
