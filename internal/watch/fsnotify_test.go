package watch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateFSNotify(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "full"), []byte("data"), 0o644))

	tests := []struct {
		name string
		ev   fsnotify.Event
		op   rawOp
		ok   bool
	}{
		{"dir create", fsnotify.Event{Name: filepath.Join(dir, "sub"), Op: fsnotify.Create}, opCreate | opIsDir, true},
		{"empty file create", fsnotify.Event{Name: filepath.Join(dir, "empty"), Op: fsnotify.Create}, opCreate, true},
		{"file with content", fsnotify.Event{Name: filepath.Join(dir, "full"), Op: fsnotify.Create}, opMovedTo, true},
		{"vanished create", fsnotify.Event{Name: filepath.Join(dir, "gone"), Op: fsnotify.Create}, 0, false},
		{"write", fsnotify.Event{Name: filepath.Join(dir, "full"), Op: fsnotify.Write}, opCloseWrite, true},
		{"remove", fsnotify.Event{Name: filepath.Join(dir, "x"), Op: fsnotify.Remove}, opDelete, true},
		{"rename", fsnotify.Event{Name: filepath.Join(dir, "x"), Op: fsnotify.Rename}, opMovedFrom, true},
		{"chmod", fsnotify.Event{Name: filepath.Join(dir, "x"), Op: fsnotify.Chmod}, 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := translateFSNotify(tc.ev)
			assert.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.op, got.op)
				assert.Equal(t, dir, got.dir)
				assert.Zero(t, got.cookie)
			}
		})
	}
}
