package crawl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/pikeru/internal/epoch"
	"github.com/justyntemme/pikeru/internal/fs"
)

func mkTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		if content == "/" {
			require.NoError(t, os.MkdirAll(p, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// collect drains batches until Done and returns the discovered paths
// relative to root.
func collect(t *testing.T, c *Crawler, root string, tok epoch.Token) []string {
	t.Helper()
	var got []string
	deadline := time.After(5 * time.Second)
	for {
		select {
		case b := <-c.Batches():
			if b.Epoch != tok {
				continue
			}
			for _, e := range b.Entries {
				assert.True(t, e.Recursed)
				assert.Equal(t, tok, e.NavEpoch)
				rel, err := filepath.Rel(root, e.Path)
				require.NoError(t, err)
				got = append(got, filepath.ToSlash(rel))
			}
			if b.Done {
				sort.Strings(got)
				return got
			}
		case <-deadline:
			t.Fatalf("crawl did not finish; have %v", got)
		}
	}
}

func startCrawler(t *testing.T, opts Options) *Crawler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c := New(opts)
	go c.Run(ctx)
	return c
}

func TestCrawlHonoursLayeredIgnoreFiles(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		".gitignore":       "*.log\nbuild/\n",
		"top.log":          "x",
		"a/.gitignore":     "!keep.log\n",
		"a/keep.log":       "x",
		"a/other.log":      "x",
		"a/b/deep.log":     "x",
		"a/b/keep.log":     "x",
		"a/b/file.txt":     "x",
		"build/out.bin":    "x",
		"c/build/x.txt":    "x",
		"c/notes.md":       "x",
		".git/HEAD":        "x",
		"sibling/keep.log": "x",
	})

	c := startCrawler(t, Options{RespectIgnoreFiles: true, IgnoreFileNames: []string{".gitignore"}, ShowHidden: true})
	var counter epoch.Counter
	tok := counter.Next()
	c.SetEnabled(true)
	c.Start([]string{root}, tok)

	got := collect(t, c, root, tok)
	assert.Equal(t, []string{
		"a/.gitignore",
		"a/b",
		"a/b/file.txt",
		"a/b/keep.log",
		"a/keep.log",
		"c/notes.md",
	}, got)
}

func TestCrawlUserRulesAndHidden(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"src/main.go":         "x",
		"src/.cache/blob":     "x",
		"node_modules/m/i.js": "x",
		"src/vendor/v.go":     "x",
	})

	c := startCrawler(t, Options{UserRules: []string{"node_modules/", "vendor/"}})
	var counter epoch.Counter
	tok := counter.Next()
	c.SetEnabled(true)
	c.Start([]string{root}, tok)

	assert.Equal(t, []string{"src/main.go"}, collect(t, c, root, tok))
}

func TestCrawlMaxDepth(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"a/one.txt":   "x",
		"a/b/two.txt": "x",
		"a/b/c/three": "x",
	})

	c := startCrawler(t, Options{MaxDepth: 2})
	var counter epoch.Counter
	tok := counter.Next()
	c.SetEnabled(true)
	c.Start([]string{root}, tok)

	assert.Equal(t, []string{"a/b", "a/one.txt"}, collect(t, c, root, tok))
}

func TestCrawlToleratesListFailures(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"ok/file.txt":  "x",
		"bad/file.txt": "x",
	})

	lister := func(dir string) ([]fs.Entry, error) {
		if filepath.Base(dir) == "bad" {
			return nil, errors.New("permission denied")
		}
		return fs.ListDir(dir)
	}

	c := startCrawler(t, Options{Lister: lister})
	var counter epoch.Counter
	tok := counter.Next()
	c.SetEnabled(true)
	c.Start([]string{root}, tok)

	assert.Equal(t, []string{"ok/file.txt"}, collect(t, c, root, tok))
}

func TestCrawlDoesNotFollowSymlinkedDirs(t *testing.T) {
	root := t.TempDir()
	target := t.TempDir()
	mkTree(t, root, map[string]string{"d/f.txt": "x"})
	mkTree(t, target, map[string]string{"inner.txt": "x"})
	if err := os.Symlink(target, filepath.Join(root, "d", "link")); err != nil {
		t.Skipf("cannot create symlinks: %v", err)
	}

	c := startCrawler(t, Options{})
	var counter epoch.Counter
	tok := counter.Next()
	c.SetEnabled(true)
	c.Start([]string{root}, tok)

	assert.Equal(t, []string{"d/f.txt", "d/link"}, collect(t, c, root, tok))
}

func TestCrawlStaleEpochIsDropped(t *testing.T) {
	oldRoot := t.TempDir()
	newRoot := t.TempDir()
	mkTree(t, oldRoot, map[string]string{"x/old.txt": "x"})
	mkTree(t, newRoot, map[string]string{"y/new.txt": "x"})

	release := make(chan struct{})
	lister := func(dir string) ([]fs.Entry, error) {
		if dir == oldRoot {
			<-release
		}
		return fs.ListDir(dir)
	}

	c := startCrawler(t, Options{Lister: lister})
	var counter epoch.Counter
	stale := counter.Next()
	c.SetEnabled(true)
	c.Start([]string{oldRoot}, stale)

	fresh := counter.Next()
	c.Start([]string{newRoot}, fresh)
	close(release)

	assert.Equal(t, []string{"y/new.txt"}, collect(t, c, newRoot, fresh))
}

func TestCrawlDisabledEmitsNothing(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{"a/b.txt": "x"})

	c := startCrawler(t, Options{})
	var counter epoch.Counter
	tok := counter.Next()
	c.Start([]string{root}, tok)

	select {
	case b := <-c.Batches():
		t.Fatalf("disabled crawler produced %+v", b)
	case <-time.After(100 * time.Millisecond):
	}

	c.SetEnabled(true)
	assert.Equal(t, []string{"a/b.txt"}, collect(t, c, root, tok))
}

func TestCrawlReenableWaitsForStart(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, map[string]string{
		"a/b/c.txt": "x",
		"a/f.txt":   "x",
	})

	entered := make(chan struct{}, 4)
	release := make(chan struct{})
	lister := func(dir string) ([]fs.Entry, error) {
		if filepath.Base(dir) == "a" {
			entered <- struct{}{}
			<-release
		}
		return fs.ListDir(dir)
	}

	c := startCrawler(t, Options{Lister: lister, BatchDirs: 1})
	var counter epoch.Counter
	tok := counter.Next()
	c.SetEnabled(true)
	c.Start([]string{root}, tok)

	// The root pump queues a/; the next pump blocks listing it.
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("crawler never listed a/")
	}
	c.SetEnabled(false)
	time.Sleep(50 * time.Millisecond)
	close(release)
	c.SetEnabled(true)

	deadline := time.After(200 * time.Millisecond)
drain:
	for {
		select {
		case b := <-c.Batches():
			assert.Empty(t, b.Entries, "crawled without a Start")
		case <-deadline:
			break drain
		}
	}

	fresh := counter.Next()
	c.Start([]string{root}, fresh)
	assert.Equal(t, []string{"a/b", "a/b/c.txt", "a/f.txt"}, collect(t, c, root, fresh))
}
