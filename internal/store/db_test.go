package store

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/pikeru/internal/epoch"
)

func openDB(t *testing.T) *DB {
	t.Helper()
	d := NewDB()
	require.NoError(t, d.Open(filepath.Join(t.TempDir(), "sub", "desc.db")))
	t.Cleanup(d.Close)
	return d
}

func TestPutAndLookupByDirectory(t *testing.T) {
	d := openDB(t)
	require.NoError(t, d.Put(Description{Path: "/pics/a.jpg", Text: "a beach", MTime: 10}))
	require.NoError(t, d.Put(Description{Path: "/pics/b.jpg", Text: "a dog"}))
	require.NoError(t, d.Put(Description{Path: "/pics/sub/c.jpg", Text: "nested"}))
	require.NoError(t, d.Put(Description{Path: "/pics/a.jpg", Text: "a sunny beach", MTime: 11}))

	got, err := d.Lookup("/pics/")
	require.NoError(t, err)
	byPath := map[string]Description{}
	for _, desc := range got {
		byPath[desc.Path] = desc
	}
	assert.Len(t, byPath, 2)
	assert.Equal(t, "a sunny beach", byPath["/pics/a.jpg"].Text)
	assert.Equal(t, int64(11), byPath["/pics/a.jpg"].MTime)

	got, err = d.Lookup("/pics", "/pics/sub")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = d.Lookup()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNotOpen(t *testing.T) {
	d := NewDB()
	_, err := d.Lookup("/x")
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, d.Put(Description{Path: "/x/y"}), ErrNotOpen)
	_, err = d.ImportCSV(strings.NewReader("path,caption\n"), "/")
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestImportCSV(t *testing.T) {
	d := openDB(t)
	in := `path,caption
/data/img1.png,"a red car, parked"
rel/img2.png, two cats
,orphan
onlypath.png
`
	n, err := d.ImportCSV(strings.NewReader(in), "/base")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := d.Lookup("/data", "/base/rel")
	require.NoError(t, err)
	texts := map[string]string{}
	for _, desc := range got {
		texts[desc.Path] = desc.Text
	}
	assert.Equal(t, map[string]string{
		"/data/img1.png":     "a red car, parked",
		"/base/rel/img2.png": "two cats",
	}, texts)
}

func TestImportCSVEmpty(t *testing.T) {
	d := openDB(t)
	n, err := d.ImportCSV(strings.NewReader(""), "/")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestActorLookupCarriesEpoch(t *testing.T) {
	d := openDB(t)
	require.NoError(t, d.Put(Description{Path: "/r/x.png", Text: "x"}))
	go d.Start()
	t.Cleanup(func() { close(d.RequestChan) })

	var navs epoch.Counter
	tok := navs.Next()
	d.RequestChan <- Request{Op: Lookup, Dirs: []string{"/r"}, Epoch: tok}

	select {
	case resp := <-d.ResponseChan:
		require.NoError(t, resp.Err)
		assert.Equal(t, tok, resp.Epoch)
		require.Len(t, resp.Descriptions, 1)
		assert.Equal(t, "/r/x.png", resp.Descriptions[0].Path)
	case <-time.After(5 * time.Second):
		t.Fatal("no response")
	}
}
