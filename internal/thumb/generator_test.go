package thumb

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/pikeru/internal/fs"
)

func fileEntry(t *testing.T, path string) fs.Entry {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return fs.Entry{
		Path:    path,
		Name:    filepath.Base(path),
		Size:    info.Size(),
		ModTime: info.ModTime().Unix(),
	}
}

func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	require.NoError(t, imaging.Save(img, path))
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestGenerateRasterFitsAndCaches(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "wide.png")
	writeImage(t, src, 400, 200)

	cacheDir := filepath.Join(dir, "cache")
	g := NewGenerator(Options{CacheDir: cacheDir, Size: 64, Helpers: Helpers{}})

	got := g.Generate(context.Background(), fileEntry(t, src))
	assert.Equal(t, fs.KindImage, got.Kind)
	require.True(t, got.Preview.IsThumbnail())

	b := decodePNG(t, got.Preview.PNG).Bounds()
	assert.Equal(t, 64, b.Dx())
	assert.Equal(t, 32, b.Dy())

	cached, ok := Cache{Dir: cacheDir}.Load(got.Preview.CacheKey, got.ModTime)
	require.True(t, ok)
	assert.Equal(t, got.Preview.PNG, cached)
}

func TestGenerateUsesCacheBeforeRendering(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	writeImage(t, src, 10, 10)

	var calls atomic.Int32
	render := func(ctx context.Context, class Class, path string, target int) ([]byte, error) {
		calls.Add(1)
		return []byte("fake"), nil
	}
	g := NewGenerator(Options{CacheDir: filepath.Join(dir, "cache"), Size: 32, Render: render})

	e := fileEntry(t, src)
	first := g.Generate(context.Background(), e)
	second := g.Generate(context.Background(), e)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, first.Preview.PNG, second.Preview.PNG)
	assert.Equal(t, fs.KindImage, second.Kind)
}

func TestGenerateRegeneratesAfterTouch(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	writeImage(t, src, 10, 10)

	var calls atomic.Int32
	render := func(ctx context.Context, class Class, path string, target int) ([]byte, error) {
		calls.Add(1)
		return []byte("fake"), nil
	}
	g := NewGenerator(Options{CacheDir: filepath.Join(dir, "cache"), Size: 32, Render: render})

	first := g.Generate(context.Background(), fileEntry(t, src))
	require.True(t, first.Preview.IsThumbnail())

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(src, later, later))

	second := g.Generate(context.Background(), fileEntry(t, src))
	require.True(t, second.Preview.IsThumbnail())
	assert.Equal(t, int32(2), calls.Load())
	assert.NotEqual(t, first.Preview.CacheKey, second.Preview.CacheKey)
}

func TestGenerateCollapsesConcurrentRequests(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	writeImage(t, src, 10, 10)

	release := make(chan struct{})
	var calls atomic.Int32
	render := func(ctx context.Context, class Class, path string, target int) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("fake"), nil
	}
	g := NewGenerator(Options{CacheDir: filepath.Join(dir, "cache"), Render: render})
	e := fileEntry(t, src)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := g.Generate(context.Background(), e)
			assert.Equal(t, fs.KindImage, got.Kind)
		}()
	}
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateStaticIcons(t *testing.T) {
	g := NewGenerator(Options{CacheDir: t.TempDir(), Helpers: Helpers{}})
	ctx := context.Background()

	tests := []struct {
		entry    fs.Entry
		wantKind fs.Kind
		wantIcon fs.Icon
	}{
		{fs.Entry{Path: "/d", Kind: fs.KindDirectory}, fs.KindDirectory, fs.IconFolder},
		{fs.Entry{Path: "/gone", Kind: fs.KindNotExist}, fs.KindNotExist, fs.IconUnknown},
		{fs.Entry{Path: "/m/song.mp3"}, fs.KindFile, fs.IconAudio},
		{fs.Entry{Path: "/m/readme.md"}, fs.KindFile, fs.IconDocument},
		{fs.Entry{Path: "/m/blob.bin"}, fs.KindFile, fs.IconUnknown},
		// no helpers installed
		{fs.Entry{Path: "/m/paper.pdf"}, fs.KindFile, fs.IconDocument},
		{fs.Entry{Path: "/m/book.epub"}, fs.KindFile, fs.IconDocument},
		{fs.Entry{Path: "/m/clip.mp4"}, fs.KindFile, fs.IconDocument},
	}
	for _, tt := range tests {
		got := g.Generate(ctx, tt.entry)
		require.NotNil(t, got.Preview, tt.entry.Path)
		assert.Equal(t, tt.wantKind, got.Kind, tt.entry.Path)
		assert.Equal(t, tt.wantIcon, got.Preview.Icon, tt.entry.Path)
		assert.False(t, got.Preview.IsThumbnail(), tt.entry.Path)
	}
}

func TestGenerateFailureFallsBackToErrorIcon(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(src, []byte("not a png"), 0o644))

	g := NewGenerator(Options{CacheDir: filepath.Join(dir, "cache"), Helpers: Helpers{}})
	got := g.Generate(context.Background(), fileEntry(t, src))
	assert.Equal(t, fs.KindFile, got.Kind)
	assert.Equal(t, fs.IconError, got.Preview.Icon)

	_, err := os.Stat(filepath.Join(dir, "cache"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "failures are not cached")
}

func TestGenerateVector(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "logo.svg")
	svg := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 50" width="100" height="50">
<rect x="0" y="0" width="100" height="50" fill="#336699"/>
</svg>`
	require.NoError(t, os.WriteFile(src, []byte(svg), 0o644))

	g := NewGenerator(Options{CacheDir: filepath.Join(dir, "cache"), Size: 40, Helpers: Helpers{}})
	got := g.Generate(context.Background(), fileEntry(t, src))
	require.Equal(t, fs.KindImage, got.Kind)

	img := decodePNG(t, got.Preview.PNG)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())
	_, _, _, a := img.At(20, 10).RGBA()
	assert.NotZero(t, a, "rectangle was painted")
}

func TestRenderMissingHelperIsUnavailable(t *testing.T) {
	r := renderer{helpers: Helpers{}}
	_, err := r.render(context.Background(), Video, "/x.mp4", 64)
	assert.ErrorIs(t, err, ErrHelperUnavailable)
	_, err = r.render(context.Background(), PDF, "/x.pdf", 64)
	assert.ErrorIs(t, err, ErrHelperUnavailable)
}

func TestAvailableFiltersMissing(t *testing.T) {
	h := Available([]HelperInfo{
		{Helper: HelperFFmpeg, Command: "/usr/bin/ffmpeg", Available: true},
		{Helper: HelperPdftoppm, Command: "pdftoppm"},
	})
	assert.Equal(t, Helpers{HelperFFmpeg: "/usr/bin/ffmpeg"}, h)
	assert.Len(t, DetectHelpers(), 3)
}
