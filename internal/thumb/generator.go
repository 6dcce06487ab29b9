// Package thumb turns filesystem entries into previews.
//
// Renderable files are decoded, scaled to fit a target square and stored in a
// content-addressed cache directory. Everything else, and anything that
// fails to render, gets a static icon. Generation never returns an error:
// the returned entry always carries a preview.
package thumb

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/justyntemme/pikeru/internal/debug"
	"github.com/justyntemme/pikeru/internal/fs"
	"github.com/justyntemme/pikeru/internal/logging"
	"github.com/justyntemme/pikeru/internal/metrics"
)

// DefaultSize is the default target edge length in pixels.
const DefaultSize = 128

// Options configures a Generator.
type Options struct {
	CacheDir string
	Size     int
	Helpers  Helpers    // nil means detect
	Render   RenderFunc // nil means the built-in renderers
}

// Generator is safe for concurrent use.
type Generator struct {
	cache  Cache
	size   int
	render RenderFunc
	group  singleflight.Group
}

// NewGenerator creates a generator writing into opts.CacheDir.
func NewGenerator(opts Options) *Generator {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.Render == nil {
		if opts.Helpers == nil {
			infos := DetectHelpers()
			for _, info := range infos {
				debug.Log(debug.THUMB, "helper %s available=%v %s", info.Name, info.Available, info.Version)
			}
			opts.Helpers = Available(infos)
		}
		opts.Render = renderer{helpers: opts.Helpers}.render
	}
	return &Generator{
		cache:  Cache{Dir: opts.CacheDir},
		size:   opts.Size,
		render: opts.Render,
	}
}

// Size returns the target edge length.
func (g *Generator) Size() int { return g.size }

// Generate resolves the preview of e and returns the updated entry.
func (g *Generator) Generate(ctx context.Context, e fs.Entry) fs.Entry {
	switch e.Kind {
	case fs.KindDirectory:
		e.Preview = &fs.Preview{Icon: fs.IconFolder}
		return e
	case fs.KindNotExist:
		e.Preview = &fs.Preview{Icon: fs.IconUnknown}
		return e
	}

	class := Classify(e.Path)
	if !class.Renderable() {
		e.Kind = fs.KindFile
		e.Preview = &fs.Preview{Icon: staticIcon(class)}
		metrics.ThumbnailGenerationsTotal.WithLabelValues(class.String(), "icon").Inc()
		return e
	}

	key := Key(e.Path, e.Size, e.ModTime, g.size)
	if data, ok := g.cache.Load(key, e.ModTime); ok {
		metrics.ThumbnailCacheHits.Inc()
		metrics.ThumbnailGenerationsTotal.WithLabelValues(class.String(), "cached").Inc()
		e.Kind = fs.KindImage
		e.Preview = &fs.Preview{PNG: data, CacheKey: key}
		return e
	}
	metrics.ThumbnailCacheMisses.Inc()

	start := time.Now()
	v, err, shared := g.group.Do(key, func() (any, error) {
		data, err := g.render(ctx, class, e.Path, g.size)
		if err != nil {
			return nil, err
		}
		if err := g.cache.Store(key, data); err != nil {
			logging.Warn("thumbnail cache write failed", zap.String("key", key), zap.Error(err))
		}
		return data, nil
	})
	metrics.ThumbnailGenerationDuration.WithLabelValues(class.String()).Observe(time.Since(start).Seconds())

	if err != nil {
		e.Kind = fs.KindFile
		if errors.Is(err, ErrHelperUnavailable) {
			debug.Log(debug.THUMB, "%s: %v", e.Path, err)
			e.Preview = &fs.Preview{Icon: fs.IconDocument}
			metrics.ThumbnailGenerationsTotal.WithLabelValues(class.String(), "unavailable").Inc()
			return e
		}
		logging.Warn("thumbnail generation failed",
			zap.String("path", e.Path),
			zap.Stringer("class", class),
			zap.Error(err))
		e.Preview = &fs.Preview{Icon: failureIcon(class)}
		metrics.ThumbnailGenerationsTotal.WithLabelValues(class.String(), "failed").Inc()
		return e
	}

	debug.Log(debug.THUMB, "generated %s (%s, shared=%v) in %s", e.Path, class, shared, time.Since(start))
	metrics.ThumbnailGenerationsTotal.WithLabelValues(class.String(), "generated").Inc()
	e.Kind = fs.KindImage
	e.Preview = &fs.Preview{PNG: v.([]byte), CacheKey: key}
	return e
}

func staticIcon(c Class) fs.Icon {
	switch c {
	case Audio:
		return fs.IconAudio
	case Document:
		return fs.IconDocument
	default:
		return fs.IconUnknown
	}
}

func failureIcon(c Class) fs.Icon {
	switch c {
	case Raster, Vector, Video:
		return fs.IconError
	default:
		return fs.IconDocument
	}
}
