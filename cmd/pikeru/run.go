package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justyntemme/pikeru/internal/app"
	"github.com/justyntemme/pikeru/internal/config"
	"github.com/justyntemme/pikeru/internal/crawl"
	"github.com/justyntemme/pikeru/internal/fs"
	"github.com/justyntemme/pikeru/internal/logging"
	"github.com/justyntemme/pikeru/internal/search"
	"github.com/justyntemme/pikeru/internal/thumb"
	"github.com/justyntemme/pikeru/internal/watch"
)

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logging.Sync()
	applyFlags(cmd, &cfg)

	sortCol, err := app.ParseSortColumn(cfg.View.SortBy)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("metrics server failed", zap.String("addr", metricsAddr), zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	deps := app.Deps{
		FS: fs.NewSystem(),
		Crawler: crawl.New(crawl.Options{
			UserRules:          cfg.Index.IgnoreRules,
			RespectIgnoreFiles: cfg.Index.RespectIgnoreFiles,
			IgnoreFileNames:    cfg.Index.IgnoreFileNames,
			ShowHidden:         cfg.Index.ShowHidden,
			MaxDepth:           cfg.Index.MaxDepth,
		}),
		Search: search.New(search.Options{}),
	}

	w, err := watch.New(watch.Options{Backend: cfg.Watch.Backend, RenameWindow: cfg.RenameWindow()})
	if err != nil {
		return err
	}
	defer w.Close()
	deps.Watch = w

	workers := cfg.ThumbnailWorkers()
	if thumbs >= 0 {
		cacheDir := cfg.Thumbnails.CacheDir
		if cacheDir == "" {
			if cacheDir, err = thumb.DefaultDir(); err != nil {
				return fmt.Errorf("thumbnail cache dir: %w", err)
			}
		}
		deps.Thumbs = thumb.NewGenerator(thumb.Options{CacheDir: cacheDir, Size: cfg.Thumbnails.Size})
	}

	if db, err := openStore(cfg); err != nil {
		logging.Warn("description store unavailable", zap.Error(err))
	} else {
		defer db.Close()
		deps.Store = db
	}

	c := app.New(deps, app.Options{
		Workers:    workers,
		Recursive:  cfg.Index.Recursive,
		ShowHidden: cfg.Index.ShowHidden,
		SortBy:     sortCol,
		Ascending:  cfg.View.SortAscending,
	})

	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()

	c.Navigate(app.ExpandRoots(args))
	if query != "" {
		c.Query(query)
	}

	s := &session{
		c:         c,
		thumbs:    deps.Thumbs != nil,
		recursive: cfg.Index.Recursive,
		entries:   make(map[int]fs.Entry),
	}
	return s.loop(ctx, errc)
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("recursive") {
		cfg.Index.Recursive = recursive
	}
	if flags.Changed("hidden") {
		cfg.Index.ShowHidden = showHidden
	}
	if flags.Changed("sort") {
		cfg.View.SortBy = sortBy
	}
	if flags.Changed("desc") {
		cfg.View.SortAscending = !descending
	}
	if thumbs > 0 {
		cfg.Thumbnails.Workers = thumbs
	}
}

// session mirrors the controller's output and decides when the first
// complete listing can be printed.
type session struct {
	c         *app.Controller
	thumbs    bool
	recursive bool

	entries map[int]fs.Entry
	crawled bool
	last    *app.Results
	printed bool
}

func (s *session) loop(ctx context.Context, errc <-chan error) error {
	for {
		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
			return <-errc
		case u, ok := <-s.c.Updates():
			if !ok {
				return <-errc
			}
			s.apply(u)
		case r, ok := <-s.c.Results():
			if !ok {
				return <-errc
			}
			if r.Final {
				s.last = &r
			}
		}

		if !s.printed && s.ready() {
			s.print()
			s.printed = true
			if !keepWatch {
				return nil
			}
		}
	}
}

func (s *session) apply(u app.Update) {
	switch u.Kind {
	case app.UpdateReset:
		s.entries = make(map[int]fs.Entry)
		s.crawled = false
		s.last = nil
	case app.UpdateEntry:
		_, known := s.entries[u.Index]
		s.entries[u.Index] = u.Entry
		if s.printed && !known {
			fmt.Printf("+ %s\n", u.Entry.Path)
		}
	case app.UpdateRemoved:
		if e, ok := s.entries[u.Index]; ok && s.printed {
			fmt.Printf("- %s\n", e.Path)
		}
		delete(s.entries, u.Index)
	case app.UpdateCrawlDone:
		s.crawled = true
	}
}

func (s *session) ready() bool {
	if s.last == nil || (s.recursive && !s.crawled) {
		return false
	}
	if !s.thumbs {
		return true
	}
	for _, m := range s.last.Matches {
		if e, ok := s.entries[m.Index]; ok && !e.Resolved() {
			return false
		}
	}
	return true
}

func (s *session) print() {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	for _, m := range s.last.Matches {
		e, ok := s.entries[m.Index]
		if !ok {
			continue
		}
		preview := "-"
		if e.Preview != nil {
			preview = e.Preview.Icon.String()
			if e.Preview.IsThumbnail() {
				preview = "thumb:" + e.Preview.CacheKey
			}
		}
		size := ""
		if !e.IsDir() {
			size = humanize.Bytes(uint64(e.Size))
		}
		modified := humanize.Time(time.Unix(e.ModTime, 0))
		if s.last.Term != "" {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", m.Score, e.Kind, size, modified, e.Path, preview, e.Description)
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Kind, size, modified, e.Path, preview, e.Description)
		}
	}
	fmt.Fprintf(tw, "\n%s entries\n", humanize.Comma(int64(len(s.last.Matches))))
}
