// Package metrics defines the Prometheus collectors exported by pikeru.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pikeru_thumbnail_generations_total",
			Help: "Total number of thumbnails resolved, by file class and outcome",
		},
		[]string{"class", "outcome"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pikeru_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"class"},
	)

	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pikeru_thumbnail_cache_hits_total",
			Help: "Total number of thumbnail cache hits",
		},
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pikeru_thumbnail_cache_misses_total",
			Help: "Total number of thumbnail cache misses",
		},
	)

	ThumbnailsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pikeru_thumbnails_in_flight",
			Help: "Number of thumbnail tasks currently running",
		},
	)
)

// Indexing metrics
var (
	CrawlDirsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pikeru_crawl_dirs_listed_total",
			Help: "Total number of directories listed by the recursive crawler",
		},
	)

	CrawlEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pikeru_crawl_entries_total",
			Help: "Total number of entries discovered by the recursive crawler",
		},
	)

	CrawlIgnoredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pikeru_crawl_ignored_total",
			Help: "Total number of entries skipped by ignore rules",
		},
	)

	WatchEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pikeru_watch_events_total",
			Help: "Total number of coalesced filesystem events",
		},
		[]string{"op"},
	)

	StaleResultsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pikeru_stale_results_dropped_total",
			Help: "Asynchronous results discarded because their epoch was superseded",
		},
		[]string{"source"},
	)
)

// Search metrics
var (
	SearchQueriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pikeru_search_queries_total",
			Help: "Total number of ranking passes run by the search engine",
		},
	)

	SearchReissuesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pikeru_search_reissues_total",
			Help: "Queries reissued because the item set grew while ranking",
		},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pikeru_search_duration_seconds",
			Help:    "Time spent ranking one query",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Description store metrics
var (
	DescriptionLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pikeru_description_lookups_total",
			Help: "Total number of description store operations",
		},
		[]string{"operation", "status"},
	)
)
