// Package debug traces component internals by category. The tracer is
// compiled in only with -tags debug; release builds keep every call as a
// no-op. Categories are picked with PIKERU_DEBUG=all|none|CAT,CAT.
package debug

import "strings"

// EnvVar selects the traced categories at startup.
const EnvVar = "PIKERU_DEBUG"

// Category names one traced component.
type Category string

const (
	APP    Category = "APP"    // controller commands
	NAV    Category = "NAV"    // navigation epochs and listings
	WATCH  Category = "WATCH"  // watch service, coalescing
	CRAWL  Category = "CRAWL"  // crawler frontier
	IGNORE Category = "IGNORE" // ignore verdicts
	SEARCH Category = "SEARCH" // ranking and queries
	THUMB  Category = "THUMB"  // pipeline, cache, generation
	STORE  Category = "STORE"  // description database
	FS     Category = "FS"     // directory listing

	FS_ENTRY  Category = "FS_ENTRY"  // one line per listed entry
	WATCH_RAW Category = "WATCH_RAW" // backend events before coalescing
)

var categories = []Category{APP, NAV, WATCH, CRAWL, IGNORE, SEARCH, THUMB, STORE, FS, FS_ENTRY, WATCH_RAW}

func verbose(c Category) bool { return c == FS_ENTRY || c == WATCH_RAW }

// parse turns a PIKERU_DEBUG value into the active set. An empty value
// selects every category except the verbose ones.
func parse(list string) map[Category]bool {
	active := make(map[Category]bool, len(categories))
	switch v := strings.ToUpper(strings.TrimSpace(list)); v {
	case "":
		for _, c := range categories {
			active[c] = !verbose(c)
		}
	case "ALL":
		for _, c := range categories {
			active[c] = true
		}
	case "NONE":
	default:
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				active[Category(name)] = true
			}
		}
	}
	return active
}
