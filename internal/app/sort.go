package app

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/justyntemme/pikeru/internal/fs"
	"github.com/justyntemme/pikeru/internal/index"
	"github.com/justyntemme/pikeru/internal/search"
)

// SortColumn selects the display order when no query is active.
type SortColumn int

const (
	SortByName SortColumn = iota
	SortByDate
	SortBySize
	SortByType
)

func (s SortColumn) String() string {
	switch s {
	case SortByDate:
		return "date"
	case SortBySize:
		return "size"
	case SortByType:
		return "type"
	default:
		return "name"
	}
}

// ParseSortColumn accepts the names produced by String.
func ParseSortColumn(s string) (SortColumn, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "name":
		return SortByName, nil
	case "date", "mtime":
		return SortByDate, nil
	case "size":
		return SortBySize, nil
	case "type", "ext":
		return SortByType, nil
	}
	return SortByName, fmt.Errorf("unknown sort column %q", s)
}

func getComparator(col SortColumn) func(a, b fs.Entry) bool {
	switch col {
	case SortByDate:
		return func(a, b fs.Entry) bool { return a.ModTime < b.ModTime }
	case SortByType:
		return func(a, b fs.Entry) bool {
			extA, extB := strings.ToLower(filepath.Ext(a.Name)), strings.ToLower(filepath.Ext(b.Name))
			if extA == extB {
				return strings.ToLower(a.Name) < strings.ToLower(b.Name)
			}
			return extA < extB
		}
	case SortBySize:
		return func(a, b fs.Entry) bool {
			if a.Size == b.Size {
				return strings.ToLower(a.Name) < strings.ToLower(b.Name)
			}
			return a.Size < b.Size
		}
	default: // SortByName
		return func(a, b fs.Entry) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	}
}

// displayOrder returns every live slot, directories first, then by col.
func displayOrder(a *index.Arena, col SortColumn, asc bool) []int {
	type row struct {
		i int
		e fs.Entry
	}
	rows := make([]row, 0, a.Len())
	for i := 0; i < a.Len(); i++ {
		if e, ok := a.Peek(i); ok {
			rows = append(rows, row{i, e})
		}
	}

	cmp := getComparator(col)
	sort.SliceStable(rows, func(i, j int) bool {
		// Directories first
		if rows[i].e.IsDir() != rows[j].e.IsDir() {
			return rows[i].e.IsDir()
		}
		if !asc {
			return cmp(rows[j].e, rows[i].e)
		}
		return cmp(rows[i].e, rows[j].e)
	})

	out := make([]int, len(rows))
	for k, r := range rows {
		out[k] = r.i
	}
	return out
}

// dirsFirst moves matches for directories ahead of the rest, keeping score
// order within each group. Matches for removed slots are dropped.
func dirsFirst(a *index.Arena, matches []search.Match) []search.Match {
	out := make([]search.Match, 0, len(matches))
	var files []search.Match
	for _, m := range matches {
		e, ok := a.Peek(m.Index)
		if !ok {
			continue
		}
		if e.IsDir() {
			out = append(out, m)
		} else {
			files = append(files, m)
		}
	}
	return append(out, files...)
}
