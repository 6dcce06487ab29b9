package search

import (
	"sort"

	"github.com/sahilm/fuzzy"
)

// Scorer ranks the strings of src against pattern and returns one match per
// string that matched, with Index referring to src. fuzzy.FindFrom is the
// default; tests substitute deterministic scores.
type Scorer func(pattern string, src fuzzy.Source) fuzzy.Matches

// candidate is a ranking snapshot of one visible item.
type candidate struct {
	index       int
	name        string
	description string
}

type nameSource []candidate

func (s nameSource) String(i int) string { return s[i].name }
func (s nameSource) Len() int            { return len(s) }

// descSource holds only the candidates that carry a description.
type descSource struct {
	cands []candidate
	pos   []int // position in cands
}

func (s descSource) String(i int) string { return s.cands[s.pos[i]].description }
func (s descSource) Len() int            { return len(s.pos) }

// rank scores every candidate by the better of its filename score and its
// description score. Candidates matching neither are excluded. Results are
// sorted by descending score; equal scores keep view order.
func rank(score Scorer, term string, cands []candidate) []Match {
	if term == "" {
		out := make([]Match, len(cands))
		for i, c := range cands {
			out[i] = Match{Index: c.index}
		}
		return out
	}

	best := make(map[int]int, len(cands)) // position in cands -> score
	for _, m := range score(term, nameSource(cands)) {
		best[m.Index] = m.Score
	}

	ds := descSource{cands: cands}
	for i, c := range cands {
		if c.description != "" {
			ds.pos = append(ds.pos, i)
		}
	}
	if ds.Len() > 0 {
		for _, m := range score(term, ds) {
			pos := ds.pos[m.Index]
			if prev, ok := best[pos]; !ok || m.Score > prev {
				best[pos] = m.Score
			}
		}
	}

	positions := make([]int, 0, len(best))
	for pos := range best {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	sort.SliceStable(positions, func(i, j int) bool {
		return best[positions[i]] > best[positions[j]]
	})

	out := make([]Match, len(positions))
	for i, pos := range positions {
		out[i] = Match{Index: cands[pos].index, Score: best[pos]}
	}
	return out
}
