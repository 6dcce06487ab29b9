package search

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sahilm/fuzzy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/pikeru/internal/epoch"
)

// tableScorer scores strings from a fixed table; strings absent from the
// table do not match.
func tableScorer(table map[string]int) Scorer {
	return func(pattern string, src fuzzy.Source) fuzzy.Matches {
		var out fuzzy.Matches
		for i := 0; i < src.Len(); i++ {
			if s, ok := table[src.String(i)]; ok {
				out = append(out, fuzzy.Match{Str: src.String(i), Index: i, Score: s})
			}
		}
		return out
	}
}

func TestRankTakesMaxOfNameAndDescription(t *testing.T) {
	score := tableScorer(map[string]int{
		"a.jpg":           10,
		"sunset at beach": 40,
		"b.jpg":           30,
		"blurry dog":      5,
		"a tree":          20,
	})

	cands := []candidate{
		{index: 0, name: "a.jpg", description: "sunset at beach"}, // max(10, 40) = 40
		{index: 1, name: "b.jpg", description: "blurry dog"},      // max(30, 5) = 30
		{index: 2, name: "c.jpg"},                                 // neither
		{index: 3, name: "d.txt", description: "a tree"},          // description only = 20
	}

	got := rank(score, "q", cands)
	assert.Equal(t, []Match{
		{Index: 0, Score: 40},
		{Index: 1, Score: 30},
		{Index: 3, Score: 20},
	}, got)
}

func TestRankTiesKeepViewOrder(t *testing.T) {
	score := tableScorer(map[string]int{"x": 1, "y": 1, "z": 2})
	cands := []candidate{{index: 7, name: "y"}, {index: 3, name: "x"}, {index: 9, name: "z"}}
	assert.Equal(t, []Match{{Index: 9, Score: 2}, {Index: 7, Score: 1}, {Index: 3, Score: 1}}, rank(score, "q", cands))
}

func TestRankEmptyTermReturnsView(t *testing.T) {
	cands := []candidate{{index: 4, name: "b"}, {index: 1, name: "a"}}
	assert.Equal(t, []Match{{Index: 4}, {Index: 1}}, rank(fuzzy.FindFrom, "", cands))
}

func TestRankWithFuzzyLibrary(t *testing.T) {
	cands := []candidate{
		{index: 0, name: "holiday.png"},
		{index: 1, name: "notes.txt", description: "holiday plans"},
		{index: 2, name: "zzz.bin"},
	}
	got := rank(fuzzy.FindFrom, "holiday", cands)
	require.Len(t, got, 2)
	idx := []int{got[0].Index, got[1].Index}
	assert.ElementsMatch(t, []int{0, 1}, idx)
}

func runEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	e := New(opts)
	go e.Run(ctx)
	return e
}

func nextResults(t *testing.T, e *Engine) Results {
	t.Helper()
	select {
	case r := <-e.Results():
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for results")
		return Results{}
	}
}

func containsScorer(pattern string, src fuzzy.Source) fuzzy.Matches {
	var out fuzzy.Matches
	for i := 0; i < src.Len(); i++ {
		s := src.String(i)
		if strings.Contains(s, pattern) {
			out = append(out, fuzzy.Match{Str: s, Index: i, Score: 100 - len(s)})
		}
	}
	return out
}

func TestEngineQueryTagsEpochAndItemCount(t *testing.T) {
	e := runEngine(t, Options{Scorer: containsScorer})
	var counter epoch.Counter
	tok := counter.Next()

	e.ReplaceItems([]string{"/r/cat.jpg", "/r/dog.jpg", "/r/catalog.pdf"}, tok)
	e.ReplaceView([]int{0, 1, 2})
	e.Query("cat")

	r := nextResults(t, e)
	assert.Equal(t, tok, r.Epoch)
	assert.Equal(t, "cat", r.Term)
	assert.Equal(t, 3, r.ItemCount)
	require.Len(t, r.Matches, 2)
	assert.Equal(t, 0, r.Matches[0].Index, "shorter name scores higher")
	assert.Equal(t, 2, r.Matches[1].Index)
}

func TestEngineOnlyRanksTheView(t *testing.T) {
	e := runEngine(t, Options{Scorer: containsScorer})
	var counter epoch.Counter
	e.ReplaceItems([]string{"/r/a1", "/r/a2", "/r/a3"}, counter.Next())
	e.ReplaceView([]int{2})
	e.AppendItems([]string{"/r/sub/a4"})
	e.AppendView([]int{3})
	e.Query("a")

	r := nextResults(t, e)
	assert.Equal(t, 4, r.ItemCount)
	var idx []int
	for _, m := range r.Matches {
		idx = append(idx, m.Index)
	}
	assert.ElementsMatch(t, []int{2, 3}, idx)
}

func TestEngineDescriptionsDoNotOverwrite(t *testing.T) {
	e := runEngine(t, Options{Scorer: containsScorer})
	var counter epoch.Counter
	e.ReplaceItems([]string{"/r/img1.png", "/r/img2.png"}, counter.Next())
	e.ReplaceView([]int{0, 1})
	e.AttachDescriptions([]Description{{Path: "/r/img1.png", Text: "mountain lake"}})
	e.AttachDescriptions([]Description{
		{Path: "/r/img1.png", Text: "replaced"},
		{Path: "/r/img2.png", Text: "mountain goat"},
		{Path: "/r/unknown.png", Text: "mountain"},
	})
	e.Query("lake")

	r := nextResults(t, e)
	require.Len(t, r.Matches, 1)
	assert.Equal(t, 0, r.Matches[0].Index)

	e.Query("replaced")
	r = nextResults(t, e)
	assert.Empty(t, r.Matches, "first description wins")

	e.Query("goat")
	r = nextResults(t, e)
	require.Len(t, r.Matches, 1)
	assert.Equal(t, 1, r.Matches[0].Index)
}

func TestEngineReplaceItemsStartsNewEpoch(t *testing.T) {
	e := runEngine(t, Options{Scorer: containsScorer})
	var counter epoch.Counter
	e.ReplaceItems([]string{"/old/x"}, counter.Next())
	fresh := counter.Next()
	e.ReplaceItems([]string{"/new/x", "/new/y"}, fresh)
	e.ReplaceView([]int{0, 1})
	e.Query("")

	r := nextResults(t, e)
	assert.Equal(t, fresh, r.Epoch)
	assert.Equal(t, 2, r.ItemCount)
	assert.Equal(t, []Match{{Index: 0}, {Index: 1}}, r.Matches)
}
