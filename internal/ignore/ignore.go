// Package ignore evaluates layered gitignore-style rule sets.
//
// A Matcher holds the rules of one ignore file (or one block of user rule
// text) anchored at a base directory. A Chain is the ordered list of
// matchers in effect for a directory: the root matchers first, then one per
// ancestor that carried its own ignore file. Chains are immutable; Append
// returns a new chain so siblings never observe each other's rules.
package ignore

import (
	"bufio"
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/justyntemme/pikeru/internal/debug"
)

// Verdict is the outcome of evaluating a path.
type Verdict int

const (
	Keep Verdict = iota
	Ignore
)

func (v Verdict) String() string {
	if v == Ignore {
		return "ignore"
	}
	return "keep"
}

// DefaultRules are always in effect at the root of every chain.
var DefaultRules = []string{".git/", ".hg/", ".svn/"}

type rule struct {
	text    string
	negate  bool
	dirOnly bool
	gi      *gitignore.GitIgnore
}

// Matcher is the compiled form of one rule file.
type Matcher struct {
	base  string
	rules []rule
}

// Compile parses gitignore text anchored at base.
func Compile(base, text string) *Matcher {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return CompileLines(base, lines...)
}

// CompileLines compiles each line into its own pattern so that a negated
// line produces an explicit Keep instead of merely cancelling a match.
func CompileLines(base string, lines ...string) *Matcher {
	m := &Matcher{base: filepath.Clean(base)}
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// An escaped "\!" or "\#" is passed through; the backslash keeps it literal.
		negate := false
		if strings.HasPrefix(line, "!") {
			negate = true
			line = line[1:]
		}
		if line == "" {
			continue
		}

		pattern, dirOnly := splitDirOnly(line)
		m.rules = append(m.rules, rule{
			text:    line,
			negate:  negate,
			dirOnly: dirOnly,
			gi:      gitignore.CompileIgnoreLines(pattern),
		})
	}
	return m
}

// splitDirOnly turns a directory-only pattern such as "build/" into "build"
// plus a flag, so it still matches at any depth as git does. go-gitignore
// would otherwise anchor it to the base because the pattern contains a slash.
func splitDirOnly(pattern string) (string, bool) {
	trimmed := strings.TrimSuffix(pattern, "/")
	if trimmed != pattern && trimmed != "" && !strings.Contains(trimmed, "/") {
		return trimmed, true
	}
	return pattern, false
}

// Defaults returns the built-in VCS rules anchored at base.
func Defaults(base string) *Matcher {
	return CompileLines(base, DefaultRules...)
}

// Load reads dir/name. A missing file yields (nil, nil).
func Load(dir, name string) (*Matcher, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	m := Compile(dir, string(data))
	debug.Log(debug.IGNORE, "loaded %d rules from %s", len(m.rules), filepath.Join(dir, name))
	return m, nil
}

// Base returns the directory the matcher is anchored at.
func (m *Matcher) Base() string { return m.base }

// Len returns the number of effective rules.
func (m *Matcher) Len() int { return len(m.rules) }

// Match evaluates path against the matcher's rules. The last matching rule
// decides; ok is false if no rule matched or path lies outside the base.
func (m *Matcher) Match(path string, isDir bool) (v Verdict, ok bool) {
	if m == nil || len(m.rules) == 0 {
		return Keep, false
	}
	rel, err := filepath.Rel(m.base, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Keep, false
	}
	rel = filepath.ToSlash(rel)
	if isDir {
		rel += "/"
	}

	for i := len(m.rules) - 1; i >= 0; i-- {
		r := m.rules[i]
		if r.dirOnly && !isDir {
			continue
		}
		if r.gi.MatchesPath(rel) {
			if r.negate {
				return Keep, true
			}
			return Ignore, true
		}
	}
	return Keep, false
}

// Verdict is Match without the matched flag.
func (m *Matcher) Verdict(path string, isDir bool) Verdict {
	v, _ := m.Match(path, isDir)
	return v
}

// Chain is an immutable ordered list of matchers. The nil chain keeps
// everything.
type Chain struct {
	matchers []*Matcher
}

// NewChain builds a chain from root matchers, skipping nil and empty ones.
func NewChain(matchers ...*Matcher) *Chain {
	c := &Chain{}
	for _, m := range matchers {
		if m != nil && m.Len() > 0 {
			c.matchers = append(c.matchers, m)
		}
	}
	return c
}

// Append returns a chain with m added after the receiver's matchers. The
// receiver is not modified. A nil or empty m returns the receiver itself.
func (c *Chain) Append(m *Matcher) *Chain {
	if m == nil || m.Len() == 0 {
		return c
	}
	var existing []*Matcher
	if c != nil {
		existing = c.matchers
	}
	next := make([]*Matcher, len(existing), len(existing)+1)
	copy(next, existing)
	return &Chain{matchers: append(next, m)}
}

// Len returns the number of matchers in the chain.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.matchers)
}

// Verdict returns the verdict of the last matcher that has a matching rule
// for path, or Keep if none does.
func (c *Chain) Verdict(path string, isDir bool) Verdict {
	if c == nil {
		return Keep
	}
	for i := len(c.matchers) - 1; i >= 0; i-- {
		if v, ok := c.matchers[i].Match(path, isDir); ok {
			return v
		}
	}
	return Keep
}
