package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcherVerdict(t *testing.T) {
	m := Compile("/root", "# comment\n*.log\n!keep.log\nbuild/\n/anchored.txt\n\n")

	tests := []struct {
		path    string
		isDir   bool
		verdict Verdict
		matched bool
	}{
		{"/root/a.log", false, Ignore, true},
		{"/root/deep/b.log", false, Ignore, true},
		{"/root/keep.log", false, Keep, true},
		{"/root/build", true, Ignore, true},
		{"/root/sub/build", true, Ignore, true},
		{"/root/build", false, Keep, false},
		{"/root/anchored.txt", false, Ignore, true},
		{"/root/sub/anchored.txt", false, Keep, false},
		{"/root/readme.md", false, Keep, false},
		{"/elsewhere/a.log", false, Keep, false},
		{"/root", true, Keep, false},
	}

	for _, tc := range tests {
		v, ok := m.Match(tc.path, tc.isDir)
		assert.Equal(t, tc.verdict, v, "Match(%q, %v) verdict", tc.path, tc.isDir)
		assert.Equal(t, tc.matched, ok, "Match(%q, %v) matched", tc.path, tc.isDir)
	}
}

func TestNilMatcherKeeps(t *testing.T) {
	var m *Matcher
	v, ok := m.Match("/x", false)
	assert.Equal(t, Keep, v)
	assert.False(t, ok)
}

func TestDefaultsIgnoreVCSDirsAtAnyDepth(t *testing.T) {
	c := NewChain(Defaults("/r"))
	assert.Equal(t, Ignore, c.Verdict("/r/.git", true))
	assert.Equal(t, Ignore, c.Verdict("/r/a/b/.hg", true))
	assert.Equal(t, Keep, c.Verdict("/r/.gitignore", false))
	assert.Equal(t, Keep, c.Verdict("/r/.git", false))
}

func TestChainLastMatcherWins(t *testing.T) {
	root := NewChain(CompileLines("/r", "*.log"))
	child := root.Append(CompileLines("/r/sub", "!keep.log"))

	assert.Equal(t, Ignore, child.Verdict("/r/top.log", false))
	assert.Equal(t, Keep, child.Verdict("/r/sub/keep.log", false))
	assert.Equal(t, Ignore, child.Verdict("/r/sub/other.log", false))

	// The child's rules do not leak back into the parent chain
	assert.Equal(t, Ignore, root.Verdict("/r/sub/keep.log", false))
	assert.Equal(t, 1, root.Len())
	assert.Equal(t, 2, child.Len())
}

func TestChainAppendIsCopyOnWrite(t *testing.T) {
	root := NewChain(CompileLines("/r", "*.tmp"))
	a := root.Append(CompileLines("/r/a", "!x.tmp"))
	b := root.Append(CompileLines("/r/b", "y.txt"))

	assert.Equal(t, Keep, a.Verdict("/r/a/x.tmp", false))
	assert.Equal(t, Ignore, b.Verdict("/r/b/y.txt", false))
	assert.Equal(t, Keep, a.Verdict("/r/a/y.txt", false), "sibling rules must not be visible")
	assert.Equal(t, Ignore, b.Verdict("/r/b/x.tmp", false))
}

func TestChainAppendEmpty(t *testing.T) {
	root := NewChain()
	assert.Same(t, root, root.Append(nil))
	assert.Same(t, root, root.Append(Compile("/r", "# only a comment")))

	var nilChain *Chain
	assert.Equal(t, Keep, nilChain.Verdict("/anything", false))
	assert.Equal(t, 1, nilChain.Append(CompileLines("/", "*")).Len())
}

func TestNegationInsideSameFile(t *testing.T) {
	m := CompileLines("/r", "*.png", "!logo.png", "logo.png")
	assert.Equal(t, Ignore, m.Verdict("/r/logo.png", false), "later rule overrides earlier negation")

	m = CompileLines("/r", `\!bang.txt`)
	v, ok := m.Match("/r/!bang.txt", false)
	assert.True(t, ok)
	assert.Equal(t, Ignore, v)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	m, err := Load(dir, ".gitignore")
	require.NoError(t, err)
	assert.Nil(t, m, "missing ignore file yields no matcher")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("\xef\xbb\xbfnode_modules/\n*.o\n"), 0o644))
	m, err = Load(dir, ".gitignore")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, dir, m.Base())
	assert.Equal(t, Ignore, m.Verdict(filepath.Join(dir, "node_modules"), true))
	assert.Equal(t, Ignore, m.Verdict(filepath.Join(dir, "src", "main.o"), false))
}
