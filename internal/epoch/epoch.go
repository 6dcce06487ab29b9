// Package epoch issues opaque generation tokens. A token is handed to
// asynchronous work when it starts and compared with the issuer's current
// token when the result comes back; any mismatch means the result is stale.
package epoch

import (
	"strconv"
	"sync/atomic"
)

// Token identifies one generation. The zero Token is never issued.
type Token struct {
	n uint64
}

// IsZero reports whether t was never issued.
func (t Token) IsZero() bool { return t.n == 0 }

func (t Token) String() string {
	return "epoch#" + strconv.FormatUint(t.n, 10)
}

// Counter hands out strictly increasing tokens. It is safe for concurrent
// use, although in practice each counter has a single owner.
type Counter struct {
	n atomic.Uint64
}

// Next invalidates the current token and returns its successor.
func (c *Counter) Next() Token {
	return Token{n: c.n.Add(1)}
}

// Current returns the most recently issued token (zero before the first Next).
func (c *Counter) Current() Token {
	return Token{n: c.n.Load()}
}

// IsCurrent reports whether t is still the live generation.
func (c *Counter) IsCurrent(t Token) bool {
	return !t.IsZero() && t == c.Current()
}
