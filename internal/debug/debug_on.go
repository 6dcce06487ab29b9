//go:build debug

package debug

import (
	"log"
	"os"
	"sync/atomic"
)

// Enabled reports whether the tracer is compiled in.
const Enabled = true

var (
	active atomic.Pointer[map[Category]bool]
	out    = log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)
)

func init() {
	Set(os.Getenv(EnvVar))
}

// Set replaces the traced categories; list has the PIKERU_DEBUG syntax.
func Set(list string) {
	m := parse(list)
	active.Store(&m)
}

// Log writes one trace line when cat is active.
func Log(cat Category, format string, args ...any) {
	m := active.Load()
	if m == nil || !(*m)[cat] {
		return
	}
	out.Printf("[%s] "+format, append([]any{cat}, args...)...)
}
