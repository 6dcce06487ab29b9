package workers

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCount(t *testing.T) {
	t.Setenv(EnvOverride, "")
	available := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		want       int
	}{
		{"cpu bound", 1.0, 0, available},
		{"io bound", 2.0, 0, available * 2},
		{"limit below computed", 2.0, 1, 1},
		{"tiny multiplier floors at one", 0.0001, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Count(tt.multiplier, tt.limit))
		})
	}
}

func TestCountOverride(t *testing.T) {
	available := runtime.GOMAXPROCS(0)
	tests := []struct {
		name  string
		env   string
		limit int
		want  int
	}{
		{"override wins", "5", 0, 5},
		{"override capped by limit", "50", 8, 8},
		{"zero ignored", "0", 0, available},
		{"garbage ignored", "many", 0, available},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvOverride, tt.env)
			assert.Equal(t, tt.want, Count(1.0, tt.limit))
		})
	}
}

func TestForIODoublesCPUs(t *testing.T) {
	t.Setenv(EnvOverride, "")
	available := runtime.GOMAXPROCS(0)
	assert.Equal(t, available*2, ForIO(0))
	assert.Equal(t, 1, ForIO(1))
}
