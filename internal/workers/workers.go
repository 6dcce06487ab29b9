// Package workers sizes the thumbnail task pool from the CPUs the process
// may actually use.
//
// runtime.NumCPU reports host CPUs; GOMAXPROCS follows cgroup limits, so a
// container capped at two cores gets two, not sixty-four. The
// PIKERU_THUMBNAIL_WORKERS environment variable overrides the computed value.
package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that pins the worker count.
const EnvOverride = "PIKERU_THUMBNAIL_WORKERS"

// Count returns multiplier workers per available CPU, at least one, capped
// at limit when limit > 0.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	available := runtime.GOMAXPROCS(0)
	workers := int(float64(available) * multiplier)
	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// ForIO returns two workers per CPU. Thumbnail generation mostly waits on
// disk and helper processes, so this is the pipeline default.
func ForIO(limit int) int { return Count(2.0, limit) }
