// Package fallback implements the fail-open policy used at every external
// call boundary of the search pipeline: store reads, page fetches and template
// loads. A failing call is logged at debug level, counted, and replaced by the
// caller supplied fallback value. Errors never travel further up.
package fallback

import (
	"context"
	"sort"
	"sync"

	"github.com/rubiojr/sift/pkg/log"
)

var (
	mu       sync.Mutex
	degraded = map[string]int64{}
	calls    = map[string]int64{}
)

// Resolve runs fn and returns its value, or fallback when fn fails.
// op names the boundary (e.g. "store.lookup") in logs and Stats.
func Resolve[T any](ctx context.Context, op string, fn func(context.Context) (T, error), fallback T) T {
	v, err := fn(ctx)
	record(op, err != nil)
	if err != nil {
		log.ForService("fallback").Debugf("%s degraded: %v", op, err)
		return fallback
	}
	return v
}

func record(op string, failed bool) {
	mu.Lock()
	defer mu.Unlock()
	calls[op]++
	if failed {
		degraded[op]++
	}
}

// OpStats counts how often a boundary was called and how often it degraded.
type OpStats struct {
	Op       string `json:"op"`
	Calls    int64  `json:"calls"`
	Degraded int64  `json:"degraded"`
}

// Stats returns the counters of every boundary seen so far, sorted by op.
func Stats() []OpStats {
	mu.Lock()
	defer mu.Unlock()
	stats := make([]OpStats, 0, len(calls))
	for op, n := range calls {
		stats = append(stats, OpStats{Op: op, Calls: n, Degraded: degraded[op]})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Op < stats[j].Op })
	return stats
}

// Reset clears all counters.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	degraded = map[string]int64{}
	calls = map[string]int64{}
}
