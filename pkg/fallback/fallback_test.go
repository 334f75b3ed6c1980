package fallback

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rubiojr/sift/pkg/log"
)

func TestResolveSuccess(t *testing.T) {
	Reset()
	got := Resolve(context.Background(), "ok", func(context.Context) (string, error) {
		return "value", nil
	}, "fallback")
	if got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
}

func TestResolveFailureReturnsFallback(t *testing.T) {
	Reset()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.EnableDebugFor("fallback")
	defer log.DisableDebugFor("fallback")

	got := Resolve(context.Background(), "store.lookup", func(context.Context) ([]string, error) {
		return []string{"partial"}, errors.New("connection refused")
	}, nil)
	if got != nil {
		t.Fatalf("expected nil fallback, got %#v", got)
	}
	if !strings.Contains(buf.String(), "store.lookup degraded: connection refused") {
		t.Fatalf("expected degraded call to be logged, got %q", buf.String())
	}
}

func TestStatsCountsCallsAndDegradations(t *testing.T) {
	Reset()
	ctx := context.Background()
	okFn := func(context.Context) (int, error) { return 1, nil }
	badFn := func(context.Context) (int, error) { return 0, errors.New("boom") }

	Resolve(ctx, "b.op", okFn, 0)
	Resolve(ctx, "b.op", badFn, 0)
	Resolve(ctx, "a.op", badFn, 0)

	stats := Stats()
	want := []OpStats{
		{Op: "a.op", Calls: 1, Degraded: 1},
		{Op: "b.op", Calls: 2, Degraded: 1},
	}
	if len(stats) != len(want) {
		t.Fatalf("expected %d ops, got %#v", len(want), stats)
	}
	for i := range want {
		if stats[i] != want[i] {
			t.Errorf("stats[%d] = %#v, want %#v", i, stats[i], want[i])
		}
	}
}
