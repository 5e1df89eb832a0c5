package burst

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWaitForDeadlineAllBands(t *testing.T) {
	cases := []struct {
		name string
		hz   float64
		wait time.Duration
	}{
		{"low band sleeps", 2, 30 * time.Millisecond},
		{"hybrid band", 50, 20 * time.Millisecond},
		{"poll band", 500, 2 * time.Millisecond},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var running atomic.Bool
			running.Store(true)

			start := time.Now()
			ok := waitForDeadline(start.Add(tc.wait), tc.hz, &running)
			elapsed := time.Since(start)

			if !ok {
				t.Fatal("expected wait to complete")
			}
			if elapsed < tc.wait {
				t.Fatalf("returned %v before the %v deadline", elapsed, tc.wait)
			}
		})
	}
}

func TestWaitForDeadlinePastDeadlineReturnsImmediately(t *testing.T) {
	var running atomic.Bool
	running.Store(true)

	start := time.Now()
	if !waitForDeadline(start.Add(-time.Second), 50, &running) {
		t.Fatal("expected completed wait for past deadline")
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Fatalf("past deadline took %v", elapsed)
	}
}

func TestWaitForDeadlineAbortsOnShutdown(t *testing.T) {
	for _, hz := range []float64{2, 50, 500} {
		var running atomic.Bool
		running.Store(true)

		go func() {
			time.Sleep(10 * time.Millisecond)
			running.Store(false)
		}()

		start := time.Now()
		ok := waitForDeadline(start.Add(5*time.Second), hz, &running)
		elapsed := time.Since(start)

		if ok {
			t.Fatalf("hz=%v: expected aborted wait", hz)
		}
		// Worst case is one 50ms sleep chunk plus scheduling noise.
		if elapsed > 500*time.Millisecond {
			t.Fatalf("hz=%v: shutdown took %v", hz, elapsed)
		}
	}
}
