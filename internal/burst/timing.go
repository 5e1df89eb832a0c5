package burst

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Frequency bands for the adaptive tick timing. OS sleep granularity
// overshoots sub-10 ms periods, so high frequencies poll the clock instead
// of sleeping; low frequencies sleep in short chunks so shutdown latency
// stays bounded.
const (
	lowFrequencyHz  = 5.0
	highFrequencyHz = 100.0
	sleepChunk      = 50 * time.Millisecond
)

// waitForDeadline blocks until deadline using the band appropriate for hz,
// rechecking running throughout. Returns false as soon as running clears.
func waitForDeadline(deadline time.Time, hz float64, running *atomic.Bool) bool {
	switch {
	case hz < lowFrequencyHz:
		return sleepChunked(deadline, running)
	case hz <= highFrequencyHz:
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return running.Load()
		}
		// Sleep through 80% of the interval, then poll the final stretch to
		// land on the deadline without sleep-granularity overshoot.
		if !sleepChunked(deadline.Add(-remaining/5), running) {
			return false
		}
		return pollUntil(deadline, running)
	default:
		return pollUntil(deadline, running)
	}
}

func sleepChunked(until time.Time, running *atomic.Bool) bool {
	for {
		if !running.Load() {
			return false
		}
		remaining := time.Until(until)
		if remaining <= 0 {
			return true
		}
		if remaining > sleepChunk {
			remaining = sleepChunk
		}
		time.Sleep(remaining)
	}
}

func pollUntil(deadline time.Time, running *atomic.Bool) bool {
	for time.Now().Before(deadline) {
		if !running.Load() {
			return false
		}
		runtime.Gosched()
	}
	return running.Load()
}
