package scheduler

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Stats is a point-in-time snapshot of scheduler metrics
type Stats struct {
	Running         bool          `json:"running"`
	InProgress      bool          `json:"in_progress"`
	CyclesRun       int64         `json:"cycles_run"`
	TotalMatched    int64         `json:"total_matched"`
	TotalUnmatched  int64         `json:"total_unmatched"`
	TotalRejected   int64         `json:"total_rejected"`
	SubmitFailures  int64         `json:"submit_failures"`
	CycleFailures   int64         `json:"cycle_failures"`
	SkippedTicks    int64         `json:"skipped_ticks"`
	LastRun         time.Time     `json:"last_run"`
	AverageDuration time.Duration `json:"average_duration"`
	DurationStdDev  time.Duration `json:"duration_stddev"`
}

// durationWindow keeps the most recent cycle durations in seconds. Only the
// goroutine holding the in-progress flag writes to it.
type durationWindow struct {
	samples []float64
	next    int
	full    bool
}

func newDurationWindow(size int) *durationWindow {
	if size <= 0 {
		size = 1
	}
	return &durationWindow{samples: make([]float64, size)}
}

// add records a sample and returns the mean and standard deviation of the window
func (w *durationWindow) add(d time.Duration) (mean, stddev time.Duration) {
	w.samples[w.next] = d.Seconds()
	w.next = (w.next + 1) % len(w.samples)
	if w.next == 0 {
		w.full = true
	}

	window := w.samples[:w.next]
	if w.full {
		window = w.samples
	}

	if len(window) == 1 {
		return toDuration(window[0]), 0
	}
	m, s := stat.MeanStdDev(window, nil)
	return toDuration(m), toDuration(s)
}

func toDuration(seconds float64) time.Duration {
	if math.IsNaN(seconds) {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
