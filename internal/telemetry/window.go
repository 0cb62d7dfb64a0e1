package telemetry

import "time"

// Window accumulates readings per metric over a fixed interval and reduces
// them to a SummaryRecord when the interval elapses.
//
// All five metric buffers are cleared together on every flush, so memory is
// bounded by the sample rate times the interval regardless of how long the
// process runs.
//
// Thread Safety: NOT safe for concurrent use. The acquisition loop is the
// only owner.
type Window struct {
	interval time.Duration
	start    time.Time
	samples  [metricCount][]float64
}

// NewWindow creates an empty window that opens at start.
//
// Parameters:
//   - interval: Minimum elapsed time between flushes
//   - start: Instant the first window opens
func NewWindow(interval time.Duration, start time.Time) *Window {
	return &Window{
		interval: interval,
		start:    start,
	}
}

// Ingest appends each metric present in the reading to its buffer.
func (w *Window) Ingest(r Reading) {
	for m, v := range r.Values {
		i := m.index()
		if i < 0 {
			continue
		}
		w.samples[i] = append(w.samples[i], v)
	}
}

// MaybeFlush reduces the window if at least one interval has elapsed since it
// opened.
//
// Returns:
//   - SummaryRecord: The averaged record stamped with now (zero value if not flushed)
//   - bool: true if the window was flushed
func (w *Window) MaybeFlush(now time.Time) (SummaryRecord, bool) {
	if now.Sub(w.start) < w.interval {
		return SummaryRecord{}, false
	}
	return w.Flush(now), true
}

// Flush reduces the window unconditionally, clears all buffers and reopens
// the window at now.
func (w *Window) Flush(now time.Time) SummaryRecord {
	rec := SummaryRecord{Timestamp: now}
	for i, m := range Metrics {
		rec.set(m, mean(w.samples[i]))
		w.samples[i] = w.samples[i][:0]
	}
	w.start = now
	return rec
}

// Pending returns the number of samples buffered across all metrics.
func (w *Window) Pending() int {
	n := 0
	for i := range w.samples {
		n += len(w.samples[i])
	}
	return n
}

// Start returns the instant the current window opened.
func (w *Window) Start() time.Time {
	return w.start
}

// Interval returns the configured aggregation interval.
func (w *Window) Interval() time.Duration {
	return w.interval
}

// mean returns the arithmetic mean, or 0 for an empty slice.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
