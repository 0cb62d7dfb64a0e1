// Package metrics exposes acquisition and API counters to Prometheus.
//
// A Collector is registered on the Registerer passed to New, so tests can
// use a private registry. All methods are safe on a nil *Collector, which
// lets components run without metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hydro"

// Link event labels.
const (
	LinkOpened = "opened"
	LinkFailed = "open_failed"
	LinkLost   = "lost"
)

// Collector holds every metric the service exports.
type Collector struct {
	linesRead        prometheus.Counter
	linesMalformed   prometheus.Counter
	linesTooLong     prometheus.Counter
	readingsIngested prometheus.Counter
	summariesWritten prometheus.Counter
	summariesDropped prometheus.Counter
	forwardFailures  *prometheus.CounterVec
	linkEvents       *prometheus.CounterVec
	linkState        prometheus.Gauge
	windowPending    prometheus.Gauge
	appendLatency    prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a Collector and registers it on reg.
// It panics if any metric is already registered on reg.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)

	return &Collector{
		linesRead: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_read_total",
			Help:      "Total lines received from the sensor link.",
		}),
		linesMalformed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_malformed_total",
			Help:      "Lines discarded because they could not be parsed.",
		}),
		linesTooLong: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_too_long_total",
			Help:      "Input discarded because no line terminator arrived in time.",
		}),
		readingsIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_ingested_total",
			Help:      "Parsed readings added to the aggregation window.",
		}),
		summariesWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_written_total",
			Help:      "Summary records persisted to the store.",
		}),
		summariesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_dropped_total",
			Help:      "Summary records lost because the store rejected them.",
		}),
		forwardFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forward_failures_total",
			Help:      "Summary records a forwarder failed to deliver.",
		}, []string{"forwarder"}),
		linkEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_events_total",
			Help:      "Sensor link lifecycle events.",
		}, []string{"event"}),
		linkState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_state",
			Help:      "Sensor link state (0 disconnected, 1 connecting, 2 connected).",
		}),
		windowPending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_pending_samples",
			Help:      "Samples buffered in the current aggregation window.",
		}),
		appendLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_append_duration_seconds",
			Help:      "Time spent appending one summary record.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by the query API.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// LineRead counts one received line.
func (c *Collector) LineRead() {
	if c == nil {
		return
	}
	c.linesRead.Inc()
}

// LineMalformed counts one unparseable line.
func (c *Collector) LineMalformed() {
	if c == nil {
		return
	}
	c.linesMalformed.Inc()
}

// LineTooLong counts one overlong, discarded input.
func (c *Collector) LineTooLong() {
	if c == nil {
		return
	}
	c.linesTooLong.Inc()
}

// ReadingIngested counts a reading and records the window size after it.
func (c *Collector) ReadingIngested(pending int) {
	if c == nil {
		return
	}
	c.readingsIngested.Inc()
	c.windowPending.Set(float64(pending))
}

// WindowFlushed resets the pending gauge.
func (c *Collector) WindowFlushed() {
	if c == nil {
		return
	}
	c.windowPending.Set(0)
}

// SummaryWritten records a successful append and its duration.
func (c *Collector) SummaryWritten(d time.Duration) {
	if c == nil {
		return
	}
	c.summariesWritten.Inc()
	c.appendLatency.Observe(d.Seconds())
}

// SummaryDropped records a failed append and its duration.
func (c *Collector) SummaryDropped(d time.Duration) {
	if c == nil {
		return
	}
	c.summariesDropped.Inc()
	c.appendLatency.Observe(d.Seconds())
}

// ForwardFailed counts a delivery failure for the named forwarder.
func (c *Collector) ForwardFailed(forwarder string) {
	if c == nil {
		return
	}
	c.forwardFailures.WithLabelValues(forwarder).Inc()
}

// LinkEvent counts a link lifecycle event (LinkOpened, LinkFailed, LinkLost).
func (c *Collector) LinkEvent(event string) {
	if c == nil {
		return
	}
	c.linkEvents.WithLabelValues(event).Inc()
}

// SetLinkState records the numeric link state.
func (c *Collector) SetLinkState(state int) {
	if c == nil {
		return
	}
	c.linkState.Set(float64(state))
}

// ObserveHTTP records one served request. route is the route pattern, not
// the raw path, to keep label cardinality bounded.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
