package telemetry

import (
	"strings"
	"time"
)

// Metric is the name of one recognised sensor quantity.
type Metric string

// The closed Metric Set.
const (
	WaterLevel Metric = "water_level"
	WaterTemp  Metric = "water_temp"
	EC         Metric = "ec"
	TDS        Metric = "tds"
	PH         Metric = "ph"
)

// metricCount is the size of the Metric Set.
const metricCount = 5

// Metrics lists the Metric Set in a fixed order.
// The order is used for window buffers and for stable output.
var Metrics = [metricCount]Metric{WaterLevel, WaterTemp, EC, TDS, PH}

// ParseMetric matches a name against the Metric Set, ignoring case and
// surrounding whitespace.
//
// Returns:
//   - Metric: The canonical metric name
//   - bool: false if the name is not in the Metric Set
func ParseMetric(name string) (Metric, bool) {
	m := Metric(strings.ToLower(strings.TrimSpace(name)))
	if m.Valid() {
		return m, true
	}
	return "", false
}

// Valid reports whether m is in the Metric Set.
func (m Metric) Valid() bool {
	return m.index() >= 0
}

// String returns the metric name.
func (m Metric) String() string {
	return string(m)
}

// index returns the position of m in Metrics, or -1.
func (m Metric) index() int {
	for i, candidate := range Metrics {
		if candidate == m {
			return i
		}
	}
	return -1
}

// Reading is one decoded sample from a single sensor line.
//
// Values only contains the metrics that were present in the line; callers
// must handle readings with fewer than five metrics.
type Reading struct {
	// Values maps each present metric to its sampled value.
	Values map[Metric]float64

	// CapturedAt is the instant the line was parsed.
	CapturedAt time.Time
}

// Get returns the value for a metric and whether it was present.
func (r Reading) Get(m Metric) (float64, bool) {
	v, ok := r.Values[m]
	return v, ok
}

// Len returns the number of metrics present in the reading.
func (r Reading) Len() int {
	return len(r.Values)
}

// SummaryRecord is one persisted, averaged row for a completed window.
//
// It always carries all five metrics. A metric that received no samples
// during the window is 0.0.
type SummaryRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	WaterLevel float64   `json:"water_level"`
	WaterTemp  float64   `json:"water_temp"`
	EC         float64   `json:"ec"`
	TDS        float64   `json:"tds"`
	PH         float64   `json:"ph"`
}

// Value returns the averaged value for a metric.
// Unknown metrics return 0.
func (r SummaryRecord) Value(m Metric) float64 {
	switch m {
	case WaterLevel:
		return r.WaterLevel
	case WaterTemp:
		return r.WaterTemp
	case EC:
		return r.EC
	case TDS:
		return r.TDS
	case PH:
		return r.PH
	default:
		return 0
	}
}

// Fields returns the five values keyed by metric name.
func (r SummaryRecord) Fields() map[string]any {
	fields := make(map[string]any, metricCount)
	for _, m := range Metrics {
		fields[string(m)] = r.Value(m)
	}
	return fields
}

// set assigns the averaged value for a metric.
func (r *SummaryRecord) set(m Metric, v float64) {
	switch m {
	case WaterLevel:
		r.WaterLevel = v
	case WaterTemp:
		r.WaterTemp = v
	case EC:
		r.EC = v
	case TDS:
		r.TDS = v
	case PH:
		r.PH = v
	}
}
