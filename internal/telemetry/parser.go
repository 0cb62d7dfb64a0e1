package telemetry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// pairSeparator separates key:value segments in a raw line.
	pairSeparator = ","

	// keyValueSeparator separates a key from its value. Only the first
	// occurrence in a segment is significant.
	keyValueSeparator = ":"
)

// Parse converts one raw sensor line into a Reading.
//
// The line format is comma-separated key:value pairs with no nesting or
// escaping, for example:
//
//	WATER_LEVEL:0.5,WATER_TEMP:24.0,EC:1.2,TDS:300,PH:6.8
//
// Keys are matched against the Metric Set case-insensitively. Unknown keys
// and empty segments are ignored. The whole line is rejected with
// ErrMalformedLine when:
//   - a recognised key has a value that is not a finite number
//   - a recognised key appears without a value
//   - no recognised key is present
//
// Missing metrics are never zero-filled.
//
// Parameters:
//   - line: Raw decoded line (without terminator)
//   - at: Capture instant stamped on the Reading
//
// Returns:
//   - Reading: Values for the recognised metrics present in the line
//   - error: ErrMalformedLine (wrapped with detail) on rejection
func Parse(line string, at time.Time) (Reading, error) {
	values := make(map[Metric]float64, metricCount)

	for _, segment := range strings.Split(line, pairSeparator) {
		if strings.TrimSpace(segment) == "" {
			continue
		}

		key, raw, hasValue := strings.Cut(segment, keyValueSeparator)
		metric, ok := ParseMetric(key)
		if !ok {
			continue
		}
		if !hasValue {
			return Reading{}, fmt.Errorf("%w: %s has no value", ErrMalformedLine, metric)
		}

		v, err := parseValue(raw)
		if err != nil {
			return Reading{}, fmt.Errorf("%w: %s: %w", ErrMalformedLine, metric, err)
		}
		values[metric] = v
	}

	if len(values) == 0 {
		return Reading{}, fmt.Errorf("%w: no recognised metrics", ErrMalformedLine)
	}

	return Reading{Values: values, CapturedAt: at}, nil
}

// parseValue parses a finite float64.
func parseValue(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", strings.TrimSpace(raw))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", strings.TrimSpace(raw))
	}
	return v, nil
}
