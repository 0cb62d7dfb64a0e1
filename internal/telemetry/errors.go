package telemetry

import "errors"

// Domain errors for telemetry parsing.
var (
	// ErrMalformedLine is returned when a raw line cannot be turned into a
	// Reading. The whole line is rejected; no partial Reading is returned.
	ErrMalformedLine = errors.New("telemetry: malformed line")
)
