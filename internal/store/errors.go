package store

import "errors"

// Domain errors for the Time-Series Store.
var (
	// ErrStoreUnavailable is returned when the backing storage cannot be
	// reached or rejects a write or query.
	ErrStoreUnavailable = errors.New("store: unavailable")

	// ErrInvalidMetric is returned by Query for a name outside the Metric Set.
	ErrInvalidMetric = errors.New("store: invalid metric")
)
