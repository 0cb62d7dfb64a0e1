package acquisition

import "errors"

var (
	// ErrMissingDependency is returned by New when a required collaborator
	// is nil.
	ErrMissingDependency = errors.New("acquisition: missing dependency")

	// ErrInvalidConfig is returned by New for non-positive durations.
	ErrInvalidConfig = errors.New("acquisition: invalid config")

	// ErrAlreadyRunning is returned when Run is called a second time.
	ErrAlreadyRunning = errors.New("acquisition: already running")
)
