package link

import "errors"

// Domain errors for the Line Source.
//
// Transport errors are recoverable by the caller: ErrLinkUnavailable and
// ErrLinkLost by reopening later, ErrReadTimeout by reading again.
var (
	// ErrLinkUnavailable is returned when the transport cannot be opened
	// (device absent, permission denied, port busy, connection refused).
	ErrLinkUnavailable = errors.New("link: unavailable")

	// ErrLinkLost is returned when an open transport fails mid-read.
	// The source has already moved to StateDisconnected.
	ErrLinkLost = errors.New("link: connection lost")

	// ErrReadTimeout is returned when no complete line arrived before the
	// read timeout. It is not a failure of the link.
	ErrReadTimeout = errors.New("link: read timeout")

	// ErrLineTooLong is returned when buffered input exceeds the maximum
	// line length without a terminator. The buffered bytes are discarded.
	ErrLineTooLong = errors.New("link: line too long")

	// ErrNotConnected is returned by ReadLine when the source is not open.
	ErrNotConnected = errors.New("link: not connected")

	// ErrInvalidAddress is returned when the link address cannot be parsed.
	ErrInvalidAddress = errors.New("link: invalid address")
)
