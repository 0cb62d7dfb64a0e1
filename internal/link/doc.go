// Package link owns the physical connection to the sensor array and yields
// raw decoded text lines.
//
// # Transports
//
// The address selects the transport:
//   - "/dev/ttyACM0", "COM3" or "serial:///dev/ttyACM0" → local serial port
//   - "tcp://192.168.1.50:4000" → serial-over-IP bridge (ser2net and similar)
//
// # Connection State
//
//	Disconnected ──Open ok──► Connected
//	     ▲   │                    │
//	     │   └─Open fails─┐       │ ErrLinkLost
//	     └────────────────┴───────┘
//
// Open passes through Connecting while the transport is being established.
// The Link never retries on its own. Reconnect timing belongs to the caller
// (see the acquisition package), which keeps the policy injectable and
// testable.
//
// # Thread Safety
//
// State is safe to read from any goroutine. Open and ReadLine are meant to be
// driven by a single goroutine. Close may be called from another goroutine
// and will unblock a pending ReadLine.
package link
