package link

import (
	"context"
	"errors"
	"fmt"

	"go.bug.st/serial"
)

// serialDialer returns a dialer for a local serial device.
//
// The port is opened 8N1 at the given baud rate. go.bug.st/serial already
// returns (0, nil) from Read when the read timeout expires, so the port
// satisfies transport directly.
func serialDialer(path string, baudRate int) dialFunc {
	return func(ctx context.Context) (transport, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		port, err := serial.Open(path, &serial.Mode{
			BaudRate: baudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			return nil, describeSerialError(path, err)
		}
		return port, nil
	}
}

// describeSerialError adds a readable cause to common open failures.
func describeSerialError(path string, err error) error {
	var portErr *serial.PortError
	if !errors.As(err, &portErr) {
		return fmt.Errorf("opening %s: %w", path, err)
	}

	switch portErr.Code() {
	case serial.PortNotFound:
		return fmt.Errorf("serial device %s not found (is the board plugged in?): %w", path, err)
	case serial.PermissionDenied:
		return fmt.Errorf("permission denied on %s (add the user to the dialout group): %w", path, err)
	case serial.PortBusy:
		return fmt.Errorf("serial device %s is busy: %w", path, err)
	default:
		return fmt.Errorf("opening %s: %w", path, err)
	}
}
