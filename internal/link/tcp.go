package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// tcpTransport adapts a TCP stream (a serial-over-IP bridge) to transport.
type tcpTransport struct {
	conn    net.Conn
	timeout time.Duration
}

// tcpDialer returns a dialer for host:port.
func tcpDialer(hostport string, connectTimeout time.Duration) dialFunc {
	return func(ctx context.Context) (transport, error) {
		dialer := &net.Dialer{Timeout: connectTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", hostport)
		if err != nil {
			return nil, fmt.Errorf("connecting to %s: %w", hostport, err)
		}
		return &tcpTransport{conn: conn}, nil
	}
}

func (t *tcpTransport) SetReadTimeout(d time.Duration) error {
	t.timeout = d
	return nil
}

// Read reads with the configured timeout. A deadline expiry is reported as
// (0, nil) to match serial port semantics.
func (t *tcpTransport) Read(p []byte) (int, error) {
	if t.timeout > 0 {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.timeout)); err != nil {
			return 0, err
		}
	}

	n, err := t.conn.Read(p)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return n, nil
		}
		return n, err
	}
	return n, nil
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}
