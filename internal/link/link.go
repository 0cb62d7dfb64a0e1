package link

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Default settings for the Line Source.
const (
	// defaultBaudRate matches the sensor firmware.
	defaultBaudRate = 9600

	// defaultConnectTimeout bounds TCP dials.
	defaultConnectTimeout = 10 * time.Second

	// readPollInterval caps a single blocking read so cancellation is
	// observed promptly even with long read timeouts.
	readPollInterval = 200 * time.Millisecond

	// readBufferSize is the size of the per-read chunk buffer.
	readBufferSize = 256

	// maxLineLength is the longest line accepted without a terminator.
	maxLineLength = 4096
)

// Config holds Line Source settings.
type Config struct {
	// Address identifies the link. See the package documentation for forms.
	Address string

	// BaudRate is the serial transfer rate. Ignored for TCP.
	// Default: 9600.
	BaudRate int

	// SettleDelay is how long Open waits after the transport opens before
	// reporting Connected. Many microcontroller boards reset when the serial
	// port opens and emit nothing useful until they boot.
	SettleDelay time.Duration

	// ConnectTimeout bounds TCP dials. Default: 10 seconds.
	ConnectTimeout time.Duration
}

// transport is an open byte stream with a per-read timeout.
//
// Read must return (0, nil) when the timeout elapses with no data, and a
// non-nil error only for transport failures.
type transport interface {
	Read(p []byte) (int, error)
	SetReadTimeout(d time.Duration) error
	Close() error
}

// dialFunc opens a transport.
type dialFunc func(ctx context.Context) (transport, error)

// Link is a Line Source over a serial port or a TCP stream.
//
// Thread Safety: see package documentation.
type Link struct {
	address string
	dial    dialFunc
	settle  time.Duration

	state atomic.Int32

	mu      sync.Mutex
	conn    transport
	pending []byte
	buf     []byte

	// discarding is set after ErrLineTooLong until the oversized line's
	// terminator has been consumed.
	discarding bool
}

// New creates a Link for the configured address. It does not open the
// transport; call Open.
//
// Parameters:
//   - cfg: Link configuration
//
// Returns:
//   - *Link: Disconnected link ready to Open
//   - error: ErrInvalidAddress if the address cannot be parsed
func New(cfg Config) (*Link, error) {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = defaultBaudRate
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}

	kind, target, err := parseAddress(cfg.Address)
	if err != nil {
		return nil, err
	}

	var dial dialFunc
	switch kind {
	case "tcp":
		dial = tcpDialer(target, cfg.ConnectTimeout)
	default:
		dial = serialDialer(target, cfg.BaudRate)
	}

	return newLink(cfg.Address, dial, cfg.SettleDelay), nil
}

// newLink builds a Link around an arbitrary dialer.
func newLink(address string, dial dialFunc, settle time.Duration) *Link {
	return &Link{
		address: address,
		dial:    dial,
		settle:  settle,
		pending: make([]byte, 0, readBufferSize),
		buf:     make([]byte, readBufferSize),
	}
}

// parseAddress splits a link address into transport kind and target.
func parseAddress(address string) (kind, target string, err error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", "", fmt.Errorf("%w: address is empty", ErrInvalidAddress)
	}

	if !strings.Contains(address, "://") {
		return "serial", address, nil
	}

	u, err := url.Parse(address)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	switch u.Scheme {
	case "serial":
		target := u.Host + u.Path
		if target == "" {
			return "", "", fmt.Errorf("%w: serial address has no device", ErrInvalidAddress)
		}
		return "serial", target, nil
	case "tcp":
		if u.Host == "" || u.Port() == "" {
			return "", "", fmt.Errorf("%w: tcp address needs host:port", ErrInvalidAddress)
		}
		return "tcp", u.Host, nil
	default:
		return "", "", fmt.Errorf("%w: unsupported scheme %q (use serial or tcp)", ErrInvalidAddress, u.Scheme)
	}
}

// Address returns the configured link address.
func (l *Link) Address() string {
	return l.address
}

// State returns the current connection state.
func (l *Link) State() State {
	return State(l.state.Load())
}

func (l *Link) setState(s State) {
	l.state.Store(int32(s))
}

// Open establishes the physical link.
//
// It is a no-op when already connected. On failure the state returns to
// Disconnected and the caller decides when to try again.
//
// Parameters:
//   - ctx: Context for cancellation (dial and settle delay)
//
// Returns:
//   - error: ErrLinkUnavailable (wrapped) if the transport cannot be opened
func (l *Link) Open(ctx context.Context) error {
	if l.State() == StateConnected {
		return nil
	}
	l.setState(StateConnecting)

	conn, err := l.dial(ctx)
	if err != nil {
		l.setState(StateDisconnected)
		return fmt.Errorf("%w: %s: %w", ErrLinkUnavailable, l.address, err)
	}

	if l.settle > 0 {
		timer := time.NewTimer(l.settle)
		select {
		case <-ctx.Done():
			timer.Stop()
			conn.Close() //nolint:errcheck // Abandoning a half-open link
			l.setState(StateDisconnected)
			return fmt.Errorf("%w: settling: %w", ErrLinkUnavailable, ctx.Err())
		case <-timer.C:
		}
	}

	l.mu.Lock()
	l.conn = conn
	l.pending = l.pending[:0]
	l.discarding = false
	l.mu.Unlock()

	l.setState(StateConnected)
	return nil
}

// ReadLine blocks up to timeout for one newline-terminated line.
//
// Partial input is kept between calls, so a line split across reads (or
// across two ReadLine calls) is reassembled. Blank lines are skipped. After
// ErrLineTooLong the rest of the oversized line, up to its terminator, is
// dropped rather than returned.
//
// Parameters:
//   - ctx: Context for cancellation, checked between reads
//   - timeout: Maximum time to wait for a complete line
//
// Returns:
//   - string: The decoded line without terminator or surrounding whitespace
//   - error: ErrReadTimeout, ErrLinkLost, ErrLineTooLong, ErrNotConnected or ctx.Err()
func (l *Link) ReadLine(ctx context.Context, timeout time.Duration) (string, error) {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()

	if conn == nil || l.State() != StateConnected {
		return "", ErrNotConnected
	}

	deadline := time.Now().Add(timeout)
	for {
		if line, ok := l.nextLine(); ok {
			if line == "" {
				continue
			}
			return line, nil
		}

		if len(l.pending) > maxLineLength {
			l.pending = l.pending[:0]
			l.discarding = true
			return "", fmt.Errorf("%w: more than %d bytes without terminator", ErrLineTooLong, maxLineLength)
		}

		if err := ctx.Err(); err != nil {
			return "", err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", ErrReadTimeout
		}

		if err := conn.SetReadTimeout(min(remaining, readPollInterval)); err != nil {
			return "", l.lose(conn, err)
		}

		n, err := conn.Read(l.buf)
		if n > 0 {
			l.pending = append(l.pending, l.buf[:n]...)
		}
		if err != nil {
			return "", l.lose(conn, err)
		}
	}
}

// nextLine pops one terminated line from the pending buffer. While
// discarding, bytes up to and including the next terminator are dropped.
func (l *Link) nextLine() (string, bool) {
	for {
		i := bytes.IndexByte(l.pending, '\n')
		if i < 0 {
			if l.discarding {
				l.pending = l.pending[:0]
			}
			return "", false
		}

		line := decodeLine(l.pending[:i])
		l.pending = append(l.pending[:0], l.pending[i+1:]...)
		if l.discarding {
			l.discarding = false
			continue
		}
		return line, true
	}
}

// decodeLine converts raw bytes to trimmed UTF-8 text.
func decodeLine(raw []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(raw), "�"))
}

// lose tears down a failed transport and reports ErrLinkLost.
func (l *Link) lose(conn transport, cause error) error {
	l.mu.Lock()
	if l.conn == conn {
		l.conn = nil
	}
	l.pending = l.pending[:0]
	l.discarding = false
	l.mu.Unlock()

	conn.Close() //nolint:errcheck // Transport already failed
	l.setState(StateDisconnected)

	return fmt.Errorf("%w: %s: %w", ErrLinkLost, l.address, cause)
}

// Close releases the transport. Safe to call multiple times.
//
// Returns:
//   - error: If closing the underlying transport fails
func (l *Link) Close() error {
	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	l.setState(StateDisconnected)

	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("closing link %s: %w", l.address, err)
	}
	return nil
}
