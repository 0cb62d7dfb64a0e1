package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hydrocloud/hydro-core/internal/link"
	"github.com/hydrocloud/hydro-core/internal/metrics"
	"github.com/hydrocloud/hydro-core/internal/telemetry"
)

// maxLoggedLine caps how much of a rejected line is written to the log.
const maxLoggedLine = 120

// LineSource yields decoded text lines from the sensor array.
// *link.Link implements it.
type LineSource interface {
	Open(ctx context.Context) error
	ReadLine(ctx context.Context, timeout time.Duration) (string, error)
	Close() error
	State() link.State
}

// Appender persists Summary Records. Every store.Store is an Appender.
type Appender interface {
	Append(ctx context.Context, rec telemetry.SummaryRecord) error
}

// Forwarder receives each record after it has been persisted, for example to
// publish it over MQTT. Failures are logged and never affect persistence.
type Forwarder interface {
	Name() string
	Forward(ctx context.Context, rec telemetry.SummaryRecord) error
}

// Logger is the logging surface the loop needs. Both *logging.Logger and
// *slog.Logger satisfy it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config holds loop timing.
type Config struct {
	// Interval is the aggregation window length.
	Interval time.Duration

	// ReadTimeout bounds each ReadLine call.
	ReadTimeout time.Duration

	// StoreTimeout bounds each Append and each Forward.
	StoreTimeout time.Duration

	// FlushOnShutdown persists a partial window when Run exits.
	FlushOnShutdown bool
}

// Deps holds the loop's collaborators. Source and Store are required.
type Deps struct {
	Source     LineSource
	Store      Appender
	Forwarders []Forwarder

	// Window is the aggregation window to fill. When nil, Run opens one
	// at its start instant.
	Window *telemetry.Window

	// Backoff defaults to FixedBackoff of 2 seconds.
	Backoff Backoff

	// Logger defaults to discarding output.
	Logger Logger

	// Metrics may be nil.
	Metrics *metrics.Collector

	// Now defaults to time.Now.
	Now func() time.Time

	// Sleep defaults to a context-aware timer wait.
	Sleep SleepFunc
}

// Loop is the acquisition loop.
type Loop struct {
	cfg        Config
	source     LineSource
	store      Appender
	forwarders []Forwarder
	window     *telemetry.Window
	backoff    Backoff
	logger     Logger
	metrics    *metrics.Collector
	now        func() time.Time
	sleep      SleepFunc

	running atomic.Bool
}

// defaultBackoff matches the fixed retry delay of the sensor scripts.
const defaultBackoff = 2 * time.Second

// New validates configuration and wires the loop.
//
// Parameters:
//   - cfg: Loop timing
//   - deps: Collaborators; Source and Store are required
//
// Returns:
//   - *Loop: Loop ready to Run
//   - error: ErrInvalidConfig or ErrMissingDependency (wrapped)
func New(cfg Config, deps Deps) (*Loop, error) {
	if cfg.Interval <= 0 || cfg.ReadTimeout <= 0 || cfg.StoreTimeout <= 0 {
		return nil, fmt.Errorf("%w: interval, read timeout and store timeout must be positive", ErrInvalidConfig)
	}
	if deps.Source == nil {
		return nil, fmt.Errorf("%w: line source", ErrMissingDependency)
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("%w: store", ErrMissingDependency)
	}

	l := &Loop{
		cfg:        cfg,
		source:     deps.Source,
		store:      deps.Store,
		forwarders: deps.Forwarders,
		window:     deps.Window,
		backoff:    deps.Backoff,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		now:        deps.Now,
		sleep:      deps.Sleep,
	}

	if l.backoff == nil {
		l.backoff = FixedBackoff(defaultBackoff)
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.sleep == nil {
		l.sleep = sleepContext
	}

	return l, nil
}

// Run acquires until ctx is cancelled.
//
// Link failures, malformed lines and store failures are logged and
// recovered from. On exit the link is closed and, with FlushOnShutdown, a
// partial window is persisted.
//
// Returns:
//   - error: nil on cancellation, ErrAlreadyRunning on a second call
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	if l.window == nil {
		l.window = telemetry.NewWindow(l.cfg.Interval, l.now())
	}

	l.logger.Info("acquisition started",
		"interval", l.cfg.Interval.String(),
		"read_timeout", l.cfg.ReadTimeout.String(),
		"forwarders", len(l.forwarders),
	)

	for ctx.Err() == nil {
		l.iterate(ctx)
	}

	l.shutdown(ctx)
	return nil
}

// iterate performs one pass: (re)connect if needed, read, parse, aggregate.
func (l *Loop) iterate(ctx context.Context) {
	if l.source.State() != link.StateConnected && !l.connect(ctx) {
		return
	}

	line, err := l.source.ReadLine(ctx, l.cfg.ReadTimeout)
	if err != nil {
		l.handleReadError(ctx, err)
		return
	}

	l.metrics.LineRead()
	l.handleLine(ctx, line)
}

// connect opens the link, waiting out the backoff on failure.
// It reports whether the link is now connected.
func (l *Loop) connect(ctx context.Context) bool {
	l.metrics.SetLinkState(int(link.StateConnecting))

	if err := l.source.Open(ctx); err != nil {
		l.metrics.SetLinkState(int(l.source.State()))
		if ctx.Err() != nil {
			return false
		}

		delay := l.backoff.Next()
		l.metrics.LinkEvent(metrics.LinkFailed)
		l.logger.Warn("sensor link unavailable, will retry",
			"error", err,
			"retry_in", delay.String(),
		)
		_ = l.sleep(ctx, delay) //nolint:errcheck // Cancellation is checked by Run
		return false
	}

	l.backoff.Reset()
	l.metrics.LinkEvent(metrics.LinkOpened)
	l.metrics.SetLinkState(int(link.StateConnected))
	l.logger.Info("sensor link connected")
	return true
}

func (l *Loop) handleReadError(ctx context.Context, err error) {
	switch {
	case errors.Is(err, link.ErrReadTimeout):
		// Quiet sensors are normal.
	case ctx.Err() != nil:
		// Shutting down.
	case errors.Is(err, link.ErrLinkLost):
		l.metrics.LinkEvent(metrics.LinkLost)
		l.metrics.SetLinkState(int(l.source.State()))
		l.logger.Warn("sensor link lost", "error", err)
	case errors.Is(err, link.ErrLineTooLong):
		l.metrics.LineTooLong()
		l.logger.Warn("discarding oversized input", "error", err)
	default:
		// Unknown failure: drop the link so the next iteration reopens it.
		l.metrics.LinkEvent(metrics.LinkLost)
		l.logger.Warn("sensor link read failed, reconnecting", "error", err)
		if cerr := l.source.Close(); cerr != nil {
			l.logger.Debug("closing sensor link", "error", cerr)
		}
		l.metrics.SetLinkState(int(link.StateDisconnected))
	}
}

// handleLine parses one line, adds it to the window and persists a record
// when the window is due.
func (l *Loop) handleLine(ctx context.Context, line string) {
	reading, err := telemetry.Parse(line, l.now())
	if err != nil {
		l.metrics.LineMalformed()
		l.logger.Warn("discarding malformed line",
			"line", truncate(line, maxLoggedLine),
			"error", err,
		)
		return
	}

	l.window.Ingest(reading)
	l.metrics.ReadingIngested(l.window.Pending())
	l.logger.Debug("reading ingested", "metrics", reading.Len(), "pending", l.window.Pending())

	rec, ok := l.window.MaybeFlush(l.now())
	if !ok {
		return
	}
	l.metrics.WindowFlushed()
	l.persist(ctx, rec)
}

// persist appends rec with a bounded timeout and forwards it on success.
// A failed append drops the record.
func (l *Loop) persist(ctx context.Context, rec telemetry.SummaryRecord) {
	writeCtx, cancel := context.WithTimeout(ctx, l.cfg.StoreTimeout)
	start := time.Now()
	err := l.store.Append(writeCtx, rec)
	elapsed := time.Since(start)
	cancel()

	if err != nil {
		l.metrics.SummaryDropped(elapsed)
		l.logger.Error("summary record dropped",
			"timestamp", rec.Timestamp,
			"error", err,
		)
		return
	}

	l.metrics.SummaryWritten(elapsed)
	l.logger.Info("summary persisted",
		"timestamp", rec.Timestamp,
		"water_level", rec.WaterLevel,
		"water_temp", rec.WaterTemp,
		"ec", rec.EC,
		"tds", rec.TDS,
		"ph", rec.PH,
	)

	l.forward(ctx, rec)
}

func (l *Loop) forward(ctx context.Context, rec telemetry.SummaryRecord) {
	for _, f := range l.forwarders {
		fwdCtx, cancel := context.WithTimeout(ctx, l.cfg.StoreTimeout)
		err := f.Forward(fwdCtx, rec)
		cancel()

		if err != nil {
			l.metrics.ForwardFailed(f.Name())
			l.logger.Warn("forwarding summary failed",
				"forwarder", f.Name(),
				"error", err,
			)
		}
	}
}

// shutdown closes the link and optionally persists the partial window.
// ctx is already cancelled; writes use a detached context.
func (l *Loop) shutdown(ctx context.Context) {
	if err := l.source.Close(); err != nil {
		l.logger.Warn("closing sensor link", "error", err)
	}
	l.metrics.SetLinkState(int(link.StateDisconnected))

	if pending := l.window.Pending(); l.cfg.FlushOnShutdown && pending > 0 {
		rec := l.window.Flush(l.now())
		l.metrics.WindowFlushed()
		l.logger.Info("flushing partial window", "samples", pending)
		l.persist(context.WithoutCancel(ctx), rec)
	}

	l.logger.Info("acquisition stopped")
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// truncate shortens s to at most n bytes for logging.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "") + "..."
}
