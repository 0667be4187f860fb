package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/chuango-bridge/internal/device"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/config"
)

// Default timings.
const (
	DefaultInitialBackoff = 5 * time.Second
	DefaultMaxBackoff     = 60 * time.Second
	DefaultPublishWait    = 10 * time.Second
)

// Source supplies the latest device metadata and account profile. It is
// consulted before every connection attempt.
type Source interface {
	Device(id string) (device.Device, bool)
	Profile() map[string]any
}

// TelemetrySink receives a copy of the device telemetry after every
// change. It is called with the session's telemetry lock held, so calls
// for one device never overlap and arrive in order.
type TelemetrySink func(deviceID string, t device.Telemetry)

// Logger is the logging interface used by Session.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Options tunes a session.
type Options struct {
	QoS            byte
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	PublishWait    time.Duration
}

// OptionsFromConfig builds Options from the MQTT settings.
func OptionsFromConfig(cfg config.MQTTConfig) Options {
	return Options{
		QoS:            byte(cfg.QoS), //nolint:gosec // Validated to 0..2.
		InitialBackoff: time.Duration(cfg.Reconnect.InitialDelay) * time.Second,
		MaxBackoff:     time.Duration(cfg.Reconnect.MaxDelay) * time.Second,
		PublishWait:    time.Duration(cfg.PublishTimeout) * time.Second,
	}
}

func (o Options) withDefaults() Options {
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = DefaultInitialBackoff
	}
	if o.MaxBackoff < o.InitialBackoff {
		o.MaxBackoff = max(DefaultMaxBackoff, o.InitialBackoff)
	}
	if o.PublishWait <= 0 {
		o.PublishWait = DefaultPublishWait
	}
	return o
}

// Session keeps one device's broker connection alive.
//
// A session moves idle → connecting → subscribed, and on any failure
// disconnected → backoff → connecting again, until Close moves it to
// closed. It owns the device's Telemetry.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Publishes are serialised per session.
type Session struct {
	id       string
	clientID string
	dial     DialFunc
	source   Source
	sink     TelemetrySink
	opts     Options

	mu          sync.Mutex
	state       State
	conn        Conn
	creds       *Credentials
	ready       chan struct{}
	attempts    int
	lastErr     error
	connectedAt time.Time
	started     bool
	cancel      context.CancelFunc
	logger      Logger

	closed    chan struct{}
	closeOnce sync.Once
	done      chan struct{}

	telMu     sync.Mutex
	telemetry device.Telemetry

	pubMu sync.Mutex

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

// New creates a session for one device. Start begins connecting.
func New(deviceID, clientID string, dial DialFunc, source Source, sink TelemetrySink, opts Options) *Session {
	if sink == nil {
		sink = func(string, device.Telemetry) {}
	}
	return &Session{
		id:        deviceID,
		clientID:  clientID,
		dial:      dial,
		source:    source,
		sink:      sink,
		opts:      opts.withDefaults(),
		state:     StateIdle,
		ready:     make(chan struct{}),
		closed:    make(chan struct{}),
		done:      make(chan struct{}),
		telemetry: device.NewTelemetry(),
		logger:    noopLogger{},
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// SetLogger sets the logger.
func (s *Session) SetLogger(logger Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

func (s *Session) log() Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger
}

// DeviceID returns the device this session serves.
func (s *Session) DeviceID() string {
	return s.id
}

// Start launches the connection loop. It does nothing if the session was
// already started or closed.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

// Close stops the session. It does not wait; use Wait or Done for that.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		close(s.closed)
		cancel := s.cancel
		if !s.started {
			s.started = true
			s.state = StateClosed
			close(s.done)
		}
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
	})
}

// Done is closed once the session has reached the closed state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session is closed or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for session %s: %w", s.id, ctx.Err())
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Telemetry returns a copy of the current telemetry.
func (s *Session) Telemetry() device.Telemetry {
	s.telMu.Lock()
	defer s.telMu.Unlock()
	return s.telemetry.Clone()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.finish()

	backoff := s.opts.InitialBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		s.setState(StateConnecting)
		subscribed, err := s.connectAndServe(ctx)
		if ctx.Err() != nil {
			return
		}
		if subscribed {
			backoff = s.opts.InitialBackoff
		}

		s.mu.Lock()
		s.lastErr = err
		s.state = StateBackoff
		s.mu.Unlock()

		s.log().Warn("mqtt session interrupted",
			"device_id", s.id,
			"error", err,
			"retry_in", backoff,
		)

		if !s.sleep(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, s.opts.MaxBackoff)
	}
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// nextBackoff doubles d, capped at limit.
func nextBackoff(d, limit time.Duration) time.Duration {
	return min(d*2, limit)
}

// connectAndServe makes one connection attempt and, once subscribed,
// blocks until the connection is lost or ctx ends.
func (s *Session) connectAndServe(ctx context.Context) (subscribed bool, err error) {
	dev, ok := s.source.Device(s.id)
	if !ok {
		return false, fmt.Errorf("%w: device %s is not known", ErrConfig, s.id)
	}
	creds, err := DeriveCredentials(dev, s.source.Profile(), s.clientID)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	s.creds = &creds
	s.attempts++
	s.mu.Unlock()

	conn, err := s.dial(ctx, creds.Params())
	if err != nil {
		return false, fmt.Errorf("connecting to %s:%d: %w", creds.Host, creds.Port, err)
	}

	if err := conn.Subscribe(creds.Topic, s.opts.QoS, s.handleMessage); err != nil {
		conn.Close() //nolint:errcheck // Best-effort cleanup
		return false, fmt.Errorf("subscribing to %s: %w", creds.Topic, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.state = StateSubscribed
	s.connectedAt = s.now()
	s.lastErr = nil
	close(s.ready)
	logger := s.logger
	s.mu.Unlock()

	logger.Info("mqtt session subscribed",
		"device_id", s.id,
		"host", creds.Host,
		"client_id", creds.ClientID,
		"topic", creds.Topic,
	)
	s.updateTelemetry(func(t *device.Telemetry) {
		// Online is unknown again until the hub reports it.
		t.OnlineKnown = false
	})

	select {
	case <-conn.Lost():
		err = conn.Err()
	case <-ctx.Done():
		err = ctx.Err()
	}
	conn.Close() //nolint:errcheck // Already lost or shutting down

	s.mu.Lock()
	s.conn = nil
	s.ready = make(chan struct{})
	s.state = StateDisconnected
	s.mu.Unlock()

	s.updateTelemetry(func(t *device.Telemetry) { t.MarkOffline() })
	return true, err
}

// finish moves the session to closed.
func (s *Session) finish() {
	// Releases publishers even when the parent context ended the loop.
	s.Close()

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	s.updateTelemetry(func(t *device.Telemetry) { t.MarkOffline() })
}

func (s *Session) updateTelemetry(fn func(t *device.Telemetry)) {
	s.telMu.Lock()
	defer s.telMu.Unlock()
	next := s.telemetry.Clone()
	fn(&next)
	s.telemetry = next
	s.sink(s.id, next.Clone())
}

func (s *Session) handleMessage(topic string, payload []byte) error {
	s.log().Debug("mqtt message received", "device_id", s.id, "topic", topic, "payload", preview(payload))
	now := s.now()
	s.updateTelemetry(func(t *device.Telemetry) {
		Apply(t, topic, payload, now)
	})
	return nil
}

// WaitReady waits up to timeout for the session to be subscribed.
func (s *Session) WaitReady(ctx context.Context, timeout time.Duration) ReadyResult {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()

	select {
	case <-s.closed:
		return Closed
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ready:
		return Ready
	case <-s.closed:
		return Closed
	case <-timer.C:
		return TimedOut
	case <-ctx.Done():
		return TimedOut
	}
}

// Publish sends payload once the session is subscribed, waiting up to
// the configured publish wait. It fails with ErrNotConnected when the
// session does not become ready in time or is closed.
func (s *Session) Publish(ctx context.Context, topic string, payload []byte, qos byte, retain bool) error {
	if res := s.WaitReady(ctx, s.opts.PublishWait); res != Ready {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s: %w", ErrNotConnected, s.id, ctx.Err())
		}
		return fmt.Errorf("%w: %s: %s", ErrNotConnected, s.id, res)
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	conn := s.conn
	state := s.state
	s.mu.Unlock()
	if conn == nil || state != StateSubscribed {
		return fmt.Errorf("%w: %s: connection dropped", ErrNotConnected, s.id)
	}

	if err := conn.Publish(topic, payload, qos, retain); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	s.log().Debug("mqtt message sent", "device_id", s.id, "topic", topic)
	return nil
}
