package manager

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/chuango-bridge/internal/device"
	"github.com/nerrad567/chuango-bridge/internal/fusion"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/chuango-bridge/internal/session"
)

const (
	commandQoS    = 1
	commandRetain = false
)

// Logger is the logging interface used by Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Manager runs one session per device in the current device set.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Apply and Shutdown calls are serialised.
type Manager struct {
	store *fusion.Store
	dial  session.DialFunc
	email string
	opts  session.Options

	// applyMu serialises changes to the running session set.
	applyMu sync.Mutex

	mu        sync.Mutex
	desired   map[string]device.Device
	sessions  map[string]*session.Session
	closing   map[*session.Session]struct{}
	clientIDs map[string]string
	runCtx    context.Context
	started   bool
	stopped   bool
	hook      func(id string, t device.Telemetry)
	logger    Logger

	now func() time.Time
}

// New creates a Manager that writes telemetry to store. email is the
// account address sent with commands.
func New(store *fusion.Store, dial session.DialFunc, email string, opts session.Options) *Manager {
	return &Manager{
		store:     store,
		dial:      dial,
		email:     email,
		opts:      opts,
		desired:   make(map[string]device.Device),
		sessions:  make(map[string]*session.Session),
		closing:   make(map[*session.Session]struct{}),
		clientIDs: make(map[string]string),
		logger:    noopLogger{},
		now:       time.Now,
	}
}

// SetLogger sets the logger for the manager and the sessions it starts.
func (m *Manager) SetLogger(logger Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
}

// SetTelemetryHook registers fn to receive every telemetry update after
// it has been stored.
func (m *Manager) SetTelemetryHook(fn func(id string, t device.Telemetry)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = fn
}

// Device implements session.Source from the recorded device set.
func (m *Manager) Device(id string) (device.Device, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.desired[id]
	return d, ok
}

// Profile implements session.Source from the fused account profile.
func (m *Manager) Profile() map[string]any {
	return m.store.Snapshot().Profile
}

func (m *Manager) putTelemetry(id string, t device.Telemetry) {
	m.store.PutTelemetry(id, t)
	m.mu.Lock()
	hook := m.hook
	m.mu.Unlock()
	if hook != nil {
		hook(id, t)
	}
}

// clientID returns the client id for a device, creating it on first use.
// Ids are kept for the life of the process. Callers hold m.mu.
func (m *Manager) clientID(id string) string {
	cid, ok := m.clientIDs[id]
	if !ok {
		cid = session.NewClientID(id)
		m.clientIDs[id] = cid
	}
	return cid
}

// Apply records the desired device set. Once started, sessions are
// started for new devices, and sessions for removed devices are closed
// and awaited before their telemetry is dropped.
func (m *Manager) Apply(ctx context.Context, devices map[string]device.Device) error {
	m.applyMu.Lock()
	defer m.applyMu.Unlock()

	m.mu.Lock()
	m.desired = maps.Clone(devices)
	if m.desired == nil {
		m.desired = make(map[string]device.Device)
	}
	m.mu.Unlock()

	return m.reconcile(ctx)
}

// Start marks the host as ready and starts sessions for the recorded
// device set. Sessions run until Shutdown or until ctx ends.
func (m *Manager) Start(ctx context.Context) error {
	m.applyMu.Lock()
	defer m.applyMu.Unlock()

	m.mu.Lock()
	if m.started || m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.runCtx = ctx
	m.mu.Unlock()

	return m.reconcile(ctx)
}

// reconcile brings the running sessions in line with the desired set.
// Callers hold applyMu.
func (m *Manager) reconcile(ctx context.Context) error {
	m.mu.Lock()
	if !m.started || m.stopped {
		m.mu.Unlock()
		return nil
	}

	toStart, toStop := Reconcile(slices.Collect(maps.Keys(m.sessions)), slices.Collect(maps.Keys(m.desired)))

	logger := m.logger
	for _, id := range toStart {
		s := session.New(id, m.clientID(id), m.dial, m, m.putTelemetry, m.opts)
		s.SetLogger(logger)
		m.sessions[id] = s
		s.Start(m.runCtx)
	}

	stopping := make([]*session.Session, 0, len(toStop))
	for _, id := range toStop {
		stopping = append(stopping, m.sessions[id])
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if len(toStart) > 0 || len(toStop) > 0 {
		logger.Info("device sessions reconciled", "started", toStart, "stopped", toStop)
	}
	if len(stopping) == 0 {
		return nil
	}

	err := closeAll(ctx, stopping)
	m.release(stopping)
	return err
}

// release drops telemetry for finished sessions whose device is no
// longer desired. Sessions still running are kept in closing so that
// Shutdown waits for them.
func (m *Manager) release(sessions []*session.Session) {
	var dropped []string

	m.mu.Lock()
	for _, s := range sessions {
		id := s.DeviceID()
		if m.sessions[id] == s {
			delete(m.sessions, id)
		}
		if !finished(s) {
			m.closing[s] = struct{}{}
			continue
		}
		delete(m.closing, s)
		if _, ok := m.desired[id]; !ok && m.sessions[id] == nil {
			dropped = append(dropped, id)
		}
	}
	m.mu.Unlock()

	for _, id := range dropped {
		m.store.RemoveTelemetry(id)
	}
}

func finished(s *session.Session) bool {
	select {
	case <-s.Done():
		return true
	default:
		return false
	}
}

// closeAll closes sessions concurrently and waits for each to finish.
func closeAll(ctx context.Context, sessions []*session.Session) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range sessions {
		g.Go(func() error {
			s.Close()
			return s.Wait(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("closing sessions: %w", err)
	}
	return nil
}

// Dispatch sends an arming command to one device. It fails with
// ErrUnknownDevice for ids without a session (outside the device set,
// before Start or after Shutdown), and with
// session.ErrNotConnected when the device's session is not ready in time.
// Commands are never queued or retried.
func (m *Manager) Dispatch(ctx context.Context, id string, cmd device.Command) error {
	mode, err := cmd.ModeCode()
	if err != nil {
		return err
	}

	m.mu.Lock()
	dev, known := m.desired[id]
	s := m.sessions[id]
	logger := m.logger
	m.mu.Unlock()

	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	if s == nil {
		return fmt.Errorf("%w: %s: no session", ErrUnknownDevice, id)
	}
	typeCode := dev.TypeCode()
	if typeCode == "" {
		return fmt.Errorf("%w: device %s has no mpid or product_id", session.ErrConfig, id)
	}

	payload, err := BuildCommand(m.email, m.Profile(), mode, m.now())
	if err != nil {
		return err
	}
	topic := mqtt.Topics{}.DeviceConfigIn(id, typeCode)

	logger.Info("dispatching command", "device_id", id, "command", string(cmd), "topic", topic)
	return s.Publish(ctx, topic, payload, commandQoS, commandRetain)
}

// Shutdown closes every session, including those still closing after an
// earlier Apply, and waits for all of them to finish. No sessions are
// started afterwards.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.applyMu.Lock()
	defer m.applyMu.Unlock()

	m.mu.Lock()
	m.stopped = true
	sessions := slices.Collect(maps.Values(m.sessions))
	for s := range m.closing {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	err := closeAll(ctx, sessions)
	m.release(sessions)
	return err
}

// DeviceIDs returns the ids with a running session, sorted.
func (m *Manager) DeviceIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.sessions))
}

// Diagnostics returns per-session diagnostics sorted by device id.
func (m *Manager) Diagnostics() []session.Diagnostics {
	m.mu.Lock()
	sessions := make([]*session.Session, 0, len(m.sessions))
	for _, id := range slices.Sorted(maps.Keys(m.sessions)) {
		sessions = append(sessions, m.sessions[id])
	}
	m.mu.Unlock()

	out := make([]session.Diagnostics, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Diagnostics())
	}
	return out
}

// SessionDiagnostics returns diagnostics for one device.
func (m *Manager) SessionDiagnostics(id string) (session.Diagnostics, bool) {
	m.mu.Lock()
	s := m.sessions[id]
	m.mu.Unlock()
	if s == nil {
		return session.Diagnostics{}, false
	}
	return s.Diagnostics(), true
}
