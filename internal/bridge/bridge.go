package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/chuango-bridge/internal/account"
	"github.com/nerrad567/chuango-bridge/internal/audit"
	"github.com/nerrad567/chuango-bridge/internal/cloud"
	"github.com/nerrad567/chuango-bridge/internal/device"
	"github.com/nerrad567/chuango-bridge/internal/directory"
	"github.com/nerrad567/chuango-bridge/internal/fusion"
	"github.com/nerrad567/chuango-bridge/internal/manager"
	"github.com/nerrad567/chuango-bridge/internal/session"
)

// shutdownTimeout bounds how long Run waits for sessions to close.
const shutdownTimeout = 10 * time.Second

// TelemetryWriter records telemetry history. The InfluxDB client
// implements it.
type TelemetryWriter interface {
	WriteTelemetry(deviceID string, tel device.Telemetry)
	WriteTokenExpiry(expiresAt time.Time, now time.Time)
}

// Logger is the logging interface used by Bridge and passed on to the
// components it builds.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps are the collaborators a Bridge is assembled from. Audit, History
// and Logger are optional.
type Deps struct {
	Account *account.Session
	Lister  directory.Lister
	Dial    session.DialFunc

	Session         session.Options
	RefreshInterval time.Duration

	Audit   audit.Repository
	History TelemetryWriter
	Logger  Logger
}

// Bridge is the host-facing surface: a fused snapshot of the account and
// its devices, change notification, and arming commands.
type Bridge struct {
	account   *account.Session
	directory *directory.Directory
	manager   *manager.Manager
	fusion    *fusion.Store
	audit     audit.Repository
	history   TelemetryWriter
	logger    Logger

	now func() time.Time
}

// New assembles a Bridge. Nothing runs until Run.
func New(deps Deps) *Bridge {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	store := fusion.New()
	b := &Bridge{
		account: deps.Account,
		fusion:  store,
		audit:   deps.Audit,
		history: deps.History,
		logger:  logger,
		now:     time.Now,
	}

	b.directory = directory.New(deps.Lister, deps.Account, deps.RefreshInterval)
	b.directory.SetLogger(logger)

	b.manager = manager.New(store, deps.Dial, deps.Account.Email(), deps.Session)
	b.manager.SetLogger(logger)
	if b.history != nil {
		b.manager.SetTelemetryHook(b.history.WriteTelemetry)
	}

	deps.Account.SetOnRefresh(b.onTokenRefresh)
	if tok, ok := deps.Account.CurrentToken(); ok {
		store.SetAccount(tok.ProfileCopy(), tok.Expiry(), deps.Account.LastLogin())
	}
	return b
}

func (b *Bridge) onTokenRefresh(tok *account.Token, lastLogin time.Time) {
	b.fusion.SetAccount(tok.ProfileCopy(), tok.Expiry(), lastLogin)
	if b.history != nil {
		b.history.WriteTokenExpiry(tok.Expiry(), b.now())
	}
	b.record(context.Background(), &audit.Entry{
		Action:  audit.ActionLogin,
		Outcome: audit.OutcomeOK,
		Details: map[string]any{"expires_at": tok.Expiry().UTC().Format(time.RFC3339)},
	})
}

// Run starts the device sessions and polls the directory until ctx ends,
// then closes every session.
func (b *Bridge) Run(ctx context.Context) error {
	unsubscribe := b.directory.Subscribe(func(c directory.Change) {
		b.fusion.SetDevices(c.Devices)
		if err := b.manager.Apply(ctx, c.Devices); err != nil && ctx.Err() == nil {
			b.logger.Warn("applying device set failed", "error", err)
		}
	})
	defer unsubscribe()

	if err := b.manager.Start(ctx); err != nil {
		return fmt.Errorf("starting sessions: %w", err)
	}
	b.logger.Info("bridge started", "refresh_interval", b.directory.Interval())

	err := b.directory.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if serr := b.manager.Shutdown(shutdownCtx); serr != nil {
		b.logger.Error("closing sessions failed", "error", serr)
		return serr
	}
	b.logger.Info("bridge stopped")

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Refresh fetches the shared devices now instead of waiting for the
// next interval.
func (b *Bridge) Refresh(ctx context.Context) error {
	_, err := b.directory.Refresh(ctx)
	return err
}

// Snapshot returns the current fused view.
func (b *Bridge) Snapshot() *fusion.Snapshot {
	return b.fusion.Snapshot()
}

// Subscribe registers fn for every new snapshot.
func (b *Bridge) Subscribe(fn func(*fusion.Snapshot)) (unsubscribe func()) {
	return b.fusion.Subscribe(fn)
}

// DeviceIDs returns the ids of the known devices, sorted.
func (b *Bridge) DeviceIDs() []string {
	return b.fusion.Snapshot().DeviceIDs()
}

// Dispatch sends an arming command and records it in the audit log.
func (b *Bridge) Dispatch(ctx context.Context, id string, cmd device.Command) error {
	err := b.manager.Dispatch(ctx, id, cmd)

	entry := &audit.Entry{
		Action:   audit.ActionCommand,
		DeviceID: id,
		Outcome:  audit.OutcomeOK,
		Details:  map[string]any{"command": string(cmd)},
	}
	if err != nil {
		entry.Outcome = audit.OutcomeFailed
		entry.Details["error"] = err.Error()
		b.logger.Warn("command failed", "device_id", id, "command", string(cmd), "error", err)
	}
	b.record(ctx, entry)
	return err
}

func (b *Bridge) record(ctx context.Context, e *audit.Entry) {
	if b.audit == nil {
		return
	}
	if err := b.audit.Create(context.WithoutCancel(ctx), e); err != nil {
		b.logger.Warn("writing audit entry failed", "action", e.Action, "error", err)
	}
}

// Diagnostics returns per-device session diagnostics.
func (b *Bridge) Diagnostics() []session.Diagnostics {
	return b.manager.Diagnostics()
}

// DeviceDiagnostics returns session diagnostics for one device.
func (b *Bridge) DeviceDiagnostics(id string) (session.Diagnostics, bool) {
	return b.manager.SessionDiagnostics(id)
}

// Status summarises account and directory health.
type Status struct {
	ReauthRequired   bool      `json:"reauth_required"`
	TokenValid       bool      `json:"token_valid"`
	TokenExpiry      time.Time `json:"token_expiry,omitempty"`
	TokenRemainingS  int64     `json:"token_remaining_s"`
	TokenRefreshDue  bool      `json:"token_refresh_due"`
	LastLogin        time.Time `json:"last_login,omitempty"`
	LastRefresh      time.Time `json:"last_refresh,omitempty"`
	LastRefreshError string    `json:"last_refresh_error,omitempty"`
	NoSharedDevices  bool      `json:"no_shared_devices"`
	Devices          int       `json:"devices"`
	Sessions         int       `json:"sessions"`
	SnapshotVersion  uint64    `json:"snapshot_version"`
}

// Status reports the current health. ReauthRequired is set once the
// cloud rejects the stored credentials.
func (b *Bridge) Status() Status {
	now := b.now()
	snap := b.fusion.Snapshot()

	st := Status{
		ReauthRequired:  b.account.AuthFailed(),
		LastLogin:       b.account.LastLogin(),
		LastRefresh:     b.directory.LastRefresh(),
		Devices:         len(snap.Devices),
		Sessions:        len(b.manager.DeviceIDs()),
		SnapshotVersion: snap.Version,
	}
	if tok, ok := b.account.CurrentToken(); ok {
		st.TokenExpiry = tok.Expiry()
		st.TokenRemainingS = int64(tok.Remaining(now).Seconds())
		st.TokenRefreshDue = tok.Stale(now)
		st.TokenValid = tok.Remaining(now) > 0
	}
	if err := b.directory.LastError(); err != nil {
		st.LastRefreshError = err.Error()
		st.NoSharedDevices = errors.Is(err, directory.ErrNoSharedDevices)
		if errors.Is(err, cloud.ErrAuth) {
			st.ReauthRequired = true
		}
	}
	return st
}
