package directory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/chuango-bridge/internal/account"
	"github.com/nerrad567/chuango-bridge/internal/cloud"
	"github.com/nerrad567/chuango-bridge/internal/device"
)

// DefaultInterval is the time between refreshes.
const DefaultInterval = 6 * time.Hour

// Lister fetches the devices shared with an account.
type Lister interface {
	SharedDevices(ctx context.Context, auth cloud.Endpoint, token string) ([]device.Device, error)
}

// Auth provides a valid token and the zone to query.
type Auth interface {
	EnsureValid(ctx context.Context, force bool) error
	CurrentToken() (*account.Token, bool)
	Zone(ctx context.Context) (cloud.Zone, error)
}

// Change is the result of a successful refresh.
type Change struct {
	Devices map[string]device.Device
	Added   []string
	Removed []string
}

// Logger is the logging interface used by Directory.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Directory keeps the set of devices shared with the account.
//
// A failed refresh leaves the previous device set in place.
type Directory struct {
	lister   Lister
	auth     Auth
	interval time.Duration

	refreshMu sync.Mutex

	mu          sync.RWMutex
	current     map[string]device.Device
	lastErr     error
	lastRefresh time.Time
	logger      Logger

	obsMu     sync.Mutex
	observers map[uint64]func(Change)
	nextObs   uint64

	now func() time.Time
}

// New creates a Directory. A non-positive interval selects DefaultInterval.
func New(lister Lister, auth Auth, interval time.Duration) *Directory {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Directory{
		lister:    lister,
		auth:      auth,
		interval:  interval,
		current:   map[string]device.Device{},
		observers: make(map[uint64]func(Change)),
		logger:    noopLogger{},
		now:       time.Now,
	}
}

// SetLogger sets the logger.
func (d *Directory) SetLogger(logger Logger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	d.logger = logger
}

func (d *Directory) log() Logger {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.logger
}

// Subscribe registers fn to receive every successful refresh.
func (d *Directory) Subscribe(fn func(Change)) (unsubscribe func()) {
	d.obsMu.Lock()
	id := d.nextObs
	d.nextObs++
	d.observers[id] = fn
	d.obsMu.Unlock()

	return func() {
		d.obsMu.Lock()
		delete(d.observers, id)
		d.obsMu.Unlock()
	}
}

// Refresh fetches the shared devices and publishes the change.
//
// An auth rejection is retried once after a forced login. Errors wrap
// ErrUpdateFailed and the cause: cloud.ErrAuth, cloud.ErrConnectivity or
// ErrNoSharedDevices.
func (d *Directory) Refresh(ctx context.Context) (map[string]device.Device, error) {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	list, err := d.fetch(ctx)
	if err != nil {
		return nil, d.fail(err)
	}
	devices := d.index(list)
	if len(devices) == 0 {
		return nil, d.fail(ErrNoSharedDevices)
	}
	d.commit(devices)
	return maps.Clone(devices), nil
}

func (d *Directory) fail(cause error) error {
	err := fmt.Errorf("%w: %w", ErrUpdateFailed, cause)
	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()
	return err
}

// fetch lists the shared devices. Only a rejection from the list call
// itself earns one forced login and retry; a failed login is returned
// as is.
func (d *Directory) fetch(ctx context.Context) ([]device.Device, error) {
	if err := d.auth.EnsureValid(ctx, false); err != nil {
		return nil, err
	}
	list, err := d.list(ctx)
	if !errors.Is(err, cloud.ErrAuth) {
		return list, err
	}

	d.log().Warn("shared device request rejected, forcing login")
	if err := d.auth.EnsureValid(ctx, true); err != nil {
		return nil, err
	}
	return d.list(ctx)
}

func (d *Directory) list(ctx context.Context) ([]device.Device, error) {
	tok, ok := d.auth.CurrentToken()
	if !ok {
		return nil, fmt.Errorf("%w: no token after login", cloud.ErrAuth)
	}
	zone, err := d.auth.Zone(ctx)
	if err != nil {
		return nil, err
	}
	return d.lister.SharedDevices(ctx, zone.Auth, tok.Value)
}

// index keys devices by id, dropping entries that cannot be addressed.
func (d *Directory) index(list []device.Device) map[string]device.Device {
	out := make(map[string]device.Device, len(list))
	for _, dev := range list {
		if dev.ID == "" {
			continue
		}
		if err := device.ValidateID(dev.ID); err != nil {
			d.log().Warn("ignoring shared device", "error", err)
			continue
		}
		out[dev.ID] = dev
	}
	return out
}

func (d *Directory) commit(devices map[string]device.Device) {
	d.mu.Lock()
	prev := d.current
	d.current = devices
	d.lastErr = nil
	d.lastRefresh = d.now()
	logger := d.logger
	d.mu.Unlock()

	change := Change{Devices: maps.Clone(devices)}
	for id := range devices {
		if _, ok := prev[id]; !ok {
			change.Added = append(change.Added, id)
		}
	}
	for id := range prev {
		if _, ok := devices[id]; !ok {
			change.Removed = append(change.Removed, id)
		}
	}
	slices.Sort(change.Added)
	slices.Sort(change.Removed)

	logger.Info("shared devices refreshed",
		"count", len(devices),
		"added", change.Added,
		"removed", change.Removed,
	)

	d.obsMu.Lock()
	fns := make([]func(Change), 0, len(d.observers))
	for _, fn := range d.observers {
		fns = append(fns, fn)
	}
	d.obsMu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}

// Run refreshes immediately and then on every interval until ctx ends.
// Failures are logged and retried at the next interval.
func (d *Directory) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if _, err := d.Refresh(ctx); err != nil && ctx.Err() == nil {
			d.log().Warn("shared device refresh failed", "error", err, "next_in", d.interval)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Devices returns the device set from the last successful refresh.
func (d *Directory) Devices() map[string]device.Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return maps.Clone(d.current)
}

// LastError returns the error of the most recent refresh, or nil.
func (d *Directory) LastError() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr
}

// LastRefresh returns the time of the last successful refresh.
func (d *Directory) LastRefresh() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastRefresh
}

// Interval returns the refresh interval.
func (d *Directory) Interval() time.Duration {
	return d.interval
}
