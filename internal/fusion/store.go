package fusion

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/chuango-bridge/internal/device"
)

// Store merges slow-polled device metadata with live telemetry into a
// single Snapshot.
//
// Reads are lock-free. Writes are serialised and build a new Snapshot;
// observers run synchronously after each swap, in write order, on the
// writer's goroutine. An observer must not write to the Store.
type Store struct {
	current atomic.Pointer[Snapshot]

	// writeMu serialises writers and observer notification.
	writeMu sync.Mutex

	obsMu     sync.Mutex
	observers map[uint64]func(*Snapshot)
	nextObs   uint64

	now func() time.Time
}

// New creates an empty Store.
func New() *Store {
	s := &Store{
		observers: make(map[uint64]func(*Snapshot)),
		now:       time.Now,
	}
	s.current.Store(emptySnapshot())
	return s
}

// Snapshot returns the current view.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Subscribe registers fn to be called with every new Snapshot. The
// returned function removes the registration.
func (s *Store) Subscribe(fn func(*Snapshot)) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

// update applies mutate to a copy of the current snapshot and publishes it.
func (s *Store) update(mutate func(next *Snapshot)) *Snapshot {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.current.Load().clone()
	mutate(next)
	next.Version++
	next.UpdatedAt = s.now()
	s.current.Store(next)

	s.obsMu.Lock()
	fns := make([]func(*Snapshot), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
	return next
}

// SetDevices replaces the device metadata. Telemetry is left untouched,
// including entries for devices no longer present.
func (s *Store) SetDevices(devices map[string]device.Device) {
	s.update(func(next *Snapshot) {
		next.Devices = maps.Clone(devices)
		if next.Devices == nil {
			next.Devices = map[string]device.Device{}
		}
	})
}

// PutTelemetry replaces the telemetry record of one device.
func (s *Store) PutTelemetry(id string, t device.Telemetry) {
	t = t.Clone()
	s.update(func(next *Snapshot) {
		next.Telemetry[id] = t
	})
}

// RemoveTelemetry drops the telemetry record of one device.
func (s *Store) RemoveTelemetry(id string) {
	if _, ok := s.Snapshot().Telemetry[id]; !ok {
		return
	}
	s.update(func(next *Snapshot) {
		delete(next.Telemetry, id)
	})
}

// SetAccount records the account profile and token timing.
func (s *Store) SetAccount(profile map[string]any, tokenExpiry, lastLogin time.Time) {
	s.update(func(next *Snapshot) {
		next.Profile = maps.Clone(profile)
		if next.Profile == nil {
			next.Profile = map[string]any{}
		}
		next.TokenExpiry = tokenExpiry
		next.LastLogin = lastLogin
	})
}
