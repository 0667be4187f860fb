package fusion

import (
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/nerrad567/chuango-bridge/internal/device"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/logging"
)

// Snapshot is an immutable view of the account, its devices and their
// live telemetry. Consumers must not modify it.
type Snapshot struct {
	Profile     map[string]any              `json:"profile"`
	TokenExpiry time.Time                   `json:"token_expiry"`
	LastLogin   time.Time                   `json:"last_login"`
	Devices     map[string]device.Device    `json:"devices"`
	Telemetry   map[string]device.Telemetry `json:"telemetry"`

	// Version increases by one on every change.
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MarshalJSON encodes the snapshot for API clients with secret profile
// values masked. The in-memory profile is left intact for credential
// derivation.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type plain Snapshot
	out := plain(s)
	out.Profile = logging.Redact(s.Profile)
	return json.Marshal(out)
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		Profile:   map[string]any{},
		Devices:   map[string]device.Device{},
		Telemetry: map[string]device.Telemetry{},
	}
}

// clone returns a copy whose maps can be modified without affecting s.
func (s *Snapshot) clone() *Snapshot {
	next := *s
	next.Profile = maps.Clone(s.Profile)
	next.Devices = maps.Clone(s.Devices)
	next.Telemetry = maps.Clone(s.Telemetry)
	return &next
}

// DeviceIDs returns the known device ids in sorted order.
func (s *Snapshot) DeviceIDs() []string {
	return slices.Sorted(maps.Keys(s.Devices))
}

// TelemetryFor returns the telemetry for id, or the state of a hub that
// has not been heard from.
func (s *Snapshot) TelemetryFor(id string) device.Telemetry {
	if t, ok := s.Telemetry[id]; ok {
		return t
	}
	return device.NewTelemetry()
}
