package account

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/nerrad567/chuango-bridge/internal/cloud"
)

// Persisted is the login state written after each successful login.
type Persisted struct {
	Token     string         `json:"token"`
	ExpiresAt int64          `json:"expire_at"`
	LastLogin time.Time      `json:"last_login"`
	Profile   map[string]any `json:"user_info"`
}

// Store persists the account state that must survive restarts.
// Load methods report absence with ok=false rather than an error.
type Store interface {
	LoadInstallID(ctx context.Context) (id string, ok bool, err error)
	SaveInstallID(ctx context.Context, id string) error

	LoadZone(ctx context.Context, region string) (zone cloud.Zone, ok bool, err error)
	SaveZone(ctx context.Context, zone cloud.Zone) error

	LoadAuth(ctx context.Context) (auth Persisted, ok bool, err error)
	SaveAuth(ctx context.Context, auth Persisted) error
}

// MemoryStore is a Store that keeps everything in memory.
type MemoryStore struct {
	mu        sync.Mutex
	installID string
	zones     map[string]cloud.Zone
	auth      *Persisted

	// AuthWrites counts SaveAuth calls.
	AuthWrites int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{zones: make(map[string]cloud.Zone)}
}

func (m *MemoryStore) LoadInstallID(context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.installID, m.installID != "", nil
}

func (m *MemoryStore) SaveInstallID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.installID = id
	return nil
}

func (m *MemoryStore) LoadZone(_ context.Context, region string) (cloud.Zone, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zones[region]
	return z, ok, nil
}

func (m *MemoryStore) SaveZone(_ context.Context, zone cloud.Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zones[zone.Region] = zone
	return nil
}

func (m *MemoryStore) LoadAuth(context.Context) (Persisted, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.auth == nil {
		return Persisted{}, false, nil
	}
	p := *m.auth
	p.Profile = maps.Clone(p.Profile)
	return p, true, nil
}

func (m *MemoryStore) SaveAuth(_ context.Context, auth Persisted) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	auth.Profile = maps.Clone(auth.Profile)
	m.auth = &auth
	m.AuthWrites++
	return nil
}
