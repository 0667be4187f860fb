package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/chuango-bridge/internal/account"
	"github.com/nerrad567/chuango-bridge/internal/cloud"
)

// Keys in the kv table.
const (
	keyInstallID  = "install_id"
	keyAuth       = "auth"
	zoneKeyPrefix = "zone:"
)

// SQLite stores the account state in the kv table.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite creates a store over a migrated database.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, now: time.Now}
}

var _ account.Store = (*SQLite)(nil)

// Get returns the raw value for key.
func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %q: %w", key, err)
	}
	return value, true, nil
}

// Put writes value for key, replacing any previous value.
func (s *SQLite) Put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}

func (s *SQLite) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("%w: %q: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

func (s *SQLite) putJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling %q: %w", key, err)
	}
	return s.Put(ctx, key, string(b))
}

func (s *SQLite) LoadInstallID(ctx context.Context) (string, bool, error) {
	id, ok, err := s.Get(ctx, keyInstallID)
	if err != nil || !ok || id == "" {
		return "", false, err
	}
	return id, true, nil
}

func (s *SQLite) SaveInstallID(ctx context.Context, id string) error {
	return s.Put(ctx, keyInstallID, id)
}

func (s *SQLite) LoadZone(ctx context.Context, region string) (cloud.Zone, bool, error) {
	var zone cloud.Zone
	ok, err := s.getJSON(ctx, zoneKeyPrefix+region, &zone)
	if err != nil || !ok {
		return cloud.Zone{}, false, err
	}
	// A cached zone without an auth host is useless; resolve it again.
	if !zone.Auth.Valid() {
		return cloud.Zone{}, false, nil
	}
	return zone, true, nil
}

func (s *SQLite) SaveZone(ctx context.Context, zone cloud.Zone) error {
	return s.putJSON(ctx, zoneKeyPrefix+zone.Region, zone)
}

func (s *SQLite) LoadAuth(ctx context.Context) (account.Persisted, bool, error) {
	var auth account.Persisted
	ok, err := s.getJSON(ctx, keyAuth, &auth)
	if err != nil || !ok {
		return account.Persisted{}, false, err
	}
	return auth, true, nil
}

func (s *SQLite) SaveAuth(ctx context.Context, auth account.Persisted) error {
	return s.putJSON(ctx, keyAuth, auth)
}

// ForgetAuth removes the persisted login so the next start logs in again.
func (s *SQLite) ForgetAuth(ctx context.Context) error {
	return s.Delete(ctx, keyAuth)
}
