package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/chuango-bridge/internal/infrastructure/config"
	"github.com/nerrad567/chuango-bridge/internal/infrastructure/database"
	_ "github.com/nerrad567/chuango-bridge/migrations" // registers the embedded migrations
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "audit.db"), BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestCreate_GeneratesIDAndTime(t *testing.T) {
	repo := newTestRepo(t)
	e := &Entry{Action: ActionLogin, Outcome: OutcomeOK}

	if err := repo.Create(context.Background(), e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(e.ID) != len("aud-")+8 {
		t.Errorf("ID = %q, want aud-<8 chars>", e.ID)
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestList_FiltersAndOrders(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []*Entry{
		{Action: ActionCommand, DeviceID: "hub-1", Outcome: OutcomeOK, Details: map[string]any{"command": "arm_away"}, CreatedAt: base},
		{Action: ActionCommand, DeviceID: "hub-2", Outcome: OutcomeFailed, CreatedAt: base.Add(time.Minute)},
		{Action: ActionLogin, Outcome: OutcomeOK, CreatedAt: base.Add(2 * time.Minute)},
		{Action: ActionCommand, DeviceID: "hub-1", Outcome: OutcomeOK, CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantFirst string
	}{
		{"all", Filter{}, 4, entries[3].ID},
		{"commands", Filter{Action: ActionCommand}, 3, entries[3].ID},
		{"one device", Filter{DeviceID: "hub-2"}, 1, entries[1].ID},
		{"paged", Filter{Limit: 1, Offset: 1}, 4, entries[2].ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", res.Total, tt.wantTotal)
			}
			if len(res.Entries) == 0 || res.Entries[0].ID != tt.wantFirst {
				t.Errorf("first entry = %+v, want id %s", res.Entries, tt.wantFirst)
			}
		})
	}

	res, _ := repo.List(ctx, Filter{DeviceID: "hub-1", Limit: 1, Offset: 1})
	if got := res.Entries[0].Details["command"]; got != "arm_away" {
		t.Errorf("details command = %v, want arm_away", got)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := newTestRepo(t)
	res, err := repo.List(context.Background(), Filter{Limit: 1000, Offset: -5})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Limit != 200 || res.Offset != 0 {
		t.Errorf("Limit, Offset = %d, %d; want 200, 0", res.Limit, res.Offset)
	}
	if res.Entries == nil {
		t.Error("Entries is nil, want empty slice")
	}
}
