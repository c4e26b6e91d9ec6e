package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"bedrockmate/internal/store"
	"bedrockmate/internal/store/storetest"
)

func newSQLite(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "bedrockmate.db") + "?_busy_timeout=5000"
	s, err := Open(ctx, DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}
	return s
}

func TestSQLiteConformance(t *testing.T) {
	storetest.Run(t, newSQLite)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newSQLite(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate returned error: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "x"); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
