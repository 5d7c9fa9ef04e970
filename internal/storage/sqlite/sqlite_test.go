//go:build sqlite

package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"tripplanner/internal/domain"
	"tripplanner/internal/storage"
	"tripplanner/internal/storage/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "tripplanner.db")
	s, err := New(dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store { return newTestStore(t) })
}

func TestMigrationsIdempotent(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "twice.db")
	first, err := New(dsn)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	_ = first.Close()

	second, err := New(dsn)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer second.Close()

	status, err := Status(dsn)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(status, "schema_version=1") || !strings.Contains(status, "applied=1") {
		t.Errorf("unexpected status: %s", status)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "reopen.db")
	s, err := New(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	owner := storetest.NewProfile(t, s, "reopen@example.com")
	trip, err := s.CreateTrip(ctx, owner.ID, domain.TripInput{Destination: "Kyoto"})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	_ = s.Close()

	s, err = New(dsn)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.GetTrip(ctx, owner.ID, trip.ID)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Destination != "Kyoto" {
		t.Errorf("destination = %q, want Kyoto", got.Destination)
	}
}

func TestPingAndStats(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if st := s.Stats(); st.MaxOpenConnections != 1 {
		t.Errorf("max open = %d, want 1", st.MaxOpenConnections)
	}
}
