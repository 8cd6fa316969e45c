package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/j-veylop/amplitude-export/internal/models"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if db.Path() != dbPath {
		t.Errorf("Expected path %s, got %s", dbPath, db.Path())
	}

	// Verify file exists
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNew_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database with nested path: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
		t.Error("Nested directories were not created")
	}
}

func TestSchema_TablesExist(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	tables := []string{
		"amplitude_events",
		"imported_files",
	}

	for _, table := range tables {
		var name string
		err := db.QueryRowContext(context.Background(), "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s does not exist: %v", table, err)
		}
	}
}

func TestVacuum(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	if err := db.Vacuum(); err != nil {
		t.Errorf("Vacuum failed: %v", err)
	}
}

func TestClose(t *testing.T) {
	db := newTestDB(t)

	if err := db.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	// Verify database is closed by trying to query
	_, err := db.QueryContext(context.Background(), "SELECT 1")
	if err == nil {
		t.Error("Expected error querying closed database")
	}
}

func TestNew_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	if _, _, err := db.InsertEvents(context.Background(), models.ImportedFile{Filename: "a.json"}, []models.Event{testEvent("u1", "click", 0)}); err != nil {
		t.Fatalf("InsertEvents failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err = New(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer db.Close()

	stats, err := db.GetStoreStats(context.Background())
	if err != nil {
		t.Fatalf("GetStoreStats failed: %v", err)
	}
	if stats.TotalEvents != 1 {
		t.Errorf("Expected 1 event after reopening, got %d", stats.TotalEvents)
	}
}

func TestMigrate_LegacyStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to open raw database: %v", err)
	}
	legacy := []string{
		`CREATE TABLE imported_files (filename TEXT PRIMARY KEY, imported_at DATETIME DEFAULT CURRENT_TIMESTAMP)`,
		`CREATE TABLE amplitude_events (
			uuid TEXT PRIMARY KEY, user_id TEXT, event_screen TEXT, server_event INTEGER,
			event_time DATETIME NOT NULL, event_name TEXT NOT NULL, session_id INTEGER,
			raw_json TEXT NOT NULL, source_file TEXT NOT NULL, created_at DATETIME NOT NULL)`,
		`INSERT INTO imported_files (filename) VALUES ('old.json.gz')`,
		`INSERT INTO amplitude_events VALUES ('a', NULL, NULL, 0, '2025-01-15T10:20:30.123456+00:00', 'click', NULL, '{}', 'old.json.gz', '2025-02-01T00:00:00.000000+00:00')`,
		`INSERT INTO amplitude_events VALUES ('b', NULL, NULL, 0, '2025-01-15T11:00:00+00:00', 'click', NULL, '{}', 'old.json.gz', '2025-02-01T00:00:00+00:00')`,
		`INSERT INTO amplitude_events VALUES ('c', NULL, NULL, 0, '2025-01-15T10:45:10.123+00:00', 'view', NULL, '{}', 'old.json.gz', '2025-02-01T00:00:00.5+00:00')`,
		`INSERT INTO amplitude_events VALUES ('d', NULL, NULL, 0, '2025-01-15T14:05:00.25+02:00', 'view', NULL, '{}', 'old.json.gz', '2025-02-01T00:00:00Z')`,
	}
	for _, q := range legacy {
		if _, err := raw.ExecContext(context.Background(), q); err != nil {
			t.Fatalf("Failed to seed legacy store: %v", err)
		}
	}
	_ = raw.Close()

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to open legacy store: %v", err)
	}
	defer db.Close()

	ok, err := db.hasColumn("imported_files", "checksum")
	if err != nil || !ok {
		t.Fatalf("Expected checksum column after migration, got %v, %v", ok, err)
	}

	want := map[string]string{
		"a": "2025-01-15 10:20:30.123456",
		"b": "2025-01-15 11:00:00.000000",
		"c": "2025-01-15 10:45:10.123000",
		"d": "2025-01-15 12:05:00.250000",
	}
	for uuid, wantTime := range want {
		var got string
		if err := db.QueryRowContext(context.Background(), "SELECT CAST(event_time AS TEXT) FROM amplitude_events WHERE uuid = ?", uuid).Scan(&got); err != nil {
			t.Fatalf("Failed to read event %s: %v", uuid, err)
		}
		if got != wantTime {
			t.Errorf("event %s time = %q, want %q", uuid, got, wantTime)
		}
	}

	var created string
	if err := db.QueryRowContext(context.Background(), "SELECT CAST(created_at AS TEXT) FROM amplitude_events WHERE uuid = 'c'").Scan(&created); err != nil {
		t.Fatalf("Failed to read created_at: %v", err)
	}
	if created != "2025-02-01 00:00:00" {
		t.Errorf("created_at = %q, want %q", created, "2025-02-01 00:00:00")
	}

	// Migrated rows must be usable by the date based queries.
	hourly, err := db.GetHourlyEventCounts(context.Background(), models.TimeRange{})
	if err != nil {
		t.Fatalf("GetHourlyEventCounts failed: %v", err)
	}
	total := 0
	for _, h := range hourly {
		total += h.Count
	}
	if total != 4 {
		t.Errorf("hourly buckets hold %d events, want 4: %+v", total, hourly)
	}

	stats, err := db.GetStoreStats(context.Background())
	if err != nil {
		t.Fatalf("GetStoreStats failed: %v", err)
	}
	wantFirst := time.Date(2025, 1, 15, 10, 20, 30, 123456000, time.UTC)
	if !stats.FirstEvent.Equal(wantFirst) {
		t.Errorf("FirstEvent = %v, want %v", stats.FirstEvent, wantFirst)
	}
	wantLast := time.Date(2025, 1, 15, 12, 5, 0, 250000000, time.UTC)
	if !stats.LastEvent.Equal(wantLast) {
		t.Errorf("LastEvent = %v, want %v", stats.LastEvent, wantLast)
	}

	imported, err := db.IsFileImported(context.Background(), "old.json.gz", "anything")
	if err != nil || !imported {
		t.Errorf("Legacy rows without checksum should count as imported, got %v, %v", imported, err)
	}
}

// Helper to create a test database
func newTestDB(t *testing.T) *DB {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	return db
}
