package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/j-veylop/amplitude-export/internal/models"
)

var baseTime = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

// testEvent returns an event offset minutes after baseTime.
func testEvent(uuid, eventType string, minutes int) models.Event {
	return models.Event{
		UUID:       uuid,
		EventType:  eventType,
		EventTime:  baseTime.Add(time.Duration(minutes) * time.Minute),
		UserID:     "user-" + uuid,
		HasUserID:  true,
		RawJSON:    fmt.Sprintf(`{"uuid":%q}`, uuid),
		SourceFile: "test.json",
	}
}

func TestInsertEvents(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	events := []models.Event{
		testEvent("a", "click", 0),
		testEvent("b", "click", 5),
		testEvent("c", "view", 70),
	}
	events[2].HasSession = true
	events[2].SessionID = 42
	events[2].ServerEvent = true
	events[2].ScreenName = "Home"

	inserted, dups, err := db.InsertEvents(ctx, models.ImportedFile{Filename: "f1.json", Checksum: "abc"}, events)
	if err != nil {
		t.Fatalf("InsertEvents failed: %v", err)
	}
	if inserted != 3 || dups != 0 {
		t.Errorf("Expected 3 inserted and 0 duplicates, got %d and %d", inserted, dups)
	}

	var (
		eventTime  string
		sessionID  int64
		server     int
		screen     string
		sourceFile string
	)
	err = db.QueryRowContext(ctx, `
		SELECT CAST(event_time AS TEXT), session_id, server_event, event_screen, source_file
		FROM amplitude_events WHERE uuid = 'c'
	`).Scan(&eventTime, &sessionID, &server, &screen, &sourceFile)
	if err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}
	if eventTime != "2025-01-15 11:10:00.000000" {
		t.Errorf("Unexpected event_time %q", eventTime)
	}
	if sessionID != 42 || server != 1 || screen != "Home" || sourceFile != "test.json" {
		t.Errorf("Unexpected row: session=%d server=%d screen=%q source=%q", sessionID, server, screen, sourceFile)
	}
}

func TestInsertEvents_Duplicates(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	first := []models.Event{testEvent("a", "click", 0), testEvent("b", "click", 1)}
	if _, _, err := db.InsertEvents(ctx, models.ImportedFile{Filename: "f1.json"}, first); err != nil {
		t.Fatalf("InsertEvents failed: %v", err)
	}

	second := []models.Event{testEvent("b", "click", 1), testEvent("c", "click", 2)}
	inserted, dups, err := db.InsertEvents(ctx, models.ImportedFile{Filename: "f2.json"}, second)
	if err != nil {
		t.Fatalf("InsertEvents failed: %v", err)
	}
	if inserted != 1 || dups != 1 {
		t.Errorf("Expected 1 inserted and 1 duplicate, got %d and %d", inserted, dups)
	}
}

func TestInsertEvents_NullableColumns(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	ev := testEvent("a", "click", 0)
	ev.HasUserID = false
	ev.UserID = ""
	if _, _, err := db.InsertEvents(ctx, models.ImportedFile{Filename: "f.json"}, []models.Event{ev}); err != nil {
		t.Fatalf("InsertEvents failed: %v", err)
	}

	var nulls int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM amplitude_events
		WHERE user_id IS NULL AND session_id IS NULL AND event_screen IS NULL
	`).Scan(&nulls)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if nulls != 1 {
		t.Errorf("Expected NULL user, session and screen, got %d matching rows", nulls)
	}
}

func TestIsFileImported(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	imported, err := db.IsFileImported(ctx, "f1.json", "abc")
	if err != nil || imported {
		t.Fatalf("Expected unknown file, got %v, %v", imported, err)
	}

	if _, _, err := db.InsertEvents(ctx, models.ImportedFile{Filename: "f1.json", Checksum: "abc"}, nil); err != nil {
		t.Fatalf("InsertEvents failed: %v", err)
	}

	tests := []struct {
		checksum string
		want     bool
	}{
		{"abc", true},
		{"def", false},
	}
	for _, tt := range tests {
		got, err := db.IsFileImported(ctx, "f1.json", tt.checksum)
		if err != nil {
			t.Fatalf("IsFileImported failed: %v", err)
		}
		if got != tt.want {
			t.Errorf("IsFileImported(%q) = %v, want %v", tt.checksum, got, tt.want)
		}
	}

	// Re-importing with new content updates the fingerprint.
	if _, _, err := db.InsertEvents(ctx, models.ImportedFile{Filename: "f1.json", Checksum: "def"}, nil); err != nil {
		t.Fatalf("InsertEvents failed: %v", err)
	}
	if got, _ := db.IsFileImported(ctx, "f1.json", "def"); !got {
		t.Error("Expected updated checksum to match")
	}

	files, err := db.GetImportedFiles(ctx)
	if err != nil {
		t.Fatalf("GetImportedFiles failed: %v", err)
	}
	if len(files) != 1 || files[0].Checksum != "def" || files[0].ImportedAt.IsZero() {
		t.Errorf("Unexpected imported files: %+v", files)
	}
}

func TestGetHourlyEventCounts(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	events := []models.Event{
		testEvent("a", "click", 0),
		testEvent("b", "click", 59),
		testEvent("c", "view", 60),
		testEvent("d", "view", 180),
	}
	if _, _, err := db.InsertEvents(ctx, models.ImportedFile{Filename: "f.json"}, events); err != nil {
		t.Fatalf("InsertEvents failed: %v", err)
	}

	counts, err := db.GetHourlyEventCounts(ctx, models.TimeRange{})
	if err != nil {
		t.Fatalf("GetHourlyEventCounts failed: %v", err)
	}

	want := []models.HourlyEventCount{
		{Hour: baseTime, Count: 2},
		{Hour: baseTime.Add(time.Hour), Count: 1},
		{Hour: baseTime.Add(3 * time.Hour), Count: 1},
	}
	if len(counts) != len(want) {
		t.Fatalf("Expected %d buckets, got %d: %+v", len(want), len(counts), counts)
	}
	for i := range want {
		if !counts[i].Hour.Equal(want[i].Hour) || counts[i].Count != want[i].Count {
			t.Errorf("bucket %d = %+v, want %+v", i, counts[i], want[i])
		}
	}

	// Range boundaries are inclusive hours.
	r := models.TimeRange{Start: baseTime.Add(time.Hour), End: baseTime.Add(time.Hour)}
	counts, err = db.GetHourlyEventCounts(ctx, r)
	if err != nil {
		t.Fatalf("GetHourlyEventCounts failed: %v", err)
	}
	if len(counts) != 1 || counts[0].Count != 1 {
		t.Errorf("Expected a single bucket with 1 event, got %+v", counts)
	}
}

func TestGetEventTypeCounts(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	events := []models.Event{
		testEvent("a", "view", 0),
		testEvent("b", "click", 1),
		testEvent("c", "view", 2),
		testEvent("d", "purchase", 3),
		testEvent("e", "view", 4),
		testEvent("f", "click", 5),
	}
	if _, _, err := db.InsertEvents(ctx, models.ImportedFile{Filename: "f.json"}, events); err != nil {
		t.Fatalf("InsertEvents failed: %v", err)
	}

	counts, err := db.GetEventTypeCounts(ctx, 2)
	if err != nil {
		t.Fatalf("GetEventTypeCounts failed: %v", err)
	}
	want := []models.EventTypeCount{{EventType: "view", Count: 3}, {EventType: "click", Count: 2}}
	if len(counts) != len(want) {
		t.Fatalf("Expected %d rows, got %+v", len(want), counts)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, counts[i], want[i])
		}
	}
}

func TestGetStoreStats(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	stats, err := db.GetStoreStats(ctx)
	if err != nil {
		t.Fatalf("GetStoreStats failed on empty store: %v", err)
	}
	if stats.TotalEvents != 0 || !stats.FirstEvent.IsZero() {
		t.Errorf("Unexpected stats for empty store: %+v", stats)
	}

	events := []models.Event{
		testEvent("a", "view", 0),
		testEvent("b", "click", 30),
		testEvent("c", "view", 90),
	}
	events[1].UserID = events[0].UserID
	if _, _, err := db.InsertEvents(ctx, models.ImportedFile{Filename: "f1.json"}, events[:2]); err != nil {
		t.Fatalf("InsertEvents failed: %v", err)
	}
	if _, _, err := db.InsertEvents(ctx, models.ImportedFile{Filename: "f2.json"}, events[2:]); err != nil {
		t.Fatalf("InsertEvents failed: %v", err)
	}

	stats, err = db.GetStoreStats(ctx)
	if err != nil {
		t.Fatalf("GetStoreStats failed: %v", err)
	}
	if stats.TotalEvents != 3 || stats.UniqueUsers != 2 || stats.EventTypes != 2 || stats.Files != 2 {
		t.Errorf("Unexpected counts: %+v", stats)
	}
	if !stats.FirstEvent.Equal(baseTime) || !stats.LastEvent.Equal(baseTime.Add(90*time.Minute)) {
		t.Errorf("Unexpected bounds: %v - %v", stats.FirstEvent, stats.LastEvent)
	}
}
