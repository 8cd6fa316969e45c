// Package models defines data structures and domain types.
package models

import "time"

// EventTimeLayout is the timestamp format used in exported event rows.
const EventTimeLayout = "2006-01-02 15:04:05.000000"

// Event is a single exported Amplitude event reduced to the columns we store.
type Event struct {
	EventTime   time.Time
	UUID        string
	UserID      string
	EventType   string
	ScreenName  string
	RawJSON     string
	SourceFile  string
	SessionID   int64
	HasSession  bool
	HasUserID   bool
	ServerEvent bool
}

// ImportedFile records an export file that has been loaded into the store.
type ImportedFile struct {
	ImportedAt time.Time
	Filename   string
	Checksum   string
}

// ImportSummary aggregates the outcome of a conversion run.
type ImportSummary struct {
	Files      int
	Unchanged  int
	Failed     int
	Parsed     int
	Inserted   int
	Duplicates int
	Skipped    int
}

// Add merges another summary into s.
func (s *ImportSummary) Add(o ImportSummary) {
	s.Files += o.Files
	s.Unchanged += o.Unchanged
	s.Failed += o.Failed
	s.Parsed += o.Parsed
	s.Inserted += o.Inserted
	s.Duplicates += o.Duplicates
	s.Skipped += o.Skipped
}

// HourlyEventCount is the number of stored events within one hour bucket.
type HourlyEventCount struct {
	Hour  time.Time
	Count int
}

// EventTypeCount is the number of stored events for one event type.
type EventTypeCount struct {
	EventType string
	Count     int
}

// StoreStats summarises the contents of the event store.
type StoreStats struct {
	FirstEvent  time.Time
	LastEvent   time.Time
	TotalEvents int
	UniqueUsers int
	EventTypes  int
	Files       int
}
