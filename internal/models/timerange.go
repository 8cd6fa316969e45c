// Package models defines data structures and domain types.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// HourLayout is the hour-granularity timestamp format accepted by the export API.
const HourLayout = "20060102T15"

// dateLayout is the day-granularity shorthand accepted on the command line.
const dateLayout = "2006-01-02"

// Default export window boundaries.
const (
	DefaultStart = "20241201T00"
	DefaultEnd   = "20250526T23"
)

// ErrInvalidRange is returned when a time range cannot be used for an export.
var ErrInvalidRange = errors.New("invalid time range")

// TimeRange is an inclusive, hour-granularity export window in UTC.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// DefaultTimeRange returns the built-in export window.
func DefaultTimeRange() TimeRange {
	r, err := ParseTimeRange(DefaultStart, DefaultEnd)
	if err != nil {
		panic(err)
	}
	return r
}

// ParseTimeRange parses both boundaries and validates the result.
// Each boundary is either YYYYMMDDTHH or YYYY-MM-DD; a bare date expands
// to hour 00 for the start and hour 23 for the end.
func ParseTimeRange(start, end string) (TimeRange, error) {
	s, err := parseBoundary(start, 0)
	if err != nil {
		return TimeRange{}, fmt.Errorf("%w: start: %w", ErrInvalidRange, err)
	}
	e, err := parseBoundary(end, 23)
	if err != nil {
		return TimeRange{}, fmt.Errorf("%w: end: %w", ErrInvalidRange, err)
	}

	r := TimeRange{Start: s, End: e}
	if err := r.Validate(); err != nil {
		return TimeRange{}, err
	}
	return r, nil
}

func parseBoundary(value string, hour int) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}

	if t, err := time.Parse(HourLayout, value); err == nil {
		return t.UTC(), nil
	}

	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither %s nor %s", value, "YYYYMMDDTHH", "YYYY-MM-DD")
	}
	return t.Add(time.Duration(hour) * time.Hour).UTC(), nil
}

// Validate checks that the range is usable.
func (r TimeRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: both boundaries are required", ErrInvalidRange)
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, r.StartParam(), r.EndParam())
	}
	return nil
}

// StartParam returns the start boundary in wire format.
func (r TimeRange) StartParam() string {
	return r.Start.UTC().Format(HourLayout)
}

// EndParam returns the end boundary in wire format.
func (r TimeRange) EndParam() string {
	return r.End.UTC().Format(HourLayout)
}

// Hours returns the number of hourly buckets covered by the range.
func (r TimeRange) Hours() int {
	return int(r.End.Sub(r.Start)/time.Hour) + 1
}

// String returns the display form of the range.
func (r TimeRange) String() string {
	return r.StartParam() + " to " + r.EndParam()
}
