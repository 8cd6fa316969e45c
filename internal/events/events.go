// Package events reads exported Amplitude event files.
//
// An export holds one file per project hour, each containing one JSON object
// per line. Files may still be gzip compressed.
package events

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/valyala/fastjson"

	"github.com/j-veylop/amplitude-export/internal/logger"
	"github.com/j-veylop/amplitude-export/internal/models"
)

// maxLineSize bounds a single event line.
const maxLineSize = 16 << 20

// eventTimeParseLayout accepts any fractional second precision.
const eventTimeParseLayout = "2006-01-02 15:04:05"

// ErrInvalidEvent is returned for lines that cannot be turned into an event.
var ErrInvalidEvent = errors.New("invalid event")

// File is the parsed content of one export file.
type File struct {
	Path     string
	Name     string
	Checksum string
	Events   []models.Event
	Lines    int
	Skipped  int
}

// IsEventFile reports whether name looks like an export data file.
func IsEventFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".json") || strings.HasSuffix(lower, ".gz")
}

// Find returns every event file below dir in lexical order.
func Find(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsEventFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// Checksum returns the xxhash64 digest of the file at path, hex encoded.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// ReadFile parses every line of the file at path.
// Lines that fail to parse are logged and counted in Skipped.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := xxhash.New()
	raw := io.TeeReader(f, h)

	var r io.Reader = raw
	if strings.EqualFold(filepath.Ext(path), ".gz") {
		zr, err := gzip.NewReader(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to read gzip header of %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	out := &File{Path: path, Name: filepath.Base(path)}
	if err := out.parse(r); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	// Hash the whole file even if the reader stopped early.
	if _, err := io.Copy(io.Discard, raw); err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	out.Checksum = fmt.Sprintf("%016x", h.Sum64())

	return out, nil
}

func (f *File) parse(r io.Reader) error {
	var p fastjson.Parser

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		f.Lines++

		ev, err := ParseLine(&p, line)
		if err != nil {
			f.Skipped++
			logger.Warn("skipping event line", "file", f.Name, "line", f.Lines, "error", err)
			continue
		}
		ev.SourceFile = f.Name
		f.Events = append(f.Events, ev)
	}
	return sc.Err()
}

// ParseLine converts a single exported JSON object into an event.
// uuid, event_type and event_time are required.
func ParseLine(p *fastjson.Parser, line string) (models.Event, error) {
	v, err := p.Parse(line)
	if err != nil {
		return models.Event{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if v.Type() != fastjson.TypeObject {
		return models.Event{}, fmt.Errorf("%w: expected an object, got %s", ErrInvalidEvent, v.Type())
	}

	ev := models.Event{RawJSON: line}

	if ev.UUID = stringField(v, "uuid"); ev.UUID == "" {
		return models.Event{}, fmt.Errorf("%w: missing uuid", ErrInvalidEvent)
	}
	if ev.EventType = stringField(v, "event_type"); ev.EventType == "" {
		return models.Event{}, fmt.Errorf("%w: missing event_type", ErrInvalidEvent)
	}

	rawTime := stringField(v, "event_time")
	if rawTime == "" {
		return models.Event{}, fmt.Errorf("%w: missing event_time", ErrInvalidEvent)
	}
	ev.EventTime, err = time.ParseInLocation(eventTimeParseLayout, rawTime, time.UTC)
	if err != nil {
		return models.Event{}, fmt.Errorf("%w: event_time: %w", ErrInvalidEvent, err)
	}

	if uid := v.Get("user_id"); uid != nil && uid.Type() == fastjson.TypeString {
		ev.UserID = string(uid.GetStringBytes())
		ev.HasUserID = true
	}

	// Amplitude uses -1 for events outside a session.
	if sid := v.Get("session_id"); sid != nil && sid.Type() == fastjson.TypeNumber {
		if n, err := sid.Int64(); err == nil && n >= 0 {
			ev.SessionID = n
			ev.HasSession = true
		}
	}

	if path := v.Get("data", "path"); path != nil && path.Type() == fastjson.TypeString {
		ev.ServerEvent = string(path.GetStringBytes()) != "/"
	}

	ev.ScreenName = stringField(v, "event_properties", "screen_name")

	return ev, nil
}

func stringField(v *fastjson.Value, keys ...string) string {
	f := v.Get(keys...)
	if f == nil || f.Type() != fastjson.TypeString {
		return ""
	}
	return string(f.GetStringBytes())
}
