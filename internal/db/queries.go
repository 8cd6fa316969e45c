package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/j-veylop/amplitude-export/internal/logger"
	"github.com/j-veylop/amplitude-export/internal/models"
)

// InsertEvents stores events and records file as imported in one transaction.
// Events whose uuid is already stored are left untouched and counted as duplicates.
func (db *DB) InsertEvents(ctx context.Context, file models.ImportedFile, events []models.Event) (inserted, duplicates int, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.Error("failed to roll back import", "file", file.Filename, "error", rbErr)
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO amplitude_events (
			uuid, user_id, event_screen, server_event, event_time,
			event_name, session_id, raw_json, source_file, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	createdAt := time.Now().UTC().Format(sqlTimeLayout)
	for i := range events {
		ev := &events[i]

		var userID sql.NullString
		if ev.HasUserID {
			userID = sql.NullString{String: ev.UserID, Valid: true}
		}
		var sessionID sql.NullInt64
		if ev.HasSession {
			sessionID = sql.NullInt64{Int64: ev.SessionID, Valid: true}
		}

		res, execErr := stmt.ExecContext(ctx,
			ev.UUID,
			userID,
			nullString(ev.ScreenName),
			boolToInt(ev.ServerEvent),
			ev.EventTime.UTC().Format(models.EventTimeLayout),
			ev.EventType,
			sessionID,
			ev.RawJSON,
			ev.SourceFile,
			createdAt,
		)
		if execErr != nil {
			err = fmt.Errorf("failed to insert event %s: %w", ev.UUID, execErr)
			return 0, 0, err
		}

		n, _ := res.RowsAffected()
		if n > 0 {
			inserted++
		} else {
			duplicates++
		}
	}

	if err = markFileImported(ctx, tx, file); err != nil {
		return 0, 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return inserted, duplicates, nil
}

func markFileImported(ctx context.Context, tx *sql.Tx, file models.ImportedFile) error {
	importedAt := file.ImportedAt
	if importedAt.IsZero() {
		importedAt = time.Now()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO imported_files (filename, checksum, imported_at)
		VALUES (?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			checksum = excluded.checksum,
			imported_at = excluded.imported_at
	`, file.Filename, nullString(file.Checksum), importedAt.UTC().Format(sqlTimeLayout))
	if err != nil {
		return fmt.Errorf("failed to mark %s as imported: %w", file.Filename, err)
	}
	return nil
}

// IsFileImported reports whether filename was already imported with the same checksum.
// Rows recorded without a checksum match any checksum.
func (db *DB) IsFileImported(ctx context.Context, filename, checksum string) (bool, error) {
	var stored sql.NullString
	err := db.QueryRowContext(ctx,
		"SELECT checksum FROM imported_files WHERE filename = ?", filename,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", filename, err)
	}
	return !stored.Valid || stored.String == checksum, nil
}

// GetImportedFiles returns every imported file, most recent first.
func (db *DB) GetImportedFiles(ctx context.Context) ([]models.ImportedFile, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT filename, COALESCE(checksum, ''), COALESCE(imported_at, '')
		FROM imported_files
		ORDER BY imported_at DESC, filename
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query imported files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []models.ImportedFile
	for rows.Next() {
		var f models.ImportedFile
		var importedAt string
		if err := rows.Scan(&f.Filename, &f.Checksum, &importedAt); err != nil {
			return nil, fmt.Errorf("failed to scan imported file: %w", err)
		}
		f.ImportedAt = parseSQLTime(importedAt)
		files = append(files, f)
	}
	return files, rows.Err()
}

// GetHourlyEventCounts returns the number of events per hour in chronological order.
// A zero range returns every hour in the store.
func (db *DB) GetHourlyEventCounts(ctx context.Context, r models.TimeRange) ([]models.HourlyEventCount, error) {
	query := `SELECT ` + sqlHourBucket + ` AS hour, COUNT(*) FROM amplitude_events`
	var args []any
	if !r.Start.IsZero() && !r.End.IsZero() {
		query += ` WHERE event_time >= ? AND event_time < ?`
		args = append(args,
			r.Start.UTC().Format(models.EventTimeLayout),
			r.End.UTC().Add(time.Hour).Format(models.EventTimeLayout),
		)
	}
	query += ` GROUP BY hour ORDER BY hour`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly event counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []models.HourlyEventCount
	for rows.Next() {
		var hour sql.NullString
		var c models.HourlyEventCount
		if err := rows.Scan(&hour, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan hourly event count: %w", err)
		}
		if !hour.Valid {
			continue
		}
		c.Hour = parseSQLTime(hour.String)
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// GetEventTypeCounts returns the most frequent event types, at most limit of them.
func (db *DB) GetEventTypeCounts(ctx context.Context, limit int) ([]models.EventTypeCount, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.QueryContext(ctx, `
		SELECT event_name, COUNT(*) AS n
		FROM amplitude_events
		GROUP BY event_name
		ORDER BY n DESC, event_name
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query event type counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []models.EventTypeCount
	for rows.Next() {
		var c models.EventTypeCount
		if err := rows.Scan(&c.EventType, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan event type count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// GetStoreStats summarises the store contents.
func (db *DB) GetStoreStats(ctx context.Context) (*models.StoreStats, error) {
	var (
		stats       models.StoreStats
		first, last sql.NullString
	)

	err := db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT user_id),
			COUNT(DISTINCT event_name),
			MIN(event_time),
			MAX(event_time)
		FROM amplitude_events
	`).Scan(&stats.TotalEvents, &stats.UniqueUsers, &stats.EventTypes, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to query store stats: %w", err)
	}

	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM imported_files").Scan(&stats.Files); err != nil {
		return nil, fmt.Errorf("failed to count imported files: %w", err)
	}

	if first.Valid {
		stats.FirstEvent = parseSQLTime(first.String)
	}
	if last.Valid {
		stats.LastEvent = parseSQLTime(last.String)
	}
	return &stats, nil
}

// parseSQLTime parses a stored timestamp; fractional seconds are optional.
func parseSQLTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(sqlTimeLayout, s, time.UTC)
	if err != nil {
		logger.Debug("unparseable timestamp", "value", s, "error", err)
		return time.Time{}
	}
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
