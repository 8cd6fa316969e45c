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

// migrate brings stores written by older releases up to the current layout.
func (db *DB) migrate() error {
	if err := db.addImportedFilesChecksum(); err != nil {
		return err
	}
	return db.FixLegacyTimeFormats()
}

// addImportedFilesChecksum adds the checksum column to imported_files
// tables created before files were fingerprinted.
func (db *DB) addImportedFilesChecksum() error {
	ok, err := db.hasColumn("imported_files", "checksum")
	if err != nil || ok {
		return err
	}
	if _, err := db.ExecContext(context.Background(), "ALTER TABLE imported_files ADD COLUMN checksum TEXT"); err != nil {
		return fmt.Errorf("failed to add imported_files.checksum: %w", err)
	}
	return nil
}

func (db *DB) hasColumn(table, column string) (bool, error) {
	rows, err := db.QueryContext(context.Background(), "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, fmt.Errorf("failed to inspect %s: %w", table, err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// legacyTimeColumns are the amplitude_events columns older releases wrote as
// RFC 3339, with the layout each one is stored in now.
var legacyTimeColumns = []struct {
	name   string
	layout string
}{
	{name: "event_time", layout: models.EventTimeLayout},
	{name: "created_at", layout: sqlTimeLayout},
}

// FixLegacyTimeFormats rewrites RFC 3339 event and import timestamps
// ("2025-01-15T10:20:30.123+00:00", any fraction length or none) into the
// space separated UTC form SQLite's date functions and our queries expect.
// Values that do not parse are left as they are.
func (db *DB) FixLegacyTimeFormats() (err error) {
	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.Error("failed to roll back time format migration", "error", rbErr)
			}
		}
	}()

	for _, col := range legacyTimeColumns {
		if err = fixLegacyColumn(ctx, tx, col.name, col.layout); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit time format migration: %w", err)
	}
	return nil
}

func fixLegacyColumn(ctx context.Context, tx *sql.Tx, column, layout string) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(
		"SELECT uuid, CAST(%[1]s AS TEXT) FROM amplitude_events WHERE CAST(%[1]s AS TEXT) LIKE '____-__-__T%%'",
		column))
	if err != nil {
		return fmt.Errorf("failed to scan legacy %s values: %w", column, err)
	}

	fixed := make(map[string]string)
	for rows.Next() {
		var uuid, value string
		if err := rows.Scan(&uuid, &value); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan legacy %s values: %w", column, err)
		}
		t, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			logger.Warn("leaving unparseable timestamp", "uuid", uuid, "column", column, "value", value)
			continue
		}
		fixed[uuid] = t.UTC().Format(layout)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("failed to scan legacy %s values: %w", column, err)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to scan legacy %s values: %w", column, err)
	}
	if len(fixed) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("UPDATE amplitude_events SET %s = ? WHERE uuid = ?", column))
	if err != nil {
		return fmt.Errorf("failed to prepare %s update: %w", column, err)
	}
	defer func() { _ = stmt.Close() }()

	for uuid, value := range fixed {
		if _, err := stmt.ExecContext(ctx, value, uuid); err != nil {
			return fmt.Errorf("failed to update %s of %s: %w", column, uuid, err)
		}
	}

	logger.Info("migrated legacy timestamps", "column", column, "rows", len(fixed))
	return nil
}
