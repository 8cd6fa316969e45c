package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/j-veylop/amplitude-export/internal/db"
	"github.com/j-veylop/amplitude-export/internal/logger"
	"github.com/j-veylop/amplitude-export/internal/models"
	"github.com/j-veylop/amplitude-export/internal/services/importer"
	"github.com/j-veylop/amplitude-export/internal/ui/components"
	"github.com/j-veylop/amplitude-export/internal/ui/styles"
	"github.com/j-veylop/amplitude-export/internal/version"
)

// defaultExtractDir is where extract puts the default archive.
const defaultExtractDir = "amplitude-export"

var dbFlag = &cli.StringFlag{
	Name:  "db",
	Usage: "SQLite database file (default: amplitude_data.sqlite).",
}

// openStore opens the event store named by --db or the configuration.
func (a *app) openStore(cmd *cli.Command) (*db.DB, error) {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	path := cmd.String("db")
	if path == "" {
		path = cfg.Database
	}

	store, err := db.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	logger.Debug("opened event store", "path", store.Path())
	return store, nil
}

func closeStore(store *db.DB) {
	if err := store.Close(); err != nil {
		logger.Warn("failed to close event store", "path", store.Path(), "error", err)
	}
}

func (a *app) convertCommand() *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Load extracted event files into a SQLite database",
		UsageText: version.Name + " convert [--input DIR] [--db FILE] [--force]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Value:   defaultExtractDir,
				Usage:   "Directory holding .json or .json.gz event files, searched recursively.",
			},
			dbFlag,
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Re-read files that were already imported unchanged.",
			},
			&cli.IntFlag{
				Name:  "workers",
				Value: importer.DefaultConfig().MaxConcurrent,
				Usage: "Number of files parsed in parallel.",
			},
			&cli.BoolFlag{
				Name:  "vacuum",
				Usage: "Compact the database after importing.",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore(store)

			svc := importer.New(store, importer.Config{
				MaxConcurrent: cmd.Int("workers"),
				Force:         cmd.Bool("force"),
			})

			summary, importErr := svc.ImportDir(ctx, cmd.String("input"))
			if summary != nil {
				a.println(renderImport(summary, store.Path()))
			}
			if importErr != nil {
				return importErr
			}

			if cmd.Bool("vacuum") {
				if err := store.Vacuum(); err != nil {
					return fmt.Errorf("failed to vacuum %s: %w", store.Path(), err)
				}
			}
			return nil
		},
	}
}

func renderImport(s *models.ImportSummary, path string) string {
	rows := []components.Row{
		{Label: "Database", Value: path},
		{Label: "Files imported", Value: humanize.Comma(int64(s.Files))},
		{Label: "Files unchanged", Value: humanize.Comma(int64(s.Unchanged))},
		{Label: "Events parsed", Value: humanize.Comma(int64(s.Parsed))},
		{Label: "Inserted", Value: humanize.Comma(int64(s.Inserted))},
		{Label: "Duplicates", Value: humanize.Comma(int64(s.Duplicates))},
	}
	if s.Skipped > 0 {
		warn := styles.WarningTextStyle
		rows = append(rows, components.Row{Label: "Invalid lines", Value: humanize.Comma(int64(s.Skipped)), Style: &warn})
	}
	if s.Failed > 0 {
		bad := styles.ErrorTextStyle
		rows = append(rows, components.Row{Label: "Failed files", Value: humanize.Comma(int64(s.Failed)), Style: &bad})
	}
	return components.RenderSummary("Convert", rows)
}

func (a *app) statsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Summarise the events stored in a SQLite database",
		UsageText: version.Name + " stats [--db FILE] [--top N] [--start ... --end ...]",
		Flags: []cli.Flag{
			dbFlag,
			&cli.IntFlag{
				Name:  "top",
				Value: 10,
				Usage: "Number of event types to list.",
			},
			&cli.IntFlag{
				Name:  "width",
				Value: 72,
				Usage: "Chart width in columns.",
			},
			&cli.BoolFlag{
				Name:  "files",
				Usage: "List the imported files.",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, err := a.openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore(store)

			// The chart covers everything unless a window was given explicitly.
			var r models.TimeRange
			if cmd.IsSet("start") || cmd.IsSet("end") {
				if r, err = timeRange(cmd); err != nil {
					return err
				}
			}

			stats, err := store.GetStoreStats(ctx)
			if err != nil {
				return err
			}
			hourly, err := store.GetHourlyEventCounts(ctx, r)
			if err != nil {
				return err
			}
			types, err := store.GetEventTypeCounts(ctx, cmd.Int("top"))
			if err != nil {
				return err
			}

			a.println(renderStats(stats, store.Path()))

			if cmd.Bool("files") {
				files, err := store.GetImportedFiles(ctx)
				if err != nil {
					return err
				}
				a.println(renderImportedFiles(files))
			}

			if stats.TotalEvents == 0 {
				return nil
			}

			width := cmd.Int("width")
			a.println(styles.SubTitleStyle.Render("Events per hour"))
			a.println(components.RenderHourlyChart(hourly, width, 10))
			a.println("")
			a.println(components.RenderHourlyHeatmap(components.HourOfDay(hourly)))
			a.println("")
			a.println(styles.SubTitleStyle.Render(fmt.Sprintf("Top %d event types", len(types))))
			a.println(components.RenderEventTypes(types, width))
			return nil
		},
	}
}

func renderImportedFiles(files []models.ImportedFile) string {
	if len(files) == 0 {
		return styles.HelpStyle.Render("No files imported yet.")
	}

	rows := make([]components.Row, 0, len(files))
	for _, f := range files {
		imported := "unknown"
		if !f.ImportedAt.IsZero() {
			imported = humanize.Time(f.ImportedAt)
		}
		rows = append(rows, components.Row{Label: f.Filename, Value: imported})
	}
	return components.RenderSummary("Imported files", rows)
}

func renderStats(s *models.StoreStats, path string) string {
	rows := []components.Row{
		{Label: "Database", Value: path},
		{Label: "Events", Value: humanize.Comma(int64(s.TotalEvents))},
		{Label: "Users", Value: humanize.Comma(int64(s.UniqueUsers))},
		{Label: "Event types", Value: humanize.Comma(int64(s.EventTypes))},
		{Label: "Files", Value: humanize.Comma(int64(s.Files))},
	}
	if !s.FirstEvent.IsZero() {
		rows = append(rows, components.Row{
			Label: "Span",
			Value: fmt.Sprintf("%s to %s (%s)",
				s.FirstEvent.Format("2006-01-02 15:04"),
				s.LastEvent.Format("2006-01-02 15:04"),
				humanize.RelTime(s.FirstEvent, s.LastEvent, "", "")),
		})
	}
	return components.RenderSummary("Event store", rows)
}
