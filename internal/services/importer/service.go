// Package importer loads exported event files into the event store.
package importer

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/j-veylop/amplitude-export/internal/events"
	"github.com/j-veylop/amplitude-export/internal/logger"
	"github.com/j-veylop/amplitude-export/internal/models"
)

// Store is the part of the event store used by the importer.
type Store interface {
	IsFileImported(ctx context.Context, filename, checksum string) (bool, error)
	InsertEvents(ctx context.Context, file models.ImportedFile, events []models.Event) (int, int, error)
}

// Config holds configuration for the import service.
type Config struct {
	MaxConcurrent int
	// Force re-reads files that were already imported unchanged.
	Force bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 4}
}

// Service parses event files concurrently and writes them to a Store one file at a time.
type Service struct {
	store  Store
	config Config
}

// New creates a new import service.
func New(store Store, config Config) *Service {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	return &Service{store: store, config: config}
}

// parsed is the outcome of reading one file.
type parsed struct {
	file      *events.File
	path      string
	err       error
	unchanged bool
}

// ImportDir imports every event file below dir.
func (s *Service) ImportDir(ctx context.Context, dir string) (*models.ImportSummary, error) {
	paths, err := events.Find(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		logger.Warn("no event files found", "dir", dir)
	}
	return s.ImportFiles(ctx, paths)
}

// ImportFiles imports the given files. A file that cannot be read or stored is
// reported in the returned error without stopping the others.
func (s *Service) ImportFiles(ctx context.Context, paths []string) (*models.ImportSummary, error) {
	start := time.Now()
	results := make(chan parsed)
	sem := make(chan struct{}, s.config.MaxConcurrent)

	var wg sync.WaitGroup
	go func() {
		defer close(results)
		for _, path := range paths {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				wg.Wait()
				return
			}
			wg.Add(1)
			go func(path string) {
				defer wg.Done()
				defer func() { <-sem }()
				res := s.read(ctx, path)
				select {
				case results <- res:
				case <-ctx.Done():
				}
			}(path)
		}
		wg.Wait()
	}()

	summary := &models.ImportSummary{}
	var errs *multierror.Error
	for res := range results {
		switch {
		case res.err != nil:
			summary.Failed++
			errs = multierror.Append(errs, res.err)
		case res.unchanged:
			summary.Unchanged++
			logger.Debug("skipping unchanged file", "path", res.path)
		default:
			fileSummary, err := s.save(ctx, res.file)
			if err != nil {
				summary.Failed++
				errs = multierror.Append(errs, err)
				continue
			}
			summary.Add(fileSummary)
		}
	}

	if err := ctx.Err(); err != nil {
		errs = multierror.Append(errs, err)
	}

	logger.Info("import finished",
		"files", summary.Files,
		"unchanged", summary.Unchanged,
		"failed", summary.Failed,
		"inserted", summary.Inserted,
		"duplicates", summary.Duplicates,
		"skipped_lines", summary.Skipped,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return summary, errs.ErrorOrNil()
}

func (s *Service) read(ctx context.Context, path string) parsed {
	if !s.config.Force {
		sum, err := events.Checksum(path)
		if err != nil {
			return parsed{path: path, err: err}
		}
		f := &events.File{Path: path, Name: filepath.Base(path), Checksum: sum}
		done, err := s.store.IsFileImported(ctx, f.Name, sum)
		if err != nil {
			return parsed{path: path, err: err}
		}
		if done {
			return parsed{path: path, file: f, unchanged: true}
		}
	}

	f, err := events.ReadFile(path)
	if err != nil {
		return parsed{path: path, err: err}
	}
	return parsed{path: path, file: f}
}

func (s *Service) save(ctx context.Context, f *events.File) (models.ImportSummary, error) {
	inserted, dups, err := s.store.InsertEvents(ctx, models.ImportedFile{
		Filename:   f.Name,
		Checksum:   f.Checksum,
		ImportedAt: time.Now(),
	}, f.Events)
	if err != nil {
		return models.ImportSummary{}, fmt.Errorf("failed to store %s: %w", f.Path, err)
	}

	logger.Debug("imported file", "file", f.Name, "events", len(f.Events), "inserted", inserted, "duplicates", dups)

	return models.ImportSummary{
		Files:      1,
		Parsed:     len(f.Events),
		Inserted:   inserted,
		Duplicates: dups,
		Skipped:    f.Skipped,
	}, nil
}
