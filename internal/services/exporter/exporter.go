// Package exporter saves Amplitude export archives to disk.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/j-veylop/amplitude-export/internal/amplitude"
	"github.com/j-veylop/amplitude-export/internal/config"
	"github.com/j-veylop/amplitude-export/internal/logger"
	"github.com/j-veylop/amplitude-export/internal/models"
)

// Exporter downloads an export and stores it at a fixed path.
type Exporter struct {
	client   *amplitude.Client
	progress func(written int64)
}

// New creates an exporter backed by client.
func New(client *amplitude.Client) *Exporter {
	return &Exporter{client: client}
}

// OnProgress registers fn to be called with the running byte count as the
// body is written. fn runs on the downloading goroutine.
func (e *Exporter) OnProgress(fn func(written int64)) {
	e.progress = fn
}

// countingWriter reports every write to a progress callback.
type countingWriter struct {
	w       io.Writer
	n       int64
	onWrite func(int64)
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.onWrite(c.n)
	return n, err
}

// Run downloads r into outputPath, replacing any existing file.
//
// The body is streamed into a temporary file next to outputPath and renamed
// into place once the response has been read completely, so a failed
// transfer leaves a previous archive untouched. A non-2xx response is still
// saved verbatim and reported as *amplitude.StatusError.
func (e *Exporter) Run(ctx context.Context, r models.TimeRange, outputPath string) (*models.ExportResult, error) {
	if err := e.client.Check(r); err != nil {
		return nil, err
	}

	dir := filepath.Dir(outputPath)
	if err := config.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(outputPath)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	discard := func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			logger.Error("failed to remove temp file", "path", tmpPath, "error", err)
		}
	}

	var w io.Writer = tmp
	if e.progress != nil {
		w = &countingWriter{w: tmp, onWrite: e.progress}
	}

	result, exportErr := e.client.Export(ctx, r, w)
	if closeErr := tmp.Close(); closeErr != nil && exportErr == nil {
		exportErr = fmt.Errorf("failed to flush %s: %w", outputPath, closeErr)
	}
	var statusErr *amplitude.StatusError
	if exportErr != nil && !errors.As(exportErr, &statusErr) {
		discard()
		return nil, exportErr
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		logger.Warn("failed to set file mode", "path", tmpPath, "error", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		discard()
		return nil, fmt.Errorf("failed to rename temp file: %w", err)
	}
	result.Path = outputPath

	logger.Info("export saved",
		"path", outputPath,
		"status", result.StatusCode,
		"size", humanize.Bytes(uint64(result.Bytes)),
		"duration", result.Duration.Round(time.Millisecond),
	)

	return result, exportErr
}
