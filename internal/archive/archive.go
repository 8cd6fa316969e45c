// Package archive unpacks export archives.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"github.com/j-veylop/amplitude-export/internal/config"
	"github.com/j-veylop/amplitude-export/internal/logger"
	"github.com/j-veylop/amplitude-export/internal/models"
)

// ErrUnsafePath is returned for archive entries that would land outside the destination.
var ErrUnsafePath = errors.New("archive entry escapes destination directory")

// ErrUnsafeDir is returned when the extraction directory cannot be replaced safely.
var ErrUnsafeDir = errors.New("refusing to replace directory")

// Unpack replaces destDir with the contents of zipPath and then decompresses
// every .gz file below it in place.
//
// The archive is extracted into a temporary sibling directory first, so a
// broken archive leaves an earlier extraction untouched, and files from an
// earlier export never mix with the new one.
func Unpack(zipPath, destDir string) (*models.ExtractResult, error) {
	dest, err := checkReplaceable(zipPath, destDir)
	if err != nil {
		return nil, err
	}

	parent := filepath.Dir(dest)
	if err := config.EnsureDir(parent); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", parent, err)
	}
	staging, err := os.MkdirTemp(parent, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			logger.Warn("failed to remove staging directory", "path", staging, "error", err)
		}
	}()

	result, err := Extract(zipPath, staging)
	if err != nil {
		return nil, err
	}

	if err := os.RemoveAll(dest); err != nil {
		return nil, fmt.Errorf("failed to clear %s: %w", destDir, err)
	}
	if err := os.Rename(staging, dest); err != nil {
		return nil, fmt.Errorf("failed to move extraction into %s: %w", destDir, err)
	}

	result.Dir = destDir
	for i, f := range result.Files {
		if rel, err := filepath.Rel(staging, f); err == nil {
			result.Files[i] = filepath.Join(dest, rel)
		}
	}

	decompressed, err := GunzipTree(dest)
	result.Decompressed = decompressed
	if err != nil {
		return result, err
	}

	logger.Info("export unpacked",
		"dir", destDir,
		"files", len(result.Files),
		"decompressed", len(decompressed),
	)
	return result, nil
}

// checkReplaceable resolves destDir and refuses directories that Unpack must
// never wipe: a filesystem root, or any directory holding the working
// directory, the home directory or the archive itself.
func checkReplaceable(zipPath, destDir string) (string, error) {
	dest, err := filepath.Abs(destDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", destDir, err)
	}
	if filepath.Dir(dest) == dest {
		return "", fmt.Errorf("%w: %s", ErrUnsafeDir, destDir)
	}

	for _, lookup := range []func() (string, error){os.Getwd, os.UserHomeDir} {
		if dir, err := lookup(); err == nil && within(dest, dir) {
			return "", fmt.Errorf("%w: %s contains %s", ErrUnsafeDir, destDir, dir)
		}
	}

	archive, err := filepath.Abs(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", zipPath, err)
	}
	if within(dest, archive) {
		return "", fmt.Errorf("%w: %s contains %s", ErrUnsafeDir, destDir, zipPath)
	}
	return dest, nil
}

// within reports whether path is dir or lies below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Extract writes every entry of the zip archive at zipPath below destDir.
// Entries are rejected, before anything is written, when their path would
// resolve outside destDir.
func Extract(zipPath, destDir string) (*models.ExtractResult, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", zipPath, err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			logger.Error("failed to close archive", "path", zipPath, "error", err)
		}
	}()

	root, err := filepath.Abs(destDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", destDir, err)
	}

	targets := make([]string, len(r.File))
	for i, f := range r.File {
		target, err := safeJoin(root, f.Name)
		if err != nil {
			return nil, err
		}
		targets[i] = target
	}

	if err := config.EnsureDir(root); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	result := &models.ExtractResult{Dir: destDir}
	for i, f := range r.File {
		if f.FileInfo().IsDir() {
			if err := config.EnsureDir(targets[i]); err != nil {
				return result, fmt.Errorf("failed to create %s: %w", f.Name, err)
			}
			continue
		}

		n, err := extractFile(f, targets[i])
		if err != nil {
			return result, err
		}
		result.Files = append(result.Files, targets[i])
		result.Bytes += n
	}

	logger.Debug("archive extracted", "path", zipPath, "dir", destDir, "files", len(result.Files))
	return result, nil
}

func safeJoin(root, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func extractFile(f *zip.File, target string) (int64, error) {
	if err := config.EnsureDir(filepath.Dir(target)); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
	}

	src, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", target, err)
	}

	n, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return n, nil
}

// GunzipTree decompresses every .gz file below dir, replacing each with its
// decompressed content under the same name minus the suffix. A failing file
// does not stop the others; all failures are returned together.
func GunzipTree(dir string) ([]string, error) {
	var sources []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".gz") {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	sort.Strings(sources)

	var (
		done []string
		errs *multierror.Error
	)
	for _, src := range sources {
		dst, err := gunzipFile(src)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		done = append(done, dst)
	}

	return done, errs.ErrorOrNil()
}

func gunzipFile(src string) (string, error) {
	dst := src[:len(src)-len(filepath.Ext(src))]

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return "", fmt.Errorf("failed to read gzip header of %s: %w", src, err)
	}
	defer zr.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	_, err = io.Copy(out, zr)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to decompress %s: %w", src, err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("failed to remove %s: %w", src, err)
	}
	return dst, nil
}
