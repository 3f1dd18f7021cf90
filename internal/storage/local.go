package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/harryzcy/pypiserver/internal/pkgfile"
)

// LocalBackend implements Backend over plain directories with no listing
// cache. Selected by the "simple-dir" backend option.
type LocalBackend struct {
	roots    []string
	digester *digester
}

// NewLocalBackend creates a backend over the given root directories.
// The first root wins for ambiguous writes.
func NewLocalBackend(roots []string, hashAlgo string) (*LocalBackend, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("at least one package root is required")
	}
	d, err := newDigester(hashAlgo)
	if err != nil {
		return nil, err
	}
	return &LocalBackend{roots: roots, digester: d}, nil
}

// Roots returns the configured root directories in priority order.
func (l *LocalBackend) Roots() []string {
	return l.roots
}

// ListArtifacts enumerates visible package files one level deep under
// root. Files whose names do not parse as package artifacts are skipped.
func (l *LocalBackend) ListArtifacts(ctx context.Context, root string) ([]Artifact, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", root, err)
	}

	var artifacts []Artifact
	for _, entry := range entries {
		if entry.IsDir() || !Visible(entry.Name()) {
			continue
		}
		parsed, err := pkgfile.Parse(entry.Name())
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, Artifact{
			Filename: entry.Name(),
			Root:     root,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Project:  parsed.Project,
			Version:  parsed.Version,
			Kind:     parsed.Kind,
		})
	}
	return artifacts, nil
}

// Open opens a visible file for reading.
func (l *LocalBackend) Open(ctx context.Context, root, filename string) (io.ReadSeekCloser, os.FileInfo, error) {
	if !Visible(filename) {
		return nil, nil, ErrNotFound
	}
	file, err := os.Open(filepath.Join(root, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to stat %s: %w", filename, err)
	}
	if info.IsDir() {
		file.Close()
		return nil, nil, ErrNotFound
	}
	return file, info, nil
}

// Exists reports whether the basename exists under any configured root.
func (l *LocalBackend) Exists(filename string) bool {
	for _, root := range l.roots {
		if _, err := os.Stat(filepath.Join(root, filename)); err == nil {
			return true
		}
	}
	return false
}

// Create streams content to a fresh file. The write goes to a dot-prefixed
// temp file first, which the catalog never sees, and is renamed into place
// on success.
func (l *LocalBackend) Create(ctx context.Context, root, filename string, content io.Reader) error {
	if l.Exists(filename) {
		return ErrConflict
	}

	tmp, err := os.CreateTemp(root, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(root, filename)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize %s: %w", filename, err)
	}
	return nil
}

// Remove unlinks a file.
func (l *LocalBackend) Remove(ctx context.Context, root, filename string) error {
	if !Visible(filename) {
		return ErrNotFound
	}
	if err := os.Remove(filepath.Join(root, filename)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s: %w", filename, err)
	}
	return nil
}

// Digest returns the artifact's hex content digest.
func (l *LocalBackend) Digest(ctx context.Context, a *Artifact) (string, error) {
	return l.digester.digest(filepath.Join(a.Root, a.Filename), a.ModTime, a.Size)
}

// DigestAlgo names the digest algorithm fixed at startup.
func (l *LocalBackend) DigestAlgo() string {
	return l.digester.algo
}

// InvalidateCache is a no-op; the simple backend holds no derived state.
func (l *LocalBackend) InvalidateCache(root string) {}
