// Package storage owns the package roots on disk. A backend enumerates,
// opens, creates and deletes artifact files; the caching variant layers a
// per-root listing cache on top.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/harryzcy/pypiserver/internal/pkgfile"
)

var (
	// ErrNotFound reports a missing or invisible file.
	ErrNotFound = errors.New("file not found")
	// ErrConflict reports an upload whose basename already exists under
	// any configured root.
	ErrConflict = errors.New("file already exists")
)

// Artifact is one visible, parseable package file under a root.
type Artifact struct {
	Filename string
	Root     string
	Size     int64
	ModTime  time.Time

	// Derived from the filename.
	Project string
	Version string
	Kind    pkgfile.Kind
}

// Backend is the capability set shared by the simple and cached storage
// variants.
type Backend interface {
	// Roots returns the configured root directories in priority order.
	Roots() []string

	// ListArtifacts enumerates visible package files one level deep
	// under root. The result is unordered; callers sort.
	ListArtifacts(ctx context.Context, root string) ([]Artifact, error)

	// Open opens a visible file for reading. Returns ErrNotFound for
	// missing or invisible files.
	Open(ctx context.Context, root, filename string) (io.ReadSeekCloser, os.FileInfo, error)

	// Create atomically writes a fresh file into root. Returns
	// ErrConflict if the basename exists under any configured root.
	Create(ctx context.Context, root, filename string, content io.Reader) error

	// Remove unlinks a file. Returns ErrNotFound if absent.
	Remove(ctx context.Context, root, filename string) error

	// Digest returns the hex content digest of an artifact, memoized
	// per (path, mtime, size).
	Digest(ctx context.Context, a *Artifact) (string, error)

	// DigestAlgo names the digest algorithm fixed at startup.
	DigestAlgo() string

	// InvalidateCache drops any cached listing for root. A no-op on
	// the simple variant.
	InvalidateCache(root string)
}

// NewBackend creates a storage variant by name: "simple-dir" for the
// plain backend, "cached-dir" for the caching one.
func NewBackend(arg string, roots []string, hashAlgo string) (Backend, error) {
	switch arg {
	case "simple-dir":
		return NewLocalBackend(roots, hashAlgo)
	case "", "cached-dir":
		return NewCachingBackend(roots, hashAlgo)
	default:
		return nil, fmt.Errorf("unknown backend: %s", arg)
	}
}

// Visible reports whether a filename may be served or listed. Dotfiles,
// names with path separators and paths containing a dot component are
// all invisible.
func Visible(filename string) bool {
	if filename == "" || strings.ContainsAny(filename, "/\\") {
		return false
	}
	return !strings.HasPrefix(filename, ".")
}
