package storage

import (
	"context"
	"io"
	"sync"
)

// CachingBackend wraps a LocalBackend with a per-root listing cache.
// Selected by the "cached-dir" backend option. The cache never expires by
// time; mutations invalidate the affected root before returning.
type CachingBackend struct {
	*LocalBackend

	mu       sync.RWMutex
	listings map[string][]Artifact
}

// NewCachingBackend creates a caching backend over the given roots.
func NewCachingBackend(roots []string, hashAlgo string) (*CachingBackend, error) {
	local, err := NewLocalBackend(roots, hashAlgo)
	if err != nil {
		return nil, err
	}
	return &CachingBackend{
		LocalBackend: local,
		listings:     make(map[string][]Artifact),
	}, nil
}

// ListArtifacts returns the cached listing for root, populating it on
// first miss. Two concurrent misses may both enumerate; the last writer
// wins.
func (c *CachingBackend) ListArtifacts(ctx context.Context, root string) ([]Artifact, error) {
	c.mu.RLock()
	listing, ok := c.listings[root]
	c.mu.RUnlock()
	if ok {
		return listing, nil
	}

	listing, err := c.LocalBackend.ListArtifacts(ctx, root)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.listings[root] = listing
	c.mu.Unlock()
	return listing, nil
}

// Create writes the file and invalidates the root's cached listing
// before reporting success.
func (c *CachingBackend) Create(ctx context.Context, root, filename string, content io.Reader) error {
	if err := c.LocalBackend.Create(ctx, root, filename, content); err != nil {
		return err
	}
	c.InvalidateCache(root)
	return nil
}

// Remove unlinks the file and invalidates the root's cached listing
// before reporting success.
func (c *CachingBackend) Remove(ctx context.Context, root, filename string) error {
	if err := c.LocalBackend.Remove(ctx, root, filename); err != nil {
		return err
	}
	c.InvalidateCache(root)
	return nil
}

// InvalidateCache drops the cached listing for root.
func (c *CachingBackend) InvalidateCache(root string) {
	c.mu.Lock()
	delete(c.listings, root)
	c.mu.Unlock()
}

var (
	_ Backend = (*LocalBackend)(nil)
	_ Backend = (*CachingBackend)(nil)
)
