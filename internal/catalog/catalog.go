// Package catalog derives project views from the storage backend. A
// project exists iff at least one artifact maps to it; identity is the
// canonical (normalized) name.
package catalog

import (
	"context"
	"sort"

	"github.com/harryzcy/pypiserver/internal/pkgname"
	"github.com/harryzcy/pypiserver/internal/storage"
)

// Project groups the artifacts sharing one canonical name.
type Project struct {
	CanonicalName string
	Versions      []string
	Artifacts     []storage.Artifact
}

// Catalog answers listing queries over all configured roots. It holds no
// state of its own; the backend's cache is the only derived state.
type Catalog struct {
	backend storage.Backend
}

// New creates a catalog over a backend.
func New(backend storage.Backend) *Catalog {
	return &Catalog{backend: backend}
}

// Backend exposes the underlying storage backend.
func (c *Catalog) Backend() storage.Backend {
	return c.backend
}

// Artifacts returns every visible artifact across all roots, sorted by
// filename.
func (c *Catalog) Artifacts(ctx context.Context) ([]storage.Artifact, error) {
	var all []storage.Artifact
	for _, root := range c.backend.Roots() {
		listing, err := c.backend.ListArtifacts(ctx, root)
		if err != nil {
			return nil, err
		}
		all = append(all, listing...)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Filename < all[j].Filename
	})
	return all, nil
}

// Projects returns every project, sorted by canonical name.
func (c *Catalog) Projects(ctx context.Context) ([]Project, error) {
	artifacts, err := c.Artifacts(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*Project)
	for _, a := range artifacts {
		canonical := pkgname.Normalize(a.Project)
		p, ok := byName[canonical]
		if !ok {
			p = &Project{CanonicalName: canonical}
			byName[canonical] = p
		}
		p.Artifacts = append(p.Artifacts, a)
		if !contains(p.Versions, a.Version) {
			p.Versions = append(p.Versions, a.Version)
		}
	}

	projects := make([]Project, 0, len(byName))
	for _, p := range byName {
		projects = append(projects, *p)
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CanonicalName < projects[j].CanonicalName
	})
	return projects, nil
}

// Project returns the project with the given canonical name, or nil if no
// artifact maps to it. Artifacts come back sorted by filename.
func (c *Catalog) Project(ctx context.Context, canonical string) (*Project, error) {
	artifacts, err := c.Artifacts(ctx)
	if err != nil {
		return nil, err
	}

	p := &Project{CanonicalName: canonical}
	for _, a := range artifacts {
		if pkgname.Normalize(a.Project) != canonical {
			continue
		}
		p.Artifacts = append(p.Artifacts, a)
		if !contains(p.Versions, a.Version) {
			p.Versions = append(p.Versions, a.Version)
		}
	}
	if len(p.Artifacts) == 0 {
		return nil, nil
	}
	return p, nil
}

// Count returns the number of distinct canonical projects.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	artifacts, err := c.Artifacts(ctx)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{})
	for _, a := range artifacts {
		seen[pkgname.Normalize(a.Project)] = struct{}{}
	}
	return len(seen), nil
}

// FindRelease returns every artifact whose canonical project name and
// exact version match, across all roots.
func (c *Catalog) FindRelease(ctx context.Context, name, version string) ([]storage.Artifact, error) {
	canonical := pkgname.Normalize(name)
	artifacts, err := c.Artifacts(ctx)
	if err != nil {
		return nil, err
	}
	var matches []storage.Artifact
	for _, a := range artifacts {
		if pkgname.Normalize(a.Project) == canonical && a.Version == version {
			matches = append(matches, a)
		}
	}
	return matches, nil
}

func contains(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}
