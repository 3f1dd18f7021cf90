package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harryzcy/pypiserver/internal/pkgfile"
)

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0644))
}

func TestListArtifacts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "foobar-1.0.zip", "")
	writeFile(t, root, "foobar-1.1.zip", "")
	writeFile(t, root, ".hidden-1.0.zip", "secret")
	writeFile(t, root, "notapackage.txt", "")
	require.NoError(t, os.Mkdir(filepath.Join(root, ".subdir"), 0755))
	writeFile(t, filepath.Join(root, ".subdir"), "foo-1.0.zip", "secret")

	backend, err := NewLocalBackend([]string{root}, "sha256")
	require.NoError(t, err)

	artifacts, err := backend.ListArtifacts(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	for _, a := range artifacts {
		assert.Equal(t, "foobar", a.Project)
		assert.Equal(t, pkgfile.KindSdist, a.Kind)
		assert.Equal(t, root, a.Root)
	}
}

func TestOpen(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "foo-1.0.tar.gz", "content123")
	writeFile(t, root, ".foo-1.0.zip", "secret")

	backend, err := NewLocalBackend([]string{root}, "sha256")
	require.NoError(t, err)

	file, info, err := backend.Open(context.Background(), root, "foo-1.0.tar.gz")
	require.NoError(t, err)
	defer file.Close()
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "content123", string(data))
	assert.Equal(t, int64(len("content123")), info.Size())

	_, _, err = backend.Open(context.Background(), root, ".foo-1.0.zip")
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = backend.Open(context.Background(), root, "missing-1.0.zip")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreate(t *testing.T) {
	root := t.TempDir()
	backend, err := NewLocalBackend([]string{root}, "sha256")
	require.NoError(t, err)

	err = backend.Create(context.Background(), root, "foo-1.0.tar.gz", strings.NewReader("payload"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "foo-1.0.tar.gz"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// No leftover temp files.
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCreateConflictAcrossRoots(t *testing.T) {
	root1 := t.TempDir()
	root2 := t.TempDir()
	writeFile(t, root2, "foo-1.0.tar.gz", "")

	backend, err := NewLocalBackend([]string{root1, root2}, "sha256")
	require.NoError(t, err)

	err = backend.Create(context.Background(), root1, "foo-1.0.tar.gz", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRemove(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "foo-1.0.tar.gz", "")

	backend, err := NewLocalBackend([]string{root}, "sha256")
	require.NoError(t, err)

	require.NoError(t, backend.Remove(context.Background(), root, "foo-1.0.tar.gz"))
	assert.NoFileExists(t, filepath.Join(root, "foo-1.0.tar.gz"))

	assert.ErrorIs(t, backend.Remove(context.Background(), root, "foo-1.0.tar.gz"), ErrNotFound)
	assert.ErrorIs(t, backend.Remove(context.Background(), root, ".hidden-1.0.zip"), ErrNotFound)
}

func TestDigest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "foo-1.0.tar.gz", "hello")

	backend, err := NewLocalBackend([]string{root}, "sha256")
	require.NoError(t, err)
	assert.Equal(t, "sha256", backend.DigestAlgo())

	artifacts, err := backend.ListArtifacts(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)

	digest, err := backend.Digest(context.Background(), &artifacts[0])
	require.NoError(t, err)
	// sha256("hello")
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", digest)

	// Memoized result survives a second call.
	again, err := backend.Digest(context.Background(), &artifacts[0])
	require.NoError(t, err)
	assert.Equal(t, digest, again)
}

func TestDigestAlgos(t *testing.T) {
	for _, algo := range []string{"md5", "sha1", "sha256", "sha512"} {
		_, err := newDigester(algo)
		assert.NoError(t, err, algo)
	}
	_, err := newDigester("crc32")
	assert.Error(t, err)
}

func TestVisible(t *testing.T) {
	assert.True(t, Visible("foo-1.0.tar.gz"))
	assert.False(t, Visible(".foo-1.0.tar.gz"))
	assert.False(t, Visible(".subdir/foo-1.0.tar.gz"))
	assert.False(t, Visible("sub/foo-1.0.tar.gz"))
	assert.False(t, Visible(""))
}
