package storage

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"os"
	"sync"
	"time"
)

// digester computes content digests with one algorithm fixed at startup
// and memoizes results per (path, mtime, size).
type digester struct {
	algo string
	new  func() hash.Hash

	mu      sync.Mutex
	entries map[string]digestEntry
}

type digestEntry struct {
	modTime time.Time
	size    int64
	hex     string
}

func newDigester(algo string) (*digester, error) {
	var constructor func() hash.Hash
	switch algo {
	case "md5":
		constructor = md5.New
	case "sha1":
		constructor = sha1.New
	case "", "sha256":
		algo = "sha256"
		constructor = sha256.New
	case "sha512":
		constructor = sha512.New
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
	return &digester{
		algo:    algo,
		new:     constructor,
		entries: make(map[string]digestEntry),
	}, nil
}

func (d *digester) digest(path string, modTime time.Time, size int64) (string, error) {
	d.mu.Lock()
	if entry, ok := d.entries[path]; ok && entry.modTime.Equal(modTime) && entry.size == size {
		d.mu.Unlock()
		return entry.hex, nil
	}
	d.mu.Unlock()

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	hasher := d.new()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	hex := fmt.Sprintf("%x", hasher.Sum(nil))

	d.mu.Lock()
	d.entries[path] = digestEntry{modTime: modTime, size: size, hex: hex}
	d.mu.Unlock()
	return hex, nil
}
