// Package cache stores fetched JSON payloads on disk keyed by request URL.
package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

const filePerm = 0o644

// FetchFunc produces the payload for a cache miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

// DiskCache is a directory of pretty-printed JSON files, one per key. The
// file name is the hex SHA-256 of the key. An empty directory disables
// caching and every lookup goes straight to the fetcher.
type DiskCache struct {
	dir string
	log logger.Logger
}

// New creates a cache rooted at dir, creating the directory when needed.
func New(dir string, opts ...Option) (*DiskCache, error) {
	c := &DiskCache{dir: dir, log: logger.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
		}
	}
	return c, nil
}

// Dir returns the cache directory or "" when caching is disabled.
func (c *DiskCache) Dir() string { return c.dir }

// Path returns the file that backs key.
func (c *DiskCache) Path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}

// GetOrFetch returns the cached payload for key or calls fetch and stores its
// result. Unreadable or corrupt entries count as misses. A failed write is
// logged and the fetched payload is still returned.
func (c *DiskCache) GetOrFetch(ctx context.Context, key string, fetch FetchFunc) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if fetch == nil {
		return nil, ErrNilFetcher
	}
	if c == nil || c.dir == "" {
		return fetch(ctx)
	}

	path := c.Path(key)
	if data, err := os.ReadFile(path); err == nil {
		if json.Valid(data) {
			metrics.RecordCacheHit()
			return data, nil
		}
		c.log.Warn(ctx, "discarding corrupt cache entry", logger.String("path", path))
	}
	metrics.RecordCacheMiss()

	data, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	if err := writeFileAtomic(path, pretty.Bytes()); err != nil {
		metrics.RecordCacheWriteError()
		c.log.Warn(ctx, "cache write failed", logger.String("path", path), logger.Error(err))
	}
	return data, nil
}

// writeFileAtomic writes through a temp file in the same directory and
// renames it into place so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(filePerm); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
