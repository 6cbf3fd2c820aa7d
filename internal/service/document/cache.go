package document

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/weiwangfds/docuvault/internal/errors"
	"github.com/weiwangfds/docuvault/internal/logger"
)

// decompressionCache holds ephemeral decompressed artifacts, addressed by
// document ID. Artifacts are plain files whose modification time doubles as
// the TTL clock; the cache is transient state and is never part of the
// durable document record.
type decompressionCache struct {
	dir string
	ttl time.Duration
}

func newDecompressionCache(dir string, ttl time.Duration) (*decompressionCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &decompressionCache{dir: dir, ttl: ttl}, nil
}

func (c *decompressionCache) path(docID string) string {
	return filepath.Join(c.dir, docID)
}

// get returns the cached bytes for docID if a live artifact exists.
func (c *decompressionCache) get(docID string, now time.Time) ([]byte, bool) {
	p := c.path(docID)
	info, err := os.Stat(p)
	if err != nil {
		return nil, false
	}
	if now.Sub(info.ModTime()) > c.ttl {
		return nil, false
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}
	return data, true
}

// put stores a decompressed artifact. A write failure is resource
// exhaustion, not corruption; callers may still serve the bytes they hold.
func (c *decompressionCache) put(docID string, data []byte) error {
	tmp := c.path(docID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return apperrors.Wrap(apperrors.ErrTempSpaceExhausted, err)
	}
	if err := os.Rename(tmp, c.path(docID)); err != nil {
		os.Remove(tmp)
		return apperrors.Wrap(apperrors.ErrTempSpaceExhausted, err)
	}
	return nil
}

// invalidate drops the cached artifact for docID.
func (c *decompressionCache) invalidate(docID string) {
	if err := os.Remove(c.path(docID)); err != nil && !os.IsNotExist(err) {
		logger.Warnf("failed to invalidate cache entry for %s: %v", docID, err)
	}
}

// sweep deletes artifacts older than the TTL and returns the count removed.
func (c *decompressionCache) sweep(now time.Time) int {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		logger.Errorf("failed to read cache directory %s: %v", c.dir, err)
		return 0
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= c.ttl {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			logger.Warnf("failed to remove expired cache entry %s: %v", entry.Name(), err)
			continue
		}
		count++
	}
	return count
}
