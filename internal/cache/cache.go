// Package cache provides persistent caching of content digests across runs.
package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/icloud-dedupe/icloud-dedupe/internal/types"
)

const bucketName = "digests"

// Cache provides persistent caching of content digests using BoltDB.
// Implements self-cleaning: each run creates a new database, only entries
// looked up (or freshly stored) during the run survive into the next one.
type Cache struct {
	readDB  *bolt.DB // Existing cache (read-only)
	writeDB *bolt.DB // New cache (write) - BoltDB locks this file
	path    string   // Final path (for atomic swap)
	enabled bool
}

// Open opens the existing cache file for reading and creates a new cache
// file for writing. BoltDB's file locking on the ".new" file prevents
// concurrent instances from racing. Returns a disabled cache if path is
// empty, matching the CLI's --cache-file default of "no cache".
func Open(path string) (*Cache, error) {
	if path == "" {
		return &Cache{enabled: false}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	c := &Cache{path: path, enabled: true}
	var err error

	if _, statErr := os.Stat(path); statErr == nil {
		c.readDB, err = bolt.Open(path, 0o600, &bolt.Options{
			ReadOnly: true,
			Timeout:  1 * time.Second,
		})
		if err != nil {
			// Can't open existing cache - continue without a read side.
			slog.Debug("digest cache: existing cache unreadable, starting cold", "path", path, "error", err)
			c.readDB = nil
		}
	} else {
		slog.Debug("digest cache: no existing cache, starting cold", "path", path)
	}

	newPath := path + ".new"
	c.writeDB, err = bolt.Open(newPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("create new cache (locked by another instance?): %w", err)
	}

	if err := c.writeDB.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

// Close closes both databases and atomically replaces the old cache file
// with the new one. Only replaces if the write database closed
// successfully, to avoid losing the previous cache on a write error.
func (c *Cache) Close() error {
	var errs []error
	if c.readDB != nil {
		if err := c.readDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.writeDB != nil {
		if err := c.writeDB.Close(); err != nil {
			errs = append(errs, err)
		} else {
			if err := os.Rename(c.path+".new", c.path); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

const keyVersion byte = 1 // Increment when key format changes.

// makeKey builds the deterministic lookup key for a path's content digest:
// ver(1) + path + NUL + size(8) + mtime_unixnano(8) + kind(1).
//
// Any change to path, size, mtime, or kind invalidates the entry — this is
// the same "cheap metadata stands in for content" tradeoff the discovery
// stage itself relies on, and is always re-verified by a live digest
// comparison before a quarantine decision is made.
func makeKey(e types.Entry) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(keyVersion)
	buf.WriteString(e.Path)
	buf.WriteByte(0)
	_ = binary.Write(buf, binary.BigEndian, e.Size)
	_ = binary.Write(buf, binary.BigEndian, e.ModTime.UnixNano())
	buf.WriteByte(byte(e.Kind))
	return buf.Bytes()
}

// Lookup retrieves a cached content digest for e. Returns the zero digest
// and false if there is no cache, no read side, or no matching entry. On a
// hit, the entry is copied into the write database (self-cleaning).
func (c *Cache) Lookup(e types.Entry) (types.ContentDigest, bool) {
	if !c.enabled || c.readDB == nil {
		return types.ContentDigest{}, false
	}

	key := makeKey(e)
	var digest types.ContentDigest
	found := false

	_ = c.readDB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		data := b.Get(key)
		if len(data) == types.DigestSize {
			copy(digest[:], data)
			found = true
		}
		return nil
	})

	if !found {
		return types.ContentDigest{}, false
	}

	_ = c.Store(e, digest)
	return digest, true
}

// Store saves e's content digest into the new database.
func (c *Cache) Store(e types.Entry, digest types.ContentDigest) error {
	if !c.enabled || c.writeDB == nil {
		return nil
	}

	err := c.writeDB.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.Put(makeKey(e), digest[:])
	})
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}
