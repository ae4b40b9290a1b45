package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// storeFile is the name of the persisted cache inside the store directory.
const storeFile = "results.msgpack"

// Key hashes the parts into a cache key. Parts are length-prefixed so
// ("ab", "c") and ("a", "bc") differ.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:", len(p))
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Store caches msgpack-encoded values under content hashes and persists
// them to a directory.
type Store struct {
	lru *LRUCache
	dir string
}

// NewStore creates a store bounded by maxBytes. An empty dir disables
// persistence.
func NewStore(dir string, maxBytes int64) *Store {
	return &Store{lru: New(Options{MaxBytes: maxBytes}), dir: dir}
}

// Lookup decodes the value stored under key into v.
func (s *Store) Lookup(key string, v interface{}) (bool, error) {
	b, ok := s.lru.Get(key)
	if !ok {
		return false, nil
	}
	if err := msgpack.Unmarshal(b, v); err != nil {
		s.lru.Delete(key)
		return false, fmt.Errorf("decoding cached %s: %w", key, err)
	}
	return true, nil
}

// Put encodes v and stores it under key.
func (s *Store) Put(key string, v interface{}) error {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	s.lru.Set(key, b)
	return nil
}

// Stats returns the counters of the underlying cache.
func (s *Store) Stats() Stats {
	return s.lru.Stats()
}

// Path returns the file the store persists to, or "" without a directory.
func (s *Store) Path() string {
	if s.dir == "" {
		return ""
	}
	return filepath.Join(s.dir, storeFile)
}

// Load restores the store from disk. A missing file is not an error.
func (s *Store) Load() error {
	if s.dir == "" {
		return nil
	}
	return LoadFromFile(s.lru, s.Path())
}

// Save persists the store, creating its directory if needed.
func (s *Store) Save() error {
	if s.dir == "" {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	return PersistToFile(s.lru, s.Path())
}
