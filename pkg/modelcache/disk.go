package modelcache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quantaleaf/demandcast/pkg/cachekey"
)

const (
	indexFile  = "cache_index.json"
	modelExt   = ".model.bin"
	metaExt    = ".meta.json"
	hotBlobCap = 32
)

// DiskStore is the file-backed model cache. Each entry is two co-located
// artifacts under the root directory (<key>.model.bin and <key>.meta.json);
// one consolidated cache_index.json mirrors the in-memory index so a fresh
// process rebuilds its view of cache contents without scanning every entry.
//
// The in-memory index is the source of truth for Exists and enumeration and
// is rewritten synchronously on every mutation. A single DiskStore is safe
// for concurrent use within one process; across processes the discipline is
// last-writer-wins on identical keys.
type DiskStore struct {
	dir    string
	logger *slog.Logger

	mu    sync.RWMutex
	index map[string]Metadata

	// hot holds recently loaded model payloads so repeated forecasts for the
	// same item skip the disk read. Bounded; disk stays the source of truth.
	hot *lru.Cache[string, []byte]
}

// NewDiskStore opens (or creates) a disk cache rooted at dir. A corrupt or
// absent index file starts the store empty rather than failing.
func NewDiskStore(dir string, logger *slog.Logger) (*DiskStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	hot, err := lru.New[string, []byte](hotBlobCap)
	if err != nil {
		return nil, err
	}

	s := &DiskStore{
		dir:    dir,
		logger: logger,
		index:  make(map[string]Metadata),
		hot:    hot,
	}
	s.loadIndex()
	return s, nil
}

// Key returns the cache key the store would use for the context.
func (s *DiskStore) Key(ctx cachekey.Context) string {
	return ctx.Key()
}

// Exists reports whether a model is cached for the context.
func (s *DiskStore) Exists(ctx cachekey.Context) bool {
	key := ctx.Key()
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[key]
	return ok
}

// Save persists the model payload and its metadata, overwriting any prior
// entry at the same key, and rewrites the index. Returns the key and whether
// the save succeeded; failures are logged, never raised.
func (s *DiskStore) Save(ctx cachekey.Context, blob []byte, meta Metadata) (string, bool) {
	key := ctx.Key()
	meta.Key = key

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		s.logger.Error("failed to encode cache metadata", "key", key, "error", err)
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(filepath.Join(s.dir, key+modelExt), blob); err != nil {
		s.logger.Error("failed to write model payload", "key", key, "error", err)
		return "", false
	}
	if err := writeFileAtomic(filepath.Join(s.dir, key+metaExt), metaBytes); err != nil {
		s.logger.Error("failed to write model metadata", "key", key, "error", err)
		return "", false
	}

	s.index[key] = meta
	s.hot.Add(key, blob)
	s.writeIndex()

	s.logger.Debug("saved model to cache", "key", key, "item", meta.Item, "model", meta.ModelType)
	return key, true
}

// Load returns the model payload and metadata for the key, or (nil, nil) on
// a miss. A present index entry with unreadable artifacts is a miss too.
func (s *DiskStore) Load(key string) ([]byte, *Metadata) {
	s.mu.RLock()
	meta, ok := s.index[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if blob, hit := s.hot.Get(key); hit {
		m := meta
		return blob, &m
	}

	blob, err := os.ReadFile(filepath.Join(s.dir, key+modelExt))
	if err != nil {
		s.logger.Warn("failed to read model payload, treating as miss", "key", key, "error", err)
		return nil, nil
	}

	s.hot.Add(key, blob)
	m := meta
	return blob, &m
}

// Delete removes both artifacts and the index entry. Deleting an absent key
// is not an error.
func (s *DiskStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ext := range []string{modelExt, metaExt} {
		if err := os.Remove(filepath.Join(s.dir, key+ext)); err != nil && !os.IsNotExist(err) {
			s.logger.Error("failed to remove cache artifact", "key", key, "error", err)
			return false
		}
	}

	s.hot.Remove(key)
	if _, ok := s.index[key]; ok {
		delete(s.index, key)
		s.writeIndex()
	}
	return true
}

// CachedItems partitions items into those with a cached model under the
// template context and those needing training.
func (s *DiskStore) CachedItems(template cachekey.Context, items []string) (cached, missing []string) {
	return partitionItems(template, items, s.Exists)
}

// ClearConfig deletes every cached entry for the items under the template.
// Returns the number of entries removed.
func (s *DiskStore) ClearConfig(template cachekey.Context, items []string) int {
	return clearConfig(template, items, s)
}

// Info summarizes cache coverage for the items under the template.
func (s *DiskStore) Info(template cachekey.Context, items []string) Info {
	return buildInfo(template, items, s)
}

// Entries returns a snapshot of all cached metadata.
func (s *DiskStore) Entries() []Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Metadata, 0, len(s.index))
	for _, meta := range s.index {
		out = append(out, meta)
	}
	return out
}

// Len returns the number of cached entries.
func (s *DiskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// PruneOlderThan removes entries trained more than age ago and returns how
// many were removed. The cache has no automatic eviction; pruning is an
// explicit operator decision.
func (s *DiskStore) PruneOlderThan(age time.Duration) int {
	cutoff := time.Now().Add(-age)

	s.mu.RLock()
	stale := make([]string, 0)
	for key, meta := range s.index {
		if meta.TrainedAt.Before(cutoff) {
			stale = append(stale, key)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for _, key := range stale {
		if s.Delete(key) {
			removed++
		}
	}
	return removed
}

// loadIndex rebuilds the in-memory index from the consolidated index file.
func (s *DiskStore) loadIndex() {
	path := filepath.Join(s.dir, indexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read cache index, starting empty", "path", path, "error", err)
		}
		return
	}
	if err := json.Unmarshal(data, &s.index); err != nil {
		s.logger.Warn("corrupt cache index, starting empty", "path", path, "error", err)
		s.index = make(map[string]Metadata)
	}
}

// writeIndex mirrors the in-memory index to disk. Callers hold s.mu.
func (s *DiskStore) writeIndex() {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		s.logger.Error("failed to encode cache index", "error", err)
		return
	}
	if err := writeFileAtomic(filepath.Join(s.dir, indexFile), data); err != nil {
		s.logger.Error("failed to write cache index", "error", err)
	}
}

// writeFileAtomic writes via a temp file and rename so readers never observe
// a partially written artifact.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
