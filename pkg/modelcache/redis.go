package modelcache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantaleaf/demandcast/pkg/cachekey"
)

const (
	redisEntryPrefix = "demandcast:model:"
	redisIndexKey    = "demandcast:index"
	redisOpTimeout   = 5 * time.Second
)

// RedisStore is the Redis-backed model cache for multi-instance deployments.
// Each entry is a hash with "blob" and "meta" fields; a separate index hash
// maps key to metadata so Entries works without scanning.
//
// A non-zero TTL expires entry hashes; the index self-heals when a load hits
// an expired entry. Failure semantics match DiskStore: every Redis error
// degrades to a miss or save failure with a log line.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisStore connects to Redis. Call Ping to verify connectivity before
// serving traffic. ttl == 0 means entries never expire.
func NewRedisStore(addr, password string, db int, ttl time.Duration, logger *slog.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{client: client, ttl: ttl, logger: logger}, nil
}

// Ping verifies the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

// Key returns the cache key the store would use for the context.
func (s *RedisStore) Key(ctx cachekey.Context) string {
	return ctx.Key()
}

// Exists reports whether a model is cached for the context.
func (s *RedisStore) Exists(ctx cachekey.Context) bool {
	opCtx, cancel := s.opCtx()
	defer cancel()

	n, err := s.client.Exists(opCtx, redisEntryPrefix+ctx.Key()).Result()
	if err != nil {
		s.logger.Warn("redis exists check failed, treating as miss", "error", err)
		return false
	}
	return n > 0
}

// Save persists the entry hash and the index field, overwriting any prior
// entry at the same key.
func (s *RedisStore) Save(ctx cachekey.Context, blob []byte, meta Metadata) (string, bool) {
	key := ctx.Key()
	meta.Key = key

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		s.logger.Error("failed to encode cache metadata", "key", key, "error", err)
		return "", false
	}

	opCtx, cancel := s.opCtx()
	defer cancel()

	entryKey := redisEntryPrefix + key
	pipe := s.client.TxPipeline()
	pipe.HSet(opCtx, entryKey, "blob", blob, "meta", metaBytes)
	if s.ttl > 0 {
		pipe.Expire(opCtx, entryKey, s.ttl)
	}
	pipe.HSet(opCtx, redisIndexKey, key, metaBytes)
	if _, err := pipe.Exec(opCtx); err != nil {
		s.logger.Error("failed to save model to redis", "key", key, "error", err)
		return "", false
	}

	s.logger.Debug("saved model to cache", "key", key, "item", meta.Item, "model", meta.ModelType)
	return key, true
}

// Load returns the model payload and metadata for the key, or (nil, nil) on
// a miss. An index field whose entry hash has expired is removed on the way.
func (s *RedisStore) Load(key string) ([]byte, *Metadata) {
	opCtx, cancel := s.opCtx()
	defer cancel()

	fields, err := s.client.HGetAll(opCtx, redisEntryPrefix+key).Result()
	if err != nil {
		s.logger.Warn("failed to load model from redis, treating as miss", "key", key, "error", err)
		return nil, nil
	}
	if len(fields) == 0 {
		// Entry expired or never existed; drop any stale index field.
		s.client.HDel(opCtx, redisIndexKey, key)
		return nil, nil
	}

	var meta Metadata
	if err := json.Unmarshal([]byte(fields["meta"]), &meta); err != nil {
		s.logger.Warn("corrupt cache metadata, treating as miss", "key", key, "error", err)
		return nil, nil
	}
	return []byte(fields["blob"]), &meta
}

// Delete removes the entry hash and index field. Idempotent.
func (s *RedisStore) Delete(key string) bool {
	opCtx, cancel := s.opCtx()
	defer cancel()

	pipe := s.client.TxPipeline()
	pipe.Del(opCtx, redisEntryPrefix+key)
	pipe.HDel(opCtx, redisIndexKey, key)
	if _, err := pipe.Exec(opCtx); err != nil {
		s.logger.Error("failed to delete cache entry", "key", key, "error", err)
		return false
	}
	return true
}

// CachedItems partitions items into those with a cached model under the
// template context and those needing training.
func (s *RedisStore) CachedItems(template cachekey.Context, items []string) (cached, missing []string) {
	return partitionItems(template, items, s.Exists)
}

// ClearConfig deletes every cached entry for the items under the template.
func (s *RedisStore) ClearConfig(template cachekey.Context, items []string) int {
	return clearConfig(template, items, s)
}

// Info summarizes cache coverage for the items under the template.
func (s *RedisStore) Info(template cachekey.Context, items []string) Info {
	return buildInfo(template, items, s)
}

// Entries returns a snapshot of all indexed metadata. Entries whose hash has
// expired but whose index field has not yet been healed may still appear.
func (s *RedisStore) Entries() []Metadata {
	opCtx, cancel := s.opCtx()
	defer cancel()

	fields, err := s.client.HGetAll(opCtx, redisIndexKey).Result()
	if err != nil {
		s.logger.Warn("failed to read cache index", "error", err)
		return nil
	}

	out := make([]Metadata, 0, len(fields))
	for key, raw := range fields {
		var meta Metadata
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			s.logger.Warn("corrupt index entry, skipping", "key", key, "error", err)
			continue
		}
		out = append(out, meta)
	}
	return out
}
