package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DocCache caches single documents by collection and id.
//
// A miss returns a fill token. Fill stores the loaded document only while the
// token is still current; Delete retires it, so a load that raced with a write
// cannot cache the document it read before the write.
type DocCache interface {
	Get(ctx context.Context, collection, id string) (doc Document, token string, found bool, err error)
	Fill(ctx context.Context, collection, id string, doc Document, token string, ttl time.Duration) error
	Delete(ctx context.Context, collection, id string) error
	DeleteCollection(ctx context.Context, collection string) error
}

// CachedStore serves GetDoc from a DocCache and invalidates on writes.
// Everything else is delegated to the wrapped Store. Cache failures are logged
// and fall back to the store.
type CachedStore struct {
	Store
	cache  DocCache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStore wraps store with a read-through cache. Missing documents are not cached.
func NewCachedStore(store Store, cache DocCache, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{Store: store, cache: cache, ttl: ttl, logger: logger}
}

// GetDoc returns the cached document or loads and caches it. When the cache
// cannot be read the document is loaded without filling the cache.
func (s *CachedStore) GetDoc(ctx context.Context, collection, id string) (Document, error) {
	doc, token, ok, cerr := s.cache.Get(ctx, collection, id)
	if cerr != nil {
		s.logger.Warn("cache read failed", "collection", collection, "id", id, "error", cerr)
	} else if ok {
		return doc, nil
	}

	doc, err := s.Store.GetDoc(ctx, collection, id)
	if err != nil || doc == nil || cerr != nil {
		return doc, err
	}
	if err := s.cache.Fill(ctx, collection, id, doc, token, s.ttl); err != nil {
		s.logger.Warn("cache write failed", "collection", collection, "id", id, "error", err)
	}
	return doc, nil
}

func (s *CachedStore) AddDoc(ctx context.Context, collection, id string, doc Document) error {
	defer s.invalidate(ctx, collection, id)
	return s.Store.AddDoc(ctx, collection, id, doc)
}

func (s *CachedStore) UpdateDoc(ctx context.Context, collection, id string, doc Document) error {
	defer s.invalidate(ctx, collection, id)
	return s.Store.UpdateDoc(ctx, collection, id, doc)
}

func (s *CachedStore) UpsertDoc(ctx context.Context, collection, id string, doc Document) error {
	defer s.invalidate(ctx, collection, id)
	return s.Store.UpsertDoc(ctx, collection, id, doc)
}

func (s *CachedStore) ReplaceDoc(ctx context.Context, collection, id string, doc Document) error {
	defer s.invalidate(ctx, collection, id)
	return s.Store.ReplaceDoc(ctx, collection, id, doc)
}

func (s *CachedStore) DeleteDoc(ctx context.Context, collection, id string) error {
	defer s.invalidate(ctx, collection, id)
	return s.Store.DeleteDoc(ctx, collection, id)
}

// DropCollection drops the collection and every cached document of it.
func (s *CachedStore) DropCollection(ctx context.Context, name string) error {
	err := s.Store.DropCollection(ctx, name)
	if cerr := s.cache.DeleteCollection(ctx, name); cerr != nil {
		s.logger.Warn("cache invalidation failed", "collection", name, "error", cerr)
	}
	return err
}

func (s *CachedStore) invalidate(ctx context.Context, collection, id string) {
	if err := s.cache.Delete(ctx, collection, id); err != nil {
		s.logger.Warn("cache invalidation failed", "collection", collection, "id", id, "error", err)
	}
}

// RedisCache stores documents as JSON strings under
// <prefix>{<collection>:<id>}, next to a fill token key with the suffix ":v".
// The hash tag keeps both keys in one cluster slot.
type RedisCache struct {
	client     redis.UniversalClient
	prefix     string
	versionTTL time.Duration
}

// NewRedisCache creates a cache on client. The client is owned by the caller.
func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, versionTTL: time.Hour}
}

func (c *RedisCache) key(collection, id string) string {
	return c.prefix + "{" + collection + ":" + id + "}"
}

func (c *RedisCache) versionKey(collection, id string) string {
	return c.key(collection, id) + versionSuffix
}

const versionSuffix = ":v"

// fillScript sets KEYS[1] to ARGV[2] only if KEYS[2] still holds ARGV[1]
// (an absent token reads as ""). ARGV[3] is the TTL in milliseconds, 0 for none.
var fillScript = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if current == false then current = '' end
if current ~= ARGV[1] then return 0 end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

func (c *RedisCache) Get(ctx context.Context, collection, id string) (Document, string, bool, error) {
	vals, err := c.client.MGet(ctx, c.key(collection, id), c.versionKey(collection, id)).Result()
	if err != nil {
		return nil, "", false, fmt.Errorf("redis mget: %w", err)
	}
	token, _ := vals[1].(string)
	data, ok := vals[0].(string)
	if !ok {
		return nil, token, false, nil
	}
	doc, err := decodeDocument([]byte(data))
	if err != nil {
		return nil, "", false, err
	}
	return doc, token, true, nil
}

func (c *RedisCache) Fill(ctx context.Context, collection, id string, doc Document, token string, ttl time.Duration) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	keys := []string{c.key(collection, id), c.versionKey(collection, id)}
	if err := fillScript.Run(ctx, c.client, keys, token, data, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis fill: %w", err)
	}
	return nil
}

// Delete drops the document and retires outstanding fill tokens. The new
// token outlives any in-flight load by a wide margin.
func (c *RedisCache) Delete(ctx context.Context, collection, id string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.versionKey(collection, id), uuid.NewString(), c.versionTTL)
		pipe.Del(ctx, c.key(collection, id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// DeleteCollection removes every cached document of the collection with SCAN
// and DEL. Fill tokens are left to expire.
func (c *RedisCache) DeleteCollection(ctx context.Context, collection string) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"{"+collection+":*", 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		if strings.HasSuffix(iter.Val(), versionSuffix) {
			continue
		}
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}
