package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"tunestream/logger"

	"github.com/go-redis/redis/v8"
)

const (
	metaPrefix = "media:meta:"
	keyPrefix  = "media:key:"

	// KeyPattern matches every key written by MetadataCache.
	KeyPattern = "media:*"
)

// Metadata is the part of a resolved track worth memoizing. Sizes and bytes
// are never cached; they always come from the opened source.
type Metadata struct {
	StorageKey string `json:"storageKey"`
	MimeType   string `json:"mimeType,omitempty"`
}

// MetadataCache memoizes catalog lookups in Redis.
type MetadataCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMetadataCache returns a cache whose entries expire after ttl.
func NewMetadataCache(client *redis.Client, ttl time.Duration) *MetadataCache {
	return &MetadataCache{client: client, ttl: ttl}
}

func metaKey(id string) string        { return metaPrefix + id }
func storageKeySet(key string) string { return keyPrefix + key }

// Get returns the cached metadata for a track id, or nil on a miss. Redis
// failures are logged and reported as misses so the catalog stays
// authoritative.
func (c *MetadataCache) Get(ctx context.Context, id string) *Metadata {
	data, err := c.client.Get(ctx, metaKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("读取元数据缓存失败", logger.String("id", id), logger.ErrorField(err))
		}
		return nil
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil || m.StorageKey == "" {
		logger.Warn("元数据缓存内容无效，已忽略", logger.String("id", id))
		return nil
	}
	return &m
}

// Put stores metadata for id and indexes it by storage key for invalidation.
func (c *MetadataCache) Put(ctx context.Context, id string, m Metadata) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, metaKey(id), data, c.ttl)
		pipe.SAdd(ctx, storageKeySet(m.StorageKey), id)
		pipe.Expire(ctx, storageKeySet(m.StorageKey), c.ttl)
		return nil
	})
	if err != nil {
		logger.Warn("写入元数据缓存失败", logger.String("id", id), logger.ErrorField(err))
		return
	}
	logger.Debug("元数据缓存设置成功",
		logger.String("id", id),
		logger.String("storageKey", m.StorageKey),
		logger.Duration("expiration", c.ttl))
}

// Invalidate drops a single track id, including its membership in the
// storage key index.
func (c *MetadataCache) Invalidate(ctx context.Context, id string) error {
	var storageKey string
	data, err := c.client.Get(ctx, metaKey(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return err
	default:
		var m Metadata
		if json.Unmarshal(data, &m) == nil {
			storageKey = m.StorageKey
		}
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, metaKey(id))
		if storageKey != "" {
			pipe.SRem(ctx, storageKeySet(storageKey), id)
		}
		return nil
	})
	return err
}

// InvalidateKey drops every track id that resolved to storageKey.
func (c *MetadataCache) InvalidateKey(ctx context.Context, storageKey string) error {
	setKey := storageKeySet(storageKey)
	ids, err := c.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, metaKey(id))
	}
	keys = append(keys, setKey)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return err
	}

	if len(ids) > 0 {
		logger.Debug("元数据缓存已失效",
			logger.String("storageKey", storageKey),
			logger.Int("ids", len(ids)))
	}
	return nil
}
