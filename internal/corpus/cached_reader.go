package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aihub/support-portal/internal/rag"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// CacheStore 候选集缓存存储
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCacheStore 基于go-redis的CacheStore
type RedisCacheStore struct {
	client *redis.Client
}

// NewRedisCacheStore 创建Redis缓存存储
func NewRedisCacheStore(client *redis.Client) *RedisCacheStore {
	return &RedisCacheStore{client: client}
}

func (r *RedisCacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return data, err
}

func (r *RedisCacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// CachedReader 按租户缓存候选集。缓存故障只记录日志并回退到内部读取器。
type CachedReader struct {
	inner  rag.CorpusReader
	store  CacheStore
	ttl    time.Duration
	prefix string
	logger *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedReader 创建带缓存的读取器
func NewCachedReader(inner rag.CorpusReader, store CacheStore, ttl time.Duration, prefix string, logger *zap.Logger) *CachedReader {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if prefix == "" {
		prefix = "rag:candidates"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedReader{inner: inner, store: store, ttl: ttl, prefix: prefix, logger: logger}
}

func (c *CachedReader) key(tenantID *string) string {
	if tenantID == nil {
		return c.prefix + ":global"
	}
	return fmt.Sprintf("%s:tenant:%s", c.prefix, *tenantID)
}

type cachedChunk struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	URL       *string             `json:"url,omitempty"`
	Content   string              `json:"content"`
	Embedding rag.EmbeddingVector `json:"embedding,omitempty"`
	TenantID  *string             `json:"tenant_id,omitempty"`
}

func (c *CachedReader) FetchCandidates(ctx context.Context, tenantID *string) ([]rag.KnowledgeChunk, error) {
	key := c.key(tenantID)

	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var cached []cachedChunk
		jsonErr := json.Unmarshal(data, &cached)
		if jsonErr == nil {
			c.hits.Add(1)
			return fromCache(cached), nil
		}
		c.logger.Warn("discarding corrupt candidate cache entry", zap.String("key", key), zap.Error(jsonErr))
	case errors.Is(err, ErrCacheMiss):
	default:
		c.logger.Warn("candidate cache read failed", zap.String("key", key), zap.Error(err))
	}
	c.misses.Add(1)

	chunks, err := c.inner.FetchCandidates(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(toCache(chunks))
	if err != nil {
		c.logger.Warn("candidate cache encode failed", zap.String("key", key), zap.Error(err))
		return chunks, nil
	}
	if err := c.store.Set(ctx, key, payload, c.ttl); err != nil {
		c.logger.Warn("candidate cache write failed", zap.String("key", key), zap.Error(err))
	}
	return chunks, nil
}

// HitRate 缓存命中率
func (c *CachedReader) HitRate() float64 {
	hits, misses := c.hits.Load(), c.misses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

func toCache(chunks []rag.KnowledgeChunk) []cachedChunk {
	out := make([]cachedChunk, len(chunks))
	for i, ch := range chunks {
		out[i] = cachedChunk{ID: ch.ID, Title: ch.Title, URL: ch.URL, Content: ch.Content, Embedding: ch.Embedding, TenantID: ch.TenantID}
	}
	return out
}

func fromCache(cached []cachedChunk) []rag.KnowledgeChunk {
	out := make([]rag.KnowledgeChunk, len(cached))
	for i, ch := range cached {
		out[i] = rag.KnowledgeChunk{ID: ch.ID, Title: ch.Title, URL: ch.URL, Content: ch.Content, Embedding: ch.Embedding, TenantID: ch.TenantID}
	}
	return out
}
