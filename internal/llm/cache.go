package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore is the subset of redis.Cmdable the cache needs.
type CacheStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// CachedExtractor memoises successful extractions by image content hash, so a verify-only
// preview and the final upload of the same image read identical fields. Cache errors never
// fail an extraction.
type CachedExtractor struct {
	next   FieldExtractor
	store  CacheStore
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func NewCachedExtractor(next FieldExtractor, store CacheStore, ttl time.Duration, logger *slog.Logger) *CachedExtractor {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedExtractor{next: next, store: store, ttl: ttl, prefix: "receipt-extract:", logger: logger}
}

func (c *CachedExtractor) ExtractFields(ctx context.Context, req ExtractRequest) (Result, error) {
	if req.ContentHash == "" {
		return c.next.ExtractFields(ctx, req)
	}
	key := c.prefix + req.ContentHash

	b, err := c.store.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var res Result
		if uErr := json.Unmarshal(b, &res); uErr == nil {
			c.logger.Info("llm.cache.hit", "content_hash", req.ContentHash)
			return res, nil
		} else {
			c.logger.Warn("llm.cache.decode_error", "content_hash", req.ContentHash, "error", uErr)
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("llm.cache.get_error", "content_hash", req.ContentHash, "error", err)
	}

	res, err := c.next.ExtractFields(ctx, req)
	if err != nil {
		return Result{}, err
	}
	if b, mErr := json.Marshal(res); mErr == nil {
		if sErr := c.store.Set(ctx, key, b, c.ttl).Err(); sErr != nil {
			c.logger.Warn("llm.cache.set_error", "content_hash", req.ContentHash, "error", sErr)
		}
	}
	return res, nil
}
