package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/avelinabooks/bookshop-backend/pkg/config"
	"github.com/avelinabooks/bookshop-backend/pkg/logger"
	"github.com/avelinabooks/bookshop-backend/pkg/redis"
)

const (
	bookDetailScope = "book:detail"
	bookSearchScope = "book:search"
	categoryScope   = "category"
	bestsellersKey  = "bestsellers"
	topRatedKey     = "top_rated"
)

// Store is the subset of the redis client used for response caching.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	CacheKey(parts ...string) string
}

// Cache is a best-effort JSON response cache. Read and write failures are
// logged and reported as misses so a redis outage never fails a request.
type Cache struct {
	store Store
	cfg   config.CacheConfig
	log   *logger.Logger
}

func New(store Store, cfg config.CacheConfig, log *logger.Logger) (*Cache, error) {
	if store == nil {
		return nil, errors.New("cache store is required")
	}
	return &Cache{store: store, cfg: cfg, log: log}, nil
}

// GetJSON loads the value stored at key into dest. ok is false on a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) bool {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.warn(ctx, "cache read failed", key, err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		c.warn(ctx, "cache decode failed", key, err)
		return false
	}
	return true
}

// SetJSON stores a JSON-encoded value with the given TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.warn(ctx, "cache encode failed", key, err)
		return
	}
	if err := c.store.Set(ctx, key, string(raw), ttl); err != nil {
		c.warn(ctx, "cache write failed", key, err)
	}
}

// BookTTL is the TTL for single-book payloads.
func (c *Cache) BookTTL() time.Duration { return c.cfg.BookTTL }

// ListTTL is the TTL for search and listing payloads.
func (c *Cache) ListTTL() time.Duration { return c.cfg.ListTTL }

// BookKey returns the cache key for one book's detail payload.
func (c *Cache) BookKey(bookID uuid.UUID) string {
	return c.store.CacheKey(bookDetailScope, bookID.String())
}

// SearchKey folds every search parameter into the key so distinct queries
// never collide.
func (c *Cache) SearchKey(query string, categoryID *uuid.UUID, inStock *bool, limit, offset int) string {
	parts := []string{bookSearchScope, query}
	if categoryID != nil {
		parts = append(parts, "cat"+categoryID.String())
	}
	if inStock != nil {
		parts = append(parts, fmt.Sprintf("stock%t", *inStock))
	}
	parts = append(parts, fmt.Sprintf("page%d_%d", limit, offset))
	return c.store.CacheKey(parts...)
}

// CategoryKey returns the key for one category, or the full listing when nil.
func (c *Cache) CategoryKey(categoryID *uuid.UUID) string {
	if categoryID == nil {
		return c.store.CacheKey(categoryScope, "all")
	}
	return c.store.CacheKey(categoryScope, categoryID.String())
}

// BestsellersKey returns the key for the bestsellers listing.
func (c *Cache) BestsellersKey() string {
	return c.store.CacheKey(bestsellersKey)
}

// TopRatedKey returns the key for the top-rated listing.
func (c *Cache) TopRatedKey() string {
	return c.store.CacheKey(topRatedKey)
}

// Drop removes the given cache entries, logging failures.
func (c *Cache) Drop(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		c.warn(ctx, "cache drop failed", keys[0], err)
	}
}

// InvalidateBook drops the book's detail entry plus every search and
// aggregate listing that may contain it.
func (c *Cache) InvalidateBook(ctx context.Context, bookID uuid.UUID) error {
	err := c.store.Del(ctx, c.BookKey(bookID), c.BestsellersKey(), c.TopRatedKey())
	err = multierr.Append(err, c.clearPattern(ctx, c.store.CacheKey(bookSearchScope)+":*"))
	if err != nil {
		c.warn(ctx, "cache invalidation failed", bookID.String(), err)
	}
	return err
}

// InvalidateCategory drops one category entry and the full category listing.
func (c *Cache) InvalidateCategory(ctx context.Context, categoryID uuid.UUID) error {
	err := c.store.Del(ctx, c.CategoryKey(&categoryID), c.CategoryKey(nil))
	if err != nil {
		c.warn(ctx, "cache invalidation failed", categoryID.String(), err)
	}
	return err
}

func (c *Cache) clearPattern(ctx context.Context, pattern string) error {
	keys, err := c.store.Keys(ctx, pattern)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.store.Del(ctx, keys...)
}

func (c *Cache) warn(ctx context.Context, msg, key string, err error) {
	if c.log == nil {
		return
	}
	c.log.Warn(ctx, fmt.Sprintf("%s: key=%s err=%v", msg, strings.TrimSpace(key), err))
}
