package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/avelinabooks/bookshop-backend/pkg/config"
	"github.com/avelinabooks/bookshop-backend/pkg/redis"
)

type memoryStore struct {
	values map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: make(map[string]string)}
}

func (s *memoryStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := s.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (s *memoryStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.values[key] = value.(string)
	return nil
}

func (s *memoryStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func (s *memoryStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for key := range s.values {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *memoryStore) CacheKey(parts ...string) string {
	return "bookshop:cache:" + strings.Join(parts, ":")
}

type payload struct {
	Name string `json:"name"`
}

func TestGetJSONRoundTrip(t *testing.T) {
	store := newMemoryStore()
	c, err := New(store, config.CacheConfig{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	var out payload
	if c.GetJSON(ctx, "missing", &out) {
		t.Fatalf("expected miss on empty store")
	}

	c.SetJSON(ctx, "key", payload{Name: "dune"}, time.Minute)
	if !c.GetJSON(ctx, "key", &out) {
		t.Fatalf("expected hit after set")
	}
	if out.Name != "dune" {
		t.Fatalf("expected dune, got %s", out.Name)
	}
}

func TestGetJSONTreatsCorruptPayloadAsMiss(t *testing.T) {
	store := newMemoryStore()
	c, err := New(store, config.CacheConfig{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	store.values["key"] = "{not json"

	var out payload
	if c.GetJSON(context.Background(), "key", &out) {
		t.Fatalf("expected corrupt payload to read as a miss")
	}
}

func TestInvalidateBookDropsDetailSearchAndAggregates(t *testing.T) {
	store := newMemoryStore()
	c, err := New(store, config.CacheConfig{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	bookID := uuid.New()

	c.SetJSON(ctx, c.BookKey(bookID), payload{Name: "detail"}, time.Minute)
	c.SetJSON(ctx, c.SearchKey("dune", nil, nil, 25, 0), payload{Name: "search"}, time.Minute)
	c.SetJSON(ctx, c.BestsellersKey(), payload{Name: "best"}, time.Minute)
	c.SetJSON(ctx, c.TopRatedKey(), payload{Name: "top"}, time.Minute)
	c.SetJSON(ctx, c.CategoryKey(nil), payload{Name: "categories"}, time.Minute)

	if err := c.InvalidateBook(ctx, bookID); err != nil {
		t.Fatalf("InvalidateBook: %v", err)
	}

	var out payload
	if c.GetJSON(ctx, c.BookKey(bookID), &out) {
		t.Fatalf("expected detail entry dropped")
	}
	if c.GetJSON(ctx, c.SearchKey("dune", nil, nil, 25, 0), &out) {
		t.Fatalf("expected search entry dropped")
	}
	if c.GetJSON(ctx, c.BestsellersKey(), &out) {
		t.Fatalf("expected bestsellers entry dropped")
	}
	if !c.GetJSON(ctx, c.CategoryKey(nil), &out) {
		t.Fatalf("expected category listing untouched")
	}
}

func TestSearchKeyDistinguishesParameters(t *testing.T) {
	store := newMemoryStore()
	c, err := New(store, config.CacheConfig{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	categoryID := uuid.New()
	inStock := true
	keys := map[string]bool{}
	for _, key := range []string{
		c.SearchKey("dune", nil, nil, 25, 0),
		c.SearchKey("dune", &categoryID, nil, 25, 0),
		c.SearchKey("dune", nil, &inStock, 25, 0),
		c.SearchKey("dune", nil, nil, 25, 25),
	} {
		if keys[key] {
			t.Fatalf("duplicate cache key %s", key)
		}
		keys[key] = true
	}
}
