package catalog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avelinabooks/bookshop-backend/pkg/cache"
	"github.com/avelinabooks/bookshop-backend/pkg/config"
	"github.com/avelinabooks/bookshop-backend/pkg/db"
	"github.com/avelinabooks/bookshop-backend/pkg/db/dbtest"
	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
	pkgerrors "github.com/avelinabooks/bookshop-backend/pkg/errors"
	"github.com/avelinabooks/bookshop-backend/pkg/pagination"
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

type fakeRefresher struct {
	refreshes int
}

func (f *fakeRefresher) Refresh(ctx context.Context, book *models.Book) error {
	f.refreshes++
	rating := decimal.RequireFromString("4.5")
	now := time.Now().UTC()
	book.ExternalRating = &rating
	book.RatingUpdatedAt = &now
	return nil
}

func newTestService(t *testing.T, conn *gorm.DB, refresher ratingRefresher) Service {
	t.Helper()
	responseCache, err := cache.New(newMemoryStore(), config.CacheConfig{}, nil)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	svc, err := NewService(NewRepository(conn), NewCategoryRepository(conn), db.NewWithConn(conn), responseCache, refresher, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func expectCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected code %s, got %v", code, err)
	}
}

func TestCreateBookValidation(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn, nil)
	ctx := context.Background()

	_, err := svc.CreateBook(ctx, CreateBookInput{Title: "  ", Price: decimal.NewFromInt(10)})
	expectCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.CreateBook(ctx, CreateBookInput{Title: "Free Book", Price: decimal.Zero})
	expectCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.CreateBook(ctx, CreateBookInput{Title: "Backorder", Price: decimal.NewFromInt(10), StockCount: -1})
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateBookRejectsDuplicateISBN(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn, nil)
	ctx := context.Background()

	isbn := "9780441013593"
	if _, err := svc.CreateBook(ctx, CreateBookInput{Title: "Dune", Price: decimal.NewFromInt(12), ISBN: &isbn}); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	_, err := svc.CreateBook(ctx, CreateBookInput{Title: "Dune Again", Price: decimal.NewFromInt(12), ISBN: &isbn})
	expectCode(t, err, pkgerrors.CodeConflict)
}

func TestCreateBookAssignsCategories(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn, nil)
	ctx := context.Background()

	category, err := svc.CreateCategory(ctx, CategoryInput{Name: "scifi"})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	created, err := svc.CreateBook(ctx, CreateBookInput{
		Title:       "Dune",
		Price:       decimal.NewFromInt(12),
		StockCount:  3,
		CategoryIDs: []uuid.UUID{category.ID},
	})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if len(created.Categories) != 1 || created.Categories[0].Name != "scifi" {
		t.Fatalf("expected scifi category on book, got %+v", created.Categories)
	}
}

func TestGetBookCachesAndRefreshesRating(t *testing.T) {
	conn := dbtest.Open(t)
	refresher := &fakeRefresher{}
	svc := newTestService(t, conn, refresher)
	ctx := context.Background()

	created, err := svc.CreateBook(ctx, CreateBookInput{Title: "Dune", Price: decimal.NewFromInt(12), StockCount: 1})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	first, err := svc.GetBook(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if refresher.refreshes != 1 {
		t.Fatalf("expected one rating refresh, got %d", refresher.refreshes)
	}
	if first.ExternalRating == nil || *first.ExternalRating != "4.50" {
		t.Fatalf("expected refreshed rating in payload, got %v", first.ExternalRating)
	}

	// Second read is served from cache without touching the refresher.
	if _, err := svc.GetBook(ctx, created.ID); err != nil {
		t.Fatalf("GetBook cached: %v", err)
	}
	if refresher.refreshes != 1 {
		t.Fatalf("expected cached read to skip refresh, got %d", refresher.refreshes)
	}
}

func TestGetBookUnknownID(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn, nil)

	_, err := svc.GetBook(context.Background(), uuid.New())
	expectCode(t, err, pkgerrors.CodeNotFound)
}

func TestUpdateBookInvalidatesCachedPayload(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn, nil)
	ctx := context.Background()

	created, err := svc.CreateBook(ctx, CreateBookInput{Title: "Dune", Price: decimal.NewFromInt(12), StockCount: 1})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if _, err := svc.GetBook(ctx, created.ID); err != nil {
		t.Fatalf("GetBook: %v", err)
	}

	newTitle := "Dune Messiah"
	if _, err := svc.UpdateBook(ctx, created.ID, UpdateBookInput{Title: &newTitle}); err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}

	reloaded, err := svc.GetBook(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetBook after update: %v", err)
	}
	if reloaded.Title != "Dune Messiah" {
		t.Fatalf("expected updated title served, got %s", reloaded.Title)
	}
}

func TestListBooksCachesOnlySimpleQueries(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn, nil)
	ctx := context.Background()

	if _, err := svc.CreateBook(ctx, CreateBookInput{Title: "Dune", Price: decimal.NewFromInt(12), StockCount: 1}); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	result, err := svc.ListBooks(ctx, ListBooksFilter{}, pagination.Params{})
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("expected 1 book, got %d", result.Total)
	}

	// Price-banded queries bypass the cache, sorted ones too.
	minPrice := decimal.NewFromInt(1)
	if _, err := svc.ListBooks(ctx, ListBooksFilter{MinPrice: &minPrice}, pagination.Params{}); err != nil {
		t.Fatalf("ListBooks with price filter: %v", err)
	}
}

func TestLinkSubcategoryRules(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn, nil)
	ctx := context.Background()

	parent, err := svc.CreateCategory(ctx, CategoryInput{Name: "fiction"})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	child, err := svc.CreateCategory(ctx, CategoryInput{Name: "fantasy"})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	err = svc.LinkSubcategory(ctx, parent.ID, parent.ID)
	expectCode(t, err, pkgerrors.CodeValidation)

	err = svc.LinkSubcategory(ctx, parent.ID, uuid.New())
	expectCode(t, err, pkgerrors.CodeNotFound)

	if err := svc.LinkSubcategory(ctx, parent.ID, child.ID); err != nil {
		t.Fatalf("LinkSubcategory: %v", err)
	}

	reloaded, err := svc.GetCategory(ctx, parent.ID)
	if err != nil {
		t.Fatalf("GetCategory: %v", err)
	}
	if len(reloaded.Subcategories) != 1 || reloaded.Subcategories[0].Name != "fantasy" {
		t.Fatalf("expected fantasy subcategory, got %+v", reloaded.Subcategories)
	}
}

func TestCreateCategoryRejectsDuplicateName(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn, nil)
	ctx := context.Background()

	if _, err := svc.CreateCategory(ctx, CategoryInput{Name: "poetry"}); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	_, err := svc.CreateCategory(ctx, CategoryInput{Name: "poetry"})
	expectCode(t, err, pkgerrors.CodeConflict)
}
