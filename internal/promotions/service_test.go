package promotions

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avelinabooks/bookshop-backend/internal/catalog"
	"github.com/avelinabooks/bookshop-backend/pkg/cache"
	"github.com/avelinabooks/bookshop-backend/pkg/config"
	"github.com/avelinabooks/bookshop-backend/pkg/db/dbtest"
	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
	pkgerrors "github.com/avelinabooks/bookshop-backend/pkg/errors"
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

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	responseCache, err := cache.New(newMemoryStore(), config.CacheConfig{}, nil)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	svc, err := NewService(NewRepository(conn), catalog.NewRepository(conn), responseCache)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedBook(t *testing.T, conn *gorm.DB) *models.Book {
	t.Helper()
	book := &models.Book{
		ID:         uuid.New(),
		Title:      "Promoted Book",
		Price:      decimal.RequireFromString("20.00"),
		StockCount: 5,
	}
	if err := conn.Create(book).Error; err != nil {
		t.Fatalf("seeding book: %v", err)
	}
	return book
}

func expectCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected code %s, got %v", code, err)
	}
}

func TestCreateValidatesDiscountBounds(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn)
	book := seedBook(t, conn)

	for _, raw := range []string{"0", "-5", "100", "150"} {
		_, err := svc.Create(context.Background(), CreatePromotionInput{
			BookID:          book.ID,
			DiscountPercent: decimal.RequireFromString(raw),
			StartsAt:        time.Now(),
			EndsAt:          time.Now().Add(time.Hour),
		})
		expectCode(t, err, pkgerrors.CodeValidation)
	}
}

func TestCreateValidatesWindow(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn)
	book := seedBook(t, conn)

	now := time.Now()
	_, err := svc.Create(context.Background(), CreatePromotionInput{
		BookID:          book.ID,
		DiscountPercent: decimal.NewFromInt(10),
		StartsAt:        now.Add(time.Hour),
		EndsAt:          now,
	})
	expectCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateRejectsUnknownBook(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn)

	_, err := svc.Create(context.Background(), CreatePromotionInput{
		BookID:          uuid.New(),
		DiscountPercent: decimal.NewFromInt(10),
		StartsAt:        time.Now(),
		EndsAt:          time.Now().Add(time.Hour),
	})
	expectCode(t, err, pkgerrors.CodeNotFound)
}

func TestBestActiveDiscountPicksLargestOverlap(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	book := seedBook(t, conn)
	now := time.Now().UTC()

	seedPromo := func(percent string, startsAt, endsAt time.Time) {
		promo := &models.Promotion{
			ID:              uuid.New(),
			BookID:          book.ID,
			DiscountPercent: decimal.RequireFromString(percent),
			StartsAt:        startsAt,
			EndsAt:          endsAt,
		}
		if err := conn.Create(promo).Error; err != nil {
			t.Fatalf("seeding promotion: %v", err)
		}
	}
	seedPromo("15", now.Add(-time.Hour), now.Add(time.Hour))
	seedPromo("30", now.Add(-time.Minute), now.Add(time.Minute))
	seedPromo("90", now.Add(time.Hour), now.Add(2*time.Hour))   // future
	seedPromo("80", now.Add(-2*time.Hour), now.Add(-time.Hour)) // expired

	best, err := repo.BestActiveDiscount(context.Background(), book.ID, now)
	if err != nil {
		t.Fatalf("BestActiveDiscount: %v", err)
	}
	if !best.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected 30, got %s", best)
	}
}

func TestBestActiveDiscountZeroWithoutPromotions(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	book := seedBook(t, conn)

	best, err := repo.BestActiveDiscount(context.Background(), book.ID, time.Now())
	if err != nil {
		t.Fatalf("BestActiveDiscount: %v", err)
	}
	if !best.IsZero() {
		t.Fatalf("expected zero discount, got %s", best)
	}
}

func TestBestActiveDiscountWindowBoundaries(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	book := seedBook(t, conn)
	now := time.Now().UTC().Truncate(time.Second)

	promo := &models.Promotion{
		ID:              uuid.New(),
		BookID:          book.ID,
		DiscountPercent: decimal.NewFromInt(20),
		StartsAt:        now,
		EndsAt:          now.Add(time.Hour),
	}
	if err := conn.Create(promo).Error; err != nil {
		t.Fatalf("seeding promotion: %v", err)
	}

	// Start instant is inclusive.
	best, err := repo.BestActiveDiscount(context.Background(), book.ID, now)
	if err != nil {
		t.Fatalf("BestActiveDiscount at start: %v", err)
	}
	if !best.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected 20 at window start, got %s", best)
	}

	// End instant is inclusive: a promotion stays active through ends_at.
	best, err = repo.BestActiveDiscount(context.Background(), book.ID, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("BestActiveDiscount at end: %v", err)
	}
	if !best.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected 20 at window end, got %s", best)
	}

	best, err = repo.BestActiveDiscount(context.Background(), book.ID, now.Add(time.Hour+time.Second))
	if err != nil {
		t.Fatalf("BestActiveDiscount past end: %v", err)
	}
	if !best.IsZero() {
		t.Fatalf("expected zero past window end, got %s", best)
	}

	active, err := repo.ListActive(context.Background(), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListActive at end: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active promotion at window end, got %d", len(active))
	}
}

func TestUpdateRevalidatesMergedWindow(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn)
	book := seedBook(t, conn)
	now := time.Now().UTC()

	created, err := svc.Create(context.Background(), CreatePromotionInput{
		BookID:          book.ID,
		DiscountPercent: decimal.NewFromInt(10),
		StartsAt:        now,
		EndsAt:          now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	badStart := now.Add(2 * time.Hour)
	_, err = svc.Update(context.Background(), created.ID, UpdatePromotionInput{StartsAt: &badStart})
	expectCode(t, err, pkgerrors.CodeValidation)

	newPercent := decimal.NewFromInt(45)
	updated, err := svc.Update(context.Background(), created.ID, UpdatePromotionInput{DiscountPercent: &newPercent})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.DiscountPercent != "45.00" {
		t.Fatalf("expected 45.00, got %s", updated.DiscountPercent)
	}
}

func TestDeleteUnknownPromotion(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn)

	err := svc.Delete(context.Background(), uuid.New())
	expectCode(t, err, pkgerrors.CodeNotFound)
}
