package ratings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avelinabooks/bookshop-backend/pkg/config"
	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
)

type fakeLookup struct {
	rating  decimal.Decimal
	err     error
	lookups int
}

func (f *fakeLookup) LookupRating(ctx context.Context, title string, isbn *string) (decimal.Decimal, error) {
	f.lookups++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.rating, nil
}

type fakeBookWriter struct {
	books   map[uuid.UUID]*models.Book
	stale   []uuid.UUID
	updates map[uuid.UUID]decimal.Decimal
}

func newFakeBookWriter(books ...*models.Book) *fakeBookWriter {
	w := &fakeBookWriter{
		books:   make(map[uuid.UUID]*models.Book),
		updates: make(map[uuid.UUID]decimal.Decimal),
	}
	for _, book := range books {
		w.books[book.ID] = book
	}
	return w
}

func (w *fakeBookWriter) UpdateExternalRating(ctx context.Context, id uuid.UUID, rating decimal.Decimal, at time.Time) error {
	w.updates[id] = rating
	return nil
}

func (w *fakeBookWriter) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	book, ok := w.books[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return book, nil
}

func (w *fakeBookWriter) StaleRatingBookIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	if len(w.stale) > limit {
		return w.stale[:limit], nil
	}
	return w.stale, nil
}

func newRefreshService(t *testing.T, lookup *fakeLookup, books *fakeBookWriter) *Service {
	t.Helper()
	svc, err := NewService(lookup, books, config.RatingsConfig{
		Staleness:   24 * time.Hour,
		RefreshSize: 25,
	}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRefreshSkipsFreshRating(t *testing.T) {
	now := time.Now().UTC()
	rating := decimal.RequireFromString("4.1")
	book := &models.Book{ID: uuid.New(), Title: "Fresh", ExternalRating: &rating, RatingUpdatedAt: &now}
	lookup := &fakeLookup{}
	svc := newRefreshService(t, lookup, newFakeBookWriter(book))

	if err := svc.Refresh(context.Background(), book); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if lookup.lookups != 0 {
		t.Fatalf("expected no lookup for a fresh rating, got %d", lookup.lookups)
	}
}

func TestRefreshUpdatesStaleRatingInPlace(t *testing.T) {
	book := &models.Book{ID: uuid.New(), Title: "Stale"}
	lookup := &fakeLookup{rating: decimal.RequireFromString("3.85")}
	books := newFakeBookWriter(book)
	svc := newRefreshService(t, lookup, books)

	if err := svc.Refresh(context.Background(), book); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !books.updates[book.ID].Equal(lookup.rating) {
		t.Fatalf("expected stored rating %s, got %s", lookup.rating, books.updates[book.ID])
	}
	if book.ExternalRating == nil || !book.ExternalRating.Equal(lookup.rating) {
		t.Fatalf("expected book mutated with fresh rating")
	}
	if book.RatingUpdatedAt == nil {
		t.Fatalf("expected rating timestamp set")
	}
}

func TestRefreshStoresZeroForUnknownBooks(t *testing.T) {
	book := &models.Book{ID: uuid.New(), Title: "Unknown"}
	lookup := &fakeLookup{err: ErrNotFound}
	books := newFakeBookWriter(book)
	svc := newRefreshService(t, lookup, books)

	if err := svc.Refresh(context.Background(), book); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	stored, ok := books.updates[book.ID]
	if !ok || !stored.IsZero() {
		t.Fatalf("expected zero rating recorded, got %v (ok=%t)", stored, ok)
	}
}

func TestRefreshPropagatesTransportErrors(t *testing.T) {
	book := &models.Book{ID: uuid.New(), Title: "Flaky"}
	lookup := &fakeLookup{err: errors.New("connection reset")}
	books := newFakeBookWriter(book)
	svc := newRefreshService(t, lookup, books)

	if err := svc.Refresh(context.Background(), book); err == nil {
		t.Fatalf("expected transport error to propagate")
	}
	if len(books.updates) != 0 {
		t.Fatalf("expected no write on transport failure")
	}
}

func TestRefreshStaleSkipsFailuresAndCounts(t *testing.T) {
	good := &models.Book{ID: uuid.New(), Title: "Good"}
	alsoGood := &models.Book{ID: uuid.New(), Title: "Also Good"}
	books := newFakeBookWriter(good, alsoGood)
	books.stale = []uuid.UUID{good.ID, uuid.New(), alsoGood.ID}
	lookup := &fakeLookup{rating: decimal.RequireFromString("4.0")}
	svc := newRefreshService(t, lookup, books)

	refreshed, err := svc.RefreshStale(context.Background())
	if err != nil {
		t.Fatalf("RefreshStale: %v", err)
	}
	if refreshed != 2 {
		t.Fatalf("expected 2 refreshed, got %d", refreshed)
	}
}
