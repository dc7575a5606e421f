package ratings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avelinabooks/bookshop-backend/pkg/config"
	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
	"github.com/avelinabooks/bookshop-backend/pkg/logger"
)

// ratingLookup is the scraping surface, kept narrow for test stubs.
type ratingLookup interface {
	LookupRating(ctx context.Context, title string, isbn *string) (decimal.Decimal, error)
}

// bookWriter is the catalog surface the backfill writes through.
type bookWriter interface {
	UpdateExternalRating(ctx context.Context, id uuid.UUID, rating decimal.Decimal, at time.Time) error
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Book, error)
	StaleRatingBookIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

// Service refreshes external book ratings and enforces the staleness rule.
type Service struct {
	lookup ratingLookup
	books  bookWriter
	cfg    config.RatingsConfig
	log    *logger.Logger
	now    func() time.Time
}

// NewService constructs the rating backfill service.
func NewService(lookup ratingLookup, books bookWriter, cfg config.RatingsConfig, log *logger.Logger) (*Service, error) {
	if lookup == nil {
		return nil, fmt.Errorf("rating lookup required")
	}
	if books == nil {
		return nil, fmt.Errorf("book repository required")
	}
	return &Service{lookup: lookup, books: books, cfg: cfg, log: log, now: time.Now}, nil
}

// Refresh updates the book's external rating when it is stale. The book is
// mutated in place so callers serve the fresh value without reloading.
func (s *Service) Refresh(ctx context.Context, book *models.Book) error {
	now := s.now()
	if !book.RatingStale(now, s.cfg.Staleness) {
		return nil
	}

	rating, err := s.lookup.LookupRating(ctx, book.Title, book.ISBN)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Remember the attempt so every read does not re-scrape a
			// book the site does not know.
			return s.books.UpdateExternalRating(ctx, book.ID, decimal.Zero, now)
		}
		return err
	}

	if err := s.books.UpdateExternalRating(ctx, book.ID, rating, now); err != nil {
		return err
	}
	book.ExternalRating = &rating
	book.RatingUpdatedAt = &now
	return nil
}

// RefreshStale walks a batch of books with stale ratings. Individual
// failures are logged and skipped; the returned count is how many books
// were updated.
func (s *Service) RefreshStale(ctx context.Context) (int, error) {
	now := s.now()
	cutoff := now.Add(-s.cfg.Staleness)
	ids, err := s.books.StaleRatingBookIDs(ctx, cutoff, s.cfg.RefreshSize)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, id := range ids {
		book, err := s.books.FindForUpdate(ctx, id)
		if err != nil {
			continue
		}
		if err := s.Refresh(ctx, book); err != nil {
			if s.log != nil {
				s.log.Warn(ctx, fmt.Sprintf("rating refresh failed for book %s: %v", id, err))
			}
			continue
		}
		refreshed++
	}
	return refreshed, nil
}
