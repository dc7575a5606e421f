package promotions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avelinabooks/bookshop-backend/pkg/cache"
	"github.com/avelinabooks/bookshop-backend/pkg/db"
	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
	pkgerrors "github.com/avelinabooks/bookshop-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Service exposes promotion management operations.
type Service interface {
	Create(ctx context.Context, input CreatePromotionInput) (*PromotionDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdatePromotionInput) (*PromotionDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListActive(ctx context.Context) ([]PromotionDTO, error)
	ListForBook(ctx context.Context, bookID uuid.UUID) ([]PromotionDTO, error)
}

// CreatePromotionInput holds the validated payload to create a promotion.
type CreatePromotionInput struct {
	BookID          uuid.UUID
	DiscountPercent decimal.Decimal
	StartsAt        time.Time
	EndsAt          time.Time
	Description     *string
	CreatedBy       *uuid.UUID
}

// UpdatePromotionInput holds optional mutation values for a promotion.
type UpdatePromotionInput struct {
	DiscountPercent *decimal.Decimal
	StartsAt        *time.Time
	EndsAt          *time.Time
	Description     *string
}

type bookChecker interface {
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Book, error)
}

type service struct {
	repo  *Repository
	books bookChecker
	cache *cache.Cache
	now   func() time.Time
}

// NewService constructs a promotion service instance.
func NewService(repo *Repository, books bookChecker, responseCache *cache.Cache) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("promotion repository required")
	}
	if books == nil {
		return nil, fmt.Errorf("book repository required")
	}
	if responseCache == nil {
		return nil, fmt.Errorf("response cache required")
	}
	return &service{repo: repo, books: books, cache: responseCache, now: time.Now}, nil
}

func validateWindow(startsAt, endsAt time.Time) error {
	if !startsAt.Before(endsAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "starts_at must precede ends_at")
	}
	return nil
}

func validateDiscount(percent decimal.Decimal) error {
	if !percent.IsPositive() || percent.GreaterThanOrEqual(hundred) {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount_percent must be between 0 and 100 exclusive")
	}
	return nil
}

// Create registers a promotion for an existing book.
func (s *service) Create(ctx context.Context, input CreatePromotionInput) (*PromotionDTO, error) {
	if err := validateDiscount(input.DiscountPercent); err != nil {
		return nil, err
	}
	if err := validateWindow(input.StartsAt, input.EndsAt); err != nil {
		return nil, err
	}
	if _, err := s.books.FindForUpdate(ctx, input.BookID); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load book")
	}

	promo := &models.Promotion{
		BookID:          input.BookID,
		DiscountPercent: input.DiscountPercent,
		StartsAt:        input.StartsAt.UTC(),
		EndsAt:          input.EndsAt.UTC(),
		Description:     input.Description,
		CreatedBy:       input.CreatedBy,
	}
	created, err := s.repo.Create(ctx, promo)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert promotion")
	}

	s.cache.InvalidateBook(ctx, input.BookID)
	return NewPromotionDTO(created, s.now()), nil
}

// Update mutates an existing promotion's window, discount or description.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdatePromotionInput) (*PromotionDTO, error) {
	promo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promotion not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load promotion")
	}

	if input.DiscountPercent != nil {
		if err := validateDiscount(*input.DiscountPercent); err != nil {
			return nil, err
		}
		promo.DiscountPercent = *input.DiscountPercent
	}
	if input.StartsAt != nil {
		promo.StartsAt = input.StartsAt.UTC()
	}
	if input.EndsAt != nil {
		promo.EndsAt = input.EndsAt.UTC()
	}
	if err := validateWindow(promo.StartsAt, promo.EndsAt); err != nil {
		return nil, err
	}
	if input.Description != nil {
		promo.Description = input.Description
	}

	updated, err := s.repo.Update(ctx, promo)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update promotion")
	}

	s.cache.InvalidateBook(ctx, promo.BookID)
	return NewPromotionDTO(updated, s.now()), nil
}

// Delete removes a promotion.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	promo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "promotion not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load promotion")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete promotion")
	}
	s.cache.InvalidateBook(ctx, promo.BookID)
	return nil
}

// ListActive returns all promotions currently in their window.
func (s *service) ListActive(ctx context.Context) ([]PromotionDTO, error) {
	promos, err := s.repo.ListActive(ctx, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list active promotions")
	}
	return NewPromotionDTOs(promos, s.now()), nil
}

// ListForBook returns the promotion history for a book.
func (s *service) ListForBook(ctx context.Context, bookID uuid.UUID) ([]PromotionDTO, error) {
	if _, err := s.books.FindForUpdate(ctx, bookID); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load book")
	}
	promos, err := s.repo.ListForBook(ctx, bookID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list promotions")
	}
	return NewPromotionDTOs(promos, s.now()), nil
}
