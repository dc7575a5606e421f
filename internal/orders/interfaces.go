package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avelinabooks/bookshop-backend/internal/catalog"
	"github.com/avelinabooks/bookshop-backend/internal/promotions"
	"github.com/avelinabooks/bookshop-backend/internal/users"
	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
	"github.com/avelinabooks/bookshop-backend/pkg/enums"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// BookStore is the catalog surface the pricing engine needs. Every method
// takes the active transaction so cart lines observe each other's decrements.
type BookStore interface {
	FindBook(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Book, error)
	AdjustStock(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta int) error
}

// PromotionSource resolves the best active discount for a book.
type PromotionSource interface {
	BestActiveDiscount(ctx context.Context, tx *gorm.DB, bookID uuid.UUID, now time.Time) (decimal.Decimal, error)
}

// AccountLedger is the account surface the engine mutates inside the order
// transaction.
type AccountLedger interface {
	FindUser(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.User, error)
	FindGuest(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Guest, error)
	AddToSpent(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta decimal.Decimal) error
	SetTier(ctx context.Context, tx *gorm.DB, id uuid.UUID, tier enums.UserTier) error
}

type catalogAdapter struct {
	repo *catalog.Repository
}

// NewBookStore adapts the catalog repository to the engine's surface.
func NewBookStore(repo *catalog.Repository) BookStore {
	return catalogAdapter{repo: repo}
}

func (a catalogAdapter) FindBook(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Book, error) {
	return a.repo.WithTx(tx).FindForUpdate(ctx, id)
}

func (a catalogAdapter) AdjustStock(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta int) error {
	return a.repo.WithTx(tx).AdjustStock(ctx, id, delta)
}

type promotionsAdapter struct {
	repo *promotions.Repository
}

// NewPromotionSource adapts the promotions repository to the engine's surface.
func NewPromotionSource(repo *promotions.Repository) PromotionSource {
	return promotionsAdapter{repo: repo}
}

func (a promotionsAdapter) BestActiveDiscount(ctx context.Context, tx *gorm.DB, bookID uuid.UUID, now time.Time) (decimal.Decimal, error) {
	return a.repo.WithTx(tx).BestActiveDiscount(ctx, bookID, now)
}

type ledgerAdapter struct {
	users  *users.Repository
	guests *users.GuestRepository
}

// NewAccountLedger adapts the user and guest repositories to the engine's surface.
func NewAccountLedger(userRepo *users.Repository, guestRepo *users.GuestRepository) AccountLedger {
	return ledgerAdapter{users: userRepo, guests: guestRepo}
}

func (a ledgerAdapter) FindUser(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.User, error) {
	return a.users.WithTx(tx).FindByID(ctx, id)
}

func (a ledgerAdapter) FindGuest(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Guest, error) {
	return a.guests.WithTx(tx).FindByID(ctx, id)
}

func (a ledgerAdapter) AddToSpent(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta decimal.Decimal) error {
	return a.users.WithTx(tx).AddToSpent(ctx, id, delta)
}

func (a ledgerAdapter) SetTier(ctx context.Context, tx *gorm.DB, id uuid.UUID, tier enums.UserTier) error {
	return a.users.WithTx(tx).SetTier(ctx, id, tier)
}
