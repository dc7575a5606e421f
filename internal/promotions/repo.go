package promotions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
)

// Repository persists promotions.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Promotion, error) {
	var promo models.Promotion
	if err := r.db.WithContext(ctx).First(&promo, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

func (r *Repository) Create(ctx context.Context, promo *models.Promotion) (*models.Promotion, error) {
	if promo.ID == uuid.Nil {
		promo.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(promo).Error; err != nil {
		return nil, err
	}
	return promo, nil
}

func (r *Repository) Update(ctx context.Context, promo *models.Promotion) (*models.Promotion, error) {
	if err := r.db.WithContext(ctx).Save(promo).Error; err != nil {
		return nil, err
	}
	return promo, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Promotion{}).Error
}

// ListActive returns promotions whose window contains now.
func (r *Repository) ListActive(ctx context.Context, now time.Time) ([]models.Promotion, error) {
	var promos []models.Promotion
	err := r.db.WithContext(ctx).
		Where("starts_at <= ? AND ends_at >= ?", now, now).
		Order("ends_at ASC").
		Find(&promos).Error
	if err != nil {
		return nil, err
	}
	return promos, nil
}

// ListForBook returns the full promotion history for a book, newest first.
func (r *Repository) ListForBook(ctx context.Context, bookID uuid.UUID) ([]models.Promotion, error) {
	var promos []models.Promotion
	err := r.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("starts_at DESC").
		Find(&promos).Error
	if err != nil {
		return nil, err
	}
	return promos, nil
}

// BestActiveDiscount returns the highest discount among the book's active
// promotions at the given instant, zero when none apply.
func (r *Repository) BestActiveDiscount(ctx context.Context, bookID uuid.UUID, now time.Time) (decimal.Decimal, error) {
	var promos []models.Promotion
	err := r.db.WithContext(ctx).
		Where("book_id = ? AND starts_at <= ? AND ends_at >= ?", bookID, now, now).
		Find(&promos).Error
	if err != nil {
		return decimal.Zero, err
	}
	best := decimal.Zero
	for i := range promos {
		if promos[i].DiscountPercent.GreaterThan(best) {
			best = promos[i].DiscountPercent
		}
	}
	return best, nil
}
