package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
	"github.com/avelinabooks/bookshop-backend/pkg/enums"
	"github.com/avelinabooks/bookshop-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	ListForUser(ctx context.Context, userID uuid.UUID, page pagination.Params) ([]models.Order, int64, error)
	ListForGuest(ctx context.Context, guestID uuid.UUID, page pagination.Params) ([]models.Order, int64, error)
	RevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Omit("Items").Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListForUser(ctx context.Context, userID uuid.UUID, page pagination.Params) ([]models.Order, int64, error) {
	return r.list(ctx, "user_id = ?", userID, page)
}

func (r *repository) ListForGuest(ctx context.Context, guestID uuid.UUID, page pagination.Params) ([]models.Order, int64, error) {
	return r.list(ctx, "guest_id = ?", guestID, page)
}

func (r *repository) list(ctx context.Context, cond string, id uuid.UUID, page pagination.Params) ([]models.Order, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Where(cond, id).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where(cond, id).
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// RevenueBetween sums the totals of non-cancelled orders created in [from, to).
func (r *repository) RevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var raw *string
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select("SUM(total_price)").
		Where("status <> ? AND created_at >= ? AND created_at < ?", enums.OrderStatusCancelled, from, to).
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*raw)
}
