package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem snapshots the unit price and discount applied to one cart line.
// Position preserves the line order the buyer submitted.
type OrderItem struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	BookID          uuid.UUID       `gorm:"column:book_id;type:uuid;not null;index"`
	Position        int             `gorm:"column:position;not null"`
	Quantity        int             `gorm:"column:quantity;not null"`
	PricePerItem    decimal.Decimal `gorm:"column:price_per_item;type:numeric(10,2);not null"`
	DiscountPercent decimal.Decimal `gorm:"column:discount_percent;type:numeric(5,2);not null"`
}
