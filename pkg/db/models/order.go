package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avelinabooks/bookshop-backend/pkg/enums"
	"github.com/avelinabooks/bookshop-backend/pkg/types"
)

// Order belongs to exactly one of UserID or GuestID. TotalPrice and the
// per-item snapshots are frozen at creation time and never recomputed.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          *uuid.UUID        `gorm:"column:user_id;type:uuid;index"`
	GuestID         *uuid.UUID        `gorm:"column:guest_id;type:uuid;index"`
	Status          enums.OrderStatus `gorm:"column:status;type:varchar(32);not null;default:'pending';index"`
	TotalPrice      decimal.Decimal   `gorm:"column:total_price;type:numeric(12,2);not null"`
	ShippingAddress *types.Address    `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	Phone           *string           `gorm:"column:phone"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
