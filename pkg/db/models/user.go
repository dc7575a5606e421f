package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avelinabooks/bookshop-backend/pkg/enums"
)

// User is a registered account. TotalSpent accumulates the totals of the
// user's non-cancelled orders and drives the VIP upgrade.
type User struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email            string          `gorm:"column:email;not null;uniqueIndex"`
	Username         string          `gorm:"column:username;not null;uniqueIndex"`
	HashedPassword   string          `gorm:"column:hashed_password;not null"`
	Phone            *string         `gorm:"column:phone"`
	FullName         *string         `gorm:"column:full_name"`
	Tier             enums.UserTier  `gorm:"column:tier;type:text;not null;default:'user'"`
	IsActive         bool            `gorm:"column:is_active;not null;default:true"`
	TwoFactorEnabled bool            `gorm:"column:two_factor_enabled;not null;default:false"`
	TwoFactorSecret  *string         `gorm:"column:two_factor_secret"`
	TotalSpent       decimal.Decimal `gorm:"column:total_spent;type:numeric(12,2);not null;default:0"`
	Orders           []Order         `gorm:"foreignKey:UserID"`
	Reviews          []Review        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
