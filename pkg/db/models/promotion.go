package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Promotion is a time-windowed percentage discount on a single book.
// A promotion is active when StartsAt <= now < EndsAt.
type Promotion struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BookID          uuid.UUID       `gorm:"column:book_id;type:uuid;not null;index"`
	DiscountPercent decimal.Decimal `gorm:"column:discount_percent;type:numeric(5,2);not null"`
	StartsAt        time.Time       `gorm:"column:starts_at;not null"`
	EndsAt          time.Time       `gorm:"column:ends_at;not null;index"`
	Description     *string         `gorm:"column:description"`
	CreatedBy       *uuid.UUID      `gorm:"column:created_by;type:uuid"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// ActiveAt reports whether the promotion window covers the given instant.
func (p *Promotion) ActiveAt(now time.Time) bool {
	return !now.Before(p.StartsAt) && now.Before(p.EndsAt)
}
