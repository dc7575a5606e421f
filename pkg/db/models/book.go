package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Book is a catalog entry. StockCount never goes negative: every decrement
// happens through the conditional stock adjustment in the catalog repository.
type Book struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title            string           `gorm:"column:title;not null;index"`
	OriginalTitle    *string          `gorm:"column:original_title;index"`
	Publisher        *string          `gorm:"column:publisher"`
	ISBN             *string          `gorm:"column:isbn;uniqueIndex"`
	Pages            *int             `gorm:"column:pages"`
	Price            decimal.Decimal  `gorm:"column:price;type:numeric(10,2);not null"`
	CoverType        *string          `gorm:"column:cover_type"`
	Language         *string          `gorm:"column:language"`
	Description      *string          `gorm:"column:description"`
	StockCount       int              `gorm:"column:stock_count;not null;default:0"`
	ExternalRating   *decimal.Decimal `gorm:"column:external_rating;type:numeric(4,2)"`
	RatingUpdatedAt  *time.Time       `gorm:"column:rating_updated_at"`
	Categories       []Category       `gorm:"many2many:book_categories"`
	Promotions       []Promotion      `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE"`
	Reviews          []Review         `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// RatingStale reports whether the external rating needs a refresh.
func (b *Book) RatingStale(now time.Time, staleness time.Duration) bool {
	if b.RatingUpdatedAt == nil {
		return true
	}
	return now.Sub(*b.RatingUpdatedAt) >= staleness
}
