package models

import (
	"time"

	"github.com/google/uuid"
)

type Review struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BookID    uuid.UUID `gorm:"column:book_id;type:uuid;not null;index:idx_reviews_book_user"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:idx_reviews_book_user"`
	Rating    int       `gorm:"column:rating;not null"`
	Comment   *string   `gorm:"column:comment"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
