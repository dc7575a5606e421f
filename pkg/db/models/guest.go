package models

import (
	"time"

	"github.com/google/uuid"
)

// Guest is the buyer record behind an order placed without registration.
// Guests with no recent orders are purged by the cleanup job.
type Guest struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email     *string   `gorm:"column:email;index"`
	Phone     string    `gorm:"column:phone;not null"`
	FullName  *string   `gorm:"column:full_name"`
	Orders    []Order   `gorm:"foreignKey:GuestID"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
