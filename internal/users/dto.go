package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
)

// UserDTO represents the account payload returned to clients. The password
// hash and TOTP secret never leave the service layer.
type UserDTO struct {
	ID               uuid.UUID `json:"id"`
	Email            string    `json:"email"`
	Username         string    `json:"username"`
	Phone            *string   `json:"phone,omitempty"`
	FullName         *string   `json:"full_name,omitempty"`
	Tier             string    `json:"tier"`
	IsActive         bool      `json:"is_active"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	TotalSpent       string    `json:"total_spent"`
	CreatedAt        time.Time `json:"created_at"`
}

// UserListResult pairs a page of accounts with the total count.
type UserListResult struct {
	Users []UserDTO `json:"users"`
	Total int64     `json:"total"`
}

// GuestDTO represents a guest checkout identity.
type GuestDTO struct {
	ID        uuid.UUID `json:"id"`
	Email     *string   `json:"email,omitempty"`
	Phone     string    `json:"phone"`
	FullName  *string   `json:"full_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserDTO builds a DTO from the persisted model.
func NewUserDTO(user *models.User) *UserDTO {
	return &UserDTO{
		ID:               user.ID,
		Email:            user.Email,
		Username:         user.Username,
		Phone:            user.Phone,
		FullName:         user.FullName,
		Tier:             user.Tier.String(),
		IsActive:         user.IsActive,
		TwoFactorEnabled: user.TwoFactorEnabled,
		TotalSpent:       user.TotalSpent.StringFixed(2),
		CreatedAt:        user.CreatedAt,
	}
}

// NewGuestDTO builds a DTO from the persisted model.
func NewGuestDTO(guest *models.Guest) *GuestDTO {
	return &GuestDTO{
		ID:        guest.ID,
		Email:     guest.Email,
		Phone:     guest.Phone,
		FullName:  guest.FullName,
		CreatedAt: guest.CreatedAt,
	}
}
