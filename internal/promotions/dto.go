package promotions

import (
	"time"

	"github.com/google/uuid"

	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
)

// PromotionDTO represents the promotion payload returned to clients.
type PromotionDTO struct {
	ID              uuid.UUID  `json:"id"`
	BookID          uuid.UUID  `json:"book_id"`
	DiscountPercent string     `json:"discount_percent"`
	StartsAt        time.Time  `json:"starts_at"`
	EndsAt          time.Time  `json:"ends_at"`
	Description     *string    `json:"description,omitempty"`
	CreatedBy       *uuid.UUID `json:"created_by,omitempty"`
	Active          bool       `json:"active"`
	CreatedAt       time.Time  `json:"created_at"`
}

// NewPromotionDTO builds a DTO from the persisted model.
func NewPromotionDTO(promo *models.Promotion, now time.Time) *PromotionDTO {
	return &PromotionDTO{
		ID:              promo.ID,
		BookID:          promo.BookID,
		DiscountPercent: promo.DiscountPercent.StringFixed(2),
		StartsAt:        promo.StartsAt,
		EndsAt:          promo.EndsAt,
		Description:     promo.Description,
		CreatedBy:       promo.CreatedBy,
		Active:          promo.ActiveAt(now),
		CreatedAt:       promo.CreatedAt,
	}
}

// NewPromotionDTOs maps a slice of models.
func NewPromotionDTOs(promos []models.Promotion, now time.Time) []PromotionDTO {
	dtos := make([]PromotionDTO, 0, len(promos))
	for i := range promos {
		dtos = append(dtos, *NewPromotionDTO(&promos[i], now))
	}
	return dtos
}
