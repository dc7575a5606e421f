package reviews

import (
	"time"

	"github.com/google/uuid"

	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
)

// ReviewDTO represents the review payload returned to clients.
type ReviewDTO struct {
	ID        uuid.UUID `json:"id"`
	BookID    uuid.UUID `json:"book_id"`
	UserID    uuid.UUID `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReviewListResult pairs a page of reviews with the total count.
type ReviewListResult struct {
	Reviews []ReviewDTO `json:"reviews"`
	Total   int64       `json:"total"`
}

// RatedBookDTO is one leaderboard entry for top-rated books.
type RatedBookDTO struct {
	BookID        uuid.UUID `json:"book_id"`
	Title         string    `json:"title"`
	AverageRating float64   `json:"average_rating"`
	ReviewCount   int64     `json:"review_count"`
}

// NewReviewDTO builds a DTO from the persisted model.
func NewReviewDTO(review *models.Review) *ReviewDTO {
	return &ReviewDTO{
		ID:        review.ID,
		BookID:    review.BookID,
		UserID:    review.UserID,
		Rating:    review.Rating,
		Comment:   review.Comment,
		CreatedAt: review.CreatedAt,
		UpdatedAt: review.UpdatedAt,
	}
}

// NewReviewListResult maps a page of models.
func NewReviewListResult(reviews []models.Review, total int64) *ReviewListResult {
	result := &ReviewListResult{Total: total, Reviews: make([]ReviewDTO, 0, len(reviews))}
	for i := range reviews {
		result.Reviews = append(result.Reviews, *NewReviewDTO(&reviews[i]))
	}
	return result
}
