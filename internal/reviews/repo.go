package reviews

import (
	"context"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
	"github.com/avelinabooks/bookshop-backend/pkg/pagination"
)

// RatedBook is one row of the top-rated leaderboard.
type RatedBook struct {
	BookID        uuid.UUID
	Title         string
	AverageRating float64
	ReviewCount   int64
}

// Repository persists book reviews.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	if err := r.db.WithContext(ctx).First(&review, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *Repository) Create(ctx context.Context, review *models.Review) (*models.Review, error) {
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(review).Error; err != nil {
		return nil, err
	}
	return review, nil
}

func (r *Repository) Update(ctx context.Context, review *models.Review) (*models.Review, error) {
	if err := r.db.WithContext(ctx).Save(review).Error; err != nil {
		return nil, err
	}
	return review, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Review{}).Error
}

// LatestForUserAndBook returns the user's most recent review of the book,
// gorm.ErrRecordNotFound when they have never reviewed it.
func (r *Repository) LatestForUserAndBook(ctx context.Context, userID, bookID uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Order("created_at DESC").
		First(&review).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *Repository) ListForBook(ctx context.Context, bookID uuid.UUID, page pagination.Params) ([]models.Review, int64, error) {
	return r.list(ctx, "book_id = ?", bookID, page)
}

func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, page pagination.Params) ([]models.Review, int64, error) {
	return r.list(ctx, "user_id = ?", userID, page)
}

func (r *Repository) list(ctx context.Context, cond string, id uuid.UUID, page pagination.Params) ([]models.Review, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Review{}).Where(cond, id).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reviews []models.Review
	err := r.db.WithContext(ctx).
		Where(cond, id).
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&reviews).Error
	if err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

// TopRated returns books by average rating, restricted to books with at
// least minReviews reviews.
func (r *Repository) TopRated(ctx context.Context, minReviews int64, limit int) ([]RatedBook, error) {
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}
	var rows []RatedBook
	err := r.db.WithContext(ctx).Model(&models.Review{}).
		Select("reviews.book_id AS book_id, books.title AS title, AVG(reviews.rating) AS average_rating, COUNT(reviews.id) AS review_count").
		Joins("JOIN books ON books.id = reviews.book_id").
		Group("reviews.book_id, books.title").
		Having("COUNT(reviews.id) >= ?", minReviews).
		Order("average_rating DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
