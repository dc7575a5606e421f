package reviews

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avelinabooks/bookshop-backend/pkg/cache"
	"github.com/avelinabooks/bookshop-backend/pkg/db"
	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
	"github.com/avelinabooks/bookshop-backend/pkg/enums"
	pkgerrors "github.com/avelinabooks/bookshop-backend/pkg/errors"
	"github.com/avelinabooks/bookshop-backend/pkg/pagination"
)

const (
	// reviewCooldown is how long a user must wait before reviewing the
	// same book again.
	reviewCooldown = 21 * 24 * time.Hour
	// topRatedMinReviews keeps books with a single five-star review off
	// the leaderboard.
	topRatedMinReviews = 3
)

// Service exposes review operations.
type Service interface {
	Create(ctx context.Context, input CreateReviewInput) (*ReviewDTO, error)
	Update(ctx context.Context, actorID uuid.UUID, actorTier enums.UserTier, reviewID uuid.UUID, input UpdateReviewInput) (*ReviewDTO, error)
	Delete(ctx context.Context, actorID uuid.UUID, actorTier enums.UserTier, reviewID uuid.UUID) error
	ListForBook(ctx context.Context, bookID uuid.UUID, page pagination.Params) (*ReviewListResult, error)
	ListForUser(ctx context.Context, userID uuid.UUID, page pagination.Params) (*ReviewListResult, error)
	TopRated(ctx context.Context, limit int) ([]RatedBookDTO, error)
}

// CreateReviewInput holds the validated payload to create a review.
type CreateReviewInput struct {
	BookID  uuid.UUID
	UserID  uuid.UUID
	Rating  int
	Comment *string
}

// UpdateReviewInput holds optional mutation values for a review.
type UpdateReviewInput struct {
	Rating  *int
	Comment *string
}

type bookChecker interface {
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Book, error)
}

type userChecker interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type service struct {
	repo  *Repository
	books bookChecker
	users userChecker
	cache *cache.Cache
	now   func() time.Time
}

// NewService constructs a review service instance.
func NewService(repo *Repository, books bookChecker, users userChecker, responseCache *cache.Cache) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if books == nil {
		return nil, fmt.Errorf("book repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if responseCache == nil {
		return nil, fmt.Errorf("response cache required")
	}
	return &service{repo: repo, books: books, users: users, cache: responseCache, now: time.Now}, nil
}

func validateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	return nil
}

// Create stores a review after the per-book cooldown check.
func (s *service) Create(ctx context.Context, input CreateReviewInput) (*ReviewDTO, error) {
	if err := validateRating(input.Rating); err != nil {
		return nil, err
	}
	if _, err := s.books.FindForUpdate(ctx, input.BookID); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load book")
	}
	if _, err := s.users.FindByID(ctx, input.UserID); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load user")
	}

	latest, err := s.repo.LatestForUserAndBook(ctx, input.UserID, input.BookID)
	if err != nil && !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load latest review")
	}
	if latest != nil && s.now().Sub(latest.CreatedAt) < reviewCooldown {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "this book was reviewed recently, try again later")
	}

	review, err := s.repo.Create(ctx, &models.Review{
		BookID:  input.BookID,
		UserID:  input.UserID,
		Rating:  input.Rating,
		Comment: input.Comment,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert review")
	}

	s.cache.Drop(ctx, s.cache.TopRatedKey())
	return NewReviewDTO(review), nil
}

// Update mutates a review. Only the author or a moderator may edit.
func (s *service) Update(ctx context.Context, actorID uuid.UUID, actorTier enums.UserTier, reviewID uuid.UUID, input UpdateReviewInput) (*ReviewDTO, error) {
	review, err := s.loadAuthorized(ctx, actorID, actorTier, reviewID)
	if err != nil {
		return nil, err
	}

	if input.Rating != nil {
		if err := validateRating(*input.Rating); err != nil {
			return nil, err
		}
		review.Rating = *input.Rating
	}
	if input.Comment != nil {
		review.Comment = input.Comment
	}

	updated, err := s.repo.Update(ctx, review)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update review")
	}
	s.cache.Drop(ctx, s.cache.TopRatedKey())
	return NewReviewDTO(updated), nil
}

// Delete removes a review. Only the author or a moderator may delete.
func (s *service) Delete(ctx context.Context, actorID uuid.UUID, actorTier enums.UserTier, reviewID uuid.UUID) error {
	if _, err := s.loadAuthorized(ctx, actorID, actorTier, reviewID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, reviewID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete review")
	}
	s.cache.Drop(ctx, s.cache.TopRatedKey())
	return nil
}

func (s *service) loadAuthorized(ctx context.Context, actorID uuid.UUID, actorTier enums.UserTier, reviewID uuid.UUID) (*models.Review, error) {
	review, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load review")
	}
	if review.UserID != actorID && !actorTier.AtLeast(enums.TierModerator) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to modify this review")
	}
	return review, nil
}

func (s *service) ListForBook(ctx context.Context, bookID uuid.UUID, page pagination.Params) (*ReviewListResult, error) {
	reviews, total, err := s.repo.ListForBook(ctx, bookID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list reviews")
	}
	return NewReviewListResult(reviews, total), nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, page pagination.Params) (*ReviewListResult, error) {
	reviews, total, err := s.repo.ListForUser(ctx, userID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list reviews")
	}
	return NewReviewListResult(reviews, total), nil
}

// TopRated serves the cached rating leaderboard.
func (s *service) TopRated(ctx context.Context, limit int) ([]RatedBookDTO, error) {
	key := s.cache.TopRatedKey()
	var cached []RatedBookDTO
	if s.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	rows, err := s.repo.TopRated(ctx, topRatedMinReviews, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: top rated")
	}
	dtos := make([]RatedBookDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, RatedBookDTO{
			BookID:        row.BookID,
			Title:         row.Title,
			AverageRating: row.AverageRating,
			ReviewCount:   row.ReviewCount,
		})
	}
	s.cache.SetJSON(ctx, key, dtos, s.cache.ListTTL())
	return dtos, nil
}
