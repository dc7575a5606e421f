package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
	"github.com/avelinabooks/bookshop-backend/pkg/enums"
	pkgerrors "github.com/avelinabooks/bookshop-backend/pkg/errors"
	"github.com/avelinabooks/bookshop-backend/pkg/pagination"
)

// BookSort names the supported orderings for book listings.
type BookSort string

const (
	BookSortTitle     BookSort = "title"
	BookSortPriceAsc  BookSort = "price_asc"
	BookSortPriceDesc BookSort = "price_desc"
	BookSortNewest    BookSort = "newest"
)

// ListBooksFilter captures the search and filter inputs for book listings.
type ListBooksFilter struct {
	Query      string
	CategoryID *uuid.UUID
	InStock    *bool
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Sort       BookSort
}

// Repository wires together book and category persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the book with its categories.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).Preload("Categories").First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// FindForUpdate loads the book row without associations.
func (r *Repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// FindByISBN loads a book by its ISBN.
func (r *Repository) FindByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, "isbn = ?", isbn).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// Create inserts a new book row.
func (r *Repository) Create(ctx context.Context, book *models.Book) (*models.Book, error) {
	if book.ID == uuid.Nil {
		book.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		return nil, err
	}
	return book, nil
}

// Update persists the full book row.
func (r *Repository) Update(ctx context.Context, book *models.Book) (*models.Book, error) {
	if err := r.db.WithContext(ctx).Save(book).Error; err != nil {
		return nil, err
	}
	return book, nil
}

// Delete removes a book by ID.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Book{}).Error
}

// AdjustStock atomically applies a signed delta to the book's stock. The
// WHERE clause keeps the counter non-negative so two concurrent buyers can
// never both take the last copy.
func (r *Repository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE books
		 SET stock_count = stock_count + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND stock_count + ? >= 0`,
		delta, id, delta,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Book{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough copies in stock")
}

// UpdateExternalRating stores a freshly scraped rating for the book.
func (r *Repository) UpdateExternalRating(ctx context.Context, id uuid.UUID, rating decimal.Decimal, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Book{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"external_rating":   rating,
			"rating_updated_at": at,
		}).Error
}

// StaleRatingBookIDs returns books whose external rating is missing or older
// than the cutoff, oldest first.
func (r *Repository) StaleRatingBookIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.Book{}).
		Where("rating_updated_at IS NULL OR rating_updated_at < ?", cutoff).
		Order("rating_updated_at ASC NULLS FIRST").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// List returns books matching the filter plus the total match count.
func (r *Repository) List(ctx context.Context, filter ListBooksFilter, page pagination.Params) ([]models.Book, int64, error) {
	page = page.Normalize()

	query := r.db.WithContext(ctx).Model(&models.Book{})
	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		query = query.Where("LOWER(title) LIKE LOWER(?) OR LOWER(original_title) LIKE LOWER(?)", pattern, pattern)
	}
	if filter.CategoryID != nil {
		query = query.
			Joins("JOIN book_categories bc ON bc.book_id = books.id").
			Where("bc.category_id = ?", *filter.CategoryID)
	}
	if filter.InStock != nil {
		if *filter.InStock {
			query = query.Where("stock_count > 0")
		} else {
			query = query.Where("stock_count = 0")
		}
	}
	if filter.MinPrice != nil {
		query = query.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("price <= ?", *filter.MaxPrice)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch filter.Sort {
	case BookSortTitle:
		query = query.Order("title ASC")
	case BookSortPriceAsc:
		query = query.Order("price ASC")
	case BookSortPriceDesc:
		query = query.Order("price DESC")
	default:
		query = query.Order("created_at DESC")
	}

	var books []models.Book
	if err := query.Preload("Categories").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&books).Error; err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

// Bestsellers returns books ordered by total quantity sold across
// non-cancelled orders.
func (r *Repository) Bestsellers(ctx context.Context, limit int) ([]models.Book, error) {
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}
	var books []models.Book
	err := r.db.WithContext(ctx).
		Joins("JOIN order_items oi ON oi.book_id = books.id").
		Joins("JOIN orders o ON o.id = oi.order_id AND o.status <> ?", enums.OrderStatusCancelled).
		Group("books.id").
		Order("SUM(oi.quantity) DESC").
		Limit(limit).
		Find(&books).Error
	if err != nil {
		return nil, err
	}
	return books, nil
}
