package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
)

// BookDTO represents the catalog payload returned to clients.
type BookDTO struct {
	ID             uuid.UUID     `json:"id"`
	Title          string        `json:"title"`
	OriginalTitle  *string       `json:"original_title,omitempty"`
	Publisher      *string       `json:"publisher,omitempty"`
	ISBN           *string       `json:"isbn,omitempty"`
	Pages          *int          `json:"pages,omitempty"`
	Price          string        `json:"price"`
	CoverType      *string       `json:"cover_type,omitempty"`
	Language       *string       `json:"language,omitempty"`
	Description    *string       `json:"description,omitempty"`
	StockCount     int           `json:"stock_count"`
	InStock        bool          `json:"in_stock"`
	ExternalRating *string       `json:"external_rating,omitempty"`
	Categories     []CategoryDTO `json:"categories,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// CategoryDTO surfaces category data for catalog responses.
type CategoryDTO struct {
	ID            uuid.UUID     `json:"id"`
	Name          string        `json:"name"`
	Description   *string       `json:"description,omitempty"`
	Subcategories []CategoryDTO `json:"subcategories,omitempty"`
}

// BookListResult pairs a page of books with the total match count.
type BookListResult struct {
	Books []BookDTO `json:"books"`
	Total int64     `json:"total"`
}

// NewBookDTO builds a DTO from the persisted model.
func NewBookDTO(book *models.Book) *BookDTO {
	dto := &BookDTO{
		ID:            book.ID,
		Title:         book.Title,
		OriginalTitle: book.OriginalTitle,
		Publisher:     book.Publisher,
		ISBN:          book.ISBN,
		Pages:         book.Pages,
		Price:         book.Price.StringFixed(2),
		CoverType:     book.CoverType,
		Language:      book.Language,
		Description:   book.Description,
		StockCount:    book.StockCount,
		InStock:       book.StockCount > 0,
		CreatedAt:     book.CreatedAt,
		UpdatedAt:     book.UpdatedAt,
	}
	if book.ExternalRating != nil {
		rating := book.ExternalRating.StringFixed(2)
		dto.ExternalRating = &rating
	}
	for i := range book.Categories {
		dto.Categories = append(dto.Categories, NewCategoryDTO(&book.Categories[i]))
	}
	return dto
}

// NewCategoryDTO builds a DTO from the persisted model, including one level
// of subcategories.
func NewCategoryDTO(category *models.Category) CategoryDTO {
	dto := CategoryDTO{
		ID:          category.ID,
		Name:        category.Name,
		Description: category.Description,
	}
	for i := range category.Subcategories {
		child := category.Subcategories[i]
		dto.Subcategories = append(dto.Subcategories, CategoryDTO{
			ID:          child.ID,
			Name:        child.Name,
			Description: child.Description,
		})
	}
	return dto
}

// NewBookListResult maps a page of models.
func NewBookListResult(books []models.Book, total int64) *BookListResult {
	result := &BookListResult{Total: total, Books: make([]BookDTO, 0, len(books))}
	for i := range books {
		result.Books = append(result.Books, *NewBookDTO(&books[i]))
	}
	return result
}
