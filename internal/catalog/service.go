package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avelinabooks/bookshop-backend/pkg/cache"
	"github.com/avelinabooks/bookshop-backend/pkg/db"
	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
	pkgerrors "github.com/avelinabooks/bookshop-backend/pkg/errors"
	"github.com/avelinabooks/bookshop-backend/pkg/logger"
	"github.com/avelinabooks/bookshop-backend/pkg/pagination"
)

// Service exposes catalog management and read operations.
type Service interface {
	GetBook(ctx context.Context, id uuid.UUID) (*BookDTO, error)
	ListBooks(ctx context.Context, filter ListBooksFilter, page pagination.Params) (*BookListResult, error)
	Bestsellers(ctx context.Context, limit int) ([]BookDTO, error)
	CreateBook(ctx context.Context, input CreateBookInput) (*BookDTO, error)
	UpdateBook(ctx context.Context, id uuid.UUID, input UpdateBookInput) (*BookDTO, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error

	GetCategory(ctx context.Context, id uuid.UUID) (*CategoryDTO, error)
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	CreateCategory(ctx context.Context, input CategoryInput) (*CategoryDTO, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, input CategoryInput) (*CategoryDTO, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
	LinkSubcategory(ctx context.Context, parentID, childID uuid.UUID) error
}

// CreateBookInput holds the validated payload to create a book.
type CreateBookInput struct {
	Title         string
	OriginalTitle *string
	Publisher     *string
	ISBN          *string
	Pages         *int
	Price         decimal.Decimal
	CoverType     *string
	Language      *string
	Description   *string
	StockCount    int
	CategoryIDs   []uuid.UUID
}

// UpdateBookInput holds optional mutation values for a book.
type UpdateBookInput struct {
	Title         *string
	OriginalTitle *string
	Publisher     *string
	ISBN          *string
	Pages         *int
	Price         *decimal.Decimal
	CoverType     *string
	Language      *string
	Description   *string
	StockCount    *int
	CategoryIDs   *[]uuid.UUID
}

// CategoryInput holds the payload for category mutations.
type CategoryInput struct {
	Name        string
	Description *string
}

// ratingRefresher backfills a stale external rating. Implementations must be
// safe to call inline on a read path.
type ratingRefresher interface {
	Refresh(ctx context.Context, book *models.Book) error
}

type service struct {
	repo         *Repository
	categoryRepo *CategoryRepository
	dbClient     *db.Client
	cache        *cache.Cache
	ratings      ratingRefresher
	log          *logger.Logger
}

// NewService constructs a catalog service instance. The ratings refresher is
// optional: when nil, stale ratings are served as stored.
func NewService(repo *Repository, categoryRepo *CategoryRepository, dbClient *db.Client, responseCache *cache.Cache, ratings ratingRefresher, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("book repository required")
	}
	if categoryRepo == nil {
		return nil, fmt.Errorf("category repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if responseCache == nil {
		return nil, fmt.Errorf("response cache required")
	}
	return &service{
		repo:         repo,
		categoryRepo: categoryRepo,
		dbClient:     dbClient,
		cache:        responseCache,
		ratings:      ratings,
		log:          log,
	}, nil
}

// GetBook serves a single book, from cache when possible, refreshing a stale
// external rating best-effort.
func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*BookDTO, error) {
	key := s.cache.BookKey(id)
	var cached BookDTO
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load book")
	}

	if s.ratings != nil {
		if err := s.ratings.Refresh(ctx, book); err != nil && s.log != nil {
			s.log.Warn(ctx, fmt.Sprintf("rating refresh failed for book %s: %v", book.ID, err))
		}
	}

	dto := NewBookDTO(book)
	s.cache.SetJSON(ctx, key, dto, s.cache.BookTTL())
	return dto, nil
}

// ListBooks serves a filtered page of the catalog, cached per query shape.
func (s *service) ListBooks(ctx context.Context, filter ListBooksFilter, page pagination.Params) (*BookListResult, error) {
	page = page.Normalize()
	key := s.cache.SearchKey(strings.ToLower(strings.TrimSpace(filter.Query)), filter.CategoryID, filter.InStock, page.Limit, page.Offset)

	cacheable := filter.MinPrice == nil && filter.MaxPrice == nil && filter.Sort == ""
	if cacheable {
		var cached BookListResult
		if s.cache.GetJSON(ctx, key, &cached) {
			return &cached, nil
		}
	}

	books, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list books")
	}

	result := NewBookListResult(books, total)
	if cacheable {
		s.cache.SetJSON(ctx, key, result, s.cache.ListTTL())
	}
	return result, nil
}

// Bestsellers serves the cached sales leaderboard.
func (s *service) Bestsellers(ctx context.Context, limit int) ([]BookDTO, error) {
	key := s.cache.BestsellersKey()
	var cached []BookDTO
	if s.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	books, err := s.repo.Bestsellers(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: bestsellers")
	}

	dtos := make([]BookDTO, 0, len(books))
	for i := range books {
		dtos = append(dtos, *NewBookDTO(&books[i]))
	}
	s.cache.SetJSON(ctx, key, dtos, s.cache.ListTTL())
	return dtos, nil
}

// CreateBook inserts a new catalog entry with its category links.
func (s *service) CreateBook(ctx context.Context, input CreateBookInput) (*BookDTO, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.Price.IsNegative() || input.Price.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if input.StockCount < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock_count cannot be negative")
	}

	var createdID uuid.UUID
	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		txCategories := s.categoryRepo.WithTx(tx)

		book := &models.Book{
			Title:         strings.TrimSpace(input.Title),
			OriginalTitle: input.OriginalTitle,
			Publisher:     input.Publisher,
			ISBN:          input.ISBN,
			Pages:         input.Pages,
			Price:         input.Price,
			CoverType:     input.CoverType,
			Language:      input.Language,
			Description:   input.Description,
			StockCount:    input.StockCount,
		}
		created, err := txRepo.Create(ctx, book)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return pkgerrors.New(pkgerrors.CodeConflict, "isbn already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert book")
		}
		createdID = created.ID

		if len(input.CategoryIDs) > 0 {
			if err := txCategories.AssignBookCategories(ctx, created, input.CategoryIDs); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: assign categories")
			}
		}
		return nil
	}); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create book")
	}

	book, err := s.repo.FindByID(ctx, createdID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load book")
	}
	return NewBookDTO(book), nil
}

// UpdateBook applies a partial update and invalidates cached payloads.
func (s *service) UpdateBook(ctx context.Context, id uuid.UUID, input UpdateBookInput) (*BookDTO, error) {
	book, err := s.repo.FindForUpdate(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load book")
	}

	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
		}
		book.Title = strings.TrimSpace(*input.Title)
	}
	if input.OriginalTitle != nil {
		book.OriginalTitle = input.OriginalTitle
	}
	if input.Publisher != nil {
		book.Publisher = input.Publisher
	}
	if input.ISBN != nil {
		book.ISBN = input.ISBN
	}
	if input.Pages != nil {
		book.Pages = input.Pages
	}
	if input.Price != nil {
		if input.Price.IsNegative() || input.Price.IsZero() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
		}
		book.Price = *input.Price
	}
	if input.CoverType != nil {
		book.CoverType = input.CoverType
	}
	if input.Language != nil {
		book.Language = input.Language
	}
	if input.Description != nil {
		book.Description = input.Description
	}
	if input.StockCount != nil {
		if *input.StockCount < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock_count cannot be negative")
		}
		book.StockCount = *input.StockCount
	}

	if err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.Update(ctx, book); err != nil {
			if db.IsUniqueViolation(err) {
				return pkgerrors.New(pkgerrors.CodeConflict, "isbn already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update book")
		}
		if input.CategoryIDs != nil {
			if err := s.categoryRepo.WithTx(tx).AssignBookCategories(ctx, book, *input.CategoryIDs); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: assign categories")
			}
		}
		return nil
	}); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update book")
	}

	s.cache.InvalidateBook(ctx, id)

	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load book")
	}
	return NewBookDTO(updated), nil
}

// DeleteBook removes the book and drops its cached payloads.
func (s *service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindForUpdate(ctx, id); err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load book")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete book")
	}
	s.cache.InvalidateBook(ctx, id)
	return nil
}

func (s *service) GetCategory(ctx context.Context, id uuid.UUID) (*CategoryDTO, error) {
	category, err := s.categoryRepo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load category")
	}
	dto := NewCategoryDTO(category)
	return &dto, nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	key := s.cache.CategoryKey(nil)
	var cached []CategoryDTO
	if s.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list categories")
	}
	dtos := make([]CategoryDTO, 0, len(categories))
	for i := range categories {
		dtos = append(dtos, NewCategoryDTO(&categories[i]))
	}
	s.cache.SetJSON(ctx, key, dtos, s.cache.ListTTL())
	return dtos, nil
}

func (s *service) CreateCategory(ctx context.Context, input CategoryInput) (*CategoryDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	category, err := s.categoryRepo.Create(ctx, &models.Category{Name: name, Description: input.Description})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert category")
	}
	s.cache.InvalidateCategory(ctx, category.ID)
	dto := NewCategoryDTO(category)
	return &dto, nil
}

func (s *service) UpdateCategory(ctx context.Context, id uuid.UUID, input CategoryInput) (*CategoryDTO, error) {
	category, err := s.categoryRepo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load category")
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		category.Name = name
	}
	if input.Description != nil {
		category.Description = input.Description
	}
	if _, err := s.categoryRepo.Update(ctx, category); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update category")
	}
	s.cache.InvalidateCategory(ctx, id)
	dto := NewCategoryDTO(category)
	return &dto, nil
}

func (s *service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if _, err := s.categoryRepo.FindByID(ctx, id); err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load category")
	}
	if err := s.categoryRepo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete category")
	}
	s.cache.InvalidateCategory(ctx, id)
	return nil
}

// LinkSubcategory attaches child under parent after checking both exist and
// rejecting self-links.
func (s *service) LinkSubcategory(ctx context.Context, parentID, childID uuid.UUID) error {
	if parentID == childID {
		return pkgerrors.New(pkgerrors.CodeValidation, "category cannot be its own subcategory")
	}
	for _, id := range []uuid.UUID{parentID, childID} {
		if _, err := s.categoryRepo.FindByID(ctx, id); err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load category")
		}
	}
	if err := s.categoryRepo.LinkSubcategory(ctx, parentID, childID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: link subcategory")
	}
	s.cache.InvalidateCategory(ctx, parentID)
	return nil
}
