package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avelinabooks/bookshop-backend/api/responses"
	"github.com/avelinabooks/bookshop-backend/api/validators"
	"github.com/avelinabooks/bookshop-backend/internal/catalog"
	pkgerrors "github.com/avelinabooks/bookshop-backend/pkg/errors"
	"github.com/avelinabooks/bookshop-backend/pkg/logger"
	"github.com/avelinabooks/bookshop-backend/pkg/pagination"
)

type createBookRequest struct {
	Title         string      `json:"title" validate:"required,min=1,max=500"`
	OriginalTitle *string     `json:"original_title,omitempty"`
	Publisher     *string     `json:"publisher,omitempty"`
	ISBN          *string     `json:"isbn,omitempty"`
	Pages         *int        `json:"pages,omitempty" validate:"omitempty,gt=0"`
	Price         string      `json:"price" validate:"required"`
	CoverType     *string     `json:"cover_type,omitempty"`
	Language      *string     `json:"language,omitempty"`
	Description   *string     `json:"description,omitempty"`
	StockCount    int         `json:"stock_count" validate:"min=0"`
	CategoryIDs   []uuid.UUID `json:"category_ids,omitempty"`
}

type updateBookRequest struct {
	Title         *string      `json:"title,omitempty" validate:"omitempty,min=1,max=500"`
	OriginalTitle *string      `json:"original_title,omitempty"`
	Publisher     *string      `json:"publisher,omitempty"`
	ISBN          *string      `json:"isbn,omitempty"`
	Pages         *int         `json:"pages,omitempty" validate:"omitempty,gt=0"`
	Price         *string      `json:"price,omitempty"`
	CoverType     *string      `json:"cover_type,omitempty"`
	Language      *string      `json:"language,omitempty"`
	Description   *string      `json:"description,omitempty"`
	StockCount    *int         `json:"stock_count,omitempty" validate:"omitempty,min=0"`
	CategoryIDs   *[]uuid.UUID `json:"category_ids,omitempty"`
}

// BookGet returns one book by id.
func BookGet(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "bookId"), "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		book, err := svc.GetBook(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, book)
	}
}

// BookList searches and pages the catalog.
func BookList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		filter, page, err := parseBookListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListBooks(r.Context(), filter, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// BookBestsellers returns the sales leaderboard.
func BookBestsellers(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 10, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		books, err := svc.Bestsellers(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, books)
	}
}

// BookCreate adds a book to the catalog.
func BookCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var body createBookRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		price, err := decimal.NewFromString(body.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "price must be a number"))
			return
		}

		book, err := svc.CreateBook(r.Context(), catalog.CreateBookInput{
			Title:         body.Title,
			OriginalTitle: body.OriginalTitle,
			Publisher:     body.Publisher,
			ISBN:          body.ISBN,
			Pages:         body.Pages,
			Price:         price,
			CoverType:     body.CoverType,
			Language:      body.Language,
			Description:   body.Description,
			StockCount:    body.StockCount,
			CategoryIDs:   body.CategoryIDs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, book)
	}
}

// BookUpdate applies a partial update to a book.
func BookUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "bookId"), "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateBookRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := catalog.UpdateBookInput{
			Title:         body.Title,
			OriginalTitle: body.OriginalTitle,
			Publisher:     body.Publisher,
			ISBN:          body.ISBN,
			Pages:         body.Pages,
			CoverType:     body.CoverType,
			Language:      body.Language,
			Description:   body.Description,
			StockCount:    body.StockCount,
			CategoryIDs:   body.CategoryIDs,
		}
		if body.Price != nil {
			price, err := decimal.NewFromString(*body.Price)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "price must be a number"))
				return
			}
			input.Price = &price
		}

		book, err := svc.UpdateBook(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, book)
	}
}

// BookDelete removes a book.
func BookDelete(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "bookId"), "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteBook(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func parseBookListQuery(r *http.Request) (catalog.ListBooksFilter, pagination.Params, error) {
	var filter catalog.ListBooksFilter
	var page pagination.Params

	filter.Query = strings.TrimSpace(r.URL.Query().Get("q"))

	categoryID, err := validators.ParseQueryUUID(r, "category_id")
	if err != nil {
		return filter, page, err
	}
	filter.CategoryID = categoryID

	inStock, err := validators.ParseQueryBool(r, "in_stock")
	if err != nil {
		return filter, page, err
	}
	filter.InStock = inStock

	minPrice, err := validators.ParseQueryDecimal(r, "min_price")
	if err != nil {
		return filter, page, err
	}
	filter.MinPrice = minPrice

	maxPrice, err := validators.ParseQueryDecimal(r, "max_price")
	if err != nil {
		return filter, page, err
	}
	filter.MaxPrice = maxPrice

	if sort := strings.TrimSpace(r.URL.Query().Get("sort")); sort != "" {
		switch catalog.BookSort(sort) {
		case catalog.BookSortTitle, catalog.BookSortPriceAsc, catalog.BookSortPriceDesc, catalog.BookSortNewest:
			filter.Sort = catalog.BookSort(sort)
		default:
			return filter, page, pkgerrors.New(pkgerrors.CodeValidation, "unknown sort order").WithDetails(map[string]any{"field": "sort"})
		}
	}

	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return filter, page, err
	}
	offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
	if err != nil {
		return filter, page, err
	}
	page = pagination.Params{Limit: limit, Offset: offset}
	return filter, page, nil
}
