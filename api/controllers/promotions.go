package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avelinabooks/bookshop-backend/api/middleware"
	"github.com/avelinabooks/bookshop-backend/api/responses"
	"github.com/avelinabooks/bookshop-backend/api/validators"
	"github.com/avelinabooks/bookshop-backend/internal/promotions"
	pkgerrors "github.com/avelinabooks/bookshop-backend/pkg/errors"
	"github.com/avelinabooks/bookshop-backend/pkg/logger"
)

type createPromotionRequest struct {
	BookID          uuid.UUID `json:"book_id" validate:"required"`
	DiscountPercent string    `json:"discount_percent" validate:"required"`
	StartsAt        time.Time `json:"starts_at" validate:"required"`
	EndsAt          time.Time `json:"ends_at" validate:"required"`
	Description     *string   `json:"description,omitempty"`
}

type updatePromotionRequest struct {
	DiscountPercent *string    `json:"discount_percent,omitempty"`
	StartsAt        *time.Time `json:"starts_at,omitempty"`
	EndsAt          *time.Time `json:"ends_at,omitempty"`
	Description     *string    `json:"description,omitempty"`
}

// PromotionCreate opens a discount window on a book.
func PromotionCreate(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promotions service unavailable"))
			return
		}

		var body createPromotionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		discount, err := decimal.NewFromString(body.DiscountPercent)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "discount_percent must be a number"))
			return
		}

		creator := middleware.UserIDFromContext(r.Context())
		input := promotions.CreatePromotionInput{
			BookID:          body.BookID,
			DiscountPercent: discount,
			StartsAt:        body.StartsAt,
			EndsAt:          body.EndsAt,
			Description:     body.Description,
		}
		if creator != uuid.Nil {
			input.CreatedBy = &creator
		}

		promo, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, promo)
	}
}

// PromotionUpdate adjusts an existing discount window.
func PromotionUpdate(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promotions service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "promotionId"), "promotionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updatePromotionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := promotions.UpdatePromotionInput{
			StartsAt:    body.StartsAt,
			EndsAt:      body.EndsAt,
			Description: body.Description,
		}
		if body.DiscountPercent != nil {
			discount, err := decimal.NewFromString(*body.DiscountPercent)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "discount_percent must be a number"))
				return
			}
			input.DiscountPercent = &discount
		}

		promo, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, promo)
	}
}

// PromotionDelete closes a discount window.
func PromotionDelete(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promotions service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "promotionId"), "promotionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// PromotionListActive returns all currently running promotions.
func PromotionListActive(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promotions service unavailable"))
			return
		}

		promos, err := svc.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, promos)
	}
}

// PromotionListForBook returns all promotions on one book, past and present.
func PromotionListForBook(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promotions service unavailable"))
			return
		}

		bookID, err := validators.ParsePathUUID(chi.URLParam(r, "bookId"), "bookId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		promos, err := svc.ListForBook(r.Context(), bookID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, promos)
	}
}
