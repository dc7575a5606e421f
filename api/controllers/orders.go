package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/avelinabooks/bookshop-backend/api/middleware"
	"github.com/avelinabooks/bookshop-backend/api/responses"
	"github.com/avelinabooks/bookshop-backend/api/validators"
	"github.com/avelinabooks/bookshop-backend/internal/orders"
	"github.com/avelinabooks/bookshop-backend/pkg/enums"
	pkgerrors "github.com/avelinabooks/bookshop-backend/pkg/errors"
	"github.com/avelinabooks/bookshop-backend/pkg/logger"
	"github.com/avelinabooks/bookshop-backend/pkg/pagination"
	"github.com/avelinabooks/bookshop-backend/pkg/types"
)

type cartLineRequest struct {
	BookID   uuid.UUID `json:"book_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,gt=0"`
}

type createOrderRequest struct {
	GuestID         *uuid.UUID        `json:"guest_id,omitempty"`
	Items           []cartLineRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddress *types.Address    `json:"shipping_address,omitempty"`
	Phone           *string           `json:"phone,omitempty"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// OrderCreate places an order for the authenticated user or a guest.
func OrderCreate(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var body createOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := orders.CreateOrderInput{
			ShippingAddress: body.ShippingAddress,
			Phone:           body.Phone,
			Lines:           make([]orders.CartLine, 0, len(body.Items)),
		}
		for _, item := range body.Items {
			input.Lines = append(input.Lines, orders.CartLine{BookID: item.BookID, Quantity: item.Quantity})
		}

		if userID := middleware.UserIDFromContext(r.Context()); userID != uuid.Nil {
			input.UserID = &userID
		} else {
			input.GuestID = body.GuestID
		}

		order, err := svc.CreateOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// OrderGet returns one order, visible to its owner or to staff.
func OrderGet(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		order, err := loadAuthorizedOrder(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// OrderCancel reverses an order, visible to its owner or to staff.
func OrderCancel(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		order, err := loadAuthorizedOrder(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cancelled, err := svc.CancelOrder(r.Context(), order.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cancelled)
	}
}

// OrderUpdateStatus moves an order along the fulfilment pipeline.
func OrderUpdateStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		id, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.UpdateStatus(r.Context(), id, enums.OrderStatus(strings.ToLower(strings.TrimSpace(body.Status))))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// OrderListMine pages the authenticated user's order history.
func OrderListMine(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		page, err := parsePageQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListForUser(r.Context(), middleware.UserIDFromContext(r.Context()), page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// OrderListForGuest pages a guest's order history by guest id.
func OrderListForGuest(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		guestID, err := validators.ParsePathUUID(chi.URLParam(r, "guestId"), "guestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := parsePageQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListForGuest(r.Context(), guestID, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// OrderRevenue reports the non-cancelled revenue inside a time window.
func OrderRevenue(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		from, err := parseQueryTime(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := parseQueryTime(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		revenue, err := svc.RevenueBetween(r.Context(), from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"revenue": revenue.StringFixed(2)})
	}
}

// loadAuthorizedOrder fetches the order and enforces visibility: the owning
// user, an anonymous caller holding the matching guest id, or staff.
func loadAuthorizedOrder(r *http.Request, svc orders.Service) (*orders.OrderDTO, error) {
	id, err := validators.ParsePathUUID(chi.URLParam(r, "orderId"), "orderId")
	if err != nil {
		return nil, err
	}

	order, err := svc.GetOrder(r.Context(), id)
	if err != nil {
		return nil, err
	}

	tier := middleware.TierFromContext(r.Context())
	if tier.AtLeast(enums.TierModerator) {
		return order, nil
	}

	if userID := middleware.UserIDFromContext(r.Context()); userID != uuid.Nil {
		if order.UserID != nil && *order.UserID == userID {
			return order, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another account")
	}

	guestID, err := validators.ParseQueryUUID(r, "guest_id")
	if err != nil {
		return nil, err
	}
	if guestID != nil && order.GuestID != nil && *order.GuestID == *guestID {
		return order, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another account")
}

func parsePageQuery(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Limit: limit, Offset: offset}, nil
}

func parseQueryTime(r *http.Request, key string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "query parameter is required").WithDetails(map[string]any{"field": key})
	}
	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be an RFC 3339 timestamp").WithDetails(map[string]any{"field": key})
	}
	return value, nil
}
