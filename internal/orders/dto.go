package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
	"github.com/avelinabooks/bookshop-backend/pkg/types"
)

// CartLine is one requested purchase: a book and how many copies.
type CartLine struct {
	BookID   uuid.UUID
	Quantity int
}

// CreateOrderInput holds the validated payload to place an order. Exactly one
// of UserID and GuestID must be set.
type CreateOrderInput struct {
	UserID          *uuid.UUID
	GuestID         *uuid.UUID
	Lines           []CartLine
	ShippingAddress *types.Address
	Phone           *string
}

// OrderItemDTO snapshots one priced cart line.
type OrderItemDTO struct {
	BookID          uuid.UUID `json:"book_id"`
	Quantity        int       `json:"quantity"`
	PricePerItem    string    `json:"price_per_item"`
	DiscountPercent string    `json:"discount_percent"`
}

// OrderDTO represents the order payload returned to clients.
type OrderDTO struct {
	ID              uuid.UUID      `json:"id"`
	UserID          *uuid.UUID     `json:"user_id,omitempty"`
	GuestID         *uuid.UUID     `json:"guest_id,omitempty"`
	Status          string         `json:"status"`
	TotalPrice      string         `json:"total_price"`
	ShippingAddress *types.Address `json:"shipping_address,omitempty"`
	Phone           *string        `json:"phone,omitempty"`
	Items           []OrderItemDTO `json:"items"`
	CreatedAt       time.Time      `json:"created_at"`
}

// OrderListResult pairs a page of orders with the total count.
type OrderListResult struct {
	Orders []OrderDTO `json:"orders"`
	Total  int64      `json:"total"`
}

// NewOrderDTO builds a DTO from the persisted model. Items keep the position
// order they were submitted in.
func NewOrderDTO(order *models.Order) *OrderDTO {
	dto := &OrderDTO{
		ID:              order.ID,
		UserID:          order.UserID,
		GuestID:         order.GuestID,
		Status:          order.Status.String(),
		TotalPrice:      order.TotalPrice.StringFixed(2),
		ShippingAddress: order.ShippingAddress,
		Phone:           order.Phone,
		Items:           make([]OrderItemDTO, 0, len(order.Items)),
		CreatedAt:       order.CreatedAt,
	}
	for i := range order.Items {
		item := order.Items[i]
		dto.Items = append(dto.Items, OrderItemDTO{
			BookID:          item.BookID,
			Quantity:        item.Quantity,
			PricePerItem:    item.PricePerItem.StringFixed(2),
			DiscountPercent: item.DiscountPercent.StringFixed(2),
		})
	}
	return dto
}

// NewOrderListResult maps a page of models.
func NewOrderListResult(orders []models.Order, total int64) *OrderListResult {
	result := &OrderListResult{Total: total, Orders: make([]OrderDTO, 0, len(orders))}
	for i := range orders {
		result.Orders = append(result.Orders, *NewOrderDTO(&orders[i]))
	}
	return result
}
