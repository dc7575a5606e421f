package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avelinabooks/bookshop-backend/pkg/db"
	"github.com/avelinabooks/bookshop-backend/pkg/db/models"
	"github.com/avelinabooks/bookshop-backend/pkg/enums"
	pkgerrors "github.com/avelinabooks/bookshop-backend/pkg/errors"
	"github.com/avelinabooks/bookshop-backend/pkg/metrics"
	"github.com/avelinabooks/bookshop-backend/pkg/pagination"
)

var (
	// vipSpendThreshold is the lifetime spend at which a standard account
	// becomes VIP.
	vipSpendThreshold = decimal.NewFromInt(600)
	// vipDiscountFloor is the minimum discount a VIP receives on every line.
	vipDiscountFloor = decimal.NewFromInt(10)

	oneHundred = decimal.NewFromInt(100)
)

// Service exposes order placement, cancellation and read operations.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*OrderDTO, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	ListForUser(ctx context.Context, userID uuid.UUID, page pagination.Params) (*OrderListResult, error)
	ListForGuest(ctx context.Context, guestID uuid.UUID, page pagination.Params) (*OrderListResult, error)
	RevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	books   BookStore
	promos  PromotionSource
	ledger  AccountLedger
	metrics *metrics.OrderMetrics
	now     func() time.Time
}

// NewService constructs the order service. Metrics may be nil.
func NewService(repo Repository, tx txRunner, books BookStore, promos PromotionSource, ledger AccountLedger, orderMetrics *metrics.OrderMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if books == nil {
		return nil, fmt.Errorf("book store required")
	}
	if promos == nil {
		return nil, fmt.Errorf("promotion source required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("account ledger required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		books:   books,
		promos:  promos,
		ledger:  ledger,
		metrics: orderMetrics,
		now:     time.Now,
	}, nil
}

func validateCreateInput(input CreateOrderInput) error {
	hasUser := input.UserID != nil
	hasGuest := input.GuestID != nil
	if hasUser == hasGuest {
		return pkgerrors.New(pkgerrors.CodeValidation, "order must belong to exactly one of user or guest")
	}
	if len(input.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart cannot be empty")
	}
	for _, line := range input.Lines {
		if line.BookID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "book_id is required on every line")
		}
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
	}
	return nil
}

// CreateOrder prices and persists an order in one transaction. Lines are
// processed in submitted order: each line decrements stock before the next
// is priced, so a cart holding the same book twice competes with itself.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	now := s.now()
	var orderID uuid.UUID
	var vipPromoted bool
	var total decimal.Decimal

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var buyer *models.User
		if input.UserID != nil {
			user, err := s.ledger.FindUser(ctx, tx, *input.UserID)
			if err != nil {
				if db.IsNotFound(err) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load user")
			}
			if !user.IsActive {
				return pkgerrors.New(pkgerrors.CodeForbidden, "account is deactivated")
			}
			buyer = user
		} else {
			if _, err := s.ledger.FindGuest(ctx, tx, *input.GuestID); err != nil {
				if db.IsNotFound(err) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "guest not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load guest")
			}
		}

		total = decimal.Zero
		items := make([]models.OrderItem, 0, len(input.Lines))
		for i, line := range input.Lines {
			book, err := s.books.FindBook(ctx, tx, line.BookID)
			if err != nil {
				if db.IsNotFound(err) {
					return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("book %s not found", line.BookID))
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load book")
			}

			if err := s.books.AdjustStock(ctx, tx, book.ID, -line.Quantity); err != nil {
				if typed := pkgerrors.As(err); typed != nil {
					return typed
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: decrement stock")
			}

			discount, err := s.promos.BestActiveDiscount(ctx, tx, book.ID, now)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: resolve discount")
			}
			if buyer != nil && buyer.Tier == enums.TierVIP && discount.LessThan(vipDiscountFloor) {
				discount = vipDiscountFloor
			}

			lineTotal := book.Price.
				Mul(decimal.NewFromInt(int64(line.Quantity))).
				Mul(oneHundred.Sub(discount)).
				Div(oneHundred)
			total = total.Add(lineTotal)

			items = append(items, models.OrderItem{
				BookID:          book.ID,
				Position:        i,
				Quantity:        line.Quantity,
				PricePerItem:    book.Price,
				DiscountPercent: discount,
			})
		}
		total = total.Round(2)

		order := &models.Order{
			UserID:          input.UserID,
			GuestID:         input.GuestID,
			Status:          enums.OrderStatusPending,
			TotalPrice:      total,
			ShippingAddress: input.ShippingAddress,
			Phone:           input.Phone,
		}
		txRepo := s.repo.WithTx(tx)
		created, err := txRepo.Create(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert order")
		}
		orderID = created.ID

		for i := range items {
			items[i].OrderID = created.ID
		}
		if err := txRepo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert order items")
		}

		if buyer != nil {
			if err := s.ledger.AddToSpent(ctx, tx, buyer.ID, total); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update total spent")
			}
			newSpent := buyer.TotalSpent.Add(total)
			if buyer.Tier == enums.TierUser && newSpent.GreaterThanOrEqual(vipSpendThreshold) {
				if err := s.ledger.SetTier(ctx, tx, buyer.ID, enums.TierVIP); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: promote to vip")
				}
				vipPromoted = true
			}
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			if typed.Code() == pkgerrors.CodeInsufficientStock {
				s.metrics.IncStockConflict()
			}
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	if input.UserID != nil {
		s.metrics.IncPlaced("user")
	} else {
		s.metrics.IncPlaced("guest")
	}
	if vipPromoted {
		s.metrics.IncVIPPromotion()
	}
	if f, _ := total.Float64(); f > 0 {
		s.metrics.AddRevenue(f)
	}

	return s.GetOrder(ctx, orderID)
}

// CancelOrder restores stock for every line and reverses the buyer's spend.
// The buyer keeps any tier earned from the order.
func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		order, err := txRepo.FindByID(ctx, orderID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
		}

		if !order.Status.Cancellable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order in status %s cannot be cancelled", order.Status))
		}

		for _, item := range order.Items {
			if err := s.books.AdjustStock(ctx, tx, item.BookID, item.Quantity); err != nil {
				if typed := pkgerrors.As(err); typed != nil {
					return typed
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: restore stock")
			}
		}

		if order.UserID != nil {
			if err := s.ledger.AddToSpent(ctx, tx, *order.UserID, order.TotalPrice.Neg()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reverse total spent")
			}
		}

		if err := txRepo.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: set cancelled")
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}

	s.metrics.IncCancelled()
	return s.GetOrder(ctx, orderID)
}

// UpdateStatus applies an administrative lifecycle transition. Cancellation
// goes through CancelOrder so stock and spend are reversed.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*OrderDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	if status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "use the cancel operation to cancel an order")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		order, err := txRepo.FindByID(ctx, orderID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled orders cannot change status")
		}
		if err := txRepo.UpdateStatus(ctx, order.ID, status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update status")
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	return s.GetOrder(ctx, orderID)
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
	}
	return NewOrderDTO(order), nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, page pagination.Params) (*OrderListResult, error) {
	orders, total, err := s.repo.ListForUser(ctx, userID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list orders")
	}
	return NewOrderListResult(orders, total), nil
}

func (s *service) ListForGuest(ctx context.Context, guestID uuid.UUID, page pagination.Params) (*OrderListResult, error) {
	orders, total, err := s.repo.ListForGuest(ctx, guestID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list orders")
	}
	return NewOrderListResult(orders, total), nil
}

// RevenueBetween reports gross revenue over [from, to).
func (s *service) RevenueBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	if !from.Before(to) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "from must precede to")
	}
	revenue, err := s.repo.RevenueBetween(ctx, from, to)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: revenue")
	}
	return revenue, nil
}
