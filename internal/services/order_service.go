package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/adraryacine/adel-computer-sub000/internal/domain"
	"github.com/adraryacine/adel-computer-sub000/internal/repositories"
)

// ErrOrderInvalidInput indicates the caller supplied invalid input.
var ErrOrderInvalidInput = errors.New("order service: invalid input")

// ErrOrderNotFound indicates the order does not exist or belongs to another user.
var ErrOrderNotFound = errors.New("order service: not found")

// ErrOrderConflict indicates the order could not be written due to a conflicting update.
var ErrOrderConflict = errors.New("order service: conflict")

// ErrOrderUnavailable indicates the order backend cannot be reached.
var ErrOrderUnavailable = errors.New("order service: unavailable")

const orderIDPrefix = "ord_"

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Counters    repositories.CounterRepository
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	counters   repositories.CounterRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		counters:   deps.Counters,
		unitOfWork: unit,
		clock:      func() time.Time { return clock().UTC() },
		newID:      idGen,
		logger:     logger,
	}, nil
}

// CreateFromCheckout persists the order produced by a confirmed checkout
// session. The snapshot is copied verbatim; nothing is re-priced here.
func (s *orderService) CreateFromCheckout(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Snapshot.Items) == 0 {
		return Order{}, fmt.Errorf("%w: snapshot must contain at least one item", ErrOrderInvalidInput)
	}

	placedAt := cmd.PlacedAt
	if placedAt.IsZero() {
		placedAt = s.clock()
	}

	order := domain.Order{
		ID:        orderIDPrefix + s.newID(),
		UserID:    userID,
		Items:     cloneCartItems(cmd.Snapshot.Items),
		Details:   cmd.Details,
		Pricing:   cmd.Pricing,
		Status:    domain.OrderStatusPendingConfirmation,
		PlacedAt:  placedAt,
		UpdatedAt: placedAt,
	}

	// Number allocation and the insert share one unit of work so a failed
	// insert cannot burn an order number.
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		number, err := s.generateOrderNumber(ctx, placedAt)
		if err != nil {
			return fmt.Errorf("%w: allocate order number: %v", ErrOrderUnavailable, err)
		}
		order.Number = number
		return s.orders.Insert(ctx, order)
	})
	if err != nil {
		if errors.Is(err, ErrOrderUnavailable) {
			return Order{}, err
		}
		return Order{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "order.created", map[string]any{
		"orderId": order.ID,
		"number":  order.Number,
		"userId":  order.UserID,
		"total":   order.Pricing.Total,
	})
	return order, nil
}

// GetOrder fetches an order, scoped to its owner.
func (s *orderService) GetOrder(ctx context.Context, userID string, orderID string) (Order, error) {
	userID = strings.TrimSpace(userID)
	orderID = strings.TrimSpace(orderID)
	if userID == "" || orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if order.UserID != userID {
		// Hide foreign orders rather than acknowledging their existence.
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders pages through the user's orders, newest first.
func (s *orderService) ListOrders(ctx context.Context, query OrderListQuery) (CursorPage[Order], error) {
	userID := strings.TrimSpace(query.UserID)
	if userID == "" {
		return CursorPage[Order]{}, ErrOrderInvalidInput
	}

	filter := repositories.OrderListFilter{
		UserID:     userID,
		Status:     query.Status,
		Pagination: query.Pagination,
	}
	if query.PlacedFrom != nil || query.PlacedTo != nil {
		filter.DateRange = domain.RangeQuery[time.Time]{From: query.PlacedFrom, To: query.PlacedTo}
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}
	return err
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, "orders", 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("AC-%04d-%06d", now.Year(), seq), nil
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
