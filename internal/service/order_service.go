package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/payment"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// orderNumberAttempts bounds the retry loop on order number collisions
	orderNumberAttempts = 5

	// recentOrdersLimit is how many latest orders the admin dashboard shows
	recentOrdersLimit = 10

	paymentCurrency = "usd"
)

// Actor identifies the authenticated user performing an operation, so the
// service can apply ownership and staff rules.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// IsStaff reports whether the actor may operate on other users' orders
func (a Actor) IsStaff() bool {
	return a.Role == domain.RoleAdmin
}

// PlaceOrderInput carries everything needed to place an order
type PlaceOrderInput struct {
	ShippingAddress string
	Notes           string
	ShippingZoneID  *uuid.UUID
	Items           []repository.PlacementItem
}

// PaymentIntentResult is returned when an intent is created for an order
type PaymentIntentResult struct {
	IntentID     string
	ClientSecret string
	Amount       decimal.Decimal
}

// AdminStats aggregates the figures shown on the admin dashboard
type AdminStats struct {
	TotalOrders      int
	OrdersByStatus   map[domain.OrderStatus]int
	DeliveredRevenue decimal.Decimal
	ActiveProducts   int
	LowStockProducts int
	OutOfStock       int
	RecentOrders     []*domain.Order
}

// OrderService defines the interface for order business logic
type OrderService interface {
	PlaceOrder(ctx context.Context, actor Actor, input PlaceOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, actor Actor, status *domain.OrderStatus) ([]*domain.Order, error)
	CancelOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, actor Actor, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
	CreatePaymentIntent(ctx context.Context, actor Actor, orderID uuid.UUID) (*PaymentIntentResult, error)
	ConfirmPayment(ctx context.Context, actor Actor, orderID uuid.UUID, intentID string) (*domain.Order, error)
	Stats(ctx context.Context) (*AdminStats, error)
}

type orderService struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	zones    repository.ShippingZoneRepository
	gateway  payment.Gateway
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	zones repository.ShippingZoneRepository,
	gateway payment.Gateway,
) OrderService {
	return &orderService{
		orders:   orders,
		products: products,
		zones:    zones,
		gateway:  gateway,
	}
}

// PlaceOrder validates the request, picks an order number and runs the
// placement transaction. The whole order either commits or nothing does.
func (s *orderService) PlaceOrder(ctx context.Context, actor Actor, input PlaceOrderInput) (*domain.Order, error) {
	if len(input.Items) == 0 {
		return nil, domain.ErrNoOrderItems
	}

	seen := make(map[uuid.UUID]struct{}, len(input.Items))
	for _, item := range input.Items {
		if item.Quantity < 1 {
			return nil, domain.ErrInvalidQuantity
		}
		if _, dup := seen[item.ProductID]; dup {
			return nil, domain.ErrDuplicateOrderItem
		}
		seen[item.ProductID] = struct{}{}
	}

	if input.ShippingZoneID != nil {
		if _, err := s.zones.FindByID(ctx, *input.ShippingZoneID); err != nil {
			return nil, err
		}
	}

	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          actor.ID,
		TotalAmount:     decimal.Zero,
		Status:          domain.OrderStatusPending,
		ShippingAddress: input.ShippingAddress,
		Notes:           input.Notes,
		ShippingZoneID:  input.ShippingZoneID,
		ShippingCost:    decimal.Zero,
		PaymentStatus:   domain.PaymentStatusPending,
	}

	var placed *domain.Order
	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order.OrderNumber = generateOrderNumber()
		placed, err = s.orders.Place(ctx, order, input.Items)
		if err == nil {
			return placed, nil
		}
		if !errors.Is(err, repository.ErrOrderNumberTaken) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to allocate order number: %w", err)
}

// GetOrder returns an order. Customers only see their own orders; staff see
// any order.
func (s *orderService) GetOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && order.UserID != actor.ID {
		// Hide the order's existence rather than answer with a refusal
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

// ListOrders returns the actor's orders, or all orders for staff, newest first
func (s *orderService) ListOrders(ctx context.Context, actor Actor, status *domain.OrderStatus) ([]*domain.Order, error) {
	filter := repository.OrderFilter{Status: status}
	if !actor.IsStaff() {
		userID := actor.ID
		filter.UserID = &userID
	}
	if status != nil && !status.Valid() {
		return nil, domain.ErrInvalidOrderStatus
	}
	return s.orders.List(ctx, filter)
}

// CancelOrder cancels a pending order and restores its stock. The owner or
// staff may cancel; only pending orders are cancellable.
func (s *orderService) CancelOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && order.UserID != actor.ID {
		return nil, repository.ErrOrderNotFound
	}
	return s.orders.Cancel(ctx, orderID)
}

// UpdateOrderStatus moves an order to a new status. Staff only; delivered and
// cancelled orders are locked.
func (s *orderService) UpdateOrderStatus(ctx context.Context, actor Actor, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	if !actor.IsStaff() {
		return nil, domain.ErrForbidden
	}
	if !status.Valid() {
		return nil, domain.ErrInvalidOrderStatus
	}
	return s.orders.UpdateStatus(ctx, orderID, status)
}

// CreatePaymentIntent creates a gateway intent for the order's final total
// (items plus shipping) and records the intent id on the order.
func (s *orderService) CreatePaymentIntent(ctx context.Context, actor Actor, orderID uuid.UUID) (*PaymentIntentResult, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && order.UserID != actor.ID {
		return nil, repository.ErrOrderNotFound
	}

	amount := order.FinalTotal()
	intent, err := s.gateway.CreateIntent(ctx, amount, paymentCurrency, map[string]string{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"user_id":      order.UserID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentGateway, err)
	}

	return &PaymentIntentResult{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       amount,
	}, nil
}

// ConfirmPayment asks the gateway for the intent's status and marks the order
// paid when the gateway reports success. Only the order's owner may confirm;
// staff get the same not-found answer as everyone else.
func (s *orderService) ConfirmPayment(ctx context.Context, actor Actor, orderID uuid.UUID, intentID string) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != actor.ID {
		return nil, repository.ErrOrderNotFound
	}

	intent, err := s.gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentGateway, err)
	}
	if intent.Status != payment.IntentStatusSucceeded {
		return nil, domain.ErrPaymentNotCompleted
	}

	return s.orders.MarkPaid(ctx, orderID, intentID)
}

// Stats assembles the admin dashboard figures
func (s *orderService) Stats(ctx context.Context) (*AdminStats, error) {
	orderStats, err := s.orders.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load order stats: %w", err)
	}

	active, lowStock, outOfStock, err := s.products.StockCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock counts: %w", err)
	}

	recent, err := s.orders.List(ctx, repository.OrderFilter{Limit: recentOrdersLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to load recent orders: %w", err)
	}

	return &AdminStats{
		TotalOrders:      orderStats.TotalOrders,
		OrdersByStatus:   orderStats.ByStatus,
		DeliveredRevenue: orderStats.DeliveredRevenue,
		ActiveProducts:   active,
		LowStockProducts: lowStock,
		OutOfStock:       outOfStock,
		RecentOrders:     recent,
	}, nil
}

// generateOrderNumber produces a human-readable order number of the form
// ORD-3F9A1C08. Uniqueness is enforced by the database; collisions retry.
func generateOrderNumber() string {
	id := uuid.New()
	return "ORD-" + strings.ToUpper(hex.EncodeToString(id[:4]))
}
