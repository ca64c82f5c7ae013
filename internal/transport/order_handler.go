package transport

import (
	"net/http"
	"time"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderItemRequest represents one line of an order placement payload
type OrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gte=1"`
}

// PlaceOrderRequest represents the order placement payload
type PlaceOrderRequest struct {
	ShippingAddress string             `json:"shipping_address" validate:"required"`
	Notes           string             `json:"notes"`
	ShippingZoneID  *uuid.UUID         `json:"shipping_zone_id"`
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateOrderStatusRequest represents the status update payload
type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ConfirmPaymentRequest represents the payment confirmation payload
type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

// OrderItemResponse represents one order line returned to clients
type OrderItemResponse struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// OrderResponse represents order data returned to clients
type OrderResponse struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"order_number"`
	UserID          string              `json:"user_id"`
	Status          string              `json:"status"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	ShippingCost    decimal.Decimal     `json:"shipping_cost"`
	FinalTotal      decimal.Decimal     `json:"final_total"`
	ShippingAddress string              `json:"shipping_address"`
	Notes           string              `json:"notes,omitempty"`
	ShippingZoneID  *uuid.UUID          `json:"shipping_zone_id,omitempty"`
	PaymentStatus   string              `json:"payment_status"`
	OrderDate       time.Time           `json:"order_date"`
	CanBeCancelled  bool                `json:"can_be_cancelled"`
	Items           []OrderItemResponse `json:"items"`
}

// PaymentIntentResponse represents a created payment intent
type PaymentIntentResponse struct {
	PaymentIntentID string          `json:"payment_intent_id"`
	ClientSecret    string          `json:"client_secret"`
	Amount          decimal.Decimal `json:"amount"`
}

// OrderHandler handles HTTP requests for orders and payments
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers all order routes
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware, adminOnly func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Post("/", h.PlaceOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
		r.Post("/{id}/cancel", h.CancelOrder)
		r.Post("/{id}/payment-intent", h.CreatePaymentIntent)
		r.Post("/{id}/confirm-payment", h.ConfirmPayment)

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Patch("/{id}/status", h.UpdateOrderStatus)
		})
	})
}

// PlaceOrder places a new order for the authenticated user
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req PlaceOrderRequest
	if !decodeAndRespond(w, r, h.logger, &req) {
		return
	}

	items := make([]repository.PlacementItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, repository.PlacementItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := h.orderService.PlaceOrder(r.Context(), actor, service.PlaceOrderInput{
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
		ShippingZoneID:  req.ShippingZoneID,
		Items:           items,
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to place order")
		return
	}

	h.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", actor.ID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, toOrderResponse(order))
}

// ListOrders returns the caller's orders, or all orders for admins
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var status *domain.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.OrderStatus(raw)
		status = &s
	}

	orders, err := h.orderService.ListOrders(r.Context(), actor, status)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list orders")
		return
	}

	response := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		response = append(response, toOrderResponse(order))
	}
	middleware.RespondWithJSON(w, http.StatusOK, response)
}

// GetOrder returns one order visible to the caller
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	id, ok := parseIDParam(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), actor, id)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get order")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toOrderResponse(order))
}

// CancelOrder cancels a pending order and restores stock
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	id, ok := parseIDParam(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.orderService.CancelOrder(r.Context(), actor, id)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to cancel order")
		return
	}

	h.logger.Info("Order cancelled",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
	)
	middleware.RespondWithJSON(w, http.StatusOK, toOrderResponse(order))
}

// UpdateOrderStatus moves an order to a new status
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	id, ok := parseIDParam(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if !decodeAndRespond(w, r, h.logger, &req) {
		return
	}

	order, err := h.orderService.UpdateOrderStatus(r.Context(), actor, id, domain.OrderStatus(req.Status))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update order status")
		return
	}

	h.logger.Info("Order status updated",
		zap.String("order_id", order.ID.String()),
		zap.String("status", string(order.Status)),
	)
	middleware.RespondWithJSON(w, http.StatusOK, toOrderResponse(order))
}

// CreatePaymentIntent creates a payment intent for an order's final total
func (h *OrderHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	id, ok := parseIDParam(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	result, err := h.orderService.CreatePaymentIntent(r.Context(), actor, id)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create payment intent")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, PaymentIntentResponse{
		PaymentIntentID: result.IntentID,
		ClientSecret:    result.ClientSecret,
		Amount:          result.Amount,
	})
}

// ConfirmPayment verifies a payment intent with the gateway and marks the
// order paid on success
func (h *OrderHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	id, ok := parseIDParam(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req ConfirmPaymentRequest
	if !decodeAndRespond(w, r, h.logger, &req) {
		return
	}

	order, err := h.orderService.ConfirmPayment(r.Context(), actor, id, req.PaymentIntentID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to confirm payment")
		return
	}

	h.logger.Info("Payment confirmed",
		zap.String("order_id", order.ID.String()),
		zap.String("payment_intent_id", req.PaymentIntentID),
	)
	middleware.RespondWithJSON(w, http.StatusOK, toOrderResponse(order))
}

func toOrderResponse(order *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemResponse{
			ID:        item.ID.String(),
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal,
		})
	}

	return OrderResponse{
		ID:              order.ID.String(),
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID.String(),
		Status:          string(order.Status),
		TotalAmount:     order.TotalAmount,
		ShippingCost:    order.ShippingCost,
		FinalTotal:      order.FinalTotal(),
		ShippingAddress: order.ShippingAddress,
		Notes:           order.Notes,
		ShippingZoneID:  order.ShippingZoneID,
		PaymentStatus:   string(order.PaymentStatus),
		OrderDate:       order.OrderDate,
		CanBeCancelled:  order.CanBeCancelled(),
		Items:           items,
	}
}
