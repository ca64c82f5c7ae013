package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfillment state of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every valid order status
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid reports whether s is a member of the status set
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are permitted out of s
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// PaymentStatus is the payment state of an order
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Order is a customer order and the root of its order items
type Order struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	UserID          uuid.UUID       `json:"user_id" db:"user_id"`
	OrderNumber     string          `json:"order_number" db:"order_number"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status          OrderStatus     `json:"status" db:"status"`
	ShippingAddress string          `json:"shipping_address" db:"shipping_address"`
	Notes           string          `json:"notes,omitempty" db:"notes"`
	ShippingZoneID  *uuid.UUID      `json:"shipping_zone_id,omitempty" db:"shipping_zone_id"`
	ShippingCost    decimal.Decimal `json:"shipping_cost" db:"shipping_cost"`
	PaymentStatus   PaymentStatus   `json:"payment_status" db:"payment_status"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	OrderDate       time.Time       `json:"order_date" db:"order_date"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
	Items           []*OrderItem    `json:"items,omitempty"`
}

// CanBeCancelled reports whether the order is still cancellable (pending only)
func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderStatusPending
}

// FinalTotal is the order total including shipping
func (o *Order) FinalTotal() decimal.Decimal {
	return o.TotalAmount.Add(o.ShippingCost)
}

// OrderItem is a single product line within an order. UnitPrice is a snapshot
// of the product price at order time and Subtotal is always quantity * unit price.
type OrderItem struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	OrderID   uuid.UUID       `json:"order_id" db:"order_id"`
	ProductID uuid.UUID       `json:"product_id" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal" db:"subtotal"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
