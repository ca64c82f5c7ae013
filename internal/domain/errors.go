package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden means the acting user may not perform the operation
	ErrForbidden = errors.New("operation not permitted for this user")

	// ErrOrderNotCancellable means the order is not in a cancellable state
	ErrOrderNotCancellable = errors.New("only pending orders can be cancelled")

	// ErrOrderStatusLocked means the order reached a terminal status
	ErrOrderStatusLocked = errors.New("cannot change status of delivered or cancelled orders")

	// ErrInvalidOrderStatus means the requested status is not in the valid set
	ErrInvalidOrderStatus = errors.New("invalid order status")

	// ErrNoOrderItems means an order was placed with an empty item list
	ErrNoOrderItems = errors.New("order must contain at least one item")

	// ErrInvalidQuantity means an order item requested less than one unit
	ErrInvalidQuantity = errors.New("quantity must be at least 1")

	// ErrDuplicateOrderItem means the same product appeared twice in one order
	ErrDuplicateOrderItem = errors.New("order contains the same product more than once")

	// ErrProductInUse means a product referenced by order items cannot be deleted
	ErrProductInUse = errors.New("product is referenced by existing orders")

	// ErrPaymentNotCompleted means the gateway reported a non-success intent status
	ErrPaymentNotCompleted = errors.New("payment not completed")

	// ErrPaymentGateway means the payment gateway was unreachable or errored
	ErrPaymentGateway = errors.New("payment gateway error")
)

// InsufficientStockError reports an order item that requested more units than
// the product has available. Placement aborts entirely when it occurs.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}
