package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/shipping"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderNumberTaken signals an order number collision; the caller
	// retries placement with a freshly generated number.
	ErrOrderNumberTaken = errors.New("order number already in use")
)

// PlacementItem is one requested order line: which product and how many units
type PlacementItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// OrderFilter narrows order listings
type OrderFilter struct {
	UserID *uuid.UUID
	Status *domain.OrderStatus
	Limit  int
}

// OrderStats aggregates read-only order figures for the admin dashboard
type OrderStats struct {
	TotalOrders      int
	ByStatus         map[domain.OrderStatus]int
	DeliveredRevenue decimal.Decimal
}

// OrderRepository is the order ledger. It owns order and order item rows and
// keeps the total_amount invariant: an order's total always equals the sum of
// its item subtotals, recomputed under the order row lock after every item
// mutation. Multi-entity operations (placement, cancellation) run as single
// all-or-nothing transactions.
type OrderRepository interface {
	Place(ctx context.Context, order *domain.Order, items []PlacementItem) (*domain.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]*domain.Order, error)
	Cancel(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string) (*domain.Order, error)
	RecalculateTotal(ctx context.Context, id uuid.UUID) (decimal.Decimal, error)
	Stats(ctx context.Context) (*OrderStats, error)
}

type orderRepository struct {
	db       *sql.DB
	products ProductRepository
}

// NewOrderRepository creates a new instance of OrderRepository. Stock
// mutations inside order transactions are delegated to the catalog store's
// atomic adjust operation.
func NewOrderRepository(db *sql.DB, products ProductRepository) OrderRepository {
	return &orderRepository{db: db, products: products}
}

const orderColumns = `id, user_id, order_number, total_amount, status, shipping_address, notes, shipping_zone_id, shipping_cost, payment_status, payment_intent_id, order_date, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	order := &domain.Order{}
	var notes, paymentIntentID sql.NullString
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.TotalAmount,
		&order.Status,
		&order.ShippingAddress,
		&notes,
		&order.ShippingZoneID,
		&order.ShippingCost,
		&order.PaymentStatus,
		&paymentIntentID,
		&order.OrderDate,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.Notes = notes.String
	order.PaymentIntentID = paymentIntentID.String
	return order, nil
}

// Place runs the entire order placement as one transaction: insert the order
// shell (this persists the pre-assigned order number), then for each
// requested item in input order decrement the product's stock through the
// catalog store's conditional update and insert the item with the product's
// current price snapshotted, then recompute the order total and the shipping
// cost. Any failure rolls the whole placement back, leaving no order, no
// items and untouched stock.
func (r *orderRepository) Place(ctx context.Context, order *domain.Order, items []PlacementItem) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin placement transaction: %w", err)
	}
	defer tx.Rollback()

	// order_date and updated_at are left to their DEFAULT NOW()
	insertOrder := `
		INSERT INTO orders (id, user_id, order_number, total_amount, status, shipping_address, notes, shipping_zone_id, shipping_cost, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.ExecContext(
		ctx,
		insertOrder,
		order.ID,
		order.UserID,
		order.OrderNumber,
		decimal.Zero,
		domain.OrderStatusPending,
		order.ShippingAddress,
		nullString(order.Notes),
		order.ShippingZoneID,
		decimal.Zero,
		domain.PaymentStatusPending,
	)
	if err != nil {
		if isUniqueViolation(err, "orders_order_number_key") {
			return nil, ErrOrderNumberTaken
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	weights := []shipping.ItemWeight{}

	for _, item := range items {
		// The conditional decrement either succeeds atomically or reports
		// the available quantity; either way it serializes concurrent
		// placements on the same product row.
		product, err := r.products.AdjustStock(ctx, tx, item.ProductID, -item.Quantity)
		if err != nil {
			var insufficient *domain.InsufficientStockError
			if errors.As(err, &insufficient) {
				insufficient.Requested = item.Quantity
			}
			return nil, err
		}

		unitPrice := product.Price
		subtotal := unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))

		insertItem := `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, subtotal, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
		`
		_, err = tx.ExecContext(ctx, insertItem, uuid.New(), order.ID, item.ProductID, item.Quantity, unitPrice, subtotal)
		if err != nil {
			if isUniqueViolation(err, "order_items_order_id_product_id_key") {
				return nil, domain.ErrDuplicateOrderItem
			}
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}

		if product.WeightKg.Valid {
			weights = append(weights, shipping.ItemWeight{WeightKg: product.WeightKg.Decimal, Quantity: item.Quantity})
		}
	}

	total, err := r.recalculateTotal(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}

	var zone *domain.ShippingZone
	if order.ShippingZoneID != nil {
		zone, err = r.findZone(ctx, tx, *order.ShippingZoneID)
		if err != nil {
			return nil, err
		}
	}

	cost := shipping.Cost(zone, total, weights)
	if _, err = tx.ExecContext(ctx, `UPDATE orders SET shipping_cost = $2, updated_at = NOW() WHERE id = $1`, order.ID, cost); err != nil {
		return nil, fmt.Errorf("failed to set shipping cost: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit placement: %w", err)
	}

	return r.FindByID(ctx, order.ID)
}

// FindByID retrieves an order with its items
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	order.Items, err = r.loadItems(ctx, r.db, id)
	if err != nil {
		return nil, err
	}

	return order, nil
}

// List retrieves orders newest first, optionally filtered by owner and status
func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []any{}
	argIndex := 1

	conditions := ""
	if filter.UserID != nil {
		conditions = fmt.Sprintf(" WHERE user_id = $%d", argIndex)
		args = append(args, *filter.UserID)
		argIndex++
	}
	if filter.Status != nil {
		if conditions == "" {
			conditions = fmt.Sprintf(" WHERE status = $%d", argIndex)
		} else {
			conditions += fmt.Sprintf(" AND status = $%d", argIndex)
		}
		args = append(args, *filter.Status)
		argIndex++
	}

	query += conditions + " ORDER BY order_date DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	for _, order := range orders {
		if order.Items, err = r.loadItems(ctx, r.db, order.ID); err != nil {
			return nil, err
		}
	}

	return orders, nil
}

// Cancel cancels a pending order and restores every item's quantity to its
// product's stock, in one transaction. Restoration is unconditional: once the
// state check passes the cancellation always succeeds, even for products that
// were deactivated after the order was placed.
func (r *orderRepository) Cancel(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin cancellation transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := r.lockOrder(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if !order.CanBeCancelled() {
		return nil, domain.ErrOrderNotCancellable
	}

	items, err := r.loadItems(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if _, err := r.products.AdjustStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to restore stock: %w", err)
		}
	}

	if _, err = tx.ExecContext(ctx, `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, domain.OrderStatusCancelled); err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}

	return r.FindByID(ctx, id)
}

// UpdateStatus moves an order to a new status. Terminal orders (delivered,
// cancelled) are locked: no transition out of them is permitted, not even to
// the same value.
func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin status transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := r.lockOrder(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if order.Status.Terminal() {
		return nil, domain.ErrOrderStatusLocked
	}

	if _, err = tx.ExecContext(ctx, `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit status update: %w", err)
	}

	return r.FindByID(ctx, id)
}

// MarkPaid records a successful payment: payment status and the gateway's
// intent reference. Nothing else on the order changes.
func (r *orderRepository) MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string) (*domain.Order, error) {
	query := `
		UPDATE orders
		SET payment_status = $2, payment_intent_id = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, domain.PaymentStatusPaid, paymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrOrderNotFound
	}

	return r.FindByID(ctx, id)
}

// RecalculateTotal recomputes and persists the order total from its item
// subtotals, serialized against concurrent item mutations by the order row
// lock. Returns the new total.
func (r *orderRepository) RecalculateTotal(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin recalculation transaction: %w", err)
	}
	defer tx.Rollback()

	total, err := r.recalculateTotal(ctx, tx, id)
	if err != nil {
		return decimal.Zero, err
	}

	if err = tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit recalculation: %w", err)
	}

	return total, nil
}

// Stats aggregates the read-only order figures for the admin dashboard
func (r *orderRepository) Stats(ctx context.Context) (*OrderStats, error) {
	stats := &OrderStats{
		ByStatus:         map[domain.OrderStatus]int{},
		DeliveredRevenue: decimal.Zero,
	}

	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status domain.OrderStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan order counts: %w", err)
		}
		stats.ByStatus[status] = count
		stats.TotalOrders += count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order counts: %w", err)
	}

	revenueQuery := `SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE status = $1`
	if err := r.db.QueryRowContext(ctx, revenueQuery, domain.OrderStatusDelivered).Scan(&stats.DeliveredRevenue); err != nil {
		return nil, fmt.Errorf("failed to sum delivered revenue: %w", err)
	}

	return stats, nil
}

// lockOrder loads an order taking its row lock within q's transaction
func (r *orderRepository) lockOrder(ctx context.Context, q DBTX, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	order, err := scanOrder(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}

	return order, nil
}

func (r *orderRepository) recalculateTotal(ctx context.Context, q DBTX, id uuid.UUID) (decimal.Decimal, error) {
	if _, err := r.lockOrder(ctx, q, id); err != nil {
		return decimal.Zero, err
	}

	query := `
		UPDATE orders
		SET total_amount = COALESCE((SELECT SUM(subtotal) FROM order_items WHERE order_id = $1), 0),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING total_amount
	`

	var total decimal.Decimal
	if err := q.QueryRowContext(ctx, query, id).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to recalculate order total: %w", err)
	}

	return total, nil
}

func (r *orderRepository) loadItems(ctx context.Context, q DBTX, orderID uuid.UUID) ([]*domain.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, quantity, unit_price, subtotal, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	items := []*domain.OrderItem{}
	for rows.Next() {
		item := &domain.OrderItem{}
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

func (r *orderRepository) findZone(ctx context.Context, q DBTX, id uuid.UUID) (*domain.ShippingZone, error) {
	query := `SELECT ` + zoneColumns + ` FROM shipping_zones WHERE id = $1`

	zone := &domain.ShippingZone{}
	err := q.QueryRowContext(ctx, query, id).Scan(
		&zone.ID,
		&zone.Name,
		&zone.Country,
		&zone.BaseRate,
		&zone.PerKgRate,
		&zone.FreeShippingThreshold,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrShippingZoneNotFound
		}
		return nil, fmt.Errorf("failed to find shipping zone by ID: %w", err)
	}

	return zone, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
