package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/payment"
	"storefront/internal/repository"
	"storefront/internal/shipping"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// In-memory product store mirroring the conditional stock update: a decrement
// past zero fails and changes nothing.
type mockProductStore struct {
	products map[uuid.UUID]*domain.Product
}

func newMockProductStore() *mockProductStore {
	return &mockProductStore{products: make(map[uuid.UUID]*domain.Product)}
}

func (m *mockProductStore) add(name string, price decimal.Decimal, stock int) *domain.Product {
	p := &domain.Product{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		Name:          name,
		Price:         price,
		StockQuantity: stock,
		SKU:           "SKU-" + uuid.New().String()[:8],
		IsActive:      true,
	}
	m.products[p.ID] = p
	return p
}

func (m *mockProductStore) Create(ctx context.Context, product *domain.Product) error {
	m.products[product.ID] = product
	return nil
}

func (m *mockProductStore) Update(ctx context.Context, product *domain.Product) error {
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	m.products[product.ID] = product
	return nil
}

func (m *mockProductStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductStore) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	var out []*domain.Product
	for _, p := range m.products {
		cp := *p
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockProductStore) ListLowStock(ctx context.Context) ([]*domain.Product, error) {
	var out []*domain.Product
	for _, p := range m.products {
		if p.IsActive && p.LowStock() {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockProductStore) ListActiveByCategory(ctx context.Context, categoryID uuid.UUID) ([]*domain.Product, error) {
	return nil, nil
}

func (m *mockProductStore) SetStock(ctx context.Context, id uuid.UUID, quantity int) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	p.StockQuantity = quantity
	cp := *p
	return &cp, nil
}

func (m *mockProductStore) AdjustStock(ctx context.Context, q repository.DBTX, id uuid.UUID, delta int) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	if p.StockQuantity+delta < 0 {
		return nil, &domain.InsufficientStockError{
			ProductID:   p.ID.String(),
			ProductName: p.Name,
			Requested:   -delta,
			Available:   p.StockQuantity,
		}
	}
	p.StockQuantity += delta
	cp := *p
	return &cp, nil
}

func (m *mockProductStore) StockCounts(ctx context.Context) (active, lowStock, outOfStock int, err error) {
	for _, p := range m.products {
		if !p.IsActive {
			continue
		}
		active++
		if p.StockQuantity == 0 {
			outOfStock++
		} else if p.LowStock() {
			lowStock++
		}
	}
	return active, lowStock, outOfStock, nil
}

type mockZoneStore struct {
	zones map[uuid.UUID]*domain.ShippingZone
}

func newMockZoneStore() *mockZoneStore {
	return &mockZoneStore{zones: make(map[uuid.UUID]*domain.ShippingZone)}
}

func (m *mockZoneStore) add(baseRate, perKg, threshold string) *domain.ShippingZone {
	zone := &domain.ShippingZone{
		ID:       uuid.New(),
		Name:     "Test Zone",
		Country:  "US",
		BaseRate: decimal.RequireFromString(baseRate),
	}
	if perKg != "" {
		zone.PerKgRate = decimal.NewNullDecimal(decimal.RequireFromString(perKg))
	}
	if threshold != "" {
		zone.FreeShippingThreshold = decimal.NewNullDecimal(decimal.RequireFromString(threshold))
	}
	m.zones[zone.ID] = zone
	return zone
}

func (m *mockZoneStore) List(ctx context.Context) ([]*domain.ShippingZone, error) {
	var out []*domain.ShippingZone
	for _, z := range m.zones {
		out = append(out, z)
	}
	return out, nil
}

func (m *mockZoneStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.ShippingZone, error) {
	zone, ok := m.zones[id]
	if !ok {
		return nil, repository.ErrShippingZoneNotFound
	}
	return zone, nil
}

// mockOrderStore emulates the transactional placement: all stock decrements
// are undone when any line fails.
type mockOrderStore struct {
	orders   map[uuid.UUID]*domain.Order
	numbers  map[string]bool
	products *mockProductStore
	zones    *mockZoneStore
}

func newMockOrderStore(products *mockProductStore, zones *mockZoneStore) *mockOrderStore {
	return &mockOrderStore{
		orders:   make(map[uuid.UUID]*domain.Order),
		numbers:  make(map[string]bool),
		products: products,
		zones:    zones,
	}
}

func (m *mockOrderStore) Place(ctx context.Context, order *domain.Order, items []repository.PlacementItem) (*domain.Order, error) {
	if m.numbers[order.OrderNumber] {
		return nil, repository.ErrOrderNumberTaken
	}

	placed := *order
	placed.OrderDate = time.Now()
	total := decimal.Zero
	var weights []shipping.ItemWeight
	var decremented []repository.PlacementItem

	rollback := func() {
		for _, d := range decremented {
			m.products.AdjustStock(ctx, nil, d.ProductID, d.Quantity)
		}
	}

	for _, item := range items {
		product, err := m.products.AdjustStock(ctx, nil, item.ProductID, -item.Quantity)
		if err != nil {
			rollback()
			return nil, err
		}
		decremented = append(decremented, item)

		subtotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		placed.Items = append(placed.Items, &domain.OrderItem{
			ID:        uuid.New(),
			OrderID:   placed.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
			Subtotal:  subtotal,
		})
		total = total.Add(subtotal)
		if product.WeightKg.Valid {
			weights = append(weights, shipping.ItemWeight{WeightKg: product.WeightKg.Decimal, Quantity: item.Quantity})
		}
	}

	placed.TotalAmount = total
	if placed.ShippingZoneID != nil {
		zone, err := m.zones.FindByID(ctx, *placed.ShippingZoneID)
		if err != nil {
			rollback()
			return nil, err
		}
		placed.ShippingCost = shipping.Cost(zone, total, weights)
	}

	m.orders[placed.ID] = &placed
	m.numbers[placed.OrderNumber] = true
	return &placed, nil
}

func (m *mockOrderStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

func (m *mockOrderStore) List(ctx context.Context, filter repository.OrderFilter) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, order := range m.orders {
		if filter.UserID != nil && order.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		out = append(out, order)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *mockOrderStore) Cancel(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if !order.CanBeCancelled() {
		return nil, domain.ErrOrderNotCancellable
	}
	for _, item := range order.Items {
		m.products.AdjustStock(ctx, nil, item.ProductID, item.Quantity)
	}
	order.Status = domain.OrderStatusCancelled
	return order, nil
}

func (m *mockOrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if order.Status.Terminal() {
		return nil, domain.ErrOrderStatusLocked
	}
	order.Status = status
	return order, nil
}

func (m *mockOrderStore) MarkPaid(ctx context.Context, id uuid.UUID, paymentIntentID string) (*domain.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	order.PaymentStatus = domain.PaymentStatusPaid
	order.PaymentIntentID = paymentIntentID
	return order, nil
}

func (m *mockOrderStore) RecalculateTotal(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	order, ok := m.orders[id]
	if !ok {
		return decimal.Zero, repository.ErrOrderNotFound
	}
	total := decimal.Zero
	for _, item := range order.Items {
		total = total.Add(item.Subtotal)
	}
	order.TotalAmount = total
	return total, nil
}

func (m *mockOrderStore) Stats(ctx context.Context) (*repository.OrderStats, error) {
	stats := &repository.OrderStats{
		ByStatus:         make(map[domain.OrderStatus]int),
		DeliveredRevenue: decimal.Zero,
	}
	for _, order := range m.orders {
		stats.TotalOrders++
		stats.ByStatus[order.Status]++
		if order.Status == domain.OrderStatusDelivered {
			stats.DeliveredRevenue = stats.DeliveredRevenue.Add(order.TotalAmount)
		}
	}
	return stats, nil
}

// fakeGateway records created intents and serves canned statuses
type fakeGateway struct {
	intents map[string]*payment.Intent
	fail    bool
	counter int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: make(map[string]*payment.Intent)}
}

func (g *fakeGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*payment.Intent, error) {
	if g.fail {
		return nil, errors.New("gateway unreachable")
	}
	g.counter++
	intent := &payment.Intent{
		ID:           fmt.Sprintf("pi_test_%d", g.counter),
		ClientSecret: fmt.Sprintf("pi_test_%d_secret", g.counter),
		Status:       "requires_payment_method",
		Amount:       amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
	}
	g.intents[intent.ID] = intent
	return intent, nil
}

func (g *fakeGateway) RetrieveIntent(ctx context.Context, id string) (*payment.Intent, error) {
	if g.fail {
		return nil, errors.New("gateway unreachable")
	}
	intent, ok := g.intents[id]
	if !ok {
		return nil, errors.New("no such intent")
	}
	return intent, nil
}

type orderFixture struct {
	svc      OrderService
	products *mockProductStore
	zones    *mockZoneStore
	orders   *mockOrderStore
	gateway  *fakeGateway
}

func newOrderFixture() *orderFixture {
	products := newMockProductStore()
	zones := newMockZoneStore()
	orders := newMockOrderStore(products, zones)
	gateway := newFakeGateway()
	return &orderFixture{
		svc:      NewOrderService(orders, products, zones, gateway),
		products: products,
		zones:    zones,
		orders:   orders,
		gateway:  gateway,
	}
}

func TestProperty_OrderTotalEqualsSumOfSubtotals(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("total amount is the sum of quantity times unit price over all lines", prop.ForAll(
		func(quantities []int, priceCents []int64) bool {
			if len(quantities) == 0 || len(priceCents) == 0 {
				return true
			}
			n := len(quantities)
			if len(priceCents) < n {
				n = len(priceCents)
			}

			fx := newOrderFixture()
			actor := Actor{ID: uuid.New(), Role: domain.RoleUser}

			var items []repository.PlacementItem
			expected := decimal.Zero
			for i := 0; i < n; i++ {
				price := decimal.NewFromInt(priceCents[i]).Div(decimal.NewFromInt(100))
				product := fx.products.add(fmt.Sprintf("product-%d", i), price, quantities[i]+100)
				items = append(items, repository.PlacementItem{ProductID: product.ID, Quantity: quantities[i]})
				expected = expected.Add(price.Mul(decimal.NewFromInt(int64(quantities[i]))))
			}

			order, err := fx.svc.PlaceOrder(context.Background(), actor, PlaceOrderInput{
				ShippingAddress: "1 Test Street",
				Items:           items,
			})
			if err != nil {
				t.Logf("FAIL: placement failed: %v", err)
				return false
			}

			if !order.TotalAmount.Equal(expected) {
				t.Logf("FAIL: total %s != expected %s", order.TotalAmount, expected)
				return false
			}

			for _, item := range order.Items {
				want := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
				if !item.Subtotal.Equal(want) {
					t.Logf("FAIL: subtotal %s != %s", item.Subtotal, want)
					return false
				}
			}
			return true
		},
		gen.SliceOfN(4, gen.IntRange(1, 50)),
		gen.SliceOfN(4, gen.Int64Range(1, 100000)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestPlaceOrder_InsufficientStockRollsBackEverything(t *testing.T) {
	fx := newOrderFixture()
	actor := Actor{ID: uuid.New(), Role: domain.RoleUser}
	ctx := context.Background()

	plenty := fx.products.add("plenty", decimal.RequireFromString("10.00"), 50)
	scarce := fx.products.add("scarce", decimal.RequireFromString("5.00"), 3)

	_, err := fx.svc.PlaceOrder(ctx, actor, PlaceOrderInput{
		ShippingAddress: "1 Test Street",
		Items: []repository.PlacementItem{
			{ProductID: plenty.ID, Quantity: 10},
			{ProductID: scarce.ID, Quantity: 100},
		},
	})

	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Available != 3 || stockErr.Requested != 100 {
		t.Errorf("error should carry requested 100 / available 3, got %+v", stockErr)
	}

	// Nothing committed: both stock levels unchanged, no order created
	if got, _ := fx.products.FindByID(ctx, plenty.ID); got.StockQuantity != 50 {
		t.Errorf("first product stock mutated: %d", got.StockQuantity)
	}
	if got, _ := fx.products.FindByID(ctx, scarce.ID); got.StockQuantity != 3 {
		t.Errorf("second product stock mutated: %d", got.StockQuantity)
	}
	if len(fx.orders.orders) != 0 {
		t.Errorf("no order should exist after failed placement")
	}
}

func TestPlaceOrder_Validation(t *testing.T) {
	fx := newOrderFixture()
	actor := Actor{ID: uuid.New(), Role: domain.RoleUser}
	ctx := context.Background()
	product := fx.products.add("widget", decimal.RequireFromString("9.99"), 10)

	cases := []struct {
		name  string
		items []repository.PlacementItem
		want  error
	}{
		{"empty items", nil, domain.ErrNoOrderItems},
		{"zero quantity", []repository.PlacementItem{{ProductID: product.ID, Quantity: 0}}, domain.ErrInvalidQuantity},
		{"negative quantity", []repository.PlacementItem{{ProductID: product.ID, Quantity: -2}}, domain.ErrInvalidQuantity},
		{"duplicate product", []repository.PlacementItem{
			{ProductID: product.ID, Quantity: 1},
			{ProductID: product.ID, Quantity: 2},
		}, domain.ErrDuplicateOrderItem},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.svc.PlaceOrder(ctx, actor, PlaceOrderInput{
				ShippingAddress: "1 Test Street",
				Items:           tc.items,
			})
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	_, err := fx.svc.PlaceOrder(ctx, actor, PlaceOrderInput{
		ShippingAddress: "1 Test Street",
		Items:           []repository.PlacementItem{{ProductID: uuid.New(), Quantity: 1}},
	})
	if !errors.Is(err, repository.ErrProductNotFound) {
		t.Errorf("unknown product should fail placement, got %v", err)
	}
}

func TestPlaceOrder_ShippingCost(t *testing.T) {
	fx := newOrderFixture()
	actor := Actor{ID: uuid.New(), Role: domain.RoleUser}
	ctx := context.Background()

	// Base 25.00, no per-kg, free over 500.00
	zone := fx.zones.add("25.00", "", "500.00")
	product := fx.products.add("thing", decimal.RequireFromString("100.00"), 100)

	// 2 + 3 units = 500.00 exactly, which reaches the free threshold
	order, err := fx.svc.PlaceOrder(ctx, actor, PlaceOrderInput{
		ShippingAddress: "1 Test Street",
		ShippingZoneID:  &zone.ID,
		Items:           []repository.PlacementItem{{ProductID: product.ID, Quantity: 5}},
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !order.ShippingCost.IsZero() {
		t.Errorf("order at threshold should ship free, got %s", order.ShippingCost)
	}
	if !order.FinalTotal().Equal(decimal.RequireFromString("500.00")) {
		t.Errorf("final total should be 500.00, got %s", order.FinalTotal())
	}

	// 300.00 stays below the threshold and pays the base rate
	order2, err := fx.svc.PlaceOrder(ctx, actor, PlaceOrderInput{
		ShippingAddress: "1 Test Street",
		ShippingZoneID:  &zone.ID,
		Items:           []repository.PlacementItem{{ProductID: product.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !order2.ShippingCost.Equal(decimal.RequireFromString("25.00")) {
		t.Errorf("expected base rate 25.00, got %s", order2.ShippingCost)
	}
	if !order2.FinalTotal().Equal(decimal.RequireFromString("325.00")) {
		t.Errorf("final total should be 325.00, got %s", order2.FinalTotal())
	}
}

func TestPlaceOrder_OrderNumbersAreDistinct(t *testing.T) {
	fx := newOrderFixture()
	actor := Actor{ID: uuid.New(), Role: domain.RoleUser}
	ctx := context.Background()
	product := fx.products.add("widget", decimal.RequireFromString("1.00"), 1000)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		order, err := fx.svc.PlaceOrder(ctx, actor, PlaceOrderInput{
			ShippingAddress: "1 Test Street",
			Items:           []repository.PlacementItem{{ProductID: product.ID, Quantity: 1}},
		})
		if err != nil {
			t.Fatalf("place %d: %v", i, err)
		}
		if !strings.HasPrefix(order.OrderNumber, "ORD-") || len(order.OrderNumber) != 12 {
			t.Fatalf("bad order number format: %q", order.OrderNumber)
		}
		if order.OrderNumber != strings.ToUpper(order.OrderNumber) {
			t.Fatalf("order number not uppercase: %q", order.OrderNumber)
		}
		if seen[order.OrderNumber] {
			t.Fatalf("duplicate order number %q", order.OrderNumber)
		}
		seen[order.OrderNumber] = true
	}
}

func TestCancelOrder(t *testing.T) {
	fx := newOrderFixture()
	owner := Actor{ID: uuid.New(), Role: domain.RoleUser}
	stranger := Actor{ID: uuid.New(), Role: domain.RoleUser}
	admin := Actor{ID: uuid.New(), Role: domain.RoleAdmin}
	ctx := context.Background()
	product := fx.products.add("widget", decimal.RequireFromString("10.00"), 20)

	place := func() *domain.Order {
		order, err := fx.svc.PlaceOrder(ctx, owner, PlaceOrderInput{
			ShippingAddress: "1 Test Street",
			Items:           []repository.PlacementItem{{ProductID: product.ID, Quantity: 5}},
		})
		if err != nil {
			t.Fatalf("place: %v", err)
		}
		return order
	}

	t.Run("owner cancel restores stock", func(t *testing.T) {
		order := place()
		before, _ := fx.products.FindByID(ctx, product.ID)

		cancelled, err := fx.svc.CancelOrder(ctx, owner, order.ID)
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if cancelled.Status != domain.OrderStatusCancelled {
			t.Errorf("status should be cancelled, got %s", cancelled.Status)
		}

		after, _ := fx.products.FindByID(ctx, product.ID)
		if after.StockQuantity != before.StockQuantity+5 {
			t.Errorf("stock not restored: %d -> %d", before.StockQuantity, after.StockQuantity)
		}
	})

	t.Run("stranger cannot see the order", func(t *testing.T) {
		order := place()
		if _, err := fx.svc.CancelOrder(ctx, stranger, order.ID); !errors.Is(err, repository.ErrOrderNotFound) {
			t.Errorf("expected not found for other user, got %v", err)
		}
	})

	t.Run("admin may cancel any pending order", func(t *testing.T) {
		order := place()
		if _, err := fx.svc.CancelOrder(ctx, admin, order.ID); err != nil {
			t.Errorf("admin cancel: %v", err)
		}
	})

	t.Run("non-pending orders are not cancellable", func(t *testing.T) {
		order := place()
		if _, err := fx.svc.UpdateOrderStatus(ctx, admin, order.ID, domain.OrderStatusShipped); err != nil {
			t.Fatalf("update status: %v", err)
		}
		if _, err := fx.svc.CancelOrder(ctx, owner, order.ID); !errors.Is(err, domain.ErrOrderNotCancellable) {
			t.Errorf("expected ErrOrderNotCancellable, got %v", err)
		}
	})
}

func TestUpdateOrderStatus(t *testing.T) {
	fx := newOrderFixture()
	owner := Actor{ID: uuid.New(), Role: domain.RoleUser}
	admin := Actor{ID: uuid.New(), Role: domain.RoleAdmin}
	ctx := context.Background()
	product := fx.products.add("widget", decimal.RequireFromString("10.00"), 100)

	order, err := fx.svc.PlaceOrder(ctx, owner, PlaceOrderInput{
		ShippingAddress: "1 Test Street",
		Items:           []repository.PlacementItem{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	if _, err := fx.svc.UpdateOrderStatus(ctx, owner, order.ID, domain.OrderStatusShipped); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("non-staff update should be forbidden, got %v", err)
	}

	if _, err := fx.svc.UpdateOrderStatus(ctx, admin, order.ID, domain.OrderStatus("teleported")); !errors.Is(err, domain.ErrInvalidOrderStatus) {
		t.Errorf("invalid status should be rejected, got %v", err)
	}

	// Any valid transition is allowed until a terminal status is reached
	if _, err := fx.svc.UpdateOrderStatus(ctx, admin, order.ID, domain.OrderStatusDelivered); err != nil {
		t.Fatalf("update to delivered: %v", err)
	}
	if _, err := fx.svc.UpdateOrderStatus(ctx, admin, order.ID, domain.OrderStatusPending); !errors.Is(err, domain.ErrOrderStatusLocked) {
		t.Errorf("delivered order should be locked, got %v", err)
	}
}

func TestConfirmPayment_OnlyTheOwnerMayConfirm(t *testing.T) {
	fx := newOrderFixture()
	owner := Actor{ID: uuid.New(), Role: domain.RoleUser}
	admin := Actor{ID: uuid.New(), Role: domain.RoleAdmin}
	stranger := Actor{ID: uuid.New(), Role: domain.RoleUser}
	ctx := context.Background()
	product := fx.products.add("widget", decimal.RequireFromString("10.00"), 10)

	order, err := fx.svc.PlaceOrder(ctx, owner, PlaceOrderInput{
		ShippingAddress: "1 Test Street",
		Items:           []repository.PlacementItem{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	result, err := fx.svc.CreatePaymentIntent(ctx, owner, order.ID)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	fx.gateway.intents[result.IntentID].Status = payment.IntentStatusSucceeded

	for name, actor := range map[string]Actor{"stranger": stranger, "admin": admin} {
		if _, err := fx.svc.ConfirmPayment(ctx, actor, order.ID, result.IntentID); !errors.Is(err, repository.ErrOrderNotFound) {
			t.Errorf("%s confirming another user's payment should get not-found, got %v", name, err)
		}
	}
	if got, _ := fx.orders.FindByID(ctx, order.ID); got.PaymentStatus != domain.PaymentStatusPending {
		t.Errorf("payment status must stay pending, got %s", got.PaymentStatus)
	}

	if _, err := fx.svc.ConfirmPayment(ctx, owner, order.ID, result.IntentID); err != nil {
		t.Errorf("owner confirmation should succeed, got %v", err)
	}
}

func TestPayments(t *testing.T) {
	fx := newOrderFixture()
	owner := Actor{ID: uuid.New(), Role: domain.RoleUser}
	ctx := context.Background()
	product := fx.products.add("widget", decimal.RequireFromString("49.99"), 100)

	order, err := fx.svc.PlaceOrder(ctx, owner, PlaceOrderInput{
		ShippingAddress: "1 Test Street",
		Items:           []repository.PlacementItem{{ProductID: product.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	result, err := fx.svc.CreatePaymentIntent(ctx, owner, order.ID)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if !result.Amount.Equal(order.FinalTotal()) {
		t.Errorf("intent amount %s != final total %s", result.Amount, order.FinalTotal())
	}
	// The gateway sees the charge in minor units
	wantCents := order.FinalTotal().Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if got := fx.gateway.intents[result.IntentID].Amount; got != wantCents {
		t.Errorf("gateway charged %d cents, want %d", got, wantCents)
	}

	// Gateway has not seen the payment succeed yet
	if _, err := fx.svc.ConfirmPayment(ctx, owner, order.ID, result.IntentID); !errors.Is(err, domain.ErrPaymentNotCompleted) {
		t.Errorf("expected ErrPaymentNotCompleted, got %v", err)
	}
	if got, _ := fx.orders.FindByID(ctx, order.ID); got.PaymentStatus != domain.PaymentStatusPending {
		t.Errorf("payment status should stay pending, got %s", got.PaymentStatus)
	}

	// Simulate the customer completing the payment
	fx.gateway.intents[result.IntentID].Status = payment.IntentStatusSucceeded

	paid, err := fx.svc.ConfirmPayment(ctx, owner, order.ID, result.IntentID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if paid.PaymentStatus != domain.PaymentStatusPaid {
		t.Errorf("expected paid, got %s", paid.PaymentStatus)
	}
	if paid.PaymentIntentID != result.IntentID {
		t.Errorf("intent id not recorded")
	}

	// A gateway outage surfaces as a gateway error, not a failed payment
	fx.gateway.fail = true
	if _, err := fx.svc.ConfirmPayment(ctx, owner, order.ID, result.IntentID); !errors.Is(err, domain.ErrPaymentGateway) {
		t.Errorf("expected ErrPaymentGateway, got %v", err)
	}
}

func TestStats(t *testing.T) {
	fx := newOrderFixture()
	owner := Actor{ID: uuid.New(), Role: domain.RoleUser}
	admin := Actor{ID: uuid.New(), Role: domain.RoleAdmin}
	ctx := context.Background()
	product := fx.products.add("widget", decimal.RequireFromString("20.00"), 100)

	for i := 0; i < 3; i++ {
		order, err := fx.svc.PlaceOrder(ctx, owner, PlaceOrderInput{
			ShippingAddress: "1 Test Street",
			Items:           []repository.PlacementItem{{ProductID: product.ID, Quantity: 2}},
		})
		if err != nil {
			t.Fatalf("place: %v", err)
		}
		if i == 0 {
			if _, err := fx.svc.UpdateOrderStatus(ctx, admin, order.ID, domain.OrderStatusDelivered); err != nil {
				t.Fatalf("deliver: %v", err)
			}
		}
	}

	stats, err := fx.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalOrders != 3 {
		t.Errorf("expected 3 orders, got %d", stats.TotalOrders)
	}
	if stats.OrdersByStatus[domain.OrderStatusDelivered] != 1 {
		t.Errorf("expected 1 delivered order")
	}
	if !stats.DeliveredRevenue.Equal(decimal.RequireFromString("40.00")) {
		t.Errorf("delivered revenue should be 40.00, got %s", stats.DeliveredRevenue)
	}
	if stats.ActiveProducts != 1 {
		t.Errorf("expected 1 active product, got %d", stats.ActiveProducts)
	}
}
