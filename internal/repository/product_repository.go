package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrSKUAlreadyUsed  = errors.New("product with this SKU already exists")
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// ProductFilter narrows product listings
type ProductFilter struct {
	CategoryID      *uuid.UUID
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	InStockOnly     bool
	Search          string
	IncludeInactive bool
	SortBy          string
	SortOrder       SortOrder
	Page            int
	PageSize        int
}

// ProductRepository is the catalog store: it owns product rows including the
// per-product stock counter. All stock mutations go through AdjustStock or
// SetStock; nothing else writes stock_quantity.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*domain.Product, int, error)
	ListLowStock(ctx context.Context) ([]*domain.Product, error)
	ListActiveByCategory(ctx context.Context, categoryID uuid.UUID) ([]*domain.Product, error)
	SetStock(ctx context.Context, id uuid.UUID, quantity int) (*domain.Product, error)
	AdjustStock(ctx context.Context, q DBTX, id uuid.UUID, delta int) (*domain.Product, error)
	StockCounts(ctx context.Context) (active, lowStock, outOfStock int, err error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, user_id, category_id, name, description, price, stock_quantity, sku, image_url, weight_kg, is_active, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	product := &domain.Product{}
	err := row.Scan(
		&product.ID,
		&product.UserID,
		&product.CategoryID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.StockQuantity,
		&product.SKU,
		&product.ImageURL,
		&product.WeightKg,
		&product.IsActive,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

// Create inserts a new product into the database using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.UserID,
		product.CategoryID,
		product.Name,
		product.Description,
		product.Price,
		product.StockQuantity,
		product.SKU,
		product.ImageURL,
		product.WeightKg,
		product.IsActive,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err, "products_sku_key") {
			return ErrSKUAlreadyUsed
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update updates an existing product. Stock is deliberately not part of this
// statement: stock changes go through SetStock/AdjustStock only.
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET category_id = $2, name = $3, description = $4, price = $5,
		    sku = $6, image_url = $7, weight_kg = $8, is_active = $9, updated_at = $10
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.CategoryID,
		product.Name,
		product.Description,
		product.Price,
		product.SKU,
		product.ImageURL,
		product.WeightKg,
		product.IsActive,
		product.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err, "products_sku_key") {
			return ErrSKUAlreadyUsed
		}
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// Delete removes a product. Products referenced by order items are protected
// by the order_items foreign key and cannot be removed.
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM products WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrProductInUse
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product by ID using parameterized queries
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// List retrieves products with filtering, search, pagination and sorting
func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]*domain.Product, int, error) {
	// Validate sort field to prevent SQL injection
	validSortFields := map[string]bool{
		"name":           true,
		"price":          true,
		"created_at":     true,
		"stock_quantity": true,
	}

	sortBy := filter.SortBy
	if !validSortFields[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := filter.SortOrder
	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderDesc
	}

	conditions := []string{}
	args := []any{}
	argIndex := 1

	if !filter.IncludeInactive {
		conditions = append(conditions, "is_active = TRUE")
	}
	if filter.CategoryID != nil {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", argIndex))
		args = append(args, *filter.CategoryID)
		argIndex++
	}
	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price >= $%d", argIndex))
		args = append(args, *filter.MinPrice)
		argIndex++
	}
	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price <= $%d", argIndex))
		args = append(args, *filter.MaxPrice)
		argIndex++
	}
	if filter.InStockOnly {
		conditions = append(conditions, "stock_quantity > 0")
	}
	if strings.TrimSpace(filter.Search) != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d OR sku ILIKE $%d)", argIndex, argIndex, argIndex))
		args = append(args, "%"+strings.TrimSpace(filter.Search)+"%")
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`
		SELECT `+productColumns+`
		FROM products
		%s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, whereClause, sortBy, sortOrder, argIndex, argIndex+1)

	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products, err := collectProducts(rows)
	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// ListLowStock retrieves active products with stock above zero but below the
// low-stock threshold
func (r *productRepository) ListLowStock(ctx context.Context) ([]*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE stock_quantity > 0 AND stock_quantity < $1 AND is_active = TRUE
		ORDER BY stock_quantity ASC
	`

	rows, err := r.db.QueryContext(ctx, query, domain.LowStockThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// ListActiveByCategory retrieves the active products of one category
func (r *productRepository) ListActiveByCategory(ctx context.Context, categoryID uuid.UUID) ([]*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE category_id = $1 AND is_active = TRUE
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list category products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// SetStock replaces the stock counter with an absolute quantity
func (r *productRepository) SetStock(ctx context.Context, id uuid.UUID, quantity int) (*domain.Product, error) {
	query := `
		UPDATE products
		SET stock_quantity = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id, quantity))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to set stock: %w", err)
	}

	return product, nil
}

// AdjustStock applies a relative stock change as a single atomic conditional
// update: the row is only written when the resulting quantity stays
// non-negative, so two concurrent orders for the last unit of a product
// cannot both succeed. Callers pass their transaction as q to make the
// adjustment part of an all-or-nothing placement or cancellation; a nil q
// runs against the bare connection.
func (r *productRepository) AdjustStock(ctx context.Context, q DBTX, id uuid.UUID, delta int) (*domain.Product, error) {
	if q == nil {
		q = r.db
	}

	query := `
		UPDATE products
		SET stock_quantity = stock_quantity + $2, updated_at = NOW()
		WHERE id = $1 AND stock_quantity + $2 >= 0
		RETURNING ` + productColumns

	product, err := scanProduct(q.QueryRowContext(ctx, query, id, delta))
	if err != nil {
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to adjust stock: %w", err)
		}

		// No row written: either the product is gone or the guard refused a
		// negative result. Read the row under lock to tell the two apart.
		current, findErr := r.findForUpdate(ctx, q, id)
		if findErr != nil {
			return nil, findErr
		}
		return nil, &domain.InsufficientStockError{
			ProductID:   current.ID.String(),
			ProductName: current.Name,
			Requested:   -delta,
			Available:   current.StockQuantity,
		}
	}

	return product, nil
}

// findForUpdate loads a product and takes its row lock within q's transaction
func (r *productRepository) findForUpdate(ctx context.Context, q DBTX, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	product, err := scanProduct(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// StockCounts returns the active, low-stock and out-of-stock product counts
func (r *productRepository) StockCounts(ctx context.Context) (active, lowStock, outOfStock int, err error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE is_active AND stock_quantity > 0 AND stock_quantity < $1),
			COUNT(*) FILTER (WHERE is_active AND stock_quantity = 0)
		FROM products
	`

	if err = r.db.QueryRowContext(ctx, query, domain.LowStockThreshold).Scan(&active, &lowStock, &outOfStock); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count products: %w", err)
	}

	return active, lowStock, outOfStock, nil
}

func collectProducts(rows *sql.Rows) ([]*domain.Product, error) {
	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}
