package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LowStockThreshold is the stock level below which a product counts as low stock.
const LowStockThreshold = 10

// Category groups products in the catalog
type Category struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Product represents a catalog product with inventory tracking
type Product struct {
	ID            uuid.UUID           `json:"id" db:"id"`
	UserID        uuid.UUID           `json:"user_id" db:"user_id"`
	CategoryID    *uuid.UUID          `json:"category_id,omitempty" db:"category_id"`
	Name          string              `json:"name" db:"name"`
	Description   string              `json:"description" db:"description"`
	Price         decimal.Decimal     `json:"price" db:"price"`
	StockQuantity int                 `json:"stock_quantity" db:"stock_quantity"`
	SKU           string              `json:"sku" db:"sku"`
	ImageURL      string              `json:"image_url" db:"image_url"`
	WeightKg      decimal.NullDecimal `json:"weight_kg,omitempty" db:"weight_kg"`
	IsActive      bool                `json:"is_active" db:"is_active"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at" db:"updated_at"`
}

// InStock reports whether the product has any available stock
func (p *Product) InStock() bool {
	return p.StockQuantity > 0
}

// LowStock reports whether stock is above zero but below the threshold
func (p *Product) LowStock() bool {
	return p.StockQuantity > 0 && p.StockQuantity < LowStockThreshold
}
