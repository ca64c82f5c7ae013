package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPrice = errors.New("price must be greater than zero")
	ErrInvalidStock = errors.New("stock quantity cannot be negative")
)

// ProductInput carries the writable product fields
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	CategoryID  *uuid.UUID
	SKU         string
	ImageURL    string
	WeightKg    decimal.NullDecimal
	IsActive    bool
}

// CategoryInput carries the writable category fields
type CategoryInput struct {
	Name        string
	Description string
}

// CatalogService defines the interface for catalog business logic. Write
// operations on products enforce ownership: the product's creator or staff.
type CatalogService interface {
	CreateCategory(ctx context.Context, input CategoryInput) (*repository.CategoryWithCount, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, input CategoryInput) (*repository.CategoryWithCount, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
	ListCategories(ctx context.Context) ([]*repository.CategoryWithCount, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*repository.CategoryWithCount, error)
	CategoryProducts(ctx context.Context, categoryID uuid.UUID) ([]*domain.Product, error)

	CreateProduct(ctx context.Context, actor Actor, input ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, actor Actor, id uuid.UUID, input ProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, actor Actor, id uuid.UUID) error
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error)
	ListLowStock(ctx context.Context) ([]*domain.Product, error)
	SetStock(ctx context.Context, actor Actor, id uuid.UUID, quantity int) (*domain.Product, error)
}

type catalogService struct {
	categories repository.CategoryRepository
	products   repository.ProductRepository
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(categories repository.CategoryRepository, products repository.ProductRepository) CatalogService {
	return &catalogService{categories: categories, products: products}
}

// CreateCategory creates a category with a unique name
func (s *catalogService) CreateCategory(ctx context.Context, input CategoryInput) (*repository.CategoryWithCount, error) {
	category := &domain.Category{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: input.Description,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, err
	}
	return &repository.CategoryWithCount{Category: *category}, nil
}

// UpdateCategory renames or re-describes a category
func (s *catalogService) UpdateCategory(ctx context.Context, id uuid.UUID, input CategoryInput) (*repository.CategoryWithCount, error) {
	existing, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	existing.Name = input.Name
	existing.Description = input.Description
	existing.UpdatedAt = time.Now()

	if err := s.categories.Update(ctx, &existing.Category); err != nil {
		return nil, err
	}
	return existing, nil
}

// DeleteCategory removes a category. Its products stay, detached from any
// category.
func (s *catalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.categories.Delete(ctx, id)
}

// ListCategories returns all categories with active product counts
func (s *catalogService) ListCategories(ctx context.Context) ([]*repository.CategoryWithCount, error) {
	return s.categories.List(ctx)
}

// GetCategory returns one category with its active product count
func (s *catalogService) GetCategory(ctx context.Context, id uuid.UUID) (*repository.CategoryWithCount, error) {
	return s.categories.FindByID(ctx, id)
}

// CategoryProducts returns the active products of a category
func (s *catalogService) CategoryProducts(ctx context.Context, categoryID uuid.UUID) ([]*domain.Product, error) {
	if _, err := s.categories.FindByID(ctx, categoryID); err != nil {
		return nil, err
	}
	return s.products.ListActiveByCategory(ctx, categoryID)
}

// CreateProduct creates a product owned by the acting user
func (s *catalogService) CreateProduct(ctx context.Context, actor Actor, input ProductInput) (*domain.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	product := &domain.Product{
		ID:          uuid.New(),
		UserID:      actor.ID,
		CategoryID:  input.CategoryID,
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		SKU:         input.SKU,
		ImageURL:    input.ImageURL,
		WeightKg:    input.WeightKg,
		IsActive:    input.IsActive,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct updates a product. Only the owner or staff may modify it.
func (s *catalogService) UpdateProduct(ctx context.Context, actor Actor, id uuid.UUID, input ProductInput) (*domain.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && product.UserID != actor.ID {
		return nil, domain.ErrForbidden
	}
	if err := s.checkCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	product.Name = input.Name
	product.Description = input.Description
	product.Price = input.Price
	product.CategoryID = input.CategoryID
	product.SKU = input.SKU
	product.ImageURL = input.ImageURL
	product.WeightKg = input.WeightKg
	product.IsActive = input.IsActive
	product.UpdatedAt = time.Now()

	if err := s.products.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// DeleteProduct removes a product. Products referenced by order items cannot
// be deleted.
func (s *catalogService) DeleteProduct(ctx context.Context, actor Actor, id uuid.UUID) error {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsStaff() && product.UserID != actor.ID {
		return domain.ErrForbidden
	}
	return s.products.Delete(ctx, id)
}

// GetProduct returns one product by id
func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.products.FindByID(ctx, id)
}

// ListProducts returns a filtered, paginated product page plus the total count
func (s *catalogService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	return s.products.List(ctx, filter)
}

// ListLowStock returns active products below the low stock threshold
func (s *catalogService) ListLowStock(ctx context.Context) ([]*domain.Product, error) {
	return s.products.ListLowStock(ctx)
}

// SetStock replaces a product's stock level. Owner or staff only.
func (s *catalogService) SetStock(ctx context.Context, actor Actor, id uuid.UUID, quantity int) (*domain.Product, error) {
	if quantity < 0 {
		return nil, ErrInvalidStock
	}

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && product.UserID != actor.ID {
		return nil, domain.ErrForbidden
	}
	return s.products.SetStock(ctx, id, quantity)
}

func (s *catalogService) checkCategory(ctx context.Context, categoryID *uuid.UUID) error {
	if categoryID == nil {
		return nil
	}
	if _, err := s.categories.FindByID(ctx, *categoryID); err != nil {
		return fmt.Errorf("invalid category: %w", err)
	}
	return nil
}

func validateProductInput(input ProductInput) error {
	if !input.Price.IsPositive() {
		return ErrInvalidPrice
	}
	if input.WeightKg.Valid && input.WeightKg.Decimal.IsNegative() {
		return errors.New("weight cannot be negative")
	}
	return nil
}
