package transport

import (
	"net/http"
	"strconv"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CategoryRequest represents the category create/update payload
type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
}

// CategoryResponse represents a category with its active product count
type CategoryResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	ProductsCount int    `json:"products_count"`
}

// ProductRequest represents the product create/update payload
type ProductRequest struct {
	Name        string              `json:"name" validate:"required,max=255"`
	Description string              `json:"description"`
	Price       decimal.Decimal     `json:"price" validate:"required"`
	CategoryID  *uuid.UUID          `json:"category_id"`
	SKU         string              `json:"sku" validate:"required,max=100"`
	ImageURL    string              `json:"image_url"`
	WeightKg    decimal.NullDecimal `json:"weight_kg"`
	IsActive    *bool               `json:"is_active"`
}

// SetStockRequest represents the stock replacement payload
type SetStockRequest struct {
	StockQuantity *int `json:"stock_quantity" validate:"required"`
}

// ProductResponse represents product data returned to clients
type ProductResponse struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	Price         decimal.Decimal     `json:"price"`
	CategoryID    *uuid.UUID          `json:"category_id,omitempty"`
	SKU           string              `json:"sku"`
	ImageURL      string              `json:"image_url,omitempty"`
	WeightKg      decimal.NullDecimal `json:"weight_kg,omitempty"`
	StockQuantity int                 `json:"stock_quantity"`
	InStock       bool                `json:"in_stock"`
	LowStock      bool                `json:"low_stock"`
	IsActive      bool                `json:"is_active"`
}

// ProductListResponse is a paginated product listing
type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// CatalogHandler handles HTTP requests for categories and products
type CatalogHandler struct {
	catalogService service.CatalogService
	logger         *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalogService service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// RegisterRoutes registers all catalog routes
func (h *CatalogHandler) RegisterRoutes(r chi.Router, authMiddleware, adminOnly func(http.Handler) http.Handler) {
	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", h.ListCategories)
		r.Get("/{id}", h.GetCategory)
		r.Get("/{id}/products", h.CategoryProducts)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware, adminOnly)
			r.Post("/", h.CreateCategory)
			r.Put("/{id}", h.UpdateCategory)
			r.Delete("/{id}", h.DeleteCategory)
		})
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/", h.CreateProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
			r.Patch("/{id}/stock", h.SetStock)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware, adminOnly)
			r.Get("/low-stock", h.ListLowStock)
		})
	})
}

// ListCategories returns all categories with product counts
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalogService.ListCategories(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list categories")
		return
	}

	response := make([]CategoryResponse, 0, len(categories))
	for _, c := range categories {
		response = append(response, toCategoryResponse(c))
	}
	middleware.RespondWithJSON(w, http.StatusOK, response)
}

// GetCategory returns one category
func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	category, err := h.catalogService.GetCategory(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get category")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toCategoryResponse(category))
}

// CategoryProducts returns the active products in a category
func (h *CatalogHandler) CategoryProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	products, err := h.catalogService.CategoryProducts(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list category products")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toProductResponses(products))
}

// CreateCategory creates a new category
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decodeAndRespond(w, r, h.logger, &req) {
		return
	}

	category, err := h.catalogService.CreateCategory(r.Context(), service.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create category")
		return
	}

	h.logger.Info("Category created", zap.String("category_id", category.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, toCategoryResponse(category))
}

// UpdateCategory updates a category
func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req CategoryRequest
	if !decodeAndRespond(w, r, h.logger, &req) {
		return
	}

	category, err := h.catalogService.UpdateCategory(r.Context(), id, service.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update category")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toCategoryResponse(category))
}

// DeleteCategory deletes a category; its products become uncategorized
func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.catalogService.DeleteCategory(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete category")
		return
	}

	h.logger.Info("Category deleted", zap.String("category_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

// ListProducts returns a filtered, paginated product listing
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	products, total, err := h.catalogService.ListProducts(r.Context(), filter)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{
		Products: toProductResponses(products),
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
}

// GetProduct returns one product
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.catalogService.GetProduct(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get product")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toProductResponse(product))
}

// CreateProduct creates a new product owned by the caller
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req ProductRequest
	if !decodeAndRespond(w, r, h.logger, &req) {
		return
	}

	product, err := h.catalogService.CreateProduct(r.Context(), actor, productInput(req))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create product")
		return
	}

	h.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("sku", product.SKU),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, toProductResponse(product))
}

// UpdateProduct updates a product
func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	id, ok := parseIDParam(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req ProductRequest
	if !decodeAndRespond(w, r, h.logger, &req) {
		return
	}

	product, err := h.catalogService.UpdateProduct(r.Context(), actor, id, productInput(req))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update product")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toProductResponse(product))
}

// DeleteProduct deletes a product not referenced by any order
func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	id, ok := parseIDParam(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.catalogService.DeleteProduct(r.Context(), actor, id); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete product")
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

// SetStock replaces a product's stock level
func (h *CatalogHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	id, ok := parseIDParam(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req SetStockRequest
	if !decodeAndRespond(w, r, h.logger, &req) {
		return
	}

	product, err := h.catalogService.SetStock(r.Context(), actor, id, *req.StockQuantity)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to set stock")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toProductResponse(product))
}

// ListLowStock returns active products running low on stock
func (h *CatalogHandler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalogService.ListLowStock(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list low stock products")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toProductResponses(products))
}

func productInput(req ProductRequest) service.ProductInput {
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	return service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		CategoryID:  req.CategoryID,
		SKU:         req.SKU,
		ImageURL:    req.ImageURL,
		WeightKg:    req.WeightKg,
		IsActive:    isActive,
	}
}

func parseProductFilter(r *http.Request) (repository.ProductFilter, error) {
	q := r.URL.Query()
	filter := repository.ProductFilter{
		Search:    q.Get("search"),
		SortBy:    q.Get("sort_by"),
		SortOrder: repository.SortOrderAsc,
		Page:      1,
		PageSize:  20,
	}

	if raw := q.Get("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, err
		}
		filter.CategoryID = &id
	}
	if raw := q.Get("min_price"); raw != "" {
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, err
		}
		filter.MinPrice = &p
	}
	if raw := q.Get("max_price"); raw != "" {
		p, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, err
		}
		filter.MaxPrice = &p
	}
	if q.Get("in_stock") == "true" {
		filter.InStockOnly = true
	}
	if q.Get("sort_order") == "desc" {
		filter.SortOrder = repository.SortOrderDesc
	}
	if raw := q.Get("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if raw := q.Get("page_size"); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil && size > 0 && size <= 100 {
			filter.PageSize = size
		}
	}
	return filter, nil
}

func toCategoryResponse(c *repository.CategoryWithCount) CategoryResponse {
	return CategoryResponse{
		ID:            c.ID.String(),
		Name:          c.Name,
		Description:   c.Description,
		ProductsCount: c.ProductsCount,
	}
}

func toProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID.String(),
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		CategoryID:    p.CategoryID,
		SKU:           p.SKU,
		ImageURL:      p.ImageURL,
		WeightKg:      p.WeightKg,
		StockQuantity: p.StockQuantity,
		InStock:       p.InStock(),
		LowStock:      p.LowStock(),
		IsActive:      p.IsActive,
	}
}

func toProductResponses(products []*domain.Product) []ProductResponse {
	responses := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		responses = append(responses, toProductResponse(p))
	}
	return responses
}
