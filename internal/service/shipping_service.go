package service

import (
	"context"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/shipping"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShippingPreview is a shipping cost quote for a prospective order
type ShippingPreview struct {
	Zone         *domain.ShippingZone
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	FreeShipping bool
}

// ShippingService exposes zones and cost previews. The authoritative cost for
// a real order is computed inside the placement transaction; the preview uses
// the same calculator so the two never disagree.
type ShippingService interface {
	Zones(ctx context.Context) ([]*domain.ShippingZone, error)
	Zone(ctx context.Context, id uuid.UUID) (*domain.ShippingZone, error)
	Preview(ctx context.Context, zoneID uuid.UUID, items []repository.PlacementItem) (*ShippingPreview, error)
}

type shippingService struct {
	zones    repository.ShippingZoneRepository
	products repository.ProductRepository
}

// NewShippingService creates a new instance of ShippingService
func NewShippingService(zones repository.ShippingZoneRepository, products repository.ProductRepository) ShippingService {
	return &shippingService{zones: zones, products: products}
}

// Zones lists all configured shipping zones
func (s *shippingService) Zones(ctx context.Context) ([]*domain.ShippingZone, error) {
	return s.zones.List(ctx)
}

// Zone returns one shipping zone by id
func (s *shippingService) Zone(ctx context.Context, id uuid.UUID) (*domain.ShippingZone, error) {
	return s.zones.FindByID(ctx, id)
}

// Preview quotes the shipping cost for a basket against a zone, using current
// product prices and weights.
func (s *shippingService) Preview(ctx context.Context, zoneID uuid.UUID, items []repository.PlacementItem) (*ShippingPreview, error) {
	if len(items) == 0 {
		return nil, domain.ErrNoOrderItems
	}

	zone, err := s.zones.FindByID(ctx, zoneID)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	weights := make([]shipping.ItemWeight, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, domain.ErrInvalidQuantity
		}
		product, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		subtotal = subtotal.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		if product.WeightKg.Valid {
			weights = append(weights, shipping.ItemWeight{
				WeightKg: product.WeightKg.Decimal,
				Quantity: item.Quantity,
			})
		}
	}

	return &ShippingPreview{
		Zone:         zone,
		Subtotal:     subtotal,
		ShippingCost: shipping.Cost(zone, subtotal, weights),
		FreeShipping: shipping.Free(zone, subtotal),
	}, nil
}
