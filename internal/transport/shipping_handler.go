package transport

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ShippingZoneResponse represents a shipping zone returned to clients
type ShippingZoneResponse struct {
	ID                    string           `json:"id"`
	Name                  string           `json:"name"`
	Country               string           `json:"country"`
	BaseRate              decimal.Decimal  `json:"base_rate"`
	PerKgRate             *decimal.Decimal `json:"per_kg_rate,omitempty"`
	FreeShippingThreshold *decimal.Decimal `json:"free_shipping_threshold,omitempty"`
}

// ShippingPreviewRequest represents the cost preview payload
type ShippingPreviewRequest struct {
	ShippingZoneID uuid.UUID          `json:"shipping_zone_id" validate:"required"`
	Items          []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// ShippingPreviewResponse represents a shipping cost quote
type ShippingPreviewResponse struct {
	Zone         ShippingZoneResponse `json:"zone"`
	Subtotal     decimal.Decimal      `json:"subtotal"`
	ShippingCost decimal.Decimal      `json:"shipping_cost"`
	FreeShipping bool                 `json:"free_shipping"`
}

// ShippingHandler handles HTTP requests for shipping zones and cost previews
type ShippingHandler struct {
	shippingService service.ShippingService
	logger          *zap.Logger
}

// NewShippingHandler creates a new ShippingHandler
func NewShippingHandler(shippingService service.ShippingService, logger *zap.Logger) *ShippingHandler {
	return &ShippingHandler{
		shippingService: shippingService,
		logger:          logger,
	}
}

// RegisterRoutes registers all shipping routes
func (h *ShippingHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/shipping", func(r chi.Router) {
		r.Get("/zones", h.ListZones)
		r.Get("/zones/{id}", h.GetZone)
		r.Post("/preview", h.Preview)
	})
}

// ListZones returns all configured shipping zones
func (h *ShippingHandler) ListZones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.shippingService.Zones(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list shipping zones")
		return
	}

	response := make([]ShippingZoneResponse, 0, len(zones))
	for _, zone := range zones {
		response = append(response, toZoneResponse(zone))
	}
	middleware.RespondWithJSON(w, http.StatusOK, response)
}

// GetZone returns one shipping zone
func (h *ShippingHandler) GetZone(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	zone, err := h.shippingService.Zone(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get shipping zone")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toZoneResponse(zone))
}

// Preview quotes the shipping cost for a basket against a zone
func (h *ShippingHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req ShippingPreviewRequest
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

	preview, err := h.shippingService.Preview(r.Context(), req.ShippingZoneID, items)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to preview shipping cost")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ShippingPreviewResponse{
		Zone:         toZoneResponse(preview.Zone),
		Subtotal:     preview.Subtotal,
		ShippingCost: preview.ShippingCost,
		FreeShipping: preview.FreeShipping,
	})
}

func toZoneResponse(zone *domain.ShippingZone) ShippingZoneResponse {
	response := ShippingZoneResponse{
		ID:       zone.ID.String(),
		Name:     zone.Name,
		Country:  zone.Country,
		BaseRate: zone.BaseRate,
	}
	if zone.PerKgRate.Valid {
		rate := zone.PerKgRate.Decimal
		response.PerKgRate = &rate
	}
	if zone.FreeShippingThreshold.Valid {
		threshold := zone.FreeShippingThreshold.Decimal
		response.FreeShippingThreshold = &threshold
	}
	return response
}
