package transport

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AdminStatsResponse represents the admin dashboard figures
type AdminStatsResponse struct {
	TotalOrders      int             `json:"total_orders"`
	OrdersByStatus   map[string]int  `json:"orders_by_status"`
	DeliveredRevenue decimal.Decimal `json:"delivered_revenue"`
	ActiveProducts   int             `json:"active_products"`
	LowStockProducts int             `json:"low_stock_products"`
	OutOfStock       int             `json:"out_of_stock_products"`
	RecentOrders     []OrderResponse `json:"recent_orders"`
}

// AdminHandler handles HTTP requests for the admin dashboard
type AdminHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(orderService service.OrderService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers all admin routes
func (h *AdminHandler) RegisterRoutes(r chi.Router, authMiddleware, adminOnly func(http.Handler) http.Handler) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware, adminOnly)
		r.Get("/stats", h.Stats)
	})
}

// Stats returns aggregate order and inventory figures
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orderService.Stats(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to load stats")
		return
	}

	byStatus := make(map[string]int, len(stats.OrdersByStatus))
	for status, count := range stats.OrdersByStatus {
		byStatus[string(status)] = count
	}

	recent := make([]OrderResponse, 0, len(stats.RecentOrders))
	for _, order := range stats.RecentOrders {
		recent = append(recent, toOrderResponse(order))
	}

	middleware.RespondWithJSON(w, http.StatusOK, AdminStatsResponse{
		TotalOrders:      stats.TotalOrders,
		OrdersByStatus:   byStatus,
		DeliveredRevenue: stats.DeliveredRevenue,
		ActiveProducts:   stats.ActiveProducts,
		LowStockProducts: stats.LowStockProducts,
		OutOfStock:       stats.OutOfStock,
		RecentOrders:     recent,
	})
}
