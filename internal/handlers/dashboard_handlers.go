package handlers

import (
	"net/http"
	"time"

	"logitrack/internal/alerts"
	"logitrack/internal/caching"
	"logitrack/internal/ledger"
	"logitrack/internal/services"

	"github.com/labstack/echo/v4"
)

const dashboardStatsTTL = 5 * time.Minute

// DashboardHandlers serves the aggregate counters the dashboard polls. The
// aggregate is cached with a short TTL; the underlying alert evaluators are
// recomputed from a fresh ledger snapshot on every cache refresh.
type DashboardHandlers struct {
	ledger      ledger.Ledger
	shipmentSvc services.ShipmentService
	cacheSvc    caching.CacheService
}

func NewDashboardHandlers(l ledger.Ledger, shipmentSvc services.ShipmentService, cacheSvc caching.CacheService) *DashboardHandlers {
	return &DashboardHandlers{
		ledger:      l,
		shipmentSvc: shipmentSvc,
		cacheSvc:    cacheSvc,
	}
}

// GetStats handles GET /dashboard/stats
func (h *DashboardHandlers) GetStats(c echo.Context) error {
	ctx := c.Request().Context()

	if cached, err := h.cacheSvc.GetDashboardStats(ctx); err == nil && cached != nil {
		return c.JSON(http.StatusOK, cached)
	}

	products, err := h.ledger.Products(ctx)
	if err != nil {
		return httpError(err)
	}
	shipments, err := h.shipmentSvc.List(ctx)
	if err != nil {
		return httpError(err)
	}

	byStatus := make(map[string]int)
	for _, s := range shipments {
		byStatus[s.Status]++
	}

	stats := &caching.DashboardStats{
		TotalProducts:     len(products),
		LowStockCount:     len(alerts.LowStock(products, alerts.DefaultLowStockThreshold)),
		ExpiringCount:     len(alerts.ExpiringSoon(products, time.Now().UTC(), alerts.DefaultExpiryDays)),
		ShipmentsByStatus: byStatus,
		GeneratedAt:       time.Now().UTC(),
	}

	if err := h.cacheSvc.SetDashboardStats(ctx, stats, dashboardStatsTTL); err != nil {
		c.Logger().Warnf("failed to cache dashboard stats: %v", err)
	}

	return c.JSON(http.StatusOK, stats)
}
