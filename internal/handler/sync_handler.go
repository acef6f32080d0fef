package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/middleware"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/registry"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/store"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SyncHandler exposes the manual sync triggers and the snapshot listing.
// The operator endpoints read the tenant from the JWT; the agent endpoints
// take an explicit restaurant_id.
type SyncHandler struct {
	manager *registry.Manager
	store   store.Store
}

// NewSyncHandler wires the sync endpoints.
func NewSyncHandler(m *registry.Manager, st store.Store) *SyncHandler {
	return &SyncHandler{manager: m, store: st}
}

// SyncMenu runs a catalog sync for the caller's restaurant
func (h *SyncHandler) SyncMenu(c echo.Context) error {
	return h.runCatalogSync(c, middleware.RestaurantID(c))
}

// SyncOrders imports remote orders for a time window
func (h *SyncHandler) SyncOrders(c echo.Context) error {
	return h.runOrderSync(c, middleware.RestaurantID(c))
}

// AgentSyncMenu runs a catalog sync on behalf of the agent
func (h *SyncHandler) AgentSyncMenu(c echo.Context) error {
	restaurantID := c.QueryParam("restaurant_id")
	if restaurantID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "restaurant_id is required"})
	}
	return h.runCatalogSync(c, restaurantID)
}

// AgentSyncOrders imports remote orders on behalf of the agent
func (h *SyncHandler) AgentSyncOrders(c echo.Context) error {
	restaurantID := c.QueryParam("restaurant_id")
	if restaurantID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "restaurant_id is required"})
	}
	return h.runOrderSync(c, restaurantID)
}

// AgentListObjects lists the latest remote object snapshots
func (h *SyncHandler) AgentListObjects(c echo.Context) error {
	restaurantID := c.QueryParam("restaurant_id")
	if restaurantID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "restaurant_id is required"})
	}
	r, err := h.store.GetRestaurant(c.Request().Context(), restaurantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Restaurant not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load restaurant"})
	}

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	objects, err := h.store.ListExternalObjects(
		c.Request().Context(), restaurantID, r.POSProvider, c.QueryParam("object_type"), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to list objects"})
	}
	return c.JSON(http.StatusOK, echo.Map{"objects": objects, "count": len(objects)})
}

func (h *SyncHandler) runCatalogSync(c echo.Context, restaurantID string) error {
	log := logger.FromContext(c)

	res, err := h.manager.SyncCatalog(c.Request().Context(), restaurantID)
	if err != nil {
		return h.syncError(c, log, err, "catalog")
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "result": res})
}

func (h *SyncHandler) runOrderSync(c echo.Context, restaurantID string) error {
	log := logger.FromContext(c)

	until := time.Now()
	since := until.Add(-24 * time.Hour)
	if raw := c.QueryParam("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "since must be RFC3339"})
		}
		since = parsed
	}
	if raw := c.QueryParam("until"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "until must be RFC3339"})
		}
		until = parsed
	}
	if !since.Before(until) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "since must precede until"})
	}

	res, err := h.manager.SyncOrders(c.Request().Context(), restaurantID, since, until)
	if err != nil {
		return h.syncError(c, log, err, "orders")
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "result": res})
}

func (h *SyncHandler) syncError(c echo.Context, log *zap.Logger, err error, kind string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Restaurant not found"})
	case errors.Is(err, registry.ErrNotConnected):
		return c.JSON(http.StatusConflict, echo.Map{"error": "No POS connection"})
	default:
		log.Error("sync failed", zap.String("kind", kind), zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "Sync failed", "detail": err.Error()})
	}
}
