package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/middleware"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/registry"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AnalyticsHandler serves the sales reporting endpoints.
type AnalyticsHandler struct {
	analytics *registry.Analytics
}

// NewAnalyticsHandler wires the analytics endpoints.
func NewAnalyticsHandler(a *registry.Analytics) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: a}
}

// DailySummary rolls up one day of sales. Defaults to today (UTC).
func (h *AnalyticsHandler) DailySummary(c echo.Context) error {
	log := logger.FromContext(c)
	restaurantID := middleware.RestaurantID(c)

	date := time.Now().UTC()
	if raw := c.QueryParam("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
		}
		date = parsed
	}

	summary, err := h.analytics.DailySummary(c.Request().Context(), restaurantID, date)
	if err != nil {
		log.Error("daily summary failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to compute summary"})
	}
	return c.JSON(http.StatusOK, summary)
}

// TopItems ranks the best sellers over a window. Defaults to the last 7
// days.
func (h *AnalyticsHandler) TopItems(c echo.Context) error {
	log := logger.FromContext(c)
	restaurantID := middleware.RestaurantID(c)

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -7)
	if raw := c.QueryParam("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "from must be YYYY-MM-DD"})
		}
		from = parsed
	}
	if raw := c.QueryParam("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "to must be YYYY-MM-DD"})
		}
		to = parsed.Add(24 * time.Hour)
	}
	limit := 10
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	items, err := h.analytics.TopSellingItems(c.Request().Context(), restaurantID, from, to, limit)
	if err != nil {
		log.Error("top items failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to compute top items"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Trends compares the trailing window against the one before it
func (h *AnalyticsHandler) Trends(c echo.Context) error {
	log := logger.FromContext(c)
	restaurantID := middleware.RestaurantID(c)

	days := 7
	if raw := c.QueryParam("days"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 90 {
			days = n
		}
	}

	trend, err := h.analytics.TrendAnalysis(c.Request().Context(), restaurantID, days)
	if err != nil {
		log.Error("trend analysis failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to compute trends"})
	}
	return c.JSON(http.StatusOK, trend)
}

// PrepForecast returns the prep list for an upcoming day. Defaults to
// tomorrow (UTC).
func (h *AnalyticsHandler) PrepForecast(c echo.Context) error {
	log := logger.FromContext(c)
	restaurantID := middleware.RestaurantID(c)

	date := time.Now().UTC().AddDate(0, 0, 1)
	if raw := c.QueryParam("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
		}
		date = parsed
	}

	forecast, err := h.analytics.PrepListForecast(c.Request().Context(), restaurantID, date)
	if err != nil {
		log.Error("prep forecast failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to compute forecast"})
	}
	return c.JSON(http.StatusOK, forecast)
}
