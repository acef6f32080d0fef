package handler

import (
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/middleware"

	"github.com/labstack/echo/v4"
)

// Handlers bundles everything the route table needs.
type Handlers struct {
	OAuth     *OAuthHandler
	Webhook   *WebhookHandler
	Sync      *SyncHandler
	Analytics *AnalyticsHandler

	AgentAPIKey string
}

// RegisterRoutes mounts all POS routes on the echo instance.
func RegisterRoutes(e *echo.Echo, h *Handlers) {
	e.GET("/health", HealthCheck)

	// The callback is hit by the provider's redirect, not by an operator.
	e.GET("/api/pos/square/callback", h.OAuth.Callback)

	// Webhooks authenticate by signature, not by bearer token.
	e.POST("/webhooks/square", h.Webhook.Receive)
	e.POST("/webhooks/square/:restaurant_id", h.Webhook.Receive)

	// Operator surface, tenant-scoped by JWT.
	api := e.Group("/api/pos", middleware.JWTAuthMiddleware())
	api.GET("/square/authorize", h.OAuth.Authorize)
	api.POST("/square/disconnect", h.OAuth.Disconnect)
	api.GET("/status", h.OAuth.Status)
	api.POST("/sync/menu", h.Sync.SyncMenu)
	api.POST("/sync/orders", h.Sync.SyncOrders)
	api.GET("/analytics/daily-summary", h.Analytics.DailySummary)
	api.GET("/analytics/top-items", h.Analytics.TopItems)
	api.GET("/analytics/trends", h.Analytics.Trends)
	api.GET("/analytics/prep-forecast", h.Analytics.PrepForecast)

	// Internal agent surface, guarded by a static key.
	agent := e.Group("/agent/pos", middleware.AgentAuthMiddleware(h.AgentAPIKey))
	agent.POST("/sync/menu", h.Sync.AgentSyncMenu)
	agent.POST("/sync/orders", h.Sync.AgentSyncOrders)
	agent.GET("/objects", h.Sync.AgentListObjects)
}
