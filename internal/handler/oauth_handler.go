package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/middleware"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/oauth"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/store"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// OAuthHandler serves the Square connect/disconnect surface.
type OAuthHandler struct {
	lifecycle   *oauth.Lifecycle
	store       store.Store
	frontendURL string
}

// NewOAuthHandler wires the OAuth endpoints.
func NewOAuthHandler(lc *oauth.Lifecycle, st store.Store, frontendURL string) *OAuthHandler {
	return &OAuthHandler{lifecycle: lc, store: st, frontendURL: frontendURL}
}

// Authorize returns the Square authorize URL for the caller's restaurant
func (h *OAuthHandler) Authorize(c echo.Context) error {
	log := logger.FromContext(c)
	restaurantID := middleware.RestaurantID(c)

	authorizeURL, err := h.lifecycle.AuthorizeURL(c.Request().Context(), restaurantID)
	if err != nil {
		if errors.Is(err, oauth.ErrNotConfigured) {
			log.Error("square oauth not configured")
			return c.JSON(http.StatusServiceUnavailable, echo.Map{
				"error": "Square integration is not configured on this deployment",
			})
		}
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Restaurant not found"})
		}
		log.Error("cannot build authorize url", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to start authorization"})
	}
	return c.JSON(http.StatusOK, echo.Map{"authorize_url": authorizeURL})
}

// Callback completes the OAuth flow and redirects the browser back to the
// frontend with a success flag or a stable error reason.
func (h *OAuthHandler) Callback(c echo.Context) error {
	log := logger.FromContext(c)
	state := c.QueryParam("state")
	code := c.QueryParam("code")

	if denied := c.QueryParam("error"); denied != "" {
		log.Warn("square authorization denied", zap.String("error", denied))
		return c.Redirect(http.StatusFound, h.frontendRedirect("error", "authorization_denied"))
	}
	if state == "" || code == "" {
		return c.Redirect(http.StatusFound, h.frontendRedirect("error", oauth.ReasonInvalidState))
	}

	r, err := h.lifecycle.HandleCallback(c.Request().Context(), state, code)
	if err != nil {
		reason := "connection_failed"
		var cbErr *oauth.CallbackError
		if errors.As(err, &cbErr) {
			reason = cbErr.Reason
		}
		log.Warn("square callback failed", zap.String("reason", reason), zap.Error(err))
		return c.Redirect(http.StatusFound, h.frontendRedirect("error", reason))
	}

	log.Info("square connected via callback", zap.String("restaurant_id", r.ID))
	return c.Redirect(http.StatusFound, h.frontendRedirect("connected", "1"))
}

// Disconnect revokes and clears the POS connection
func (h *OAuthHandler) Disconnect(c echo.Context) error {
	log := logger.FromContext(c)
	restaurantID := middleware.RestaurantID(c)

	r, err := h.store.GetRestaurant(c.Request().Context(), restaurantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Restaurant not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load restaurant"})
	}
	if err := h.lifecycle.Disconnect(c.Request().Context(), r); err != nil {
		log.Error("disconnect failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to disconnect"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "disconnected"})
}

// Status reports the POS connection state for the caller's restaurant
func (h *OAuthHandler) Status(c echo.Context) error {
	restaurantID := middleware.RestaurantID(c)

	r, err := h.store.GetRestaurant(c.Request().Context(), restaurantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Restaurant not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load restaurant"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"provider":         r.POSProvider,
		"connected":        r.POSConnected,
		"merchant_id":      r.POSMerchantID,
		"location_id":      r.POSLocationID,
		"last_sync_at":     r.POSLastSyncAt,
		"token_expires_at": r.POSTokenExpiresAt,
	})
}

func (h *OAuthHandler) frontendRedirect(key, value string) string {
	q := url.Values{}
	q.Set(key, value)
	return h.frontendURL + "/settings/pos?" + q.Encode()
}
