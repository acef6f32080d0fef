package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/webhook"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SquareSignatureHeader carries the delivery signature.
const SquareSignatureHeader = "X-Square-Hmacsha256-Signature"

// maxWebhookBody caps the accepted delivery size.
const maxWebhookBody = 1 << 20

// WebhookHandler receives Square webhook deliveries.
type WebhookHandler struct {
	ingestor *webhook.Ingestor
}

// NewWebhookHandler wires the webhook endpoint.
func NewWebhookHandler(in *webhook.Ingestor) *WebhookHandler {
	return &WebhookHandler{ingestor: in}
}

// Receive handles a delivery. All rejections get the same response so the
// endpoint leaks nothing about why a delivery was refused.
func (h *WebhookHandler) Receive(c echo.Context) error {
	log := logger.FromContext(c)

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid webhook"})
	}
	signature := c.Request().Header.Get(SquareSignatureHeader)
	restaurantIDHint := c.Param("restaurant_id")

	res, err := h.ingestor.Ingest(c.Request().Context(), restaurantIDHint, body, signature)
	if err != nil {
		var rej *webhook.RejectError
		if errors.As(err, &rej) {
			log.Warn("webhook rejected", zap.String("reason", rej.Reason))
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid webhook"})
		}
		log.Error("webhook ingestion failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": res.Status})
}
