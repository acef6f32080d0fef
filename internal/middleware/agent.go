package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AgentAuthMiddleware guards the internal agent endpoints with a static
// bearer key. An empty configured key disables the surface entirely.
func AgentAuthMiddleware(agentKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			if agentKey == "" {
				log.Warn("Agent endpoints are disabled, no key configured")
				return c.JSON(http.StatusNotFound, echo.Map{"error": "Not found"})
			}

			authHeader := c.Request().Header.Get("Authorization")
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == authHeader || token == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing agent key"})
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(agentKey)) != 1 {
				log.Warn("Invalid agent key")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid agent key"})
			}
			return next(c)
		}
	}
}
