package middleware

import (
	"net/http"
	"strings"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/pkg/jwtutil"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// JWTAuthMiddleware validates the operator bearer token and stores the
// claims on the context. Every POS operation is scoped to the restaurant in
// the claims.
func JWTAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("Missing authorization header")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Missing authorization header"})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				log.Warn("Invalid authorization header format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid authorization header format"})
			}

			claims, err := jwtutil.ValidateToken(parts[1])
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid or expired token"})
			}
			if claims.RestaurantID == "" {
				log.Warn("Token carries no restaurant scope")
				return c.JSON(http.StatusForbidden, echo.Map{"error": "Token is not scoped to a restaurant"})
			}

			c.Set("user", claims)
			c.Set("restaurant_id", claims.RestaurantID)
			return next(c)
		}
	}
}

// RestaurantID returns the tenant scope set by JWTAuthMiddleware.
func RestaurantID(c echo.Context) string {
	id, _ := c.Get("restaurant_id").(string)
	return id
}
