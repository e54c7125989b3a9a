package middleware // reusable HTTP middleware: auth, response cache, rate limiting

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pokernight/internal/utils"
)

// Context keys set by JWTAuth.
const (
	ctxUserID   = "user_id"
	ctxUserName = "user_name"
)

// JWTAuth validates a Bearer access token and stores the caller's id
// and display name in the echo context.  Handlers read them back with
// UserID.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			id, _ := claims.UserID()
			c.Set(ctxUserID, id)
			c.Set(ctxUserName, claims.Name)
			return next(c)
		}
	}
}
