package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/usman-khan12/one-shot/internal/webserver/weberror"
)

// Authenticate guards a route with a bearer token.
// An empty token disables the check.
func Authenticate(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" {
				return next(c)
			}

			given := strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
				return weberror.New(http.StatusUnauthorized, "unauthorized", "Authentication required")
			}

			return next(c)
		}
	}
}
