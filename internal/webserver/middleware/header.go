package middleware

import (
	"github.com/labstack/echo/v4"
)

// NoStore forbids any cache to keep the responses.
func NoStore() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set(echo.HeaderCacheControl, "no-store, no-cache, must-revalidate, private")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
			h.Set(echo.HeaderXContentTypeOptions, "nosniff")

			return next(c)
		}
	}
}
