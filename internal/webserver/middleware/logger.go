package middleware

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
)

// Logger logs the served requests.
func Logger(log logger.Logger) echo.MiddlewareFunc {
	log = log.WithPrefix("[http]")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			log.Infof("%s %s %s %d %s %s",
				c.RealIP(),
				req.Method,
				c.Path(),
				res.Status,
				humanize.IBytes(uint64(res.Size)),
				time.Since(start).Round(time.Microsecond),
			)
			return nil
		}
	}
}
