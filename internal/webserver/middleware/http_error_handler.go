package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/logger"
	"github.com/usman-khan12/one-shot/internal/webserver/weberror"
)

// NewHTTPErrorHandler is a middleware that formats rendered errors.
func NewHTTPErrorHandler(log logger.Logger) func(err error, c echo.Context) {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		werr := weberror.From(err)
		if werr.RetryAfter > 0 {
			seconds := int64(math.Ceil(werr.RetryAfter.Seconds()))
			c.Response().Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
		}

		var err2 error
		if c.Request().Method == http.MethodHead {
			err2 = c.NoContent(werr.Code)
		} else {
			err2 = c.JSON(werr.Code, werr)
		}

		if werr.Code >= http.StatusInternalServerError {
			log.Errorf("%s: %+v", c.Path(), err)
		} else {
			log.Debugf("%s: %s", c.Path(), err)
		}
		if err2 != nil {
			log.Errorf("HTTPErrorHandler: %s", err2)
		}
	}
}
