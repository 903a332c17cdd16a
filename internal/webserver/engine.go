package webserver

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mdouchement/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/usman-khan12/one-shot/internal/lifecycle"
	"github.com/usman-khan12/one-shot/internal/transfer"
	middlewarepkg "github.com/usman-khan12/one-shot/internal/webserver/middleware"
)

// multipartOverhead is the room left for the multipart envelope around the file.
const multipartOverhead = 1 << 20

// A Controller is an Iversion Of Control pattern used to init the server package.
type Controller struct {
	Version  string
	Logger   logger.Logger
	Transfer *transfer.Service
	// MaxSize bounds the request bodies, it should match the lifecycle policy.
	MaxSize int64
	//
	Gatherer     prometheus.Gatherer
	MetricsToken string
}

// EchoEngine instantiates the wep server.
func EchoEngine(ctrl Controller) *echo.Echo {
	if ctrl.MaxSize <= 0 {
		ctrl.MaxSize = lifecycle.DefaultMaxSize
	}

	engine := echo.New()
	engine.HideBanner = true
	engine.HidePort = true
	engine.Use(middleware.Recover())
	engine.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			// Payloads are served as is.
			return strings.HasPrefix(c.Request().URL.Path, "/api/download/")
		},
	}))
	engine.Use(middlewarepkg.Logger(ctrl.Logger))

	engine.HTTPErrorHandler = middlewarepkg.NewHTTPErrorHandler(ctrl.Logger.WithPrefix("[http]"))

	engine.Pre(middleware.Rewrite(map[string]string{
		"/": "/version",
	}))

	//
	//
	//

	router := engine.Group("")

	// Generic handlers
	//
	router.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	})
	router.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"status": "ok",
		})
	})
	if ctrl.Gatherer != nil {
		router.GET("/metrics",
			echo.WrapHandler(promhttp.HandlerFor(ctrl.Gatherer, promhttp.HandlerOpts{})),
			middlewarepkg.Authenticate(ctrl.MetricsToken),
		)
	}

	// Transfers
	//
	api := router.Group("/api", middlewarepkg.NoStore())
	transfers := transfers{
		logger:  ctrl.Logger,
		service: ctrl.Transfer,
	}
	api.POST("/upload", transfers.Upload, middleware.BodyLimit(bodyLimit(ctrl.MaxSize)))
	api.GET("/download/:id", transfers.Download)
	api.GET("/file-info/:id", transfers.Info)

	return engine
}

// bodyLimit returns the echo limit notation of the accepted upload body.
func bodyLimit(maxSize int64) string {
	return fmt.Sprintf("%dK", (maxSize+multipartOverhead+1023)/1024)
}

// PrintRoutes prints the Echo engin exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		"":   true,
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] {
			continue
		}
		fmt.Printf("%6s %s\n", route.Method, route.Path)
	}
}
