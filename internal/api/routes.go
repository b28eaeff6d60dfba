// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/visualiza/backend/internal/chart"
	"github.com/visualiza/backend/internal/logging"
	"github.com/visualiza/backend/internal/parser"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	SessionMgr       SessionManager
	Limits           chart.Limits
	DefaultDelimiter string
	MaxUploadSize    int64
	Version          string
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Session SessionHandler
	Config  ConfigHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	delimiter := deps.DefaultDelimiter
	if delimiter == "" {
		delimiter = parser.DefaultDelimiter
	}
	return &Handlers{
		Health:  NewHealthHandler(deps.Version, deps.SessionMgr),
		Session: NewSessionHandler(deps.SessionMgr, deps.MaxUploadSize),
		Config:  NewConfigHandler(deps.Limits, delimiter, nil),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	api := e.Group("/api")

	// Health check
	api.GET("/health", handlers.Health.HandleHealth)

	// Page configuration
	api.GET("/config/charts", handlers.Config.HandleGetChartConfig)

	// Session routes
	sessions := api.Group("/sessions")
	sessions.POST("", handlers.Session.HandleCreateSession)
	sessions.GET("/:id", handlers.Session.HandleGetSession)
	sessions.DELETE("/:id", handlers.Session.HandleDeleteSession)
	sessions.PUT("/:id/file", handlers.Session.HandleReplaceFile)
	sessions.PUT("/:id/delimiter", handlers.Session.HandleSetDelimiter)
	sessions.POST("/:id/keepalive", handlers.Session.HandleSessionKeepAlive)
	sessions.GET("/:id/table", handlers.Session.HandleGetTable)
	sessions.GET("/:id/table/msgpack", handlers.Session.HandleGetTableMsgpack)
	sessions.GET("/:id/profile", handlers.Session.HandleGetProfile)
	sessions.POST("/:id/render", handlers.Session.HandleRender)
	sessions.POST("/:id/chart.png", handlers.Session.HandleRenderPNG)
}

// MiddlewareOptions selects the optional middleware of SetupMiddleware
type MiddlewareOptions struct {
	EnableCORS     bool
	AllowOrigins   string // comma separated
	BodyLimit      string // e.g. "512M"
	RequestLogging bool
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, opts MiddlewareOptions) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.Recover())
	e.Use(logging.RequestID())
	if opts.RequestLogging {
		e.Use(logging.RequestLogger())
	}

	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}

	// binary responses are sent as is
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return strings.HasSuffix(p, ".png") || strings.HasSuffix(p, "/msgpack")
		},
	}))

	if opts.EnableCORS {
		origins := []string{"*"}
		if opts.AllowOrigins != "" {
			origins = strings.Split(opts.AllowOrigins, ",")
			for i := range origins {
				origins[i] = strings.TrimSpace(origins[i])
			}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
		}))
	}
}
