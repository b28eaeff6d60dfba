package logging

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RequestID assigns every request an id (X-Request-ID) and stores it in the
// request context for FromContext.
func RequestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(WithRequestID(req.Context(), id)))
		},
	})
}

// RequestLogger logs one line per request through slog.
//
// Log fields:
//   - method, uri, status
//   - duration_ms
//   - ip: client IP as resolved by echo
//   - error: handler error, if any
func RequestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger := FromContext(c.Request().Context())
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"duration_ms", v.Latency.Milliseconds(),
				"ip", v.RemoteIP,
			}
			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error.Error())
				if v.Status >= 500 {
					level = slog.LevelError
				} else {
					level = slog.LevelWarn
				}
			}
			logger.Log(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}
