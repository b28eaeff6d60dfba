// handlers_config.go - Page configuration handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/visualiza/backend/internal/chart"
	"github.com/visualiza/backend/internal/parser"
)

// ConfigHandlerImpl implements the ConfigHandler interface
type ConfigHandlerImpl struct {
	limits           chart.Limits
	defaultDelimiter string
	registry         *parser.Registry
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(limits chart.Limits, defaultDelimiter string, registry *parser.Registry) ConfigHandler {
	if registry == nil {
		registry = parser.GetGlobalRegistry()
	}
	return &ConfigHandlerImpl{
		limits:           limits,
		defaultDelimiter: defaultDelimiter,
		registry:         registry,
	}
}

type chartConfigResponse struct {
	Kinds            []chart.Kind      `json:"kinds"`
	Policies         []string          `json:"policies"`
	Limits           chart.Limits      `json:"limits"`
	Extensions       []string          `json:"extensions"`
	ExtensionNotes   map[string]string `json:"extensionNotes"`
	DefaultDelimiter string            `json:"defaultDelimiter"`
}

// HandleGetChartConfig returns the chart kinds, control bounds and accepted
// file extensions
func (h *ConfigHandlerImpl) HandleGetChartConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, chartConfigResponse{
		Kinds:            chart.CanonicalOrder,
		Policies:         []string{string(chart.Isolate), string(chart.AbortOnFirst)},
		Limits:           h.limits,
		Extensions:       h.registry.Extensions(),
		ExtensionNotes:   parser.ExtensionNotes(),
		DefaultDelimiter: h.defaultDelimiter,
	})
}
