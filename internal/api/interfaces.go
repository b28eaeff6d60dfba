// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/visualiza/backend/internal/chart"
	"github.com/visualiza/backend/internal/models"
	"github.com/visualiza/backend/internal/profile"
)

// SessionHandler handles upload, table and chart operations of a session
type SessionHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleReplaceFile(c echo.Context) error
	HandleSetDelimiter(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleGetTable(c echo.Context) error
	HandleGetTableMsgpack(c echo.Context) error
	HandleGetProfile(c echo.Context) error
	HandleRender(c echo.Context) error
	HandleRenderPNG(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// ConfigHandler exposes the settings the page needs to build its controls
type ConfigHandler interface {
	HandleGetChartConfig(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	Create(ctx context.Context, file models.UploadedFile, delimiter string) (*models.IngestSession, error)
	Replace(ctx context.Context, id string, file models.UploadedFile) (*models.IngestSession, error)
	SetDelimiter(ctx context.Context, id, delimiter string) (*models.IngestSession, error)
	Get(id string) (*models.IngestSession, bool)
	TouchSession(id string) bool
	Delete(id string) error
	Head(id string, rows int) (*models.Table, error)
	Profile(id string) (*profile.Table, error)
	Render(ctx context.Context, id string, doc chart.Document) (*chart.PassResult, error)
	RenderPNG(ctx context.Context, id string, req chart.Request) ([]byte, error)
	Count() int
	ParsedStats() map[string]interface{}
}
