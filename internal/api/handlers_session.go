// handlers_session.go - Session, table and chart handlers
package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/visualiza/backend/internal/chart"
	"github.com/visualiza/backend/internal/logging"
	"github.com/visualiza/backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	sessionMgr    SessionManager
	maxUploadSize int64
}

// NewSessionHandler creates a new session handler instance
func NewSessionHandler(sessionMgr SessionManager, maxUploadSize int64) SessionHandler {
	return &SessionHandlerImpl{
		sessionMgr:    sessionMgr,
		maxUploadSize: maxUploadSize,
	}
}

// tableResponse is the payload of the table endpoints
type tableResponse struct {
	Name      string   `json:"name" msgpack:"name"`
	Columns   []string `json:"columns" msgpack:"columns"`
	Rows      [][]any  `json:"rows" msgpack:"rows"`
	TotalRows int      `json:"totalRows" msgpack:"totalRows"`
}

// chartResult is one chart of a render pass
type chartResult struct {
	Kind     chart.Kind    `json:"kind"`
	CallType string        `json:"callType,omitempty"`
	Call     any           `json:"call,omitempty"`
	Figure   *chart.Figure `json:"figure,omitempty"`
	Error    *APIError     `json:"error,omitempty"`
	Skipped  bool          `json:"skipped,omitempty"`
}

// renderResponse is the payload of a render pass
type renderResponse struct {
	Session *models.IngestSession `json:"session,omitempty"`
	Charts  []chartResult         `json:"charts"`
	Error   string                `json:"error,omitempty"`
}

// readUpload reads the multipart "file" field into memory.
func (h *SessionHandlerImpl) readUpload(c echo.Context) (models.UploadedFile, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return models.UploadedFile{}, NewBadRequestError("no file uploaded", err)
	}
	if h.maxUploadSize > 0 && fh.Size > h.maxUploadSize {
		return models.UploadedFile{}, NewPayloadTooLargeError(h.maxUploadSize)
	}

	src, err := fh.Open()
	if err != nil {
		return models.UploadedFile{}, NewInternalError("failed to open upload", err)
	}
	defer src.Close()

	var r io.Reader = src
	if h.maxUploadSize > 0 {
		r = io.LimitReader(src, h.maxUploadSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return models.UploadedFile{}, NewInternalError("failed to read upload", err)
	}
	if h.maxUploadSize > 0 && int64(len(data)) > h.maxUploadSize {
		return models.UploadedFile{}, NewPayloadTooLargeError(h.maxUploadSize)
	}
	return models.UploadedFile{Name: fh.Filename, Data: data}, nil
}

// ingestFailure reports a failed ingestion while keeping the session id so
// the client can retry with another delimiter.
func ingestFailure(sess *models.IngestSession, err error) error {
	apiErr := *FromDomainError(err)
	if sess != nil {
		apiErr.SessionID = sess.ID
	}
	return &apiErr
}

// HandleCreateSession uploads a file into a new session and ingests it
func (h *SessionHandlerImpl) HandleCreateSession(c echo.Context) error {
	file, err := h.readUpload(c)
	if err != nil {
		return err
	}

	sess, err := h.sessionMgr.Create(c.Request().Context(), file, c.FormValue("delimiter"))
	if err != nil {
		return ingestFailure(sess, err)
	}

	logging.FromContext(c.Request().Context()).Info("session created",
		"session", sess.ID, "file", file.Name, "size", file.Size())
	return c.JSON(http.StatusCreated, sess)
}

// HandleGetSession returns the current state of a session
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	id := c.Param("id")
	sess, ok := h.sessionMgr.Get(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	// Touch session to prevent cleanup while being viewed
	h.sessionMgr.TouchSession(id)

	return c.JSON(http.StatusOK, sess)
}

// HandleDeleteSession removes a session and its upload
func (h *SessionHandlerImpl) HandleDeleteSession(c echo.Context) error {
	if err := h.sessionMgr.Delete(c.Param("id")); err != nil {
		return FromDomainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleReplaceFile uploads a new file into an existing session
func (h *SessionHandlerImpl) HandleReplaceFile(c echo.Context) error {
	id := c.Param("id")
	if _, ok := h.sessionMgr.Get(id); !ok {
		return NewNotFoundError("session", id)
	}
	file, err := h.readUpload(c)
	if err != nil {
		return err
	}

	sess, err := h.sessionMgr.Replace(c.Request().Context(), id, file)
	if err != nil {
		return ingestFailure(sess, err)
	}
	return c.JSON(http.StatusOK, sess)
}

type delimiterRequest struct {
	Delimiter string `json:"delimiter"`
}

// HandleSetDelimiter changes the CSV delimiter and re-ingests the upload
func (h *SessionHandlerImpl) HandleSetDelimiter(c echo.Context) error {
	var req delimiterRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Delimiter == "" {
		return NewValidationError("delimiter")
	}

	sess, err := h.sessionMgr.SetDelimiter(c.Request().Context(), c.Param("id"), req.Delimiter)
	if err != nil {
		return ingestFailure(sess, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleSessionKeepAlive extends session lifetime for active viewing
func (h *SessionHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("id")
	if ok := h.sessionMgr.TouchSession(id); !ok {
		return NewNotFoundError("session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionHandlerImpl) loadTable(c echo.Context) (*tableResponse, error) {
	id := c.Param("id")
	rows := 0
	if raw := c.QueryParam("rows"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, NewValidationError("rows")
		}
		rows = n
	}

	sess, ok := h.sessionMgr.Get(id)
	if !ok {
		return nil, NewNotFoundError("session", id)
	}
	head, err := h.sessionMgr.Head(id, rows)
	if err != nil {
		return nil, FromDomainError(err)
	}
	return &tableResponse{
		Name:      head.Name,
		Columns:   head.Columns,
		Rows:      head.Rows,
		TotalRows: sess.RowCount,
	}, nil
}

// HandleGetTable returns the first rows of the session table as JSON
func (h *SessionHandlerImpl) HandleGetTable(c echo.Context) error {
	resp, err := h.loadTable(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleGetTableMsgpack returns the first rows of the session table as msgpack
func (h *SessionHandlerImpl) HandleGetTableMsgpack(c echo.Context) error {
	resp, err := h.loadTable(c)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(resp)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleGetProfile returns column statistics of the session table
func (h *SessionHandlerImpl) HandleGetProfile(c echo.Context) error {
	p, err := h.sessionMgr.Profile(c.Param("id"))
	if err != nil {
		return FromDomainError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func readBody(c echo.Context) ([]byte, error) {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, NewBadRequestError("failed to read request body", err)
	}
	return data, nil
}

// HandleRender runs a chart pass. The body is a chart document in JSON or YAML.
func (h *SessionHandlerImpl) HandleRender(c echo.Context) error {
	id := c.Param("id")
	body, err := readBody(c)
	if err != nil {
		return err
	}
	doc, err := chart.ParseDocument(body)
	if err != nil {
		return FromDomainError(err)
	}

	result, err := h.sessionMgr.Render(c.Request().Context(), id, *doc)
	if err != nil {
		return FromDomainError(err)
	}

	resp := renderResponse{Charts: make([]chartResult, 0, len(result.Outcomes))}
	for _, o := range result.Outcomes {
		cr := chartResult{Kind: o.Kind, Figure: o.Figure, Skipped: o.Skipped}
		if o.Call != nil {
			cr.CallType = o.Call.CallType()
			cr.Call = o.Call
		}
		if o.Err != nil {
			cr.Error = FromDomainError(o.Err)
		}
		resp.Charts = append(resp.Charts, cr)
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	if sess, ok := h.sessionMgr.Get(id); ok {
		resp.Session = sess
	}

	logging.FromContext(c.Request().Context()).Debug("render pass served",
		"session", id, "charts", len(resp.Charts), "aborted", result.Err != nil)
	return c.JSON(http.StatusOK, resp)
}

// HandleRenderPNG draws a single chart request as PNG
func (h *SessionHandlerImpl) HandleRenderPNG(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	req, err := chart.ParseRequest(body)
	if err != nil {
		return FromDomainError(err)
	}

	png, err := h.sessionMgr.RenderPNG(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return FromDomainError(err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", string(req.Kind)+".png"))
	return c.Blob(http.StatusOK, "image/png", png)
}
