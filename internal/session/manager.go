package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/visualiza/backend/internal/chart"
	"github.com/visualiza/backend/internal/models"
	"github.com/visualiza/backend/internal/parser"
	"github.com/visualiza/backend/internal/profile"
	"github.com/visualiza/backend/internal/render"
	"github.com/visualiza/backend/internal/storage"
)

// MaxSessions limits concurrent sessions to prevent memory exhaustion
const MaxSessions = 50

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

// LargeFileAdvisory is shown while a large upload is being plotted.
const LargeFileAdvisory = "Files with big sizes can take a while to process, please be patient when program is plotting."

var (
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoTable is returned when a session has no parsed table yet.
	ErrNoTable = errors.New("session has no table")
	// ErrSuperseded is returned by an ingestion that a newer upload or
	// delimiter change overtook. Its result is discarded.
	ErrSuperseded = errors.New("ingestion superseded by a newer change")
)

// Options tunes a Manager.
type Options struct {
	Limits             chart.Limits
	LargeFileThreshold int64
	DefaultDelimiter   string
	MaxSessions        int
}

// DefaultOptions returns the stock manager settings.
func DefaultOptions() Options {
	return Options{
		Limits:             chart.DefaultLimits(),
		LargeFileThreshold: parser.LargeFileThreshold,
		DefaultDelimiter:   parser.DefaultDelimiter,
		MaxSessions:        MaxSessions,
	}
}

// Manager holds the interaction state of every browser session: the
// uploaded file, the delimiter, the parsed table and the advisory note.
type Manager struct {
	sessions map[string]*SessionState
	mu       sync.RWMutex
	store    storage.Store
	ingest   *parser.Resolver
	charts   *chart.Resolver
	parsed   *PersistentParsedStore
	opts     Options
	log      *slog.Logger
}

// SessionState holds the session metadata and the parsed table.
type SessionState struct {
	Session      *models.IngestSession
	File         models.UploadedFile
	Table        *models.Table // nil until ingestion succeeds
	Err          error         // last ingestion failure
	LastAccessed time.Time     // Last time the session was accessed (for keep-alive)

	// generation counts file and delimiter changes. Only the ingestion
	// started for the current generation may write Table.
	generation uint64
}

// NewManager creates a session manager. parsed may be nil, which disables
// the persistent table cache.
func NewManager(store storage.Store, parsed *PersistentParsedStore, opts Options) *Manager {
	if opts.DefaultDelimiter == "" {
		opts.DefaultDelimiter = parser.DefaultDelimiter
	}
	if opts.LargeFileThreshold <= 0 {
		opts.LargeFileThreshold = parser.LargeFileThreshold
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = MaxSessions
	}
	return &Manager{
		sessions: make(map[string]*SessionState),
		store:    store,
		ingest:   parser.NewResolver(nil),
		charts:   chart.NewResolver(opts.Limits),
		parsed:   parsed,
		opts:     opts,
		log:      slog.Default().With("component", "session"),
	}
}

// Limits returns the chart control bounds used by this manager.
func (m *Manager) Limits() chart.Limits {
	return m.charts.Limits()
}

// Create stores an upload in a new session and ingests it right away.
// The session survives an ingestion failure so the client can pick a
// different delimiter; the failure is returned alongside it.
func (m *Manager) Create(ctx context.Context, file models.UploadedFile, delimiter string) (*models.IngestSession, error) {
	info, err := m.store.SaveBytes(file.Name, file.Data)
	if err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	m.cleanupOldSessionsIfNeeded()

	session := models.NewIngestSession(uuid.New().String())
	session.File = info
	session.Delimiter = m.delimiterOrDefault(delimiter)
	state := &SessionState{
		Session:      session,
		File:         file,
		LastAccessed: time.Now(),
		generation:   1,
	}

	m.mu.Lock()
	m.sessions[session.ID] = state
	m.mu.Unlock()

	return m.ingestState(ctx, session.ID, state, 1)
}

// Replace swaps the uploaded file of a session and ingests the new one.
// The previous table is discarded.
func (m *Manager) Replace(ctx context.Context, id string, file models.UploadedFile) (*models.IngestSession, error) {
	info, err := m.store.SaveBytes(file.Name, file.Data)
	if err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	m.mu.Lock()
	state, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		m.store.Delete(info.ID)
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	previous := state.Session.File
	state.File = file
	state.Session.File = info
	state.Table = nil
	state.Err = nil
	state.generation++
	gen := state.generation
	m.mu.Unlock()

	if previous != nil {
		if err := m.store.Delete(previous.ID); err != nil {
			m.log.Warn("failed to delete replaced upload", "file", previous.ID, "error", err)
		}
	}
	return m.ingestState(ctx, id, state, gen)
}

// SetDelimiter changes the CSV delimiter of a session and re-ingests its
// file. Setting the current delimiter again is a no-op.
func (m *Manager) SetDelimiter(ctx context.Context, id, delimiter string) (*models.IngestSession, error) {
	m.mu.Lock()
	state, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delimiter = m.delimiterOrDefault(delimiter)
	if state.Session.Delimiter == delimiter && state.Table != nil {
		snapshot := *state.Session
		m.mu.Unlock()
		return &snapshot, nil
	}
	state.Session.Delimiter = delimiter
	state.Table = nil
	state.Err = nil
	state.generation++
	gen := state.generation
	m.mu.Unlock()

	return m.ingestState(ctx, id, state, gen)
}

// ingestState parses the session's file, going through the in-memory and
// persistent table caches first. gen is the generation the caller started;
// once a newer one exists the result is dropped with ErrSuperseded.
func (m *Manager) ingestState(ctx context.Context, id string, state *SessionState, gen uint64) (*models.IngestSession, error) {
	m.mu.Lock()
	if state.generation != gen {
		snapshot := *state.Session
		m.mu.Unlock()
		return &snapshot, fmt.Errorf("%w: %s", ErrSuperseded, id)
	}
	file := state.File
	opts := parser.Options{Delimiter: state.Session.Delimiter, TableName: file.Stem()}
	state.Session.Status = models.SessionStatusParsing
	state.Session.Error, state.Session.ErrorKind = "", ""
	if file.Size() >= m.opts.LargeFileThreshold {
		state.Session.Advisory = LargeFileAdvisory
	} else {
		state.Session.Advisory = ""
	}
	m.mu.Unlock()

	log := m.log.With("session", shortID(id), "file", file.Name)
	start := time.Now()
	key := parser.ContentKey(file, opts)

	table, parserName, fromCache, err := m.lookupTable(ctx, key, id)
	if err != nil {
		log.Warn("table cache lookup failed", "error", err)
	}
	if table != nil {
		// cached tables are shared; only the name differs between uploads
		named := *table
		named.Name = opts.TableName
		table = &named
	} else {
		var res *parser.Result
		res, err = m.ingest.Resolve(ctx, file, opts)
		if err == nil {
			table, parserName = res.Table, res.ParserName
			m.persist(ctx, key, table, log)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessions[id] != state {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if state.generation != gen {
		log.Info("dropping superseded ingestion", "generation", gen, "current", state.generation)
		snapshot := *state.Session
		return &snapshot, fmt.Errorf("%w: %s", ErrSuperseded, id)
	}
	s := state.Session
	if s.File != nil {
		s.File.ContentKey = key
	}
	s.ProcessingTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		state.Err = err
		state.Table = nil
		s.Status = models.SessionStatusError
		s.Error = err.Error()
		s.ErrorKind = errorKind(err)
		s.Columns, s.NumericColumns, s.RowCount = nil, nil, 0
		s.Advisory = ""
		snapshot := *s
		return &snapshot, err
	}

	state.Table = table
	state.Err = nil
	s.Status = models.SessionStatusComplete
	s.ParserName = parserName
	s.FromCache = fromCache
	s.Columns = table.Columns
	s.NumericColumns = table.NumericColumns()
	s.RowCount = table.NumRows()
	if s.File != nil {
		s.File.Status = "parsed"
	}
	log.Info("session ingested", "rows", s.RowCount, "columns", len(s.Columns), "cached", fromCache)

	snapshot := *s
	return &snapshot, nil
}

// lookupTable finds an already parsed table for key: first in the other
// live sessions, then in the persistent store.
func (m *Manager) lookupTable(ctx context.Context, key, self string) (*models.Table, string, bool, error) {
	m.mu.RLock()
	for id, st := range m.sessions {
		if id == self || st.Table == nil || st.Session.File == nil {
			continue
		}
		if st.Session.File.ContentKey == key {
			t, name := st.Table, st.Session.ParserName
			m.mu.RUnlock()
			return t, name, true, nil
		}
	}
	m.mu.RUnlock()

	if m.parsed == nil {
		return nil, "", false, nil
	}
	t, err := m.parsed.Load(ctx, key)
	if err != nil || t == nil {
		return nil, "", false, err
	}
	return t, "cache", true, nil
}

func (m *Manager) persist(ctx context.Context, key string, table *models.Table, log *slog.Logger) {
	if m.parsed == nil {
		return
	}
	if err := m.parsed.Save(ctx, key, table); err != nil {
		log.Warn("failed to persist table", "error", err)
	}
}

func (m *Manager) delimiterOrDefault(d string) string {
	if d == "" {
		return m.opts.DefaultDelimiter
	}
	return d
}

func errorKind(err error) string {
	var ie *parser.IngestionError
	if errors.As(err, &ie) {
		return string(ie.Kind)
	}
	return "internal"
}

// Get returns a snapshot of a session.
func (m *Manager) Get(id string) (*models.IngestSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	snapshot := *state.Session
	return &snapshot, true
}

// TouchSession updates the LastAccessed timestamp for a session.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// Table returns the parsed table of a session. A session whose ingestion
// failed returns that failure.
func (m *Manager) Table(id string) (*models.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	state.LastAccessed = time.Now()
	if state.Err != nil {
		return nil, state.Err
	}
	if state.Table == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoTable, id)
	}
	return state.Table, nil
}

// Head returns the first rows of the session table. rows <= 0 uses the
// default table row count.
func (m *Manager) Head(id string, rows int) (*models.Table, error) {
	table, err := m.Table(id)
	if err != nil {
		return nil, err
	}
	if rows <= 0 {
		rows = m.charts.Limits().DefaultRows
	}
	return table.Head(rows), nil
}

// Profile describes the columns of the session table.
func (m *Manager) Profile(id string) (*profile.Table, error) {
	table, err := m.Table(id)
	if err != nil {
		return nil, err
	}
	return profile.Describe(table)
}

// Render runs one chart pass over the session table. The large-file
// advisory is cleared once the pass is over, whatever its outcome.
func (m *Manager) Render(ctx context.Context, id string, doc chart.Document) (*chart.PassResult, error) {
	table, err := m.Table(id)
	if err != nil {
		return nil, err
	}
	defer m.clearAdvisory(id)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	result, err := m.charts.Pass(table, doc.Charts, doc.Policy)
	if err != nil {
		return nil, err
	}
	m.log.Info("render pass",
		"session", shortID(id),
		"charts", len(result.Outcomes),
		"failed", len(result.Failures()),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// RenderPNG draws a single chart request of the session as PNG.
func (m *Manager) RenderPNG(ctx context.Context, id string, req chart.Request) ([]byte, error) {
	table, err := m.Table(id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	call, err := m.charts.Resolve(table, req)
	if err != nil {
		return nil, err
	}
	fig, err := chart.BuildFigure(table, call)
	if err != nil {
		return nil, err
	}
	return render.PNG(fig)
}

func (m *Manager) clearAdvisory(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.sessions[id]; ok {
		state.Session.Advisory = ""
	}
}

// Delete removes a session and its stored upload.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	state, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	if state.Session.File != nil {
		if err := m.store.Delete(state.Session.File.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ParsedStats reports on the persistent table cache, or nil when disabled.
func (m *Manager) ParsedStats() map[string]interface{} {
	if m.parsed == nil {
		return nil
	}
	return m.parsed.Stats()
}

// PruneTableCache trims the persistent table cache by age and entry count.
// It is a no-op when the cache is disabled.
func (m *Manager) PruneTableCache(maxAge time.Duration, maxEntries int) int {
	if m.parsed == nil {
		return 0
	}
	return m.parsed.Prune(maxAge, maxEntries)
}

// cleanupOldSessionsIfNeeded removes the least recently used sessions if at capacity
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	var evicted []*SessionState
	for len(m.sessions) >= m.opts.MaxSessions {
		var oldestID string
		var oldest time.Time
		for id, state := range m.sessions {
			if oldestID == "" || state.LastAccessed.Before(oldest) {
				oldestID, oldest = id, state.LastAccessed
			}
		}
		evicted = append(evicted, m.sessions[oldestID])
		delete(m.sessions, oldestID)
		m.log.Info("evicted session to free memory", "session", shortID(oldestID))
	}
	m.mu.Unlock()

	m.releaseFiles(evicted)
}

// CleanupOldSessions removes sessions not accessed within maxAge,
// but keeps sessions that have been accessed within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	if maxAge < SessionKeepAliveWindow {
		maxAge = SessionKeepAliveWindow
	}
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	var expired []*SessionState
	for id, state := range m.sessions {
		if state.LastAccessed.Before(cutoff) {
			expired = append(expired, state)
			delete(m.sessions, id)
			m.log.Info("cleaned up aged session",
				"session", shortID(id),
				"idle", time.Since(state.LastAccessed).Round(time.Second))
		}
	}
	m.mu.Unlock()

	m.releaseFiles(expired)
	return len(expired)
}

func (m *Manager) releaseFiles(states []*SessionState) {
	for _, state := range states {
		if state.Session.File == nil {
			continue
		}
		if err := m.store.Delete(state.Session.File.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			m.log.Warn("failed to delete upload", "file", state.Session.File.ID, "error", err)
		}
	}
}
