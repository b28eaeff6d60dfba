package session

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/visualiza/backend/internal/chart"
	"github.com/visualiza/backend/internal/models"
	"github.com/visualiza/backend/internal/parser"
	"github.com/visualiza/backend/internal/storage"
)

const salesCSV = "region,units,price\nnorth,2,1.5\nsouth,4,2.5\nnorth,6,3.5\n"

func newTestManager(t *testing.T, parsedDir string, opts Options) (*Manager, *storage.LocalStore) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir(), 0)
	require.NoError(t, err)

	var parsed *PersistentParsedStore
	if parsedDir != "" {
		parsed, err = NewPersistentParsedStore(parsedDir, parser.DefaultDuckOptions())
		require.NoError(t, err)
	}
	return NewManager(store, parsed, opts), store
}

func upload(name, content string) models.UploadedFile {
	return models.UploadedFile{Name: name, Data: []byte(content)}
}

func TestManager_Create(t *testing.T) {
	m, _ := newTestManager(t, "", DefaultOptions())

	sess, err := m.Create(context.Background(), upload("Sales.csv", salesCSV), "")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusComplete, sess.Status)
	assert.Equal(t, ",", sess.Delimiter)
	assert.Equal(t, []string{"region", "units", "price"}, sess.Columns)
	assert.Equal(t, []string{"units", "price"}, sess.NumericColumns)
	assert.Equal(t, 3, sess.RowCount)
	assert.Equal(t, "csv", sess.ParserName)
	assert.Empty(t, sess.Advisory)
	require.NotNil(t, sess.File)
	assert.NotEmpty(t, sess.File.ContentKey)

	table, err := m.Table(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "sales", table.Name)

	head, err := m.Head(sess.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, head.NumRows())

	head, err = m.Head(sess.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, head.NumRows())
}

func TestManager_CreateUnsupported(t *testing.T) {
	m, _ := newTestManager(t, "", DefaultOptions())

	sess, err := m.Create(context.Background(), upload("notes.txt", "hello"), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, parser.ErrUnsupportedFormat))
	require.NotNil(t, sess)
	assert.Equal(t, models.SessionStatusError, sess.Status)
	assert.Equal(t, string(parser.KindUnsupportedFormat), sess.ErrorKind)

	_, err = m.Table(sess.ID)
	assert.ErrorIs(t, err, parser.ErrUnsupportedFormat)

	_, err = m.Render(context.Background(), sess.ID, chart.Document{Charts: []chart.Request{{Kind: chart.KindTable}}})
	assert.ErrorIs(t, err, parser.ErrUnsupportedFormat)
}

func TestManager_SetDelimiter(t *testing.T) {
	m, _ := newTestManager(t, "", DefaultOptions())
	ctx := context.Background()

	sess, err := m.Create(ctx, upload("semi.csv", "a;b\n1;2\n"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a;b"}, sess.Columns)

	sess, err = m.SetDelimiter(ctx, sess.ID, ";")
	require.NoError(t, err)
	assert.Equal(t, ";", sess.Delimiter)
	assert.Equal(t, []string{"a", "b"}, sess.Columns)
	assert.False(t, sess.FromCache)

	table, err := m.Table(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, table.Rows[0])

	again, err := m.SetDelimiter(ctx, sess.ID, ";")
	require.NoError(t, err)
	assert.Equal(t, sess.ProcessingTimeMs, again.ProcessingTimeMs)

	_, err = m.SetDelimiter(ctx, "missing", ";")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_SetDelimiterRecoversFromParseError(t *testing.T) {
	m, _ := newTestManager(t, "", DefaultOptions())
	ctx := context.Background()

	sess, err := m.Create(ctx, upload("bad.csv", "a,b\n1,2\n"), "((")
	require.Error(t, err)
	assert.ErrorIs(t, err, parser.ErrParse)
	assert.Equal(t, models.SessionStatusError, sess.Status)

	sess, err = m.SetDelimiter(ctx, sess.ID, ",")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusComplete, sess.Status)
	assert.Empty(t, sess.Error)
}

func TestManager_Replace(t *testing.T) {
	m, store := newTestManager(t, "", DefaultOptions())
	ctx := context.Background()

	sess, err := m.Create(ctx, upload("one.csv", "a\n1\n"), "")
	require.NoError(t, err)
	firstFile := sess.File.ID

	sess, err = m.Replace(ctx, sess.ID, upload("two.json", `[{"x": 1, "y": "b"}]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, sess.Columns)
	assert.Equal(t, "json", sess.ParserName)

	_, err = store.Get(firstFile)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = m.Replace(ctx, "missing", upload("x.csv", "a\n"))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_StaleIngestionIsDropped(t *testing.T) {
	m, _ := newTestManager(t, "", DefaultOptions())
	ctx := context.Background()

	sess, err := m.Create(ctx, upload("semi.csv", "a;b\n1;2\n"), "")
	require.NoError(t, err)

	m.mu.RLock()
	state := m.sessions[sess.ID]
	started := state.generation
	m.mu.RUnlock()

	_, err = m.SetDelimiter(ctx, sess.ID, ";")
	require.NoError(t, err)

	// an ingestion started before the delimiter change finishes now
	_, err = m.ingestState(ctx, sess.ID, state, started)
	assert.ErrorIs(t, err, ErrSuperseded)

	got, ok := m.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, ";", got.Delimiter)
	assert.Equal(t, []string{"a", "b"}, got.Columns)
}

func TestManager_ReplaceDuringReingest(t *testing.T) {
	m, _ := newTestManager(t, "", DefaultOptions())
	ctx := context.Background()

	var big strings.Builder
	big.WriteString("a,b,c\n")
	for i := 0; i < 50000; i++ {
		big.WriteString("1,2,3\n")
	}
	sess, err := m.Create(ctx, upload("big.csv", big.String()), "")
	require.NoError(t, err)
	assert.Equal(t, 50000, sess.RowCount)

	done := make(chan error, 1)
	go func() {
		_, err := m.SetDelimiter(ctx, sess.ID, ",,")
		done <- err
	}()

	_, err = m.Replace(ctx, sess.ID, upload("tiny.csv", "x,y\n1,2\n"))
	if err != nil {
		assert.ErrorIs(t, err, ErrSuperseded)
	}
	if err := <-done; err != nil {
		assert.ErrorIs(t, err, ErrSuperseded)
	}

	// whichever change came last, the table belongs to the current file
	got, ok := m.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, "tiny.csv", got.File.Name)
	assert.Equal(t, 1, got.RowCount)

	table, err := m.Table(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "tiny", table.Name)
	assert.Equal(t, 1, table.NumRows())
}

func TestManager_TableCache(t *testing.T) {
	parsedDir := t.TempDir()
	ctx := context.Background()

	m, _ := newTestManager(t, parsedDir, DefaultOptions())
	first, err := m.Create(ctx, upload("sales.csv", salesCSV), "")
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := m.Create(ctx, upload("Copy.csv", salesCSV), "")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.File.ContentKey, second.File.ContentKey)

	table, err := m.Table(second.ID)
	require.NoError(t, err)
	assert.Equal(t, "copy", table.Name)

	// a fresh manager finds the table on disk
	restarted, _ := newTestManager(t, parsedDir, DefaultOptions())
	third, err := restarted.Create(ctx, upload("sales.csv", salesCSV), "")
	require.NoError(t, err)
	assert.True(t, third.FromCache)

	table, err = restarted.Table(third.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "units", "price"}, table.Columns)
	assert.Equal(t, []any{"north", int64(2), 1.5}, table.Rows[0])

	// a different delimiter is a different key
	fourth, err := restarted.Create(ctx, upload("sales.csv", salesCSV), ";")
	require.NoError(t, err)
	assert.False(t, fourth.FromCache)
	assert.NotEqual(t, third.File.ContentKey, fourth.File.ContentKey)

	stats := restarted.ParsedStats()
	assert.Equal(t, 2, stats["parsedCount"])
}

func TestManager_PruneTableCache(t *testing.T) {
	parsedDir := t.TempDir()
	ctx := context.Background()
	m, _ := newTestManager(t, parsedDir, DefaultOptions())

	var keys []string
	for _, delim := range []string{",", ";", "|"} {
		sess, err := m.Create(ctx, upload("sales.csv", salesCSV), delim)
		require.NoError(t, err)
		keys = append(keys, sess.File.ContentKey)
	}

	now := time.Now()
	for i, age := range []time.Duration{48 * time.Hour, time.Hour, 0} {
		stamp := now.Add(-age)
		require.NoError(t, os.Chtimes(m.parsed.GetDBPath(keys[i]), stamp, stamp))
	}

	assert.Equal(t, 1, m.PruneTableCache(24*time.Hour, 0))
	assert.NoFileExists(t, m.parsed.GetDBPath(keys[0]))
	assert.Equal(t, 2, m.ParsedStats()["parsedCount"])

	// over the cap the oldest table goes first
	assert.Equal(t, 1, m.PruneTableCache(0, 1))
	assert.NoFileExists(t, m.parsed.GetDBPath(keys[1]))
	assert.FileExists(t, m.parsed.GetDBPath(keys[2]))

	assert.Equal(t, 0, m.PruneTableCache(0, 0))

	// after a restart a pruned table is parsed again
	restarted, _ := newTestManager(t, parsedDir, DefaultOptions())
	again, err := restarted.Create(ctx, upload("sales.csv", salesCSV), ",")
	require.NoError(t, err)
	assert.False(t, again.FromCache)

	disabled, _ := newTestManager(t, "", DefaultOptions())
	assert.Equal(t, 0, disabled.PruneTableCache(time.Nanosecond, 1))
}

func TestManager_AdvisoryClearedAfterRender(t *testing.T) {
	opts := DefaultOptions()
	opts.LargeFileThreshold = 16
	m, _ := newTestManager(t, "", opts)
	ctx := context.Background()

	sess, err := m.Create(ctx, upload("sales.csv", salesCSV), "")
	require.NoError(t, err)
	assert.Equal(t, LargeFileAdvisory, sess.Advisory)

	_, err = m.Render(ctx, sess.ID, chart.Document{Charts: []chart.Request{{Kind: chart.KindPie, Names: "units"}}})
	require.NoError(t, err)

	got, ok := m.Get(sess.ID)
	require.True(t, ok)
	assert.Empty(t, got.Advisory)
}

func TestManager_Render(t *testing.T) {
	m, _ := newTestManager(t, "", DefaultOptions())
	ctx := context.Background()

	sess, err := m.Create(ctx, upload("sales.csv", salesCSV), "")
	require.NoError(t, err)

	doc := chart.Document{Charts: []chart.Request{
		{Kind: chart.KindTable, Rows: 2},
		{Kind: chart.KindBar, X: "region", Y: "units"},
		{Kind: chart.KindPie, Names: "units"},
	}}
	res, err := m.Render(ctx, sess.ID, doc)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 3)
	assert.Equal(t, chart.KindBar, res.Outcomes[0].Kind)
	assert.Equal(t, chart.KindPie, res.Outcomes[1].Kind)
	assert.Equal(t, chart.KindTable, res.Outcomes[2].Kind)
	assert.False(t, res.Outcomes[0].Failed())
	assert.ErrorIs(t, res.Outcomes[1].Err, chart.ErrConfiguration)
	assert.False(t, res.Outcomes[2].Failed())
	assert.Nil(t, res.Err)

	_, err = m.Render(ctx, "missing", doc)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_RenderPNG(t *testing.T) {
	m, _ := newTestManager(t, "", DefaultOptions())
	ctx := context.Background()

	sess, err := m.Create(ctx, upload("sales.csv", salesCSV), "")
	require.NoError(t, err)

	png, err := m.RenderPNG(ctx, sess.ID, chart.Request{Kind: chart.KindBar, X: "region", Y: "units"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = m.RenderPNG(ctx, sess.ID, chart.Request{Kind: chart.KindBar, X: "nope"})
	assert.ErrorIs(t, err, chart.ErrConfiguration)
}

func TestManager_Profile(t *testing.T) {
	m, _ := newTestManager(t, "", DefaultOptions())

	sess, err := m.Create(context.Background(), upload("sales.csv", salesCSV), "")
	require.NoError(t, err)

	p, err := m.Profile(sess.ID)
	require.NoError(t, err)
	require.Len(t, p.Columns, 3)
	require.NotNil(t, p.Columns[1].Summary)
	assert.InDelta(t, 4.0, p.Columns[1].Summary.Mean, 1e-9)
}

func TestManager_Delete(t *testing.T) {
	m, store := newTestManager(t, "", DefaultOptions())

	sess, err := m.Create(context.Background(), upload("sales.csv", salesCSV), "")
	require.NoError(t, err)

	require.NoError(t, m.Delete(sess.ID))
	_, ok := m.Get(sess.ID)
	assert.False(t, ok)
	_, err = store.Get(sess.File.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, m.Delete(sess.ID), ErrSessionNotFound)
}

func TestManager_CleanupOldSessions(t *testing.T) {
	m, _ := newTestManager(t, "", DefaultOptions())
	ctx := context.Background()

	stale, err := m.Create(ctx, upload("a.csv", "a\n1\n"), "")
	require.NoError(t, err)
	fresh, err := m.Create(ctx, upload("b.csv", "b\n2\n"), "")
	require.NoError(t, err)

	m.mu.Lock()
	m.sessions[stale.ID].LastAccessed = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()

	assert.Equal(t, 1, m.CleanupOldSessions(time.Hour))
	_, ok := m.Get(stale.ID)
	assert.False(t, ok)
	_, ok = m.Get(fresh.ID)
	assert.True(t, ok)
}

func TestManager_EvictsLeastRecentlyUsed(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxSessions = 2
	m, _ := newTestManager(t, "", opts)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		sess, err := m.Create(ctx, upload(name+".csv", strings.ToUpper(name)+"\n1\n"), "")
		require.NoError(t, err)
		ids = append(ids, sess.ID)
		time.Sleep(2 * time.Millisecond)
	}

	assert.Equal(t, 2, m.Count())
	_, ok := m.Get(ids[0])
	assert.False(t, ok)
	_, ok = m.Get(ids[2])
	assert.True(t, ok)
}
