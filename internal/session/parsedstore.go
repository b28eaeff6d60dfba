package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/visualiza/backend/internal/models"
	"github.com/visualiza/backend/internal/parser"
)

// shortID safely truncates an ID for logging (handles short IDs gracefully)
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

const (
	tableFilePrefix = "table_"
	tableFileSuffix = ".duckdb"
)

// PersistentParsedStore keeps parsed tables in DuckDB files keyed by content
// key, so an identical upload (same bytes, same delimiter) is not parsed again,
// even after a restart.
type PersistentParsedStore struct {
	parsedDir string
	opts      parser.DuckOptions
	log       *slog.Logger
	mu        sync.RWMutex
	// cache tracks which content keys have been stored (key -> dbPath)
	cache map[string]string
}

// NewPersistentParsedStore creates a persistent parsed store in parsedDir.
func NewPersistentParsedStore(parsedDir string, opts parser.DuckOptions) (*PersistentParsedStore, error) {
	if err := os.MkdirAll(parsedDir, 0755); err != nil {
		return nil, fmt.Errorf("creating tables directory: %w", err)
	}

	store := &PersistentParsedStore{
		parsedDir: parsedDir,
		opts:      opts,
		log:       slog.Default().With("component", "parsedstore"),
		cache:     make(map[string]string),
	}

	// Scan existing parsed databases on startup
	store.scanExisting()

	return store, nil
}

// scanExisting scans the parsed directory for existing databases on startup.
func (pps *PersistentParsedStore) scanExisting() {
	entries, err := os.ReadDir(pps.parsedDir)
	if err != nil {
		pps.log.Warn("failed to scan tables directory", "dir", pps.parsedDir, "error", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		// Look for files matching pattern: table_<key>.duckdb
		name := entry.Name()
		if !strings.HasPrefix(name, tableFilePrefix) || !strings.HasSuffix(name, tableFileSuffix) {
			continue
		}
		key := strings.TrimSuffix(strings.TrimPrefix(name, tableFilePrefix), tableFileSuffix)
		if key == "" {
			continue
		}
		pps.cache[key] = filepath.Join(pps.parsedDir, name)
	}

	pps.log.Info("scanned table cache", "dir", pps.parsedDir, "tables", len(pps.cache))
}

// GetDBPath returns the path where a parsed DB would be stored for a content key.
func (pps *PersistentParsedStore) GetDBPath(key string) string {
	return filepath.Join(pps.parsedDir, tableFilePrefix+key+tableFileSuffix)
}

// IsParsed checks if a table has already been stored for key.
func (pps *PersistentParsedStore) IsParsed(key string) bool {
	pps.mu.RLock()
	_, ok := pps.cache[key]
	pps.mu.RUnlock()

	if ok {
		return true
	}

	// Double-check by looking for the file (in case it was created externally)
	dbPath := pps.GetDBPath(key)
	if _, err := os.Stat(dbPath); err == nil {
		pps.mu.Lock()
		pps.cache[key] = dbPath
		pps.mu.Unlock()
		return true
	}

	return false
}

// Load returns the stored table for key. It returns (nil, nil) when nothing
// is stored.
func (pps *PersistentParsedStore) Load(ctx context.Context, key string) (*models.Table, error) {
	if !pps.IsParsed(key) {
		return nil, nil
	}

	pps.mu.RLock()
	dbPath := pps.cache[key]
	pps.mu.RUnlock()

	// Verify file still exists
	if _, err := os.Stat(dbPath); err != nil {
		pps.mu.Lock()
		delete(pps.cache, key)
		pps.mu.Unlock()
		return nil, nil
	}

	store, err := parser.OpenDuckStore(dbPath, pps.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open parsed DB: %w", err)
	}
	defer store.Close()

	table, err := store.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read parsed DB: %w", err)
	}

	pps.log.Debug("loaded cached table", "key", shortID(key), "rows", table.NumRows())
	return table, nil
}

// Save writes table under key, replacing any previous entry. A failed write
// leaves no entry behind.
func (pps *PersistentParsedStore) Save(ctx context.Context, key string, table *models.Table) error {
	dbPath := pps.GetDBPath(key)

	store, err := parser.NewDuckStoreAtPath(dbPath, pps.opts)
	if err != nil {
		return fmt.Errorf("failed to create parsed DB: %w", err)
	}
	if err := store.WriteTable(ctx, table); err != nil {
		store.Close()
		os.Remove(dbPath)
		return fmt.Errorf("failed to write parsed DB: %w", err)
	}
	if err := store.Close(); err != nil {
		os.Remove(dbPath)
		return fmt.Errorf("failed to close parsed DB: %w", err)
	}

	pps.MarkComplete(key)
	return nil
}

// MarkComplete marks a key as stored and ready for reuse.
func (pps *PersistentParsedStore) MarkComplete(key string) {
	pps.mu.Lock()
	pps.cache[key] = pps.GetDBPath(key)
	pps.mu.Unlock()
	pps.log.Debug("stored table", "key", shortID(key))
}

// Delete removes the parsed DB stored under key.
func (pps *PersistentParsedStore) Delete(key string) error {
	pps.mu.Lock()
	delete(pps.cache, key)
	pps.mu.Unlock()

	dbPath := pps.GetDBPath(key)
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete parsed DB: %w", err)
	}
	return nil
}

// List returns all stored content keys.
func (pps *PersistentParsedStore) List() []string {
	pps.mu.RLock()
	defer pps.mu.RUnlock()

	keys := make([]string, 0, len(pps.cache))
	for key := range pps.cache {
		keys = append(keys, key)
	}
	return keys
}

// Prune deletes stored tables older than maxAge, then the oldest tables
// beyond maxEntries. A zero limit disables that check. It returns the number
// of tables removed.
func (pps *PersistentParsedStore) Prune(maxAge time.Duration, maxEntries int) int {
	type entry struct {
		key     string
		modTime time.Time
	}
	var entries []entry
	for _, key := range pps.List() {
		info, err := os.Stat(pps.GetDBPath(key))
		if err != nil {
			pps.mu.Lock()
			delete(pps.cache, key)
			pps.mu.Unlock()
			continue
		}
		entries = append(entries, entry{key: key, modTime: info.ModTime()})
	}
	// newest first
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].modTime.After(entries[j].modTime)
	})

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for i, e := range entries {
		expired := maxAge > 0 && e.modTime.Before(cutoff)
		overflow := maxEntries > 0 && i >= maxEntries
		if !expired && !overflow {
			continue
		}
		if err := pps.Delete(e.key); err != nil {
			pps.log.Warn("failed to prune cached table", "key", shortID(e.key), "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		pps.log.Info("pruned table cache", "removed", removed, "kept", len(entries)-removed)
	}
	return removed
}

// Stats returns statistics about the parsed store.
func (pps *PersistentParsedStore) Stats() map[string]interface{} {
	pps.mu.Lock()
	defer pps.mu.Unlock()

	var totalSize int64
	for key, dbPath := range pps.cache {
		if info, err := os.Stat(dbPath); err == nil {
			totalSize += info.Size()
		} else {
			// File missing, remove from cache
			delete(pps.cache, key)
		}
	}

	return map[string]interface{}{
		"parsedCount": len(pps.cache),
		"totalSize":   totalSize,
		"parsedDir":   pps.parsedDir,
	}
}
