package translate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"revoice/internal/fileutil"
	"revoice/internal/logging"
)

// Cache persists source-text to translated-text pairs as a flat JSON object.
// It is loaded once at startup and written incrementally on each new miss so
// an interrupted run keeps every translation it paid for.
type Cache struct {
	path    string
	logger  *slog.Logger
	mu      sync.Mutex
	entries map[string]string
}

// LoadCache reads the cache file at path. A missing file yields an empty
// cache; a corrupt file is logged and discarded rather than failing the run.
func LoadCache(path string, logger *slog.Logger) *Cache {
	c := &Cache{
		path:    path,
		logger:  logging.NewComponentLogger(logger, "translate"),
		entries: make(map[string]string),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("failed to read translation cache", logging.Error(err))
		}
		return c
	}
	if len(data) == 0 {
		return c
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		c.logger.Warn("discarding corrupt translation cache", logging.Error(err))
		c.entries = make(map[string]string)
		return c
	}
	c.logger.Debug("loaded translation cache", logging.Int("entries", len(c.entries)))
	return c
}

// Lookup returns the cached translation for the exact source string.
func (c *Cache) Lookup(text string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	translated, ok := c.entries[text]
	return translated, ok
}

// Store records a translation and persists the cache atomically.
func (c *Cache) Store(source, translated string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[source] = translated

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal translation cache: %w", err)
	}
	if err := fileutil.WriteAtomic(c.path, data, 0o644); err != nil {
		return fmt.Errorf("persist translation cache: %w", err)
	}
	return nil
}

// Len reports the number of cached pairs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
