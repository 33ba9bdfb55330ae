package langcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"origlang/internal/fileutil"
	"origlang/internal/logging"
	"origlang/internal/lookup"
	"origlang/internal/services"
)

const (
	metadataFileName = "_cache_metadata.json"
	entrySchema      = 1
)

// fileEntry is the on-disk form of one cached detection.
type fileEntry struct {
	CacheKey      string            `json:"cache_key"`
	Query         lookup.Query      `json:"query"`
	Result        *lookup.Detection `json:"result"`
	CreatedAt     time.Time         `json:"created_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
	SchemaVersion int               `json:"schema_version"`
}

type indexEntry struct {
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	QueryTitle       string    `json:"query_title,omitempty"`
	ResultLanguage   string    `json:"result_language,omitempty"`
	ResultConfidence float64   `json:"result_confidence"`
}

type index struct {
	Entries map[string]indexEntry `json:"entries"`
}

// FileCache keeps one JSON file per entry plus an index file. The index
// is serialized by a process-local mutex; concurrent processes sharing a
// directory may lose index updates but never corrupt entry files.
type FileCache struct {
	dir         string
	ttl         time.Duration
	maxSize     int
	autoCleanup bool
	now         func() time.Time
	logger      *slog.Logger

	mu sync.Mutex
}

var _ Cache = (*FileCache)(nil)

// NewFileCache creates the cache directory if needed.
func NewFileCache(opts Options, logger *slog.Logger) (*FileCache, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		return nil, fmt.Errorf("%w: cache dir required", services.ErrConfigInvalid)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	c := &FileCache{
		dir:         dir,
		ttl:         opts.TTL,
		maxSize:     opts.MaxSize,
		autoCleanup: opts.AutoCleanup,
		now:         opts.clock(),
		logger:      logging.NewComponentLogger(logger, "langcache"),
	}
	c.logger.Debug("file cache ready", logging.String("dir", dir))
	return c, nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }

func (c *FileCache) entryPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *FileCache) metadataPath() string {
	return filepath.Join(c.dir, metadataFileName)
}

// Get implements Cache.
func (c *FileCache) Get(ctx context.Context, q lookup.Query) (*lookup.Detection, bool) {
	c.maybeCleanup(ctx)

	key := Key(q)
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.entryPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("cache entry unreadable",
				logging.String(logging.FieldCacheKey, key),
				logging.Error(err),
				logging.String(logging.FieldEventType, "cache_read_failed"),
				logging.String(logging.FieldImpact, "treated as cache miss"),
			)
		}
		return nil, false
	}

	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Result == nil {
		if err == nil {
			err = errors.New("missing result")
		}
		c.logger.Warn("removing corrupt cache entry",
			logging.String(logging.FieldCacheKey, key),
			logging.Error(fmt.Errorf("%w: %w", services.ErrCacheCorrupt, err)),
			logging.String(logging.FieldEventType, "cache_corrupt"),
			logging.String(logging.FieldImpact, "entry will be re-detected"),
		)
		c.removeLocked(key)
		return nil, false
	}

	if !c.now().Before(entry.ExpiresAt) {
		c.logger.Debug("cache entry expired", logging.String(logging.FieldCacheKey, key))
		c.removeLocked(key)
		return nil, false
	}
	return entry.Result.Clone(), true
}

// Set implements Cache. The entry file is written atomically before the
// index is updated.
func (c *FileCache) Set(ctx context.Context, q lookup.Query, d *lookup.Detection) error {
	if d == nil {
		return errors.New("cache set: nil detection")
	}
	c.maybeCleanup(ctx)

	key := Key(q)
	now := c.now()
	entry := fileEntry{
		CacheKey:      key,
		Query:         q.Normalized(),
		Result:        d,
		CreatedAt:     now,
		ExpiresAt:     now.Add(c.ttl),
		SchemaVersion: entrySchema,
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := fileutil.WriteFileAtomic(c.entryPath(key), data); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	idx := c.loadIndexLocked()
	idx.Entries[key] = indexEntry{
		CreatedAt:        entry.CreatedAt,
		ExpiresAt:        entry.ExpiresAt,
		QueryTitle:       entry.Query.Title,
		ResultLanguage:   d.OriginalLanguage,
		ResultConfidence: d.Confidence,
	}
	if err := c.saveIndexLocked(idx); err != nil {
		return err
	}
	c.logger.Debug("cached detection",
		logging.String(logging.FieldCacheKey, key),
		logging.String(logging.FieldLanguage, d.OriginalLanguage),
	)
	return nil
}

// Delete implements Cache.
func (c *FileCache) Delete(_ context.Context, q lookup.Query) (bool, error) {
	key := Key(q)
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.Remove(c.entryPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remove cache entry: %w", err)
	}
	idx := c.loadIndexLocked()
	if _, ok := idx.Entries[key]; ok {
		delete(idx.Entries, key)
		if err := c.saveIndexLocked(idx); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Clear implements Cache.
func (c *FileCache) Clear(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	files, err := c.entryFilesLocked()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range files {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove cache entry: %w", err)
		}
		removed++
	}
	if err := c.saveIndexLocked(index{Entries: map[string]indexEntry{}}); err != nil {
		return removed, err
	}
	c.logger.Info("cache cleared", logging.Int("removed", removed))
	return removed, nil
}

// Cleanup implements Cache.
func (c *FileCache) Cleanup(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupLocked()
}

func (c *FileCache) maybeCleanup(ctx context.Context) {
	if !c.autoCleanup {
		return
	}
	if _, err := c.Cleanup(ctx); err != nil {
		c.logger.Warn("automatic cache cleanup failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "cache_cleanup_failed"),
		)
	}
}

func (c *FileCache) cleanupLocked() (int, error) {
	idx := c.loadIndexLocked()
	now := c.now()
	removed := 0

	for key, meta := range idx.Entries {
		if now.Before(meta.ExpiresAt) {
			continue
		}
		c.removeFileLocked(key)
		delete(idx.Entries, key)
		removed++
	}

	if overflow := len(idx.Entries) - c.maxSize; c.maxSize > 0 && overflow > 0 {
		keys := make([]string, 0, len(idx.Entries))
		for key := range idx.Entries {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, b := idx.Entries[keys[i]].CreatedAt, idx.Entries[keys[j]].CreatedAt
			if a.Equal(b) {
				return keys[i] < keys[j]
			}
			return a.Before(b)
		})
		for _, key := range keys[:overflow] {
			c.removeFileLocked(key)
			delete(idx.Entries, key)
			removed++
		}
	}

	if removed == 0 {
		return 0, nil
	}
	if err := c.saveIndexLocked(idx); err != nil {
		return removed, err
	}
	c.logger.Debug("cache cleanup", logging.Int("removed", removed))
	return removed, nil
}

// Stats implements Cache.
func (c *FileCache) Stats(context.Context) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.loadIndexLocked()
	expiries := make([]time.Time, 0, len(idx.Entries))
	for _, meta := range idx.Entries {
		expiries = append(expiries, meta.ExpiresAt)
	}
	active, expired := countActive(expiries, c.now())

	files, err := c.entryFilesLocked()
	if err != nil {
		return Stats{}, err
	}
	usage := fileutil.TotalSize(append(files, c.metadataPath())...)

	return Stats{
		Type:           TypeFile,
		Enabled:        true,
		TotalEntries:   len(idx.Entries),
		ActiveEntries:  active,
		ExpiredEntries: expired,
		ActualFiles:    len(files),
		Location:       c.dir,
		TTLSeconds:     c.ttl.Seconds(),
		MaxSize:        c.maxSize,
		DiskUsageBytes: usage,
	}, nil
}

// Close implements Cache.
func (c *FileCache) Close() error { return nil }

func (c *FileCache) removeLocked(key string) {
	c.removeFileLocked(key)
	idx := c.loadIndexLocked()
	if _, ok := idx.Entries[key]; !ok {
		return
	}
	delete(idx.Entries, key)
	if err := c.saveIndexLocked(idx); err != nil {
		c.logger.Warn("cache index update failed", logging.Error(err))
	}
}

func (c *FileCache) removeFileLocked(key string) {
	if err := os.Remove(c.entryPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("cache entry removal failed",
			logging.String(logging.FieldCacheKey, key),
			logging.Error(err),
		)
	}
}

func (c *FileCache) entryFilesLocked() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list cache directory: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == metadataFileName || !strings.HasSuffix(name, ".json") {
			continue
		}
		files = append(files, filepath.Join(c.dir, name))
	}
	return files, nil
}

// loadIndexLocked returns an empty index when the file is missing or unreadable.
func (c *FileCache) loadIndexLocked() index {
	idx := index{Entries: map[string]indexEntry{}}
	data, err := os.ReadFile(c.metadataPath())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("cache index unreadable", logging.Error(err))
		}
		return idx
	}
	if err := json.Unmarshal(data, &idx); err != nil {
		c.logger.Warn("cache index corrupt; starting fresh",
			logging.Error(fmt.Errorf("%w: %w", services.ErrCacheCorrupt, err)),
			logging.String(logging.FieldEventType, "cache_index_corrupt"),
		)
		return index{Entries: map[string]indexEntry{}}
	}
	if idx.Entries == nil {
		idx.Entries = map[string]indexEntry{}
	}
	return idx
}

func (c *FileCache) saveIndexLocked(idx index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache index: %w", err)
	}
	if err := fileutil.WriteFileAtomic(c.metadataPath(), data); err != nil {
		return fmt.Errorf("write cache index: %w", err)
	}
	return nil
}
