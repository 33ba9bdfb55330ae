package langcache

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"origlang/internal/fileutil"
	"origlang/internal/logging"
	"origlang/internal/lookup"
	"origlang/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// sqliteSchemaVersion is bumped whenever schema.sql changes. A mismatched
// database must be cleared with `origlang cache clear` or deleted.
const sqliteSchemaVersion = 1

// SQLiteFileName is the database file created inside the cache directory.
const SQLiteFileName = "origlang_cache.db"

// ErrSchemaMismatch indicates the cache database was created by a different schema version.
var ErrSchemaMismatch = errors.New("cache schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteCache stores entries in a single SQLite table.
type SQLiteCache struct {
	db      *sql.DB
	path    string
	ttl     time.Duration
	maxSize int
	auto    bool
	now     func() time.Time
	logger  *slog.Logger
}

var _ Cache = (*SQLiteCache)(nil)

// OpenSQLiteCache opens or creates <dir>/origlang_cache.db.
func OpenSQLiteCache(opts Options, logger *slog.Logger) (*SQLiteCache, error) {
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

	dbPath := filepath.Join(dir, SQLiteFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	c := &SQLiteCache{
		db:      db,
		path:    dbPath,
		ttl:     opts.TTL,
		maxSize: opts.MaxSize,
		auto:    opts.AutoCleanup,
		now:     opts.clock(),
		logger:  logging.NewComponentLogger(logger, "langcache"),
	}
	if err := c.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLiteCache) initSchema(ctx context.Context) error {
	var tableExists int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", sqliteSchemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit schema: %w", err)
		}
		return nil
	}

	var version int
	if err := c.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != sqliteSchemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, sqliteSchemaVersion, c.path)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (c *SQLiteCache) exec(ctx context.Context, query string, args ...any) (int64, error) {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := c.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

// Get implements Cache.
func (c *SQLiteCache) Get(ctx context.Context, q lookup.Query) (*lookup.Detection, bool) {
	c.maybeCleanup(ctx)
	key := Key(q)

	var (
		resultJSON string
		expiresAt  int64
	)
	err := c.db.QueryRowContext(ctx,
		"SELECT result_json, expires_at FROM cache_entries WHERE cache_key = ?", key,
	).Scan(&resultJSON, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache lookup failed",
			logging.String(logging.FieldCacheKey, key),
			logging.Error(err),
			logging.String(logging.FieldImpact, "treated as cache miss"),
		)
		return nil, false
	}

	now := c.now()
	if now.UnixNano() >= expiresAt {
		c.deleteKey(ctx, key)
		return nil, false
	}
	var det lookup.Detection
	if err := json.Unmarshal([]byte(resultJSON), &det); err != nil {
		c.logger.Warn("removing corrupt cache entry",
			logging.String(logging.FieldCacheKey, key),
			logging.Error(fmt.Errorf("%w: %w", services.ErrCacheCorrupt, err)),
			logging.String(logging.FieldEventType, "cache_corrupt"),
		)
		c.deleteKey(ctx, key)
		return nil, false
	}
	if _, err := c.exec(ctx, "UPDATE cache_entries SET accessed_at = ? WHERE cache_key = ?", now.UnixNano(), key); err != nil {
		c.logger.Debug("cache access update failed", logging.Error(err))
	}
	return &det, true
}

func (c *SQLiteCache) deleteKey(ctx context.Context, key string) {
	if _, err := c.exec(ctx, "DELETE FROM cache_entries WHERE cache_key = ?", key); err != nil {
		c.logger.Warn("cache entry removal failed", logging.String(logging.FieldCacheKey, key), logging.Error(err))
	}
}

// Set implements Cache.
func (c *SQLiteCache) Set(ctx context.Context, q lookup.Query, d *lookup.Detection) error {
	if d == nil {
		return errors.New("cache set: nil detection")
	}
	c.maybeCleanup(ctx)
	key := Key(q)
	normalized := q.Normalized()

	queryJSON, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}
	resultJSON, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal detection: %w", err)
	}
	now := c.now()
	_, err = c.exec(ctx, `INSERT INTO cache_entries
		(cache_key, query_json, result_json, query_title, result_language, result_confidence, created_at, expires_at, accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			query_json = excluded.query_json,
			result_json = excluded.result_json,
			query_title = excluded.query_title,
			result_language = excluded.result_language,
			result_confidence = excluded.result_confidence,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			accessed_at = excluded.accessed_at`,
		key, string(queryJSON), string(resultJSON), normalized.Title, d.OriginalLanguage, d.Confidence,
		now.UnixNano(), now.Add(c.ttl).UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}
	return nil
}

// Delete implements Cache.
func (c *SQLiteCache) Delete(ctx context.Context, q lookup.Query) (bool, error) {
	n, err := c.exec(ctx, "DELETE FROM cache_entries WHERE cache_key = ?", Key(q))
	if err != nil {
		return false, fmt.Errorf("delete cache entry: %w", err)
	}
	return n > 0, nil
}

// Clear implements Cache.
func (c *SQLiteCache) Clear(ctx context.Context) (int, error) {
	n, err := c.exec(ctx, "DELETE FROM cache_entries")
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	return int(n), nil
}

// Cleanup implements Cache.
func (c *SQLiteCache) Cleanup(ctx context.Context) (int, error) {
	expired, err := c.exec(ctx, "DELETE FROM cache_entries WHERE expires_at <= ?", c.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("remove expired entries: %w", err)
	}
	removed := int(expired)
	if c.maxSize <= 0 {
		return removed, nil
	}
	overflow, err := c.exec(ctx, `DELETE FROM cache_entries WHERE cache_key IN (
		SELECT cache_key FROM cache_entries ORDER BY created_at ASC, cache_key ASC
		LIMIT max(0, (SELECT COUNT(1) FROM cache_entries) - ?))`, c.maxSize)
	if err != nil {
		return removed, fmt.Errorf("enforce cache size: %w", err)
	}
	return removed + int(overflow), nil
}

func (c *SQLiteCache) maybeCleanup(ctx context.Context) {
	if !c.auto {
		return
	}
	if _, err := c.Cleanup(ctx); err != nil {
		c.logger.Warn("automatic cache cleanup failed", logging.Error(err))
	}
}

// Stats implements Cache.
func (c *SQLiteCache) Stats(ctx context.Context) (Stats, error) {
	var total, active int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(1), COALESCE(SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END), 0) FROM cache_entries",
		c.now().UnixNano(),
	).Scan(&total, &active)
	if err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}
	usage := fileutil.TotalSize(c.path, c.path+"-wal", c.path+"-shm")
	return Stats{
		Type:           TypeSQLite,
		Enabled:        true,
		TotalEntries:   total,
		ActiveEntries:  active,
		ExpiredEntries: total - active,
		Location:       c.path,
		TTLSeconds:     c.ttl.Seconds(),
		MaxSize:        c.maxSize,
		DiskUsageBytes: usage,
	}, nil
}

// Close closes the database.
func (c *SQLiteCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
