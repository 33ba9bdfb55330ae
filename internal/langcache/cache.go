package langcache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"origlang/internal/config"
	"origlang/internal/logging"
	"origlang/internal/lookup"
	"origlang/internal/services"
)

// Cache stores detections by query.
type Cache interface {
	// Get returns a live entry. Expired or unreadable entries are misses.
	Get(ctx context.Context, q lookup.Query) (*lookup.Detection, bool)
	Set(ctx context.Context, q lookup.Query, d *lookup.Detection) error
	// Delete reports whether an entry existed.
	Delete(ctx context.Context, q lookup.Query) (bool, error)
	// Clear removes every entry and returns how many were removed.
	Clear(ctx context.Context) (int, error)
	// Cleanup removes expired entries, then the oldest beyond the size limit.
	Cleanup(ctx context.Context) (int, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Variant names reported in Stats.Type.
const (
	TypeFile   = "file"
	TypeMemory = "memory"
	TypeSQLite = "sqlite"
	TypeNoop   = "no_op"
)

// Stats summarizes cache occupancy.
type Stats struct {
	Type           string  `json:"type"`
	Enabled        bool    `json:"enabled"`
	TotalEntries   int     `json:"total_entries"`
	ActiveEntries  int     `json:"active_entries"`
	ExpiredEntries int     `json:"expired_entries"`
	ActualFiles    int     `json:"actual_files,omitempty"`
	Location       string  `json:"location,omitempty"`
	TTLSeconds     float64 `json:"ttl_seconds,omitempty"`
	MaxSize        int     `json:"max_size,omitempty"`
	DiskUsageBytes int64   `json:"disk_usage_bytes,omitempty"`
}

// Options configures a cache variant.
type Options struct {
	Enabled     bool
	Backend     string
	Dir         string
	TTL         time.Duration
	MaxSize     int
	AutoCleanup bool
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// OptionsFromConfig maps the [cache] section onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Enabled:     cfg.Cache.Enabled,
		Backend:     cfg.Cache.Backend,
		Dir:         cfg.Cache.Dir,
		TTL:         cfg.CacheTTL(),
		MaxSize:     cfg.Cache.MaxSize,
		AutoCleanup: cfg.Cache.AutoCleanup,
	}
}

func (o Options) clock() func() time.Time {
	if o.Now != nil {
		return o.Now
	}
	return time.Now
}

// New builds the variant selected by opts. A disabled cache is a no-op.
func New(opts Options, logger *slog.Logger) (Cache, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if !opts.Enabled {
		return NewNoop(), nil
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("%w: cache ttl must be positive", services.ErrConfigInvalid)
	}
	if opts.MaxSize <= 0 {
		return nil, fmt.Errorf("%w: cache max size must be positive", services.ErrConfigInvalid)
	}
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", config.CacheBackendFile:
		return NewFileCache(opts, logger)
	case config.CacheBackendMemory:
		return NewMemoryCache(opts), nil
	case config.CacheBackendSQLite:
		return OpenSQLiteCache(opts, logger)
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", services.ErrConfigInvalid, opts.Backend)
	}
}

func countActive(expiries []time.Time, now time.Time) (active, expired int) {
	for _, exp := range expiries {
		if now.Before(exp) {
			active++
		} else {
			expired++
		}
	}
	return active, expired
}
