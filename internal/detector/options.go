package detector

import (
	"log/slog"
	"time"

	"origlang/internal/config"
	"origlang/internal/filename"
	"origlang/internal/langcache"
	"origlang/internal/lookup"
)

// BackendFactory builds the default backend set when none were registered.
type BackendFactory func(cfg *config.Config, logger *slog.Logger) []lookup.Backend

// FilenameParser turns a file name into a query.
type FilenameParser func(name string) filename.Parsed

// Option customizes a Detector at construction.
type Option func(*Detector)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.baseLogger = logger
		}
	}
}

// WithCache replaces the cache built from configuration. The cache is only
// consulted while cache.enabled is true.
func WithCache(cache langcache.Cache) Option {
	return func(d *Detector) {
		if cache != nil {
			d.cache = cache
		}
	}
}

// WithBackends registers backends up front; the default set is then not built.
func WithBackends(backends ...lookup.Backend) Option {
	return func(d *Detector) {
		d.pending = append(d.pending, backends...)
	}
}

// WithBackendFactory replaces the builder used for the default backend set.
func WithBackendFactory(factory BackendFactory) Option {
	return func(d *Detector) {
		if factory != nil {
			d.factory = factory
		}
	}
}

// WithFilenameParser replaces the parser behind DetectFromFilename.
func WithFilenameParser(parser FilenameParser) Option {
	return func(d *Detector) {
		if parser != nil {
			d.parse = parser
		}
	}
}

// WithClock overrides the clock used for timing detections.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}

// WithTotalTimeout overrides detection.total_timeout.
func WithTotalTimeout(timeout time.Duration) Option {
	return func(d *Detector) {
		if timeout > 0 {
			d.totalTimeout = timeout
		}
	}
}

// DetectOption adjusts a single detection request.
type DetectOption func(*detectSettings)

type detectSettings struct {
	minConfidence float64
	skipCache     bool
}

// WithMinConfidence overrides detection.confidence_threshold for one call.
// It gates both the returned result and what gets cached.
func WithMinConfidence(v float64) DetectOption {
	return func(s *detectSettings) {
		s.minConfidence = lookup.ClampConfidence(v)
	}
}

// WithoutCacheLookup forces a backend round trip. The result is still stored.
func WithoutCacheLookup() DetectOption {
	return func(s *detectSettings) {
		s.skipCache = true
	}
}
