package detector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"origlang/internal/config"
	"origlang/internal/filename"
	"origlang/internal/langcache"
	"origlang/internal/logging"
	"origlang/internal/lookup"
	"origlang/internal/services"
)

// Detector resolves queries to original-language detections. It is safe
// for concurrent use.
type Detector struct {
	cfg          *config.Config
	baseLogger   *slog.Logger
	logger       *slog.Logger
	cache        langcache.Cache
	useCache     bool
	factory      BackendFactory
	parse        FilenameParser
	now          func() time.Time
	totalTimeout time.Duration

	mu       sync.Mutex
	pending  []lookup.Backend
	backends []lookup.Backend
	ready    bool
}

// New validates cfg and builds the cache. Errors match services.ErrConfigInvalid.
func New(cfg *config.Config, opts ...Option) (*Detector, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfigInvalid, "detector", "new", "config is nil", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Detector{
		cfg:          cfg,
		factory:      DefaultBackends,
		parse:        filename.Parse,
		now:          time.Now,
		totalTimeout: cfg.TotalTimeout(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.baseLogger == nil {
		d.baseLogger = logging.NewNop()
	}
	d.logger = logging.NewComponentLogger(d.baseLogger, "detector")

	if d.cache == nil {
		cache, err := langcache.New(langcache.OptionsFromConfig(cfg), d.baseLogger)
		if err != nil {
			if errors.Is(err, services.ErrConfigInvalid) {
				return nil, err
			}
			return nil, services.Wrap(services.ErrConfigInvalid, "detector", "open cache", cfg.Cache.Dir, err)
		}
		d.cache = cache
	}
	d.useCache = cfg.Cache.Enabled

	for _, b := range d.pending {
		d.addLocked(b)
	}
	d.pending = nil
	return d, nil
}

// Config returns the configuration the detector was built from.
func (d *Detector) Config() *config.Config { return d.cfg }

// AddBackend registers b after the existing backends. Unavailable
// backends are logged and skipped.
func (d *Detector) AddBackend(b lookup.Backend) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addLocked(b)
}

func (d *Detector) addLocked(b lookup.Backend) {
	if b == nil {
		return
	}
	if !b.Available() {
		d.logger.Warn("backend not available",
			logging.String(logging.FieldBackend, b.Name()),
			logging.String(logging.FieldEventType, "backend_unavailable"),
			logging.String(logging.FieldErrorHint, "check credentials in the backend's config section"),
			logging.String(logging.FieldImpact, "backend skipped"),
		)
		return
	}
	d.backends = append(d.backends, b)
	d.ready = true
}

// AvailableBackends returns the names of the backends that will be tried,
// in order, building the default set first if needed.
func (d *Detector) AvailableBackends() []string {
	backends := d.ensureBackends()
	names := make([]string, 0, len(backends))
	for _, b := range backends {
		if b.Available() {
			names = append(names, b.Name())
		}
	}
	return names
}

// ensureBackends builds the default backend set on first use and returns
// the attempt order capped at detection.max_backends.
func (d *Detector) ensureBackends() []lookup.Backend {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready && len(d.backends) == 0 {
		for _, b := range d.factory(d.cfg, d.baseLogger) {
			if b == nil {
				continue
			}
			if !b.Available() {
				d.logger.Info("skipping unavailable backend", logging.String(logging.FieldBackend, b.Name()))
				continue
			}
			d.backends = append(d.backends, b)
		}
		d.ready = true
		d.logger.Debug("backends ready", logging.Int("count", len(d.backends)))
	}
	ordered := d.orderedLocked()
	if limit := d.cfg.Detection.MaxBackends; limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered
}

// orderedLocked sorts backends by their position in
// detection.backend_priorities. Names not listed keep registration order
// after the listed ones.
func (d *Detector) orderedLocked() []lookup.Backend {
	rank := func(name string) int {
		if i := slices.Index(d.cfg.Detection.BackendPriorities, name); i >= 0 {
			return i
		}
		return len(d.cfg.Detection.BackendPriorities)
	}
	ordered := slices.Clone(d.backends)
	slices.SortStableFunc(ordered, func(a, b lookup.Backend) int {
		return rank(a.Name()) - rank(b.Name())
	})
	return ordered
}

// DetectFromFilename parses name and resolves the resulting query.
func (d *Detector) DetectFromFilename(ctx context.Context, name string, opts ...DetectOption) *lookup.Detection {
	parsed := d.parse(name)
	if parsed.Empty() {
		d.logger.Debug("nothing recognizable in file name", logging.String("file", name))
		return nil
	}
	return d.DetectFromQuery(ctx, parsed.Query(), opts...)
}

// DetectFromQuery returns the most confident detection for q at or above
// the effective minimum confidence, or nil.
func (d *Detector) DetectFromQuery(ctx context.Context, q lookup.Query, opts ...DetectOption) *lookup.Detection {
	start := d.now()
	if !d.cfg.Detection.Enabled {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	settings := detectSettings{minConfidence: d.cfg.Detection.ConfidenceThreshold}
	for _, opt := range opts {
		opt(&settings)
	}
	minConfidence := settings.minConfidence

	ctx, _ = services.EnsureRequestID(ctx)
	logger := logging.WithContext(ctx, d.logger)
	q = q.Normalized()

	if d.useCache && !settings.skipCache {
		if hit, ok := d.cache.Get(ctx, q); ok {
			if hit.Confidence >= minConfidence {
				hit.DetectionTimeMs = d.elapsedMs(start)
				logger.Debug("cache hit",
					logging.Query(q),
					logging.String(logging.FieldLanguage, hit.OriginalLanguage),
					logging.String(logging.FieldEventType, "cache_hit"),
				)
				return hit
			}
			logger.Debug("cached detection below minimum confidence",
				logging.Query(q),
				logging.Confidence(hit.Confidence),
				logging.Float64("min_confidence", minConfidence),
			)
		}
	}

	best, err := d.runBackends(ctx, q, minConfidence, logger)
	if err != nil {
		logging.WarnWithContext(logger, "detection timed out", "detection_timeout",
			logging.Query(q),
			logging.Duration("total_timeout", d.totalTimeout),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "raise detection.total_timeout or check backend connectivity"),
			logging.String(logging.FieldImpact, "no detection for this request"),
		)
		return nil
	}
	if best == nil {
		logger.Info("no detection", logging.Query(q))
		return nil
	}

	best.DetectionTimeMs = d.elapsedMs(start)
	if d.useCache && best.Confidence >= minConfidence {
		if err := d.cache.Set(ctx, q, best); err != nil {
			logging.WarnWithContext(logger, "cache store failed", "cache_write_failed",
				logging.Query(q),
				logging.Error(err),
				logging.String(logging.FieldImpact, "detection will be repeated next time"),
			)
		}
	}
	attrs := append([]logging.Attr{logging.Query(q), logging.String(logging.FieldBackend, best.Source)},
		logging.DetectionAttrs(best.OriginalLanguage, best.Confidence, best.Method)...)
	logger.Info("original language detected", logging.Args(attrs...)...)
	return best
}

type backendResult struct {
	det *lookup.Detection
	err error
}

// runBackends walks the backends sequentially under the total deadline.
// An elapsed deadline returns an error wrapping ErrDetectionTimeout and
// discards any result gathered so far.
func (d *Detector) runBackends(ctx context.Context, q lookup.Query, minConfidence float64, logger *slog.Logger) (*lookup.Detection, error) {
	backends := d.ensureBackends()
	if len(backends) == 0 {
		logger.Warn("no backends available",
			logging.String(logging.FieldEventType, "no_backends"),
			logging.String(logging.FieldErrorHint, "configure tmdb.api_key or enable imdb"),
		)
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.totalTimeout)
	defer cancel()

	var best *lookup.Detection
	for _, backend := range backends {
		name := backend.Name()
		bctx := services.WithBackend(ctx, name)
		results := make(chan backendResult, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					results <- backendResult{err: fmt.Errorf("%w: panic: %v", services.ErrBackendCallFailed, r)}
				}
			}()
			det, err := backend.Detect(bctx, q)
			results <- backendResult{det: det, err: err}
		}()

		var res backendResult
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting on %s: %w", services.ErrDetectionTimeout, name, ctx.Err())
		case res = <-results:
		}

		blog := logger.With(logging.String(logging.FieldBackend, name))
		if res.err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %w", services.ErrDetectionTimeout, name, ctx.Err())
			}
			logging.WarnWithContext(blog, "backend failed", services.Kind(res.err),
				logging.Error(res.err),
				logging.String(logging.FieldImpact, "trying next backend"),
			)
			continue
		}
		if res.det == nil {
			blog.Debug("backend returned no match")
			continue
		}
		if res.det.Confidence < minConfidence {
			blog.Debug("backend result below minimum confidence",
				logging.Confidence(res.det.Confidence),
				logging.Float64("min_confidence", minConfidence),
			)
			continue
		}
		if best == nil || res.det.Confidence > best.Confidence {
			best = res.det
		}
		if best.Confidence >= 1.0 {
			blog.Debug("exact match, skipping remaining backends")
			break
		}
	}
	return best, nil
}

func (d *Detector) elapsedMs(start time.Time) float64 {
	return float64(d.now().Sub(start).Microseconds()) / 1000
}

// CacheStats reports cache occupancy.
func (d *Detector) CacheStats(ctx context.Context) (langcache.Stats, error) {
	return d.cache.Stats(ctx)
}

// DeleteFromCache removes the entry for q and reports whether it existed.
func (d *Detector) DeleteFromCache(ctx context.Context, q lookup.Query) (bool, error) {
	return d.cache.Delete(ctx, q)
}

// ClearCache removes every cached detection.
func (d *Detector) ClearCache(ctx context.Context) (int, error) {
	return d.cache.Clear(ctx)
}

// CleanupCache removes expired entries and trims the cache to its size limit.
func (d *Detector) CleanupCache(ctx context.Context) (int, error) {
	return d.cache.Cleanup(ctx)
}

// Close releases backend connections and the cache.
func (d *Detector) Close() error {
	d.mu.Lock()
	backends := d.backends
	d.backends = nil
	d.mu.Unlock()

	var errs []error
	for _, b := range backends {
		if closer, ok := b.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", b.Name(), err))
			}
		}
	}
	if err := d.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}
	return errors.Join(errs...)
}
