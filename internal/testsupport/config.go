package testsupport

import (
	"path/filepath"
	"testing"

	"origlang/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with a unique temp cache directory per
// test. Timeouts are shortened so failing backends do not stall the suite.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.TMDB.APIKey = "test"
	cfgVal.Cache.Dir = filepath.Join(base, "cache")
	cfgVal.Cache.AutoCleanup = false
	cfgVal.Detection.RequestTimeout = 2
	cfgVal.Detection.TotalTimeout = 5
	cfgVal.Logging.File = ""
	cfgVal.Server.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTMDBKey sets the TMDB API key on the test config. An empty key
// leaves the TMDb backend unavailable.
func WithTMDBKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.TMDB.APIKey = key
	}
}

// WithCacheBackend selects the cache variant.
func WithCacheBackend(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Enabled = true
		b.cfg.Cache.Backend = name
	}
}

// WithCacheDisabled turns the detection cache off.
func WithCacheDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Enabled = false
	}
}

// WithBackendPriorities overrides the backend order.
func WithBackendPriorities(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Detection.BackendPriorities = append([]string(nil), names...)
		if len(names) > b.cfg.Detection.MaxBackends {
			b.cfg.Detection.MaxBackends = len(names)
		}
	}
}

// WithTimeouts sets the per-request and total detection timeouts in seconds.
func WithTimeouts(request, total float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Detection.RequestTimeout = request
		b.cfg.Detection.TotalTimeout = total
	}
}

// WithConfidenceThreshold overrides the minimum accepted confidence.
func WithConfidenceThreshold(v float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Detection.ConfidenceThreshold = v
	}
}

// WithDetectionDisabled turns detection off entirely.
func WithDetectionDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Detection.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Cache.Dir)
}
