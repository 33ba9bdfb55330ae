package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Detection contains the orchestrator settings.
type Detection struct {
	Enabled             bool     `toml:"enabled"`
	BackendPriorities   []string `toml:"backend_priorities"`
	ConfidenceThreshold float64  `toml:"confidence_threshold"`
	MaxBackends         int      `toml:"max_backends"`
	// RequestTimeout bounds a single HTTP request made by a backend, in seconds.
	RequestTimeout float64 `toml:"request_timeout"`
	// TotalTimeout bounds the whole backend loop of one detection, in seconds.
	TotalTimeout             float64 `toml:"total_timeout"`
	SearchMaxResults         int     `toml:"search_max_results"`
	YearTolerance            int     `toml:"year_tolerance"`
	TitleSimilarityThreshold float64 `toml:"title_similarity_threshold"`
}

// TMDB contains configuration for The Movie Database API backend.
type TMDB struct {
	APIKey     string  `toml:"api_key"`
	BaseURL    string  `toml:"base_url"`
	Language   string  `toml:"language"`
	RateLimit  int     `toml:"rate_limit"`
	RateWindow float64 `toml:"rate_window"`
}

// IMDB contains configuration for the IMDb page scraping backend.
type IMDB struct {
	BaseURL    string  `toml:"base_url"`
	UserAgent  string  `toml:"user_agent"`
	RateLimit  int     `toml:"rate_limit"`
	RateWindow float64 `toml:"rate_window"`
	MaxRetries int     `toml:"max_retries"`
}

// Cache contains configuration for the detection result cache.
type Cache struct {
	Enabled bool `toml:"enabled"`
	// Backend selects the storage variant: "file", "memory" or "sqlite".
	Backend     string  `toml:"backend"`
	Dir         string  `toml:"dir"`
	TTL         float64 `toml:"ttl"`
	MaxSize     int     `toml:"max_size"`
	AutoCleanup bool    `toml:"auto_cleanup"`
}

// Server contains configuration for `origlang serve`.
type Server struct {
	Bind            string `toml:"bind"`
	CleanupSchedule string `toml:"cleanup_schedule"`
	// Token, when set, is required as a bearer token on every API request.
	Token string `toml:"token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Config encapsulates all configuration values for origlang.
//
// Configuration sections by subsystem:
//   - Detection: backend order, thresholds, and deadlines
//   - TMDB / IMDB: per-backend credentials, endpoints, and rate limits
//   - Cache: result cache storage, TTL, and size budget
//   - Server: HTTP lookup API bind address and cleanup schedule
//   - Logging: log format, level, and optional file output
type Config struct {
	Detection Detection `toml:"detection"`
	TMDB      TMDB      `toml:"tmdb"`
	IMDB      IMDB      `toml:"imdb"`
	Cache     Cache     `toml:"cache"`
	Server    Server    `toml:"server"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/origlang/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A missing file yields the defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("origlang.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the cache directory when a persistent cache is configured.
func (c *Config) EnsureDirectories() error {
	if !c.Cache.Enabled || c.Cache.Backend == CacheBackendMemory {
		return nil
	}
	if err := os.MkdirAll(c.Cache.Dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory %q: %w", c.Cache.Dir, err)
	}
	return nil
}

// IsBackendAvailable reports whether the named backend can be constructed
// from this configuration.
func (c *Config) IsBackendAvailable(name string) bool {
	if !c.Detection.Enabled {
		return false
	}
	switch name {
	case BackendTMDB:
		return strings.TrimSpace(c.TMDB.APIKey) != ""
	case BackendIMDB:
		return true
	default:
		return false
	}
}

// AvailableBackends returns the configured backends that can run, in priority
// order, capped at Detection.MaxBackends.
func (c *Config) AvailableBackends() []string {
	available := make([]string, 0, len(c.Detection.BackendPriorities))
	for _, name := range c.Detection.BackendPriorities {
		if c.IsBackendAvailable(name) {
			available = append(available, name)
		}
	}
	if c.Detection.MaxBackends > 0 && len(available) > c.Detection.MaxBackends {
		available = available[:c.Detection.MaxBackends]
	}
	return available
}

// RequestTimeout returns the per-request HTTP timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return seconds(c.Detection.RequestTimeout)
}

// TotalTimeout returns the per-detection deadline as a duration.
func (c *Config) TotalTimeout() time.Duration {
	return seconds(c.Detection.TotalTimeout)
}

// CacheTTL returns the cache entry lifetime as a duration.
func (c *Config) CacheTTL() time.Duration {
	return seconds(c.Cache.TTL)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
