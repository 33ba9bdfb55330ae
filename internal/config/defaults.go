package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Backend names accepted in detection.backend_priorities.
const (
	BackendTMDB = "tmdb"
	BackendIMDB = "imdb"
)

// Cache storage variants accepted in cache.backend.
const (
	CacheBackendFile   = "file"
	CacheBackendMemory = "memory"
	CacheBackendSQLite = "sqlite"
)

const (
	defaultConfidenceThreshold      = 0.7
	defaultMaxBackends              = 2
	defaultRequestTimeout           = 30.0
	defaultTotalTimeout             = 120.0
	defaultSearchMaxResults         = 10
	defaultYearTolerance            = 1
	defaultTitleSimilarityThreshold = 0.8

	defaultTMDBBaseURL    = "https://api.themoviedb.org/3"
	defaultTMDBLanguage   = "en-US"
	defaultTMDBRateLimit  = 40
	defaultTMDBRateWindow = 10.0

	defaultIMDBBaseURL    = "https://www.imdb.com"
	defaultIMDBRateLimit  = 10
	defaultIMDBRateWindow = 60.0
	defaultIMDBMaxRetries = 3
	defaultIMDBUserAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

	defaultCacheTTL     = 86400.0
	defaultCacheMaxSize = 1000

	defaultServerBind      = "127.0.0.1:7381"
	defaultCleanupSchedule = "@every 1h"
)

// KnownBackends lists every backend name the detector can construct.
func KnownBackends() []string {
	return []string{BackendTMDB, BackendIMDB}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Detection: Detection{
			Enabled:                  true,
			BackendPriorities:        []string{BackendTMDB, BackendIMDB},
			ConfidenceThreshold:      defaultConfidenceThreshold,
			MaxBackends:              defaultMaxBackends,
			RequestTimeout:           defaultRequestTimeout,
			TotalTimeout:             defaultTotalTimeout,
			SearchMaxResults:         defaultSearchMaxResults,
			YearTolerance:            defaultYearTolerance,
			TitleSimilarityThreshold: defaultTitleSimilarityThreshold,
		},
		TMDB: TMDB{
			BaseURL:    defaultTMDBBaseURL,
			Language:   defaultTMDBLanguage,
			RateLimit:  defaultTMDBRateLimit,
			RateWindow: defaultTMDBRateWindow,
		},
		IMDB: IMDB{
			BaseURL:    defaultIMDBBaseURL,
			UserAgent:  defaultIMDBUserAgent,
			RateLimit:  defaultIMDBRateLimit,
			RateWindow: defaultIMDBRateWindow,
			MaxRetries: defaultIMDBMaxRetries,
		},
		Cache: Cache{
			Enabled:     true,
			Backend:     CacheBackendFile,
			Dir:         defaultCacheDir(),
			TTL:         defaultCacheTTL,
			MaxSize:     defaultCacheMaxSize,
			AutoCleanup: true,
		},
		Server: Server{
			Bind:            defaultServerBind,
			CleanupSchedule: defaultCleanupSchedule,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "origlang", "orig_lang_cache")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "origlang", "orig_lang_cache")
	}
	return filepath.Join(home, ".cache", "origlang", "orig_lang_cache")
}
