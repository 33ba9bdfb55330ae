package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"

	"origlang/internal/services"
)

// Validate ensures the configuration is usable. Every problem found is
// reported; the joined error matches services.ErrConfigInvalid.
func (c *Config) Validate() error {
	issues := c.Issues()
	if len(issues) == 0 {
		return nil
	}
	errs := make([]error, 0, len(issues))
	for _, issue := range issues {
		errs = append(errs, fmt.Errorf("%w: %s", services.ErrConfigInvalid, issue))
	}
	return errors.Join(errs...)
}

// Issues lists human-readable validation problems, empty when the
// configuration is usable.
func (c *Config) Issues() []string {
	var issues []string
	issues = append(issues, c.detectionIssues()...)
	issues = append(issues, c.backendIssues()...)
	issues = append(issues, c.cacheIssues()...)
	issues = append(issues, c.serverIssues()...)
	issues = append(issues, c.loggingIssues()...)
	return issues
}

func (c *Config) detectionIssues() []string {
	var issues []string
	d := c.Detection
	if !inUnitRange(d.ConfidenceThreshold) {
		issues = append(issues, "detection.confidence_threshold must be between 0 and 1")
	}
	if !inUnitRange(d.TitleSimilarityThreshold) {
		issues = append(issues, "detection.title_similarity_threshold must be between 0 and 1")
	}
	if d.MaxBackends < 1 {
		issues = append(issues, "detection.max_backends must be at least 1")
	}
	if d.YearTolerance < 0 {
		issues = append(issues, "detection.year_tolerance must be non-negative")
	}
	if d.SearchMaxResults < 1 {
		issues = append(issues, "detection.search_max_results must be at least 1")
	}
	if d.RequestTimeout <= 0 {
		issues = append(issues, "detection.request_timeout must be positive")
	}
	if d.TotalTimeout <= 0 {
		issues = append(issues, "detection.total_timeout must be positive")
	}
	if d.RequestTimeout > 0 && d.TotalTimeout > 0 && d.TotalTimeout < d.RequestTimeout {
		issues = append(issues, "detection.total_timeout must be greater than or equal to detection.request_timeout")
	}
	return issues
}

func (c *Config) backendIssues() []string {
	var issues []string
	known := KnownBackends()
	var unknown []string
	for _, name := range c.Detection.BackendPriorities {
		if !slices.Contains(known, name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		issues = append(issues, fmt.Sprintf("detection.backend_priorities contains unknown backends: %s (valid: %s)",
			strings.Join(unknown, ", "), strings.Join(known, ", ")))
	}
	if c.TMDB.RateLimit < 1 || c.TMDB.RateWindow <= 0 {
		issues = append(issues, "tmdb.rate_limit and tmdb.rate_window must be positive")
	}
	if c.IMDB.RateLimit < 1 || c.IMDB.RateWindow <= 0 {
		issues = append(issues, "imdb.rate_limit and imdb.rate_window must be positive")
	}
	if c.IMDB.MaxRetries < 1 {
		issues = append(issues, "imdb.max_retries must be at least 1")
	}
	if c.Detection.Enabled && len(c.AvailableBackends()) == 0 {
		issues = append(issues, "no available backends: set tmdb.api_key (or TMDB_API_KEY) or add imdb to detection.backend_priorities")
	}
	return issues
}

func (c *Config) cacheIssues() []string {
	var issues []string
	switch c.Cache.Backend {
	case CacheBackendFile, CacheBackendMemory, CacheBackendSQLite:
	default:
		issues = append(issues, fmt.Sprintf("cache.backend %q must be one of file, memory, sqlite", c.Cache.Backend))
	}
	if c.Cache.TTL <= 0 {
		issues = append(issues, "cache.ttl must be positive")
	}
	if c.Cache.MaxSize < 1 {
		issues = append(issues, "cache.max_size must be at least 1")
	}
	if c.Cache.Enabled && c.Cache.Backend != CacheBackendMemory && strings.TrimSpace(c.Cache.Dir) == "" {
		issues = append(issues, "cache.dir must be set when cache.enabled is true")
	}
	return issues
}

func (c *Config) serverIssues() []string {
	var issues []string
	if c.Server.CleanupSchedule != "" {
		if _, err := cron.ParseStandard(c.Server.CleanupSchedule); err != nil {
			issues = append(issues, fmt.Sprintf("server.cleanup_schedule %q is not a valid cron expression: %v", c.Server.CleanupSchedule, err))
		}
	}
	return issues
}

func (c *Config) loggingIssues() []string {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return []string{fmt.Sprintf("logging.format %q must be console or json", c.Logging.Format)}
	}
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}
