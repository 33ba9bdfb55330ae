package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeDetection()
	c.normalizeTMDB()
	c.normalizeIMDB()
	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.normalizeServer()
	return c.normalizeLogging()
}

func (c *Config) normalizeDetection() {
	priorities := make([]string, 0, len(c.Detection.BackendPriorities))
	seen := make(map[string]struct{}, len(c.Detection.BackendPriorities))
	for _, name := range c.Detection.BackendPriorities {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		priorities = append(priorities, name)
	}
	c.Detection.BackendPriorities = priorities
}

func (c *Config) normalizeTMDB() {
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = strings.TrimSpace(value)
		}
	}
	c.TMDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TMDB.BaseURL), "/")
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.TMDB.Language = strings.TrimSpace(c.TMDB.Language)
	if c.TMDB.Language == "" {
		c.TMDB.Language = defaultTMDBLanguage
	}
}

func (c *Config) normalizeIMDB() {
	c.IMDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.IMDB.BaseURL), "/")
	if c.IMDB.BaseURL == "" {
		c.IMDB.BaseURL = defaultIMDBBaseURL
	}
	c.IMDB.UserAgent = strings.TrimSpace(c.IMDB.UserAgent)
	if c.IMDB.UserAgent == "" {
		c.IMDB.UserAgent = defaultIMDBUserAgent
	}
}

func (c *Config) normalizeCache() error {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheBackendFile
	}
	if strings.TrimSpace(c.Cache.Dir) == "" {
		c.Cache.Dir = defaultCacheDir()
	}
	var err error
	if c.Cache.Dir, err = expandPath(strings.TrimSpace(c.Cache.Dir)); err != nil {
		return fmt.Errorf("cache.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	c.Server.CleanupSchedule = strings.TrimSpace(c.Server.CleanupSchedule)
	c.Server.Token = strings.TrimSpace(c.Server.Token)
	if c.Server.Token == "" {
		c.Server.Token = strings.TrimSpace(os.Getenv("ORIGLANG_API_TOKEN"))
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if file := strings.TrimSpace(c.Logging.File); file != "" {
		expanded, err := expandPath(file)
		if err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
		c.Logging.File = expanded
	}
	return nil
}
