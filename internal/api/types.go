package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Query echoes the lookup that was resolved.
type Query struct {
	Title     string `json:"title,omitempty"`
	Year      int    `json:"year,omitempty"`
	IMDbID    string `json:"imdbId,omitempty"`
	TMDbID    string `json:"tmdbId,omitempty"`
	MediaType string `json:"mediaType"`
	Season    int    `json:"season,omitempty"`
	Episode   int    `json:"episode,omitempty"`
}

// Detection describes an original-language result in a transport-friendly format.
type Detection struct {
	Language            string   `json:"language"`
	LanguageName        string   `json:"languageName"`
	Confidence          float64  `json:"confidence"`
	Reliable            bool     `json:"reliable"`
	Source              string   `json:"source"`
	Method              string   `json:"method"`
	Details             string   `json:"details,omitempty"`
	Title               string   `json:"title,omitempty"`
	Year                int      `json:"year,omitempty"`
	IMDbID              string   `json:"imdbId,omitempty"`
	TMDbID              string   `json:"tmdbId,omitempty"`
	SpokenLanguages     []string `json:"spokenLanguages"`
	ProductionCountries []string `json:"productionCountries"`
	DetectionTimeMs     float64  `json:"detectionTimeMs"`
	Timestamp           string   `json:"timestamp,omitempty"`
}

// DetectResponse wraps one lookup.
type DetectResponse struct {
	Query     Query      `json:"query"`
	Detection *Detection `json:"detection"`
	File      string     `json:"file,omitempty"`
}

// BackendsResponse lists the backends a detection will try, in order.
type BackendsResponse struct {
	Backends []string `json:"backends"`
}

// CacheStats mirrors langcache.Stats.
type CacheStats struct {
	Type           string  `json:"type"`
	Enabled        bool    `json:"enabled"`
	TotalEntries   int     `json:"totalEntries"`
	ActiveEntries  int     `json:"activeEntries"`
	ExpiredEntries int     `json:"expiredEntries"`
	ActualFiles    int     `json:"actualFiles,omitempty"`
	Location       string  `json:"location,omitempty"`
	TTLSeconds     float64 `json:"ttlSeconds,omitempty"`
	MaxSize        int     `json:"maxSize,omitempty"`
	DiskUsageBytes int64   `json:"diskUsageBytes,omitempty"`
}

// CacheMutationResponse reports how many entries a cache operation removed.
type CacheMutationResponse struct {
	Removed int `json:"removed"`
}

// DaemonStatus summarizes the serving process.
type DaemonStatus struct {
	Running         bool       `json:"running"`
	PID             int        `json:"pid"`
	Address         string     `json:"address,omitempty"`
	LockFilePath    string     `json:"lockFilePath"`
	Backends        []string   `json:"backends"`
	Cache           CacheStats `json:"cache"`
	CleanupSchedule string     `json:"cleanupSchedule,omitempty"`
	NextCleanup     string     `json:"nextCleanup,omitempty"`
	LastCleanup     string     `json:"lastCleanup,omitempty"`
	LastCleanupN    int        `json:"lastCleanupRemoved"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
