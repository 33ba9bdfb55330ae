package api

import (
	"time"

	"origlang/internal/langcache"
	"origlang/internal/lookup"
)

// FromQuery converts a lookup query to its API representation.
func FromQuery(q lookup.Query) Query {
	q = q.Normalized()
	return Query{
		Title:     q.Title,
		Year:      q.Year,
		IMDbID:    q.IMDbID,
		TMDbID:    q.TMDbID,
		MediaType: string(q.MediaType),
		Season:    q.Season,
		Episode:   q.Episode,
	}
}

// FromDetection converts a detection to its API representation. Nil stays nil.
func FromDetection(d *lookup.Detection, reliableThreshold float64) *Detection {
	if d == nil {
		return nil
	}
	return &Detection{
		Language:            d.OriginalLanguage,
		LanguageName:        d.LanguageName(),
		Confidence:          d.Confidence,
		Reliable:            d.IsReliable(reliableThreshold),
		Source:              d.Source,
		Method:              d.Method,
		Details:             d.Details,
		Title:               d.Title,
		Year:                d.Year,
		IMDbID:              d.IMDbID,
		TMDbID:              d.TMDbID,
		SpokenLanguages:     append([]string{}, d.SpokenLanguages...),
		ProductionCountries: append([]string{}, d.ProductionCountries...),
		DetectionTimeMs:     d.DetectionTimeMs,
		Timestamp:           formatTime(d.Timestamp),
	}
}

// FromCacheStats converts cache statistics.
func FromCacheStats(s langcache.Stats) CacheStats {
	return CacheStats{
		Type:           s.Type,
		Enabled:        s.Enabled,
		TotalEntries:   s.TotalEntries,
		ActiveEntries:  s.ActiveEntries,
		ExpiredEntries: s.ExpiredEntries,
		ActualFiles:    s.ActualFiles,
		Location:       s.Location,
		TTLSeconds:     s.TTLSeconds,
		MaxSize:        s.MaxSize,
		DiskUsageBytes: s.DiskUsageBytes,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
