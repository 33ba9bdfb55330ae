package api

import (
	"context"

	"origlang/internal/detector"
	"origlang/internal/langcache"
	"origlang/internal/lookup"
)

// Detector abstracts the detector operations exposed over HTTP.
type Detector interface {
	DetectFromQuery(ctx context.Context, q lookup.Query, opts ...detector.DetectOption) *lookup.Detection
	DetectFromFilename(ctx context.Context, name string, opts ...detector.DetectOption) *lookup.Detection
	AvailableBackends() []string
	CacheStats(ctx context.Context) (langcache.Stats, error)
	DeleteFromCache(ctx context.Context, q lookup.Query) (bool, error)
	ClearCache(ctx context.Context) (int, error)
	CleanupCache(ctx context.Context) (int, error)
}

// DetectionService exposes detector operations returning API DTOs.
type DetectionService struct {
	det       Detector
	threshold float64
}

// NewDetectionService wraps det. reliableThreshold marks detections as
// reliable in responses; zero uses lookup.DefaultReliabilityThreshold.
func NewDetectionService(det Detector, reliableThreshold float64) *DetectionService {
	if det == nil {
		return nil
	}
	return &DetectionService{det: det, threshold: reliableThreshold}
}

// Detect resolves q. A nil minConfidence uses the configured threshold.
func (s *DetectionService) Detect(ctx context.Context, q lookup.Query, minConfidence *float64) DetectResponse {
	resp := DetectResponse{Query: FromQuery(q)}
	if s == nil {
		return resp
	}
	resp.Detection = FromDetection(s.det.DetectFromQuery(ctx, q, detectOptions(minConfidence)...), s.threshold)
	return resp
}

// DetectFile resolves the query parsed from a file name.
func (s *DetectionService) DetectFile(ctx context.Context, name string, q lookup.Query, minConfidence *float64) DetectResponse {
	resp := DetectResponse{Query: FromQuery(q), File: name}
	if s == nil {
		return resp
	}
	resp.Detection = FromDetection(s.det.DetectFromFilename(ctx, name, detectOptions(minConfidence)...), s.threshold)
	return resp
}

// Backends lists the backends a detection will try.
func (s *DetectionService) Backends() BackendsResponse {
	if s == nil {
		return BackendsResponse{Backends: []string{}}
	}
	names := s.det.AvailableBackends()
	if names == nil {
		names = []string{}
	}
	return BackendsResponse{Backends: names}
}

// CacheStats reports cache occupancy.
func (s *DetectionService) CacheStats(ctx context.Context) (CacheStats, error) {
	if s == nil {
		return CacheStats{Type: langcache.TypeNoop}, nil
	}
	stats, err := s.det.CacheStats(ctx)
	if err != nil {
		return CacheStats{}, err
	}
	return FromCacheStats(stats), nil
}

// CleanupCache removes expired and overflow entries.
func (s *DetectionService) CleanupCache(ctx context.Context) (CacheMutationResponse, error) {
	if s == nil {
		return CacheMutationResponse{}, nil
	}
	n, err := s.det.CleanupCache(ctx)
	return CacheMutationResponse{Removed: n}, err
}

// ClearCache removes every entry.
func (s *DetectionService) ClearCache(ctx context.Context) (CacheMutationResponse, error) {
	if s == nil {
		return CacheMutationResponse{}, nil
	}
	n, err := s.det.ClearCache(ctx)
	return CacheMutationResponse{Removed: n}, err
}

// DeleteFromCache removes the entry for q.
func (s *DetectionService) DeleteFromCache(ctx context.Context, q lookup.Query) (CacheMutationResponse, error) {
	if s == nil {
		return CacheMutationResponse{}, nil
	}
	deleted, err := s.det.DeleteFromCache(ctx, q)
	if err != nil || !deleted {
		return CacheMutationResponse{}, err
	}
	return CacheMutationResponse{Removed: 1}, nil
}

func detectOptions(minConfidence *float64) []detector.DetectOption {
	if minConfidence == nil {
		return nil
	}
	return []detector.DetectOption{detector.WithMinConfidence(*minConfidence)}
}
