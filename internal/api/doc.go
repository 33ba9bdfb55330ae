// Package api defines wire-format types, converters, and the HTTP router
// for the lookup API. It translates detections and cache statistics into
// transport-friendly DTOs so consumers never depend on internal types.
//
// # Key Types
//
// Detection: transport representation of a lookup.Detection with the
// display name of the detected language.
//
// DetectResponse: the query that was resolved plus the detection, which is
// null when nothing reached the confidence threshold.
//
// CacheStats, BackendsResponse, DaemonStatus: operational views.
//
// # Routes
//
// NewRouter mounts everything under /api/v1 on a gorilla/mux router:
//
//	GET    /api/v1/health
//	GET    /api/v1/detect        title, year, imdb_id, tmdb_id, media_type, season, episode, min_confidence
//	GET    /api/v1/detect/file   name
//	GET    /api/v1/backends
//	GET    /api/v1/cache/stats
//	POST   /api/v1/cache/cleanup
//	DELETE /api/v1/cache         clears everything, or one entry when query parameters are given
//	GET    /api/v1/status        only when a StatusFunc is supplied
//
// Every response carries an X-Request-ID header; an incoming one is reused
// as the correlation id for the request's log lines.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// A failed or timed-out detection is reported as a 200 with a null
// detection, matching the detector's contract; callers read logs for the
// reason.
package api
