// Package services defines shared utilities consumed by the detector and the
// external metadata integrations under services/.
//
// Key responsibilities:
//   - Context helpers that stamp correlation identifiers and backend names
//     for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (backend call failed, cache corrupt, config invalid) without
//     string matching.
//
// Only ErrConfigInvalid is ever returned to detector callers; every other
// marker is logged and degraded to "no detection".
package services
