// Package daemon coordinates the long-running `origlang serve` process.
//
// It wires configuration, the detector, and the HTTP lookup API into a
// single lifecycle with flock-based locking on the cache directory so two
// servers never share one cache. A cron scheduler runs cache cleanup on
// server.cleanup_schedule; an empty schedule disables it.
//
// Keep orchestration logic here: detection lives in internal/detector and
// wire formats in internal/api, while the daemon focuses on startup,
// shutdown, and high level coordination.
package daemon
