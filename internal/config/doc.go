// Package config loads, normalizes, and validates origlang configuration.
//
// Configuration is read from TOML (default ~/.config/origlang/config.toml or
// ./origlang.toml), layered over Default(), normalized (trimmed strings,
// expanded paths, TMDB_API_KEY environment fallback), and validated once.
// Validation collects every problem rather than stopping at the first, and
// each reported issue matches services.ErrConfigInvalid.
package config
