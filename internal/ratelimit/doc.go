// Package ratelimit provides the sliding-window limiter used by metadata
// backends plus context-aware sleep and retry helpers.
package ratelimit
