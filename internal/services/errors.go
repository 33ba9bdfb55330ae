package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBackendUnavailable marks a backend excluded at setup, e.g. missing credentials.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrBackendCallFailed marks a network, HTTP or parse failure during one backend attempt.
	ErrBackendCallFailed = errors.New("backend call failed")
	// ErrCacheCorrupt marks an unreadable or malformed persisted cache entry.
	ErrCacheCorrupt = errors.New("cache entry corrupt")
	// ErrDetectionTimeout marks a request whose total deadline elapsed.
	ErrDetectionTimeout = errors.New("detection timeout")
	// ErrConfigInvalid marks configuration rejected at construction time.
	ErrConfigInvalid = errors.New("invalid configuration")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrBackendCallFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short label for the marker carried by err, for log fields.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfigInvalid):
		return "config_invalid"
	case errors.Is(err, ErrDetectionTimeout):
		return "detection_timeout"
	case errors.Is(err, ErrCacheCorrupt):
		return "cache_corrupt"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend_unavailable"
	default:
		return "backend_call_failed"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
