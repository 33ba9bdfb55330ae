// Package detector orchestrates original-language detection. A Detector
// owns one cache and an ordered set of metadata backends; each request
// consults the cache, walks the backends in priority order under a single
// total deadline, keeps the most confident result, and stores it.
//
// Runtime failures never reach callers. A backend error, a corrupt cache
// entry, and an elapsed deadline all resolve to a nil detection and are
// reported through structured logs. Only New returns an error, and only
// for configuration that cannot work.
package detector
