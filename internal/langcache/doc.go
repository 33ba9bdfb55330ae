// Package langcache stores detection results keyed by the identifying
// fields of a query.
//
// Four variants share the Cache interface: a directory of JSON files with
// a metadata index (the default), an in-memory LRU, a SQLite table for
// large caches, and a no-op used when caching is disabled. Every variant
// applies the same TTL: an expired entry is a miss and is removed. Corrupt
// persisted entries are also misses and are deleted on sight.
package langcache
