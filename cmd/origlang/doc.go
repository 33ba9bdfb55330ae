// Command origlang detects the original language of movies and TV shows.
//
// Lookups run in-process against the configured backends and share the
// on-disk cache with `origlang serve`, which exposes the same operations
// over HTTP.
//
//	origlang detect --title "Spirited Away" --year 2001
//	origlang detect "Kiki's Delivery Service (1989).mkv" Akira.1988.mkv --jobs 4
//	origlang cache stats
//	origlang serve
package main
