// Package imdb scrapes IMDb title pages for original language metadata.
//
// Fetching and parsing are kept apart: Client handles headers, charset
// decoding, rate limiting and retries, while the Parse functions are pure
// over the HTML they are given. Backend combines the two into a
// lookup.Backend that needs no credentials.
package imdb
