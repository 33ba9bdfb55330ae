// Package tmdb talks to The Movie Database REST API and adapts it into a
// lookup.Backend.
//
// Client wraps the handful of v3 endpoints detection needs (find, search,
// details) and waits on a shared ratelimit.Window before every request.
// Backend layers the lookup order on top: external IDs first, then a
// title search across movies and series.
package tmdb
