// Package filename extracts titles, years, external IDs, and episode
// numbers from media file names so they can be turned into lookup queries.
//
// Recognized shapes include Plex/Jellyfin style names such as
// "Title (1989) {imdb-tt0097814} [Bluray-1080p]", scene-style dotted names,
// and episode names like "Show S01E02 - Episode" or "Show - 1x02".
package filename
