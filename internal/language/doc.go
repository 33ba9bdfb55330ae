// Package language provides language code normalization and mapping.
//
// Metadata sources report languages as ISO 639-1 codes (TMDb), ISO 639-2
// codes, or English names scraped from page text (IMDb). Normalize collapses
// all of these onto ISO 639-1 so detections from different backends compare
// equal.
package language
