package lookup

import "context"

// Backend resolves queries against one external metadata source.
//
// Detect returns (nil, nil) when the source has no answer. A non-nil error
// means the attempt itself failed (network, HTTP status, parse); callers log
// it and move on. Implementations must be safe for concurrent use.
type Backend interface {
	Name() string
	Available() bool
	Detect(ctx context.Context, q Query) (*Detection, error)
}

// Method identifiers reported in Detection.Method.
const (
	MethodIMDbIDMatch = "imdb_id_match"
	MethodTMDbIDMatch = "tmdb_id_match"
	MethodTitleSearch = "title_search"
)
