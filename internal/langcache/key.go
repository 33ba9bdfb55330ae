package langcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"origlang/internal/lookup"
)

// KeyLength is the number of hex characters kept from the digest.
const KeyLength = 16

// Key derives the cache key for q: the truncated SHA-256 of the sorted-key
// JSON encoding of the query's identifying fields. Queries that differ only
// in non-identifying options share a key.
func Key(q lookup.Query) string {
	// encoding/json writes map keys in sorted order.
	data, err := json.Marshal(q.Canonical())
	if err != nil {
		data = []byte(q.String())
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:KeyLength]
}
