// Package textutil provides the title normalization and similarity helpers
// used to score metadata search results against a query.
package textutil
