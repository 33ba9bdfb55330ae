package langcache

import (
	"context"

	"origlang/internal/lookup"
)

// Noop is the cache used when caching is disabled.
type Noop struct{}

var _ Cache = Noop{}

// NewNoop returns a cache that stores nothing.
func NewNoop() Noop { return Noop{} }

func (Noop) Get(context.Context, lookup.Query) (*lookup.Detection, bool) { return nil, false }

func (Noop) Set(context.Context, lookup.Query, *lookup.Detection) error { return nil }

func (Noop) Delete(context.Context, lookup.Query) (bool, error) { return false, nil }

func (Noop) Clear(context.Context) (int, error) { return 0, nil }

func (Noop) Cleanup(context.Context) (int, error) { return 0, nil }

func (Noop) Stats(context.Context) (Stats, error) {
	return Stats{Type: TypeNoop, Enabled: false}, nil
}

func (Noop) Close() error { return nil }
