package testsupport

import (
	"context"
	"sync/atomic"
	"time"

	"origlang/internal/lookup"
)

// StubBackend is a scripted lookup.Backend that counts calls.
type StubBackend struct {
	ID          string
	Unavailable bool
	// Result is cloned on every call; nil means "no answer".
	Result *lookup.Detection
	Err    error
	// Delay holds each call until it elapses or the context ends.
	Delay time.Duration
	// DetectFunc, when set, replaces Result and Err.
	DetectFunc func(ctx context.Context, q lookup.Query) (*lookup.Detection, error)

	calls  atomic.Int64
	closed atomic.Bool
}

// NewStubBackend returns a stub named name answering with a detection in
// language lang at the given confidence.
func NewStubBackend(name, lang string, confidence float64) *StubBackend {
	return &StubBackend{
		ID: name,
		Result: lookup.NewDetection(lookup.Detection{
			OriginalLanguage: lang,
			Confidence:       confidence,
			Source:           name,
			Method:           lookup.MethodTitleSearch,
		}),
	}
}

func (s *StubBackend) Name() string { return s.ID }

func (s *StubBackend) Available() bool { return !s.Unavailable }

func (s *StubBackend) Detect(ctx context.Context, q lookup.Query) (*lookup.Detection, error) {
	s.calls.Add(1)
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if s.DetectFunc != nil {
		return s.DetectFunc(ctx, q)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Result.Clone(), nil
}

// Close records that the owner released the backend.
func (s *StubBackend) Close() error {
	s.closed.Store(true)
	return nil
}

// Calls reports how many times Detect ran.
func (s *StubBackend) Calls() int { return int(s.calls.Load()) }

// Closed reports whether Close was called.
func (s *StubBackend) Closed() bool { return s.closed.Load() }
