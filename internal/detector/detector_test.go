package detector_test

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"origlang/internal/config"
	"origlang/internal/detector"
	"origlang/internal/langcache"
	"origlang/internal/lookup"
	"origlang/internal/services"
	"origlang/internal/testsupport"
)

func newDetector(t *testing.T, cfg *config.Config, opts ...detector.Option) *detector.Detector {
	t.Helper()
	d, err := detector.New(cfg, opts...)
	if err != nil {
		t.Fatalf("detector.New returned error: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

var spiritedAway = lookup.Query{Title: "Spirited Away", Year: 2001}

func TestDetectPrefersHigherConfidence(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCacheDisabled())
	a := testsupport.NewStubBackend("a", "en", 0.6)
	b := testsupport.NewStubBackend("b", "ja", 0.9)
	d := newDetector(t, cfg, detector.WithBackends(a, b))

	got := d.DetectFromQuery(context.Background(), spiritedAway, detector.WithMinConfidence(0.5))
	if got == nil {
		t.Fatal("expected a detection")
	}
	if got.Source != "b" || got.OriginalLanguage != "ja" || got.Confidence != 0.9 {
		t.Fatalf("unexpected detection %+v", got)
	}
	if a.Calls() != 1 || b.Calls() != 1 {
		t.Fatalf("calls a=%d b=%d, want 1 each", a.Calls(), b.Calls())
	}
}

func TestDetectStopsAtExactMatch(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCacheDisabled())
	a := testsupport.NewStubBackend("a", "ja", 1.0)
	b := testsupport.NewStubBackend("b", "en", 0.9)
	d := newDetector(t, cfg, detector.WithBackends(a, b))

	got := d.DetectFromQuery(context.Background(), spiritedAway)
	if got == nil || got.Source != "a" {
		t.Fatalf("expected exact match from a, got %+v", got)
	}
	if b.Calls() != 0 {
		t.Fatalf("second backend called %d times after exact match", b.Calls())
	}
}

func TestDetectTimeoutReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCacheDisabled())
	slow := testsupport.NewStubBackend("slow", "ja", 1.0)
	slow.Delay = 500 * time.Millisecond
	d := newDetector(t, cfg,
		detector.WithBackends(slow),
		detector.WithTotalTimeout(50*time.Millisecond),
	)

	start := time.Now()
	got := d.DetectFromQuery(context.Background(), spiritedAway)
	if got != nil {
		t.Fatalf("expected nil on timeout, got %+v", got)
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Fatalf("detection waited %v for a timed out backend", elapsed)
	}
}

func TestDetectTimeoutDiscardsEarlierResult(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCacheDisabled())
	fast := testsupport.NewStubBackend("fast", "en", 0.8)
	slow := testsupport.NewStubBackend("slow", "ja", 0.9)
	slow.Delay = 500 * time.Millisecond
	d := newDetector(t, cfg,
		detector.WithBackends(fast, slow),
		detector.WithTotalTimeout(100*time.Millisecond),
	)

	if got := d.DetectFromQuery(context.Background(), spiritedAway); got != nil {
		t.Fatalf("expected nil when the deadline elapses mid-loop, got %+v", got)
	}
}

func TestDetectDoesNotCacheLowConfidence(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	weak := testsupport.NewStubBackend("weak", "en", 0.4)
	d := newDetector(t, cfg, detector.WithBackends(weak))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if got := d.DetectFromQuery(ctx, spiritedAway); got != nil {
			t.Fatalf("expected nil below threshold, got %+v", got)
		}
	}
	if weak.Calls() != 2 {
		t.Fatalf("backend calls = %d, want 2", weak.Calls())
	}
	stats, err := d.CacheStats(ctx)
	if err != nil {
		t.Fatalf("CacheStats returned error: %v", err)
	}
	if stats.TotalEntries != 0 {
		t.Fatalf("expected empty cache, got %+v", stats)
	}
}

func TestDetectCallSiteMinimumGatesCaching(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithConfidenceThreshold(0.3))
	stub := testsupport.NewStubBackend("stub", "en", 0.4)
	d := newDetector(t, cfg, detector.WithBackends(stub))
	ctx := context.Background()

	if got := d.DetectFromQuery(ctx, spiritedAway, detector.WithMinConfidence(0.5)); got != nil {
		t.Fatalf("expected nil under call-site minimum, got %+v", got)
	}
	if got := d.DetectFromQuery(ctx, spiritedAway); got == nil || got.Confidence != 0.4 {
		t.Fatalf("expected configured threshold to accept 0.4, got %+v", got)
	}
	if stub.Calls() != 2 {
		t.Fatalf("backend calls = %d, want 2", stub.Calls())
	}
}

func TestDetectCachesYourName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	imdbStub := &testsupport.StubBackend{
		ID: config.BackendIMDB,
		Result: lookup.NewDetection(lookup.Detection{
			OriginalLanguage: "ja",
			Confidence:       0.85,
			Source:           config.BackendIMDB,
			Method:           lookup.MethodIMDbIDMatch,
		}),
	}
	d := newDetector(t, cfg, detector.WithBackends(imdbStub))
	ctx := context.Background()
	q := lookup.Query{Title: "Your Name", Year: 2016, IMDbID: "tt5311514"}

	first := d.DetectFromQuery(ctx, q)
	if first == nil {
		t.Fatal("expected first detection")
	}
	if first.OriginalLanguage != "ja" || first.Confidence != 0.85 || first.Method != lookup.MethodIMDbIDMatch {
		t.Fatalf("unexpected first detection %+v", first)
	}
	if imdbStub.Calls() != 1 {
		t.Fatalf("calls after first detection = %d, want 1", imdbStub.Calls())
	}

	second := d.DetectFromQuery(ctx, q)
	if second == nil {
		t.Fatal("expected cached detection")
	}
	if second.OriginalLanguage != first.OriginalLanguage || second.Confidence != first.Confidence ||
		second.Method != first.Method || second.Source != first.Source {
		t.Fatalf("cached detection %+v differs from %+v", second, first)
	}
	if imdbStub.Calls() != 1 {
		t.Fatalf("calls after cached detection = %d, want 1", imdbStub.Calls())
	}
}

func TestDetectIgnoresWeakCacheEntry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := langcache.NewMemoryCache(langcache.Options{TTL: time.Hour, MaxSize: 10})
	ctx := context.Background()
	weak := lookup.NewDetection(lookup.Detection{OriginalLanguage: "en", Confidence: 0.6, Source: "old"})
	if err := cache.Set(ctx, spiritedAway, weak); err != nil {
		t.Fatalf("cache.Set returned error: %v", err)
	}
	stub := testsupport.NewStubBackend("stub", "ja", 0.9)
	d := newDetector(t, cfg, detector.WithCache(cache), detector.WithBackends(stub))

	got := d.DetectFromQuery(ctx, spiritedAway)
	if got == nil || got.OriginalLanguage != "ja" {
		t.Fatalf("expected fresh detection, got %+v", got)
	}
	if stub.Calls() != 1 {
		t.Fatalf("backend calls = %d, want 1", stub.Calls())
	}
	cached, ok := cache.Get(ctx, spiritedAway)
	if !ok || cached.Confidence != 0.9 {
		t.Fatalf("expected stronger result to replace the cache entry, got %+v", cached)
	}
}

func TestDetectSkipsFailingBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCacheDisabled())
	broken := &testsupport.StubBackend{ID: "broken", Err: services.ErrBackendCallFailed}
	panicky := &testsupport.StubBackend{ID: "panicky", DetectFunc: func(context.Context, lookup.Query) (*lookup.Detection, error) {
		panic("boom")
	}}
	good := testsupport.NewStubBackend("good", "ko", 0.8)
	cfg.Detection.MaxBackends = 3
	d := newDetector(t, cfg, detector.WithBackends(broken, panicky, good))

	got := d.DetectFromQuery(context.Background(), spiritedAway)
	if got == nil || got.Source != "good" {
		t.Fatalf("expected result from the healthy backend, got %+v", got)
	}
}

func TestDetectFollowsConfiguredPriority(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCacheDisabled())
	imdbStub := testsupport.NewStubBackend(config.BackendIMDB, "en", 0.9)
	tmdbStub := testsupport.NewStubBackend(config.BackendTMDB, "ja", 1.0)
	d := newDetector(t, cfg, detector.WithBackends(imdbStub, tmdbStub))

	got := d.DetectFromQuery(context.Background(), spiritedAway)
	if got == nil || got.Source != config.BackendTMDB {
		t.Fatalf("expected tmdb to run first, got %+v", got)
	}
	if imdbStub.Calls() != 0 {
		t.Fatalf("imdb called %d times after tmdb exact match", imdbStub.Calls())
	}
	if names := d.AvailableBackends(); !slices.Equal(names, []string{"tmdb", "imdb"}) {
		t.Fatalf("AvailableBackends = %v", names)
	}
}

func TestDetectCapsAttemptedBackends(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCacheDisabled())
	cfg.Detection.MaxBackends = 1
	first := testsupport.NewStubBackend("first", "en", 0.5)
	second := testsupport.NewStubBackend("second", "ja", 0.9)
	d := newDetector(t, cfg, detector.WithBackends(first, second))

	if got := d.DetectFromQuery(context.Background(), spiritedAway); got != nil {
		t.Fatalf("expected nil with one attempt below threshold, got %+v", got)
	}
	if second.Calls() != 0 {
		t.Fatalf("backend beyond max_backends was called %d times", second.Calls())
	}
}

func TestAvailableBackendsWithoutTMDBKey(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTMDBKey(""))
	d := newDetector(t, cfg)

	if names := d.AvailableBackends(); !slices.Equal(names, []string{config.BackendIMDB}) {
		t.Fatalf("AvailableBackends = %v, want [imdb]", names)
	}
}

func TestBackendsBuiltLazily(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCacheDisabled())
	var builds atomic.Int32
	stub := testsupport.NewStubBackend("lazy", "fr", 0.9)
	offline := &testsupport.StubBackend{ID: "offline", Unavailable: true}
	factory := func(*config.Config, *slog.Logger) []lookup.Backend {
		builds.Add(1)
		return []lookup.Backend{offline, stub}
	}
	d := newDetector(t, cfg, detector.WithBackendFactory(factory))

	if builds.Load() != 0 {
		t.Fatal("backends built during construction")
	}
	ctx := context.Background()
	if got := d.DetectFromQuery(ctx, spiritedAway); got == nil || got.Source != "lazy" {
		t.Fatalf("unexpected detection %+v", got)
	}
	_ = d.DetectFromQuery(ctx, spiritedAway)
	if builds.Load() != 1 {
		t.Fatalf("factory ran %d times, want 1", builds.Load())
	}
	if offline.Calls() != 0 {
		t.Fatal("unavailable backend was queried")
	}
	if names := d.AvailableBackends(); !slices.Equal(names, []string{"lazy"}) {
		t.Fatalf("AvailableBackends = %v", names)
	}
}

func TestAddBackendSkipsUnavailable(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCacheDisabled())
	d := newDetector(t, cfg, detector.WithBackendFactory(func(*config.Config, *slog.Logger) []lookup.Backend {
		t.Fatal("factory must not run when backends were added")
		return nil
	}))
	d.AddBackend(&testsupport.StubBackend{ID: "offline", Unavailable: true})
	d.AddBackend(testsupport.NewStubBackend("online", "de", 0.8))

	if names := d.AvailableBackends(); !slices.Equal(names, []string{"online"}) {
		t.Fatalf("AvailableBackends = %v", names)
	}
}

func TestDetectDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDetectionDisabled())
	stub := testsupport.NewStubBackend("stub", "ja", 1.0)
	d := newDetector(t, cfg, detector.WithBackends(stub))

	if got := d.DetectFromQuery(context.Background(), spiritedAway); got != nil {
		t.Fatalf("expected nil when disabled, got %+v", got)
	}
	if stub.Calls() != 0 {
		t.Fatal("backend queried while detection disabled")
	}
}

func TestDetectFromFilename(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCacheDisabled())
	var seen lookup.Query
	stub := &testsupport.StubBackend{ID: "stub", DetectFunc: func(_ context.Context, q lookup.Query) (*lookup.Detection, error) {
		seen = q
		return lookup.NewDetection(lookup.Detection{OriginalLanguage: "ja", Confidence: 0.95, Source: "stub"}), nil
	}}
	d := newDetector(t, cfg, detector.WithBackends(stub))

	got := d.DetectFromFilename(context.Background(), "Attack on Titan S04E01 - The Other Side of the Sea [1080p].mkv")
	if got == nil || got.OriginalLanguage != "ja" {
		t.Fatalf("unexpected detection %+v", got)
	}
	if seen.Title != "Attack on Titan" || seen.MediaType != lookup.MediaTV || seen.Season != 4 || seen.Episode != 1 {
		t.Fatalf("unexpected query %+v", seen)
	}
}

func TestDetectionTimeMeasuredFromEntry(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCacheDisabled())
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current := now
		now = now.Add(250 * time.Millisecond)
		return current
	}
	d := newDetector(t, cfg,
		detector.WithClock(clock),
		detector.WithBackends(testsupport.NewStubBackend("stub", "ja", 0.9)),
	)

	got := d.DetectFromQuery(context.Background(), spiritedAway)
	if got == nil {
		t.Fatal("expected detection")
	}
	if got.DetectionTimeMs != 250 {
		t.Fatalf("DetectionTimeMs = %v, want 250", got.DetectionTimeMs)
	}
}

func TestDetectConcurrentRequests(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCacheBackend(config.CacheBackendMemory))
	stub := testsupport.NewStubBackend("stub", "ja", 0.9)
	d := newDetector(t, cfg, detector.WithBackends(stub))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(year int) {
			defer wg.Done()
			q := lookup.Query{Title: "Spirited Away", Year: year}
			if got := d.DetectFromQuery(context.Background(), q); got == nil {
				t.Errorf("nil detection for year %d", year)
			}
		}(2000 + i%4)
	}
	wg.Wait()

	stats, err := d.CacheStats(context.Background())
	if err != nil {
		t.Fatalf("CacheStats returned error: %v", err)
	}
	if stats.TotalEntries != 4 {
		t.Fatalf("expected 4 cached queries, got %+v", stats)
	}
}

func TestCachePassthroughs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDetector(t, cfg, detector.WithBackends(testsupport.NewStubBackend("stub", "ja", 0.9)))
	ctx := context.Background()

	if got := d.DetectFromQuery(ctx, spiritedAway); got == nil {
		t.Fatal("expected detection")
	}
	deleted, err := d.DeleteFromCache(ctx, spiritedAway)
	if err != nil || !deleted {
		t.Fatalf("DeleteFromCache = %v, %v", deleted, err)
	}
	_ = d.DetectFromQuery(ctx, spiritedAway)
	cleared, err := d.ClearCache(ctx)
	if err != nil || cleared != 1 {
		t.Fatalf("ClearCache = %d, %v", cleared, err)
	}
	if _, err := d.CleanupCache(ctx); err != nil {
		t.Fatalf("CleanupCache returned error: %v", err)
	}
}

func TestInjectedCacheHonorsDisabledSwitch(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCacheDisabled())
	cache := langcache.NewMemoryCache(langcache.Options{TTL: time.Hour, MaxSize: 10})
	ctx := context.Background()
	stale := lookup.NewDetection(lookup.Detection{OriginalLanguage: "en", Confidence: 1, Source: "old"})
	if err := cache.Set(ctx, spiritedAway, stale); err != nil {
		t.Fatalf("cache.Set returned error: %v", err)
	}
	stub := testsupport.NewStubBackend("stub", "ja", 0.9)
	d := newDetector(t, cfg, detector.WithCache(cache), detector.WithBackends(stub))

	got := d.DetectFromQuery(ctx, spiritedAway)
	if got == nil || got.OriginalLanguage != "ja" {
		t.Fatalf("expected backend detection, got %+v", got)
	}
	if stub.Calls() != 1 {
		t.Fatalf("backend calls = %d, want 1", stub.Calls())
	}
	cached, ok := cache.Get(ctx, spiritedAway)
	if !ok || cached.OriginalLanguage != "en" {
		t.Fatalf("disabled cache was written: %+v", cached)
	}
}

func TestCloseClosesBackends(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCacheDisabled())
	stub := testsupport.NewStubBackend("stub", "ja", 0.9)
	d, err := detector.New(cfg, detector.WithBackends(stub))
	if err != nil {
		t.Fatalf("detector.New returned error: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !stub.Closed() {
		t.Fatal("backend was not closed")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Detection.ConfidenceThreshold = 1.5
	cfg.Detection.TotalTimeout = 1
	cfg.Detection.RequestTimeout = 2

	_, err := detector.New(cfg)
	if !errors.Is(err, services.ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
	if _, err := detector.New(nil); !errors.Is(err, services.ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid for nil config, got %v", err)
	}
}
