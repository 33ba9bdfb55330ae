package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"origlang/internal/api"
	"origlang/internal/detector"
	"origlang/internal/logging"
	"origlang/internal/testsupport"
)

type fixture struct {
	router http.Handler
	stub   *testsupport.StubBackend
}

func newFixture(t *testing.T, status api.StatusFunc) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithCacheBackend("memory"))
	stub := testsupport.NewStubBackend("stub", "ja", 0.9)
	det, err := detector.New(cfg, detector.WithBackends(stub))
	if err != nil {
		t.Fatalf("detector.New returned error: %v", err)
	}
	t.Cleanup(func() { _ = det.Close() })
	svc := api.NewDetectionService(det, cfg.Detection.ConfidenceThreshold)
	return fixture{router: api.NewRouter(svc, status, logging.NewNop()), stub: stub}
}

func (f fixture) do(t *testing.T, method, path string, params url.Values) *httptest.ResponseRecorder {
	t.Helper()
	target := path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return out
}

func TestDetectEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/v1/detect", url.Values{"title": {"Spirited Away"}, "year": {"2001"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(api.RequestIDHeader) == "" {
		t.Fatal("expected a generated request id header")
	}
	resp := decode[api.DetectResponse](t, rec)
	if resp.Detection == nil {
		t.Fatal("expected a detection")
	}
	if resp.Detection.Language != "ja" || resp.Detection.LanguageName != "Japanese" || !resp.Detection.Reliable {
		t.Fatalf("unexpected detection %+v", resp.Detection)
	}
	if resp.Query.Title != "Spirited Away" || resp.Query.Year != 2001 || resp.Query.MediaType != "movie" {
		t.Fatalf("unexpected query echo %+v", resp.Query)
	}
}

func TestDetectEchoesRequestID(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/detect?title=Akira", nil)
	req.Header.Set(api.RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if got := rec.Header().Get(api.RequestIDHeader); got != "req-42" {
		t.Fatalf("request id = %q, want req-42", got)
	}
}

func TestDetectRejectsBadInput(t *testing.T) {
	f := newFixture(t, nil)
	cases := map[string]url.Values{
		"missing title":    {"year": {"2001"}},
		"bad year":         {"title": {"Akira"}, "year": {"soon"}},
		"bad confidence":   {"title": {"Akira"}, "min_confidence": {"1.5"}},
		"bad adult filter": {"title": {"Akira"}, "include_adult": {"maybe"}},
	}
	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/v1/detect", params)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if resp := decode[api.ErrorResponse](t, rec); resp.Error == "" {
				t.Fatal("expected an error message")
			}
		})
	}
	if f.stub.Calls() != 0 {
		t.Fatalf("backend called %d times for rejected requests", f.stub.Calls())
	}
}

func TestDetectHonorsMinConfidence(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/v1/detect", url.Values{"title": {"Akira"}, "min_confidence": {"0.95"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decode[api.DetectResponse](t, rec); resp.Detection != nil {
		t.Fatalf("expected no detection above 0.95, got %+v", resp.Detection)
	}
}

func TestDetectFileEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/v1/detect/file", url.Values{"name": {"Attack on Titan S04E01.mkv"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[api.DetectResponse](t, rec)
	if resp.File != "Attack on Titan S04E01.mkv" {
		t.Fatalf("file = %q", resp.File)
	}
	if resp.Query.MediaType != "tv" || resp.Query.Season != 4 || resp.Query.Episode != 1 {
		t.Fatalf("unexpected parsed query %+v", resp.Query)
	}
	if resp.Detection == nil || resp.Detection.Language != "ja" {
		t.Fatalf("unexpected detection %+v", resp.Detection)
	}

	if rec := f.do(t, http.MethodGet, "/api/v1/detect/file", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing name status = %d, want 400", rec.Code)
	}
}

func TestBackendsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/api/v1/backends", nil)
	resp := decode[api.BackendsResponse](t, rec)
	if len(resp.Backends) != 1 || resp.Backends[0] != "stub" {
		t.Fatalf("backends = %v", resp.Backends)
	}
}

func TestCacheEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	akira := url.Values{"title": {"Akira"}, "year": {"1988"}}
	f.do(t, http.MethodGet, "/api/v1/detect", akira)
	f.do(t, http.MethodGet, "/api/v1/detect", url.Values{"title": {"Paprika"}})

	stats := decode[api.CacheStats](t, f.do(t, http.MethodGet, "/api/v1/cache/stats", nil))
	if stats.Type != "memory" || stats.TotalEntries != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	removed := decode[api.CacheMutationResponse](t, f.do(t, http.MethodDelete, "/api/v1/cache", akira))
	if removed.Removed != 1 {
		t.Fatalf("delete removed %d, want 1", removed.Removed)
	}
	removed = decode[api.CacheMutationResponse](t, f.do(t, http.MethodDelete, "/api/v1/cache", akira))
	if removed.Removed != 0 {
		t.Fatalf("second delete removed %d, want 0", removed.Removed)
	}

	if rec := f.do(t, http.MethodPost, "/api/v1/cache/cleanup", nil); rec.Code != http.StatusOK {
		t.Fatalf("cleanup status = %d", rec.Code)
	}

	removed = decode[api.CacheMutationResponse](t, f.do(t, http.MethodDelete, "/api/v1/cache", nil))
	if removed.Removed != 1 {
		t.Fatalf("clear removed %d, want 1", removed.Removed)
	}
}

func TestStatusRoute(t *testing.T) {
	f := newFixture(t, nil)
	if rec := f.do(t, http.MethodGet, "/api/v1/status", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("status without provider = %d, want 404", rec.Code)
	}

	f = newFixture(t, func(*http.Request) api.DaemonStatus {
		return api.DaemonStatus{Running: true, PID: 7}
	})
	resp := decode[api.DaemonStatus](t, f.do(t, http.MethodGet, "/api/v1/status", nil))
	if !resp.Running || resp.PID != 7 {
		t.Fatalf("unexpected status %+v", resp)
	}
}

func TestWrongMethod(t *testing.T) {
	f := newFixture(t, nil)
	if rec := f.do(t, http.MethodPost, "/api/v1/detect", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestParseQuery(t *testing.T) {
	values := url.Values{
		"title":      {" Your Name "},
		"tmdb_id":    {"372058"},
		"media_type": {"TV"},
		"season":     {"2"},
		"exact":      {"true"},
	}
	q, err := api.ParseQuery(values.Get)
	if err != nil {
		t.Fatalf("ParseQuery returned error: %v", err)
	}
	if q.Title != "Your Name" || q.TMDbID != "372058" || string(q.MediaType) != "tv" || q.Season != 2 || !q.ExactTitle {
		t.Fatalf("unexpected query %+v", q)
	}
	if _, err := api.ParseQuery(url.Values{"episode": {"-1"}}.Get); err == nil {
		t.Fatal("expected negative episode to be rejected")
	}
}

func TestHealthRoute(t *testing.T) {
	f := newFixture(t, nil)
	if rec := f.do(t, http.MethodGet, "/api/v1/health", nil); rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}
