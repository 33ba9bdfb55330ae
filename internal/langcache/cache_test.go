package langcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"origlang/internal/lookup"
	"origlang/internal/services"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sampleDetection(lang string, confidence float64) *lookup.Detection {
	return lookup.NewDetection(lookup.Detection{
		OriginalLanguage: lang,
		Confidence:       confidence,
		Source:           "tmdb",
		Method:           lookup.MethodTitleSearch,
		Title:            "Your Name.",
		Year:             2016,
		TMDbID:           "372058",
		SpokenLanguages:  []string{lang},
		RawResponse: map[string]any{
			"id":         int64(372058),
			"popularity": 12.5,
			"media_type": "movie",
		},
	})
}

type variant struct {
	name string
	open func(t *testing.T, opts Options) Cache
}

func variants() []variant {
	return []variant{
		{"file", func(t *testing.T, opts Options) Cache {
			opts.Dir = t.TempDir()
			c, err := NewFileCache(opts, nil)
			if err != nil {
				t.Fatalf("NewFileCache: %v", err)
			}
			return c
		}},
		{"memory", func(t *testing.T, opts Options) Cache {
			return NewMemoryCache(opts)
		}},
		{"sqlite", func(t *testing.T, opts Options) Cache {
			opts.Dir = t.TempDir()
			c, err := OpenSQLiteCache(opts, nil)
			if err != nil {
				t.Fatalf("OpenSQLiteCache: %v", err)
			}
			t.Cleanup(func() { _ = c.Close() })
			return c
		}},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, v := range variants() {
		t.Run(v.name, func(t *testing.T) {
			ctx := context.Background()
			c := v.open(t, Options{TTL: time.Hour, MaxSize: 10})
			q := lookup.Query{Title: "Your Name", Year: 2016}

			if _, ok := c.Get(ctx, q); ok {
				t.Fatal("expected miss on empty cache")
			}
			want := sampleDetection("ja", 0.95)
			if err := c.Set(ctx, q, want); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, ok := c.Get(ctx, q)
			if !ok {
				t.Fatal("expected hit after Set")
			}
			if !got.Timestamp.Equal(want.Timestamp) {
				t.Fatalf("timestamp changed: %v vs %v", got.Timestamp, want.Timestamp)
			}
			stored := *got
			stored.Timestamp = want.Timestamp
			if !reflect.DeepEqual(&stored, want) {
				t.Fatalf("detection changed in cache:\n got %#v\nwant %#v", &stored, want)
			}

			deleted, err := c.Delete(ctx, q)
			if err != nil || !deleted {
				t.Fatalf("Delete = %v, %v", deleted, err)
			}
			deleted, err = c.Delete(ctx, q)
			if err != nil || deleted {
				t.Fatalf("second Delete = %v, %v", deleted, err)
			}
			if _, ok := c.Get(ctx, q); ok {
				t.Fatal("expected miss after Delete")
			}
		})
	}
}

func TestExpiryWithClock(t *testing.T) {
	for _, v := range variants() {
		t.Run(v.name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			c := v.open(t, Options{TTL: time.Minute, MaxSize: 10, Now: clock.Now})
			q := lookup.Query{IMDbID: "tt5311514"}
			if err := c.Set(ctx, q, sampleDetection("ja", 1)); err != nil {
				t.Fatalf("Set: %v", err)
			}

			stats, err := c.Stats(ctx)
			if err != nil {
				t.Fatalf("Stats: %v", err)
			}
			if stats.TotalEntries != 1 || stats.ActiveEntries != 1 {
				t.Fatalf("unexpected stats %+v", stats)
			}

			clock.Advance(2 * time.Minute)
			stats, err = c.Stats(ctx)
			if err != nil {
				t.Fatalf("Stats: %v", err)
			}
			if stats.ExpiredEntries != 1 {
				t.Fatalf("expected one expired entry, got %+v", stats)
			}
			if _, ok := c.Get(ctx, q); ok {
				t.Fatal("expected expired entry to miss")
			}
			stats, err = c.Stats(ctx)
			if err != nil {
				t.Fatalf("Stats: %v", err)
			}
			if stats.TotalEntries != 0 {
				t.Fatalf("expired entry should be removed on read, got %+v", stats)
			}
		})
	}
}

func TestFileCacheTTLRealClock(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(Options{Dir: t.TempDir(), TTL: 100 * time.Millisecond, MaxSize: 10}, nil)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	q := lookup.Query{Title: "Spirited Away", Year: 2001}
	if err := c.Set(ctx, q, sampleDetection("ja", 0.95)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := c.Get(ctx, q); !ok {
		t.Fatal("expected immediate hit")
	}
	time.Sleep(200 * time.Millisecond)
	if _, ok := c.Get(ctx, q); ok {
		t.Fatal("expected miss after ttl")
	}
	if _, err := os.Stat(filepath.Join(c.Dir(), Key(q)+".json")); !os.IsNotExist(err) {
		t.Fatalf("expected expired file to be removed, stat err=%v", err)
	}
}

func TestKeyCanonicalization(t *testing.T) {
	base := lookup.Query{Title: "Your Name", Year: 2016}
	same := []lookup.Query{
		{Title: "  Your Name  ", Year: 2016},
		{Title: "Your Name", Year: 2016, MediaType: lookup.MediaMovie},
		{Title: "Your Name", Year: 2016, IncludeAdult: true, ExactTitle: true},
	}
	for _, q := range same {
		if Key(q) != Key(base) {
			t.Errorf("Key(%+v) differs from base", q)
		}
	}
	different := []lookup.Query{
		{Title: "Your Name", Year: 2017},
		{Title: "Your Name"},
		{Title: "Your Name", Year: 2016, MediaType: lookup.MediaTV},
		{Title: "Your Name", Year: 2016, IMDbID: "tt5311514"},
	}
	for _, q := range different {
		if Key(q) == Key(base) {
			t.Errorf("Key(%+v) collides with base", q)
		}
	}
	if len(Key(base)) != KeyLength {
		t.Fatalf("unexpected key length %d", len(Key(base)))
	}
}

func TestFileCacheRemovesCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(Options{Dir: t.TempDir(), TTL: time.Hour, MaxSize: 10}, nil)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	q := lookup.Query{Title: "Broken"}
	path := filepath.Join(c.Dir(), Key(q)+".json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt entry: %v", err)
	}
	if _, ok := c.Get(ctx, q); ok {
		t.Fatal("corrupt entry must be a miss")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected corrupt file removed, stat err=%v", err)
	}
}

func TestFileCacheWritesIndex(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(Options{Dir: t.TempDir(), TTL: time.Hour, MaxSize: 10}, nil)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	q := lookup.Query{Title: "Your Name", Year: 2016}
	if err := c.Set(ctx, q, sampleDetection("ja", 0.95)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	c.mu.Lock()
	idx := c.loadIndexLocked()
	c.mu.Unlock()
	meta, ok := idx.Entries[Key(q)]
	if !ok {
		t.Fatalf("index missing key; entries=%v", idx.Entries)
	}
	if meta.QueryTitle != "Your Name" || meta.ResultLanguage != "ja" || meta.ResultConfidence != 0.95 {
		t.Fatalf("unexpected index entry %+v", meta)
	}
	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.ActualFiles != 1 || stats.DiskUsageBytes == 0 || stats.Type != TypeFile {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestCleanupEvictsOldestCreated(t *testing.T) {
	for _, v := range []variant{variants()[0], variants()[2]} {
		t.Run(v.name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			c := v.open(t, Options{TTL: time.Hour, MaxSize: 2, Now: clock.Now})
			titles := []string{"First", "Second", "Third"}
			for _, title := range titles {
				if err := c.Set(ctx, lookup.Query{Title: title}, sampleDetection("en", 0.85)); err != nil {
					t.Fatalf("Set: %v", err)
				}
				clock.Advance(time.Second)
			}
			removed, err := c.Cleanup(ctx)
			if err != nil {
				t.Fatalf("Cleanup: %v", err)
			}
			if removed != 1 {
				t.Fatalf("expected 1 eviction, got %d", removed)
			}
			if _, ok := c.Get(ctx, lookup.Query{Title: "First"}); ok {
				t.Fatal("oldest entry should be evicted")
			}
			for _, title := range titles[1:] {
				if _, ok := c.Get(ctx, lookup.Query{Title: title}); !ok {
					t.Fatalf("expected %q to survive", title)
				}
			}
		})
	}
}

func TestCleanupRemovesExpiredFirst(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c, err := NewFileCache(Options{Dir: t.TempDir(), TTL: time.Minute, MaxSize: 5, Now: clock.Now}, nil)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	if err := c.Set(ctx, lookup.Query{Title: "Old"}, sampleDetection("en", 0.85)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	clock.Advance(2 * time.Minute)
	if err := c.Set(ctx, lookup.Query{Title: "Fresh"}, sampleDetection("en", 0.85)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	removed, err := c.Cleanup(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("Cleanup = %d, %v", removed, err)
	}
	if _, ok := c.Get(ctx, lookup.Query{Title: "Fresh"}); !ok {
		t.Fatal("fresh entry should survive")
	}
}

func TestMemoryCacheLRU(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(Options{TTL: time.Hour, MaxSize: 2})
	a, b, d := lookup.Query{Title: "A"}, lookup.Query{Title: "B"}, lookup.Query{Title: "D"}
	_ = c.Set(ctx, a, sampleDetection("en", 0.9))
	_ = c.Set(ctx, b, sampleDetection("en", 0.9))
	if _, ok := c.Get(ctx, a); !ok {
		t.Fatal("expected hit for A")
	}
	_ = c.Set(ctx, d, sampleDetection("en", 0.9))

	if _, ok := c.Get(ctx, b); ok {
		t.Fatal("B was least recently used and should be evicted")
	}
	if _, ok := c.Get(ctx, a); !ok {
		t.Fatal("A was recently read and should survive")
	}
	if _, ok := c.Get(ctx, d); !ok {
		t.Fatal("D was just written and should be present")
	}
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(Options{TTL: time.Hour, MaxSize: 2})
	q := lookup.Query{Title: "A"}
	_ = c.Set(ctx, q, sampleDetection("ja", 0.9))
	got, _ := c.Get(ctx, q)
	got.SpokenLanguages[0] = "xx"
	again, _ := c.Get(ctx, q)
	if again.SpokenLanguages[0] != "ja" {
		t.Fatal("cached value was mutated through a returned detection")
	}
}

func TestClear(t *testing.T) {
	for _, v := range variants() {
		t.Run(v.name, func(t *testing.T) {
			ctx := context.Background()
			c := v.open(t, Options{TTL: time.Hour, MaxSize: 10})
			for _, title := range []string{"A", "B", "C"} {
				if err := c.Set(ctx, lookup.Query{Title: title}, sampleDetection("en", 0.9)); err != nil {
					t.Fatalf("Set: %v", err)
				}
			}
			n, err := c.Clear(ctx)
			if err != nil || n != 3 {
				t.Fatalf("Clear = %d, %v", n, err)
			}
			stats, err := c.Stats(ctx)
			if err != nil || stats.TotalEntries != 0 {
				t.Fatalf("Stats after clear = %+v, %v", stats, err)
			}
		})
	}
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	c := NewNoop()
	q := lookup.Query{Title: "Anything"}
	if err := c.Set(ctx, q, sampleDetection("en", 1)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := c.Get(ctx, q); ok {
		t.Fatal("noop cache must always miss")
	}
	stats, _ := c.Stats(ctx)
	if stats != (Stats{Type: TypeNoop}) {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if n, _ := c.Cleanup(ctx); n != 0 {
		t.Fatalf("Cleanup = %d", n)
	}
}

func TestNewSelectsVariant(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		opts Options
		want string
	}{
		{Options{Enabled: false}, TypeNoop},
		{Options{Enabled: true, Backend: "file", Dir: filepath.Join(dir, "f"), TTL: time.Hour, MaxSize: 1}, TypeFile},
		{Options{Enabled: true, Backend: "memory", TTL: time.Hour, MaxSize: 1}, TypeMemory},
		{Options{Enabled: true, Backend: "sqlite", Dir: filepath.Join(dir, "s"), TTL: time.Hour, MaxSize: 1}, TypeSQLite},
	}
	for _, tc := range cases {
		c, err := New(tc.opts, nil)
		if err != nil {
			t.Fatalf("New(%+v): %v", tc.opts, err)
		}
		stats, err := c.Stats(context.Background())
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if stats.Type != tc.want {
			t.Errorf("New(%q) type = %q, want %q", tc.opts.Backend, stats.Type, tc.want)
		}
		_ = c.Close()
	}

	_, err := New(Options{Enabled: true, Backend: "redis", TTL: time.Hour, MaxSize: 1}, nil)
	if !errors.Is(err, services.ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid for unknown backend, got %v", err)
	}
}
