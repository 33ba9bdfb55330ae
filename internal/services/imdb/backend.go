package imdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"origlang/internal/config"
	"origlang/internal/logging"
	"origlang/internal/lookup"
	"origlang/internal/ratelimit"
	"origlang/internal/services"
	"origlang/internal/textutil"
)

// Name is the backend identifier reported in detections.
const Name = config.BackendIMDB

const (
	yearBonus      = 0.3
	minSearchScore = 0.3
)

// Backend resolves original languages by scraping IMDb.
type Backend struct {
	client     *Client
	scorer     lookup.Scorer
	logger     *slog.Logger
	maxResults int
}

var _ lookup.Backend = (*Backend)(nil)

// NewBackend wraps client.
func NewBackend(client *Client, scorer lookup.Scorer, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Backend{
		client: client,
		scorer: scorer,
		logger: logging.NewComponentLogger(logger, "imdb"),
	}
}

// NewBackendFromConfig builds the client from the [imdb] and [detection] sections.
func NewBackendFromConfig(cfg *config.Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = logging.NewNop()
	}
	limiter := ratelimit.NewWindow(cfg.IMDB.RateLimit, time.Duration(cfg.IMDB.RateWindow*float64(time.Second)))
	client := NewClient(cfg.IMDB.BaseURL, cfg.IMDB.UserAgent,
		WithRateLimiter(limiter),
		WithMaxRetries(cfg.IMDB.MaxRetries),
		WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
		WithLogger(logging.NewComponentLogger(logger, "imdb")),
	)
	backend := NewBackend(client, lookup.Scorer{YearTolerance: cfg.Detection.YearTolerance}, logger)
	backend.SetSearchLimit(cfg.Detection.SearchMaxResults)
	return backend
}

// SetSearchLimit caps how many search rows are scored. Non-positive values
// keep the parser's own cap.
func (b *Backend) SetSearchLimit(n int) {
	b.maxResults = n
}

// Name implements lookup.Backend.
func (b *Backend) Name() string { return Name }

// Available is always true; IMDb needs no credentials.
func (b *Backend) Available() bool { return b != nil && b.client != nil }

// Close releases idle HTTP connections.
func (b *Backend) Close() error {
	if b.Available() {
		b.client.CloseIdleConnections()
	}
	return nil
}

// Detect fetches the title page directly when q carries an IMDb ID and
// falls back to the title search.
func (b *Backend) Detect(ctx context.Context, q lookup.Query) (*lookup.Detection, error) {
	if !b.Available() {
		return nil, services.Wrap(services.ErrBackendUnavailable, "imdb", "detect", "client not configured", nil)
	}
	q = q.Normalized()
	start := time.Now()
	logger := logging.WithContext(ctx, b.logger)

	var (
		det *lookup.Detection
		err error
	)
	if q.IMDbID != "" {
		det, err = b.detectByID(ctx, q)
		if err != nil {
			return nil, err
		}
	}
	if det == nil && q.HasTitle() {
		det, err = b.detectByTitle(ctx, q)
		if err != nil {
			return nil, err
		}
	}
	if det == nil {
		logger.Debug("imdb returned no match", logging.String("query", q.String()))
		return nil, nil
	}
	det.DetectionTimeMs = float64(time.Since(start).Microseconds()) / 1000
	attrs := append([]logging.Attr{logging.Query(q)},
		logging.DetectionAttrs(det.OriginalLanguage, det.Confidence, det.Method)...)
	logger.Debug("imdb match", logging.Args(attrs...)...)
	return det, nil
}

// NormalizeID prefixes bare numeric IDs with "tt".
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, "tt") {
		return id
	}
	return "tt" + id
}

func (b *Backend) detectByID(ctx context.Context, q lookup.Query) (*lookup.Detection, error) {
	id := NormalizeID(q.IMDbID)
	page, err := b.titlePage(ctx, id)
	if err != nil || page == nil {
		return nil, err
	}
	return b.buildDetection(q, page, id, lookup.MethodIMDbIDMatch, lookup.MatchID), nil
}

func (b *Backend) detectByTitle(ctx context.Context, q lookup.Query) (*lookup.Detection, error) {
	term := q.Title
	if q.Year != 0 {
		term = term + " " + strconv.Itoa(q.Year)
	}
	params := url.Values{}
	params.Set("q", term)
	params.Set("s", "tt")
	params.Set("ref_", "fn_al_tt_mr")

	body, err := b.client.Fetch(ctx, "/find", params)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrBackendCallFailed, "imdb", "search", "", err)
	}
	results, err := ParseSearchResults(body)
	if err != nil {
		return nil, services.Wrap(services.ErrBackendCallFailed, "imdb", "parse search", "", err)
	}
	if b.maxResults > 0 && len(results) > b.maxResults {
		results = results[:b.maxResults]
	}

	best, ok := bestSearchResult(q, results)
	if !ok {
		return nil, nil
	}
	page, err := b.titlePage(ctx, best.IMDbID)
	if err != nil || page == nil {
		return nil, err
	}
	if page.Title == "" {
		page.Title = best.Title
	}
	if page.Year == 0 {
		page.Year = best.Year
	}
	matchType := b.scorer.ClassifyTitleMatch(q, page.Title, page.Year)
	return b.buildDetection(q, page, best.IMDbID, lookup.MethodTitleSearch, matchType), nil
}

// bestSearchResult scores rows by title similarity plus a bonus for an
// exact year and keeps the highest scoring row above the floor.
func bestSearchResult(q lookup.Query, results []SearchResult) (SearchResult, bool) {
	var (
		best      SearchResult
		bestScore float64
		found     bool
	)
	for _, result := range results {
		sim := textutil.TitleSimilarity(q.Title, result.Title)
		if q.ExactTitle && sim < 1 {
			continue
		}
		score := sim
		if q.Year != 0 && result.Year == q.Year {
			score += yearBonus
		}
		if score > bestScore && score > minSearchScore {
			best, bestScore, found = result, score, true
		}
	}
	return best, found
}

// titlePage returns nil without error when the page is missing.
func (b *Backend) titlePage(ctx context.Context, id string) (*TitlePage, error) {
	body, err := b.client.Fetch(ctx, "/title/"+url.PathEscape(id)+"/", nil)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrBackendCallFailed, "imdb", "title page", id, err)
	}
	page, err := ParseTitlePage(body)
	if err != nil {
		return nil, services.Wrap(services.ErrBackendCallFailed, "imdb", "parse title page", id, err)
	}
	b.logger.Debug("imdb title page parsed",
		logging.String("imdb_id", id),
		logging.String(logging.FieldLanguage, page.Language),
		logging.String("strategy", page.LanguageStrategy),
	)
	return page, nil
}

func (b *Backend) buildDetection(q lookup.Query, page *TitlePage, id, method string, matchType lookup.MatchType) *lookup.Detection {
	if page.Language == "" {
		return nil
	}
	details := "IMDb scraping"
	if page.Title != "" && page.Year != 0 {
		details = fmt.Sprintf("IMDb: %s (%d)", page.Title, page.Year)
	}
	return lookup.NewDetection(lookup.Detection{
		OriginalLanguage:    page.Language,
		Confidence:          b.scorer.DetermineConfidence(q, page.Title, page.Year, matchType),
		Source:              Name,
		Method:              method,
		Details:             details,
		Title:               page.Title,
		Year:                page.Year,
		IMDbID:              id,
		SpokenLanguages:     page.SpokenLanguages,
		ProductionCountries: page.ProductionCountries,
		RawResponse:         map[string]any{"scraped_from": "imdb_title_page"},
	})
}
