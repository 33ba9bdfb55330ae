package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"origlang/internal/ratelimit"
)

// Result represents a single TMDB search match.
type Result struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Name             string  `json:"name"`
	OriginalTitle    string  `json:"original_title"`
	OriginalName     string  `json:"original_name"`
	OriginalLanguage string  `json:"original_language"`
	ReleaseDate      string  `json:"release_date"`
	FirstAirDate     string  `json:"first_air_date"`
	MediaType        string  `json:"media_type"`
	Popularity       float64 `json:"popularity"`
}

// DisplayTitle returns the localized title of a movie or the name of a series.
func (r Result) DisplayTitle() string {
	if strings.TrimSpace(r.Title) != "" {
		return r.Title
	}
	return r.Name
}

// Year extracts the release or first-air year, or 0 when unknown.
func (r Result) Year() int {
	if r.ReleaseDate != "" {
		return yearFromDate(r.ReleaseDate)
	}
	return yearFromDate(r.FirstAirDate)
}

// Response models the TMDB paginated search response.
type Response struct {
	Page         int      `json:"page"`
	Results      []Result `json:"results"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
}

// FindResponse models the /find endpoint payload.
type FindResponse struct {
	MovieResults []Result `json:"movie_results"`
	TVResults    []Result `json:"tv_results"`
}

// SpokenLanguage is one entry of a details payload's spoken_languages.
type SpokenLanguage struct {
	ISO6391     string `json:"iso_639_1"`
	EnglishName string `json:"english_name"`
	Name        string `json:"name"`
}

// ProductionCountry is one entry of a details payload's production_countries.
type ProductionCountry struct {
	ISO31661 string `json:"iso_3166_1"`
	Name     string `json:"name"`
}

// ExternalIDs carries cross-references appended to TV details.
type ExternalIDs struct {
	IMDbID string `json:"imdb_id"`
}

// Details is the movie or series details payload.
type Details struct {
	Result
	IMDbID              string              `json:"imdb_id"`
	SpokenLanguages     []SpokenLanguage    `json:"spoken_languages"`
	ProductionCountries []ProductionCountry `json:"production_countries"`
	OriginCountry       []string            `json:"origin_country"`
	ExternalIDs         *ExternalIDs        `json:"external_ids,omitempty"`
	Runtime             int                 `json:"runtime"`
	Status              string              `json:"status"`
}

// SearchOptions contains optional parameters for TMDB searches.
type SearchOptions struct {
	Year         int
	IncludeAdult bool
}

// StatusError reports a non-200 TMDB response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Latency    time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb %s returned %d (latency=%v)", e.Endpoint, e.StatusCode, e.Latency)
}

// IsNotFound reports whether err is a TMDB 404.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// Client provides access to the TMDB API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	userAgent  string
	httpClient *http.Client
	limiter    *ratelimit.Window
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRateLimiter shares a limiter across every request issued by the client.
func WithRateLimiter(limiter *ratelimit.Window) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if ua := strings.TrimSpace(userAgent); ua != "" {
			c.userAgent = ua
		}
	}
}

// New creates a TMDB client.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		userAgent:  "origlang",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Find resolves an external identifier (for example an IMDb tt-id).
func (c *Client) Find(ctx context.Context, externalID, source string) (*FindResponse, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, errors.New("external id must not be empty")
	}
	params := url.Values{}
	params.Set("external_source", source)
	var payload FindResponse
	if err := c.get(ctx, "find", "/find/"+url.PathEscape(externalID), params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// SearchMovie performs a TMDB movie search.
func (c *Client) SearchMovie(ctx context.Context, query string, opts SearchOptions) (*Response, error) {
	params, err := searchParams(query, opts)
	if err != nil {
		return nil, err
	}
	if opts.Year > 0 {
		params.Set("year", strconv.Itoa(opts.Year))
	}
	var payload Response
	if err := c.get(ctx, "search", "/search/movie", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// SearchTV performs a TMDB series search.
func (c *Client) SearchTV(ctx context.Context, query string, opts SearchOptions) (*Response, error) {
	params, err := searchParams(query, opts)
	if err != nil {
		return nil, err
	}
	if opts.Year > 0 {
		params.Set("first_air_date_year", strconv.Itoa(opts.Year))
	}
	var payload Response
	if err := c.get(ctx, "tv search", "/search/tv", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// MovieDetails fetches movie details by TMDB ID.
func (c *Client) MovieDetails(ctx context.Context, movieID int64) (*Details, error) {
	if movieID <= 0 {
		return nil, errors.New("movie id must be positive")
	}
	var payload Details
	if err := c.get(ctx, "movie details", fmt.Sprintf("/movie/%d", movieID), url.Values{}, &payload); err != nil {
		return nil, err
	}
	payload.MediaType = "movie"
	return &payload, nil
}

// TVDetails fetches series details by TMDB ID, including external IDs.
func (c *Client) TVDetails(ctx context.Context, showID int64) (*Details, error) {
	if showID <= 0 {
		return nil, errors.New("show id must be positive")
	}
	params := url.Values{}
	params.Set("append_to_response", "external_ids")
	var payload Details
	if err := c.get(ctx, "tv details", fmt.Sprintf("/tv/%d", showID), params, &payload); err != nil {
		return nil, err
	}
	payload.MediaType = "tv"
	if payload.IMDbID == "" && payload.ExternalIDs != nil {
		payload.IMDbID = payload.ExternalIDs.IMDbID
	}
	return &payload, nil
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

func searchParams(query string, opts SearchOptions) (url.Values, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", strconv.FormatBool(opts.IncludeAdult))
	return params, nil
}

func (c *Client) get(ctx context.Context, label, path string, params url.Values, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse tmdb url: %w", err)
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("tmdb rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Endpoint: label, StatusCode: resp.StatusCode, Latency: latency}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode tmdb %s: %w", label, err)
	}
	return nil
}

func yearFromDate(date string) int {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
