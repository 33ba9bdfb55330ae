package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"origlang/internal/filename"
	"origlang/internal/logging"
	"origlang/internal/lookup"
	"origlang/internal/services"
)

// RequestIDHeader carries the correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

// StatusFunc reports daemon status for GET /api/v1/status.
type StatusFunc func(r *http.Request) DaemonStatus

type handler struct {
	svc    *DetectionService
	status StatusFunc
	logger *slog.Logger
}

// NewRouter mounts the lookup API. status may be nil, in which case the
// status route is not registered.
func NewRouter(svc *DetectionService, status StatusFunc, logger *slog.Logger) *mux.Router {
	h := &handler{
		svc:    svc,
		status: status,
		logger: logging.NewComponentLogger(logger, "api"),
	}

	router := mux.NewRouter()
	router.Use(requestIDMiddleware)
	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	v1.HandleFunc("/detect", h.handleDetect).Methods(http.MethodGet)
	v1.HandleFunc("/detect/file", h.handleDetectFile).Methods(http.MethodGet)
	v1.HandleFunc("/backends", h.handleBackends).Methods(http.MethodGet)
	v1.HandleFunc("/cache/stats", h.handleCacheStats).Methods(http.MethodGet)
	v1.HandleFunc("/cache/cleanup", h.handleCacheCleanup).Methods(http.MethodPost)
	v1.HandleFunc("/cache", h.handleCacheDelete).Methods(http.MethodDelete)
	if status != nil {
		v1.HandleFunc("/status", h.handleStatus).Methods(http.MethodGet)
	}
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, h.logger, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
	})
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, h.logger, http.StatusNotFound, ErrorResponse{Error: "not found"})
	})
	return router
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestID(r.Context(), strings.TrimSpace(r.Header.Get(RequestIDHeader)))
		ctx, id := services.EnsureRequestID(ctx)
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *handler) handleDetect(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q, err := ParseQuery(values.Get)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !q.HasID() && !q.HasTitle() {
		h.writeError(w, http.StatusBadRequest, "title, imdb_id or tmdb_id is required")
		return
	}
	minConfidence, err := parseMinConfidence(values.Get("min_confidence"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, h.svc.Detect(r.Context(), q, minConfidence))
}

func (h *handler) handleDetectFile(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	name := strings.TrimSpace(values.Get("name"))
	if name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	minConfidence, err := parseMinConfidence(values.Get("min_confidence"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	parsed := filename.Parse(name)
	if parsed.Empty() {
		h.writeError(w, http.StatusUnprocessableEntity, "no title or id recognized in file name")
		return
	}
	h.writeJSON(w, http.StatusOK, h.svc.DetectFile(r.Context(), name, parsed.Query(), minConfidence))
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleBackends(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Backends())
}

func (h *handler) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.CacheStats(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *handler) handleCacheCleanup(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.CleanupCache(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleCacheDelete(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	if len(values) == 0 {
		resp, err := h.svc.ClearCache(r.Context())
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		h.writeJSON(w, http.StatusOK, resp)
		return
	}
	q, err := ParseQuery(values.Get)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := h.svc.DeleteFromCache(r.Context(), q)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.status(r))
}

// ParseQuery builds a lookup query from named parameters. get returns ""
// for absent parameters.
func ParseQuery(get func(string) string) (lookup.Query, error) {
	q := lookup.Query{
		Title:     strings.TrimSpace(get("title")),
		IMDbID:    strings.TrimSpace(get("imdb_id")),
		TMDbID:    strings.TrimSpace(get("tmdb_id")),
		MediaType: lookup.ParseMediaType(get("media_type")),
	}
	var err error
	if q.Year, err = optionalInt(get, "year"); err != nil {
		return lookup.Query{}, err
	}
	if q.Season, err = optionalInt(get, "season"); err != nil {
		return lookup.Query{}, err
	}
	if q.Episode, err = optionalInt(get, "episode"); err != nil {
		return lookup.Query{}, err
	}
	if q.ExactTitle, err = optionalBool(get, "exact"); err != nil {
		return lookup.Query{}, err
	}
	if q.IncludeAdult, err = optionalBool(get, "include_adult"); err != nil {
		return lookup.Query{}, err
	}
	return q, nil
}

func optionalInt(get func(string) string, key string) (int, error) {
	raw := strings.TrimSpace(get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

func optionalBool(get func(string) string, key string) (bool, error) {
	raw := strings.TrimSpace(get(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

func parseMinConfidence(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		return nil, errors.New("min_confidence must be a number between 0 and 1")
	}
	return &v, nil
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	writeJSON(w, h.logger, status, payload)
}

func (h *handler) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, h.logger, status, ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", logging.Error(err))
	}
}
