package detector

import (
	"log/slog"

	"origlang/internal/config"
	"origlang/internal/lookup"
	"origlang/internal/services/imdb"
	"origlang/internal/services/tmdb"
)

// UserAgent identifies origlang to the TMDB API.
var UserAgent = "origlang/dev"

// DefaultBackends builds one backend per name in detection.backend_priorities.
// Unknown names are ignored; availability is checked by the caller.
func DefaultBackends(cfg *config.Config, logger *slog.Logger) []lookup.Backend {
	backends := make([]lookup.Backend, 0, len(cfg.Detection.BackendPriorities))
	for _, name := range cfg.Detection.BackendPriorities {
		switch name {
		case config.BackendTMDB:
			backends = append(backends, tmdb.NewBackendFromConfig(cfg, UserAgent, logger))
		case config.BackendIMDB:
			backends = append(backends, imdb.NewBackendFromConfig(cfg, logger))
		}
	}
	return backends
}
