package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"origlang/internal/api"
	"origlang/internal/config"
	"origlang/internal/logging"
)

const healthPath = "/api/v1/health"

type apiServer struct {
	bind   string
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Server.Bind)
	if bind == "" {
		return nil
	}
	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
	}

	svc := api.NewDetectionService(d.det, cfg.Detection.ConfidenceThreshold)
	router := api.NewRouter(svc, func(r *http.Request) api.DaemonStatus {
		return statusPayload(d.Status(r.Context()))
	}, logger)
	router.Use(authMiddleware(cfg.Server.Token))

	srv.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Detections may run up to the total timeout.
		WriteTimeout: cfg.TotalTimeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()
}

func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func statusPayload(status Status) api.DaemonStatus {
	backends := status.Backends
	if backends == nil {
		backends = []string{}
	}
	return api.DaemonStatus{
		Running:         status.Running,
		PID:             status.PID,
		Address:         status.Address,
		LockFilePath:    status.LockFilePath,
		Backends:        backends,
		Cache:           api.FromCacheStats(status.Cache),
		CleanupSchedule: status.CleanupSchedule,
		NextCleanup:     formatTime(status.NextCleanup),
		LastCleanup:     formatTime(status.LastCleanup),
		LastCleanupN:    status.LastRemoved,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
