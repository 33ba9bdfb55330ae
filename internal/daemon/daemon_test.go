package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"origlang/internal/api"
	"origlang/internal/config"
	"origlang/internal/daemon"
	"origlang/internal/detector"
	"origlang/internal/logging"
	"origlang/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	det, err := detector.New(cfg, detector.WithBackends(testsupport.NewStubBackend("stub", "ja", 0.9)))
	if err != nil {
		t.Fatalf("detector.New: %v", err)
	}
	d, err := daemon.New(cfg, det, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.Address == "" {
		t.Fatal("expected a listen address")
	}
	if status.NextCleanup.IsZero() {
		t.Fatal("expected a scheduled cleanup")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	time.Sleep(50 * time.Millisecond)
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
	if status.Address != "" {
		t.Fatalf("expected no address after stop, got %q", status.Address)
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg)
	second := newDaemon(t, cfg)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected second daemon on the same cache directory to fail")
	}
	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release failed: %v", err)
	}
}

func TestDaemonServesAPI(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Server.Token = "secret"
	d := newDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	base := "http://" + d.Addr()

	resp, err := http.Get(base + "/api/v1/backends")
	if err != nil {
		t.Fatalf("GET backends: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, base+"/api/v1/detect?title=Akira&year=1988", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET detect: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var payload api.DetectResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Detection == nil || payload.Detection.Language != "ja" {
		t.Fatalf("unexpected detection %+v", payload.Detection)
	}

	health, err := http.Get(base + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want 200 without token", health.StatusCode)
	}
}

func TestDaemonRunCleanupRecordsResult(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	ctx := context.Background()

	removed, err := d.RunCleanup(ctx)
	if err != nil {
		t.Fatalf("RunCleanup: %v", err)
	}
	status := d.Status(ctx)
	if status.LastCleanup.IsZero() || status.LastRemoved != removed {
		t.Fatalf("unexpected cleanup status %+v", status)
	}
}

func TestDaemonWithoutSchedule(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Server.CleanupSchedule = ""
	d := newDaemon(t, cfg)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if next := d.Status(ctx).NextCleanup; !next.IsZero() {
		t.Fatalf("expected no scheduled cleanup, got %v", next)
	}
}

func TestDaemonRunStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for d.Addr() == "" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
