package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"origlang/internal/config"
	"origlang/internal/detector"
	"origlang/internal/langcache"
	"origlang/internal/logging"
)

// LockFileName is created in the cache directory while a daemon runs.
const LockFileName = "origlang.lock"

// Daemon hosts the lookup API and scheduled cache maintenance, and enforces
// single-instance execution per cache directory.
type Daemon struct {
	cfg    *config.Config
	det    *detector.Detector
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	api       *apiServer
	scheduler *cron.Cron
	cleanupID cron.EntryID

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	mu          sync.Mutex
	lastCleanup time.Time
	lastRemoved int
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	PID             int
	Address         string
	LockFilePath    string
	Backends        []string
	Cache           langcache.Stats
	CleanupSchedule string
	NextCleanup     time.Time
	LastCleanup     time.Time
	LastRemoved     int
}

// New constructs a daemon around an existing detector.
func New(cfg *config.Config, det *detector.Detector, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || det == nil {
		return nil, errors.New("daemon requires config and detector")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockDir := strings.TrimSpace(cfg.Cache.Dir)
	if lockDir == "" {
		lockDir = os.TempDir()
	}
	lockPath := filepath.Join(lockDir, LockFileName)
	d := &Daemon{
		cfg:      cfg,
		det:      det,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, starts the cleanup scheduler, and begins
// serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another origlang daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.startScheduler(d.ctx); err != nil {
		d.abortStart()
		return err
	}
	if err := d.api.start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("origlang daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.Addr()),
	)
	return nil
}

func (d *Daemon) abortStart() {
	if d.scheduler != nil {
		d.scheduler.Stop()
		d.scheduler = nil
	}
	_ = d.lock.Unlock()
	d.cancel()
	d.ctx = nil
	d.cancel = nil
}

func (d *Daemon) startScheduler(ctx context.Context) error {
	schedule := d.cfg.Server.CleanupSchedule
	if schedule == "" || !d.cfg.Cache.Enabled {
		return nil
	}
	scheduler := cron.New()
	id, err := scheduler.AddFunc(schedule, func() { d.scheduledCleanup(ctx) })
	if err != nil {
		return fmt.Errorf("schedule cache cleanup %q: %w", schedule, err)
	}
	d.scheduler = scheduler
	d.cleanupID = id
	scheduler.Start()
	return nil
}

func (d *Daemon) scheduledCleanup(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := d.RunCleanup(ctx); err != nil {
		logging.WarnWithContext(d.logger, "scheduled cache cleanup failed", "cache_cleanup",
			logging.Error(err),
			logging.String(logging.FieldImpact, "expired entries stay on disk until the next run"),
		)
	}
}

// RunCleanup removes expired and overflow cache entries now.
func (d *Daemon) RunCleanup(ctx context.Context) (int, error) {
	removed, err := d.det.CleanupCache(ctx)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	d.lastCleanup = time.Now()
	d.lastRemoved = removed
	d.mu.Unlock()
	d.logger.Info("cache cleanup finished", logging.Int("removed", removed))
	return removed, nil
}

// Stop stops the API server and scheduler and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if d.scheduler != nil {
		<-d.scheduler.Stop().Done()
		d.scheduler = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("origlang daemon stopped")
}

// Close stops the daemon and releases detector resources.
func (d *Daemon) Close() error {
	d.Stop()
	return d.det.Close()
}

// Run starts the daemon and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	d.Stop()
	return nil
}

// Addr returns the address the API listens on, or "" when not serving.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// LockPath returns the path of the single-instance lock file.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:         d.running.Load(),
		PID:             os.Getpid(),
		Address:         d.Addr(),
		LockFilePath:    d.lockPath,
		Backends:        d.det.AvailableBackends(),
		CleanupSchedule: d.cfg.Server.CleanupSchedule,
	}
	if stats, err := d.det.CacheStats(ctx); err == nil {
		status.Cache = stats
	} else {
		d.logger.Warn("cache stats unavailable", logging.Error(err))
	}
	if d.scheduler != nil {
		status.NextCleanup = d.scheduler.Entry(d.cleanupID).Next
	}
	d.mu.Lock()
	status.LastCleanup = d.lastCleanup
	status.LastRemoved = d.lastRemoved
	d.mu.Unlock()
	return status
}
