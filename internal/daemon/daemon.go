package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"parley/internal/config"
	"parley/internal/logging"
	"parley/internal/metrics"
	"parley/internal/notifications"
	"parley/internal/orchestrator"
	"parley/internal/services/tavus"
	"parley/internal/session"
	"parley/internal/store"
)

// AvatarAdmin is the avatar platform surface the daemon exposes beyond
// session assembly.
type AvatarAdmin interface {
	ListPersonas(ctx context.Context) ([]tavus.Persona, error)
	ListReplicas(ctx context.Context) ([]tavus.Replica, error)
	EndConversation(ctx context.Context, conversationID string) error
}

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	orch      *orchestrator.Orchestrator
	assembler *session.Assembler
	avatar    AvatarAdmin
	notifier  notifications.Service

	lockPath string
	lock     *flock.Flock
	sweeper  *cron.Cron
	server   *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Options bundles the daemon's dependencies.
type Options struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *store.Store
	Orch      *orchestrator.Orchestrator
	Assembler *session.Assembler
	Avatar    AvatarAdmin
	Notifier  notifications.Service
}

// New constructs a daemon with initialized dependencies.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Store == nil || opts.Orch == nil || opts.Assembler == nil {
		return nil, errors.New("daemon requires config, store, orchestrator, and assembler")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(opts.Config)
	}

	lockPath := filepath.Join(opts.Config.Paths.DataDir, "parley.lock")
	d := &Daemon{
		cfg:       opts.Config,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     opts.Store,
		orch:      opts.Orch,
		assembler: opts.Assembler,
		avatar:    opts.Avatar,
		notifier:  notifier,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.server = newAPIServer(opts.Config, d)
	return d, nil
}

// Start acquires the daemon lock, errors out jobs interrupted by a previous
// shutdown, and launches the sweeper and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another parley daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// There is no retry: jobs caught mid-flight by a restart are errored so
	// the caller resubmits them.
	interrupted, err := d.store.MarkStaleProcessing(runCtx, time.Now().Add(time.Minute), "interrupted by restart")
	if err != nil {
		d.release()
		return fmt.Errorf("mark interrupted jobs: %w", err)
	}
	if interrupted > 0 {
		d.logger.Warn("errored jobs interrupted by previous shutdown", logging.Int64("jobs", interrupted))
	}

	d.startSweeper()
	if err := d.server.start(runCtx); err != nil {
		d.stopSweeper()
		d.release()
		return err
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api_bind", d.cfg.Paths.APIBind),
	)
	return nil
}

// Stop shuts down background processing, waits for in-flight jobs, and
// releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.stop()
	d.stopSweeper()
	d.orch.Close()
	d.release()
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Running reports whether the daemon has started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddr reports the bound API listener address once Start has succeeded.
func (d *Daemon) APIAddr() string {
	return d.server.Addr()
}

// Status summarizes the daemon for the status endpoint and CLI.
func (d *Daemon) Status(ctx context.Context) (map[store.Status]int, error) {
	return d.store.Stats(ctx)
}

func (d *Daemon) release() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// startSweeper schedules the stale-job sweep and the status gauge refresh.
func (d *Daemon) startSweeper() {
	interval := d.cfg.Daemon.SweepIntervalSeconds
	if interval <= 0 {
		interval = 60
	}
	d.sweeper = cron.New()
	spec := fmt.Sprintf("@every %ds", interval)
	_, _ = d.sweeper.AddFunc(spec, d.sweepOnce)
	d.sweeper.Start()
}

func (d *Daemon) stopSweeper() {
	if d.sweeper != nil {
		stopCtx := d.sweeper.Stop()
		<-stopCtx.Done()
		d.sweeper = nil
	}
}

// sweepOnce errors out jobs stuck past the stale timeout and refreshes the
// per-status gauges.
func (d *Daemon) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	timeout := time.Duration(d.cfg.Daemon.StaleJobTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	cutoff := time.Now().Add(-timeout)
	swept, err := d.store.MarkStaleProcessing(ctx, cutoff, "timed out waiting for progress")
	if err != nil {
		d.logger.Error("stale job sweep failed", logging.Error(err))
	} else if swept > 0 {
		d.logger.Warn("stale jobs errored", logging.Int64("jobs", swept))
	}

	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Error("status gauge refresh failed", logging.Error(err))
		return
	}
	for _, status := range store.AllStatuses() {
		metrics.JobsByStatus.WithLabelValues(string(status)).Set(float64(stats[status]))
	}
}
