package jobs

import (
	"context"
	"time"

	"github.com/Ananth-NQI/segurobot-backend/internal/cache"
	"github.com/Ananth-NQI/segurobot-backend/internal/logger"
	"github.com/Ananth-NQI/segurobot-backend/internal/services"
	"golang.org/x/sync/errgroup"
)

// MaintenanceConfig holds the job intervals. A zero interval disables that job.
type MaintenanceConfig struct {
	SnapshotInterval   time.Duration
	DedupSweepInterval time.Duration
	SessionSweepEvery  time.Duration
	SessionMaxIdle     time.Duration
}

// MaintenanceJob runs the periodic housekeeping: state snapshots, dedup cache
// sweeps and removal of idle sessions.
type MaintenanceJob struct {
	sessions *services.SessionManager
	dedup    *cache.DedupCache
	cfg      MaintenanceConfig
	log      *logger.Logger
}

// NewMaintenanceJob creates the housekeeping scheduler
func NewMaintenanceJob(sessions *services.SessionManager, dedup *cache.DedupCache, cfg MaintenanceConfig, log *logger.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		sessions: sessions,
		dedup:    dedup,
		cfg:      cfg,
		log:      log,
	}
}

// Run blocks until ctx is cancelled
func (m *MaintenanceJob) Run(ctx context.Context) error {
	m.log.Info("Starting scheduled maintenance jobs...")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.every(ctx, "snapshot", m.cfg.SnapshotInterval, m.SaveSnapshot) })
	g.Go(func() error { return m.every(ctx, "dedup_sweep", m.cfg.DedupSweepInterval, m.SweepDedup) })
	g.Go(func() error { return m.every(ctx, "session_sweep", m.cfg.SessionSweepEvery, m.SweepSessions) })

	err := g.Wait()
	m.log.Info("⏹️  Maintenance jobs stopped")
	return err
}

func (m *MaintenanceJob) every(ctx context.Context, name string, interval time.Duration, job func(context.Context)) error {
	if interval <= 0 {
		m.log.Info("Job disabled", "job", name)
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			job(ctx)
		}
	}
}

// SaveSnapshot flushes the session state to its backend
func (m *MaintenanceJob) SaveSnapshot(ctx context.Context) {
	if err := m.sessions.Flush(ctx); err != nil {
		m.log.Error("Periodic snapshot failed", "error", err)
	}
}

// SweepDedup drops expired duplicate-event entries
func (m *MaintenanceJob) SweepDedup(ctx context.Context) {
	if removed := m.dedup.Sweep(); removed > 0 {
		m.log.Debug("Dedup cache swept", "removed", removed)
	}
}

// SweepSessions removes sessions idle for longer than SessionMaxIdle
func (m *MaintenanceJob) SweepSessions(ctx context.Context) {
	if m.cfg.SessionMaxIdle <= 0 {
		return
	}
	m.sessions.SweepInactive(m.cfg.SessionMaxIdle)
}
