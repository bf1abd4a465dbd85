// Package jobs contains the academy worker's scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/academy-core/internal/domain/session"
	"github.com/alem-hub/academy-core/pkg/logger"
	"github.com/alem-hub/academy-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC TRIAL SESSIONS JOB
// ══════════════════════════════════════════════════════════════════════════════

// TrialLinker links a trial session to its request and mirrors its status.
type TrialLinker interface {
	LinkSessionToRequest(ctx context.Context, s *session.Session) error
}

// SyncTrialSessionsConfig contains configuration for the sweep.
type SyncTrialSessionsConfig struct {
	// Lookback is how far back the first run reaches.
	Lookback time.Duration

	// BatchSize is the page size for ListTrialSessionsChangedAfter.
	BatchSize int

	// MaxBatches caps the pages read per run; the rest waits for the next run.
	MaxBatches int

	// Timeout bounds a whole run.
	Timeout time.Duration
}

// DefaultSyncTrialSessionsConfig returns sensible defaults.
func DefaultSyncTrialSessionsConfig() SyncTrialSessionsConfig {
	return SyncTrialSessionsConfig{
		Lookback:   24 * time.Hour,
		BatchSize:  100,
		MaxBatches: 20,
		Timeout:    2 * time.Minute,
	}
}

// SyncStats contains statistics from one sweep.
type SyncStats struct {
	RunID       string
	Since       time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	Scanned     int
	Synced      int
	Failed      int
}

// SyncTrialSessionsJob replays recently changed trial sessions through the
// trial sync service so that requests catch up with session status changes
// made outside the request flow.
type SyncTrialSessionsJob struct {
	sessions session.Repository
	linker   TrialLinker
	clock    timeutil.Clock
	log      *slog.Logger
	config   SyncTrialSessionsConfig

	mu        sync.Mutex
	watermark session.ChangeCursor
	lastStats *SyncStats
}

// NewSyncTrialSessionsJob creates a new sweep job.
func NewSyncTrialSessionsJob(
	sessions session.Repository,
	linker TrialLinker,
	clock timeutil.Clock,
	log *slog.Logger,
	config SyncTrialSessionsConfig,
) *SyncTrialSessionsJob {
	defaults := DefaultSyncTrialSessionsConfig()
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxBatches <= 0 {
		config.MaxBatches = defaults.MaxBatches
	}
	if config.Lookback <= 0 {
		config.Lookback = defaults.Lookback
	}

	return &SyncTrialSessionsJob{
		sessions: sessions,
		linker:   linker,
		clock:    timeutil.OrSystem(clock),
		log:      logger.OrDefault(log).With(logger.Component("sync_trial_sessions")),
		config:   config,
	}
}

// Name returns the job name.
func (j *SyncTrialSessionsJob) Name() string {
	return "sync_trial_sessions"
}

// Description returns a human-readable description.
func (j *SyncTrialSessionsJob) Description() string {
	return "Links recently changed trial sessions to their requests and syncs request status"
}

// Run executes one sweep. Per-session failures are logged and counted; only a
// failed listing aborts the run.
func (j *SyncTrialSessionsJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	stats := &SyncStats{
		RunID:     uuid.NewString(),
		StartedAt: j.clock.Now(),
	}
	log := j.log.With(slog.String("run_id", stats.RunID))

	j.mu.Lock()
	start := j.watermark
	j.mu.Unlock()
	if start.UpdatedAt.IsZero() {
		start = session.ChangeCursor{UpdatedAt: stats.StartedAt.Add(-j.config.Lookback)}
	}
	stats.Since = start.UpdatedAt

	// cursor pages through this run; watermark stops just before the first
	// failure so the failed session is retried next run.
	cursor, watermark, held := start, start, false

	var listErr error
	for batch := 0; batch < j.config.MaxBatches; batch++ {
		page, err := j.sessions.ListTrialSessionsChangedAfter(ctx, cursor, j.config.BatchSize)
		if err != nil {
			listErr = fmt.Errorf("list trial sessions: %w", err)
			break
		}

		for _, s := range page {
			stats.Scanned++
			if err := j.linker.LinkSessionToRequest(ctx, s); err != nil {
				stats.Failed++
				held = true
				log.Error("trial session sync failed", logger.SessionID(s.ID), logger.Err(err))
			} else {
				stats.Synced++
			}
			if pos := session.CursorOf(s); cursor.Before(pos) {
				cursor = pos
			}
			if !held {
				watermark = cursor
			}
		}

		if len(page) < j.config.BatchSize {
			break
		}
	}

	stats.CompletedAt = j.clock.Now()

	j.mu.Lock()
	j.watermark = watermark
	j.lastStats = stats
	j.mu.Unlock()

	log.Info("trial session sweep finished",
		slog.Time("since", stats.Since),
		slog.Int("scanned", stats.Scanned),
		slog.Int("synced", stats.Synced),
		slog.Int("failed", stats.Failed),
		logger.Latency(stats.CompletedAt.Sub(stats.StartedAt)),
	)

	return listErr
}

// LastStats returns statistics from the last run, or nil before the first one.
func (j *SyncTrialSessionsJob) LastStats() *SyncStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastStats
}
