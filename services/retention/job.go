package retention

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/internal/observability"
	"github.com/cbc-agent/analytics-ingest/repositories"
	"github.com/cbc-agent/analytics-ingest/services/audit"
)

// ErrAlreadyRunning is returned by Start on a running job
var ErrAlreadyRunning = errors.New("retention purge job already running")

// Config holds configuration for the purge job
type Config struct {
	Interval   time.Duration // time between runs
	BatchSize  int           // rows deleted per statement
	RunTimeout time.Duration // bound of one run
}

// DefaultConfig returns default purge job configuration
func DefaultConfig() Config {
	return Config{
		Interval:   24 * time.Hour,
		BatchSize:  1000,
		RunTimeout: 10 * time.Minute,
	}
}

// PurgeJob periodically deletes events whose expires_at has passed. Each record
// carries the retention decided at ingest, so the job applies no policy of its own.
type PurgeJob struct {
	events   repositories.EventRepository
	recorder audit.Recorder
	metrics  *observability.Metrics
	logger   *zap.Logger
	config   Config
	now      func() time.Time

	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

// NewPurgeJob creates a new purge job
func NewPurgeJob(events repositories.EventRepository, recorder audit.Recorder, metrics *observability.Metrics, logger *zap.Logger, config Config) *PurgeJob {
	defaults := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = defaults.RunTimeout
	}

	return &PurgeJob{
		events:   events,
		recorder: recorder,
		metrics:  metrics,
		logger:   logger,
		config:   config,
		now:      time.Now,
	}
}

// Start runs the job once immediately and then every interval until Stop
func (j *PurgeJob) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.stop != nil {
		return ErrAlreadyRunning
	}
	j.stop = make(chan struct{})
	j.stopped = make(chan struct{})

	go j.loop(j.stop, j.stopped)

	j.logger.Info("retention purge job started",
		zap.Duration("interval", j.config.Interval),
		zap.Int("batch_size", j.config.BatchSize))
	return nil
}

// Stop ends the loop and waits up to timeout for a run in progress
func (j *PurgeJob) Stop(timeout time.Duration) error {
	j.mu.Lock()
	stop, stopped := j.stop, j.stopped
	j.stop, j.stopped = nil, nil
	j.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-stopped:
		j.logger.Info("retention purge job stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for retention purge job to stop")
	}
}

func (j *PurgeJob) loop(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.runLogged(ctx)
	for {
		select {
		case <-ticker.C:
			j.runLogged(ctx)
		case <-stop:
			return
		}
	}
}

func (j *PurgeJob) runLogged(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, j.config.RunTimeout)
	defer cancel()

	if _, err := j.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		j.logger.Error("retention purge failed", zap.Error(err))
	}
}

// RunOnce deletes every expired event in batches and returns how many were removed.
// A failed batch stops the run; rows already deleted stay deleted and are counted.
func (j *PurgeJob) RunOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC()

	var total int64
	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		deleted, err := j.events.DeleteExpired(ctx, cutoff, j.config.BatchSize)
		total += deleted
		if err != nil {
			runErr = fmt.Errorf("failed to purge expired events: %w", err)
			break
		}
		if deleted < int64(j.config.BatchSize) {
			break
		}
	}

	if total > 0 {
		j.metrics.AddRetentionPurged(total)
		if err := j.recorder.Record(audit.RetentionPurged(total)); err != nil {
			j.logger.Warn("failed to record retention audit entry", zap.Error(err))
		}
		j.logger.Info("purged expired events",
			zap.Int64("deleted", total),
			zap.Time("cutoff", cutoff))
	}

	return total, runErr
}
