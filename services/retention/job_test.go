package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/internal/observability"
	"github.com/cbc-agent/analytics-ingest/models"
	"github.com/cbc-agent/analytics-ingest/repositories/mocks"
)

func setupPurgeJob(batchSize int) (*PurgeJob, *mocks.EventRepository, *mocks.Recorder, time.Time) {
	events := new(mocks.EventRepository)
	recorder := new(mocks.Recorder)
	now := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)

	job := NewPurgeJob(events, recorder, nil, zap.NewNop(), Config{Interval: time.Hour, BatchSize: batchSize})
	job.now = func() time.Time { return now }
	return job, events, recorder, now
}

func TestPurgeJob_RunOnce(t *testing.T) {
	tests := []struct {
		name     string
		batches  []int64
		expected int64
		audited  bool
	}{
		{name: "nothing expired", batches: []int64{0}, expected: 0},
		{name: "single partial batch", batches: []int64{40}, expected: 40, audited: true},
		{name: "several batches", batches: []int64{100, 100, 7}, expected: 207, audited: true},
		{name: "exact multiple", batches: []int64{100, 0}, expected: 100, audited: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, events, recorder, now := setupPurgeJob(100)
			for _, n := range tt.batches {
				events.On("DeleteExpired", mock.Anything, now, 100).Return(n, nil).Once()
			}
			recorder.On("Record", mock.Anything).Return(nil).Maybe()

			total, err := job.RunOnce(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tt.expected, total)
			events.AssertNumberOfCalls(t, "DeleteExpired", len(tt.batches))
			if tt.audited {
				recorder.AssertCalled(t, "Record", mock.MatchedBy(func(l *models.AuditLog) bool {
					return l.Action == models.AuditActionRetentionPurged
				}))
			} else {
				recorder.AssertNotCalled(t, "Record", mock.Anything)
			}
		})
	}
}

func TestPurgeJob_RunOnce_StopsOnError(t *testing.T) {
	job, events, recorder, now := setupPurgeJob(100)
	events.On("DeleteExpired", mock.Anything, now, 100).Return(int64(100), nil).Once()
	events.On("DeleteExpired", mock.Anything, now, 100).Return(int64(0), errors.New("deadlock detected")).Once()
	recorder.On("Record", mock.Anything).Return(nil)

	total, err := job.RunOnce(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock detected")
	assert.Equal(t, int64(100), total)
	events.AssertNumberOfCalls(t, "DeleteExpired", 2)
}

func TestPurgeJob_RunOnce_Cancelled(t *testing.T) {
	job, events, _, _ := setupPurgeJob(100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	total, err := job.RunOnce(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, total)
	events.AssertNotCalled(t, "DeleteExpired", mock.Anything, mock.Anything, mock.Anything)
}

func TestPurgeJob_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics()
	require.NoError(t, metrics.Register(reg))

	events := new(mocks.EventRepository)
	recorder := new(mocks.Recorder)
	events.On("DeleteExpired", mock.Anything, mock.Anything, 50).Return(int64(12), nil)
	recorder.On("Record", mock.Anything).Return(nil)

	job := NewPurgeJob(events, recorder, metrics, zap.NewNop(), Config{BatchSize: 50})
	_, err := job.RunOnce(context.Background())
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, observability.MetricRetentionPurgedTotal)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == observability.MetricRetentionPurgedTotal {
			assert.Equal(t, float64(12), mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
}

func TestPurgeJob_StartStop(t *testing.T) {
	job, events, recorder, now := setupPurgeJob(100)
	ran := make(chan struct{}, 1)
	events.On("DeleteExpired", mock.Anything, now, 100).
		Run(func(mock.Arguments) {
			select {
			case ran <- struct{}{}:
			default:
			}
		}).
		Return(int64(0), nil)
	recorder.On("Record", mock.Anything).Return(nil).Maybe()

	require.NoError(t, job.Start())
	assert.ErrorIs(t, job.Start(), ErrAlreadyRunning)

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("purge did not run on start")
	}

	require.NoError(t, job.Stop(2*time.Second))
	assert.NoError(t, job.Stop(time.Second))
}

func TestNewPurgeJob_Defaults(t *testing.T) {
	job := NewPurgeJob(new(mocks.EventRepository), new(mocks.Recorder), nil, zap.NewNop(), Config{})

	assert.Equal(t, DefaultConfig(), job.config)
}
