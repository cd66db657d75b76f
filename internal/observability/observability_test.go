package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		enabled zapcore.Level
		wantErr bool
	}{
		{name: "json info", level: "info", format: "json", enabled: zapcore.InfoLevel},
		{name: "text debug", level: "debug", format: "text", enabled: zapcore.DebugLevel},
		{name: "upper case level", level: "WARN", format: "json", enabled: zapcore.WarnLevel},
		{name: "invalid level", level: "loud", format: "json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			if tt.enabled > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.enabled-1))
			}
		})
	}
}

func TestWithRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	var got *zap.Logger
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = WithRequest(r.Context(), base)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	got.Info("hello")
	require.Equal(t, 1, logs.Len())
	assert.NotEmpty(t, logs.All()[0].ContextMap()["request_id"])

	// Without a request id the logger is returned unchanged
	assert.Same(t, base, WithRequest(context.Background(), base))
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	m.ObserveIngest("stored", "")
	m.ObserveWebhook("booking", ResultSuccess)
	m.ObserveGeoLookup(ResultTimeout)
	m.ObservePersist(ResultSuccess, 20*time.Millisecond)
	m.AddRetentionPurged(3)
	m.ObservePrivacyRequest("export", ResultSuccess)

	families, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]*dto.MetricFamily{}
	for _, family := range families {
		found[family.GetName()] = family
	}
	for _, name := range []string{
		MetricIngestEventsTotal,
		MetricWebhookRequestsTotal,
		MetricGeoLookupsTotal,
		MetricPersistDuration,
		MetricRetentionPurgedTotal,
		MetricPrivacyRequestsTotal,
	} {
		assert.Contains(t, found, name)
	}

	hist := found[MetricPersistDuration].GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(1), hist.GetSampleCount())

	// Registering twice fails
	assert.Error(t, m.Register(reg))
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.ObserveIngest("skipped", "dnt")
	m.ObserveIngest("skipped", "dnt")
	m.ObserveIngest("rejected", "app_id_mismatch")
	m.AddRetentionPurged(0)
	m.AddRetentionPurged(-1)
	m.AddRetentionPurged(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ingestEvents.WithLabelValues("skipped", "dnt")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestEvents.WithLabelValues("rejected", "app_id_mismatch")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.retentionPurged))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveIngest("stored", "")
		m.ObserveWebhook("booking", ResultFailure)
		m.ObserveGeoLookup(ResultSuccess)
		m.ObservePersist(ResultFailure, time.Second)
		m.AddRetentionPurged(1)
		m.ObservePrivacyRequest("delete", ResultSuccess)
	})
}
