package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitlabs/max-visibility/internal/config"
	"github.com/splitlabs/max-visibility/internal/metrics"
	"github.com/splitlabs/max-visibility/internal/model"
)

func TestNewChecker_Interval(t *testing.T) {
	c := NewChecker(newTestCollector(&mockRuns{}), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})
	assert.Equal(t, defaultCheckInterval, c.interval)

	c = NewChecker(newTestCollector(&mockRuns{}), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{CheckIntervalSecs: 30})
	assert.Equal(t, 30*time.Second, c.interval)
}

func TestChecker_RunChecksImmediatelyAndStops(t *testing.T) {
	st := &mockRuns{}
	cfg := config.MonitoringConfig{CheckIntervalSecs: 3600, LookbackWindowHours: 24}
	checker := NewChecker(newTestCollector(st, "ws-1"), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(st.calls()) > 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_RunCancelledBeforeStart(t *testing.T) {
	st := &mockRuns{}
	checker := NewChecker(newTestCollector(st, "ws-1"), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
	assert.Empty(t, st.calls())
}

func TestChecker_CheckSendsAlerts(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	cfg := config.MonitoringConfig{
		WebhookURL:           ts.URL,
		LookbackWindowHours:  24,
		FailureRateThreshold: 0.5,
		StaleAfterHours:      24,
	}
	st := &mockRuns{runs: map[string][]model.AssessmentRun{
		"ws-1": {{ID: "1", Status: model.RunStatusFailed, CreatedAt: testNow.Add(-time.Hour)}},
	}}
	checker := NewChecker(newTestCollector(st, "ws-1"), NewAlerter(cfg), cfg)

	before := testutil.ToFloat64(metrics.MonitoringAlerts.WithLabelValues(string(AlertStaleAssessments)))
	alerts := checker.Check(context.Background())
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStaleAssessments, alerts[0].Type)
	assert.Equal(t, int32(1), received.Load())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.MonitoringAlerts.WithLabelValues(string(AlertStaleAssessments))))
}

func TestChecker_CheckCollectError(t *testing.T) {
	cfg := config.MonitoringConfig{LookbackWindowHours: 24}
	st := &mockRuns{listErr: assert.AnError}
	checker := NewChecker(newTestCollector(st, "ws-1"), NewAlerter(cfg), cfg)

	assert.Nil(t, checker.Check(context.Background()))
}
