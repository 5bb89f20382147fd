package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/splitlabs/max-visibility/internal/config"
	"github.com/splitlabs/max-visibility/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailureRate   AlertType = "run_failure_rate"
	AlertStaleAssessments AlertType = "stale_assessments"
)

// minFinishedForRate is the number of finished runs needed before a failure
// rate is meaningful.
const minFinishedForRate = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type        AlertType      `json:"type"`
	Severity    string         `json:"severity"`
	WorkspaceID string         `json:"workspace_id"`
	Message     string         `json:"message"`
	Details     map[string]any `json:"details,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Alerter evaluates a HealthReport against configured thresholds and sends
// alerts via webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	retry  resilience.RetryConfig
}

// NewAlerter creates a new Alerter with the given monitoring config.
// Webhook deliveries that fail with a 5xx or a network error are retried.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
			OnRetry:        resilience.RetryLogger("alert_webhook"),
		},
	}
}

// Evaluate checks every workspace in the report and returns any alerts.
func (a *Alerter) Evaluate(report *HealthReport) []Alert {
	var alerts []Alert
	now := report.CollectedAt

	for _, h := range report.Workspaces {
		finished := h.Completed + h.Failed
		if finished >= minFinishedForRate && h.FailRate > a.cfg.FailureRateThreshold {
			alerts = append(alerts, Alert{
				Type:        AlertRunFailureRate,
				Severity:    "high",
				WorkspaceID: h.WorkspaceID,
				Message: fmt.Sprintf(
					"Assessment failure rate %.1f%% exceeds threshold %.1f%% for %s (%d failed / %d finished in last %dh)",
					h.FailRate*100, a.cfg.FailureRateThreshold*100,
					h.WorkspaceID, h.Failed, finished, report.LookbackHours,
				),
				Details: map[string]any{
					"failure_rate": h.FailRate,
					"threshold":    a.cfg.FailureRateThreshold,
					"failed":       h.Failed,
					"finished":     finished,
				},
				Timestamp: now,
			})
		}

		if a.cfg.StaleAfterHours <= 0 {
			continue
		}
		staleAfter := time.Duration(a.cfg.StaleAfterHours) * time.Hour
		if h.LastCompletedAt == nil || now.Sub(*h.LastCompletedAt) > staleAfter {
			msg := fmt.Sprintf("No completed assessment for %s in the last %dh", h.WorkspaceID, a.cfg.StaleAfterHours)
			details := map[string]any{"stale_after_hours": a.cfg.StaleAfterHours}
			if h.LastCompletedAt != nil {
				details["last_completed_at"] = h.LastCompletedAt.Format(time.RFC3339)
			}
			alerts = append(alerts, Alert{
				Type:        AlertStaleAssessments,
				Severity:    "medium",
				WorkspaceID: h.WorkspaceID,
				Message:     msg,
				Details:     details,
				Timestamp:   now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		err := resilience.Do(ctx, a.retry, func(ctx context.Context) error {
			return a.sendWebhook(ctx, alert)
		})
		if err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.String("workspace_id", alert.WorkspaceID),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("workspace_id", alert.WorkspaceID),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode >= 500:
		return resilience.NewTransientError(eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
