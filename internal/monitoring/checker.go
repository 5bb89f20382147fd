package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/splitlabs/max-visibility/internal/config"
	"github.com/splitlabs/max-visibility/internal/metrics"
)

const defaultCheckInterval = 5 * time.Minute

// Checker evaluates run health on a fixed interval.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	lookback  int
	interval  time.Duration
	log       *zap.Logger
}

// NewChecker creates a background alert checker. A non-positive
// CheckIntervalSecs falls back to five minutes.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		lookback:  cfg.LookbackWindowHours,
		interval:  interval,
		log:       zap.L().With(zap.String("component", "monitoring.checker")),
	}
}

// Run checks once immediately, then on every tick until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	c.log.Info("monitoring: checker started",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.lookback),
		zap.Int("workspaces", len(c.collector.workspaces)),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			c.log.Info("monitoring: checker stopped")
			return
		}
		c.Check(ctx)

		select {
		case <-ctx.Done():
			c.log.Info("monitoring: checker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Check collects one health report, raises alerts and delivers them.
// Collection failures are logged and yield no alerts.
func (c *Checker) Check(ctx context.Context) []Alert {
	report, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		c.log.Error("monitoring: collect run health", zap.Error(err))
		return nil
	}

	alerts := c.alerter.Evaluate(report)
	for _, a := range alerts {
		metrics.MonitoringAlerts.WithLabelValues(string(a.Type)).Inc()
	}
	if len(alerts) == 0 {
		c.log.Debug("monitoring: all workspaces healthy", zap.Int("workspaces", len(report.Workspaces)))
		return nil
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	c.log.Info("monitoring: check complete",
		zap.Int("alerts_raised", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return alerts
}
