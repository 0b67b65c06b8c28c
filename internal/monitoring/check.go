package monitoring

import (
	"context"

	"go.uber.org/zap"
)

// Report is the result of one health check.
type Report struct {
	Snapshot *Snapshot `json:"snapshot" yaml:"snapshot"`
	Alerts   []Alert   `json:"alerts,omitempty" yaml:"alerts,omitempty"`
	Sent     int       `json:"alerts_sent" yaml:"alerts_sent"`
}

// Check collects a snapshot and, when alerter is non-nil, evaluates and sends
// alerts.
func Check(ctx context.Context, collector *Collector, alerter *Alerter) (*Report, error) {
	snap, err := collector.Collect(ctx)
	if err != nil {
		return nil, err
	}
	report := &Report{Snapshot: snap}
	if alerter == nil {
		return report, nil
	}

	report.Alerts = alerter.Evaluate(snap)
	if len(report.Alerts) == 0 {
		zap.L().Debug("monitoring: no alerts triggered")
		return report, nil
	}
	report.Sent = alerter.SendAlerts(ctx, report.Alerts)
	zap.L().Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(report.Alerts)),
		zap.Int("alerts_sent", report.Sent),
	)
	return report, nil
}
