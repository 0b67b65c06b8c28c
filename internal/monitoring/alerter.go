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

	"github.com/sells-group/maps-enrich/internal/config"
	"github.com/sells-group/maps-enrich/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertErrorRate      AlertType = "enrich_error_rate"
	AlertSanityRate     AlertType = "sanity_rejection_rate"
	AlertSyncErrors     AlertType = "sync_errors"
	AlertDuplicatePlace AlertType = "duplicate_place_ids"
)

// minSample is the staged row count below which rate alerts stay quiet.
const minSample = 20

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type" yaml:"type"`
	Severity  string         `json:"severity" yaml:"severity"`
	Message   string         `json:"message" yaml:"message"`
	Details   map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and sends alerts
// via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.Total >= minSample && a.cfg.ErrorRateThreshold > 0 && snap.ErrorRate > a.cfg.ErrorRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertErrorRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Enrichment error rate %.1f%% exceeds threshold %.1f%% (%d errors / %d staged)",
				snap.ErrorRate*100, a.cfg.ErrorRateThreshold*100,
				snap.ByStatus[model.StatusError], snap.Total,
			),
			Details: map[string]any{
				"error_rate": snap.ErrorRate,
				"threshold":  a.cfg.ErrorRateThreshold,
				"errors":     snap.ByStatus[model.StatusError],
				"total":      snap.Total,
			},
			Timestamp: now,
		})
	}

	matched := snap.ByStatus[model.StatusEnriched] + snap.ByStatus[model.StatusSanityCheck]
	if matched >= minSample && a.cfg.SanityRateThreshold > 0 && snap.SanityRate > a.cfg.SanityRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertSanityRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Sanity check rejected %.1f%% of matches, threshold %.1f%%",
				snap.SanityRate*100, a.cfg.SanityRateThreshold*100,
			),
			Details: map[string]any{
				"sanity_rate": snap.SanityRate,
				"threshold":   a.cfg.SanityRateThreshold,
				"rejected":    snap.ByStatus[model.StatusSanityCheck],
				"matched":     matched,
			},
			Timestamp: now,
		})
	}

	if a.cfg.SyncErrorThreshold > 0 && snap.SyncErrors >= a.cfg.SyncErrorThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertSyncErrors,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d staged rows failed to sync to Salesforce (threshold %d)",
				snap.SyncErrors, a.cfg.SyncErrorThreshold,
			),
			Details: map[string]any{
				"sync_errors": snap.SyncErrors,
				"threshold":   a.cfg.SyncErrorThreshold,
			},
			Timestamp: now,
		})
	}

	if len(snap.Duplicates) > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertDuplicatePlace,
			Severity: "low",
			Message:  fmt.Sprintf("%d Google place IDs are shared by several accounts", len(snap.Duplicates)),
			Details: map[string]any{
				"top_place_id": snap.Duplicates[0].PlaceID,
				"top_count":    snap.Duplicates[0].Count,
			},
			Timestamp: now,
		})
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
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
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

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
