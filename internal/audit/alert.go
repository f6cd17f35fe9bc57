package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	auditmetrics "kopguard/internal/audit/metrics"
	"kopguard/pkg/requestcontext"
)

// AlertProducer fans alerts out to a streaming sink (Kafka). Optional; the
// webhook and the durable alert row do not depend on it.
type AlertProducer interface {
	Produce(ctx context.Context, key string, value []byte) error
}

// WebhookAlerter escalates critical security events: console marker, a
// best-effort webhook POST, an optional stream record, and an independent
// durable security_alerts row. Fire-and-forget; no retry, no backoff, no
// delivery tracking beyond the initial attempt's outcome.
type WebhookAlerter struct {
	webhookURL string
	client     *http.Client
	alerts     AlertStore
	producer   AlertProducer
	logger     *slog.Logger
	metrics    *auditmetrics.Metrics
}

// AlerterOption configures a WebhookAlerter.
type AlerterOption func(*WebhookAlerter)

// WithAlertProducer attaches the optional streaming fan-out.
func WithAlertProducer(p AlertProducer) AlerterOption {
	return func(a *WebhookAlerter) { a.producer = p }
}

// WithAlertMetrics attaches prometheus counters.
func WithAlertMetrics(m *auditmetrics.Metrics) AlerterOption {
	return func(a *WebhookAlerter) { a.metrics = m }
}

// NewWebhookAlerter builds the alerter. An empty webhookURL skips the POST
// but still writes the durable alert row. The timeout bounds the webhook
// call so a slow endpoint cannot hold the triggering request open.
func NewWebhookAlerter(webhookURL string, timeout time.Duration, alerts AlertStore, logger *slog.Logger, opts ...AlerterOption) *WebhookAlerter {
	a := &WebhookAlerter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		alerts:     alerts,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// webhookPayload is the JSON body POSTed to the operator webhook.
type webhookPayload struct {
	AlertType   string `json:"alert_type"`
	EventType   string `json:"event_type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	MemberID    string `json:"member_id,omitempty"`
	TenantID    string `json:"tenant_id,omitempty"`
	IPAddress   string `json:"ip_address,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// SendAlert processes one critical event. Webhook and stream failures are
// logged and swallowed; the durable row is written regardless and records
// the webhook outcome.
func (a *WebhookAlerter) SendAlert(ctx context.Context, event SecurityEvent, requestID string) {
	now := requestcontext.Now(ctx)

	// Distinguishing marker so critical events stand out in plain console logs.
	a.logger.ErrorContext(ctx, "SECURITY ALERT",
		"event_type", event.Type,
		"severity", event.Severity,
		"description", event.Description,
		"member_id", event.MemberID,
		"tenant_id", event.TenantID,
		"ip_address", event.IPAddress,
		"request_id", requestID,
	)

	if a.metrics != nil {
		a.metrics.IncrementAlertsSent()
	}

	webhookErr := a.postWebhook(ctx, event, requestID, now)

	if a.producer != nil {
		a.produceStreamRecord(ctx, event, requestID, now)
	}

	alert := Alert{
		ID:               uuid.NewString(),
		EventType:        event.Type,
		Severity:         event.Severity,
		Description:      event.Description,
		MemberID:         event.MemberID,
		TenantID:         event.TenantID,
		IPAddress:        event.IPAddress,
		RequestID:        requestID,
		WebhookDelivered: a.webhookURL != "" && webhookErr == nil,
		CreatedAt:        now,
	}
	if webhookErr != nil {
		alert.WebhookError = webhookErr.Error()
	}

	if err := a.alerts.AppendAlert(ctx, alert); err != nil {
		a.logger.ErrorContext(ctx, "failed to persist security alert",
			"error", err,
			"event_type", event.Type,
			"request_id", requestID,
		)
	}
}

func (a *WebhookAlerter) postWebhook(ctx context.Context, event SecurityEvent, requestID string, now time.Time) error {
	if a.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(webhookPayload{
		AlertType:   "security_critical",
		EventType:   string(event.Type),
		Severity:    string(event.Severity),
		Description: event.Description,
		MemberID:    event.MemberID,
		TenantID:    event.TenantID,
		IPAddress:   event.IPAddress,
		RequestID:   requestID,
		Timestamp:   now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if a.metrics != nil {
			a.metrics.IncrementAlertFailures()
		}
		a.logger.WarnContext(ctx, "security alert webhook delivery failed",
			"error", err,
			"event_type", event.Type,
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		if a.metrics != nil {
			a.metrics.IncrementAlertFailures()
		}
		a.logger.WarnContext(ctx, "security alert webhook rejected",
			"status", resp.StatusCode,
			"event_type", event.Type,
		)
		return &webhookStatusError{status: resp.StatusCode}
	}
	return nil
}

func (a *WebhookAlerter) produceStreamRecord(ctx context.Context, event SecurityEvent, requestID string, now time.Time) {
	value, err := json.Marshal(map[string]any{
		"event_type":  event.Type,
		"severity":    event.Severity,
		"description": event.Description,
		"member_id":   event.MemberID,
		"tenant_id":   event.TenantID,
		"ip_address":  event.IPAddress,
		"request_id":  requestID,
		"timestamp":   now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return
	}
	if err := a.producer.Produce(ctx, requestID, value); err != nil {
		a.logger.WarnContext(ctx, "security alert stream publish failed",
			"error", err,
			"event_type", event.Type,
		)
	}
}

type webhookStatusError struct {
	status int
}

func (e *webhookStatusError) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.status)
}
