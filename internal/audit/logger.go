package audit

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	auditmetrics "kopguard/internal/audit/metrics"
	"kopguard/pkg/requestcontext"
)

// Alerter escalates critical security events. The webhook notifier satisfies
// it; tests use a recording fake.
type Alerter interface {
	SendAlert(ctx context.Context, event SecurityEvent, requestID string)
}

// Logger is the audit entry point. All writes are single-attempt: a failed
// store write degrades to structured console output and the triggering
// operation proceeds.
type Logger struct {
	store         Store
	alerter       Alerter
	logger        *slog.Logger
	metrics       *auditmetrics.Metrics
	tracer        trace.Tracer
	enabled       bool
	production    bool
	sensitiveKeys []string
	retention     time.Duration
}

// Option configures a Logger.
type Option func(*Logger)

// WithAlerter attaches the critical-event escalation path.
func WithAlerter(alerter Alerter) Option {
	return func(l *Logger) { l.alerter = alerter }
}

// WithMetrics attaches prometheus counters.
func WithMetrics(m *auditmetrics.Metrics) Option {
	return func(l *Logger) { l.metrics = m }
}

// WithProductionMode disables the developer console echo.
func WithProductionMode(production bool) Option {
	return func(l *Logger) { l.production = production }
}

// WithEnabled toggles persistence entirely (used by tests and demo mode).
func WithEnabled(enabled bool) Option {
	return func(l *Logger) { l.enabled = enabled }
}

// NewLogger builds an audit logger. sensitiveKeys is the redaction list;
// retentionDays bounds CleanupOldLogs.
func NewLogger(store Store, logger *slog.Logger, sensitiveKeys []string, retentionDays int, opts ...Option) *Logger {
	l := &Logger{
		store:         store,
		logger:        logger,
		tracer:        otel.Tracer("kopguard/audit"),
		enabled:       true,
		sensitiveKeys: sensitiveKeys,
		retention:     time.Duration(retentionDays) * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log stamps, redacts, and writes one audit entry. Never returns an error:
// on write failure the entry is emitted to the structured logger instead.
func (l *Logger) Log(ctx context.Context, entry Entry) {
	if !l.enabled {
		return
	}

	ctx, span := l.tracer.Start(ctx, "audit.Log")
	defer span.End()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if entry.RequestID == "" {
		entry.RequestID = requestcontext.RequestID(ctx)
	}
	if entry.SessionID == "" {
		entry.SessionID = requestcontext.SessionID(ctx)
	}
	entry.Metadata = Redact(entry.Metadata, l.sensitiveKeys)

	if err := l.store.Append(ctx, entry); err != nil {
		// Console is the fallback channel. The event is not queued or
		// retried, so audit loss is possible under a persistent outage.
		if l.metrics != nil {
			l.metrics.IncrementWriteFailures()
		}
		l.logger.ErrorContext(ctx, "audit write failed, entry degraded to console",
			"error", err,
			"action", entry.Action,
			"resource", entry.Resource,
			"member_id", entry.MemberID,
			"request_id", entry.RequestID,
		)
		return
	}

	if l.metrics != nil {
		l.metrics.IncrementWritten()
	}

	if !l.production {
		l.logger.DebugContext(ctx, "audit",
			"level", entry.Level,
			"action", entry.Action,
			"resource", entry.Resource,
			"member_id", entry.MemberID,
			"success", entry.Success,
		)
	}
}

// LogSecurityEvent records a security event as an audit entry and escalates
// critical events to the alert channel.
func (l *Logger) LogSecurityEvent(ctx context.Context, event SecurityEvent) {
	severity := event.Severity

	metadata := map[string]any{
		"severity":    string(severity),
		"description": event.Description,
	}
	for k, v := range event.Metadata {
		metadata[k] = v
	}

	l.Log(ctx, Entry{
		Level:     severity.Level(),
		Action:    string(event.Type),
		Resource:  "security",
		MemberID:  event.MemberID,
		TenantID:  event.TenantID,
		IPAddress: event.IPAddress,
		UserAgent: event.UserAgent,
		Metadata:  metadata,
		Success:   severity == SeverityLow || severity == SeverityMedium,
	})

	if severity == SeverityCritical && l.alerter != nil {
		l.alerter.SendAlert(ctx, event, requestcontext.RequestID(ctx))
	}
}

// LogAuth records an authentication attempt. Failed attempts additionally
// raise an auth_failure security event; the two rows share the request ID
// for correlation.
func (l *Logger) LogAuth(ctx context.Context, attempt AuthAttempt) {
	level := LevelInfo
	if !attempt.Success {
		level = LevelWarn
	}

	l.Log(ctx, Entry{
		Level:        level,
		Action:       "auth_" + attempt.Type,
		Resource:     "auth",
		MemberID:     attempt.MemberID,
		TenantID:     attempt.TenantID,
		IPAddress:    requestcontext.ClientIP(ctx),
		UserAgent:    requestcontext.UserAgent(ctx),
		Metadata:     attempt.Metadata,
		Success:      attempt.Success,
		ErrorMessage: attempt.ErrorMessage,
	})

	if !attempt.Success {
		l.LogSecurityEvent(ctx, SecurityEvent{
			Type:        EventAuthFailure,
			Severity:    SeverityMedium,
			Description: "authentication failed: " + attempt.Type,
			MemberID:    attempt.MemberID,
			TenantID:    attempt.TenantID,
			IPAddress:   requestcontext.ClientIP(ctx),
			UserAgent:   requestcontext.UserAgent(ctx),
			Metadata: map[string]any{
				"auth_type": attempt.Type,
				"reason":    attempt.ErrorMessage,
			},
		})
	}
}

// LogFinancialTransaction records a savings or payment operation.
func (l *Logger) LogFinancialTransaction(ctx context.Context, tx FinancialTransaction) {
	level := LevelInfo
	if !tx.Success {
		level = LevelError
	}

	metadata := map[string]any{
		"transaction_id": tx.TransactionID,
		"amount":         tx.Amount,
	}
	for k, v := range tx.Metadata {
		metadata[k] = v
	}

	l.Log(ctx, Entry{
		Level:        level,
		Action:       "financial_" + tx.Action,
		Resource:     "transaction",
		MemberID:     tx.MemberID,
		TenantID:     tx.TenantID,
		IPAddress:    requestcontext.ClientIP(ctx),
		UserAgent:    requestcontext.UserAgent(ctx),
		Metadata:     metadata,
		Success:      tx.Success,
		ErrorMessage: tx.ErrorMessage,
	})
}

// LogAdminAction records a tenant-administration operation.
func (l *Logger) LogAdminAction(ctx context.Context, action AdminAction) {
	level := LevelInfo
	if !action.Success {
		level = LevelWarn
	}

	metadata := map[string]any{
		"target_id": action.TargetID,
	}
	for k, v := range action.Metadata {
		metadata[k] = v
	}

	l.Log(ctx, Entry{
		Level:        level,
		Action:       "admin_" + action.Action,
		Resource:     "admin",
		MemberID:     action.AdminID,
		TenantID:     action.TenantID,
		IPAddress:    requestcontext.ClientIP(ctx),
		UserAgent:    requestcontext.UserAgent(ctx),
		Metadata:     metadata,
		Success:      action.Success,
		ErrorMessage: action.ErrorMessage,
	})
}

// LogDataAccess records a read of member-scoped data.
func (l *Logger) LogDataAccess(ctx context.Context, access DataAccess) {
	metadata := map[string]any{
		"resource_id": access.ResourceID,
	}
	for k, v := range access.Metadata {
		metadata[k] = v
	}

	l.Log(ctx, Entry{
		Level:     LevelInfo,
		Action:    "data_" + access.Action,
		Resource:  access.Resource,
		MemberID:  access.MemberID,
		TenantID:  access.TenantID,
		IPAddress: requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
		Metadata:  metadata,
		Success:   true,
	})
}

// ListByMember returns a member's recent audit entries.
func (l *Logger) ListByMember(ctx context.Context, memberID string, limit int) ([]Entry, error) {
	return l.store.ListByMember(ctx, memberID, limit)
}

// ListRecent returns the most recent entries across all members.
func (l *Logger) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	return l.store.ListRecent(ctx, limit)
}

// CleanupOldLogs deletes entries older than the configured retention window.
// Invoked by an external scheduler; this package owns no timer for it.
func (l *Logger) CleanupOldLogs(ctx context.Context) (int64, error) {
	cutoff := requestcontext.Now(ctx).Add(-l.retention)
	deleted, err := l.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	l.logger.InfoContext(ctx, "audit retention sweep finished",
		"deleted", deleted,
		"cutoff", cutoff,
	)
	return deleted, nil
}
