// Package audit records every security-relevant and business-relevant event
// to a durable append-only store, with field-level redaction and escalation
// for critical events. Audit failures never propagate to callers: a business
// operation must not fail because its audit row could not be written.
package audit

import (
	"time"
)

// Level classifies an audit entry for querying and log-pipeline routing.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Severity grades security events. Critical events additionally trigger
// alerting.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Level maps a severity onto the audit entry level.
func (s Severity) Level() Level {
	switch s {
	case SeverityCritical, SeverityHigh:
		return LevelError
	case SeverityMedium:
		return LevelWarn
	default:
		return LevelInfo
	}
}

// EventType names a class of security event.
type EventType string

const (
	EventPermissionDenied   EventType = "permission_denied"
	EventSystemError        EventType = "system_error"
	EventSuspiciousActivity EventType = "suspicious_activity"
	EventAuthFailure        EventType = "auth_failure"
	EventRateLimitExceeded  EventType = "rate_limit_exceeded"
)

// Entry is one immutable audit row. Metadata is redacted before persistence;
// entries are deleted only by the retention sweep.
type Entry struct {
	ID           string         `json:"id,omitempty"`
	Level        Level          `json:"level"`
	Action       string         `json:"action"`
	Resource     string         `json:"resource"`
	MemberID     string         `json:"member_id,omitempty"`
	TenantID     string         `json:"tenant_id,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	SessionID    string         `json:"session_id,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// SecurityEvent is a domain-level security occurrence reported by other
// modules (permission denials, rate-limit rejections, lockouts).
type SecurityEvent struct {
	Type        EventType
	Severity    Severity
	Description string
	MemberID    string
	TenantID    string
	IPAddress   string
	UserAgent   string
	Metadata    map[string]any
}

// Alert is the denormalized projection of a critical security event plus
// webhook delivery metadata. Alerts are kept for incident review and are not
// subject to the retention sweep.
type Alert struct {
	ID               string    `json:"id"`
	EventType        EventType `json:"event_type"`
	Severity         Severity  `json:"severity"`
	Description      string    `json:"description"`
	MemberID         string    `json:"member_id,omitempty"`
	TenantID         string    `json:"tenant_id,omitempty"`
	IPAddress        string    `json:"ip_address,omitempty"`
	RequestID        string    `json:"request_id,omitempty"`
	WebhookDelivered bool      `json:"webhook_delivered"`
	WebhookError     string    `json:"webhook_error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// AuthAttempt describes a login, logout, refresh, or registration attempt.
type AuthAttempt struct {
	Type         string // login, logout, refresh, register
	MemberID     string
	TenantID     string
	Success      bool
	ErrorMessage string
	Metadata     map[string]any
}

// FinancialTransaction describes a savings or payment operation.
type FinancialTransaction struct {
	Action        string // deposit, withdrawal, transfer, payment
	MemberID      string
	TenantID      string
	TransactionID string
	Amount        int64 // rupiah, no fractional unit
	Success       bool
	ErrorMessage  string
	Metadata      map[string]any
}

// AdminAction describes a tenant-administration operation.
type AdminAction struct {
	Action       string
	AdminID      string
	TenantID     string
	TargetID     string
	Success      bool
	ErrorMessage string
	Metadata     map[string]any
}

// DataAccess describes a read of member-scoped data worth auditing.
type DataAccess struct {
	Action     string // read, export, list
	MemberID   string
	TenantID   string
	Resource   string
	ResourceID string
	Metadata   map[string]any
}
