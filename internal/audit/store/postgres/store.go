// Package postgres persists audit entries and security alerts in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE audit_logs (
//	    id            UUID PRIMARY KEY,
//	    level         TEXT        NOT NULL,
//	    action        TEXT        NOT NULL,
//	    resource      TEXT        NOT NULL,
//	    member_id     TEXT,
//	    tenant_id     TEXT,
//	    ip_address    TEXT,
//	    user_agent    TEXT,
//	    metadata      JSONB,
//	    session_id    TEXT,
//	    request_id    TEXT,
//	    success       BOOLEAN     NOT NULL,
//	    error_message TEXT,
//	    created_at    TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX audit_logs_member_idx  ON audit_logs (member_id, created_at);
//	CREATE INDEX audit_logs_created_idx ON audit_logs (created_at);
//
//	CREATE TABLE security_alerts (
//	    id                UUID PRIMARY KEY,
//	    event_type        TEXT        NOT NULL,
//	    severity          TEXT        NOT NULL,
//	    description       TEXT        NOT NULL,
//	    member_id         TEXT,
//	    tenant_id         TEXT,
//	    ip_address        TEXT,
//	    request_id        TEXT,
//	    webhook_delivered BOOLEAN     NOT NULL,
//	    webhook_error     TEXT,
//	    created_at        TIMESTAMPTZ NOT NULL
//	);
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"kopguard/internal/audit"
)

// Store implements audit.Store and audit.AlertStore over database/sql.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL and returns a store over the connection.
func Open(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	id := entry.ID
	if id == "" {
		id = uuid.NewString()
	}

	var metadata []byte
	if entry.Metadata != nil {
		var err error
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, level, action, resource, member_id, tenant_id,
			ip_address, user_agent, metadata, session_id, request_id,
			success, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id, entry.Level, entry.Action, entry.Resource,
		nullable(entry.MemberID), nullable(entry.TenantID),
		nullable(entry.IPAddress), nullable(entry.UserAgent),
		metadata, nullable(entry.SessionID), nullable(entry.RequestID),
		entry.Success, nullable(entry.ErrorMessage), entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListByMember(ctx context.Context, memberID string, limit int) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, level, action, resource, member_id, tenant_id,
		       ip_address, user_agent, metadata, session_id, request_id,
		       success, error_message, created_at
		FROM audit_logs
		WHERE member_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		memberID, normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, level, action, resource, member_id, tenant_id,
		       ip_address, user_agent, metadata, session_id, request_id,
		       success, error_message, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired audit entries: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) AppendAlert(ctx context.Context, alert audit.Alert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO security_alerts (
			id, event_type, severity, description, member_id, tenant_id,
			ip_address, request_id, webhook_delivered, webhook_error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		alert.ID, alert.EventType, alert.Severity, alert.Description,
		nullable(alert.MemberID), nullable(alert.TenantID),
		nullable(alert.IPAddress), nullable(alert.RequestID),
		alert.WebhookDelivered, nullable(alert.WebhookError), alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert security alert: %w", err)
	}
	return nil
}

func (s *Store) ListAlerts(ctx context.Context, limit int) ([]audit.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, severity, description, member_id, tenant_id,
		       ip_address, request_id, webhook_delivered, webhook_error, created_at
		FROM security_alerts
		ORDER BY created_at DESC
		LIMIT $1`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query security alerts: %w", err)
	}
	defer rows.Close()

	var alerts []audit.Alert
	for rows.Next() {
		var a audit.Alert
		var memberID, tenantID, ipAddress, requestID, webhookError sql.NullString
		if err := rows.Scan(
			&a.ID, &a.EventType, &a.Severity, &a.Description,
			&memberID, &tenantID, &ipAddress, &requestID,
			&a.WebhookDelivered, &webhookError, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan security alert: %w", err)
		}
		a.MemberID = memberID.String
		a.TenantID = tenantID.String
		a.IPAddress = ipAddress.String
		a.RequestID = requestID.String
		a.WebhookError = webhookError.String
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var memberID, tenantID, ipAddress, userAgent, sessionID, requestID, errorMessage sql.NullString
		var metadata []byte
		if err := rows.Scan(
			&e.ID, &e.Level, &e.Action, &e.Resource, &memberID, &tenantID,
			&ipAddress, &userAgent, &metadata, &sessionID, &requestID,
			&e.Success, &errorMessage, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.MemberID = memberID.String
		e.TenantID = tenantID.String
		e.IPAddress = ipAddress.String
		e.UserAgent = userAgent.String
		e.SessionID = sessionID.String
		e.RequestID = requestID.String
		e.ErrorMessage = errorMessage.String
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
