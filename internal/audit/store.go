package audit

import (
	"context"
	"time"
)

// Store persists audit entries. Implementations must treat entries as
// append-only; the only delete path is the retention sweep. List methods
// return entries newest first.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByMember(ctx context.Context, memberID string, limit int) ([]Entry, error)
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AlertStore persists security alerts. Alerts are exempt from the retention
// sweep by construction: the interface has no delete operation. ListAlerts
// returns alerts newest first.
type AlertStore interface {
	AppendAlert(ctx context.Context, alert Alert) error
	ListAlerts(ctx context.Context, limit int) ([]Alert, error)
}
