package audit_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kopguard/internal/audit"
	"kopguard/internal/audit/store/memory"
	"kopguard/pkg/requestcontext"
)

const testRetentionDays = 90

type LoggerSuite struct {
	suite.Suite
	store  *memory.InMemoryStore
	alerts *memory.InMemoryAlertStore
	logger *audit.Logger
	ctx    context.Context
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerSuite))
}

func (s *LoggerSuite) SetupTest() {
	s.store = memory.NewInMemoryStore()
	s.alerts = memory.NewInMemoryAlertStore()
	slogger := slog.New(slog.DiscardHandler)
	alerter := audit.NewWebhookAlerter("", time.Second, s.alerts, slogger)
	s.logger = audit.NewLogger(s.store, slogger,
		[]string{"password", "nik"}, testRetentionDays,
		audit.WithAlerter(alerter),
	)
	s.ctx = requestcontext.WithRequestID(context.Background(), "req-test")
}

func (s *LoggerSuite) entries() []audit.Entry {
	entries, err := s.store.ListRecent(s.ctx, 0)
	s.Require().NoError(err)
	return entries
}

func (s *LoggerSuite) byAction(entries []audit.Entry, action string) audit.Entry {
	for _, e := range entries {
		if e.Action == action {
			return e
		}
	}
	s.Require().Failf("entry not found", "no entry with action %q", action)
	return audit.Entry{}
}

func (s *LoggerSuite) TestLogStampsAndRedacts() {
	s.logger.Log(s.ctx, audit.Entry{
		Level:    audit.LevelInfo,
		Action:   "financial_deposit",
		Resource: "transaction",
		MemberID: "m-1",
		Metadata: map[string]any{
			"password": "x",
			"nested":   map[string]any{"nik": "123", "other": "y"},
		},
		Success: true,
	})

	entries := s.entries()
	s.Require().Len(entries, 1)
	e := entries[0]
	s.False(e.Timestamp.IsZero())
	s.Equal("req-test", e.RequestID)
	s.Equal(audit.RedactionMarker, e.Metadata["password"])
	nested := e.Metadata["nested"].(map[string]any)
	s.Equal(audit.RedactionMarker, nested["nik"])
	s.Equal("y", nested["other"])
}

func (s *LoggerSuite) TestSeverityMapping() {
	cases := []struct {
		severity audit.Severity
		level    audit.Level
		success  bool
	}{
		{audit.SeverityLow, audit.LevelInfo, true},
		{audit.SeverityMedium, audit.LevelWarn, true},
		{audit.SeverityHigh, audit.LevelError, false},
		{audit.SeverityCritical, audit.LevelError, false},
	}

	for _, tc := range cases {
		s.store.Clear()
		s.logger.LogSecurityEvent(s.ctx, audit.SecurityEvent{
			Type:     audit.EventSuspiciousActivity,
			Severity: tc.severity,
		})
		entries := s.entries()
		s.Require().Len(entries, 1, "severity %s", tc.severity)
		s.Equal(tc.level, entries[0].Level, "severity %s", tc.severity)
		s.Equal(tc.success, entries[0].Success, "severity %s", tc.severity)
	}
}

func (s *LoggerSuite) TestCriticalEventWritesAlertRow() {
	s.logger.LogSecurityEvent(s.ctx, audit.SecurityEvent{
		Type:        audit.EventSuspiciousActivity,
		Severity:    audit.SeverityCritical,
		Description: "sql injection attempt",
		IPAddress:   "203.0.113.7",
	})

	s.Require().Len(s.entries(), 1)
	s.Equal(audit.LevelError, s.entries()[0].Level)

	alerts, err := s.alerts.ListAlerts(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(alerts, 1)
	s.Equal(audit.EventSuspiciousActivity, alerts[0].EventType)
	s.Equal("req-test", alerts[0].RequestID)
}

func (s *LoggerSuite) TestNonCriticalEventDoesNotAlert() {
	s.logger.LogSecurityEvent(s.ctx, audit.SecurityEvent{
		Type:     audit.EventPermissionDenied,
		Severity: audit.SeverityLow,
	})

	alerts, err := s.alerts.ListAlerts(s.ctx, 0)
	s.Require().NoError(err)
	s.Empty(alerts)
}

func (s *LoggerSuite) TestFailedAuthProducesTwoRows() {
	s.logger.LogAuth(s.ctx, audit.AuthAttempt{
		Type:         "login",
		MemberID:     "m-1",
		Success:      false,
		ErrorMessage: "invalid password",
	})

	entries := s.entries()
	s.Require().Len(entries, 2)

	attempt := s.byAction(entries, "auth_login")
	event := s.byAction(entries, string(audit.EventAuthFailure))
	s.False(attempt.Success)

	// The two rows correlate by request ID.
	s.Equal("req-test", attempt.RequestID)
	s.Equal("req-test", event.RequestID)
}

func (s *LoggerSuite) TestSuccessfulAuthProducesOneRow() {
	s.logger.LogAuth(s.ctx, audit.AuthAttempt{Type: "login", MemberID: "m-1", Success: true})
	s.Require().Len(s.entries(), 1)
	s.True(s.entries()[0].Success)
}

func (s *LoggerSuite) TestWrapperNaming() {
	s.logger.LogFinancialTransaction(s.ctx, audit.FinancialTransaction{
		Action: "deposit", MemberID: "m-1", TransactionID: "tx-1", Amount: 50000, Success: true,
	})
	s.logger.LogAdminAction(s.ctx, audit.AdminAction{
		Action: "update_member", AdminID: "a-1", TargetID: "m-2", Success: true,
	})
	s.logger.LogDataAccess(s.ctx, audit.DataAccess{
		Action: "export", MemberID: "m-1", Resource: "savings_account", ResourceID: "sa-1",
	})

	entries := s.entries()
	s.Require().Len(entries, 3)
	deposit := s.byAction(entries, "financial_deposit")
	s.Equal(int64(50000), deposit.Metadata["amount"])
	s.byAction(entries, "admin_update_member")
	s.byAction(entries, "data_export")
}

func (s *LoggerSuite) TestCleanupOldLogs() {
	old := time.Now().Add(-time.Duration(testRetentionDays+1) * 24 * time.Hour)
	s.logger.Log(s.ctx, audit.Entry{Action: "old", Resource: "x", Timestamp: old})
	s.logger.Log(s.ctx, audit.Entry{Action: "fresh", Resource: "x"})

	deleted, err := s.logger.CleanupOldLogs(context.Background())
	s.Require().NoError(err)
	s.Equal(int64(1), deleted)

	entries := s.entries()
	s.Require().Len(entries, 1)
	s.Equal("fresh", entries[0].Action)
}

func (s *LoggerSuite) TestDisabledLoggerWritesNothing() {
	disabled := audit.NewLogger(s.store, slog.New(slog.DiscardHandler), nil, testRetentionDays,
		audit.WithEnabled(false))
	disabled.Log(s.ctx, audit.Entry{Action: "x", Resource: "y"})
	s.Empty(s.entries())
}

// failingStore always errors on Append, simulating a store outage.
type failingStore struct {
	memory.InMemoryStore
}

func (f *failingStore) Append(context.Context, audit.Entry) error {
	return errors.New("store down")
}

func TestLogDegradesToConsoleOnWriteFailure(t *testing.T) {
	logger := audit.NewLogger(&failingStore{}, slog.New(slog.DiscardHandler), nil, testRetentionDays)

	// Must not panic or propagate the store error.
	logger.Log(context.Background(), audit.Entry{Action: "x", Resource: "y"})
}

func TestCriticalAlertSurvivesWebhookFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	store := memory.NewInMemoryStore()
	alerts := memory.NewInMemoryAlertStore()
	slogger := slog.New(slog.DiscardHandler)
	alerter := audit.NewWebhookAlerter(server.URL, time.Second, alerts, slogger)
	logger := audit.NewLogger(store, slogger, nil, testRetentionDays, audit.WithAlerter(alerter))

	logger.LogSecurityEvent(context.Background(), audit.SecurityEvent{
		Type:     audit.EventSystemError,
		Severity: audit.SeverityCritical,
	})

	if calls.Load() != 1 {
		t.Fatalf("expected exactly one webhook attempt, got %d", calls.Load())
	}

	entries, err := store.ListRecent(context.Background(), 0)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d (err %v)", len(entries), err)
	}

	got, err := alerts.ListAlerts(context.Background(), 0)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected 1 alert row, got %d (err %v)", len(got), err)
	}
	if got[0].WebhookDelivered {
		t.Fatal("alert should record failed webhook delivery")
	}
	if got[0].WebhookError == "" {
		t.Fatal("alert should carry the webhook error")
	}
}
