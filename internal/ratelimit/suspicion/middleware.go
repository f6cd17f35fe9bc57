package suspicion

import (
	"context"
	"log/slog"
	"net/http"

	"kopguard/internal/audit"
	"kopguard/pkg/requestcontext"
)

// SecuritySink receives security events for suspicious requests. The audit
// logger satisfies it.
type SecuritySink interface {
	LogSecurityEvent(ctx context.Context, event audit.SecurityEvent)
}

// Scanner is the middleware form of the request heuristics. Findings are
// reported to the audit trail but never block the request; the rate limiter
// and permission gates stay the only enforcement points.
type Scanner struct {
	audits SecuritySink
	logger *slog.Logger
}

func NewScanner(audits SecuritySink, logger *slog.Logger) *Scanner {
	return &Scanner{audits: audits, logger: logger}
}

// Scan runs CheckSuspiciousActivity on every request and records a
// suspicious_activity security event when a heuristic matches.
func (s *Scanner) Scan(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if finding := CheckSuspiciousActivity(r); finding.Suspicious {
			ctx := r.Context()
			s.logger.WarnContext(ctx, "suspicious request",
				"reason", finding.Reason,
				"severity", string(finding.Severity),
				"path", r.URL.Path,
				"client_ip", requestcontext.ClientIP(ctx),
			)
			if s.audits != nil {
				s.audits.LogSecurityEvent(ctx, audit.SecurityEvent{
					Type:        audit.EventSuspiciousActivity,
					Severity:    finding.Severity,
					Description: finding.Reason,
					IPAddress:   requestcontext.ClientIP(ctx),
					UserAgent:   requestcontext.UserAgent(ctx),
					Metadata: map[string]any{
						"path":  r.URL.Path,
						"query": r.URL.RawQuery,
					},
				})
			}
		}
		next.ServeHTTP(w, r)
	})
}
