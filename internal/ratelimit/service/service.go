// Package service enforces fixed-window rate limits over a counter store.
// Store faults fail open: a broken limiter must never take legitimate
// traffic down with it.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kopguard/internal/audit"
	rlmetrics "kopguard/internal/ratelimit/metrics"
	"kopguard/internal/ratelimit/models"
	"kopguard/pkg/requestcontext"
)

// sweepInterval is how often expired counter windows are reclaimed.
const sweepInterval = 5 * time.Minute

// CounterStore is the fixed-window counter backend. The memory and redis
// stores implement it.
type CounterStore interface {
	// Increment bumps the counter for key and returns the total hits in
	// the live window plus the window's reset time.
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
	// Peek reads the live counter without mutating it. The bool reports
	// whether a live window exists.
	Peek(ctx context.Context, key string) (int64, time.Time, bool, error)
	// Reset drops the counter for key unconditionally.
	Reset(ctx context.Context, key string) error
	// Sweep reclaims expired windows and reports how many were removed.
	Sweep(ctx context.Context) (int, error)
}

// SecuritySink receives security events for rejected requests. The audit
// logger satisfies it.
type SecuritySink interface {
	LogSecurityEvent(ctx context.Context, event audit.SecurityEvent)
}

// Service answers rate limit checks against a counter store.
type Service struct {
	store   CounterStore
	audits  SecuritySink
	logger  *slog.Logger
	metrics *rlmetrics.Metrics
	tracer  trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics attaches prometheus counters.
func WithMetrics(m *rlmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store CounterStore, audits SecuritySink, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		audits: audits,
		logger: logger,
		tracer: otel.Tracer("kopguard/ratelimit"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckLimit records a hit against key and reports whether the request is
// within rule. The counter keeps incrementing past the limit, so TotalHits
// on a rejected request exceeds MaxRequests. Store errors fail open with a
// full-remaining result.
func (s *Service) CheckLimit(ctx context.Context, class models.Class, key string, rule models.Rule) models.Result {
	ctx, span := s.tracer.Start(ctx, "ratelimit.CheckLimit",
		trace.WithAttributes(
			attribute.String("class", class.String()),
		))
	defer span.End()

	hits, resetAt, err := s.store.Increment(ctx, key, rule.Window)
	if err != nil {
		s.logger.ErrorContext(ctx, "rate limit store failed, allowing request",
			"key", key,
			"class", class,
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.IncrementStoreFaults()
		}
		return failOpen(rule)
	}

	result := models.Result{
		Allowed:   hits <= int64(rule.MaxRequests),
		Limit:     rule.MaxRequests,
		Remaining: remaining(rule.MaxRequests, hits),
		ResetAt:   resetAt,
		TotalHits: hits,
	}
	if !result.Allowed {
		result.RetryAfter = retryAfter(resetAt)
		s.reportRejection(ctx, class, key, result)
	}
	return result
}

// GetStatus is a pure peek at the counter for key: no increment, no expiry
// handling. Absent or expired windows report a fresh window's worth of
// headroom.
func (s *Service) GetStatus(ctx context.Context, key string, rule models.Rule) (models.Result, error) {
	hits, resetAt, found, err := s.store.Peek(ctx, key)
	if err != nil {
		return models.Result{}, err
	}
	if !found {
		return models.Result{
			Allowed:   true,
			Limit:     rule.MaxRequests,
			Remaining: rule.MaxRequests,
		}, nil
	}
	return models.Result{
		Allowed:   hits <= int64(rule.MaxRequests),
		Limit:     rule.MaxRequests,
		Remaining: remaining(rule.MaxRequests, hits),
		ResetAt:   resetAt,
		TotalHits: hits,
	}, nil
}

// Reset clears the counter for key unconditionally.
func (s *Service) Reset(ctx context.Context, key string) error {
	return s.store.Reset(ctx, key)
}

// RunSweeper reclaims expired windows every five minutes until ctx is
// cancelled. Run it in its own goroutine.
func (s *Service) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := s.store.Sweep(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "rate limit sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				s.logger.DebugContext(ctx, "swept expired rate limit windows", "removed", removed)
				if s.metrics != nil {
					s.metrics.AddSweptKeys(removed)
				}
			}
		}
	}
}

func (s *Service) reportRejection(ctx context.Context, class models.Class, key string, result models.Result) {
	if s.metrics != nil {
		s.metrics.IncrementRejections(class.String())
	}
	if s.audits == nil {
		return
	}
	s.audits.LogSecurityEvent(ctx, audit.SecurityEvent{
		Type:        audit.EventSuspiciousActivity,
		Severity:    audit.SeverityMedium,
		Description: "rate limit exceeded",
		IPAddress:   requestcontext.ClientIP(ctx),
		UserAgent:   requestcontext.UserAgent(ctx),
		Metadata: map[string]any{
			"key":   key,
			"class": class.String(),
			"hits":  result.TotalHits,
			"limit": result.Limit,
		},
	})
}

// failOpen is the degraded result when the counter store is unreachable.
func failOpen(rule models.Rule) models.Result {
	return models.Result{
		Allowed:   true,
		Limit:     rule.MaxRequests,
		Remaining: rule.MaxRequests,
	}
}

func remaining(limit int, hits int64) int {
	r := limit - int(hits)
	if r < 0 {
		return 0
	}
	return r
}

func retryAfter(resetAt time.Time) int {
	secs := int(time.Until(resetAt).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}
