// Package middleware applies rate limits to HTTP routes by endpoint class.
package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"kopguard/internal/platform/config"
	"kopguard/internal/ratelimit/models"
	"kopguard/internal/ratelimit/service"
	dErrors "kopguard/pkg/domainerrors"
	"kopguard/pkg/platform/httputil"
	"kopguard/pkg/requestcontext"
)

// Middleware derives a key per endpoint class and enforces the configured
// rule for it.
type Middleware struct {
	limiter  *service.Service
	limits   config.RateLimits
	logger   *slog.Logger
	disabled bool
}

// Option configures the middleware.
type Option func(*Middleware)

// WithDisabled turns rate limiting off entirely (demo and test runs).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) { m.disabled = disabled }
}

func New(limiter *service.Service, limits config.RateLimits, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		limits:  limits,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit enforces the class's rule on every request passing through.
// X-RateLimit headers are attached regardless of outcome.
func (m *Middleware) Limit(class models.Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := m.deriveKey(class, r)
			result := m.limiter.CheckLimit(ctx, class, key, m.RuleFor(class))

			addRateLimitHeaders(w, result)

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RuleFor resolves the configured rule for a class. Unknown classes get the
// general rule.
func (m *Middleware) RuleFor(class models.Class) models.Rule {
	var rule config.LimitRule
	switch class {
	case models.ClassAuth:
		rule = m.limits.Auth
	case models.ClassAdmin:
		rule = m.limits.Admin
	case models.ClassUpload:
		rule = m.limits.Upload
	default:
		rule = m.limits.General
	}
	return models.Rule{MaxRequests: rule.MaxRequests, Window: rule.Window}
}

func (m *Middleware) deriveKey(class models.Class, r *http.Request) string {
	ctx := r.Context()
	ip := requestcontext.ClientIP(ctx)

	switch class {
	case models.ClassAuth:
		return models.AuthKey(ip)
	case models.ClassAdmin:
		return models.AdminKey(ip, requestcontext.UserAgent(ctx))
	case models.ClassUpload:
		return models.UploadKey(ip, r.URL.Path)
	default:
		return models.GeneralKey(ip)
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	if !result.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	}
}
