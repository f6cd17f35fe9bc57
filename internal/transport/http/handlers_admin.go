package transporthttp

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"kopguard/internal/audit"
	"kopguard/internal/permission"
	permmw "kopguard/internal/permission/middleware"
	"kopguard/internal/platform/config"
	"kopguard/internal/ratelimit/models"
	rlservice "kopguard/internal/ratelimit/service"
	dErrors "kopguard/pkg/domainerrors"
	"kopguard/pkg/platform/httputil"
)

// AdminHandler serves audit queries, the retention sweep trigger, and rate
// limit inspection.
type AdminHandler struct {
	audits  *audit.Logger
	limiter *rlservice.Service
	limits  config.RateLimits
	logger  *slog.Logger
}

func NewAdminHandler(audits *audit.Logger, limiter *rlservice.Service, limits config.RateLimits, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		audits:  audits,
		limiter: limiter,
		limits:  limits,
		logger:  logger,
	}
}

func (h *AdminHandler) register(r chi.Router, gate *permmw.Gate) {
	r.With(gate.RequirePermission(permission.PermViewAuditLogs)).
		Get("/audit/logs", h.handleListAuditLogs)
	r.With(gate.RequirePermission(permission.PermManageSystem)).
		Post("/audit/cleanup", h.handleAuditCleanup)
	r.With(gate.RequirePermission(permission.PermManageSettings)).
		Get("/ratelimit/status/{key}", h.handleRateLimitStatus)
	r.With(gate.RequirePermission(permission.PermManageSettings)).
		Delete("/ratelimit/{key}", h.handleRateLimitReset)
}

// handleListAuditLogs returns recent audit entries, optionally filtered to
// one member via ?member_id=.
func (h *AdminHandler) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}

	var (
		entries []audit.Entry
		err     error
	)
	if memberID := r.URL.Query().Get("member_id"); memberID != "" {
		entries, err = h.audits.ListByMember(ctx, memberID, limit)
	} else {
		entries, err = h.audits.ListRecent(ctx, limit)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "audit log query failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "audit log query failed"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"logs":  entries,
		"count": len(entries),
	})
}

// handleAuditCleanup runs the retention sweep and records who triggered it.
func (h *AdminHandler) handleAuditCleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	deleted, err := h.audits.CleanupOldLogs(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit cleanup failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "audit cleanup failed"))
		return
	}

	if access, ok := permmw.AccessFrom(ctx); ok {
		h.audits.LogAdminAction(ctx, audit.AdminAction{
			Action:   "audit_cleanup",
			AdminID:  access.MemberID.String(),
			TenantID: access.TenantID.String(),
			Success:  true,
			Metadata: map[string]any{"deleted": deleted},
		})
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (h *AdminHandler) handleRateLimitStatus(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	status, err := h.limiter.GetStatus(r.Context(), key, h.ruleForKey(key))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "rate limit status query failed", "key", key, "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "rate limit status query failed"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, status)
}

func (h *AdminHandler) handleRateLimitReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	if err := h.limiter.Reset(ctx, key); err != nil {
		h.logger.ErrorContext(ctx, "rate limit reset failed", "key", key, "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "rate limit reset failed"))
		return
	}

	if access, ok := permmw.AccessFrom(ctx); ok {
		h.audits.LogAdminAction(ctx, audit.AdminAction{
			Action:   "ratelimit_reset",
			AdminID:  access.MemberID.String(),
			TenantID: access.TenantID.String(),
			TargetID: key,
			Success:  true,
		})
	}

	w.WriteHeader(http.StatusNoContent)
}

// ruleForKey resolves the configured rule from the key's class prefix so the
// reported limit matches what the middleware enforces.
func (h *AdminHandler) ruleForKey(key string) models.Rule {
	class, _, _ := strings.Cut(key, ":")

	var rule config.LimitRule
	switch models.Class(class) {
	case models.ClassAuth:
		rule = h.limits.Auth
	case models.ClassAdmin:
		rule = h.limits.Admin
	case models.ClassUpload:
		rule = h.limits.Upload
	default:
		rule = h.limits.General
	}
	return models.Rule{MaxRequests: rule.MaxRequests, Window: rule.Window}
}
