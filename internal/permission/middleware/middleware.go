// Package middleware wires the permission evaluator into the HTTP layer:
// session authentication, permission gates, and resource-access gates.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"kopguard/internal/permission"
	"kopguard/pkg/domain"
	dErrors "kopguard/pkg/domainerrors"
	"kopguard/pkg/platform/httputil"
	"kopguard/pkg/requestcontext"
)

// MemberDirectory resolves a member's stored role and tenant. The postgres
// directory satisfies it; tests use the in-memory directory.
type MemberDirectory interface {
	FindRoleAndTenant(ctx context.Context, memberID domain.MemberID) (permission.Role, domain.TenantID, error)
}

type accessContextKey struct{}

// AccessFrom retrieves the authenticated AccessContext. The zero value means
// the request did not pass RequireAuth.
func AccessFrom(ctx context.Context) (permission.AccessContext, bool) {
	access, ok := ctx.Value(accessContextKey{}).(permission.AccessContext)
	return access, ok
}

// WithAccess injects an AccessContext. Useful for handler tests that skip
// the middleware chain.
func WithAccess(ctx context.Context, access permission.AccessContext) context.Context {
	return context.WithValue(ctx, accessContextKey{}, access)
}

// sessionClaims are the JWT claims this service consumes. The member's role
// is deliberately NOT trusted from the token; it is looked up fresh so role
// changes take effect without waiting for token expiry.
type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Authenticator builds the per-request AccessContext from the session token
// plus a member directory lookup.
type Authenticator struct {
	signingKey []byte
	members    MemberDirectory
	logger     *slog.Logger
}

func NewAuthenticator(signingKey string, members MemberDirectory, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		signingKey: []byte(signingKey),
		members:    members,
		logger:     logger,
	}
}

// RequireAuth authenticates the request and stores the AccessContext.
// Missing or invalid sessions get the 401 contract; directory faults get 500.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, ok := bearerToken(r)
		if !ok {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing session token"))
			return
		}

		claims := &sessionClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.signingKey, nil
		})
		if err != nil || !parsed.Valid {
			a.logger.WarnContext(ctx, "rejected invalid session token",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid session token"))
			return
		}

		memberID, err := domain.ParseMemberID(claims.Subject)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "malformed subject claim"))
			return
		}

		role, tenantID, err := a.members.FindRoleAndTenant(ctx, memberID)
		if err != nil {
			a.logger.ErrorContext(ctx, "member directory lookup failed",
				"member_id", memberID,
				"error", err,
			)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnauthorized, "unknown member"))
			return
		}
		if !role.IsValid() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "member has no valid role"))
			return
		}

		access := permission.AccessContext{
			MemberID:  memberID,
			TenantID:  tenantID,
			Role:      role,
			IPAddress: requestcontext.ClientIP(ctx),
			UserAgent: requestcontext.UserAgent(ctx),
			SessionID: claims.SessionID,
			RequestID: requestcontext.RequestID(ctx),
		}

		ctx = WithAccess(ctx, access)
		ctx = requestcontext.WithSessionID(ctx, claims.SessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// permissionDeniedBody extends the error contract with the permission the
// caller was missing.
type permissionDeniedBody struct {
	Error              string `json:"error"`
	Code               string `json:"code"`
	RequiredPermission string `json:"required_permission"`
}

func writePermissionDenied(w http.ResponseWriter, perm permission.Permission) {
	httputil.WriteJSON(w, http.StatusForbidden, permissionDeniedBody{
		Error:              "Insufficient permissions",
		Code:               "PERMISSION_DENIED",
		RequiredPermission: string(perm),
	})
}

// Gate wraps an evaluator into route middleware.
type Gate struct {
	evaluator *permission.Evaluator
}

func NewGate(evaluator *permission.Evaluator) *Gate {
	return &Gate{evaluator: evaluator}
}

// RequirePermission admits only actors holding perm. Must run after
// RequireAuth.
func (g *Gate) RequirePermission(perm permission.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access, ok := AccessFrom(r.Context())
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing access context"))
				return
			}
			if !g.evaluator.HasPermission(r.Context(), access, perm) {
				writePermissionDenied(w, perm)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireResourceAccess admits only actors with perm and a valid claim on
// the resource identified by the chi URL parameter. Must run after
// RequireAuth.
func (g *Gate) RequireResourceAccess(perm permission.Permission, resourceType permission.ResourceType, urlParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access, ok := AccessFrom(r.Context())
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing access context"))
				return
			}
			resourceID := chi.URLParam(r, urlParam)
			if resourceID == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "missing resource identifier"))
				return
			}
			if !g.evaluator.HasResourceAccess(r.Context(), access, perm, resourceType, resourceID) {
				writePermissionDenied(w, perm)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}
