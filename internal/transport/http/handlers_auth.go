package transporthttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"kopguard/internal/audit"
	permmw "kopguard/internal/permission/middleware"
	"kopguard/pkg/domain"
	dErrors "kopguard/pkg/domainerrors"
	"kopguard/pkg/platform/httputil"
	"kopguard/pkg/platform/sentinel"
)

// sessionTTL bounds how long an issued session token stays valid.
const sessionTTL = 24 * time.Hour

// CredentialVerifier checks a member's credentials. The production
// implementation talks to the identity backend; demo mode accepts a shared
// development password.
type CredentialVerifier interface {
	Verify(ctx context.Context, memberID domain.MemberID, password string) error
}

// AuthHandler issues session tokens for verified members and records every
// attempt in the audit trail.
type AuthHandler struct {
	verifier   CredentialVerifier
	members    permmw.MemberDirectory
	audits     *audit.Logger
	logger     *slog.Logger
	signingKey []byte
}

func NewAuthHandler(verifier CredentialVerifier, members permmw.MemberDirectory, audits *audit.Logger, logger *slog.Logger, signingKey string) *AuthHandler {
	return &AuthHandler{
		verifier:   verifier,
		members:    members,
		audits:     audits,
		logger:     logger,
		signingKey: []byte(signingKey),
	}
}

type loginRequest struct {
	MemberID string `json:"member_id"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	memberID, err := domain.ParseMemberID(req.MemberID)
	if err != nil {
		h.recordAttempt(ctx, req.MemberID, "", false, "malformed member id")
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials"))
		return
	}

	role, tenantID, err := h.members.FindRoleAndTenant(ctx, memberID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			h.logger.ErrorContext(ctx, "member lookup failed during login",
				"member_id", memberID,
				"error", err,
			)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "member lookup failed"))
			return
		}
		h.recordAttempt(ctx, req.MemberID, "", false, "unknown member")
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials"))
		return
	}

	if err := h.verifier.Verify(ctx, memberID, req.Password); err != nil {
		h.recordAttempt(ctx, memberID.String(), tenantID.String(), false, "invalid credentials")
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials"))
		return
	}

	sessionID := uuid.NewString()
	expiresAt := time.Now().Add(sessionTTL)
	claims := jwt.MapClaims{
		"sub": memberID.String(),
		"sid": sessionID,
		"exp": expiresAt.Unix(),
		"iat": time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.signingKey)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to sign session token", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "token signing failed"))
		return
	}

	h.audits.LogAuth(ctx, audit.AuthAttempt{
		Type:     "login",
		MemberID: memberID.String(),
		TenantID: tenantID.String(),
		Success:  true,
		Metadata: map[string]any{"role": string(role)},
	})

	httputil.WriteJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}

func (h *AuthHandler) recordAttempt(ctx context.Context, memberID, tenantID string, success bool, reason string) {
	h.audits.LogAuth(ctx, audit.AuthAttempt{
		Type:         "login",
		MemberID:     memberID,
		TenantID:     tenantID,
		Success:      success,
		ErrorMessage: reason,
	})
}

// StaticVerifier accepts one shared password. Demo and test wiring only.
// An empty configured password rejects every login.
type StaticVerifier struct {
	Password string
}

func (v StaticVerifier) Verify(_ context.Context, _ domain.MemberID, password string) error {
	if v.Password == "" || password != v.Password {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	return nil
}
