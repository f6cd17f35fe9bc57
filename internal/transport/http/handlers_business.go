package transporthttp

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"kopguard/internal/audit"
	"kopguard/internal/permission"
	permmw "kopguard/internal/permission/middleware"
	dErrors "kopguard/pkg/domainerrors"
	"kopguard/pkg/platform/httputil"
)

// BusinessHandler serves the member-facing reads. The interesting work
// happens in the middleware stack guarding them; the handlers themselves
// stay thin and record data access in the audit trail.
type BusinessHandler struct {
	audits *audit.Logger
	logger *slog.Logger
}

func NewBusinessHandler(audits *audit.Logger, logger *slog.Logger) *BusinessHandler {
	return &BusinessHandler{audits: audits, logger: logger}
}

func (h *BusinessHandler) register(r chi.Router, gate *permmw.Gate) {
	r.With(gate.RequireResourceAccess(permission.PermViewSavings, permission.ResourceSavingsAccount, "accountID")).
		Get("/savings/{accountID}", h.handleGetSavings)
	r.With(gate.RequireResourceAccess(permission.PermPlaceOrders, permission.ResourceOrder, "orderID")).
		Get("/orders/{orderID}", h.handleGetOrder)
}

// registerUploads wires the deposit endpoint; the router places it behind
// the upload rate class.
func (h *BusinessHandler) registerUploads(r chi.Router, gate *permmw.Gate) {
	r.With(gate.RequirePermission(permission.PermDepositWaste)).
		Post("/waste/deposits", h.handleDepositWaste)
}

func (h *BusinessHandler) handleGetSavings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := chi.URLParam(r, "accountID")

	access, ok := permmw.AccessFrom(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "missing access context"))
		return
	}

	h.audits.LogDataAccess(ctx, audit.DataAccess{
		Action:     "read",
		Resource:   "savings_account",
		ResourceID: accountID,
		MemberID:   access.MemberID.String(),
		TenantID:   access.TenantID.String(),
	})

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"account_id": accountID,
		"tenant_id":  access.TenantID.String(),
	})
}

type depositRequest struct {
	WasteKg  float64 `json:"waste_kg"`
	ValueIDR int64   `json:"value_idr"`
}

// handleDepositWaste records a waste bank deposit: members trade sorted
// waste for savings credit.
func (h *BusinessHandler) handleDepositWaste(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	access, ok := permmw.AccessFrom(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "missing access context"))
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.WasteKg <= 0 || req.ValueIDR <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "waste_kg and value_idr must be positive"))
		return
	}

	transactionID := uuid.NewString()
	h.audits.LogFinancialTransaction(ctx, audit.FinancialTransaction{
		Action:        "deposit",
		MemberID:      access.MemberID.String(),
		TenantID:      access.TenantID.String(),
		TransactionID: transactionID,
		Amount:        req.ValueIDR,
		Success:       true,
		Metadata:      map[string]any{"waste_kg": req.WasteKg},
	})

	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"transaction_id": transactionID,
		"value_idr":      req.ValueIDR,
	})
}

func (h *BusinessHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")

	access, ok := permmw.AccessFrom(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "missing access context"))
		return
	}

	h.audits.LogDataAccess(ctx, audit.DataAccess{
		Action:     "read",
		Resource:   "order",
		ResourceID: orderID,
		MemberID:   access.MemberID.String(),
		TenantID:   access.TenantID.String(),
	})

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"order_id":  orderID,
		"tenant_id": access.TenantID.String(),
	})
}
