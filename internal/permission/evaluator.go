package permission

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"kopguard/internal/audit"
	permmetrics "kopguard/internal/permission/metrics"
	"kopguard/pkg/domain"
)

// Table is the role-table lookup path. It is an interface so tests can spy
// on it; the production implementation is the precomputed static table.
type Table interface {
	Grants(role Role, perm Permission) (bool, error)
}

// StaticTable answers membership queries against RolePermissions with
// precomputed sets (no per-call slice scans).
type StaticTable struct {
	sets map[Role]map[Permission]struct{}
}

// NewStaticTable precomputes permission sets from RolePermissions.
func NewStaticTable() *StaticTable {
	sets := make(map[Role]map[Permission]struct{}, len(RolePermissions))
	for role, perms := range RolePermissions {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		sets[role] = set
	}
	return &StaticTable{sets: sets}
}

func (t *StaticTable) Grants(role Role, perm Permission) (bool, error) {
	set, ok := t.sets[role]
	if !ok {
		return false, nil
	}
	_, granted := set[perm]
	return granted, nil
}

// ResourceDirectory resolves a resource's owning member and tenant.
// A nil result with nil error means the resource does not exist.
type ResourceDirectory interface {
	FindOwnership(ctx context.Context, resourceType ResourceType, resourceID string) (*Ownership, error)
}

// SecuritySink receives security events raised during evaluation. The audit
// logger satisfies it; tests use a recording fake.
type SecuritySink interface {
	LogSecurityEvent(ctx context.Context, event audit.SecurityEvent)
}

// Evaluator answers permission questions. It never returns errors across its
// public boundary: expected denials are plain false, internal faults are
// logged, reported as system_error security events, and fail closed.
type Evaluator struct {
	table     Table
	resources ResourceDirectory
	audits    SecuritySink
	logger    *slog.Logger
	metrics   *permmetrics.Metrics
	tracer    trace.Tracer
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTable overrides the role table (used by tests to spy on lookups).
func WithTable(table Table) Option {
	return func(e *Evaluator) { e.table = table }
}

// WithMetrics attaches prometheus counters.
func WithMetrics(m *permmetrics.Metrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

// NewEvaluator builds an evaluator over the static role table.
func NewEvaluator(resources ResourceDirectory, audits SecuritySink, logger *slog.Logger, opts ...Option) *Evaluator {
	e := &Evaluator{
		table:     NewStaticTable(),
		resources: resources,
		audits:    audits,
		logger:    logger,
		tracer:    otel.Tracer("kopguard/permission"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HasPermission reports whether the actor holds the named permission.
// super_admin is granted without touching the table. Table faults fail
// closed and raise a system_error security event.
func (e *Evaluator) HasPermission(ctx context.Context, access AccessContext, perm Permission) bool {
	ctx, span := e.tracer.Start(ctx, "permission.HasPermission",
		trace.WithAttributes(
			attribute.String("permission", string(perm)),
			attribute.String("role", string(access.Role)),
		))
	defer span.End()

	if access.Role == RoleSuperAdmin {
		return true
	}

	granted, err := e.table.Grants(access.Role, perm)
	if err != nil {
		e.logger.ErrorContext(ctx, "permission table lookup failed",
			"permission", perm,
			"role", access.Role,
			"error", err,
		)
		e.reportSystemError(ctx, access, "permission table lookup failed")
		return false
	}

	if !granted {
		e.reportDenied(ctx, access, perm)
	}
	return granted
}

// HasPermissions reports whether the actor holds every listed permission.
// Each permission is evaluated independently so denials audit consistently.
func (e *Evaluator) HasPermissions(ctx context.Context, access AccessContext, perms []Permission) bool {
	all := true
	for _, p := range perms {
		if !e.HasPermission(ctx, access, p) {
			all = false
		}
	}
	return all
}

// HasResourceAccess checks the basic permission and then the actor's claim
// on the specific resource. Unknown resource types fall back to the basic
// permission result.
func (e *Evaluator) HasResourceAccess(ctx context.Context, access AccessContext, perm Permission, resourceType ResourceType, resourceID string) bool {
	if !e.HasPermission(ctx, access, perm) {
		return false
	}

	if !resourceType.IsKnown() {
		// Open by default for unrecognized kinds. Add new kinds to the
		// ResourceType enum before relying on per-resource checks.
		e.logger.WarnContext(ctx, "resource access fell back to basic permission",
			"resource_type", resourceType,
			"resource_id", resourceID,
		)
		return true
	}

	return e.checkOwnership(ctx, access, resourceType, resourceID)
}

// ValidateTenantAccess is the multi-tenancy isolation boundary. super_admin
// bypasses; every other role requires exact tenant equality.
func (e *Evaluator) ValidateTenantAccess(access AccessContext, targetTenant domain.TenantID) bool {
	if access.Role == RoleSuperAdmin {
		return true
	}
	return access.TenantID == targetTenant
}

// checkOwnership fetches the resource's owner and tenant, rejects tenant
// mismatches, grants staff roles, and otherwise requires ownership.
// Directory faults and missing resources both deny.
func (e *Evaluator) checkOwnership(ctx context.Context, access AccessContext, resourceType ResourceType, resourceID string) bool {
	owner, err := e.resources.FindOwnership(ctx, resourceType, resourceID)
	if err != nil {
		e.logger.ErrorContext(ctx, "resource ownership lookup failed",
			"resource_type", resourceType,
			"resource_id", resourceID,
			"error", err,
		)
		e.reportSystemError(ctx, access, "resource ownership lookup failed")
		return false
	}
	if owner == nil {
		return false
	}

	if !e.ValidateTenantAccess(access, owner.TenantID) {
		e.reportTenantMismatch(ctx, access, resourceType, resourceID)
		return false
	}

	if access.Role.AtLeast(RolePengurus) {
		return true
	}

	return access.MemberID == owner.OwnerID
}

func (e *Evaluator) reportDenied(ctx context.Context, access AccessContext, perm Permission) {
	if e.metrics != nil {
		e.metrics.IncrementDenials()
	}
	if e.audits == nil {
		return
	}
	e.audits.LogSecurityEvent(ctx, audit.SecurityEvent{
		Type:        audit.EventPermissionDenied,
		Severity:    audit.SeverityLow,
		Description: "permission denied: " + string(perm),
		MemberID:    access.MemberID.String(),
		TenantID:    access.TenantID.String(),
		IPAddress:   access.IPAddress,
		UserAgent:   access.UserAgent,
		Metadata: map[string]any{
			"permission": string(perm),
			"role":       string(access.Role),
		},
	})
}

func (e *Evaluator) reportTenantMismatch(ctx context.Context, access AccessContext, resourceType ResourceType, resourceID string) {
	if e.metrics != nil {
		e.metrics.IncrementTenantRejections()
	}
	if e.audits == nil {
		return
	}
	e.audits.LogSecurityEvent(ctx, audit.SecurityEvent{
		Type:        audit.EventPermissionDenied,
		Severity:    audit.SeverityMedium,
		Description: "cross-tenant resource access rejected",
		MemberID:    access.MemberID.String(),
		TenantID:    access.TenantID.String(),
		IPAddress:   access.IPAddress,
		Metadata: map[string]any{
			"resource_type": string(resourceType),
			"resource_id":   resourceID,
		},
	})
}

func (e *Evaluator) reportSystemError(ctx context.Context, access AccessContext, description string) {
	if e.metrics != nil {
		e.metrics.IncrementFaults()
	}
	if e.audits == nil {
		return
	}
	e.audits.LogSecurityEvent(ctx, audit.SecurityEvent{
		Type:        audit.EventSystemError,
		Severity:    audit.SeverityMedium,
		Description: description,
		MemberID:    access.MemberID.String(),
		TenantID:    access.TenantID.String(),
		IPAddress:   access.IPAddress,
	})
}
