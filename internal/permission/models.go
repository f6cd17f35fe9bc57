// Package permission answers "may this actor perform this action, optionally
// on this resource?". It is a pure decision layer: one static role table plus
// at most one directory read per resource check. Denials are reported to the
// audit logger but never returned as errors.
package permission

import (
	"kopguard/pkg/domain"
)

// Role is a member's position in the koperasi hierarchy. Each level's
// permission grant is a strict superset of every level below it.
type Role string

const (
	RoleMember     Role = "member"
	RolePengurus   Role = "pengurus"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// roleRank orders roles for hierarchy comparisons. Higher outranks lower.
var roleRank = map[Role]int{
	RoleMember:     0,
	RolePengurus:   1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r sits at or above other in the hierarchy.
// Unknown roles rank below everything.
func (r Role) AtLeast(other Role) bool {
	rr, ok := roleRank[r]
	if !ok {
		return false
	}
	or, ok := roleRank[other]
	if !ok {
		return false
	}
	return rr >= or
}

// Permission is a named action from a fixed closed vocabulary, prefixed by
// the minimum role that grants it.
type Permission string

const (
	// Member-level: own data and self-service operations.
	PermViewSavings      Permission = "member:view_savings"
	PermViewTransactions Permission = "member:view_transactions"
	PermPlaceOrders      Permission = "member:place_orders"
	PermViewWasteBalance Permission = "member:view_waste_balance"
	PermDepositWaste     Permission = "member:deposit_waste"
	PermJoinChallenges   Permission = "member:join_challenges"
	PermViewProfile      Permission = "member:view_profile"

	// Pengurus-level: day-to-day cooperative administration.
	PermManageSavings       Permission = "pengurus:manage_savings"
	PermManageOrders        Permission = "pengurus:manage_orders"
	PermManageWaste         Permission = "pengurus:manage_waste"
	PermManageBatches       Permission = "pengurus:manage_batches"
	PermApproveTransactions Permission = "pengurus:approve_transactions"
	PermViewReports         Permission = "pengurus:view_reports"

	// Admin-level: tenant-wide management.
	PermManageMembers  Permission = "admin:manage_members"
	PermManageProducts Permission = "admin:manage_products"
	PermManagePengurus Permission = "admin:manage_pengurus"
	PermManageSettings Permission = "admin:manage_settings"
	PermViewAuditLogs  Permission = "admin:view_audit_logs"

	// Super-admin-level: cross-tenant platform operations.
	PermManageTenants Permission = "super_admin:manage_tenants"
	PermManageSystem  Permission = "super_admin:manage_system"
)

// Permission sets are built additively so the monotonic superset invariant
// holds by construction: each role's slice starts from the one below it.
var memberPermissions = []Permission{
	PermViewSavings,
	PermViewTransactions,
	PermPlaceOrders,
	PermViewWasteBalance,
	PermDepositWaste,
	PermJoinChallenges,
	PermViewProfile,
}

var pengurusPermissions = append(append([]Permission{}, memberPermissions...),
	PermManageSavings,
	PermManageOrders,
	PermManageWaste,
	PermManageBatches,
	PermApproveTransactions,
	PermViewReports,
)

var adminPermissions = append(append([]Permission{}, pengurusPermissions...),
	PermManageMembers,
	PermManageProducts,
	PermManagePengurus,
	PermManageSettings,
	PermViewAuditLogs,
)

var superAdminPermissions = append(append([]Permission{}, adminPermissions...),
	PermManageTenants,
	PermManageSystem,
)

// RolePermissions is the static role-to-permission table. super_admin is
// present for enumeration and tests; the evaluator grants it without a
// table lookup.
var RolePermissions = map[Role][]Permission{
	RoleMember:     memberPermissions,
	RolePengurus:   pengurusPermissions,
	RoleAdmin:      adminPermissions,
	RoleSuperAdmin: superAdminPermissions,
}

// AllPermissions enumerates the full vocabulary.
func AllPermissions() []Permission {
	return append([]Permission{}, superAdminPermissions...)
}

// AccessContext is the authenticated principal making a request. It is built
// per-request by the auth middleware from the session token plus a member
// directory lookup, and lives for exactly one request.
type AccessContext struct {
	MemberID  domain.MemberID
	TenantID  domain.TenantID
	Role      Role
	IPAddress string
	UserAgent string
	SessionID string
	RequestID string
}

// ResourceType names the resource kinds with ownership checks.
type ResourceType string

const (
	ResourceMember         ResourceType = "member"
	ResourceTransaction    ResourceType = "transaction"
	ResourceSavingsAccount ResourceType = "savings_account"
	ResourceWasteBalance   ResourceType = "waste_balance"
	ResourceOrder          ResourceType = "order"
)

// IsKnown reports whether t is one of the enumerated resource kinds.
// Unknown kinds fall back to the basic permission result.
func (t ResourceType) IsKnown() bool {
	switch t {
	case ResourceMember, ResourceTransaction, ResourceSavingsAccount, ResourceWasteBalance, ResourceOrder:
		return true
	}
	return false
}

// Ownership is the owning member and tenant of a resource, as reported by
// the resource directory.
type Ownership struct {
	OwnerID  domain.MemberID
	TenantID domain.TenantID
}
