// Package domain holds identifier types shared across modules. Typed IDs keep
// tenant and member identifiers from being swapped accidentally at call sites.
package domain

import "github.com/google/uuid"

// MemberID identifies a koperasi member (the authenticated principal).
type MemberID uuid.UUID

// TenantID identifies an isolated koperasi organization instance.
type TenantID uuid.UUID

func (id MemberID) String() string { return uuid.UUID(id).String() }
func (id MemberID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id TenantID) String() string { return uuid.UUID(id).String() }
func (id TenantID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// ParseMemberID parses a member ID from its string form.
func ParseMemberID(s string) (MemberID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return MemberID{}, err
	}
	return MemberID(u), nil
}

// ParseTenantID parses a tenant ID from its string form.
func ParseTenantID(s string) (TenantID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return TenantID{}, err
	}
	return TenantID(u), nil
}

// NewMemberID returns a fresh random member ID.
func NewMemberID() MemberID { return MemberID(uuid.New()) }

// NewTenantID returns a fresh random tenant ID.
func NewTenantID() TenantID { return TenantID(uuid.New()) }
