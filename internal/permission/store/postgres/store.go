// Package postgres resolves member roles and resource ownership from the
// koperasi database via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kopguard/internal/permission"
	"kopguard/pkg/domain"
	"kopguard/pkg/platform/sentinel"
)

// Directory implements permission.ResourceDirectory and the member lookup
// over a pgx connection pool.
type Directory struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

// Connect creates a pool for the given database URL and wraps it.
func Connect(ctx context.Context, databaseURL string) (*Directory, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Directory{pool: pool}, nil
}

// FindRoleAndTenant resolves a member's stored role and tenant.
func (d *Directory) FindRoleAndTenant(ctx context.Context, memberID domain.MemberID) (permission.Role, domain.TenantID, error) {
	var role, rawTenant string

	err := d.pool.QueryRow(ctx,
		`SELECT role, tenant_id::text FROM members WHERE id = $1`,
		memberID.String(),
	).Scan(&role, &rawTenant)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.TenantID{}, sentinel.ErrNotFound
	}
	if err != nil {
		return "", domain.TenantID{}, fmt.Errorf("query member role: %w", err)
	}

	tenantID, err := domain.ParseTenantID(rawTenant)
	if err != nil {
		return "", domain.TenantID{}, fmt.Errorf("parse tenant id: %w", err)
	}
	return permission.Role(role), tenantID, nil
}

// ownershipQueries maps each resource kind to its owner/tenant projection.
// Every registered kind must appear here; unregistered kinds never reach
// this store (the evaluator falls back before dispatching).
var ownershipQueries = map[permission.ResourceType]string{
	permission.ResourceMember:         `SELECT id::text, tenant_id::text FROM members WHERE id = $1`,
	permission.ResourceTransaction:    `SELECT member_id::text, tenant_id::text FROM transactions WHERE id = $1`,
	permission.ResourceSavingsAccount: `SELECT member_id::text, tenant_id::text FROM savings_accounts WHERE id = $1`,
	permission.ResourceWasteBalance:   `SELECT member_id::text, tenant_id::text FROM waste_balances WHERE id = $1`,
	permission.ResourceOrder:          `SELECT member_id::text, tenant_id::text FROM orders WHERE id = $1`,
}

// FindOwnership resolves a resource's owning member and tenant. A missing
// resource returns (nil, nil); the evaluator treats that as a denial.
func (d *Directory) FindOwnership(ctx context.Context, resourceType permission.ResourceType, resourceID string) (*permission.Ownership, error) {
	query, ok := ownershipQueries[resourceType]
	if !ok {
		return nil, fmt.Errorf("unregistered resource type %q", resourceType)
	}

	var rawOwner, rawTenant string
	err := d.pool.QueryRow(ctx, query, resourceID).Scan(&rawOwner, &rawTenant)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query %s ownership: %w", resourceType, err)
	}

	ownerID, err := domain.ParseMemberID(rawOwner)
	if err != nil {
		return nil, fmt.Errorf("parse owner id: %w", err)
	}
	tenantID, err := domain.ParseTenantID(rawTenant)
	if err != nil {
		return nil, fmt.Errorf("parse tenant id: %w", err)
	}
	return &permission.Ownership{OwnerID: ownerID, TenantID: tenantID}, nil
}

// Close releases the pool.
func (d *Directory) Close() {
	d.pool.Close()
}
