// Package memory provides in-memory member and resource directories for
// tests and demo mode.
package memory

import (
	"context"
	"sync"

	"kopguard/internal/permission"
	"kopguard/pkg/domain"
	"kopguard/pkg/platform/sentinel"
)

// MemberRecord is a member's directory entry.
type MemberRecord struct {
	Role     permission.Role
	TenantID domain.TenantID
}

// InMemoryDirectory implements both the member and resource directories.
type InMemoryDirectory struct {
	mu        sync.RWMutex
	members   map[domain.MemberID]MemberRecord
	resources map[resourceKey]permission.Ownership
}

type resourceKey struct {
	resourceType permission.ResourceType
	resourceID   string
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{
		members:   make(map[domain.MemberID]MemberRecord),
		resources: make(map[resourceKey]permission.Ownership),
	}
}

// PutMember registers a member's role and tenant.
func (d *InMemoryDirectory) PutMember(id domain.MemberID, record MemberRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[id] = record
}

// PutResource registers a resource's ownership.
func (d *InMemoryDirectory) PutResource(resourceType permission.ResourceType, resourceID string, ownership permission.Ownership) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resources[resourceKey{resourceType, resourceID}] = ownership
}

func (d *InMemoryDirectory) FindRoleAndTenant(_ context.Context, memberID domain.MemberID) (permission.Role, domain.TenantID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	record, ok := d.members[memberID]
	if !ok {
		return "", domain.TenantID{}, sentinel.ErrNotFound
	}
	return record.Role, record.TenantID, nil
}

func (d *InMemoryDirectory) FindOwnership(_ context.Context, resourceType permission.ResourceType, resourceID string) (*permission.Ownership, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ownership, ok := d.resources[resourceKey{resourceType, resourceID}]
	if !ok {
		return nil, nil
	}
	out := ownership
	return &out, nil
}
