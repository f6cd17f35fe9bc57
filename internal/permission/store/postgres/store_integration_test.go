//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"kopguard/internal/permission"
	"kopguard/internal/permission/store/postgres"
	"kopguard/pkg/domain"
	"kopguard/pkg/platform/sentinel"
	"kopguard/pkg/testutil/containers"
)

type DirectorySuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	pool      *pgxpool.Pool
	directory *postgres.Directory

	tenantID domain.TenantID
	memberID domain.MemberID
}

func TestDirectorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(DirectorySuite))
}

func (s *DirectorySuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())

	pool, err := pgxpool.New(context.Background(), s.postgres.URL)
	s.Require().NoError(err)
	s.pool = pool
	s.directory = postgres.New(pool)
}

func (s *DirectorySuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *DirectorySuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx,
		"orders", "waste_balances", "savings_accounts", "transactions", "members", "tenants"))

	s.tenantID = domain.NewTenantID()
	s.memberID = domain.NewMemberID()

	_, err := s.postgres.DB.ExecContext(ctx,
		`INSERT INTO tenants (id, name) VALUES ($1, 'Koperasi Maju Jaya')`, s.tenantID.String())
	s.Require().NoError(err)

	_, err = s.postgres.DB.ExecContext(ctx,
		`INSERT INTO members (id, tenant_id, role) VALUES ($1, $2, 'pengurus')`,
		s.memberID.String(), s.tenantID.String())
	s.Require().NoError(err)
}

func (s *DirectorySuite) TestFindRoleAndTenant() {
	role, tenantID, err := s.directory.FindRoleAndTenant(context.Background(), s.memberID)
	s.Require().NoError(err)
	s.Equal(permission.RolePengurus, role)
	s.Equal(s.tenantID, tenantID)
}

func (s *DirectorySuite) TestFindRoleAndTenantMissingMember() {
	_, _, err := s.directory.FindRoleAndTenant(context.Background(), domain.NewMemberID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *DirectorySuite) TestFindOwnership() {
	ctx := context.Background()

	txnID := uuid.NewString()
	_, err := s.postgres.DB.ExecContext(ctx,
		`INSERT INTO transactions (id, member_id, tenant_id) VALUES ($1, $2, $3)`,
		txnID, s.memberID.String(), s.tenantID.String())
	s.Require().NoError(err)

	ownership, err := s.directory.FindOwnership(ctx, permission.ResourceTransaction, txnID)
	s.Require().NoError(err)
	s.Require().NotNil(ownership)
	s.Equal(s.memberID, ownership.OwnerID)
	s.Equal(s.tenantID, ownership.TenantID)
}

func (s *DirectorySuite) TestFindOwnershipMissingResource() {
	ownership, err := s.directory.FindOwnership(context.Background(), permission.ResourceOrder, uuid.NewString())
	s.Require().NoError(err)
	s.Nil(ownership)
}

func (s *DirectorySuite) TestFindOwnershipEveryRegisteredKind() {
	ctx := context.Background()

	tables := map[permission.ResourceType]string{
		permission.ResourceTransaction:    "transactions",
		permission.ResourceSavingsAccount: "savings_accounts",
		permission.ResourceWasteBalance:   "waste_balances",
		permission.ResourceOrder:          "orders",
	}
	for kind, table := range tables {
		resourceID := uuid.NewString()
		_, err := s.postgres.DB.ExecContext(ctx,
			`INSERT INTO `+table+` (id, member_id, tenant_id) VALUES ($1, $2, $3)`,
			resourceID, s.memberID.String(), s.tenantID.String())
		s.Require().NoError(err)

		ownership, err := s.directory.FindOwnership(ctx, kind, resourceID)
		s.Require().NoError(err, "kind %s", kind)
		s.Require().NotNil(ownership, "kind %s", kind)
		s.Equal(s.memberID, ownership.OwnerID)
	}

	// The member kind owns itself.
	ownership, err := s.directory.FindOwnership(ctx, permission.ResourceMember, s.memberID.String())
	s.Require().NoError(err)
	s.Require().NotNil(ownership)
	s.Equal(s.memberID, ownership.OwnerID)
}
