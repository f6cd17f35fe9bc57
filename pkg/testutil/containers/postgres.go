//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// schema mirrors the production tables the stores read and write.
const schema = `
CREATE TABLE tenants (
    id   UUID PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE members (
    id        UUID PRIMARY KEY,
    tenant_id UUID NOT NULL REFERENCES tenants (id),
    role      TEXT NOT NULL
);

CREATE TABLE transactions (
    id        UUID PRIMARY KEY,
    member_id UUID NOT NULL REFERENCES members (id),
    tenant_id UUID NOT NULL REFERENCES tenants (id)
);

CREATE TABLE savings_accounts (
    id        UUID PRIMARY KEY,
    member_id UUID NOT NULL REFERENCES members (id),
    tenant_id UUID NOT NULL REFERENCES tenants (id)
);

CREATE TABLE waste_balances (
    id        UUID PRIMARY KEY,
    member_id UUID NOT NULL REFERENCES members (id),
    tenant_id UUID NOT NULL REFERENCES tenants (id)
);

CREATE TABLE orders (
    id        UUID PRIMARY KEY,
    member_id UUID NOT NULL REFERENCES members (id),
    tenant_id UUID NOT NULL REFERENCES tenants (id)
);

CREATE TABLE audit_logs (
    id            UUID PRIMARY KEY,
    level         TEXT        NOT NULL,
    action        TEXT        NOT NULL,
    resource      TEXT        NOT NULL,
    member_id     TEXT,
    tenant_id     TEXT,
    ip_address    TEXT,
    user_agent    TEXT,
    metadata      JSONB,
    session_id    TEXT,
    request_id    TEXT,
    success       BOOLEAN     NOT NULL,
    error_message TEXT,
    created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX audit_logs_member_idx  ON audit_logs (member_id, created_at);
CREATE INDEX audit_logs_created_idx ON audit_logs (created_at);

CREATE TABLE security_alerts (
    id                UUID PRIMARY KEY,
    event_type        TEXT        NOT NULL,
    severity          TEXT        NOT NULL,
    description       TEXT        NOT NULL,
    member_id         TEXT,
    tenant_id         TEXT,
    ip_address        TEXT,
    request_id        TEXT,
    webhook_delivered BOOLEAN     NOT NULL,
    webhook_error     TEXT,
    created_at        TIMESTAMPTZ NOT NULL
);
`

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// schema already applied.
type PostgresContainer struct {
	URL string
	DB  *sql.DB
}

// NewPostgresContainer starts a PostgreSQL container that lives for the test.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("kopguard_test"),
		tcpostgres.WithUsername("kopguard"),
		tcpostgres.WithPassword("kopguard"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{URL: url, DB: db}
}

// TruncateTables empties the listed tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	query := fmt.Sprintf("TRUNCATE %s CASCADE", strings.Join(tables, ", "))

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := p.DB.ExecContext(ctx, query)
	return err
}
