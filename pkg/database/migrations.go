package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Migration is a single versioned schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the ordered schema history of the portal database.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "create users and refresh tokens",
			SQL: `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	username VARCHAR(100) NOT NULL UNIQUE,
	email VARCHAR(255) NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	full_name VARCHAR(255) NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	last_login TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS refresh_tokens (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	token TEXT NOT NULL UNIQUE,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	revoked BOOLEAN NOT NULL DEFAULT FALSE,
	revoked_at TIMESTAMPTZ,
	ip_address VARCHAR(64) NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id);`,
		},
		{
			Version:     2,
			Description: "create roles and user roles",
			SQL: `
CREATE TABLE IF NOT EXISTS roles (
	id UUID PRIMARY KEY,
	name VARCHAR(100) NOT NULL UNIQUE,
	description TEXT,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS user_roles (
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	role_id UUID NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, role_id)
);
CREATE INDEX IF NOT EXISTS idx_user_roles_role_id ON user_roles(role_id);`,
		},
		{
			Version:     3,
			Description: "create modules, documents and module documents",
			SQL: `
CREATE TABLE IF NOT EXISTS modules (
	id UUID PRIMARY KEY,
	name VARCHAR(150) NOT NULL UNIQUE,
	description TEXT,
	display_order INTEGER NOT NULL DEFAULT 0,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS documents (
	id UUID PRIMARY KEY,
	name VARCHAR(150) NOT NULL,
	path VARCHAR(255) NOT NULL,
	display_order INTEGER NOT NULL DEFAULT 0,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path);

CREATE TABLE IF NOT EXISTS module_documents (
	module_id UUID NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
	document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (module_id, document_id)
);
CREATE INDEX IF NOT EXISTS idx_module_documents_document_id ON module_documents(document_id);`,
		},
		{
			Version:     4,
			Description: "create permissions",
			SQL: `
CREATE TABLE IF NOT EXISTS permissions (
	id UUID PRIMARY KEY,
	user_id UUID REFERENCES users(id) ON DELETE CASCADE,
	role_id UUID REFERENCES roles(id) ON DELETE CASCADE,
	document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	can_add BOOLEAN NOT NULL DEFAULT FALSE,
	can_modify BOOLEAN NOT NULL DEFAULT FALSE,
	can_delete BOOLEAN NOT NULL DEFAULT FALSE,
	can_query BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT permissions_single_principal CHECK ((user_id IS NULL) <> (role_id IS NULL))
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_permissions_user_document ON permissions(user_id, document_id) WHERE user_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS uq_permissions_role_document ON permissions(role_id, document_id) WHERE role_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_permissions_document_id ON permissions(document_id);`,
		},
		{
			Version:     5,
			Description: "create audit logs",
			SQL: `
CREATE TABLE IF NOT EXISTS audit_logs (
	id UUID PRIMARY KEY,
	table_name VARCHAR(100) NOT NULL,
	record_id VARCHAR(100),
	operation VARCHAR(20) NOT NULL,
	operation_type VARCHAR(100) NOT NULL DEFAULT '',
	old_values JSONB,
	new_values JSONB,
	user_id UUID,
	username VARCHAR(100),
	ip_address VARCHAR(64) NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_audit_logs_table_record ON audit_logs(table_name, record_id);`,
		},
	}
}

// Migrate applies every migration not yet recorded in schema_migrations, each in its own transaction.
func Migrate(ctx context.Context, db *sqlx.DB, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, description TEXT NOT NULL, applied_at TIMESTAMPTZ NOT NULL)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []int
	if err := db.SelectContext(ctx, &applied, `SELECT version FROM schema_migrations`); err != nil {
		return 0, fmt.Errorf("list applied migrations: %w", err)
	}
	done := make(map[int]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}

	count := 0
	for _, m := range Migrations() {
		if _, ok := done[m.Version]; ok {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return count, err
		}
		logger.Info("migration applied", zap.Int("version", m.Version), zap.String("description", m.Description))
		count++
	}
	return count, nil
}

func apply(ctx context.Context, db *sqlx.DB, m Migration) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("apply migration %d: %w", m.Version, err)
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, description, applied_at) VALUES ($1, $2, $3)`, m.Version, m.Description, time.Now().UTC()); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

// SeedSuperadminRole makes sure the reserved role exists.
func SeedSuperadminRole(ctx context.Context, db *sqlx.DB, name string) error {
	const query = `INSERT INTO roles (id, name, description, active, created_at, updated_at)
VALUES ($1, $2, $3, TRUE, $4, $4)
ON CONFLICT (name) DO NOTHING`
	now := time.Now().UTC()
	if _, err := db.ExecContext(ctx, query, uuid.NewString(), name, "Full access to every document", now); err != nil {
		return fmt.Errorf("seed superadmin role: %w", err)
	}
	return nil
}
