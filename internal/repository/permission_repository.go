package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/hospital-admin-api/internal/models"
)

const permissionColumns = `id, user_id, role_id, document_id, can_add, can_modify, can_delete, can_query, created_at, updated_at`

// permissionRow mirrors the permissions table with its nullable principal columns.
type permissionRow struct {
	ID         string    `db:"id"`
	UserID     *string   `db:"user_id"`
	RoleID     *string   `db:"role_id"`
	DocumentID string    `db:"document_id"`
	CanAdd     bool      `db:"can_add"`
	CanModify  bool      `db:"can_modify"`
	CanDelete  bool      `db:"can_delete"`
	CanQuery   bool      `db:"can_query"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (row permissionRow) toModel() (models.Permission, error) {
	target, err := models.TargetFromColumns(row.UserID, row.RoleID)
	if err != nil {
		return models.Permission{}, fmt.Errorf("permission %s: %w", row.ID, err)
	}
	return models.Permission{
		ID:         row.ID,
		Target:     target,
		DocumentID: row.DocumentID,
		Capabilities: models.Capabilities{
			CanAdd:    row.CanAdd,
			CanModify: row.CanModify,
			CanDelete: row.CanDelete,
			CanQuery:  row.CanQuery,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func rowFromModel(p *models.Permission) permissionRow {
	userID, roleID := p.Target.Columns()
	return permissionRow{
		ID:         p.ID,
		UserID:     userID,
		RoleID:     roleID,
		DocumentID: p.DocumentID,
		CanAdd:     p.CanAdd,
		CanModify:  p.CanModify,
		CanDelete:  p.CanDelete,
		CanQuery:   p.CanQuery,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

// PermissionRepository stores capability grants scoped to a user or a role.
type PermissionRepository struct {
	db *sqlx.DB
}

// NewPermissionRepository constructs a PermissionRepository.
func NewPermissionRepository(db *sqlx.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

func (r *PermissionRepository) selectMany(ctx context.Context, label, query string, args ...interface{}) ([]models.Permission, error) {
	var rows []permissionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	out := make([]models.Permission, 0, len(rows))
	for _, row := range rows {
		p, err := row.toModel()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", label, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// FindByID returns a permission by id.
func (r *PermissionRepository) FindByID(ctx context.Context, id string) (*models.Permission, error) {
	var row permissionRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find permission: %w", err)
	}
	p, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByTargetAndDocument returns the grant held by target on documentID.
func (r *PermissionRepository) FindByTargetAndDocument(ctx context.Context, target models.PermissionTarget, documentID string) (*models.Permission, error) {
	column := "user_id"
	if target.Kind() == models.PrincipalRole {
		column = "role_id"
	}
	query := `SELECT ` + permissionColumns + ` FROM permissions WHERE ` + column + ` = $1 AND document_id = $2 LIMIT 1`
	var row permissionRow
	if err := r.db.GetContext(ctx, &row, query, target.ID(), documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find permission by target: %w", err)
	}
	p, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByUser returns permissions granted directly to the user.
func (r *PermissionRepository) ListByUser(ctx context.Context, userID string) ([]models.Permission, error) {
	return r.selectMany(ctx, "list permissions by user",
		`SELECT `+permissionColumns+` FROM permissions WHERE user_id = $1 ORDER BY document_id`, userID)
}

// ListByRole returns the raw permissions of one role.
func (r *PermissionRepository) ListByRole(ctx context.Context, roleID string) ([]models.Permission, error) {
	return r.selectMany(ctx, "list permissions by role",
		`SELECT `+permissionColumns+` FROM permissions WHERE role_id = $1 ORDER BY document_id`, roleID)
}

// ListByRoles returns the permissions of every given role in one query.
func (r *PermissionRepository) ListByRoles(ctx context.Context, roleIDs []string) ([]models.Permission, error) {
	if len(roleIDs) == 0 {
		return []models.Permission{}, nil
	}
	return r.selectMany(ctx, "list permissions by roles",
		`SELECT `+permissionColumns+` FROM permissions WHERE role_id = ANY($1) ORDER BY document_id`, pq.Array(roleIDs))
}

// Create inserts a permission.
func (r *PermissionRepository) Create(ctx context.Context, p *models.Permission) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	const query = `INSERT INTO permissions (id, user_id, role_id, document_id, can_add, can_modify, can_delete, can_query, created_at, updated_at) VALUES (:id, :user_id, :role_id, :document_id, :can_add, :can_modify, :can_delete, :can_query, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rowFromModel(p)); err != nil {
		return fmt.Errorf("create permission: %w", err)
	}
	return nil
}

// Update overwrites the target, document and flags of an existing permission.
func (r *PermissionRepository) Update(ctx context.Context, p *models.Permission) error {
	p.UpdatedAt = time.Now().UTC()
	const query = `UPDATE permissions SET user_id = :user_id, role_id = :role_id, document_id = :document_id, can_add = :can_add, can_modify = :can_modify, can_delete = :can_delete, can_query = :can_query, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, rowFromModel(p))
	if err != nil {
		return fmt.Errorf("update permission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update permission rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a permission.
func (r *PermissionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete permission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete permission rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
