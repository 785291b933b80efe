package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hospital-admin-api/internal/models"
)

// UserRoleRepository manages the user to role join.
type UserRoleRepository struct {
	db *sqlx.DB
}

// NewUserRoleRepository constructs a UserRoleRepository.
func NewUserRoleRepository(db *sqlx.DB) *UserRoleRepository {
	return &UserRoleRepository{db: db}
}

// ListRolesByUser returns the distinct roles assigned to the user.
func (r *UserRoleRepository) ListRolesByUser(ctx context.Context, userID string) ([]models.Role, error) {
	const query = `SELECT DISTINCT r.id, r.name, r.description, r.active, r.created_at, r.updated_at
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id
WHERE ur.user_id = $1
ORDER BY r.name ASC`
	var roles []models.Role
	if err := r.db.SelectContext(ctx, &roles, query, userID); err != nil {
		return nil, fmt.Errorf("list roles by user: %w", err)
	}
	return roles, nil
}

// Assign links a role to a user. Repeating an assignment is a no-op; the return value
// reports whether a new row was written.
func (r *UserRoleRepository) Assign(ctx context.Context, userID, roleID string) (bool, error) {
	const query = `INSERT INTO user_roles (user_id, role_id, created_at) VALUES ($1, $2, $3) ON CONFLICT (user_id, role_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, userID, roleID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("assign role: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("assign role rows affected: %w", err)
	}
	return affected > 0, nil
}

// Unassign removes the link and reports whether one existed.
func (r *UserRoleRepository) Unassign(ctx context.Context, userID, roleID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return false, fmt.Errorf("unassign role: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unassign role rows affected: %w", err)
	}
	return affected > 0, nil
}
