package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// OrphanCounts reports how many dangling rows a sweep removed per table.
type OrphanCounts struct {
	Permissions     int64 `json:"permissions"`
	UserRoles       int64 `json:"userRoles"`
	ModuleDocuments int64 `json:"moduleDocuments"`
}

// Total sums every table.
func (c OrphanCounts) Total() int64 {
	return c.Permissions + c.UserRoles + c.ModuleDocuments
}

const (
	deleteOrphanPermissions = `DELETE FROM permissions p
WHERE NOT EXISTS (SELECT 1 FROM documents d WHERE d.id = p.document_id)
   OR (p.user_id IS NOT NULL AND NOT EXISTS (SELECT 1 FROM users u WHERE u.id = p.user_id))
   OR (p.role_id IS NOT NULL AND NOT EXISTS (SELECT 1 FROM roles r WHERE r.id = p.role_id))`
	deleteOrphanUserRoles = `DELETE FROM user_roles ur
WHERE NOT EXISTS (SELECT 1 FROM users u WHERE u.id = ur.user_id)
   OR NOT EXISTS (SELECT 1 FROM roles r WHERE r.id = ur.role_id)`
	deleteOrphanModuleDocuments = `DELETE FROM module_documents md
WHERE NOT EXISTS (SELECT 1 FROM modules m WHERE m.id = md.module_id)
   OR NOT EXISTS (SELECT 1 FROM documents d WHERE d.id = md.document_id)`
)

// MaintenanceRepository removes rows whose referenced principal, document or module is gone.
type MaintenanceRepository struct {
	db *sqlx.DB
}

// NewMaintenanceRepository constructs a MaintenanceRepository.
func NewMaintenanceRepository(db *sqlx.DB) *MaintenanceRepository {
	return &MaintenanceRepository{db: db}
}

// DeleteOrphans sweeps the join and permission tables in a single transaction.
func (r *MaintenanceRepository) DeleteOrphans(ctx context.Context) (counts OrphanCounts, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return counts, fmt.Errorf("begin orphan sweep: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	steps := []struct {
		label string
		query string
		dest  *int64
	}{
		{"permissions", deleteOrphanPermissions, &counts.Permissions},
		{"user roles", deleteOrphanUserRoles, &counts.UserRoles},
		{"module documents", deleteOrphanModuleDocuments, &counts.ModuleDocuments},
	}
	for _, step := range steps {
		res, execErr := tx.ExecContext(ctx, step.query)
		if execErr != nil {
			err = fmt.Errorf("sweep orphan %s: %w", step.label, execErr)
			return OrphanCounts{}, err
		}
		if *step.dest, err = res.RowsAffected(); err != nil {
			err = fmt.Errorf("sweep orphan %s rows affected: %w", step.label, err)
			return OrphanCounts{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return OrphanCounts{}, fmt.Errorf("commit orphan sweep: %w", err)
	}
	return counts, nil
}
