package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/hospital-admin-api/internal/models"
)

const moduleColumns = `id, name, description, display_order, active, created_at, updated_at`

// ModuleRepository manages navigation modules.
type ModuleRepository struct {
	db *sqlx.DB
}

// NewModuleRepository constructs a ModuleRepository.
func NewModuleRepository(db *sqlx.DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

// FindByID returns a module by id.
func (r *ModuleRepository) FindByID(ctx context.Context, id string) (*models.Module, error) {
	var module models.Module
	if err := r.db.GetContext(ctx, &module, `SELECT `+moduleColumns+` FROM modules WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find module: %w", err)
	}
	return &module, nil
}

// FindByName returns a module by its unique name.
func (r *ModuleRepository) FindByName(ctx context.Context, name string) (*models.Module, error) {
	var module models.Module
	if err := r.db.GetContext(ctx, &module, `SELECT `+moduleColumns+` FROM modules WHERE name = $1`, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find module by name: %w", err)
	}
	return &module, nil
}

// ListActive returns every active module ordered for presentation.
func (r *ModuleRepository) ListActive(ctx context.Context) ([]models.Module, error) {
	var modules []models.Module
	query := `SELECT ` + moduleColumns + ` FROM modules WHERE active = TRUE ORDER BY display_order ASC, name ASC`
	if err := r.db.SelectContext(ctx, &modules, query); err != nil {
		return nil, fmt.Errorf("list active modules: %w", err)
	}
	return modules, nil
}

// List returns modules matching the filter.
func (r *ModuleRepository) List(ctx context.Context, filter models.ModuleFilter) ([]models.Module, int, error) {
	base := `FROM modules WHERE 1=1`
	var args []interface{}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		base += fmt.Sprintf(" AND active = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		base += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args))
	}
	limit, offset := pageBounds(filter.Page, filter.PageSize)

	var modules []models.Module
	query := fmt.Sprintf("SELECT %s %s ORDER BY display_order ASC, name ASC LIMIT %d OFFSET %d", moduleColumns, base, limit, offset)
	if err := r.db.SelectContext(ctx, &modules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list modules: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count modules: %w", err)
	}
	return modules, total, nil
}

// Create inserts a module.
func (r *ModuleRepository) Create(ctx context.Context, module *models.Module) error {
	if module.ID == "" {
		module.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	module.CreatedAt = now
	module.UpdatedAt = now
	const query = `INSERT INTO modules (id, name, description, display_order, active, created_at, updated_at) VALUES (:id, :name, :description, :display_order, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, module); err != nil {
		return fmt.Errorf("create module: %w", err)
	}
	return nil
}

// Update persists mutable module fields.
func (r *ModuleRepository) Update(ctx context.Context, module *models.Module) error {
	module.UpdatedAt = time.Now().UTC()
	const query = `UPDATE modules SET name = :name, description = :description, display_order = :display_order, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, module); err != nil {
		return fmt.Errorf("update module: %w", err)
	}
	return nil
}

// Delete removes the module and its document links.
func (r *ModuleRepository) Delete(ctx context.Context, id string) error {
	return deleteWithDependents(ctx, r.db, "module", id, []string{
		`DELETE FROM module_documents WHERE module_id = $1`,
	}, `DELETE FROM modules WHERE id = $1`)
}
