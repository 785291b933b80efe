package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/hospital-admin-api/internal/models"
	appErrors "github.com/noah-isme/hospital-admin-api/pkg/errors"
)

type roleRepository interface {
	List(ctx context.Context, filter models.RoleFilter) ([]models.Role, int, error)
	FindByID(ctx context.Context, id string) (*models.Role, error)
	FindByName(ctx context.Context, name string) (*models.Role, error)
	Create(ctx context.Context, role *models.Role) error
	Update(ctx context.Context, role *models.Role) error
	Delete(ctx context.Context, id string) error
}

// RoleRequest is the payload for creating or updating a role.
type RoleRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description *string `json:"description"`
	Active      *bool   `json:"active"`
}

// RoleService manages roles.
type RoleService struct {
	repo       roleRepository
	audit      auditRecorder
	navigation navigationInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewRoleService constructs a RoleService.
func NewRoleService(repo roleRepository, audit auditRecorder, navigation navigationInvalidator, validate *validator.Validate, logger *zap.Logger) *RoleService {
	if audit == nil {
		audit = noopAudit{}
	}
	if navigation == nil {
		navigation = noopInvalidator{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleService{repo: repo, audit: audit, navigation: navigation, validator: validate, logger: logger}
}

// List returns roles with pagination.
func (s *RoleService) List(ctx context.Context, filter models.RoleFilter) ([]models.Role, *models.Pagination, error) {
	roles, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list roles")
	}
	if roles == nil {
		roles = []models.Role{}
	}
	return roles, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a role by id.
func (s *RoleService) Get(ctx context.Context, id string) (*models.Role, error) {
	role, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "role")
	}
	return role, nil
}

// Create adds a role. Names are unique.
func (s *RoleService) Create(ctx context.Context, req RoleRequest, actor models.Actor) (*models.Role, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role payload")
	}
	name := strings.TrimSpace(req.Name)
	if err := s.ensureNameFree(ctx, "", name); err != nil {
		return nil, err
	}

	role := &models.Role{ID: uuid.NewString(), Name: name, Description: req.Description, Active: req.Active == nil || *req.Active}
	if err := s.repo.Create(ctx, role); err != nil {
		return nil, writeError(err, "failed to create role", "role name already exists")
	}
	s.audit.Record(ctx, AuditEntry{Table: "roles", RecordID: role.ID, Operation: models.AuditCreate, Type: "role.create", New: role, Actor: actor})
	return role, nil
}

// Update modifies a role.
func (s *RoleService) Update(ctx context.Context, id string, req RoleRequest, actor models.Actor) (*models.Role, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role payload")
	}
	role, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "role")
	}
	before := *role

	role.Name = strings.TrimSpace(req.Name)
	if role.Name != before.Name {
		if err := s.ensureNameFree(ctx, id, role.Name); err != nil {
			return nil, err
		}
	}
	role.Description = req.Description
	if req.Active != nil {
		role.Active = *req.Active
	}
	if err := s.repo.Update(ctx, role); err != nil {
		return nil, writeError(err, "failed to update role", "role name already exists")
	}

	s.audit.Record(ctx, AuditEntry{Table: "roles", RecordID: id, Operation: models.AuditUpdate, Type: "role.update", Old: before, New: role, Actor: actor})
	s.navigation.Invalidate(ctx)
	return role, nil
}

// Delete removes a role, its assignments and its permissions.
func (s *RoleService) Delete(ctx context.Context, id string, actor models.Actor) error {
	role, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "role")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "role not found")
		}
		return appErrors.Internal(err, "failed to delete role")
	}
	s.audit.Record(ctx, AuditEntry{Table: "roles", RecordID: id, Operation: models.AuditDelete, Type: "role.delete", Old: role, Actor: actor})
	s.navigation.Invalidate(ctx)
	return nil
}

func (s *RoleService) ensureNameFree(ctx context.Context, selfID, name string) error {
	existing, err := s.repo.FindByName(ctx, name)
	switch {
	case err == nil && existing.ID != selfID:
		return appErrors.Clone(appErrors.ErrConflict, "role name already exists")
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return appErrors.Internal(err, "failed to check role name")
	}
	return nil
}
