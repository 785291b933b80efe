package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/hospital-admin-api/internal/models"
	appErrors "github.com/noah-isme/hospital-admin-api/pkg/errors"
)

type permissionStore interface {
	FindByID(ctx context.Context, id string) (*models.Permission, error)
	FindByTargetAndDocument(ctx context.Context, target models.PermissionTarget, documentID string) (*models.Permission, error)
	ListByRole(ctx context.Context, roleID string) ([]models.Permission, error)
	Create(ctx context.Context, p *models.Permission) error
	Update(ctx context.Context, p *models.Permission) error
	Delete(ctx context.Context, id string) error
}

// PermissionRequest is the payload for creating or replacing a permission.
// Exactly one of UserID and RoleID must be set.
type PermissionRequest struct {
	UserID     *string `json:"userId"`
	RoleID     *string `json:"roleId"`
	DocumentID string  `json:"documentId" validate:"required"`
	CanAdd     bool    `json:"canAdd"`
	CanModify  bool    `json:"canModify"`
	CanDelete  bool    `json:"canDelete"`
	CanQuery   bool    `json:"canQuery"`
}

// Target converts the userId/roleId pair into a permission target.
func (r PermissionRequest) Target() (models.PermissionTarget, error) {
	userID := trimmed(r.UserID)
	roleID := trimmed(r.RoleID)
	switch {
	case userID != "" && roleID != "":
		return models.PermissionTarget{}, appErrors.Clone(appErrors.ErrValidation, "permission must target either userId or roleId, not both")
	case userID != "":
		return models.UserTarget(userID), nil
	case roleID != "":
		return models.RoleTarget(roleID), nil
	default:
		return models.PermissionTarget{}, appErrors.Clone(appErrors.ErrValidation, "permission requires userId or roleId")
	}
}

// Capabilities returns the requested flags.
func (r PermissionRequest) Capabilities() models.Capabilities {
	return models.Capabilities{CanAdd: r.CanAdd, CanModify: r.CanModify, CanDelete: r.CanDelete, CanQuery: r.CanQuery}
}

func trimmed(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

// PermissionServiceParams groups constructor dependencies.
type PermissionServiceParams struct {
	Store      permissionStore
	Users      userFinder
	Roles      roleFinder
	Documents  documentFinder
	Audit      auditRecorder
	Navigation navigationInvalidator
	Validator  *validator.Validate
	Logger     *zap.Logger
}

// PermissionService manages raw permission rows.
type PermissionService struct {
	store      permissionStore
	users      userFinder
	roles      roleFinder
	documents  documentFinder
	audit      auditRecorder
	navigation navigationInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewPermissionService constructs a PermissionService.
func NewPermissionService(params PermissionServiceParams) *PermissionService {
	s := &PermissionService{
		store:      params.Store,
		users:      params.Users,
		roles:      params.Roles,
		documents:  params.Documents,
		audit:      params.Audit,
		navigation: params.Navigation,
		validator:  params.Validator,
		logger:     params.Logger,
	}
	if s.audit == nil {
		s.audit = noopAudit{}
	}
	if s.navigation == nil {
		s.navigation = noopInvalidator{}
	}
	if s.validator == nil {
		s.validator = validator.New()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Get returns a permission by id.
func (s *PermissionService) Get(ctx context.Context, id string) (*models.Permission, error) {
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "permission")
	}
	return p, nil
}

// ListByRole returns the unmerged permission rows of roleID.
func (s *PermissionService) ListByRole(ctx context.Context, roleID string) ([]models.Permission, error) {
	if _, err := s.roles.FindByID(ctx, roleID); err != nil {
		return nil, lookupError(err, "role")
	}
	perms, err := s.store.ListByRole(ctx, roleID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list role permissions")
	}
	return perms, nil
}

// Create stores a new permission for a user or a role.
func (s *PermissionService) Create(ctx context.Context, req PermissionRequest, actor models.Actor) (*models.Permission, error) {
	target, err := s.validate(ctx, req, "")
	if err != nil {
		return nil, err
	}

	p := &models.Permission{Target: target, DocumentID: req.DocumentID, Capabilities: req.Capabilities()}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, writeError(err, "failed to create permission", "permission already exists for this principal and document")
	}

	s.audit.Record(ctx, AuditEntry{
		Table:     "permissions",
		RecordID:  p.ID,
		Operation: models.AuditCreate,
		Type:      "permission.create",
		New:       p,
		Actor:     actor,
	})
	s.navigation.Invalidate(ctx)
	return p, nil
}

// Update replaces the target, document and flags of permission id.
func (s *PermissionService) Update(ctx context.Context, id string, req PermissionRequest, actor models.Actor) (*models.Permission, error) {
	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "permission")
	}
	target, err := s.validate(ctx, req, id)
	if err != nil {
		return nil, err
	}

	before := *existing
	existing.Target = target
	existing.DocumentID = req.DocumentID
	existing.Capabilities = req.Capabilities()
	if err := s.store.Update(ctx, existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "permission not found")
		}
		return nil, writeError(err, "failed to update permission", "permission already exists for this principal and document")
	}

	s.audit.Record(ctx, AuditEntry{
		Table:     "permissions",
		RecordID:  id,
		Operation: models.AuditUpdate,
		Type:      "permission.update",
		Old:       before,
		New:       existing,
		Actor:     actor,
	})
	s.navigation.Invalidate(ctx)
	return existing, nil
}

// Delete removes permission id.
func (s *PermissionService) Delete(ctx context.Context, id string, actor models.Actor) error {
	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "permission")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "permission not found")
		}
		return appErrors.Internal(err, "failed to delete permission")
	}

	s.audit.Record(ctx, AuditEntry{
		Table:     "permissions",
		RecordID:  id,
		Operation: models.AuditDelete,
		Type:      "permission.delete",
		Old:       existing,
		Actor:     actor,
	})
	s.navigation.Invalidate(ctx)
	return nil
}

// validate checks the payload, the referenced principal and document, and uniqueness of the
// (principal, document) pair. selfID is excluded from the uniqueness check on update.
func (s *PermissionService) validate(ctx context.Context, req PermissionRequest, selfID string) (models.PermissionTarget, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.PermissionTarget{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid permission payload")
	}
	target, err := req.Target()
	if err != nil {
		return models.PermissionTarget{}, err
	}

	switch target.Kind() {
	case models.PrincipalUser:
		if _, err := s.users.FindByID(ctx, target.ID()); err != nil {
			return models.PermissionTarget{}, lookupError(err, "user")
		}
	case models.PrincipalRole:
		if _, err := s.roles.FindByID(ctx, target.ID()); err != nil {
			return models.PermissionTarget{}, lookupError(err, "role")
		}
	}
	if _, err := s.documents.FindByID(ctx, req.DocumentID); err != nil {
		return models.PermissionTarget{}, lookupError(err, "document")
	}

	existing, err := s.store.FindByTargetAndDocument(ctx, target, req.DocumentID)
	switch {
	case err == nil && existing.ID != selfID:
		return models.PermissionTarget{}, appErrors.Clone(appErrors.ErrConflict, "permission already exists for this principal and document")
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return models.PermissionTarget{}, appErrors.Internal(err, "failed to check permission uniqueness")
	}
	return target, nil
}
