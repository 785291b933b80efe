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

type moduleRepository interface {
	List(ctx context.Context, filter models.ModuleFilter) ([]models.Module, int, error)
	FindByID(ctx context.Context, id string) (*models.Module, error)
	FindByName(ctx context.Context, name string) (*models.Module, error)
	Create(ctx context.Context, module *models.Module) error
	Update(ctx context.Context, module *models.Module) error
	Delete(ctx context.Context, id string) error
}

type moduleDocumentRepository interface {
	ListDocumentsByModule(ctx context.Context, moduleID string) ([]models.Document, error)
	Link(ctx context.Context, moduleID, documentID string) (bool, error)
	Unlink(ctx context.Context, moduleID, documentID string) (bool, error)
}

// ModuleRequest is the payload for creating or updating a module.
type ModuleRequest struct {
	Name         string  `json:"name" validate:"required,max=150"`
	Description  *string `json:"description"`
	DisplayOrder int     `json:"displayOrder" validate:"gte=0"`
	Active       *bool   `json:"active"`
}

// ModuleServiceParams groups constructor dependencies.
type ModuleServiceParams struct {
	Modules    moduleRepository
	Links      moduleDocumentRepository
	Documents  documentFinder
	Audit      auditRecorder
	Navigation navigationInvalidator
	Validator  *validator.Validate
	Logger     *zap.Logger
}

// ModuleService manages navigation modules and their document links.
type ModuleService struct {
	repo       moduleRepository
	links      moduleDocumentRepository
	documents  documentFinder
	audit      auditRecorder
	navigation navigationInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewModuleService constructs a ModuleService.
func NewModuleService(params ModuleServiceParams) *ModuleService {
	s := &ModuleService{
		repo:       params.Modules,
		links:      params.Links,
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

// List returns modules with pagination.
func (s *ModuleService) List(ctx context.Context, filter models.ModuleFilter) ([]models.Module, *models.Pagination, error) {
	modules, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list modules")
	}
	if modules == nil {
		modules = []models.Module{}
	}
	return modules, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a module by id.
func (s *ModuleService) Get(ctx context.Context, id string) (*models.Module, error) {
	module, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "module")
	}
	return module, nil
}

// Create adds a module. Names are unique.
func (s *ModuleService) Create(ctx context.Context, req ModuleRequest, actor models.Actor) (*models.Module, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid module payload")
	}
	name := strings.TrimSpace(req.Name)
	if err := s.ensureNameFree(ctx, "", name); err != nil {
		return nil, err
	}
	module := &models.Module{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  req.Description,
		DisplayOrder: req.DisplayOrder,
		Active:       req.Active == nil || *req.Active,
	}
	if err := s.repo.Create(ctx, module); err != nil {
		return nil, writeError(err, "failed to create module", "module name already exists")
	}
	s.audit.Record(ctx, AuditEntry{Table: "modules", RecordID: module.ID, Operation: models.AuditCreate, Type: "module.create", New: module, Actor: actor})
	return module, nil
}

// Update modifies a module.
func (s *ModuleService) Update(ctx context.Context, id string, req ModuleRequest, actor models.Actor) (*models.Module, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid module payload")
	}
	module, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "module")
	}
	before := *module

	module.Name = strings.TrimSpace(req.Name)
	if module.Name != before.Name {
		if err := s.ensureNameFree(ctx, id, module.Name); err != nil {
			return nil, err
		}
	}
	module.Description = req.Description
	module.DisplayOrder = req.DisplayOrder
	if req.Active != nil {
		module.Active = *req.Active
	}
	if err := s.repo.Update(ctx, module); err != nil {
		return nil, writeError(err, "failed to update module", "module name already exists")
	}
	s.audit.Record(ctx, AuditEntry{Table: "modules", RecordID: id, Operation: models.AuditUpdate, Type: "module.update", Old: before, New: module, Actor: actor})
	s.navigation.Invalidate(ctx)
	return module, nil
}

// Delete removes a module and its links. Linked documents are kept.
func (s *ModuleService) Delete(ctx context.Context, id string, actor models.Actor) error {
	module, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "module")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return appErrors.Internal(err, "failed to delete module")
	}
	s.audit.Record(ctx, AuditEntry{Table: "modules", RecordID: id, Operation: models.AuditDelete, Type: "module.delete", Old: module, Actor: actor})
	s.navigation.Invalidate(ctx)
	return nil
}

// ListDocuments returns the documents linked to moduleID.
func (s *ModuleService) ListDocuments(ctx context.Context, moduleID string) ([]models.Document, error) {
	if _, err := s.repo.FindByID(ctx, moduleID); err != nil {
		return nil, lookupError(err, "module")
	}
	docs, err := s.links.ListDocumentsByModule(ctx, moduleID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list module documents")
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return docs, nil
}

// LinkDocument places documentID under moduleID. Linking twice changes nothing.
func (s *ModuleService) LinkDocument(ctx context.Context, moduleID, documentID string, actor models.Actor) (*models.Document, error) {
	if _, err := s.repo.FindByID(ctx, moduleID); err != nil {
		return nil, lookupError(err, "module")
	}
	doc, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		return nil, lookupError(err, "document")
	}
	created, err := s.links.Link(ctx, moduleID, documentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to link document")
	}
	if !created {
		return doc, nil
	}
	s.audit.Record(ctx, AuditEntry{
		Table:     "module_documents",
		RecordID:  moduleID,
		Operation: models.AuditLink,
		Type:      "module.document.link",
		New:       models.ModuleDocument{ModuleID: moduleID, DocumentID: documentID},
		Actor:     actor,
	})
	s.navigation.Invalidate(ctx)
	return doc, nil
}

// UnlinkDocument removes documentID from moduleID.
func (s *ModuleService) UnlinkDocument(ctx context.Context, moduleID, documentID string, actor models.Actor) error {
	removed, err := s.links.Unlink(ctx, moduleID, documentID)
	if err != nil {
		return appErrors.Internal(err, "failed to unlink document")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "module document link not found")
	}
	s.audit.Record(ctx, AuditEntry{
		Table:     "module_documents",
		RecordID:  moduleID,
		Operation: models.AuditUnlink,
		Type:      "module.document.unlink",
		Old:       models.ModuleDocument{ModuleID: moduleID, DocumentID: documentID},
		Actor:     actor,
	})
	s.navigation.Invalidate(ctx)
	return nil
}

func (s *ModuleService) ensureNameFree(ctx context.Context, selfID, name string) error {
	existing, err := s.repo.FindByName(ctx, name)
	switch {
	case err == nil && existing.ID != selfID:
		return appErrors.Clone(appErrors.ErrConflict, "module name already exists")
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return appErrors.Internal(err, "failed to check module name")
	}
	return nil
}
