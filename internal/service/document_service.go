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

type documentRepository interface {
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error)
	FindByID(ctx context.Context, id string) (*models.Document, error)
	Create(ctx context.Context, doc *models.Document) error
	Update(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, id string) error
}

// DocumentRequest is the payload for creating or updating a document.
type DocumentRequest struct {
	Name         string `json:"name" validate:"required,max=150"`
	Path         string `json:"path" validate:"required,max=255"`
	DisplayOrder int    `json:"displayOrder" validate:"gte=0"`
	Active       *bool  `json:"active"`
}

// DocumentService manages documents.
type DocumentService struct {
	repo       documentRepository
	audit      auditRecorder
	navigation navigationInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(repo documentRepository, audit auditRecorder, navigation navigationInvalidator, validate *validator.Validate, logger *zap.Logger) *DocumentService {
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
	return &DocumentService{repo: repo, audit: audit, navigation: navigation, validator: validate, logger: logger}
}

// List returns documents with pagination.
func (s *DocumentService) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, *models.Pagination, error) {
	docs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list documents")
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return docs, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a document by id.
func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "document")
	}
	return doc, nil
}

// Create adds a document. Paths may repeat.
func (s *DocumentService) Create(ctx context.Context, req DocumentRequest, actor models.Actor) (*models.Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	doc := &models.Document{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Path:         strings.TrimSpace(req.Path),
		DisplayOrder: req.DisplayOrder,
		Active:       req.Active == nil || *req.Active,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, appErrors.Internal(err, "failed to create document")
	}
	s.audit.Record(ctx, AuditEntry{Table: "documents", RecordID: doc.ID, Operation: models.AuditCreate, Type: "document.create", New: doc, Actor: actor})
	return doc, nil
}

// Update modifies a document.
func (s *DocumentService) Update(ctx context.Context, id string, req DocumentRequest, actor models.Actor) (*models.Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "document")
	}
	before := *doc

	doc.Name = strings.TrimSpace(req.Name)
	doc.Path = strings.TrimSpace(req.Path)
	doc.DisplayOrder = req.DisplayOrder
	if req.Active != nil {
		doc.Active = *req.Active
	}
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, appErrors.Internal(err, "failed to update document")
	}
	s.audit.Record(ctx, AuditEntry{Table: "documents", RecordID: id, Operation: models.AuditUpdate, Type: "document.update", Old: before, New: doc, Actor: actor})
	s.navigation.Invalidate(ctx)
	return doc, nil
}

// Delete removes a document with its module links and permissions.
func (s *DocumentService) Delete(ctx context.Context, id string, actor models.Actor) error {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "document")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Internal(err, "failed to delete document")
	}
	s.audit.Record(ctx, AuditEntry{Table: "documents", RecordID: id, Operation: models.AuditDelete, Type: "document.delete", Old: doc, Actor: actor})
	s.navigation.Invalidate(ctx)
	return nil
}
