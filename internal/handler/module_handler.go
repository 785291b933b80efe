package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hospital-admin-api/internal/dto"
	"github.com/noah-isme/hospital-admin-api/internal/models"
	"github.com/noah-isme/hospital-admin-api/internal/service"
	"github.com/noah-isme/hospital-admin-api/pkg/response"
)

type moduleService interface {
	List(ctx context.Context, filter models.ModuleFilter) ([]models.Module, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Module, error)
	Create(ctx context.Context, req service.ModuleRequest, actor models.Actor) (*models.Module, error)
	Update(ctx context.Context, id string, req service.ModuleRequest, actor models.Actor) (*models.Module, error)
	Delete(ctx context.Context, id string, actor models.Actor) error
	ListDocuments(ctx context.Context, moduleID string) ([]models.Document, error)
	LinkDocument(ctx context.Context, moduleID, documentID string, actor models.Actor) (*models.Document, error)
	UnlinkDocument(ctx context.Context, moduleID, documentID string, actor models.Actor) error
}

// ModuleHandler exposes module management and module/document links.
type ModuleHandler struct {
	service moduleService
}

// NewModuleHandler creates a ModuleHandler.
func NewModuleHandler(svc moduleService) *ModuleHandler {
	return &ModuleHandler{service: svc}
}

// List godoc
// @Summary List modules
// @Tags Modules
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param active query bool false "Active filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /modules [get]
func (h *ModuleHandler) List(c *gin.Context) {
	filter := models.ModuleFilter{Active: boolQuery(c, "active"), Search: c.Query("search")}
	filter.Page, filter.PageSize = pageParams(c)

	modules, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, modules, pagination)
}

// Get godoc
// @Summary Get module
// @Tags Modules
// @Produce json
// @Param moduleId path string true "Module ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /modules/{moduleId} [get]
func (h *ModuleHandler) Get(c *gin.Context) {
	module, err := h.service.Get(c.Request.Context(), c.Param("moduleId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, module, nil)
}

// Create godoc
// @Summary Create module
// @Tags Modules
// @Accept json
// @Produce json
// @Param payload body service.ModuleRequest true "Module payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /modules [post]
func (h *ModuleHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.ModuleRequest
	if !bindJSON(c, &req) {
		return
	}

	module, err := h.service.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, module)
}

// Update godoc
// @Summary Update module
// @Tags Modules
// @Accept json
// @Produce json
// @Param moduleId path string true "Module ID"
// @Param payload body service.ModuleRequest true "Module payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /modules/{moduleId} [put]
func (h *ModuleHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.ModuleRequest
	if !bindJSON(c, &req) {
		return
	}

	module, err := h.service.Update(c.Request.Context(), c.Param("moduleId"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, module, nil)
}

// Delete godoc
// @Summary Delete module
// @Tags Modules
// @Param moduleId path string true "Module ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /modules/{moduleId} [delete]
func (h *ModuleHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("moduleId"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListDocuments godoc
// @Summary List documents linked into a module
// @Tags Modules
// @Produce json
// @Param moduleId path string true "Module ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /modules/{moduleId}/documents [get]
func (h *ModuleHandler) ListDocuments(c *gin.Context) {
	docs, err := h.service.ListDocuments(c.Request.Context(), c.Param("moduleId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// LinkDocument godoc
// @Summary Link a document into a module
// @Tags Modules
// @Accept json
// @Produce json
// @Param moduleId path string true "Module ID"
// @Param payload body dto.LinkDocumentRequest true "Document to link"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /modules/{moduleId}/documents [post]
func (h *ModuleHandler) LinkDocument(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.LinkDocumentRequest
	if !bindJSON(c, &req) {
		return
	}

	doc, err := h.service.LinkDocument(c.Request.Context(), c.Param("moduleId"), req.DocumentID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// UnlinkDocument godoc
// @Summary Remove a document from a module
// @Tags Modules
// @Param moduleId path string true "Module ID"
// @Param documentId path string true "Document ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /modules/{moduleId}/documents/{documentId} [delete]
func (h *ModuleHandler) UnlinkDocument(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.UnlinkDocument(c.Request.Context(), c.Param("moduleId"), c.Param("documentId"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
