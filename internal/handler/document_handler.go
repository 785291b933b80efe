package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hospital-admin-api/internal/models"
	"github.com/noah-isme/hospital-admin-api/internal/service"
	"github.com/noah-isme/hospital-admin-api/pkg/response"
)

type documentService interface {
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	Create(ctx context.Context, req service.DocumentRequest, actor models.Actor) (*models.Document, error)
	Update(ctx context.Context, id string, req service.DocumentRequest, actor models.Actor) (*models.Document, error)
	Delete(ctx context.Context, id string, actor models.Actor) error
}

type DocumentHandler struct {
	service documentService
}

func NewDocumentHandler(svc documentService) *DocumentHandler {
	return &DocumentHandler{service: svc}
}

// List godoc
// @Summary List documents
// @Tags Documents
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param active query bool false "Active filter"
// @Param search query string false "Search term"
// @Param path query string false "Exact path"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	filter := models.DocumentFilter{
		Active: boolQuery(c, "active"),
		Search: c.Query("search"),
		Path:   c.Query("path"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	docs, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, pagination)
}

// Get godoc
// @Summary Get document
// @Tags Documents
// @Produce json
// @Param documentId path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /documents/{documentId} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.service.Get(c.Request.Context(), c.Param("documentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Create godoc
// @Summary Create document
// @Tags Documents
// @Accept json
// @Produce json
// @Param payload body service.DocumentRequest true "Document payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.DocumentRequest
	if !bindJSON(c, &req) {
		return
	}

	doc, err := h.service.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// Update godoc
// @Summary Update document
// @Tags Documents
// @Accept json
// @Produce json
// @Param documentId path string true "Document ID"
// @Param payload body service.DocumentRequest true "Document payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /documents/{documentId} [put]
func (h *DocumentHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.DocumentRequest
	if !bindJSON(c, &req) {
		return
	}

	doc, err := h.service.Update(c.Request.Context(), c.Param("documentId"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Delete godoc
// @Summary Delete document
// @Description Delete a document with its module links and grants
// @Tags Documents
// @Param documentId path string true "Document ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /documents/{documentId} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("documentId"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
