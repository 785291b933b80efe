package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hospital-admin-api/internal/models"
	"github.com/noah-isme/hospital-admin-api/internal/service"
	"github.com/noah-isme/hospital-admin-api/pkg/response"
)

type permissionService interface {
	Get(ctx context.Context, id string) (*models.Permission, error)
	ListByRole(ctx context.Context, roleID string) ([]models.Permission, error)
	Create(ctx context.Context, req service.PermissionRequest, actor models.Actor) (*models.Permission, error)
	Update(ctx context.Context, id string, req service.PermissionRequest, actor models.Actor) (*models.Permission, error)
	Delete(ctx context.Context, id string, actor models.Actor) error
}

// PermissionHandler manages stored grants for users and roles.
type PermissionHandler struct {
	service permissionService
}

// NewPermissionHandler creates a PermissionHandler.
func NewPermissionHandler(svc permissionService) *PermissionHandler {
	return &PermissionHandler{service: svc}
}

// Get godoc
// @Summary Get permission
// @Tags Permissions
// @Produce json
// @Param id path string true "Permission ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /permissions/{id} [get]
func (h *PermissionHandler) Get(c *gin.Context) {
	perm, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, perm, nil)
}

// ListByRole godoc
// @Summary List grants stored for a role
// @Tags Permissions
// @Produce json
// @Param roleId path string true "Role ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /roles/{roleId}/permissions [get]
func (h *PermissionHandler) ListByRole(c *gin.Context) {
	perms, err := h.service.ListByRole(c.Request.Context(), c.Param("roleId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, perms, nil)
}

// Create godoc
// @Summary Create permission
// @Description Grant capabilities on a document to exactly one user or role
// @Tags Permissions
// @Accept json
// @Produce json
// @Param payload body service.PermissionRequest true "Permission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /permissions [post]
func (h *PermissionHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.PermissionRequest
	if !bindJSON(c, &req) {
		return
	}

	perm, err := h.service.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, perm)
}

// Update godoc
// @Summary Replace permission
// @Tags Permissions
// @Accept json
// @Produce json
// @Param id path string true "Permission ID"
// @Param payload body service.PermissionRequest true "Permission payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /permissions/{id} [put]
func (h *PermissionHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.PermissionRequest
	if !bindJSON(c, &req) {
		return
	}

	perm, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, perm, nil)
}

// Delete godoc
// @Summary Delete permission
// @Tags Permissions
// @Param id path string true "Permission ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /permissions/{id} [delete]
func (h *PermissionHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
