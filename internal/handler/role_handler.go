package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hospital-admin-api/internal/models"
	"github.com/noah-isme/hospital-admin-api/internal/service"
	"github.com/noah-isme/hospital-admin-api/pkg/response"
)

type roleService interface {
	List(ctx context.Context, filter models.RoleFilter) ([]models.Role, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Role, error)
	Create(ctx context.Context, req service.RoleRequest, actor models.Actor) (*models.Role, error)
	Update(ctx context.Context, id string, req service.RoleRequest, actor models.Actor) (*models.Role, error)
	Delete(ctx context.Context, id string, actor models.Actor) error
}

// RoleHandler exposes role management.
type RoleHandler struct {
	service roleService
}

// NewRoleHandler creates a RoleHandler.
func NewRoleHandler(svc roleService) *RoleHandler {
	return &RoleHandler{service: svc}
}

// List godoc
// @Summary List roles
// @Tags Roles
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param active query bool false "Active filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /roles [get]
func (h *RoleHandler) List(c *gin.Context) {
	filter := models.RoleFilter{Active: boolQuery(c, "active"), Search: c.Query("search")}
	filter.Page, filter.PageSize = pageParams(c)

	roles, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roles, pagination)
}

// Get godoc
// @Summary Get role
// @Tags Roles
// @Produce json
// @Param roleId path string true "Role ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /roles/{roleId} [get]
func (h *RoleHandler) Get(c *gin.Context) {
	role, err := h.service.Get(c.Request.Context(), c.Param("roleId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, role, nil)
}

// Create godoc
// @Summary Create role
// @Tags Roles
// @Accept json
// @Produce json
// @Param payload body service.RoleRequest true "Role payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /roles [post]
func (h *RoleHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.RoleRequest
	if !bindJSON(c, &req) {
		return
	}

	role, err := h.service.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, role)
}

// Update godoc
// @Summary Update role
// @Tags Roles
// @Accept json
// @Produce json
// @Param roleId path string true "Role ID"
// @Param payload body service.RoleRequest true "Role payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /roles/{roleId} [put]
func (h *RoleHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.RoleRequest
	if !bindJSON(c, &req) {
		return
	}

	role, err := h.service.Update(c.Request.Context(), c.Param("roleId"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, role, nil)
}

// Delete godoc
// @Summary Delete role
// @Description Delete a role with its assignments and grants
// @Tags Roles
// @Param roleId path string true "Role ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /roles/{roleId} [delete]
func (h *RoleHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("roleId"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
