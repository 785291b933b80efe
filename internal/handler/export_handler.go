package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hospital-admin-api/internal/models"
	"github.com/noah-isme/hospital-admin-api/internal/service"
	"github.com/noah-isme/hospital-admin-api/pkg/response"
)

type exportService interface {
	ExportRolePermissions(ctx context.Context, roleID, format string, actor models.Actor) (*service.ExportFile, error)
	ExportUserPermissions(ctx context.Context, userID, format string, actor models.Actor) (*service.ExportFile, error)
}

// ExportHandler streams permission matrices as CSV, PDF or XLSX.
type ExportHandler struct {
	service exportService
}

// NewExportHandler creates an ExportHandler.
func NewExportHandler(svc exportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// RolePermissions godoc
// @Summary Export role permissions
// @Tags Exports
// @Produce octet-stream
// @Param roleId path string true "Role ID"
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /roles/{roleId}/permissions/export [get]
func (h *ExportHandler) RolePermissions(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	file, err := h.service.ExportRolePermissions(c.Request.Context(), c.Param("roleId"), c.DefaultQuery("format", "csv"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}

// UserPermissions godoc
// @Summary Export effective permissions of a user
// @Tags Exports
// @Produce octet-stream
// @Param userId path string true "User ID"
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /users/{userId}/permissions/export [get]
func (h *ExportHandler) UserPermissions(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	file, err := h.service.ExportUserPermissions(c.Request.Context(), c.Param("userId"), c.DefaultQuery("format", "csv"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}
