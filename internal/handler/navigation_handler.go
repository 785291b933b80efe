package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hospital-admin-api/internal/dto"
	"github.com/noah-isme/hospital-admin-api/internal/middleware"
	"github.com/noah-isme/hospital-admin-api/internal/models"
	"github.com/noah-isme/hospital-admin-api/pkg/response"
)

type navigationService interface {
	Build(ctx context.Context, userID string) ([]dto.NavigationModule, bool, error)
}

type effectivePermissionLister interface {
	ListEffectivePermissions(ctx context.Context, userID string) ([]models.EffectivePermission, error)
}

// NavigationHandler serves the per-user navigation tree and merged permissions.
type NavigationHandler struct {
	navigation navigationService
	access     effectivePermissionLister
}

// NewNavigationHandler creates a NavigationHandler.
func NewNavigationHandler(navigation navigationService, access effectivePermissionLister) *NavigationHandler {
	return &NavigationHandler{navigation: navigation, access: access}
}

// Navigation godoc
// @Summary Navigation tree of a user
// @Description Modules and documents the user may query, with merged capability flags
// @Tags Navigation
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /users/{userId}/navigation [get]
func (h *NavigationHandler) Navigation(c *gin.Context) {
	tree, cacheHit, err := h.navigation.Build(c.Request.Context(), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, cacheHit)
	respondWithMeta(c, http.StatusOK, tree)
}

// Permissions godoc
// @Summary Effective permissions of a user
// @Description Role and direct grants OR-merged per document; documents without a grant are omitted
// @Tags Navigation
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /users/{userId}/permissions [get]
func (h *NavigationHandler) Permissions(c *gin.Context) {
	perms, err := h.access.ListEffectivePermissions(c.Request.Context(), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, perms, nil)
}
