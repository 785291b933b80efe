package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hospital-admin-api/internal/dto"
	"github.com/noah-isme/hospital-admin-api/internal/models"
	appErrors "github.com/noah-isme/hospital-admin-api/pkg/errors"
)

type navigationServiceMock struct {
	userID string
	tree   []dto.NavigationModule
	hit    bool
	err    error
}

func (m *navigationServiceMock) Build(_ context.Context, userID string) ([]dto.NavigationModule, bool, error) {
	m.userID = userID
	return m.tree, m.hit, m.err
}

type effectivePermissionsMock struct {
	perms []models.EffectivePermission
}

func (m *effectivePermissionsMock) ListEffectivePermissions(context.Context, string) ([]models.EffectivePermission, error) {
	return m.perms, nil
}

type navigationEnvelope struct {
	Data []dto.NavigationModule `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}

func TestNavigationHandlerNavigation(t *testing.T) {
	nav := &navigationServiceMock{
		tree: []dto.NavigationModule{{
			ID:   "mod-patients",
			Name: "Patient Management",
			Documents: []dto.NavigationDocument{{
				ID: "doc-patient-list", Name: "Patient List", Path: "/patients",
				Permissions: models.Capabilities{CanQuery: true},
			}},
		}},
		hit: true,
	}
	handler := NewNavigationHandler(nav, &effectivePermissionsMock{})

	c, rec := newTestContext(t, http.MethodGet, "/users/user-doctor/navigation", nil, adminClaims)
	c.Params = gin.Params{{Key: "userId", Value: "user-doctor"}}
	handler.Navigation(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-doctor", nav.userID)

	var envelope navigationEnvelope
	decode(t, rec, &envelope)
	require.Len(t, envelope.Data, 1)
	require.Len(t, envelope.Data[0].Documents, 1)
	assert.True(t, envelope.Data[0].Documents[0].Permissions.CanQuery)
	assert.False(t, envelope.Data[0].Documents[0].Permissions.CanDelete)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
}

func TestNavigationHandlerEmptyTreeIsArray(t *testing.T) {
	handler := NewNavigationHandler(&navigationServiceMock{tree: []dto.NavigationModule{}}, &effectivePermissionsMock{})

	c, rec := newTestContext(t, http.MethodGet, "/users/user-1/navigation", nil, adminClaims)
	c.Params = gin.Params{{Key: "userId", Value: "user-1"}}
	handler.Navigation(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestNavigationHandlerUnknownUser(t *testing.T) {
	handler := NewNavigationHandler(&navigationServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "user not found")}, &effectivePermissionsMock{})

	c, rec := newTestContext(t, http.MethodGet, "/users/ghost/navigation", nil, adminClaims)
	c.Params = gin.Params{{Key: "userId", Value: "ghost"}}
	handler.Navigation(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNavigationHandlerPermissions(t *testing.T) {
	handler := NewNavigationHandler(&navigationServiceMock{}, &effectivePermissionsMock{perms: []models.EffectivePermission{
		{DocumentID: "doc-patient-list", Capabilities: models.Capabilities{CanQuery: true, CanModify: true}},
	}})

	c, rec := newTestContext(t, http.MethodGet, "/users/user-doctor/permissions", nil, adminClaims)
	c.Params = gin.Params{{Key: "userId", Value: "user-doctor"}}
	handler.Permissions(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope listEnvelope
	decode(t, rec, &envelope)
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "doc-patient-list", envelope.Data[0]["documentId"])
	assert.Equal(t, true, envelope.Data[0]["canModify"])
	assert.Equal(t, false, envelope.Data[0]["canAdd"])
}
