package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hospital-admin-api/internal/models"
	"github.com/noah-isme/hospital-admin-api/internal/service"
	appErrors "github.com/noah-isme/hospital-admin-api/pkg/errors"
)

type permissionServiceMock struct {
	req      service.PermissionRequest
	updateID string
	err      error
}

func (m *permissionServiceMock) Get(_ context.Context, id string) (*models.Permission, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Permission{ID: id, DocumentID: "doc-patient-list"}, nil
}

func (m *permissionServiceMock) ListByRole(_ context.Context, roleID string) ([]models.Permission, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []models.Permission{{ID: "perm-1", DocumentID: "doc-patient-list"}}, nil
}

func (m *permissionServiceMock) Create(_ context.Context, req service.PermissionRequest, _ models.Actor) (*models.Permission, error) {
	m.req = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.Permission{ID: "perm-new", DocumentID: req.DocumentID}, nil
}

func (m *permissionServiceMock) Update(_ context.Context, id string, req service.PermissionRequest, _ models.Actor) (*models.Permission, error) {
	m.updateID = id
	m.req = req
	return &models.Permission{ID: id, DocumentID: req.DocumentID}, m.err
}

func (m *permissionServiceMock) Delete(context.Context, string, models.Actor) error {
	return m.err
}

func TestPermissionHandlerCreate(t *testing.T) {
	svc := &permissionServiceMock{}
	c, rec := newTestContext(t, http.MethodPost, "/permissions", map[string]interface{}{
		"roleId":     "role-doctor",
		"documentId": "doc-patient-list",
		"canQuery":   true,
	}, adminClaims)
	NewPermissionHandler(svc).Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.req.RoleID)
	assert.Equal(t, "role-doctor", *svc.req.RoleID)
	assert.Nil(t, svc.req.UserID)
	assert.True(t, svc.req.CanQuery)
	assert.False(t, svc.req.CanDelete)
}

func TestPermissionHandlerCreateValidationError(t *testing.T) {
	svc := &permissionServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "permission requires userId or roleId")}
	c, rec := newTestContext(t, http.MethodPost, "/permissions", map[string]interface{}{"documentId": "doc-1"}, adminClaims)
	NewPermissionHandler(svc).Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var envelope errorEnvelope
	decode(t, rec, &envelope)
	assert.Equal(t, "permission requires userId or roleId", envelope.Error.Message)
}

func TestPermissionHandlerUpdateAndDelete(t *testing.T) {
	svc := &permissionServiceMock{}
	handler := NewPermissionHandler(svc)

	c, rec := newTestContext(t, http.MethodPut, "/permissions/perm-1", map[string]interface{}{
		"userId":     "user-1",
		"documentId": "doc-patient-list",
		"canModify":  true,
	}, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "perm-1"}}
	handler.Update(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "perm-1", svc.updateID)
	assert.True(t, svc.req.CanModify)

	c, rec = newTestContext(t, http.MethodDelete, "/permissions/perm-1", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "perm-1"}}
	handler.Delete(c)
	c.Writer.WriteHeaderNow() // flush status as the gin engine does after a handler

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPermissionHandlerListByRole(t *testing.T) {
	c, rec := newTestContext(t, http.MethodGet, "/roles/role-doctor/permissions", nil, adminClaims)
	c.Params = gin.Params{{Key: "roleId", Value: "role-doctor"}}
	NewPermissionHandler(&permissionServiceMock{}).ListByRole(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope listEnvelope
	decode(t, rec, &envelope)
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "doc-patient-list", envelope.Data[0]["documentId"])
}

func TestPermissionHandlerGetNotFound(t *testing.T) {
	c, rec := newTestContext(t, http.MethodGet, "/permissions/nope", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	NewPermissionHandler(&permissionServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "permission not found")}).Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
