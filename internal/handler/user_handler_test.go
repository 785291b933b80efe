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
	"github.com/noah-isme/hospital-admin-api/internal/service"
	appErrors "github.com/noah-isme/hospital-admin-api/pkg/errors"
)

type userServiceMock struct {
	filter     models.UserFilter
	created    service.CreateUserRequest
	actor      models.Actor
	assigned   [2]string
	unassigned [2]string
	err        error
}

func (m *userServiceMock) List(_ context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	m.filter = filter
	return []models.User{{ID: "user-1", Username: "dr.house"}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (m *userServiceMock) Get(_ context.Context, id string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.User{ID: id, Username: "dr.house"}, nil
}

func (m *userServiceMock) Create(_ context.Context, req service.CreateUserRequest, actor models.Actor) (*models.User, error) {
	m.created = req
	m.actor = actor
	if m.err != nil {
		return nil, m.err
	}
	return &models.User{ID: "user-2", Username: req.Username}, nil
}

func (m *userServiceMock) Update(_ context.Context, id string, req service.UpdateUserRequest, actor models.Actor) (*models.User, error) {
	m.actor = actor
	return &models.User{ID: id}, m.err
}

func (m *userServiceMock) Delete(_ context.Context, _ string, actor models.Actor) error {
	m.actor = actor
	return m.err
}

func (m *userServiceMock) ListRoles(context.Context, string) ([]models.Role, error) {
	return []models.Role{{ID: "role-doctor", Name: "Doctor"}}, m.err
}

func (m *userServiceMock) AssignRole(_ context.Context, userID, roleID string, _ models.Actor) (*models.Role, error) {
	m.assigned = [2]string{userID, roleID}
	if m.err != nil {
		return nil, m.err
	}
	return &models.Role{ID: roleID, Name: "Doctor"}, nil
}

func (m *userServiceMock) UnassignRole(_ context.Context, userID, roleID string, _ models.Actor) error {
	m.unassigned = [2]string{userID, roleID}
	return m.err
}

func TestUserHandlerListParsesFilter(t *testing.T) {
	svc := &userServiceMock{}
	handler := NewUserHandler(svc)

	c, rec := newTestContext(t, http.MethodGet, "/users?page=2&page_size=5&active=true&search=house&sort_by=username&sort_order=desc", nil, adminClaims)
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.filter.Active)
	assert.True(t, *svc.filter.Active)
	assert.Equal(t, 2, svc.filter.Page)
	assert.Equal(t, 5, svc.filter.PageSize)
	assert.Equal(t, "house", svc.filter.Search)
	assert.Equal(t, "username", svc.filter.SortBy)
	assert.Equal(t, "desc", svc.filter.SortOrder)

	var envelope listEnvelope
	decode(t, rec, &envelope)
	require.Len(t, envelope.Data, 1)
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 1, envelope.Pagination.TotalCount)
}

func TestUserHandlerListIgnoresBadActiveFlag(t *testing.T) {
	svc := &userServiceMock{}
	handler := NewUserHandler(svc)

	c, _ := newTestContext(t, http.MethodGet, "/users?active=maybe", nil, adminClaims)
	handler.List(c)

	assert.Nil(t, svc.filter.Active)
}

func TestUserHandlerCreate(t *testing.T) {
	svc := &userServiceMock{}
	handler := NewUserHandler(svc)

	c, rec := newTestContext(t, http.MethodPost, "/users", map[string]interface{}{
		"username": "dr.wilson",
		"email":    "wilson@ppth.example",
		"fullName": "James Wilson",
		"password": "oncology1",
	}, adminClaims)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "dr.wilson", svc.created.Username)
	assert.Equal(t, "user-admin", svc.actor.UserID)
}

func TestUserHandlerCreateRequiresClaims(t *testing.T) {
	handler := NewUserHandler(&userServiceMock{})

	c, rec := newTestContext(t, http.MethodPost, "/users", map[string]string{"username": "x"}, nil)
	handler.Create(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserHandlerConflict(t *testing.T) {
	handler := NewUserHandler(&userServiceMock{err: appErrors.Clone(appErrors.ErrConflict, "username already exists")})

	c, rec := newTestContext(t, http.MethodPost, "/users", map[string]string{"username": "dr.house"}, adminClaims)
	handler.Create(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var envelope errorEnvelope
	decode(t, rec, &envelope)
	assert.Equal(t, "username already exists", envelope.Error.Message)
}

func TestUserHandlerGetNotFound(t *testing.T) {
	handler := NewUserHandler(&userServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "user not found")})

	c, rec := newTestContext(t, http.MethodGet, "/users/missing", nil, adminClaims)
	c.Params = gin.Params{{Key: "userId", Value: "missing"}}
	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserHandlerDelete(t *testing.T) {
	svc := &userServiceMock{}
	handler := NewUserHandler(svc)

	c, rec := newTestContext(t, http.MethodDelete, "/users/user-1", nil, adminClaims)
	c.Params = gin.Params{{Key: "userId", Value: "user-1"}}
	handler.Delete(c)
	c.Writer.WriteHeaderNow() // flush status as the gin engine does after a handler

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user-admin", svc.actor.UserID)
}

func TestUserHandlerRoleAssignment(t *testing.T) {
	svc := &userServiceMock{}
	handler := NewUserHandler(svc)

	c, rec := newTestContext(t, http.MethodPost, "/users/user-1/roles", dto.AssignRoleRequest{RoleID: "role-doctor"}, adminClaims)
	c.Params = gin.Params{{Key: "userId", Value: "user-1"}}
	handler.AssignRole(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [2]string{"user-1", "role-doctor"}, svc.assigned)

	c, rec = newTestContext(t, http.MethodDelete, "/users/user-1/roles/role-doctor", nil, adminClaims)
	c.Params = gin.Params{{Key: "userId", Value: "user-1"}, {Key: "roleId", Value: "role-doctor"}}
	handler.UnassignRole(c)
	c.Writer.WriteHeaderNow() // flush status as the gin engine does after a handler

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, [2]string{"user-1", "role-doctor"}, svc.unassigned)

	c, rec = newTestContext(t, http.MethodGet, "/users/user-1/roles", nil, adminClaims)
	c.Params = gin.Params{{Key: "userId", Value: "user-1"}}
	handler.ListRoles(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope listEnvelope
	decode(t, rec, &envelope)
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "Doctor", envelope.Data[0]["name"])
}
