package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hospital-admin-api/internal/dto"
	"github.com/noah-isme/hospital-admin-api/internal/handler"
	"github.com/noah-isme/hospital-admin-api/internal/models"
	"github.com/noah-isme/hospital-admin-api/internal/service"
	appErrors "github.com/noah-isme/hospital-admin-api/pkg/errors"
)

type stubTokens map[string]*models.JWTClaims

func (s stubTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type grantChecker map[string]bool

func (g grantChecker) Can(_ context.Context, userID, path string, action models.Capability) (bool, error) {
	return g[userID+" "+path+" "+string(action)], nil
}

type stubNavigation struct{}

func (stubNavigation) Build(context.Context, string) ([]dto.NavigationModule, bool, error) {
	return []dto.NavigationModule{}, false, nil
}

type stubPermissions struct{}

func (stubPermissions) ListEffectivePermissions(context.Context, string) ([]models.EffectivePermission, error) {
	return []models.EffectivePermission{}, nil
}

type stubRoles struct{}

func (stubRoles) List(_ context.Context, _ models.RoleFilter) ([]models.Role, *models.Pagination, error) {
	return []models.Role{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}
func (stubRoles) Get(context.Context, string) (*models.Role, error) { return &models.Role{}, nil }
func (stubRoles) Create(context.Context, service.RoleRequest, models.Actor) (*models.Role, error) {
	return &models.Role{}, nil
}
func (stubRoles) Update(context.Context, string, service.RoleRequest, models.Actor) (*models.Role, error) {
	return &models.Role{}, nil
}
func (stubRoles) Delete(context.Context, string, models.Actor) error { return nil }

func newTestEngine(checker grantChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	tokens := stubTokens{
		"nurse-token": {UserID: "user-nurse", Username: "nurse.joy"},
		"admin-token": {UserID: "user-admin", Username: "admin"},
	}
	metrics := service.NewMetricsService()
	return New(Handlers{
		Auth:        handler.NewAuthHandler(nil),
		Users:       handler.NewUserHandler(nil),
		Roles:       handler.NewRoleHandler(stubRoles{}),
		Modules:     handler.NewModuleHandler(nil),
		Documents:   handler.NewDocumentHandler(nil),
		Permissions: handler.NewPermissionHandler(nil),
		Navigation:  handler.NewNavigationHandler(stubNavigation{}, stubPermissions{}),
		Exports:     handler.NewExportHandler(nil),
		Metrics:     handler.NewMetricsHandler(metrics, nil),
	}, Options{Tokens: tokens, Access: checker, Observer: metrics, EnableMetrics: true})
}

func serve(engine *gin.Engine, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestRouterOpsEndpoints(t *testing.T) {
	engine := newTestEngine(grantChecker{})

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/ready", "").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/docs/index.html", "").Code)
}

func TestRouterRequiresToken(t *testing.T) {
	engine := newTestEngine(grantChecker{})

	rec := serve(engine, http.MethodGet, "/api/roles", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(engine, http.MethodGet, "/api/roles", "forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterGuardsAdminSurface(t *testing.T) {
	engine := newTestEngine(grantChecker{
		"user-admin " + RolesDocument + " query": true,
	})

	rec := serve(engine, http.MethodGet, "/api/roles", "nurse-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing query permission on /admin/roles")

	rec = serve(engine, http.MethodGet, "/api/roles", "admin-token")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(engine, http.MethodDelete, "/api/roles/role-1", "admin-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterSelfServiceNavigation(t *testing.T) {
	engine := newTestEngine(grantChecker{})

	rec := serve(engine, http.MethodGet, "/api/users/user-nurse/navigation", "nurse-token")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(engine, http.MethodGet, "/api/users/user-nurse/permissions", "nurse-token")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(engine, http.MethodGet, "/api/users/user-admin/navigation", "nurse-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterLabelsMetricsByRouteTemplate(t *testing.T) {
	engine := newTestEngine(grantChecker{})
	serve(engine, http.MethodGet, "/api/users/user-nurse/navigation", "nurse-token")

	rec := serve(engine, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `path="/api/users/:userId/navigation"`)
	assert.NotContains(t, rec.Body.String(), `path="/api/users/user-nurse/navigation"`)
}
