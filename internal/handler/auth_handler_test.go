package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hospital-admin-api/internal/dto"
	"github.com/noah-isme/hospital-admin-api/internal/models"
	appErrors "github.com/noah-isme/hospital-admin-api/pkg/errors"
)

type authServiceMock struct {
	loginReq    models.LoginRequest
	loginErr    error
	logoutErr   error
	logoutActor models.Actor
	logoutToken string
	changeActor models.Actor
	me          *dto.MeResponse
	meHit       bool
}

func (m *authServiceMock) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.loginReq = req
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return &models.LoginResponse{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 900}, nil
}

func (m *authServiceMock) RefreshToken(_ context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "access-2", RefreshToken: req.RefreshToken + "-next"}, nil
}

func (m *authServiceMock) Logout(_ context.Context, token string, actor models.Actor) error {
	m.logoutToken = token
	m.logoutActor = actor
	return m.logoutErr
}

func (m *authServiceMock) ChangePassword(_ context.Context, _ models.ChangePasswordRequest, actor models.Actor) error {
	m.changeActor = actor
	return nil
}

func (m *authServiceMock) Me(context.Context, string) (*dto.MeResponse, bool, error) {
	return m.me, m.meHit, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	svc := &authServiceMock{}
	handler := NewAuthHandler(svc)

	c, rec := newTestContext(t, http.MethodPost, "/auth/login", models.LoginRequest{Login: "dr.house", Password: "secret"}, nil)
	handler.Login(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	decode(t, rec, &envelope)
	assert.Equal(t, "access", envelope.Data["accessToken"])
	assert.Equal(t, "dr.house", svc.loginReq.Login)
	assert.Equal(t, "handler-test", svc.loginReq.UserAgent)
	assert.NotEmpty(t, svc.loginReq.IP)
}

func TestAuthHandlerLoginInvalidPayload(t *testing.T) {
	handler := NewAuthHandler(&authServiceMock{})

	c, rec := newTestContext(t, http.MethodPost, "/auth/login", "{not json", nil)
	handler.Login(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var envelope errorEnvelope
	decode(t, rec, &envelope)
	assert.Equal(t, appErrors.ErrValidation.Code, envelope.Error.Code)
}

func TestAuthHandlerLoginFailure(t *testing.T) {
	handler := NewAuthHandler(&authServiceMock{loginErr: appErrors.ErrInvalidCredentials})

	c, rec := newTestContext(t, http.MethodPost, "/auth/login", models.LoginRequest{Login: "x", Password: "y"}, nil)
	handler.Login(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandlerRefresh(t *testing.T) {
	handler := NewAuthHandler(&authServiceMock{})

	c, rec := newTestContext(t, http.MethodPost, "/auth/refresh", models.RefreshTokenRequest{RefreshToken: "tok"}, nil)
	handler.Refresh(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	decode(t, rec, &envelope)
	assert.Equal(t, "tok-next", envelope.Data["refreshToken"])
}

func TestAuthHandlerLogout(t *testing.T) {
	t.Run("requires claims", func(t *testing.T) {
		handler := NewAuthHandler(&authServiceMock{})
		c, rec := newTestContext(t, http.MethodPost, "/auth/logout", models.LogoutRequest{RefreshToken: "tok"}, nil)
		handler.Logout(c)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("passes actor", func(t *testing.T) {
		svc := &authServiceMock{}
		handler := NewAuthHandler(svc)
		c, rec := newTestContext(t, http.MethodPost, "/auth/logout", models.LogoutRequest{RefreshToken: "tok"}, adminClaims)
		handler.Logout(c)
		c.Writer.WriteHeaderNow() // flush status as the gin engine does after a handler
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "tok", svc.logoutToken)
		assert.Equal(t, "user-admin", svc.logoutActor.UserID)
		assert.Equal(t, "admin", svc.logoutActor.Username)
	})

	t.Run("foreign token", func(t *testing.T) {
		handler := NewAuthHandler(&authServiceMock{logoutErr: appErrors.ErrForbidden})
		c, rec := newTestContext(t, http.MethodPost, "/auth/logout", models.LogoutRequest{RefreshToken: "tok"}, adminClaims)
		handler.Logout(c)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestAuthHandlerChangePassword(t *testing.T) {
	svc := &authServiceMock{}
	handler := NewAuthHandler(svc)

	c, rec := newTestContext(t, http.MethodPost, "/auth/change-password",
		models.ChangePasswordRequest{OldPassword: "old-secret", NewPassword: "new-secret"}, adminClaims)
	handler.ChangePassword(c)
	c.Writer.WriteHeaderNow() // flush status as the gin engine does after a handler

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user-admin", svc.changeActor.UserID)
}

func TestAuthHandlerMe(t *testing.T) {
	handler := NewAuthHandler(&authServiceMock{
		me: &dto.MeResponse{
			User:       models.UserInfo{ID: "user-admin", Username: "admin"},
			Superadmin: true,
			Navigation: []dto.NavigationModule{},
		},
		meHit: true,
	})

	c, rec := newTestContext(t, http.MethodGet, "/auth/me", nil, adminClaims)
	handler.Me(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	decode(t, rec, &envelope)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Equal(t, true, envelope.Data["superadmin"])
}
