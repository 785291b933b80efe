package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/hospital-admin-api/internal/dto"
	"github.com/noah-isme/hospital-admin-api/internal/models"
	appErrors "github.com/noah-isme/hospital-admin-api/pkg/errors"
)

type mockAuthRepo struct {
	user                *models.User
	findErr             error
	refreshTokens       map[string]*models.RefreshToken
	createRefreshErr    error
	revokeUserTokensErr error
	lastLoginUpdated    bool
	revokedAll          bool
}

func (m *mockAuthRepo) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.user == nil || (m.user.Username != login && m.user.Email != login) {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.user == nil || m.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.user != nil && m.user.ID == id {
		m.user.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll = true
	return m.revokeUserTokensErr
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func hashPassword(t *testing.T, raw string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestAuthService(repo *mockAuthRepo, audit auditRecorder) *AuthService {
	db := newFakeDB()
	return NewAuthService(AuthServiceParams{
		Users:      repo,
		Access:     newTestAccess(db),
		Navigation: stubNavigation{tree: []dto.NavigationModule{}},
		Audit:      audit,
		Validator:  validator.New(),
		Logger:     zap.NewNop(),
		Config: AuthConfig{
			AccessTokenSecret:  "secret",
			AccessTokenExpiry:  time.Hour,
			RefreshTokenExpiry: 24 * time.Hour,
			Issuer:             "hospital-admin-api",
		},
	})
}

func TestAuthServiceLoginByUsernameOrEmail(t *testing.T) {
	repo := &mockAuthRepo{user: &models.User{ID: "u1", Username: "dr.grey", Email: "grey@hospital.test", PasswordHash: hashPassword(t, "password"), Active: true}}
	audit := &recordingAudit{}
	svc := newTestAuthService(repo, audit)

	for _, login := range []string{"dr.grey", "grey@hospital.test"} {
		res, err := svc.Login(context.Background(), models.LoginRequest{Login: login, Password: "password", IP: "10.0.0.1"})
		require.NoError(t, err)
		assert.NotEmpty(t, res.AccessToken)
		assert.NotEmpty(t, res.RefreshToken)
		assert.Equal(t, "dr.grey", res.User.Username)
		assert.Equal(t, int64(3600), res.ExpiresIn)
	}
	assert.True(t, repo.lastLoginUpdated)
	assert.Len(t, repo.refreshTokens, 2)
	assert.Equal(t, []models.AuditOperation{models.AuditLogin, models.AuditLogin}, audit.operations())
	assert.Equal(t, "10.0.0.1", audit.entries[0].Actor.IP)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	repo := &mockAuthRepo{user: &models.User{ID: "u1", Username: "dr.grey", PasswordHash: hashPassword(t, "password"), Active: true}}
	svc := newTestAuthService(repo, nil)
	ctx := context.Background()

	_, err := svc.Login(ctx, models.LoginRequest{Login: "dr.grey", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, models.LoginRequest{Login: "nobody", Password: "password"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, models.LoginRequest{Password: "password"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	repo.user.Active = false
	_, err = svc.Login(ctx, models.LoginRequest{Login: "dr.grey", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshToken(t *testing.T) {
	user := &models.User{ID: "u1", Username: "dr.grey", Active: true}
	repo := &mockAuthRepo{user: user, refreshTokens: map[string]*models.RefreshToken{
		"token":   {ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)},
		"expired": {ID: "rt2", UserID: "u1", Token: "expired", ExpiresAt: time.Now().Add(-time.Minute)},
	}}
	svc := newTestAuthService(repo, nil)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["token"].Revoked)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "expired"})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "missing"})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceLogout(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"token": {ID: "rt1", UserID: "u1", Token: "token", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	audit := &recordingAudit{}
	svc := newTestAuthService(repo, audit)

	err := svc.Logout(context.Background(), "token", models.Actor{UserID: "u2"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	require.NoError(t, svc.Logout(context.Background(), "token", models.Actor{UserID: "u1"}))
	assert.True(t, repo.refreshTokens["token"].Revoked)
	assert.Equal(t, []models.AuditOperation{models.AuditLogout}, audit.operations())
}

func TestAuthServiceChangePassword(t *testing.T) {
	oldHash := hashPassword(t, "oldpassword")
	repo := &mockAuthRepo{user: &models.User{ID: "u1", PasswordHash: oldHash, Active: true}}
	svc := newTestAuthService(repo, nil)
	actor := models.Actor{UserID: "u1"}

	err := svc.ChangePassword(context.Background(), models.ChangePasswordRequest{OldPassword: "nope", NewPassword: "newpassword"}, actor)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	require.NoError(t, svc.ChangePassword(context.Background(), models.ChangePasswordRequest{OldPassword: "oldpassword", NewPassword: "newpassword"}, actor))
	assert.NotEqual(t, oldHash, repo.user.PasswordHash)
	assert.True(t, repo.revokedAll)
}

func TestAuthServiceMe(t *testing.T) {
	repo := &mockAuthRepo{user: &models.User{ID: "u1", Username: "superadmin", Email: "root@hospital.test", Active: true}}
	svc := newTestAuthService(repo, nil)

	me, hit, err := svc.Me(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.True(t, me.Superadmin)
	assert.Equal(t, "root@hospital.test", me.User.Email)
	assert.NotNil(t, me.Navigation)

	_, _, err = svc.Me(context.Background(), "ghost")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestValidateToken(t *testing.T) {
	svc := newTestAuthService(&mockAuthRepo{}, nil)
	user := &models.User{ID: "u1", Username: "dr.grey", Email: "grey@hospital.test"}
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "dr.grey", claims.Username)
	assert.Equal(t, "hospital-admin-api", claims.Issuer)

	_, err = svc.ValidateToken(token + "x")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
