package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/hospital-admin-api/internal/models"
	appErrors "github.com/noah-isme/hospital-admin-api/pkg/errors"
)

const (
	defaultSuperadminUsername = "superadmin"
	defaultSuperadminRole     = "Super Admin"
)

type accessUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type roleMembershipReader interface {
	ListRolesByUser(ctx context.Context, userID string) ([]models.Role, error)
}

type permissionReader interface {
	ListByUser(ctx context.Context, userID string) ([]models.Permission, error)
	ListByRoles(ctx context.Context, roleIDs []string) ([]models.Permission, error)
}

type documentPathReader interface {
	ListByPath(ctx context.Context, path string) ([]models.Document, error)
}

// AccessConfig names the reserved superadmin principals.
type AccessConfig struct {
	SuperadminUsername string
	SuperadminRole     string
}

// AccessProfile is everything needed to decide what a user may see.
// Permissions is nil for superadmins; stored grants are never loaded for them.
type AccessProfile struct {
	User        *models.User
	Roles       []models.Role
	Superadmin  bool
	Permissions models.EffectivePermissions
}

// Allows reports whether the profile grants action on documentID.
func (p *AccessProfile) Allows(documentID string, action models.Capability) bool {
	if p == nil {
		return false
	}
	if p.Superadmin {
		return true
	}
	caps, ok := p.Permissions[documentID]
	return ok && caps.Allows(action)
}

// AccessServiceParams groups constructor dependencies.
type AccessServiceParams struct {
	Users       accessUserReader
	Memberships roleMembershipReader
	Permissions permissionReader
	Documents   documentPathReader
	Metrics     *MetricsService
	Logger      *zap.Logger
	Config      AccessConfig
}

// AccessService resolves role membership, merges stored grants and applies the superadmin override.
type AccessService struct {
	users       accessUserReader
	memberships roleMembershipReader
	permissions permissionReader
	documents   documentPathReader
	metrics     *MetricsService
	logger      *zap.Logger
	cfg         AccessConfig
}

// NewAccessService constructs an AccessService.
func NewAccessService(params AccessServiceParams) *AccessService {
	cfg := params.Config
	if strings.TrimSpace(cfg.SuperadminUsername) == "" {
		cfg.SuperadminUsername = defaultSuperadminUsername
	}
	if strings.TrimSpace(cfg.SuperadminRole) == "" {
		cfg.SuperadminRole = defaultSuperadminRole
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{
		users:       params.Users,
		memberships: params.Memberships,
		permissions: params.Permissions,
		documents:   params.Documents,
		metrics:     params.Metrics,
		logger:      logger,
		cfg:         cfg,
	}
}

// GetUserRoles returns the distinct roles assigned to userID. A user without roles gets an empty slice.
func (s *AccessService) GetUserRoles(ctx context.Context, userID string) ([]models.Role, error) {
	roles, err := s.memberships.ListRolesByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load user roles")
	}
	seen := make(map[string]struct{}, len(roles))
	out := make([]models.Role, 0, len(roles))
	for _, role := range roles {
		if _, dup := seen[role.ID]; dup {
			continue
		}
		seen[role.ID] = struct{}{}
		out = append(out, role)
	}
	return out, nil
}

// IsSuperadmin reports whether user bypasses stored permissions, either by the reserved
// username or by holding the reserved role. Both comparisons are exact.
func (s *AccessService) IsSuperadmin(user *models.User, roles []models.Role) bool {
	if user != nil && user.Username == s.cfg.SuperadminUsername {
		return true
	}
	for _, role := range roles {
		if role.Name == s.cfg.SuperadminRole {
			return true
		}
	}
	return false
}

// ResolveEffectivePermissions ORs the user's direct grants with the grants of every role they
// hold, per document and per flag. Documents without a contributing grant are absent.
// An unknown user resolves to an empty mapping.
func (s *AccessService) ResolveEffectivePermissions(ctx context.Context, userID string) (models.EffectivePermissions, error) {
	roles, err := s.GetUserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.mergeGrants(ctx, userID, roles)
}

func (s *AccessService) mergeGrants(ctx context.Context, userID string, roles []models.Role) (models.EffectivePermissions, error) {
	direct, err := s.permissions.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load user permissions")
	}

	roleIDs := make([]string, 0, len(roles))
	for _, role := range roles {
		roleIDs = append(roleIDs, role.ID)
	}
	inherited, err := s.permissions.ListByRoles(ctx, roleIDs)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load role permissions")
	}

	effective := make(models.EffectivePermissions)
	for _, p := range direct {
		effective.Grant(p.DocumentID, p.Capabilities)
	}
	for _, p := range inherited {
		effective.Grant(p.DocumentID, p.Capabilities)
	}
	return effective, nil
}

// ListEffectivePermissions returns the merged grants sorted by document id.
func (s *AccessService) ListEffectivePermissions(ctx context.Context, userID string) ([]models.EffectivePermission, error) {
	effective, err := s.ResolveEffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return effective.List(), nil
}

// Resolve loads the user, their roles and, unless they are a superadmin, their merged grants.
func (s *AccessService) Resolve(ctx context.Context, userID string) (*AccessProfile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	roles, err := s.GetUserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &AccessProfile{User: user, Roles: roles}
	if s.IsSuperadmin(user, roles) {
		profile.Superadmin = true
		return profile, nil
	}
	profile.Permissions, err = s.mergeGrants(ctx, userID, roles)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// Can reports whether userID may perform action on any document registered under path.
// Inactive and unknown users are denied.
func (s *AccessService) Can(ctx context.Context, userID, path string, action models.Capability) (bool, error) {
	profile, err := s.Resolve(ctx, userID)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			s.metrics.RecordAccessDecision(string(action), false)
			return false, nil
		}
		return false, err
	}
	if !profile.User.Active {
		s.metrics.RecordAccessDecision(string(action), false)
		return false, nil
	}
	if profile.Superadmin {
		s.metrics.RecordSuperadminBypass("authorization")
		s.metrics.RecordAccessDecision(string(action), true)
		return true, nil
	}

	docs, err := s.documents.ListByPath(ctx, path)
	if err != nil {
		return false, appErrors.Internal(err, "failed to load documents by path")
	}
	allowed := false
	for _, doc := range docs {
		if doc.Active && profile.Allows(doc.ID, action) {
			allowed = true
			break
		}
	}
	s.metrics.RecordAccessDecision(string(action), allowed)
	if !allowed {
		s.logger.Debug("access denied", zap.String("user_id", userID), zap.String("path", path), zap.String("capability", string(action)))
	}
	return allowed, nil
}
