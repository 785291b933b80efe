package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/hospital-admin-api/internal/models"
	appErrors "github.com/noah-isme/hospital-admin-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

type userRoleRepository interface {
	ListRolesByUser(ctx context.Context, userID string) ([]models.Role, error)
	Assign(ctx context.Context, userID, roleID string) (bool, error)
	Unassign(ctx context.Context, userID, roleID string) (bool, error)
}

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"fullName" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Active   *bool  `json:"active"`
}

// UpdateUserRequest payload for updating users. Omitted fields keep their value.
type UpdateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=100"`
	Email    *string `json:"email" validate:"omitempty,email"`
	FullName *string `json:"fullName" validate:"omitempty,min=1"`
	Active   *bool   `json:"active"`
}

// UserServiceParams groups constructor dependencies.
type UserServiceParams struct {
	Users      userRepository
	UserRoles  userRoleRepository
	Roles      roleFinder
	Audit      auditRecorder
	Navigation navigationInvalidator
	Validator  *validator.Validate
	Logger     *zap.Logger
}

// UserService handles user management and role assignment.
type UserService struct {
	repo       userRepository
	userRoles  userRoleRepository
	roles      roleFinder
	audit      auditRecorder
	navigation navigationInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(params UserServiceParams) *UserService {
	s := &UserService{
		repo:       params.Users,
		userRoles:  params.UserRoles,
		roles:      params.Roles,
		audit:      params.Audit,
		navigation: params.Navigation,
		validator:  params.Validator,
		logger:     params.Logger,
	}
	if s.audit == nil {
		s.audit = noopAudit{}
	}
	if s.navigation == nil {
		s.navigation = noopInvalidator{}
	}
	if s.validator == nil {
		s.validator = validator.New()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}
	return users, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user")
	}
	return user, nil
}

// Create adds a new user.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest, actor models.Actor) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.ensureUnique(ctx, "", username, email); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		Active:       req.Active == nil || *req.Active,
		PasswordHash: string(passwordHash),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, writeError(err, "failed to create user", "username or email already exists")
	}

	s.audit.Record(ctx, AuditEntry{
		Table:     "users",
		RecordID:  user.ID,
		Operation: models.AuditCreate,
		Type:      "user.create",
		New:       user,
		Actor:     actor,
	})
	return user, nil
}

// Update modifies the user attributes.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest, actor models.Actor) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "user")
	}
	before := *user

	if req.Username != nil {
		user.Username = strings.TrimSpace(*req.Username)
	}
	if req.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	newUsername, newEmail := "", ""
	if user.Username != before.Username {
		newUsername = user.Username
	}
	if user.Email != before.Email {
		newEmail = user.Email
	}
	if err := s.ensureUnique(ctx, id, newUsername, newEmail); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, writeError(err, "failed to update user", "username or email already exists")
	}

	s.audit.Record(ctx, AuditEntry{
		Table:     "users",
		RecordID:  user.ID,
		Operation: models.AuditUpdate,
		Type:      "user.update",
		Old:       before,
		New:       user,
		Actor:     actor,
	})
	// The superadmin override keys on the username, so a rename can change navigation.
	s.navigation.Invalidate(ctx)
	return user, nil
}

// Delete removes the user with its role assignments and direct permissions.
func (s *UserService) Delete(ctx context.Context, id string, actor models.Actor) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return lookupError(err, "user")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Internal(err, "failed to delete user")
	}

	s.audit.Record(ctx, AuditEntry{
		Table:     "users",
		RecordID:  id,
		Operation: models.AuditDelete,
		Type:      "user.delete",
		Old:       user,
		Actor:     actor,
	})
	s.navigation.Invalidate(ctx)
	return nil
}

// ListRoles returns the roles assigned to userID.
func (s *UserService) ListRoles(ctx context.Context, userID string) ([]models.Role, error) {
	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		return nil, lookupError(err, "user")
	}
	roles, err := s.userRoles.ListRolesByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list user roles")
	}
	if roles == nil {
		roles = []models.Role{}
	}
	return roles, nil
}

// AssignRole gives userID the role. Assigning a held role again changes nothing.
func (s *UserService) AssignRole(ctx context.Context, userID, roleID string, actor models.Actor) (*models.Role, error) {
	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		return nil, lookupError(err, "user")
	}
	role, err := s.roles.FindByID(ctx, roleID)
	if err != nil {
		return nil, lookupError(err, "role")
	}

	created, err := s.userRoles.Assign(ctx, userID, roleID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to assign role")
	}
	if !created {
		return role, nil
	}

	s.audit.Record(ctx, AuditEntry{
		Table:     "user_roles",
		RecordID:  userID,
		Operation: models.AuditAssign,
		Type:      "user.role.assign",
		New:       models.UserRole{UserID: userID, RoleID: roleID},
		Actor:     actor,
	})
	s.navigation.Invalidate(ctx)
	return role, nil
}

// UnassignRole removes the role from userID.
func (s *UserService) UnassignRole(ctx context.Context, userID, roleID string, actor models.Actor) error {
	removed, err := s.userRoles.Unassign(ctx, userID, roleID)
	if err != nil {
		return appErrors.Internal(err, "failed to unassign role")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "role assignment not found")
	}

	s.audit.Record(ctx, AuditEntry{
		Table:     "user_roles",
		RecordID:  userID,
		Operation: models.AuditUnassign,
		Type:      "user.role.unassign",
		Old:       models.UserRole{UserID: userID, RoleID: roleID},
		Actor:     actor,
	})
	s.navigation.Invalidate(ctx)
	return nil
}

func (s *UserService) ensureUnique(ctx context.Context, selfID, username, email string) error {
	if username != "" {
		if existing, err := s.repo.FindByUsername(ctx, username); err == nil && existing.ID != selfID {
			return appErrors.Clone(appErrors.ErrConflict, "username already exists")
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Internal(err, "failed to check username uniqueness")
		}
	}
	if email != "" {
		if existing, err := s.repo.FindByEmail(ctx, email); err == nil && existing.ID != selfID {
			return appErrors.Clone(appErrors.ErrConflict, "email already exists")
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Internal(err, "failed to check email uniqueness")
		}
	}
	return nil
}
