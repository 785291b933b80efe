package models

import (
	"encoding/json"
	"errors"
	"sort"
	"time"
)

// PrincipalKind tells which kind of principal a permission is granted to.
type PrincipalKind string

const (
	PrincipalUser PrincipalKind = "USER"
	PrincipalRole PrincipalKind = "ROLE"
)

// ErrInvalidTarget is returned when a stored row carries both or neither principal columns.
var ErrInvalidTarget = errors.New("permission must target exactly one of user or role")

// PermissionTarget is the principal a permission is scoped to: a user or a role, never both.
// The zero value is invalid and only built through UserTarget or RoleTarget.
type PermissionTarget struct {
	kind PrincipalKind
	id   string
}

// UserTarget scopes a permission to a single user.
func UserTarget(userID string) PermissionTarget {
	return PermissionTarget{kind: PrincipalUser, id: userID}
}

// RoleTarget scopes a permission to every holder of a role.
func RoleTarget(roleID string) PermissionTarget {
	return PermissionTarget{kind: PrincipalRole, id: roleID}
}

// TargetFromColumns converts the nullable storage columns into a target.
func TargetFromColumns(userID, roleID *string) (PermissionTarget, error) {
	hasUser := userID != nil && *userID != ""
	hasRole := roleID != nil && *roleID != ""
	switch {
	case hasUser && !hasRole:
		return UserTarget(*userID), nil
	case hasRole && !hasUser:
		return RoleTarget(*roleID), nil
	default:
		return PermissionTarget{}, ErrInvalidTarget
	}
}

func (t PermissionTarget) Kind() PrincipalKind { return t.kind }
func (t PermissionTarget) ID() string          { return t.id }
func (t PermissionTarget) IsZero() bool        { return t.kind == "" || t.id == "" }

// Columns returns the (user_id, role_id) pair for persistence.
func (t PermissionTarget) Columns() (userID, roleID *string) {
	id := t.id
	switch t.kind {
	case PrincipalUser:
		return &id, nil
	case PrincipalRole:
		return nil, &id
	}
	return nil, nil
}

// Capability is one of the four grantable actions on a document.
type Capability string

const (
	CapabilityAdd    Capability = "add"
	CapabilityModify Capability = "modify"
	CapabilityDelete Capability = "delete"
	CapabilityQuery  Capability = "query"
)

// Capabilities holds four independent flags; none implies another.
type Capabilities struct {
	CanAdd    bool `json:"canAdd"`
	CanModify bool `json:"canModify"`
	CanDelete bool `json:"canDelete"`
	CanQuery  bool `json:"canQuery"`
}

// FullCapabilities grants every action.
func FullCapabilities() Capabilities {
	return Capabilities{CanAdd: true, CanModify: true, CanDelete: true, CanQuery: true}
}

// Merge ORs two capability sets flag by flag.
func (c Capabilities) Merge(o Capabilities) Capabilities {
	return Capabilities{
		CanAdd:    c.CanAdd || o.CanAdd,
		CanModify: c.CanModify || o.CanModify,
		CanDelete: c.CanDelete || o.CanDelete,
		CanQuery:  c.CanQuery || o.CanQuery,
	}
}

// Any reports whether at least one flag is set.
func (c Capabilities) Any() bool {
	return c.CanAdd || c.CanModify || c.CanDelete || c.CanQuery
}

// Allows reports whether the given action is granted.
func (c Capabilities) Allows(action Capability) bool {
	switch action {
	case CapabilityAdd:
		return c.CanAdd
	case CapabilityModify:
		return c.CanModify
	case CapabilityDelete:
		return c.CanDelete
	case CapabilityQuery:
		return c.CanQuery
	}
	return false
}

// Permission is a capability grant on one document for one principal.
type Permission struct {
	ID         string
	Target     PermissionTarget
	DocumentID string
	Capabilities
	CreatedAt time.Time
	UpdatedAt time.Time
}

type permissionJSON struct {
	ID         string  `json:"id"`
	UserID     *string `json:"userId"`
	RoleID     *string `json:"roleId"`
	DocumentID string  `json:"documentId"`
	Capabilities
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MarshalJSON renders the target as the userId/roleId pair clients expect.
func (p Permission) MarshalJSON() ([]byte, error) {
	userID, roleID := p.Target.Columns()
	return json.Marshal(permissionJSON{
		ID:           p.ID,
		UserID:       userID,
		RoleID:       roleID,
		DocumentID:   p.DocumentID,
		Capabilities: p.Capabilities,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	})
}

// EffectivePermission is the merged grant of a user on a document.
type EffectivePermission struct {
	DocumentID string `json:"documentId"`
	Capabilities
}

// EffectivePermissions maps document id to merged capabilities. Documents without a
// contributing grant, or whose grants are all false, are absent.
type EffectivePermissions map[string]Capabilities

// Grant ORs caps into the entry for documentID. An all-false grant contributes nothing.
func (e EffectivePermissions) Grant(documentID string, caps Capabilities) {
	if !caps.Any() {
		return
	}
	e[documentID] = e[documentID].Merge(caps)
}

// List returns the entries sorted by document id.
func (e EffectivePermissions) List() []EffectivePermission {
	out := make([]EffectivePermission, 0, len(e))
	for id, caps := range e {
		out = append(out, EffectivePermission{DocumentID: id, Capabilities: caps})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out
}
