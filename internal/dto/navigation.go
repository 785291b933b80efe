package dto

import "github.com/noah-isme/hospital-admin-api/internal/models"

// NavigationDocument is one accessible screen with the caller's merged flags.
type NavigationDocument struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Path        string              `json:"path"`
	Permissions models.Capabilities `json:"permissions"`
}

// NavigationModule groups accessible documents under a module.
type NavigationModule struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Documents []NavigationDocument `json:"documents"`
}

// MeResponse describes the signed-in user together with their navigation tree.
type MeResponse struct {
	User       models.UserInfo    `json:"user"`
	Roles      []models.Role      `json:"roles"`
	Superadmin bool               `json:"superadmin"`
	Navigation []NavigationModule `json:"navigation"`
}
