package dto

// AssignRoleRequest links a role to a user.
type AssignRoleRequest struct {
	RoleID string `json:"roleId" validate:"required"`
}

// LinkDocumentRequest links a document into a module.
type LinkDocumentRequest struct {
	DocumentID string `json:"documentId" validate:"required"`
}
