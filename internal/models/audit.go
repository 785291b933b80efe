package models

import "time"

// AuditOperation classifies an audit entry.
type AuditOperation string

const (
	AuditCreate   AuditOperation = "CREATE"
	AuditUpdate   AuditOperation = "UPDATE"
	AuditDelete   AuditOperation = "DELETE"
	AuditExport   AuditOperation = "EXPORT"
	AuditLogin    AuditOperation = "LOGIN"
	AuditLogout   AuditOperation = "LOGOUT"
	AuditAssign   AuditOperation = "ASSIGN"
	AuditUnassign AuditOperation = "UNASSIGN"
	AuditLink     AuditOperation = "LINK"
	AuditUnlink   AuditOperation = "UNLINK"
)

// AuditLog represents an audit trail record. It is only ever written.
type AuditLog struct {
	ID            string         `db:"id" json:"id"`
	TableName     string         `db:"table_name" json:"tableName"`
	RecordID      *string        `db:"record_id" json:"recordId,omitempty"`
	Operation     AuditOperation `db:"operation" json:"operation"`
	OperationType string         `db:"operation_type" json:"operationType"`
	OldValues     []byte         `db:"old_values" json:"oldValues,omitempty"`
	NewValues     []byte         `db:"new_values" json:"newValues,omitempty"`
	UserID        *string        `db:"user_id" json:"userId,omitempty"`
	Username      *string        `db:"username" json:"username,omitempty"`
	IPAddress     string         `db:"ip_address" json:"ipAddress"`
	UserAgent     string         `db:"user_agent" json:"userAgent"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
}

// Actor identifies who performed a mutation and from where.
type Actor struct {
	UserID    string
	Username  string
	IP        string
	UserAgent string
}
