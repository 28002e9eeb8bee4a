package models

import "time"

// AuditAction constants tag audit log entries by the mutation they record.
const (
	AuditActionClaim         = "CLAIM"
	AuditActionBatchClaim    = "BATCH_CLAIM"
	AuditActionUnclaim       = "UNCLAIM"
	AuditActionBatchUnclaim  = "BATCH_UNCLAIM"
	AuditActionUpdateRequest = "UPDATE_REQUEST"
	AuditActionRoleChange    = "ROLE_CHANGE"
	AuditActionRegister      = "REGISTER"
	AuditActionLogin         = "LOGIN"
	AuditActionLogout        = "LOGOUT"
)

// AuditLogEntry is an append-only record of a mutation. Entries are created
// exactly once per mutating operation and never updated or deleted by this
// service.
type AuditLogEntry struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CaseID    string    `db:"case_id" json:"case_id"`
	Action    string    `db:"action" json:"action"`
	Details   []byte    `db:"details" json:"details,omitempty"`
	Changes   []byte    `db:"changes" json:"changes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
