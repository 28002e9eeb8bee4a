package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unimet-iinf/obs-admin-api/internal/models"
)

// AuditRepository appends immutable audit log entries. The table has no
// update or delete path on purpose.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new instance of AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends one audit log entry.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, case_id, action, details, changes, created_at) VALUES (:id, :user_id, :case_id, :action, :details, :changes, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// ListByCase returns the audit trail for one case, oldest first.
func (r *AuditRepository) ListByCase(ctx context.Context, caseID string) ([]models.AuditLogEntry, error) {
	const query = `SELECT id, user_id, case_id, action, details, changes, created_at FROM audit_logs WHERE case_id = $1 ORDER BY created_at ASC`
	var entries []models.AuditLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, caseID); err != nil {
		return nil, fmt.Errorf("list audit logs for case %s: %w", caseID, err)
	}
	return entries, nil
}
