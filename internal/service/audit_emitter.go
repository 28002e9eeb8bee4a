package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/unimet-iinf/obs-admin-api/internal/models"
)

type auditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLogEntry) error
}

// AuditEmitter records mutations in the append-only audit trail. Emission is
// best-effort: failures are logged at Warn and never block the mutation that
// triggered them.
type AuditEmitter struct {
	repo   auditLogRepository
	logger *zap.Logger
}

// NewAuditEmitter constructs an AuditEmitter.
func NewAuditEmitter(repo auditLogRepository, logger *zap.Logger) *AuditEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditEmitter{repo: repo, logger: logger}
}

// Emit writes one audit entry. Details and changes are marshalled to JSON;
// nil maps produce NULL columns.
func (e *AuditEmitter) Emit(ctx context.Context, userID, caseID, action string, details map[string]interface{}, changes map[string]models.FieldUpdate) {
	if e == nil || e.repo == nil {
		return
	}
	entry := &models.AuditLogEntry{
		UserID: userID,
		CaseID: caseID,
		Action: action,
	}
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err != nil {
			e.logger.Warn("failed to marshal audit details", zap.String("action", action), zap.Error(err))
		} else {
			entry.Details = raw
		}
	}
	if len(changes) > 0 {
		raw, err := json.Marshal(changes)
		if err != nil {
			e.logger.Warn("failed to marshal audit changes", zap.String("action", action), zap.Error(err))
		} else {
			entry.Changes = raw
		}
	}
	if err := e.repo.Create(ctx, entry); err != nil {
		e.logger.Warn("failed to record audit log",
			zap.String("action", action),
			zap.String("case_id", caseID),
			zap.Error(err))
	}
}
