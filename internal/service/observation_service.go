package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/unimet-iinf/obs-admin-api/internal/models"
	appErrors "github.com/unimet-iinf/obs-admin-api/pkg/errors"
)

type observationQueryRepository interface {
	List(ctx context.Context, filter models.ObservationFilter) ([]models.Observation, int, error)
	FindByID(ctx context.Context, id int64) (*models.Observation, error)
}

type auditTrailRepository interface {
	ListByCase(ctx context.Context, caseID string) ([]models.AuditLogEntry, error)
}

// ObservationService serves the read side of the review board: filtered
// listings, single cases and per-case audit history.
type ObservationService struct {
	repo   observationQueryRepository
	audit  auditTrailRepository
	logger *zap.Logger
}

// NewObservationService constructs an ObservationService.
func NewObservationService(repo observationQueryRepository, audit auditTrailRepository, logger *zap.Logger) *ObservationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObservationService{repo: repo, audit: audit, logger: logger}
}

// List returns observations matching the filter with pagination metadata.
func (s *ObservationService) List(ctx context.Context, filter models.ObservationFilter) ([]models.Observation, *models.Pagination, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown status")
	}
	for _, dept := range filter.Departments {
		if !isKnownDepartment(dept) {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown department code")
		}
	}

	observations, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list observations")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 15
	}
	return observations, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a single observation.
func (s *ObservationService) Get(ctx context.Context, id int64) (*models.Observation, error) {
	obs, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "observation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load observation")
	}
	return obs, nil
}

// AuditTrail returns the audit history of one case, oldest first.
func (s *ObservationService) AuditTrail(ctx context.Context, id int64) ([]models.AuditLogEntry, error) {
	obs, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := s.audit.ListByCase(ctx, obs.CaseNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit trail")
	}
	return entries, nil
}

func isKnownDepartment(dept models.Department) bool {
	for _, known := range models.Departments {
		if dept == known {
			return true
		}
	}
	return false
}
