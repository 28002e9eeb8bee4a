package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/unimet-iinf/obs-admin-api/internal/models"
	appErrors "github.com/unimet-iinf/obs-admin-api/pkg/errors"
)

type profileRepository interface {
	FindByID(ctx context.Context, id string) (*models.Profile, error)
	List(ctx context.Context) ([]models.Profile, error)
	UpdateRole(ctx context.Context, id string, role models.Role) error
}

// ProfileServiceConfig bounds the profile fetch on the post-login path.
type ProfileServiceConfig struct {
	FetchTimeout time.Duration
	FetchRetries int
}

// ProfileService provides profile lookup and role management use cases.
type ProfileService struct {
	repo   profileRepository
	audit  *AuditEmitter
	logger *zap.Logger
	cfg    ProfileServiceConfig
}

// NewProfileService constructs a ProfileService.
func NewProfileService(repo profileRepository, audit *AuditEmitter, logger *zap.Logger, cfg ProfileServiceConfig) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	if cfg.FetchRetries < 0 {
		cfg.FetchRetries = 0
	}
	return &ProfileService{repo: repo, audit: audit, logger: logger, cfg: cfg}
}

// GetOrFallback fetches a profile with a bounded timeout and a retry budget.
// When the budget is exhausted a synthetic sin_asignar profile is returned
// instead of an error, so a slow profiles table degrades the session to the
// pending-approval state rather than blocking sign-in.
func (s *ProfileService) GetOrFallback(ctx context.Context, userID, email string) *models.Profile {
	attempts := s.cfg.FetchRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
		profile, err := s.repo.FindByID(fetchCtx, userID)
		cancel()
		if err == nil {
			return profile
		}
		if errors.Is(err, sql.ErrNoRows) {
			break
		}
		s.logger.Warn("profile fetch failed",
			zap.String("user_id", userID),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	s.logger.Warn("substituting fallback profile", zap.String("user_id", userID))
	return models.FallbackProfile(userID, email)
}

// Get returns a profile by ID.
func (s *ProfileService) Get(ctx context.Context, id string) (*models.Profile, error) {
	profile, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}
	return profile, nil
}

// List returns every profile for the user-management view.
func (s *ProfileService) List(ctx context.Context) ([]models.Profile, error) {
	profiles, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list profiles")
	}
	return profiles, nil
}

// AssignRole changes the role of a target profile. Administrators only, and
// never on their own account.
func (s *ProfileService) AssignRole(ctx context.Context, actor *models.Profile, targetID string, role models.Role) (*models.Profile, error) {
	if actor == nil || !actor.Role.CanManageUsers() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can assign roles")
	}
	if actor.ID == targetID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot change own role")
	}
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}

	target, err := s.repo.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile")
	}

	if target.Role == role {
		return target, nil
	}

	if err := s.repo.UpdateRole(ctx, targetID, role); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update role")
	}

	s.audit.Emit(ctx, actor.ID, "", models.AuditActionRoleChange,
		map[string]interface{}{"target_id": targetID, "target_email": target.Email},
		map[string]models.FieldUpdate{"role": {Old: string(target.Role), New: string(role)}})

	target.Role = role
	return target, nil
}
