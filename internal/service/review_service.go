package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unimet-iinf/obs-admin-api/internal/models"
	appErrors "github.com/unimet-iinf/obs-admin-api/pkg/errors"
)

type observationReviewRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Observation, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Observation, error)
	UpdateReviewFields(ctx context.Context, id int64, updates map[string]interface{}) error
	UpdateStatusBatch(ctx context.Context, ids []int64, status models.Status, responsible string) error
}

// ClaimTicket snapshots a case at claim time. Release compares the persisted
// row against the snapshot and only reverts when nothing changed in between,
// so an explicit save always supersedes a later release.
type ClaimTicket struct {
	ObservationID    int64     `json:"observation_id"`
	CaseNumber       string    `json:"case_number"`
	StudentID        string    `json:"student_id"`
	InternalResponse string    `json:"internal_response"`
	StudentResponse  string    `json:"student_response"`
	ClaimedAt        time.Time `json:"claimed_at"`
}

// ReviewService implements the claim workflow over observations. Opening a
// pending case claims it (POR REVISAR to EN REVISIÓN, responsible set to the
// actor's initials); closing without saving releases it back; an explicit
// save persists the edits and keeps the claim.
//
// Claim and release are best-effort: infrastructure failures are logged and
// swallowed so the review UI never blocks on them. Save failures propagate.
// Concurrent claims are not serialized; the last write wins.
type ReviewService struct {
	repo   observationReviewRepository
	audit  *AuditEmitter
	logger *zap.Logger
}

// NewReviewService constructs a ReviewService.
func NewReviewService(repo observationReviewRepository, audit *AuditEmitter, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{repo: repo, audit: audit, logger: logger}
}

// Claim moves a POR REVISAR case to EN REVISIÓN under the actor's initials
// and returns a ticket snapshotting the pre-claim response fields. Rows in
// any other status, and actors without edit rights, are left untouched and
// yield a nil ticket.
func (s *ReviewService) Claim(ctx context.Context, actor *models.Profile, observationID int64) *ClaimTicket {
	if actor == nil || !actor.Role.CanEdit() {
		return nil
	}

	obs, err := s.repo.FindByID(ctx, observationID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("claim fetch failed", zap.Int64("observation_id", observationID), zap.Error(err))
		}
		return nil
	}
	if obs.Status != models.StatusPendingReview {
		return nil
	}

	updates := map[string]interface{}{
		"status":      string(models.StatusInReview),
		"responsible": actor.Initials,
	}
	if err := s.repo.UpdateReviewFields(ctx, observationID, updates); err != nil {
		s.logger.Warn("claim update failed", zap.Int64("observation_id", observationID), zap.Error(err))
		return nil
	}

	s.audit.Emit(ctx, actor.ID, obs.CaseNumber, models.AuditActionClaim, nil,
		map[string]models.FieldUpdate{
			"status": {Old: string(models.StatusPendingReview), New: string(models.StatusInReview)},
		})

	return &ClaimTicket{
		ObservationID:    obs.ID,
		CaseNumber:       obs.CaseNumber,
		StudentID:        obs.StudentID,
		InternalResponse: obs.InternalResponse,
		StudentResponse:  obs.StudentResponse,
		ClaimedAt:        time.Now().UTC(),
	}
}

// ClaimStudent claims every POR REVISAR case of one student in a single batch
// update and emits one BATCH_CLAIM entry listing the affected case numbers.
func (s *ReviewService) ClaimStudent(ctx context.Context, actor *models.Profile, studentID string) []ClaimTicket {
	if actor == nil || !actor.Role.CanEdit() {
		return nil
	}

	observations, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		s.logger.Warn("student claim fetch failed", zap.String("student_id", studentID), zap.Error(err))
		return nil
	}

	var ids []int64
	var tickets []ClaimTicket
	var caseNumbers []string
	claimedAt := time.Now().UTC()
	for _, obs := range observations {
		if obs.Status != models.StatusPendingReview {
			continue
		}
		ids = append(ids, obs.ID)
		caseNumbers = append(caseNumbers, obs.CaseNumber)
		tickets = append(tickets, ClaimTicket{
			ObservationID:    obs.ID,
			CaseNumber:       obs.CaseNumber,
			StudentID:        obs.StudentID,
			InternalResponse: obs.InternalResponse,
			StudentResponse:  obs.StudentResponse,
			ClaimedAt:        claimedAt,
		})
	}
	if len(ids) == 0 {
		return nil
	}

	if err := s.repo.UpdateStatusBatch(ctx, ids, models.StatusInReview, actor.Initials); err != nil {
		s.logger.Warn("student claim update failed", zap.String("student_id", studentID), zap.Error(err))
		return nil
	}

	s.audit.Emit(ctx, actor.ID, studentID, models.AuditActionBatchClaim,
		map[string]interface{}{"case_ids": caseNumbers, "student_id": studentID},
		map[string]models.FieldUpdate{
			"status": {Old: string(models.StatusPendingReview), New: string(models.StatusInReview)},
		})

	return tickets
}

// Release reverts a claimed-but-untouched case back to POR REVISAR and clears
// the responsible. The revert only happens when the persisted row is still
// exactly as the ticket left it: EN REVISIÓN, responsible equals the actor's
// initials, and both response fields unchanged. Returns whether it reverted.
func (s *ReviewService) Release(ctx context.Context, actor *models.Profile, ticket ClaimTicket) bool {
	if actor == nil || !actor.Role.CanEdit() {
		return false
	}

	if !s.releaseOne(ctx, actor, ticket) {
		return false
	}

	s.audit.Emit(ctx, actor.ID, ticket.CaseNumber, models.AuditActionUnclaim, nil,
		map[string]models.FieldUpdate{
			"status": {Old: string(models.StatusInReview), New: string(models.StatusPendingReview)},
		})
	return true
}

// ReleaseStudent releases a batch of tickets from a student-level claim and
// emits one BATCH_UNCLAIM entry for the cases actually reverted. Returns the
// number of reverted cases.
func (s *ReviewService) ReleaseStudent(ctx context.Context, actor *models.Profile, studentID string, tickets []ClaimTicket) int {
	if actor == nil || !actor.Role.CanEdit() {
		return 0
	}

	var reverted []string
	for _, ticket := range tickets {
		if s.releaseOne(ctx, actor, ticket) {
			reverted = append(reverted, ticket.CaseNumber)
		}
	}
	if len(reverted) == 0 {
		return 0
	}

	s.audit.Emit(ctx, actor.ID, studentID, models.AuditActionBatchUnclaim,
		map[string]interface{}{"case_ids": reverted, "student_id": studentID},
		map[string]models.FieldUpdate{
			"status": {Old: string(models.StatusInReview), New: string(models.StatusPendingReview)},
		})
	return len(reverted)
}

func (s *ReviewService) releaseOne(ctx context.Context, actor *models.Profile, ticket ClaimTicket) bool {
	obs, err := s.repo.FindByID(ctx, ticket.ObservationID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("release fetch failed", zap.Int64("observation_id", ticket.ObservationID), zap.Error(err))
		}
		return false
	}

	if obs.Status != models.StatusInReview ||
		obs.Responsible != actor.Initials ||
		obs.InternalResponse != ticket.InternalResponse ||
		obs.StudentResponse != ticket.StudentResponse {
		return false
	}

	updates := map[string]interface{}{
		"status":      string(models.StatusPendingReview),
		"responsible": "",
	}
	if err := s.repo.UpdateReviewFields(ctx, ticket.ObservationID, updates); err != nil {
		s.logger.Warn("release update failed", zap.Int64("observation_id", ticket.ObservationID), zap.Error(err))
		return false
	}
	return true
}

// Save persists an edited case. The merged result is validated before any
// write: moving to SOLUCIONADO requires both response fields non-empty.
// Only changed fields are persisted and audited; the responsible is set to
// the actor's initials whenever anything changed.
func (s *ReviewService) Save(ctx context.Context, actor *models.Profile, observationID int64, change models.PendingChange) (*models.Observation, error) {
	if actor == nil || !actor.Role.CanEdit() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot edit observations")
	}

	obs, err := s.repo.FindByID(ctx, observationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "observation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load observation")
	}

	updates, changes, err := s.mergeChange(obs, change, actor.Initials)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return obs, nil
	}

	if err := s.repo.UpdateReviewFields(ctx, observationID, updates); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save observation")
	}

	s.audit.Emit(ctx, actor.ID, obs.CaseNumber, models.AuditActionUpdateRequest, nil, changes)

	applyChange(obs, updates)
	return obs, nil
}

// SaveStudent persists edits across a student's cases. Every merged result is
// validated before any write; a single violation rejects the whole batch.
func (s *ReviewService) SaveStudent(ctx context.Context, actor *models.Profile, studentID string, changes map[int64]models.PendingChange) ([]models.Observation, error) {
	if actor == nil || !actor.Role.CanEdit() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot edit observations")
	}

	observations, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student observations")
	}

	byID := make(map[int64]*models.Observation, len(observations))
	for i := range observations {
		byID[observations[i].ID] = &observations[i]
	}

	type pendingWrite struct {
		obs     *models.Observation
		updates map[string]interface{}
		audited map[string]models.FieldUpdate
	}
	var writes []pendingWrite
	for id, change := range changes {
		obs, ok := byID[id]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "observation does not belong to student")
		}
		updates, audited, err := s.mergeChange(obs, change, actor.Initials)
		if err != nil {
			return nil, err
		}
		if len(updates) == 0 {
			continue
		}
		writes = append(writes, pendingWrite{obs: obs, updates: updates, audited: audited})
	}

	for _, w := range writes {
		if err := s.repo.UpdateReviewFields(ctx, w.obs.ID, w.updates); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save observation")
		}
		s.audit.Emit(ctx, actor.ID, w.obs.CaseNumber, models.AuditActionUpdateRequest, nil, w.audited)
		applyChange(w.obs, w.updates)
	}

	return observations, nil
}

// mergeChange merges a pending change onto the persisted row, validates the
// result and returns the column updates plus the audit changes map, both
// restricted to fields that actually changed.
func (s *ReviewService) mergeChange(obs *models.Observation, change models.PendingChange, initials string) (map[string]interface{}, map[string]models.FieldUpdate, error) {
	newStatus := obs.Status
	if change.Status != nil {
		if !change.Status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown status")
		}
		newStatus = *change.Status
	}
	newInternal := obs.InternalResponse
	if change.InternalResponse != nil {
		newInternal = *change.InternalResponse
	}
	newStudent := obs.StudentResponse
	if change.StudentResponse != nil {
		newStudent = *change.StudentResponse
	}

	if newStatus == models.StatusResolved &&
		(strings.TrimSpace(newInternal) == "" || strings.TrimSpace(newStudent) == "") {
		return nil, nil, appErrors.ErrMissingResponses
	}

	updates := map[string]interface{}{}
	changed := map[string]models.FieldUpdate{}
	if newStatus != obs.Status {
		updates["status"] = string(newStatus)
		changed["status"] = models.FieldUpdate{Old: string(obs.Status), New: string(newStatus)}
	}
	if newInternal != obs.InternalResponse {
		updates["internal_response"] = newInternal
		changed["internal_response"] = models.FieldUpdate{Old: obs.InternalResponse, New: newInternal}
	}
	if newStudent != obs.StudentResponse {
		updates["student_response"] = newStudent
		changed["student_response"] = models.FieldUpdate{Old: obs.StudentResponse, New: newStudent}
	}
	if len(updates) == 0 {
		return nil, nil, nil
	}

	if obs.Responsible != initials {
		updates["responsible"] = initials
		changed["responsible"] = models.FieldUpdate{Old: obs.Responsible, New: initials}
	}
	return updates, changed, nil
}

func applyChange(obs *models.Observation, updates map[string]interface{}) {
	if v, ok := updates["status"].(string); ok {
		obs.Status = models.Status(v)
	}
	if v, ok := updates["internal_response"].(string); ok {
		obs.InternalResponse = v
	}
	if v, ok := updates["student_response"].(string); ok {
		obs.StudentResponse = v
	}
	if v, ok := updates["responsible"].(string); ok {
		obs.Responsible = v
	}
}
