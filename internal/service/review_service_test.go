package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unimet-iinf/obs-admin-api/internal/models"
	appErrors "github.com/unimet-iinf/obs-admin-api/pkg/errors"
)

type mockObservationRepo struct {
	observations map[int64]*models.Observation
	findErr      error
	updateErr    error
	updateCalls  int
	batchCalls   int
}

func (m *mockObservationRepo) FindByID(ctx context.Context, id int64) (*models.Observation, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if obs, ok := m.observations[id]; ok {
		clone := *obs
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockObservationRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Observation, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	var result []models.Observation
	for _, obs := range m.observations {
		if obs.StudentID == studentID {
			result = append(result, *obs)
		}
	}
	return result, nil
}

func (m *mockObservationRepo) UpdateReviewFields(ctx context.Context, id int64, updates map[string]interface{}) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updateCalls++
	obs := m.observations[id]
	if v, ok := updates["status"].(string); ok {
		obs.Status = models.Status(v)
	}
	if v, ok := updates["responsible"].(string); ok {
		obs.Responsible = v
	}
	if v, ok := updates["internal_response"].(string); ok {
		obs.InternalResponse = v
	}
	if v, ok := updates["student_response"].(string); ok {
		obs.StudentResponse = v
	}
	return nil
}

func (m *mockObservationRepo) UpdateStatusBatch(ctx context.Context, ids []int64, status models.Status, responsible string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.batchCalls++
	for _, id := range ids {
		m.observations[id].Status = status
		m.observations[id].Responsible = responsible
	}
	return nil
}

type mockAuditRepo struct {
	entries []*models.AuditLogEntry
	err     error
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func coordinator() *models.Profile {
	return &models.Profile{ID: "u1", Email: "ana@unimet.edu.ve", Role: models.RoleCoordinator, Initials: "AB"}
}

func reader() *models.Profile {
	return &models.Profile{ID: "u2", Email: "luis@unimet.edu.ve", Role: models.RoleReader, Initials: "LM"}
}

func pendingObservation(id int64) *models.Observation {
	return &models.Observation{
		ID:          id,
		CaseNumber:  "2026-0042",
		Status:      models.StatusPendingReview,
		StudentID:   "20254321",
		StudentName: "María Pérez",
	}
}

func newReviewFixture(observations ...*models.Observation) (*ReviewService, *mockObservationRepo, *mockAuditRepo) {
	repo := &mockObservationRepo{observations: map[int64]*models.Observation{}}
	for _, obs := range observations {
		repo.observations[obs.ID] = obs
	}
	audit := &mockAuditRepo{}
	svc := NewReviewService(repo, NewAuditEmitter(audit, zap.NewNop()), zap.NewNop())
	return svc, repo, audit
}

func TestClaimPendingCase(t *testing.T) {
	svc, repo, audit := newReviewFixture(pendingObservation(1))

	ticket := svc.Claim(context.Background(), coordinator(), 1)

	require.NotNil(t, ticket)
	assert.Equal(t, int64(1), ticket.ObservationID)
	assert.Equal(t, "2026-0042", ticket.CaseNumber)
	assert.Equal(t, models.StatusInReview, repo.observations[1].Status)
	assert.Equal(t, "AB", repo.observations[1].Responsible)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionClaim, audit.entries[0].Action)
	assert.Equal(t, "2026-0042", audit.entries[0].CaseID)

	var changes map[string]models.FieldUpdate
	require.NoError(t, json.Unmarshal(audit.entries[0].Changes, &changes))
	assert.Equal(t, string(models.StatusPendingReview), changes["status"].Old)
	assert.Equal(t, string(models.StatusInReview), changes["status"].New)
}

func TestClaimNonPendingCaseUntouched(t *testing.T) {
	obs := pendingObservation(1)
	obs.Status = models.StatusResolved
	svc, repo, audit := newReviewFixture(obs)

	ticket := svc.Claim(context.Background(), coordinator(), 1)

	assert.Nil(t, ticket)
	assert.Equal(t, models.StatusResolved, repo.observations[1].Status)
	assert.Zero(t, repo.updateCalls)
	assert.Empty(t, audit.entries)
}

func TestClaimReaderNoOp(t *testing.T) {
	svc, repo, audit := newReviewFixture(pendingObservation(1))

	ticket := svc.Claim(context.Background(), reader(), 1)

	assert.Nil(t, ticket)
	assert.Equal(t, models.StatusPendingReview, repo.observations[1].Status)
	assert.Empty(t, audit.entries)
}

func TestClaimUpdateFailureSwallowed(t *testing.T) {
	svc, repo, audit := newReviewFixture(pendingObservation(1))
	repo.updateErr = errors.New("connection reset")

	ticket := svc.Claim(context.Background(), coordinator(), 1)

	assert.Nil(t, ticket)
	assert.Empty(t, audit.entries)
}

func TestReleaseRevertsUntouchedClaim(t *testing.T) {
	svc, repo, audit := newReviewFixture(pendingObservation(1))
	actor := coordinator()

	ticket := svc.Claim(context.Background(), actor, 1)
	require.NotNil(t, ticket)

	released := svc.Release(context.Background(), actor, *ticket)

	assert.True(t, released)
	assert.Equal(t, models.StatusPendingReview, repo.observations[1].Status)
	assert.Empty(t, repo.observations[1].Responsible)
	require.Len(t, audit.entries, 2)
	assert.Equal(t, models.AuditActionUnclaim, audit.entries[1].Action)
}

func TestReleaseAfterSaveIsNoOp(t *testing.T) {
	svc, repo, _ := newReviewFixture(pendingObservation(1))
	actor := coordinator()

	ticket := svc.Claim(context.Background(), actor, 1)
	require.NotNil(t, ticket)

	note := "revisado con el departamento"
	_, err := svc.Save(context.Background(), actor, 1, models.PendingChange{InternalResponse: &note})
	require.NoError(t, err)

	released := svc.Release(context.Background(), actor, *ticket)

	assert.False(t, released)
	assert.Equal(t, models.StatusInReview, repo.observations[1].Status)
	assert.Equal(t, note, repo.observations[1].InternalResponse)
}

func TestReleaseOtherResponsibleIsNoOp(t *testing.T) {
	svc, repo, _ := newReviewFixture(pendingObservation(1))
	actor := coordinator()

	ticket := svc.Claim(context.Background(), actor, 1)
	require.NotNil(t, ticket)
	repo.observations[1].Responsible = "ZZ"

	released := svc.Release(context.Background(), actor, *ticket)

	assert.False(t, released)
	assert.Equal(t, models.StatusInReview, repo.observations[1].Status)
}

func TestSaveResolvedRequiresBothResponses(t *testing.T) {
	svc, repo, audit := newReviewFixture(pendingObservation(1))

	resolved := models.StatusResolved
	internal := "caso cerrado"
	_, err := svc.Save(context.Background(), coordinator(), 1, models.PendingChange{
		Status:           &resolved,
		InternalResponse: &internal,
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMissingResponses.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.StatusPendingReview, repo.observations[1].Status)
	assert.Zero(t, repo.updateCalls)
	assert.Empty(t, audit.entries)
}

func TestSaveResolvedChecksMergedResult(t *testing.T) {
	obs := pendingObservation(1)
	obs.InternalResponse = "ya revisado"
	obs.StudentResponse = "procesado, verifique su inscripción"
	svc, repo, _ := newReviewFixture(obs)

	resolved := models.StatusResolved
	_, err := svc.Save(context.Background(), coordinator(), 1, models.PendingChange{Status: &resolved})

	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, repo.observations[1].Status)
}

func TestSaveAuditsOnlyChangedFields(t *testing.T) {
	svc, _, audit := newReviewFixture(pendingObservation(1))

	note := "pendiente de cupo"
	_, err := svc.Save(context.Background(), coordinator(), 1, models.PendingChange{InternalResponse: &note})
	require.NoError(t, err)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionUpdateRequest, audit.entries[0].Action)

	var changes map[string]models.FieldUpdate
	require.NoError(t, json.Unmarshal(audit.entries[0].Changes, &changes))
	assert.Contains(t, changes, "internal_response")
	assert.Contains(t, changes, "responsible")
	assert.NotContains(t, changes, "status")
	assert.NotContains(t, changes, "student_response")
}

func TestSaveEmptyChangeIsNoOp(t *testing.T) {
	svc, repo, audit := newReviewFixture(pendingObservation(1))

	obs, err := svc.Save(context.Background(), coordinator(), 1, models.PendingChange{})

	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingReview, obs.Status)
	assert.Zero(t, repo.updateCalls)
	assert.Empty(t, audit.entries)
}

func TestSaveReaderForbidden(t *testing.T) {
	svc, repo, _ := newReviewFixture(pendingObservation(1))

	note := "x"
	_, err := svc.Save(context.Background(), reader(), 1, models.PendingChange{InternalResponse: &note})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Zero(t, repo.updateCalls)
}

func TestClaimStudentBatchesPendingOnly(t *testing.T) {
	first := pendingObservation(1)
	second := pendingObservation(2)
	second.CaseNumber = "2026-0043"
	resolved := pendingObservation(3)
	resolved.CaseNumber = "2026-0044"
	resolved.Status = models.StatusResolved
	svc, repo, audit := newReviewFixture(first, second, resolved)

	tickets := svc.ClaimStudent(context.Background(), coordinator(), "20254321")

	assert.Len(t, tickets, 2)
	assert.Equal(t, 1, repo.batchCalls)
	assert.Equal(t, models.StatusInReview, repo.observations[1].Status)
	assert.Equal(t, models.StatusInReview, repo.observations[2].Status)
	assert.Equal(t, models.StatusResolved, repo.observations[3].Status)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionBatchClaim, audit.entries[0].Action)
	assert.Equal(t, "20254321", audit.entries[0].CaseID)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(audit.entries[0].Details, &details))
	assert.Len(t, details["case_ids"], 2)
}

func TestReleaseStudentRevertsBatch(t *testing.T) {
	first := pendingObservation(1)
	second := pendingObservation(2)
	second.CaseNumber = "2026-0043"
	svc, repo, audit := newReviewFixture(first, second)
	actor := coordinator()

	tickets := svc.ClaimStudent(context.Background(), actor, "20254321")
	require.Len(t, tickets, 2)

	released := svc.ReleaseStudent(context.Background(), actor, "20254321", tickets)

	assert.Equal(t, 2, released)
	assert.Equal(t, models.StatusPendingReview, repo.observations[1].Status)
	assert.Equal(t, models.StatusPendingReview, repo.observations[2].Status)
	require.Len(t, audit.entries, 2)
	assert.Equal(t, models.AuditActionBatchUnclaim, audit.entries[1].Action)
}

func TestSaveStudentGuardRejectsWholeBatch(t *testing.T) {
	first := pendingObservation(1)
	second := pendingObservation(2)
	second.CaseNumber = "2026-0043"
	svc, repo, audit := newReviewFixture(first, second)

	note := "ok"
	resolved := models.StatusResolved
	_, err := svc.SaveStudent(context.Background(), coordinator(), "20254321", map[int64]models.PendingChange{
		1: {InternalResponse: &note},
		2: {Status: &resolved},
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMissingResponses.Code, appErrors.FromError(err).Code)
	assert.Zero(t, repo.updateCalls)
	assert.Empty(t, audit.entries)
	assert.Empty(t, repo.observations[1].InternalResponse)
}

func TestSaveStudentPersistsBatch(t *testing.T) {
	first := pendingObservation(1)
	second := pendingObservation(2)
	second.CaseNumber = "2026-0043"
	svc, repo, audit := newReviewFixture(first, second)

	internal := "procesado"
	student := "su solicitud fue aprobada"
	resolved := models.StatusResolved
	_, err := svc.SaveStudent(context.Background(), coordinator(), "20254321", map[int64]models.PendingChange{
		1: {Status: &resolved, InternalResponse: &internal, StudentResponse: &student},
	})

	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, repo.observations[1].Status)
	assert.Equal(t, "AB", repo.observations[1].Responsible)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionUpdateRequest, audit.entries[0].Action)
}

func TestAuditFailureDoesNotBlockClaim(t *testing.T) {
	svc, repo, audit := newReviewFixture(pendingObservation(1))
	audit.err = errors.New("audit table unavailable")

	ticket := svc.Claim(context.Background(), coordinator(), 1)

	require.NotNil(t, ticket)
	assert.Equal(t, models.StatusInReview, repo.observations[1].Status)
}
