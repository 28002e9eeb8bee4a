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

type mockProfileRepo struct {
	profiles    map[string]*models.Profile
	findErr     error
	updateErr   error
	findCalls   int
	updateCalls int
}

func (m *mockProfileRepo) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	m.findCalls++
	if m.findErr != nil {
		return nil, m.findErr
	}
	if p, ok := m.profiles[id]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProfileRepo) List(ctx context.Context) ([]models.Profile, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	var result []models.Profile
	for _, p := range m.profiles {
		result = append(result, *p)
	}
	return result, nil
}

func (m *mockProfileRepo) UpdateRole(ctx context.Context, id string, role models.Role) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updateCalls++
	m.profiles[id].Role = role
	return nil
}

func newProfileFixture(profiles ...*models.Profile) (*ProfileService, *mockProfileRepo, *mockAuditRepo) {
	repo := &mockProfileRepo{profiles: map[string]*models.Profile{}}
	for _, p := range profiles {
		repo.profiles[p.ID] = p
	}
	audit := &mockAuditRepo{}
	svc := NewProfileService(repo, NewAuditEmitter(audit, zap.NewNop()), zap.NewNop(), ProfileServiceConfig{})
	return svc, repo, audit
}

func admin() *models.Profile {
	return &models.Profile{ID: "admin1", Email: "root@unimet.edu.ve", Role: models.RoleAdministrator, Initials: "RT"}
}

func TestGetOrFallbackReturnsStoredProfile(t *testing.T) {
	stored := &models.Profile{ID: "u1", Email: "ana@unimet.edu.ve", Role: models.RoleCoordinator, Initials: "AB"}
	svc, _, _ := newProfileFixture(stored)

	profile := svc.GetOrFallback(context.Background(), "u1", "ana@unimet.edu.ve")

	require.NotNil(t, profile)
	assert.Equal(t, models.RoleCoordinator, profile.Role)
}

func TestGetOrFallbackExhaustsRetriesThenDegrades(t *testing.T) {
	repo := &mockProfileRepo{findErr: errors.New("timeout")}
	svc := NewProfileService(repo, nil, zap.NewNop(), ProfileServiceConfig{FetchRetries: 2})

	profile := svc.GetOrFallback(context.Background(), "u1", "ana@unimet.edu.ve")

	require.NotNil(t, profile)
	assert.Equal(t, models.RoleUnassigned, profile.Role)
	assert.Equal(t, "ana@unimet.edu.ve", profile.Email)
	assert.Equal(t, 3, repo.findCalls)
}

func TestGetOrFallbackMissingRowSkipsRetries(t *testing.T) {
	svc, repo, _ := newProfileFixture()

	profile := svc.GetOrFallback(context.Background(), "ghost", "ghost@unimet.edu.ve")

	require.NotNil(t, profile)
	assert.Equal(t, models.RoleUnassigned, profile.Role)
	assert.Equal(t, 1, repo.findCalls)
}

func TestAssignRole(t *testing.T) {
	target := &models.Profile{ID: "u1", Email: "luis@unimet.edu.ve", Role: models.RoleUnassigned}
	svc, repo, audit := newProfileFixture(target)

	updated, err := svc.AssignRole(context.Background(), admin(), "u1", models.RoleReader)

	require.NoError(t, err)
	assert.Equal(t, models.RoleReader, updated.Role)
	assert.Equal(t, models.RoleReader, repo.profiles["u1"].Role)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionRoleChange, audit.entries[0].Action)

	var changes map[string]models.FieldUpdate
	require.NoError(t, json.Unmarshal(audit.entries[0].Changes, &changes))
	assert.Equal(t, string(models.RoleUnassigned), changes["role"].Old)
	assert.Equal(t, string(models.RoleReader), changes["role"].New)
}

func TestAssignRoleNonAdminForbidden(t *testing.T) {
	target := &models.Profile{ID: "u1", Role: models.RoleUnassigned}
	svc, repo, _ := newProfileFixture(target)

	_, err := svc.AssignRole(context.Background(), coordinator(), "u1", models.RoleReader)

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Zero(t, repo.updateCalls)
}

func TestAssignRoleOwnAccountForbidden(t *testing.T) {
	actor := admin()
	svc, repo, _ := newProfileFixture(&models.Profile{ID: actor.ID, Role: models.RoleAdministrator})

	_, err := svc.AssignRole(context.Background(), actor, actor.ID, models.RoleReader)

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Zero(t, repo.updateCalls)
}

func TestAssignRoleUnknownRoleRejected(t *testing.T) {
	svc, _, _ := newProfileFixture(&models.Profile{ID: "u1"})

	_, err := svc.AssignRole(context.Background(), admin(), "u1", models.Role("superuser"))

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssignRoleSameRoleIsNoOp(t *testing.T) {
	svc, repo, audit := newProfileFixture(&models.Profile{ID: "u1", Role: models.RoleReader})

	updated, err := svc.AssignRole(context.Background(), admin(), "u1", models.RoleReader)

	require.NoError(t, err)
	assert.Equal(t, models.RoleReader, updated.Role)
	assert.Zero(t, repo.updateCalls)
	assert.Empty(t, audit.entries)
}
