package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/unimet-iinf/obs-admin-api/internal/models"
	appErrors "github.com/unimet-iinf/obs-admin-api/pkg/errors"
)

type mockAuthRepo struct {
	profiles      map[string]*models.Profile
	refreshTokens map[string]*models.RefreshToken
	revokedAll    map[string]int
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		profiles:      map[string]*models.Profile{},
		refreshTokens: map[string]*models.RefreshToken{},
		revokedAll:    map[string]int{},
	}
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	for _, p := range m.profiles {
		if p.Email == email {
			clone := *p
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	if p, ok := m.profiles[id]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, profile *models.Profile) error {
	m.profiles[profile.ID] = profile
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if p, ok := m.profiles[id]; ok {
		p.LastLogin = &ts
	}
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if p, ok := m.profiles[id]; ok {
		p.PasswordHash = passwordHash
		p.UpdatedAt = updatedAt
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll[userID]++
	for _, tok := range m.refreshTokens {
		if tok.UserID == userID {
			tok.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.refreshTokens[token]; ok {
		clone := *t
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, tok := range m.refreshTokens {
		if tok.ID == id {
			tok.Revoked = true
			tok.RevokedAt = &revokedAt
		}
	}
	return nil
}

func newAuthFixture() (*AuthService, *mockAuthRepo, *mockAuditRepo) {
	repo := newMockAuthRepo()
	audit := &mockAuditRepo{}
	svc := NewAuthService(repo, NewAuditEmitter(audit, zap.NewNop()), validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "obs-admin-api",
	})
	return svc, repo, audit
}

func registerRequest() models.RegisterRequest {
	return models.RegisterRequest{
		Email:    "Ana.Blanco@unimet.edu.ve",
		Password: "secret123",
		FullName: "Ana Blanco",
		Initials: "ab",
	}
}

func TestRegisterCreatesUnassignedProfile(t *testing.T) {
	svc, repo, audit := newAuthFixture()

	info, err := svc.Register(context.Background(), registerRequest())

	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "ana.blanco@unimet.edu.ve", info.Email)
	assert.Equal(t, "AB", info.Initials)
	assert.Equal(t, models.RoleUnassigned, info.Role)

	stored := repo.profiles[info.ID]
	require.NotNil(t, stored)
	assert.NotEqual(t, "secret123", stored.PasswordHash)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionRegister, audit.entries[0].Action)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc, _, _ := newAuthFixture()

	_, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), registerRequest())

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestLoginIssuesTokenPair(t *testing.T) {
	svc, repo, audit := newAuthFixture()

	info, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ana.blanco@unimet.edu.ve",
		Password: "secret123",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(900), resp.ExpiresIn)
	assert.Equal(t, info.ID, resp.Profile.ID)

	require.Contains(t, repo.refreshTokens, resp.RefreshToken)
	require.NotNil(t, repo.profiles[info.ID].LastLogin)
	assert.Equal(t, models.AuditActionLogin, audit.entries[len(audit.entries)-1].Action)
}

func TestLoginWrongPasswordRejected(t *testing.T) {
	svc, _, _ := newAuthFixture()

	_, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), models.LoginRequest{
		Email:    "ana.blanco@unimet.edu.ve",
		Password: "wrong",
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRoundTrip(t *testing.T) {
	svc, _, _ := newAuthFixture()

	_, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ana.blanco@unimet.edu.ve",
		Password: "secret123",
	})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.AccessToken)

	require.NoError(t, err)
	assert.Equal(t, resp.Profile.ID, claims.UserID)
	assert.Equal(t, models.RoleUnassigned, claims.Role)
	assert.Equal(t, "AB", claims.Initials)
}

func TestValidateTokenWrongSecretRejected(t *testing.T) {
	svc, _, _ := newAuthFixture()

	_, err := svc.ValidateToken("not-a-token")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRefreshTokenRotates(t *testing.T) {
	svc, repo, _ := newAuthFixture()

	_, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ana.blanco@unimet.edu.ve",
		Password: "secret123",
	})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: login.RefreshToken,
	})

	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{
		RefreshToken: login.RefreshToken,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestLogoutRevokesOwnTokenOnly(t *testing.T) {
	svc, repo, _ := newAuthFixture()

	info, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	login, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ana.blanco@unimet.edu.ve",
		Password: "secret123",
	})
	require.NoError(t, err)

	err = svc.Logout(context.Background(), login.RefreshToken, "someone-else")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.False(t, repo.refreshTokens[login.RefreshToken].Revoked)

	err = svc.Logout(context.Background(), login.RefreshToken, info.ID)
	require.NoError(t, err)
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)
}

func TestChangePassword(t *testing.T) {
	svc, repo, _ := newAuthFixture()

	info, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	err = svc.ChangePassword(context.Background(), info.ID, models.ChangePasswordRequest{
		OldPassword: "secret123",
		NewPassword: "newsecret",
	})

	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.profiles[info.ID].PasswordHash), []byte("newsecret")))
	assert.Equal(t, 1, repo.revokedAll[info.ID])
}

func TestChangePasswordWrongOldRejected(t *testing.T) {
	svc, _, _ := newAuthFixture()

	info, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	err = svc.ChangePassword(context.Background(), info.ID, models.ChangePasswordRequest{
		OldPassword: "nope12",
		NewPassword: "newsecret",
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
