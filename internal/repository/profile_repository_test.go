package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unimet-iinf/obs-admin-api/internal/models"
)

func TestProfileFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "initials", "full_name", "last_login", "created_at", "updated_at"}).
		AddRow("u1", "ana@unimet.edu.ve", "hash", string(models.RoleCoordinator), "AB", "Ana Blanco", now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, role, initials, full_name, last_login, created_at, updated_at FROM profiles WHERE email = $1 LIMIT 1")).
		WithArgs("ana@unimet.edu.ve").
		WillReturnRows(rows)

	profile, err := repo.FindByEmail(context.Background(), "ana@unimet.edu.ve")
	require.NoError(t, err)
	assert.Equal(t, models.RoleCoordinator, profile.Role)
	assert.Equal(t, "AB", profile.Initials)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectExec("INSERT INTO profiles").WillReturnResult(sqlmock.NewResult(1, 1))

	profile := &models.Profile{Email: "n@unimet.edu.ve", Role: models.RoleUnassigned, Initials: "NN", FullName: "Nuevo"}
	err := repo.Create(context.Background(), profile)
	require.NoError(t, err)
	assert.NotEmpty(t, profile.ID)
	assert.False(t, profile.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileUpdateRole(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE profiles SET role = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("u1", string(models.RoleReader), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateRole(context.Background(), "u1", models.RoleReader)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{UserID: "u1", Token: "token", ExpiresAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
