package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unimet-iinf/obs-admin-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var observationTestColumns = []string{
	"id", "estatus", "Clasif.", "# de Caso", "fecha", "cédula", "estudiante",
	"acción", "Nombre Asignatura", "nrc", "uc", "Sem.", "Prom.", "autoriza",
	"comentarios", "contacto", "responsable", "Respuesta interna", "Respuesta al Estudiante",
}

func addObservationRow(rows *sqlmock.Rows, id int64, status, studentID string) {
	rows.AddRow(id, status, "IS", "2026-0001", time.Now(), studentID, "María Pérez",
		"Agregar", "Redes", "10233", int64(4), "2526-1", "15,5", "", "", "", "", "", "")
}

func TestObservationFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewObservationRepository(db)

	rows := sqlmock.NewRows(observationTestColumns)
	addObservationRow(rows, 7, "POR REVISAR", "20254321")
	mock.ExpectQuery(regexp.QuoteMeta("FROM observaciones WHERE id = $1 LIMIT 1")).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	obs, err := repo.FindByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), obs.ID)
	assert.Equal(t, models.StatusPendingReview, obs.Status)
	assert.Equal(t, "20254321", obs.StudentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestObservationFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewObservationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM observaciones WHERE id = $1 LIMIT 1")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(observationTestColumns))

	_, err := repo.FindByID(context.Background(), 99)
	assert.Error(t, err)
}

func TestObservationListDefaultsPagination(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewObservationRepository(db)

	rows := sqlmock.NewRows(observationTestColumns)
	addObservationRow(rows, 1, "POR REVISAR", "20254321")
	addObservationRow(rows, 2, "SOLUCIONADO", "20259999")
	mock.ExpectQuery(regexp.QuoteMeta("FROM observaciones WHERE 1=1 ORDER BY fecha DESC LIMIT 15 OFFSET 0")).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM observaciones WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	observations, total, err := repo.List(context.Background(), models.ObservationFilter{})
	require.NoError(t, err)
	assert.Len(t, observations, 2)
	assert.Equal(t, 2, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestObservationListStatusFilter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewObservationRepository(db)

	rows := sqlmock.NewRows(observationTestColumns)
	addObservationRow(rows, 1, "POR REVISAR", "20254321")
	mock.ExpectQuery(regexp.QuoteMeta("FROM observaciones WHERE 1=1 AND estatus = $1")).
		WithArgs("POR REVISAR").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("POR REVISAR").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	status := models.StatusPendingReview
	observations, total, err := repo.List(context.Background(), models.ObservationFilter{Status: &status})
	require.NoError(t, err)
	assert.Len(t, observations, 1)
	assert.Equal(t, 1, total)
}

func TestUpdateReviewFieldsRejectsUnknownField(t *testing.T) {
	db, _, cleanup := newMock(t)
	defer cleanup()
	repo := NewObservationRepository(db)

	err := repo.UpdateReviewFields(context.Background(), 1, map[string]interface{}{"cédula": "x"})
	assert.Error(t, err)
}

func TestUpdateReviewFieldsSingleColumn(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewObservationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE observaciones SET estatus = $1 WHERE id = $2")).
		WithArgs("EN REVISIÓN", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateReviewFields(context.Background(), 3, map[string]interface{}{"status": "EN REVISIÓN"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusBatch(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewObservationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE observaciones SET estatus = $1, responsable = $2 WHERE id = ANY($3)")).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.UpdateStatusBatch(context.Background(), []int64{1, 2}, models.StatusInReview, "AB")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestObservationTotals(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewObservationRepository(db)

	rows := sqlmock.NewRows([]string{"total_cases", "total_students", "pending_review", "resolved"}).
		AddRow(120, 45, 30, 70)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(rows)

	totals, err := repo.Totals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120, totals.TotalCases)
	assert.Equal(t, 45, totals.TotalStudents)
	assert.Equal(t, 30, totals.PendingReview)
	assert.Equal(t, 70, totals.Resolved)
}

func TestStatusDistribution(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewObservationRepository(db)

	rows := sqlmock.NewRows([]string{"estatus", "count"}).
		AddRow("POR REVISAR", 30).
		AddRow("SOLUCIONADO", 70)
	mock.ExpectQuery("SELECT estatus, COUNT").WillReturnRows(rows)

	dist, err := repo.StatusDistribution(context.Background())
	require.NoError(t, err)
	require.Len(t, dist, 2)
	assert.Equal(t, models.StatusPendingReview, dist[0].Status)
	assert.Equal(t, 30, dist[0].Count)
}
