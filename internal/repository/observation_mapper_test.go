package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/unimet-iinf/obs-admin-api/internal/models"
)

func TestObservationFromRow(t *testing.T) {
	date := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	row := map[string]interface{}{
		"id":                      int64(42),
		"estatus":                 []byte("POR REVISAR"),
		"Clasif.":                 []byte("IS"),
		"# de Caso":               []byte("2026-0042"),
		"fecha":                   date,
		"cédula":                  int64(20254321),
		"estudiante":              []byte("María Pérez"),
		"acción":                  []byte("Agregar"),
		"Nombre Asignatura":       []byte("Redes de Computadoras"),
		"nrc":                     []byte("10233"),
		"uc":                      []byte("4"),
		"Sem.":                    []byte("2526-1"),
		"Prom.":                   []byte("15,75"),
		"comentarios":             []byte("cupo lleno"),
		"responsable":             nil,
		"Respuesta interna":       nil,
		"Respuesta al Estudiante": nil,
	}

	obs := ObservationFromRow(row)

	assert.Equal(t, int64(42), obs.ID)
	assert.Equal(t, models.StatusPendingReview, obs.Status)
	assert.Equal(t, models.DeptSoftware, obs.Classification)
	assert.Equal(t, "2026-0042", obs.CaseNumber)
	assert.Equal(t, date, obs.Date)
	assert.Equal(t, "20254321", obs.StudentID)
	assert.Equal(t, "María Pérez", obs.StudentName)
	assert.Equal(t, "Agregar", obs.Action)
	assert.Equal(t, 4, obs.Credits)
	assert.Equal(t, 15.75, obs.GPA)
	assert.Empty(t, obs.Responsible)
	assert.Empty(t, obs.InternalResponse)
	assert.Empty(t, obs.StudentResponse)
}

func TestObservationFromRowDefaultsMissingColumns(t *testing.T) {
	obs := ObservationFromRow(map[string]interface{}{})

	assert.Zero(t, obs.ID)
	assert.Empty(t, string(obs.Status))
	assert.Empty(t, obs.StudentID)
	assert.Zero(t, obs.GPA)
	assert.True(t, obs.Date.IsZero())
}

func TestObservationFromRowToleratesOddTypes(t *testing.T) {
	row := map[string]interface{}{
		"id":      "17",
		"cédula":  "V-1234",
		"uc":      3.0,
		"Prom.":   "12.5",
		"fecha":   "2026-01-15",
		"estatus": "EN REVISIÓN",
	}

	obs := ObservationFromRow(row)

	assert.Equal(t, int64(17), obs.ID)
	assert.Equal(t, "V-1234", obs.StudentID)
	assert.Equal(t, 3, obs.Credits)
	assert.Equal(t, 12.5, obs.GPA)
	assert.Equal(t, 2026, obs.Date.Year())
	assert.Equal(t, models.StatusInReview, obs.Status)
}

func TestRowStringUnknownTypeFallsBackToEmpty(t *testing.T) {
	row := map[string]interface{}{"comentarios": struct{}{}}
	assert.Empty(t, rowString(row, "comentarios"))
}
