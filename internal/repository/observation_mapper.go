package repository

import (
	"strconv"
	"strings"
	"time"

	"github.com/unimet-iinf/obs-admin-api/internal/models"
)

// Column names of the observaciones table. The sheet import that feeds the
// table kept the original header punctuation, so several names need quoting.
const (
	colID               = "id"
	colStatus           = "estatus"
	colClassification   = "Clasif."
	colCaseNumber       = "# de Caso"
	colDate             = "fecha"
	colStudentID        = "cédula"
	colStudentName      = "estudiante"
	colAction           = "acción"
	colSubject          = "Nombre Asignatura"
	colNRC              = "nrc"
	colCredits          = "uc"
	colSemester         = "Sem."
	colGPA              = "Prom."
	colAuthorized       = "autoriza"
	colComments         = "comentarios"
	colContact          = "contacto"
	colResponsible      = "responsable"
	colInternalResponse = "Respuesta interna"
	colStudentResponse  = "Respuesta al Estudiante"
)

// ObservationFromRow converts a raw observaciones row into a typed
// Observation. Missing or NULL columns default to zero values; malformed
// upstream data is passed through as empty rather than rejected.
func ObservationFromRow(row map[string]interface{}) models.Observation {
	return models.Observation{
		ID:               rowInt64(row, colID),
		CaseNumber:       rowString(row, colCaseNumber),
		Status:           models.Status(rowString(row, colStatus)),
		Classification:   models.Department(rowString(row, colClassification)),
		Date:             rowTime(row, colDate),
		StudentID:        rowString(row, colStudentID),
		StudentName:      rowString(row, colStudentName),
		Semester:         rowString(row, colSemester),
		GPA:              rowFloat(row, colGPA),
		Credits:          int(rowInt64(row, colCredits)),
		Authorized:       rowString(row, colAuthorized),
		Action:           rowString(row, colAction),
		Subject:          rowString(row, colSubject),
		NRC:              rowString(row, colNRC),
		Comments:         rowString(row, colComments),
		Contact:          rowString(row, colContact),
		Responsible:      rowString(row, colResponsible),
		InternalResponse: rowString(row, colInternalResponse),
		StudentResponse:  rowString(row, colStudentResponse),
	}
}

func rowString(row map[string]interface{}, key string) string {
	switch v := row[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return ""
	}
}

func rowInt64(row map[string]interface{}, key string) int64 {
	switch v := row[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case []byte:
		n, _ := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n
	default:
		return 0
	}
}

func rowFloat(row map[string]interface{}, key string) float64 {
	switch v := row[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case []byte:
		f, _ := strconv.ParseFloat(strings.Replace(strings.TrimSpace(string(v)), ",", ".", 1), 64)
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.Replace(strings.TrimSpace(v), ",", ".", 1), 64)
		return f
	default:
		return 0
	}
}

func rowTime(row map[string]interface{}, key string) time.Time {
	switch v := row[key].(type) {
	case time.Time:
		return v
	case []byte:
		return parseTimeString(string(v))
	case string:
		return parseTimeString(v)
	default:
		return time.Time{}
	}
}

func parseTimeString(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
