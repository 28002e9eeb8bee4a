package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/unimet-iinf/obs-admin-api/internal/models"
)

const observationColumns = `id, estatus, "Clasif.", "# de Caso", fecha, cédula, estudiante, "acción", "Nombre Asignatura", nrc, uc, "Sem.", "Prom.", autoriza, comentarios, contacto, responsable, "Respuesta interna", "Respuesta al Estudiante"`

// Review columns staff may write through the edit workflow. Everything else
// belongs to the upstream intake process.
var reviewColumns = map[string]string{
	"status":            "estatus",
	"responsible":       "responsable",
	"internal_response": `"Respuesta interna"`,
	"student_response":  `"Respuesta al Estudiante"`,
}

// ObservationRepository provides database access for enrollment observations.
type ObservationRepository struct {
	db *sqlx.DB
}

// NewObservationRepository creates a new instance of ObservationRepository.
func NewObservationRepository(db *sqlx.DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

// List returns observations matching the filter ordered by date descending,
// with total count for pagination.
func (r *ObservationRepository) List(ctx context.Context, filter models.ObservationFilter) ([]models.Observation, int, error) {
	baseQuery := `FROM observaciones WHERE 1=1`
	var conditions []string
	var args []interface{}

	if len(filter.Departments) > 0 {
		codes := make([]string, len(filter.Departments))
		for i, d := range filter.Departments {
			codes[i] = string(d)
		}
		conditions = append(conditions, fmt.Sprintf(`"Clasif." = ANY($%d)`, len(args)+1))
		args = append(args, pq.Array(codes))
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("estatus = $%d", len(args)+1))
		args = append(args, string(*filter.Status))
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf(`"Sem." = $%d`, len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("cédula::text = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf(`(estudiante ILIKE $%d OR cédula::text ILIKE $%d OR "Nombre Asignatura" ILIKE $%d OR "# de Caso"::text ILIKE $%d)`, idx, idx, idx, idx))
		args = append(args, "%"+strings.TrimSpace(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 15
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY fecha DESC LIMIT %d OFFSET %d", observationColumns, baseQuery, pageSize, offset)

	observations, err := r.queryObservations(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list observations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count observations: %w", err)
	}

	return observations, total, nil
}

// FindByID returns a single observation.
func (r *ObservationRepository) FindByID(ctx context.Context, id int64) (*models.Observation, error) {
	query := fmt.Sprintf("SELECT %s FROM observaciones WHERE id = $1 LIMIT 1", observationColumns)
	observations, err := r.queryObservations(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("find observation by id: %w", err)
	}
	if len(observations) == 0 {
		return nil, sql.ErrNoRows
	}
	return &observations[0], nil
}

// ListByStudent returns every case for a student, newest first.
func (r *ObservationRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Observation, error) {
	query := fmt.Sprintf("SELECT %s FROM observaciones WHERE cédula::text = $1 ORDER BY fecha DESC", observationColumns)
	observations, err := r.queryObservations(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("list observations by student: %w", err)
	}
	return observations, nil
}

// UpdateReviewFields writes the given review fields on one row. Keys must
// come from the reviewColumns whitelist.
func (r *ObservationRepository) UpdateReviewFields(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	assignments := make([]string, 0, len(updates))
	args := make([]interface{}, 0, len(updates)+1)
	for field, value := range updates {
		column, ok := reviewColumns[field]
		if !ok {
			return fmt.Errorf("update observation: field %q is not writable", field)
		}
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE observaciones SET %s WHERE id = $%d", strings.Join(assignments, ", "), len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update observation %d: %w", id, err)
	}
	return nil
}

// UpdateStatusBatch moves a set of rows to the given status and responsible
// in one statement.
func (r *ObservationRepository) UpdateStatusBatch(ctx context.Context, ids []int64, status models.Status, responsible string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE observaciones SET estatus = $1, responsable = $2 WHERE id = ANY($3)`
	if _, err := r.db.ExecContext(ctx, query, string(status), responsible, pq.Array(ids)); err != nil {
		return fmt.Errorf("batch update observations: %w", err)
	}
	return nil
}

// Totals returns the headline dashboard counters.
func (r *ObservationRepository) Totals(ctx context.Context) (models.DashboardTotals, error) {
	const query = `SELECT COUNT(*) AS total_cases,
		COUNT(DISTINCT cédula) AS total_students,
		COUNT(*) FILTER (WHERE estatus IN ('POR REVISAR', 'EN REVISIÓN')) AS pending_review,
		COUNT(*) FILTER (WHERE estatus = 'SOLUCIONADO') AS resolved
		FROM observaciones`
	var totals models.DashboardTotals
	row := r.db.QueryRowxContext(ctx, query)
	if err := row.Scan(&totals.TotalCases, &totals.TotalStudents, &totals.PendingReview, &totals.Resolved); err != nil {
		return models.DashboardTotals{}, fmt.Errorf("observation totals: %w", err)
	}
	return totals, nil
}

// StatusDistribution returns case counts per status.
func (r *ObservationRepository) StatusDistribution(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT estatus, COUNT(*) FROM observaciones GROUP BY estatus ORDER BY COUNT(*) DESC`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("status distribution: %w", err)
	}
	defer rows.Close()

	var result []models.StatusCount
	for rows.Next() {
		var entry models.StatusCount
		if err := rows.Scan(&entry.Status, &entry.Count); err != nil {
			return nil, fmt.Errorf("scan status distribution: %w", err)
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// DepartmentDistribution returns case counts per classification code.
func (r *ObservationRepository) DepartmentDistribution(ctx context.Context) ([]models.DepartmentCount, error) {
	const query = `SELECT "Clasif.", COUNT(*) FROM observaciones GROUP BY "Clasif." ORDER BY COUNT(*) DESC`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("department distribution: %w", err)
	}
	defer rows.Close()

	var result []models.DepartmentCount
	for rows.Next() {
		var entry models.DepartmentCount
		if err := rows.Scan(&entry.Department, &entry.Count); err != nil {
			return nil, fmt.Errorf("scan department distribution: %w", err)
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// TopResponsible ranks staff initials by handled cases.
func (r *ObservationRepository) TopResponsible(ctx context.Context, limit int) ([]models.ResponsibleRanking, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `SELECT responsable, COUNT(*) FROM observaciones WHERE responsable IS NOT NULL AND responsable <> '' GROUP BY responsable ORDER BY COUNT(*) DESC LIMIT $1`
	rows, err := r.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("top responsible: %w", err)
	}
	defer rows.Close()

	var result []models.ResponsibleRanking
	for rows.Next() {
		var entry models.ResponsibleRanking
		if err := rows.Scan(&entry.Responsible, &entry.Count); err != nil {
			return nil, fmt.Errorf("scan top responsible: %w", err)
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// DailyVolume returns intake counts per day over the trailing window.
func (r *ObservationRepository) DailyVolume(ctx context.Context, days int) ([]models.DailyCount, error) {
	if days <= 0 {
		days = 30
	}
	const query = `SELECT TO_CHAR(fecha::date, 'YYYY-MM-DD') AS day, COUNT(*)
		FROM observaciones
		WHERE fecha >= NOW() - ($1 || ' days')::interval
		GROUP BY day ORDER BY day`
	rows, err := r.db.QueryxContext(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("daily volume: %w", err)
	}
	defer rows.Close()

	var result []models.DailyCount
	for rows.Next() {
		var entry models.DailyCount
		if err := rows.Scan(&entry.Date, &entry.Count); err != nil {
			return nil, fmt.Errorf("scan daily volume: %w", err)
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *ObservationRepository) queryObservations(ctx context.Context, query string, args ...interface{}) ([]models.Observation, error) {
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []models.Observation
	for rows.Next() {
		row := map[string]interface{}{}
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		observations = append(observations, ObservationFromRow(row))
	}
	return observations, rows.Err()
}
