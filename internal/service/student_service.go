package service

import (
	"context"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/unimet-iinf/obs-admin-api/internal/models"
	appErrors "github.com/unimet-iinf/obs-admin-api/pkg/errors"
)

const studentMailDomain = "correo.unimet.edu.ve"

type observationLister interface {
	List(ctx context.Context, filter models.ObservationFilter) ([]models.Observation, int, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Observation, error)
}

// StudentService derives per-student groupings from the observation list.
// Summaries are computed on every fetch and never persisted.
type StudentService struct {
	repo   observationLister
	logger *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo observationLister, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, logger: logger}
}

// List returns student summaries for observations matching the filter.
// Pagination applies to the underlying observations, not the groups.
func (s *StudentService) List(ctx context.Context, filter models.ObservationFilter) ([]models.StudentSummary, int, error) {
	observations, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list observations")
	}
	return GroupByStudent(observations), total, nil
}

// Get returns the summary for a single student.
func (s *StudentService) Get(ctx context.Context, studentID string) (*models.StudentSummary, error) {
	observations, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student observations")
	}
	if len(observations) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student has no observations")
	}
	summaries := GroupByStudent(observations)
	return &summaries[0], nil
}

// GroupByStudent folds observations into one summary per distinct student id,
// insertion-ordered by first occurrence. Descriptive fields come from the
// first observation seen for the student.
func GroupByStudent(observations []models.Observation) []models.StudentSummary {
	index := make(map[string]int)
	var summaries []models.StudentSummary

	for _, obs := range observations {
		i, seen := index[obs.StudentID]
		if !seen {
			i = len(summaries)
			index[obs.StudentID] = i
			summaries = append(summaries, models.StudentSummary{
				StudentID:   obs.StudentID,
				StudentName: obs.StudentName,
				Semester:    obs.Semester,
				GPA:         obs.GPA,
				Email:       SynthesizeStudentEmail(obs.StudentName),
			})
		}
		summary := &summaries[i]
		summary.TotalRequests++
		summary.TotalCredits += obs.Credits
		if obs.Status.Pending() {
			summary.PendingReviewCount++
		}
		summary.Requests = append(summary.Requests, obs)
	}
	return summaries
}

// SynthesizeStudentEmail builds the institutional address from a student name:
// first and last word lowercased, diacritics stripped, joined with a dot.
func SynthesizeStudentEmail(name string) string {
	normalized := stripDiacritics(strings.ToLower(strings.TrimSpace(name)))
	words := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(words) == 0 {
		return ""
	}
	local := words[0]
	if len(words) > 1 {
		local += "." + words[len(words)-1]
	}
	return local + "@" + studentMailDomain
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
