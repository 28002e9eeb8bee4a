package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unimet-iinf/obs-admin-api/internal/models"
	"github.com/unimet-iinf/obs-admin-api/internal/service"
	appErrors "github.com/unimet-iinf/obs-admin-api/pkg/errors"
	"github.com/unimet-iinf/obs-admin-api/pkg/response"
)

// StudentHandler exposes the per-student view: grouped summaries and the
// batch claim/release/save paths.
type StudentHandler struct {
	students  *service.StudentService
	review    *service.ReviewService
	dashboard *service.DashboardService
}

// NewStudentHandler creates a new handler.
func NewStudentHandler(students *service.StudentService, review *service.ReviewService, dashboard *service.DashboardService) *StudentHandler {
	return &StudentHandler{students: students, review: review, dashboard: dashboard}
}

// List godoc
// @Summary List student summaries
// @Description Observations grouped per student, same filters as the flat list
// @Tags Students
// @Produce json
// @Param departments query string false "Comma separated department codes"
// @Param status query string false "Status label"
// @Param semester query string false "Semester"
// @Param search query string false "Free text search"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	filter := parseObservationFilter(c)

	summaries, total, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summaries, nil, map[string]interface{}{"observation_count": total})
}

// Get godoc
// @Summary Get student summary
// @Description All cases of one student with derived totals
// @Tags Students
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{studentId} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	summary, err := h.students.Get(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}

// Claim godoc
// @Summary Claim a student's pending cases
// @Description Batch claim over every POR REVISAR case of the student
// @Tags Students
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /students/{studentId}/claim [post]
func (h *StudentHandler) Claim(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	tickets := h.review.ClaimStudent(c.Request.Context(), actor, c.Param("studentId"))
	if len(tickets) > 0 {
		h.dashboard.Invalidate(c.Request.Context())
	}

	response.JSON(c, http.StatusOK, gin.H{"claimed": len(tickets), "tickets": tickets}, nil)
}

// Release godoc
// @Summary Release a student's claimed cases
// @Description Batch release of claimed-but-untouched cases
// @Tags Students
// @Accept json
// @Produce json
// @Param studentId path string true "Student ID"
// @Param payload body []service.ClaimTicket true "Claim tickets"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students/{studentId}/release [post]
func (h *StudentHandler) Release(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Tickets []service.ClaimTicket `json:"tickets" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid claim tickets"))
		return
	}

	released := h.review.ReleaseStudent(c.Request.Context(), actor, c.Param("studentId"), payload.Tickets)
	if released > 0 {
		h.dashboard.Invalidate(c.Request.Context())
	}

	response.JSON(c, http.StatusOK, gin.H{"released": released}, nil)
}

// Save godoc
// @Summary Save edits across a student's cases
// @Description Batch save; one validation failure rejects the whole batch
// @Tags Students
// @Accept json
// @Produce json
// @Param studentId path string true "Student ID"
// @Param payload body map[string]models.PendingChange true "Changes keyed by observation ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students/{studentId}/observations [put]
func (h *StudentHandler) Save(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Changes map[int64]models.PendingChange `json:"changes" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid changes payload"))
		return
	}

	observations, err := h.review.SaveStudent(c.Request.Context(), actor, c.Param("studentId"), payload.Changes)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.dashboard.Invalidate(c.Request.Context())

	response.JSON(c, http.StatusOK, observations, nil)
}
