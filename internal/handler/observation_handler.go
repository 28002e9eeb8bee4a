package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/unimet-iinf/obs-admin-api/internal/models"
	"github.com/unimet-iinf/obs-admin-api/internal/service"
	appErrors "github.com/unimet-iinf/obs-admin-api/pkg/errors"
	"github.com/unimet-iinf/obs-admin-api/pkg/response"
)

// ObservationHandler exposes the review board: filtered listings, the claim
// workflow and explicit saves.
type ObservationHandler struct {
	observations *service.ObservationService
	review       *service.ReviewService
	dashboard    *service.DashboardService
}

// NewObservationHandler creates a new handler.
func NewObservationHandler(observations *service.ObservationService, review *service.ReviewService, dashboard *service.DashboardService) *ObservationHandler {
	return &ObservationHandler{observations: observations, review: review, dashboard: dashboard}
}

// List godoc
// @Summary List observations
// @Description List enrollment observations with filters and pagination
// @Tags Observations
// @Produce json
// @Param departments query string false "Comma separated department codes"
// @Param status query string false "Status label"
// @Param semester query string false "Semester"
// @Param student_id query string false "Student ID"
// @Param search query string false "Free text search"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /observations [get]
func (h *ObservationHandler) List(c *gin.Context) {
	filter := parseObservationFilter(c)

	observations, pagination, err := h.observations.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, observations, pagination)
}

// Get godoc
// @Summary Get observation
// @Description Get a single observation by ID
// @Tags Observations
// @Produce json
// @Param id path int true "Observation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /observations/{id} [get]
func (h *ObservationHandler) Get(c *gin.Context) {
	id, err := parseObservationID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	obs, err := h.observations.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, obs, nil)
}

// AuditTrail godoc
// @Summary Get case history
// @Description Audit trail of a single observation, oldest first
// @Tags Observations
// @Produce json
// @Param id path int true "Observation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /observations/{id}/audit [get]
func (h *ObservationHandler) AuditTrail(c *gin.Context) {
	id, err := parseObservationID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	entries, err := h.observations.AuditTrail(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entries, nil)
}

// Claim godoc
// @Summary Claim observation
// @Description Move a pending case to EN REVISIÓN under the caller's initials
// @Tags Observations
// @Produce json
// @Param id path int true "Observation ID"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /observations/{id}/claim [post]
func (h *ObservationHandler) Claim(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	id, err := parseObservationID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	ticket := h.review.Claim(c.Request.Context(), actor, id)
	if ticket != nil {
		h.dashboard.Invalidate(c.Request.Context())
	}

	response.JSON(c, http.StatusOK, gin.H{"claimed": ticket != nil, "ticket": ticket}, nil)
}

// Release godoc
// @Summary Release observation
// @Description Revert a claimed-but-untouched case back to POR REVISAR
// @Tags Observations
// @Accept json
// @Produce json
// @Param id path int true "Observation ID"
// @Param payload body service.ClaimTicket true "Claim ticket"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /observations/{id}/release [post]
func (h *ObservationHandler) Release(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	id, err := parseObservationID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var ticket service.ClaimTicket
	if err := c.ShouldBindJSON(&ticket); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid claim ticket"))
		return
	}
	if ticket.ObservationID != id {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "ticket does not match observation"))
		return
	}

	released := h.review.Release(c.Request.Context(), actor, ticket)
	if released {
		h.dashboard.Invalidate(c.Request.Context())
	}

	response.JSON(c, http.StatusOK, gin.H{"released": released}, nil)
}

// Save godoc
// @Summary Save observation edits
// @Description Persist edited review fields on one case
// @Tags Observations
// @Accept json
// @Produce json
// @Param id path int true "Observation ID"
// @Param payload body models.PendingChange true "Pending change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /observations/{id} [put]
func (h *ObservationHandler) Save(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	id, err := parseObservationID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var change models.PendingChange
	if err := c.ShouldBindJSON(&change); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid change payload"))
		return
	}

	obs, err := h.review.Save(c.Request.Context(), actor, id, change)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.dashboard.Invalidate(c.Request.Context())

	response.JSON(c, http.StatusOK, obs, nil)
}

func parseObservationID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid observation id")
	}
	return id, nil
}

func parseObservationFilter(c *gin.Context) models.ObservationFilter {
	filter := models.ObservationFilter{
		Semester:  c.Query("semester"),
		StudentID: c.Query("student_id"),
		Search:    c.Query("search"),
	}
	if raw := c.Query("departments"); raw != "" {
		for _, code := range strings.Split(raw, ",") {
			code = strings.TrimSpace(code)
			if code != "" {
				filter.Departments = append(filter.Departments, models.Department(code))
			}
		}
	}
	if raw := c.Query("status"); raw != "" {
		status := models.Status(raw)
		filter.Status = &status
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		filter.Page = page
	}
	if pageSize, err := strconv.Atoi(c.Query("page_size")); err == nil {
		filter.PageSize = pageSize
	}
	return filter
}
