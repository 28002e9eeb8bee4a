package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unimet-iinf/obs-admin-api/internal/models"
	"github.com/unimet-iinf/obs-admin-api/internal/service"
	appErrors "github.com/unimet-iinf/obs-admin-api/pkg/errors"
	"github.com/unimet-iinf/obs-admin-api/pkg/response"
)

// ProfileHandler exposes the user-management view.
type ProfileHandler struct {
	service *service.ProfileService
}

// NewProfileHandler creates a new handler.
func NewProfileHandler(svc *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{service: svc}
}

// List godoc
// @Summary List staff profiles
// @Description All staff accounts for the user-management view
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users [get]
func (h *ProfileHandler) List(c *gin.Context) {
	profiles, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, profiles, nil)
}

// AssignRole godoc
// @Summary Assign role
// @Description Change the role of a staff profile (administrators only)
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "Profile ID"
// @Param payload body object true "Role payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id}/role [put]
func (h *ProfileHandler) AssignRole(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Role models.Role `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid role payload"))
		return
	}

	profile, err := h.service.AssignRole(c.Request.Context(), actor, c.Param("id"), payload.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, profile, nil)
}
