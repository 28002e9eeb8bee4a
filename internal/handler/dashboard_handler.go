package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unimet-iinf/obs-admin-api/internal/middleware"
	"github.com/unimet-iinf/obs-admin-api/internal/service"
	"github.com/unimet-iinf/obs-admin-api/pkg/response"
)

// DashboardHandler serves the aggregate overview.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Overview godoc
// @Summary Dashboard overview
// @Description Totals, status/department distributions, responsible ranking and daily volume
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	stats, cacheHit, err := h.service.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}
