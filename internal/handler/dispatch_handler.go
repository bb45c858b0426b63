package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lifeline-ems/service-dispatch/internal/application"
	"github.com/lifeline-ems/service-dispatch/internal/dto"
	"github.com/lifeline-ems/service-dispatch/internal/platform/response"
)

// DispatchHandler handles HTTP requests for emergency dispatches.
type DispatchHandler struct {
	service *application.DispatchService
}

// NewDispatchHandler creates a new DispatchHandler.
func NewDispatchHandler(service *application.DispatchService) *DispatchHandler {
	return &DispatchHandler{service: service}
}

// RegisterRoutes registers all dispatch routes on the given router group.
func (h *DispatchHandler) RegisterRoutes(r *gin.RouterGroup) {
	dispatch := r.Group("/api/v1/dispatch")
	{
		dispatch.POST("/emergency", h.HandleEmergency)
	}
}

// HandleEmergency handles POST /api/v1/dispatch/emergency. Business
// failures are reported as a FAILURE result in a 200 response; only a
// malformed request body produces a 400.
func (h *DispatchHandler) HandleEmergency(c *gin.Context) {
	var req dto.EmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result := h.service.HandleEmergency(c.Request.Context(), req)
	response.Success(c, result)
}
