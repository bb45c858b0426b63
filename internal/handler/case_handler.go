package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lifeline-ems/service-dispatch/internal/application"
	"github.com/lifeline-ems/service-dispatch/internal/domain/dispatch"
	"github.com/lifeline-ems/service-dispatch/internal/platform/response"
)

// CaseHandler handles HTTP requests for dispatch case administration.
type CaseHandler struct {
	service *application.CaseService
}

// NewCaseHandler creates a new CaseHandler.
func NewCaseHandler(service *application.CaseService) *CaseHandler {
	return &CaseHandler{service: service}
}

// RegisterRoutes registers all case routes on the given router group.
func (h *CaseHandler) RegisterRoutes(r *gin.RouterGroup) {
	cases := r.Group("/api/v1/cases")
	{
		cases.GET("", h.ListCases)
		cases.GET("/stats", h.CaseStats)
		cases.GET("/:id", h.GetCase)
		cases.PUT("/:id/status", h.UpdateCaseStatus)
		cases.DELETE("/:id", h.DeleteCase)
		cases.DELETE("", h.DeleteAllCases)
	}
}

// GetCase handles GET /api/v1/cases/:id.
func (h *CaseHandler) GetCase(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid case ID")
		return
	}

	result, err := h.service.GetCase(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ListCases handles GET /api/v1/cases.
func (h *CaseHandler) ListCases(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := h.service.ListCases(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// UpdateCaseStatus handles PUT /api/v1/cases/:id/status. Only the two
// terminal statuses are reachable; the note applies to cancellations.
func (h *CaseHandler) UpdateCaseStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid case ID")
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var result *application.CaseDTO
	switch req.Status {
	case string(dispatch.StatusClosed):
		result, err = h.service.CloseCase(c.Request.Context(), id)
	case string(dispatch.StatusCanceled):
		result, err = h.service.CancelCase(c.Request.Context(), id, req.Note)
	default:
		response.BadRequest(c, "status must be CLOSED or CANCELED")
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// DeleteCase handles DELETE /api/v1/cases/:id.
func (h *CaseHandler) DeleteCase(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid case ID")
		return
	}

	if err := h.service.DeleteCase(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteAllCases handles DELETE /api/v1/cases.
func (h *CaseHandler) DeleteAllCases(c *gin.Context) {
	if err := h.service.DeleteAllCases(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CaseStats handles GET /api/v1/cases/stats.
func (h *CaseHandler) CaseStats(c *gin.Context) {
	result, err := h.service.CaseStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
