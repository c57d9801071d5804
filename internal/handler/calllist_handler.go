package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seletivo/admissions-api/internal/service"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
	"github.com/seletivo/admissions-api/pkg/response"
)

// CallListHandler wires HTTP endpoints to call-list building and export.
type CallListHandler struct {
	lists   *service.CallListService
	exports *service.ExportService
}

// NewCallListHandler creates a new handler.
func NewCallListHandler(lists *service.CallListService, exports *service.ExportService) *CallListHandler {
	return &CallListHandler{lists: lists, exports: exports}
}

type buildCallListRequest struct {
	CourseID   string `json:"course_id" binding:"required"`
	CategoryID string `json:"category_id" binding:"required"`
}

// Build godoc
// @Summary Build call list
// @Description Rank and invite registrations for (round, course, category)
// @Tags CallLists
// @Accept json
// @Produce json
// @Param id path string true "Round ID"
// @Param payload body buildCallListRequest true "Build payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rounds/{id}/call-lists [post]
func (h *CallListHandler) Build(c *gin.Context) {
	var req buildCallListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid build payload"))
		return
	}

	list, err := h.lists.Build(c.Request.Context(), c.Param("id"), req.CourseID, req.CategoryID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, list)
}

// ListByRound godoc
// @Summary List call lists of a round
// @Tags CallLists
// @Produce json
// @Param id path string true "Round ID"
// @Success 200 {object} response.Envelope
// @Router /rounds/{id}/call-lists [get]
func (h *CallListHandler) ListByRound(c *gin.Context) {
	lists, err := h.lists.ListByRound(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lists, nil)
}

// Entries godoc
// @Summary List call list entries
// @Tags CallLists
// @Produce json
// @Param id path string true "Call list ID"
// @Success 200 {object} response.Envelope
// @Router /call-lists/{id}/entries [get]
func (h *CallListHandler) Entries(c *gin.Context) {
	entries, err := h.lists.Entries(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Export godoc
// @Summary Export call list
// @Description Render the ranked list to CSV or PDF and return a signed download URL
// @Tags CallLists
// @Produce json
// @Param id path string true "Round ID"
// @Param course_id query string true "Course ID"
// @Param category_id query string true "Category ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rounds/{id}/call-lists/export [get]
func (h *CallListHandler) Export(c *gin.Context) {
	courseID := c.Query("course_id")
	categoryID := c.Query("category_id")
	if courseID == "" || categoryID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "course_id and category_id are required"))
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportFormatCSV)))

	result, err := h.exports.Generate(c.Request.Context(), c.Param("id"), courseID, categoryID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
