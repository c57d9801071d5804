package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seletivo/admissions-api/internal/service"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
	"github.com/seletivo/admissions-api/pkg/response"
)

// SeatHandler wires HTTP endpoints to seat administration.
type SeatHandler struct {
	vacancies *service.VacancyService
}

// NewSeatHandler creates a new handler.
func NewSeatHandler(vacancies *service.VacancyService) *SeatHandler {
	return &SeatHandler{vacancies: vacancies}
}

type createSeatsRequest struct {
	Count      int    `json:"count" binding:"required,gte=1"`
	EditionID  string `json:"edition_id" binding:"required"`
	CourseID   string `json:"course_id" binding:"required"`
	CategoryID string `json:"category_id" binding:"required"`
}

// Create godoc
// @Summary Create seats
// @Description Bulk-create unoccupied seats for (edition, course, category)
// @Tags Seats
// @Accept json
// @Produce json
// @Param payload body createSeatsRequest true "Seats payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /seats [post]
func (h *SeatHandler) Create(c *gin.Context) {
	var req createSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid seats payload"))
		return
	}

	seats, err := h.vacancies.CreateSeats(c.Request.Context(), req.Count, req.EditionID, req.CourseID, req.CategoryID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, seats)
}
