package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seletivo/admissions-api/internal/service"
	"github.com/seletivo/admissions-api/pkg/response"
)

// InterestHandler wires HTTP endpoints to interest confirmation.
type InterestHandler struct {
	interests *service.InterestService
}

// NewInterestHandler creates a new handler.
func NewInterestHandler(interests *service.InterestService) *InterestHandler {
	return &InterestHandler{interests: interests}
}

// Confirm godoc
// @Summary Confirm interest
// @Description Record the candidate's intent to enroll on a summoned registration
// @Tags Interest
// @Produce json
// @Param id path string true "Round ID"
// @Param regID path string true "Registration ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rounds/{id}/registrations/{regID}/interest [post]
func (h *InterestHandler) Confirm(c *gin.Context) {
	confirmation, err := h.interests.Confirm(c.Request.Context(), c.Param("regID"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, confirmation, nil)
}

// Cancel godoc
// @Summary Withdraw interest
// @Description Withdraw a confirmation while the review window is open
// @Tags Interest
// @Produce json
// @Param id path string true "Round ID"
// @Param regID path string true "Registration ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rounds/{id}/registrations/{regID}/interest [delete]
func (h *InterestHandler) Cancel(c *gin.Context) {
	if err := h.interests.Cancel(c.Request.Context(), c.Param("regID"), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
