package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seletivo/admissions-api/internal/service"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
	"github.com/seletivo/admissions-api/pkg/response"
)

// ReviewHandler wires HTTP endpoints to document eligibility reviews.
type ReviewHandler struct {
	reviews *service.ReviewService
}

// NewReviewHandler creates a new handler.
func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// RecordSubReview godoc
// @Summary Record sub-review verdict
// @Description Upsert one per-type verdict; the review finalizes when the last required type lands
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Round ID"
// @Param regID path string true "Registration ID"
// @Param payload body service.SubReviewInput true "Verdict payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rounds/{id}/registrations/{regID}/review [put]
func (h *ReviewHandler) RecordSubReview(c *gin.Context) {
	var input service.SubReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verdict payload"))
		return
	}

	review, err := h.reviews.RecordSubReview(c.Request.Context(), c.Param("regID"), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, review, nil)
}

// RecordAppeal godoc
// @Summary Record appeal
// @Description Attach the single immutable appeal to a finalized negative review
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Round ID"
// @Param regID path string true "Registration ID"
// @Param payload body service.AppealInput true "Appeal payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rounds/{id}/registrations/{regID}/review/appeal [post]
func (h *ReviewHandler) RecordAppeal(c *gin.Context) {
	var input service.AppealInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid appeal payload"))
		return
	}

	appeal, err := h.reviews.RecordAppeal(c.Request.Context(), c.Param("regID"), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, appeal)
}

// Get godoc
// @Summary Get review with appeal
// @Tags Reviews
// @Produce json
// @Param id path string true "Round ID"
// @Param regID path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rounds/{id}/registrations/{regID}/review [get]
func (h *ReviewHandler) Get(c *gin.Context) {
	bundle, err := h.reviews.Bundle(c.Request.Context(), c.Param("regID"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if bundle.Review == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no review for this registration and round"))
		return
	}
	response.JSON(c, http.StatusOK, bundle, nil)
}
