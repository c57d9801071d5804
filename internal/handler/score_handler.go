package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seletivo/admissions-api/internal/models"
	"github.com/seletivo/admissions-api/internal/service"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
	"github.com/seletivo/admissions-api/pkg/response"
)

// ScoreHandler wires HTTP endpoints to the exam-score feed.
type ScoreHandler struct {
	scores *service.ScoreService
}

// NewScoreHandler creates a new handler.
func NewScoreHandler(scores *service.ScoreService) *ScoreHandler {
	return &ScoreHandler{scores: scores}
}

type importScoresRequest struct {
	Rows []models.ScoreImportRow `json:"rows" binding:"required,min=1"`
}

// Import godoc
// @Summary Import exam scores
// @Description Bulk-import score rows; each row fans out to every registration the candidate holds for the course
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body importScoresRequest true "Score rows"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /scores/import [post]
func (h *ScoreHandler) Import(c *gin.Context) {
	var req importScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid score payload"))
		return
	}

	result, err := h.scores.Import(c.Request.Context(), req.Rows)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
