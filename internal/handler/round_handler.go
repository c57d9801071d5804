package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seletivo/admissions-api/internal/service"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
	"github.com/seletivo/admissions-api/pkg/jobs"
	"github.com/seletivo/admissions-api/pkg/response"
)

// RoundHandler wires HTTP endpoints to the round lifecycle. Close and reopen
// go through the background queue so the HTTP request returns immediately and
// the heavy settlement runs once, guarded by the advisory lock.
type RoundHandler struct {
	rounds *service.RoundService
	closer *service.CloserService
	closes *jobs.Queue
}

// NewRoundHandler creates a new handler.
func NewRoundHandler(rounds *service.RoundService, closer *service.CloserService, closes *jobs.Queue) *RoundHandler {
	return &RoundHandler{rounds: rounds, closer: closer, closes: closes}
}

// Create godoc
// @Summary Create round
// @Description Open the next call round for an edition
// @Tags Rounds
// @Accept json
// @Produce json
// @Param payload body service.CreateRoundInput true "Round payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rounds [post]
func (h *RoundHandler) Create(c *gin.Context) {
	var input service.CreateRoundInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid round payload"))
		return
	}

	round, err := h.rounds.Create(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, round)
}

// Get godoc
// @Summary Get round
// @Tags Rounds
// @Produce json
// @Param id path string true "Round ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rounds/{id} [get]
func (h *RoundHandler) Get(c *gin.Context) {
	round, err := h.rounds.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, round, nil)
}

// ListByEdition godoc
// @Summary List rounds of an edition
// @Tags Rounds
// @Produce json
// @Param id path string true "Edition ID"
// @Success 200 {object} response.Envelope
// @Router /editions/{id}/rounds [get]
func (h *RoundHandler) ListByEdition(c *gin.Context) {
	rounds, err := h.rounds.ListByEdition(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rounds, nil)
}

// Publish godoc
// @Summary Publish round
// @Description Make the round's call lists visible to candidates
// @Tags Rounds
// @Produce json
// @Param id path string true "Round ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /rounds/{id}/publish [post]
func (h *RoundHandler) Publish(c *gin.Context) {
	if err := h.rounds.Publish(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Close godoc
// @Summary Close round
// @Description Queue the atomic settlement of the round
// @Tags Rounds
// @Produce json
// @Param id path string true "Round ID"
// @Success 202 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rounds/{id}/close [post]
func (h *RoundHandler) Close(c *gin.Context) {
	h.enqueue(c, jobs.TypeRoundClose)
}

// Reopen godoc
// @Summary Reopen round
// @Description Queue the rollback of the most recent close
// @Tags Rounds
// @Produce json
// @Param id path string true "Round ID"
// @Success 202 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rounds/{id}/reopen [post]
func (h *RoundHandler) Reopen(c *gin.Context) {
	h.enqueue(c, jobs.TypeRoundReopen)
}

func (h *RoundHandler) enqueue(c *gin.Context, jobType string) {
	roundID := c.Param("id")
	if _, err := h.rounds.Get(c.Request.Context(), roundID); err != nil {
		response.Error(c, err)
		return
	}

	// Small rounds can skip the queue with ?sync=true.
	if c.Query("sync") == "true" {
		var err error
		switch jobType {
		case jobs.TypeRoundClose:
			err = h.closer.CloseRound(c.Request.Context(), roundID)
		case jobs.TypeRoundReopen:
			err = h.closer.ReopenRound(c.Request.Context(), roundID)
		}
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, gin.H{"round_id": roundID}, nil)
		return
	}

	job := jobs.NewRoundJob(jobType, roundID)
	if err := h.closes.Enqueue(job); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue round job"))
		return
	}

	response.JSON(c, http.StatusAccepted, gin.H{"job_id": job.ID, "round_id": roundID}, nil)
}

// Outcomes godoc
// @Summary List round outcomes
// @Tags Rounds
// @Produce json
// @Param id path string true "Round ID"
// @Success 200 {object} response.Envelope
// @Router /rounds/{id}/outcomes [get]
func (h *RoundHandler) Outcomes(c *gin.Context) {
	outcomes, err := h.rounds.Outcomes(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcomes, nil)
}

// RankedList godoc
// @Summary Get ranked call list entries
// @Tags Rounds
// @Produce json
// @Param id path string true "Round ID"
// @Param course_id query string true "Course ID"
// @Param category_id query string true "Category ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /rounds/{id}/ranked [get]
func (h *RoundHandler) RankedList(c *gin.Context) {
	courseID := c.Query("course_id")
	categoryID := c.Query("category_id")
	if courseID == "" || categoryID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "course_id and category_id are required"))
		return
	}

	entries, err := h.rounds.RankedList(c.Request.Context(), c.Param("id"), courseID, categoryID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
