package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seletivo/admissions-api/internal/service"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
	"github.com/seletivo/admissions-api/pkg/response"
)

// RegistrationHandler wires HTTP endpoints to candidate registrations and
// their per-round derived status.
type RegistrationHandler struct {
	registrations *service.RegistrationService
	statuses      *service.StatusService
	rounds        *service.RoundService
}

// NewRegistrationHandler creates a new handler.
func NewRegistrationHandler(
	registrations *service.RegistrationService,
	statuses *service.StatusService,
	rounds *service.RoundService,
) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations, statuses: statuses, rounds: rounds}
}

// Create godoc
// @Summary Create registration
// @Description Register a candidate's bid for a course and category
// @Tags Registrations
// @Accept json
// @Produce json
// @Param payload body service.CreateRegistrationInput true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /registrations [post]
func (h *RegistrationHandler) Create(c *gin.Context) {
	var input service.CreateRegistrationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	registration, err := h.registrations.Create(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, registration)
}

// Get godoc
// @Summary Get registration
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /registrations/{id} [get]
func (h *RegistrationHandler) Get(c *gin.Context) {
	registration, err := h.registrations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registration, nil)
}

// ListByCandidate godoc
// @Summary List a candidate's registrations in an edition
// @Tags Registrations
// @Produce json
// @Param id path string true "Candidate ID"
// @Param edition_id query string true "Edition ID"
// @Success 200 {object} response.Envelope
// @Router /candidates/{id}/registrations [get]
func (h *RegistrationHandler) ListByCandidate(c *gin.Context) {
	editionID := c.Query("edition_id")
	if editionID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "edition_id is required"))
		return
	}

	registrations, err := h.registrations.ListByCandidateEdition(c.Request.Context(), c.Param("id"), editionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, registrations, nil)
}

// Status godoc
// @Summary Derived status of a registration in a round
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Param roundID path string true "Round ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /registrations/{id}/rounds/{roundID}/status [get]
func (h *RegistrationHandler) Status(c *gin.Context) {
	status, err := h.statuses.StatusOf(c.Request.Context(), c.Param("id"), c.Param("roundID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Outcome godoc
// @Summary Settled outcome of a registration in a round
// @Tags Registrations
// @Produce json
// @Param id path string true "Registration ID"
// @Param roundID path string true "Round ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /registrations/{id}/rounds/{roundID}/outcome [get]
func (h *RegistrationHandler) Outcome(c *gin.Context) {
	outcome, err := h.rounds.OutcomeOf(c.Request.Context(), c.Param("id"), c.Param("roundID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}
