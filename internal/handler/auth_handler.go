package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seletivo/admissions-api/internal/models"
	"github.com/seletivo/admissions-api/internal/service"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
	"github.com/seletivo/admissions-api/pkg/response"
)

// AuthHandler wires HTTP endpoints to the account service.
type AuthHandler struct {
	accounts *service.AccountService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate a staff member or candidate by email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body service.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.accounts.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Me godoc
// @Summary Get current user
// @Description Returns the authenticated user's identity
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	response.JSON(c, http.StatusOK, models.JWTClaims{
		UserID:   claims.UserID,
		Email:    claims.Email,
		FullName: claims.FullName,
		Role:     claims.Role,
	}, nil)
}
