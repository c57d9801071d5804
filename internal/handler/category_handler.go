package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seletivo/admissions-api/internal/models"
	"github.com/seletivo/admissions-api/internal/service"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
	"github.com/seletivo/admissions-api/pkg/response"
)

// CategoryHandler wires HTTP endpoints to quota category configuration.
type CategoryHandler struct {
	categories *service.CategoryService
}

// NewCategoryHandler creates a new handler.
func NewCategoryHandler(categories *service.CategoryService) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

// Create godoc
// @Summary Create category
// @Tags Categories
// @Accept json
// @Produce json
// @Param payload body service.CreateCategoryInput true "Category payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	var input service.CreateCategoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid category payload"))
		return
	}

	category, err := h.categories.Create(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, category)
}

// List godoc
// @Summary List categories
// @Tags Categories
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.categories.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories, nil)
}

type reviewTypesRequest struct {
	ReviewTypes []models.ReviewType `json:"review_types" binding:"required"`
}

// SetReviewTypes godoc
// @Summary Set required review types
// @Description Replace the document review types a quota category requires
// @Tags Categories
// @Accept json
// @Produce json
// @Param id path string true "Category ID"
// @Param payload body reviewTypesRequest true "Review types"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /categories/{id}/review-types [put]
func (h *CategoryHandler) SetReviewTypes(c *gin.Context) {
	var req reviewTypesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review types payload"))
		return
	}

	if err := h.categories.SetReviewTypes(c.Request.Context(), c.Param("id"), req.ReviewTypes); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ReviewTypes godoc
// @Summary Get required review types
// @Tags Categories
// @Produce json
// @Param id path string true "Category ID"
// @Success 200 {object} response.Envelope
// @Router /categories/{id}/review-types [get]
func (h *CategoryHandler) ReviewTypes(c *gin.Context) {
	types, err := h.categories.ReviewTypes(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

// AddEdge godoc
// @Summary Add fallback edge
// @Description Append one step to a primary category's fallback cascade; the whole graph is revalidated first
// @Tags Categories
// @Accept json
// @Produce json
// @Param payload body service.CreateEdgeInput true "Edge payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /categories/edges [post]
func (h *CategoryHandler) AddEdge(c *gin.Context) {
	var input service.CreateEdgeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid edge payload"))
		return
	}

	edge, err := h.categories.AddEdge(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, edge)
}

// Edges godoc
// @Summary List fallback edges
// @Tags Categories
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /categories/edges [get]
func (h *CategoryHandler) Edges(c *gin.Context) {
	edges, err := h.categories.Edges(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, edges, nil)
}
