package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seletivo/admissions-api/internal/service"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
	"github.com/seletivo/admissions-api/pkg/response"
)

// CatalogHandler wires HTTP endpoints to the edition/course catalog.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler creates a new handler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// CreateEdition godoc
// @Summary Create edition
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.CreateEditionInput true "Edition payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /editions [post]
func (h *CatalogHandler) CreateEdition(c *gin.Context) {
	var input service.CreateEditionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid edition payload"))
		return
	}

	edition, err := h.catalog.CreateEdition(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, edition)
}

// ListEditions godoc
// @Summary List editions
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /editions [get]
func (h *CatalogHandler) ListEditions(c *gin.Context) {
	editions, err := h.catalog.ListEditions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, editions, nil)
}

// CreateCourse godoc
// @Summary Create course
// @Tags Catalog
// @Accept json
// @Produce json
// @Param payload body service.CreateCourseInput true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses [post]
func (h *CatalogHandler) CreateCourse(c *gin.Context) {
	var input service.CreateCourseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course payload"))
		return
	}

	course, err := h.catalog.CreateCourse(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// ListCourses godoc
// @Summary List courses
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CatalogHandler) ListCourses(c *gin.Context) {
	courses, err := h.catalog.ListCourses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}
