package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/seletivo/admissions-api/internal/service"
	appErrors "github.com/seletivo/admissions-api/pkg/errors"
	"github.com/seletivo/admissions-api/pkg/response"
)

// ExportHandler serves generated export files behind signed tokens. The
// download endpoint is public; the token is the authorization.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler creates a new handler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Download godoc
// @Summary Download export
// @Description Stream a previously generated export by its signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	_, relPath, _, err := h.exports.ParseToken(c.Param("token"), false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token"))
		return
	}

	file, err := h.exports.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available"))
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}

	name := filepath.Base(relPath)
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(c.Writer, c.Request, name, stat.ModTime(), file)
}
