package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vvandenschrieck/tlca-backend/internal/services"
	"github.com/vvandenschrieck/tlca-backend/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExportHandler struct {
	BaseHandler
	exportService services.ExportService
}

func NewExportHandler(exportService services.ExportService, logger utils.Logger) *ExportHandler {
	return &ExportHandler{
		BaseHandler:   NewBaseHandler(logger),
		exportService: exportService,
	}
}

// ExportRoster downloads a course roster spreadsheet
// @Summary Export course roster
// @Description Renders the confirmed registrations of a course as a spreadsheet. Coordinator only
// @Tags registrations
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param course query string true "Course code"
// @Success 200 {file} binary
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /registrations/export [get]
func (h *ExportHandler) ExportRoster(c *gin.Context) {
	courseCode := strings.TrimSpace(c.Query("course"))
	if courseCode == "" {
		h.respondError(c, http.StatusBadRequest, "", "Query parameter 'course' is required", nil)
		return
	}

	actor := h.currentUser(c)
	if actor == nil {
		return
	}

	h.LogRequest(c, "Exporting roster", "course_code", courseCode, "user_id", actor.ID)

	export, err := h.exportService.ExportRoster(c.Request.Context(), courseCode, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Data(http.StatusOK, xlsxContentType, export.Content)
}
