package handler

import (
	"context"
	"mime"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"indieforge/backend/internal/auth"
	"indieforge/backend/internal/export"
	"indieforge/backend/internal/models"
)

// ExportListResponse wraps the export listing.
type ExportListResponse struct {
	Exports    []export.FileInfo `json:"exports"`
	TotalCount int               `json:"total_count"`
}

// region --- Export Handlers ---

// ExportUsersJSON godoc
// @Summary      Export users as JSON
// @Tags         export
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  export.Result
// @Failure      403  {object}  ErrorResponse "Admin access required"
// @Router       /admin/export/users/json [post]
func (h *Handler) ExportUsersJSON(c *gin.Context) {
	h.runExport(c, h.exports.UsersJSON)
}

// ExportUsersCSV godoc
// @Summary      Export users as CSV
// @Tags         export
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  export.Result
// @Failure      403  {object}  ErrorResponse "Admin access required"
// @Router       /admin/export/users/csv [post]
func (h *Handler) ExportUsersCSV(c *gin.Context) {
	h.runExport(c, h.exports.UsersCSV)
}

// ExportUsersByRole godoc
// @Summary      Export users with a given role
// @Tags         export
// @Produce      json
// @Security     BearerAuth
// @Param        role path      string  true  "admin, developer, user or all"
// @Success      200  {object}  export.Result
// @Failure      400  {object}  ErrorResponse "Invalid role"
// @Failure      403  {object}  ErrorResponse "Admin access required"
// @Router       /admin/export/users/by-role/{role} [post]
func (h *Handler) ExportUsersByRole(c *gin.Context) {
	role := c.Param("role")
	h.runExport(c, func(ctx context.Context, actor *models.User) (*export.Result, error) {
		return h.exports.UsersByRole(ctx, actor, role)
	})
}

// ExportSummaryReport godoc
// @Summary      Write a user summary report
// @Tags         export
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  export.Result
// @Failure      403  {object}  ErrorResponse "Admin access required"
// @Router       /admin/export/report/summary [post]
func (h *Handler) ExportSummaryReport(c *gin.Context) {
	h.runExport(c, h.exports.SummaryReport)
}

// ListExports godoc
// @Summary      List recent exports
// @Description  The ten newest export files.
// @Tags         export
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ExportListResponse
// @Failure      403  {object}  ErrorResponse "Admin access required"
// @Router       /admin/export/list [get]
func (h *Handler) ListExports(c *gin.Context) {
	files, err := h.exports.List(c.Request.Context(), auth.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ExportListResponse{Exports: files, TotalCount: len(files)})
}

// DownloadExport godoc
// @Summary      Download an export file
// @Tags         export
// @Produce      application/json,text/csv
// @Security     BearerAuth
// @Param        filename path string true "Export file name"
// @Success      200
// @Failure      400  {object}  ErrorResponse "Invalid filename"
// @Failure      403  {object}  ErrorResponse "Admin access required"
// @Failure      404  {object}  ErrorResponse "Export file not found"
// @Router       /admin/export/download/{filename} [get]
func (h *Handler) DownloadExport(c *gin.Context) {
	filename := c.Param("filename")
	body, info, err := h.exports.Open(c.Request.Context(), auth.CurrentUser(c), filename)
	if err != nil {
		respondError(c, err)
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(path.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, info.Size, contentType, body, map[string]string{
		"Content-Disposition": `attachment; filename="` + filename + `"`,
	})
}

// endregion

func (h *Handler) runExport(c *gin.Context, fn func(context.Context, *models.User) (*export.Result, error)) {
	res, err := fn(c.Request.Context(), auth.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
