package http

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/purchase-approval/internal/application/policy"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// RequestAuditTrail handles GET /api/v1/requests/:id/audit
func (h *Handlers) RequestAuditTrail(c *gin.Context) {
	req, found := h.loadRequest(c)
	if !found {
		return
	}
	logs, err := h.services.Audit.Trail(c.Request.Context(), req.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, logs)
}

// ExportAuditTrail handles GET /api/v1/requests/:id/audit/export
func (h *Handlers) ExportAuditTrail(c *gin.Context) {
	req, found := h.loadRequest(c)
	if !found {
		return
	}
	export, err := h.services.Audit.Export(c.Request.Context(), req.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(export.Filename))
	c.Data(http.StatusOK, xlsxContentType, export.Content.Bytes())
}

// ListAuditLogs handles GET /api/v1/audit?page=N
func (h *Handlers) ListAuditLogs(c *gin.Context) {
	if err := policy.ViewAllAudit(currentUser(c)); err != nil {
		h.respondError(c, err)
		return
	}

	page := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "invalid page")
			return
		}
		page = n
	}

	logs, err := h.services.Audit.List(c.Request.Context(), page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, logs)
}
