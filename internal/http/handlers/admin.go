package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/intromatch-backend/internal/http/response"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

type AdminHandler struct {
	log         *logger.Logger
	maintenance MaintenanceService
}

func NewAdminHandler(log *logger.Logger, maintenance MaintenanceService) *AdminHandler {
	return &AdminHandler{log: log.With("handler", "AdminHandler"), maintenance: maintenance}
}

// POST /api/admin/reindex-all
func (h *AdminHandler) ReindexAll(c *gin.Context) {
	rep, err := h.maintenance.ReindexAll(c.Request.Context())
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, rep)
}

// POST /api/admin/resync-stale
func (h *AdminHandler) ResyncStale(c *gin.Context) {
	rep, err := h.maintenance.ResyncStale(c.Request.Context())
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, rep)
}

// POST /api/admin/cleanup
func (h *AdminHandler) Cleanup(c *gin.Context) {
	h.log.Warn("Admin cleanup requested")
	rep, err := h.maintenance.Cleanup(c.Request.Context())
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, rep)
}
