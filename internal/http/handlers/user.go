package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/intromatch-backend/internal/http/response"
	"github.com/yungbote/intromatch-backend/internal/platform/ctxutil"
)

type UserHandler struct {
	users UserService
}

func NewUserHandler(users UserService) *UserHandler {
	return &UserHandler{users: users}
}

// GET /api/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	me, err := h.users.GetMe(c.Request.Context(), ctxutil.ExternalUserID(c.Request.Context()))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"me": me})
}

// GET /api/users/me/events
func (h *UserHandler) ListMyEvents(c *gin.Context) {
	out, err := h.users.ListMyEvents(c.Request.Context(), ctxutil.ExternalUserID(c.Request.Context()))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"events": out})
}

// GET /api/events/:id
func (h *UserHandler) GetEvent(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	ev, err := h.users.GetEvent(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"event": ev})
}
