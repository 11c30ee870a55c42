package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/http/response"
	"github.com/yungbote/intromatch-backend/internal/modules/matching"
	"github.com/yungbote/intromatch-backend/internal/platform/ctxutil"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

const maxMatchLimit = 50

type MatchHandler struct {
	log     *logger.Logger
	users   UserService
	matches MatchService
}

func NewMatchHandler(log *logger.Logger, users UserService, matches MatchService) *MatchHandler {
	return &MatchHandler{log: log.With("handler", "MatchHandler"), users: users, matches: matches}
}

// GET /api/matches?limit=5
func (h *MatchHandler) List(c *gin.Context) {
	limit := matching.DefaultLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxMatchLimit {
			response.RespondDomainError(c, &types.ValidationError{Field: "limit", Reason: "must be between 1 and 50"})
			return
		}
		limit = n
	}
	ctx := c.Request.Context()
	u, err := h.users.Resolve(ctx, ctxutil.ExternalUserID(ctx))
	if errors.Is(err, types.ErrNotFound) {
		// not onboarded yet
		response.RespondOK(c, gin.H{"matches": []matching.Match{}})
		return
	}
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	out, err := h.matches.FindTopMatches(ctx, u.ID, limit)
	if err != nil {
		// read path: degrade rather than fail the page
		h.log.Warn("Match lookup failed; returning empty list", "user_id", u.ID, "error", err)
		out = []matching.Match{}
	}
	response.RespondOK(c, gin.H{"matches": out})
}
