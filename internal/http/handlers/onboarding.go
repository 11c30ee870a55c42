package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/intromatch-backend/internal/domain"
	"github.com/yungbote/intromatch-backend/internal/http/response"
	"github.com/yungbote/intromatch-backend/internal/modules/onboarding"
	"github.com/yungbote/intromatch-backend/internal/platform/ctxutil"
	"github.com/yungbote/intromatch-backend/internal/platform/gcp"
	"github.com/yungbote/intromatch-backend/internal/platform/logger"
)

// Session ids act as capabilities: routes addressed by session id don't
// require a token, so anonymous onboarding can finish.
type OnboardingHandler struct {
	log        *logger.Logger
	onboarding OnboardingService
	users      UserService
}

func NewOnboardingHandler(log *logger.Logger, onboarding OnboardingService, users UserService) *OnboardingHandler {
	return &OnboardingHandler{log: log.With("handler", "OnboardingHandler"), onboarding: onboarding, users: users}
}

type uploadTargetResponse struct {
	UploadURL   string            `json:"upload_url"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers,omitempty"`
	StorageKey  string            `json:"storage_key"`
	ContentType string            `json:"content_type"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

func toUploadTarget(t *gcp.UploadTarget) uploadTargetResponse {
	return uploadTargetResponse{
		UploadURL:   t.URL,
		Method:      t.Method,
		Headers:     t.Headers,
		StorageKey:  t.StorageKey,
		ContentType: t.ContentType,
		ExpiresAt:   t.ExpiresAt,
	}
}

// POST /api/onboarding/initiate
// body: { "event_id": "...", "initial_context": "..." }
func (h *OnboardingHandler) Initiate(c *gin.Context) {
	var req struct {
		EventID        string `json:"event_id"`
		InitialContext string `json:"initial_context"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	eventID, err := optionalUUID("event_id", req.EventID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	res, err := h.onboarding.Initiate(c.Request.Context(), onboarding.InitiateInput{
		EventID:        eventID,
		ExternalUserID: ctxutil.ExternalUserID(c.Request.Context()),
		Context:        req.InitialContext,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"onboarding_id": res.Session.ID,
		"status":        res.Session.Status,
		"context":       res.Context,
		"upload":        toUploadTarget(res.Upload),
		"upload_url":    res.Upload.URL,
		"storage_key":   res.Upload.StorageKey,
	})
}

// POST /api/onboarding/:id/upload-target
// body: { "context": "..." }
func (h *OnboardingHandler) UploadTarget(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	var req struct {
		Context string `json:"context"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	target, err := h.onboarding.RequestAdditionalUploadTarget(c.Request.Context(), id, req.Context)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, toUploadTarget(target))
}

// POST /api/onboarding/:id/notify-upload
// body: { "storage_key": "onboarding/<id>/initial.wav" }
func (h *OnboardingHandler) NotifyUpload(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	var req struct {
		StorageKey string `json:"storage_key" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.onboarding.ProcessAudio(c.Request.Context(), id, req.StorageKey)
	if err != nil {
		h.log.Warn("Upload processing failed", "session_id", id, "error", err)
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, processResponse(res))
}

func processResponse(res *onboarding.ProcessResult) gin.H {
	hints := res.Validation.Hints
	if hints == nil {
		hints = []string{}
	}
	return gin.H{
		"onboarding_id":      res.Session.ID,
		"status":             res.Session.Status,
		"is_complete":        res.Validation.IsComplete,
		"hints":              hints,
		"completeness_score": res.Validation.CompletenessScore,
	}
}

// GET /api/onboarding/:id
func (h *OnboardingHandler) GetSession(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	sess, err := h.onboarding.GetSession(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": sess})
}

// GET /api/onboarding/latest?event_id=
func (h *OnboardingHandler) Latest(c *gin.Context) {
	eventID, err := optionalUUID("event_id", c.Query("event_id"))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	u, err := h.users.Resolve(c.Request.Context(), ctxutil.ExternalUserID(c.Request.Context()))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	sess, err := h.onboarding.FindLatestSession(c.Request.Context(), u.ID, eventID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if sess == nil {
		response.RespondDomainError(c, &types.NotFoundError{Entity: "onboarding session", ID: fmt.Sprintf("latest for %s", u.ID)})
		return
	}
	response.RespondOK(c, gin.H{"session": sess})
}

// GET /api/onboarding/guidance
func (h *OnboardingHandler) Guidance(c *gin.Context) {
	g := h.onboarding.BaseGuidance()
	response.RespondOK(c, gin.H{"is_complete": g.IsComplete, "hints": g.Hints})
}

// POST /api/dev/onboard-from-text
// body: { "text": "...", "external_user_id": "...", "event_id": "..." }
func (h *OnboardingHandler) OnboardFromText(c *gin.Context) {
	var req struct {
		Text           string `json:"text" binding:"required"`
		ExternalUserID string `json:"external_user_id"`
		EventID        string `json:"event_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	eventID, err := optionalUUID("event_id", req.EventID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	res, err := h.onboarding.OnboardFromText(c.Request.Context(), onboarding.OnboardTextInput{
		ExternalUserID: req.ExternalUserID,
		EventID:        eventID,
		Text:           req.Text,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, processResponse(res))
}
