package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/techform-backend/internal/http/response"
	"github.com/yungbote/techform-backend/internal/platform/ctxutil"
	"github.com/yungbote/techform-backend/internal/platform/logger"
	"github.com/yungbote/techform-backend/internal/services"
)

type FormsHandler struct {
	log   *logger.Logger
	forms services.FormAnswerService
}

func NewFormsHandler(log *logger.Logger, forms services.FormAnswerService) *FormsHandler {
	return &FormsHandler{log: log.With("handler", "FormsHandler"), forms: forms}
}

// GET /api/forms/hydrate?templateId=&techId=
func (h *FormsHandler) Hydrate(c *gin.Context) {
	templateID, ok := optionalUUID(c, c.Query("templateId"), "invalid_template_id")
	if !ok {
		return
	}
	res, err := h.forms.Hydrate(c.Request.Context(), services.HydrateRequest{
		TemplateID: templateID,
		TechID:     strings.TrimSpace(c.Query("techId")),
	})
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	if len(res.DegradedScopes) > 0 {
		h.log.Warn("hydrated with degraded answer metadata", "tech_id", res.TechnologyContext.TechID, "scopes", res.DegradedScopes)
	}
	response.RespondOK(c, res)
}

// POST /api/forms/answers
func (h *FormsHandler) WriteAnswers(c *gin.Context) {
	var req services.WriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	req.Actor = ctxutil.Actor(c.Request.Context())
	res, err := h.forms.Write(c.Request.Context(), req)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/forms/submissions
func (h *FormsHandler) SaveSubmission(c *gin.Context) {
	var req services.SaveSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	req.Actor = ctxutil.Actor(c.Request.Context())
	res, err := h.forms.SaveSubmission(c.Request.Context(), req)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	if req.SubmissionID == nil {
		response.RespondCreated(c, res)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/forms/submissions/:id
func (h *FormsHandler) GetSubmission(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_submission_id", err)
		return
	}
	view, err := h.forms.LoadSubmission(c.Request.Context(), id)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, gin.H{"submission": view})
}

// optionalUUID parses raw when present; it writes the 400 itself on failure.
func optionalUUID(c *gin.Context, raw, code string) (*uuid.UUID, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, code, err)
		return nil, false
	}
	return &id, true
}
