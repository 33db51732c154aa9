package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/techform-backend/internal/http/response"
	"github.com/yungbote/techform-backend/internal/platform/ctxutil"
	"github.com/yungbote/techform-backend/internal/services"
)

type QuestionHandler struct {
	bank services.QuestionBankService
}

func NewQuestionHandler(bank services.QuestionBankService) *QuestionHandler {
	return &QuestionHandler{bank: bank}
}

// POST /api/questions
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	var req services.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	req.Actor = ctxutil.Actor(c.Request.Context())
	ref, err := h.bank.CreateQuestion(c.Request.Context(), req)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"revision": ref})
}

// GET /api/questions/:key
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	q, err := h.bank.GetQuestion(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, gin.H{"question": q})
}

// POST /api/questions/:key/revisions
func (h *QuestionHandler) ReviseQuestion(c *gin.Context) {
	var req services.ReviseQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	req.Key = c.Param("key")
	req.Actor = ctxutil.Actor(c.Request.Context())
	ref, err := h.bank.ReviseQuestion(c.Request.Context(), req)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"revision": ref})
}

// GET /api/questions/:key/revisions
func (h *QuestionHandler) ListRevisions(c *gin.Context) {
	revs, err := h.bank.ListRevisions(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, gin.H{"revisions": revs})
}
