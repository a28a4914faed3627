// Chat HTTP handlers.
//
// This file exposes the question-answering endpoint and conversation
// history:
//   - POST /chat                 (one turn; owners and share-link guests)
//   - GET  /chats                (threads visible to the owner)
//   - GET  /chats/{id}/messages  (full transcript)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shreyansh2912/prashnly-backend/internal/http/middleware"
	"github.com/shreyansh2912/prashnly-backend/internal/services"
	"github.com/shreyansh2912/prashnly-backend/internal/utils"
)

// ChatRequest is the JSON payload for one chat turn. Exactly one target
// field is honored, in precedence order: thread_id, share_token, document_id.
type ChatRequest struct {
	Question   string `json:"question" binding:"required"`
	ThreadID   string `json:"thread_id"`
	ShareToken string `json:"share_token"`
	DocumentID string `json:"document_id"`
}

// Chat answers one question against a document and appends the turn to its
// thread. Guests reach it through a share token without an API key; the
// quota is always charged to the document owner.
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "question is required")
		return
	}

	res, err := h.chatSvc.Ask(c.Request.Context(), middleware.UserFrom(c), services.ChatTarget{
		ThreadID:   strings.TrimSpace(req.ThreadID),
		ShareToken: strings.TrimSpace(req.ShareToken),
		DocumentID: strings.TrimSpace(req.DocumentID),
	}, req.Question)
	middleware.CountChatTurn(err == nil)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// ListThreads returns conversations visible to the owner: their own plus
// guest threads against their documents.
func (h *Handlers) ListThreads(c *gin.Context) {
	threads, err := h.chatSvc.Threads(c.Request.Context(), middleware.UserFrom(c))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"chats": threads})
}

// maxMessagesLimit caps how many messages one request may fetch.
const maxMessagesLimit = 500

// ListMessages returns a thread's transcript in chronological order. An
// optional ?limit= query bounds the result; 0 means the full transcript.
func (h *Handlers) ListMessages(c *gin.Context) {
	limit := utils.ClampInt(utils.AtoiDefault(c.Query("limit"), 0), 0, maxMessagesLimit)
	msgs, err := h.chatSvc.Messages(c.Request.Context(), middleware.UserFrom(c), c.Param("id"), limit)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"messages": msgs})
}
