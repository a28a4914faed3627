// Document HTTP handlers.
//
// This file exposes REST endpoints for the document lifecycle:
//   - POST   /documents                          (multipart upload + enqueue)
//   - GET    /documents                          (list own documents)
//   - DELETE /documents/{id}                     (delete + vector purge)
//   - POST   /documents/{id}/toggle              (flip active flag)
//   - GET    /documents/{id}/progress            (SSE ingestion progress)
//   - GET    /public/documents/{shareToken}      (public metadata)
//   - POST   /public/documents/{shareToken}/verify (share password check)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses.
package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shreyansh2912/prashnly-backend/internal/domain"
	"github.com/shreyansh2912/prashnly-backend/internal/http/middleware"
	"github.com/shreyansh2912/prashnly-backend/internal/notify"
	"github.com/shreyansh2912/prashnly-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// DocumentService defines the document lifecycle operations consumed by the
// HTTP layer. Implementations must be safe for concurrent use and honor the
// provided context.
type DocumentService interface {
	Upload(ctx context.Context, owner *domain.User, in services.UploadInput) (*domain.Document, error)
	List(ctx context.Context, ownerID string) ([]domain.Document, error)
	Get(ctx context.Context, ownerID, docID string) (*domain.Document, error)
	Delete(ctx context.Context, ownerID, docID string) error
	ToggleActive(ctx context.Context, ownerID, docID string) (*domain.Document, error)
	PublicMetadata(ctx context.Context, shareToken string) (*domain.Document, error)
	VerifyPassword(ctx context.Context, shareToken, password string) error
}

// ChatService defines the conversation operations consumed by the HTTP layer.
type ChatService interface {
	Ask(ctx context.Context, requester *domain.User, target services.ChatTarget, question string) (*services.ChatResult, error)
	Threads(ctx context.Context, requester *domain.User) ([]domain.ChatThread, error)
	Messages(ctx context.Context, requester *domain.User, threadID string, limit int) ([]domain.Message, error)
}

// UsageService reports quota consumption for the authenticated owner.
type UsageService interface {
	Summary(ctx context.Context, requester *domain.User) (*services.UsageSummary, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for documents, chat, and usage.
type Handlers struct {
	docSvc   DocumentService
	chatSvc  ChatService
	usageSvc UsageService
	hub      *notify.Hub
}

// New constructs a Handlers instance bound to the given services. hub feeds
// the SSE progress endpoint and may be nil when progress streaming is off.
func New(docSvc DocumentService, chatSvc ChatService, usageSvc UsageService, hub *notify.Hub) *Handlers {
	return &Handlers{docSvc: docSvc, chatSvc: chatSvc, usageSvc: usageSvc, hub: hub}
}

//
// DTOs
//

// PublicDocumentResponse is the share-page view of a document. It exposes no
// owner identifiers and no storage details.
type PublicDocumentResponse struct {
	Title        string    `json:"title"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	Visibility   string    `json:"visibility"`
	Protection   string    `json:"protection"`
	CreatedAt    time.Time `json:"created_at"`
}

// VerifyPasswordRequest is the JSON payload for share password checks.
type VerifyPasswordRequest struct {
	Password string `json:"password"`
}

//
// Handlers
//

// UploadDocument accepts a multipart upload, creates the document in the
// processing state, and enqueues ingestion. The response returns before
// ingestion runs; progress is observable on the progress endpoint.
func (h *Handlers) UploadDocument(c *gin.Context) {
	owner := middleware.UserFrom(c)

	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart field 'file' is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not open upload")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not read upload")
		return
	}

	doc, err := h.docSvc.Upload(c.Request.Context(), owner, services.UploadInput{
		Title:        strings.TrimSpace(c.PostForm("title")),
		OriginalName: fh.Filename,
		MimeType:     fh.Header.Get("Content-Type"),
		Data:         data,
		Visibility:   strings.TrimSpace(c.PostForm("visibility")),
		Password:     c.PostForm("password"),
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, doc)
}

// ListDocuments returns the owner's documents, newest first.
func (h *Handlers) ListDocuments(c *gin.Context) {
	owner := middleware.UserFrom(c)
	docs, err := h.docSvc.List(c.Request.Context(), owner.ID)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"documents": docs})
}

// DeleteDocument removes an owned document, its stored file, and its vectors.
func (h *Handlers) DeleteDocument(c *gin.Context) {
	owner := middleware.UserFrom(c)
	if err := h.docSvc.Delete(c.Request.Context(), owner.ID, c.Param("id")); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// ToggleDocument flips the document's active flag.
func (h *Handlers) ToggleDocument(c *gin.Context) {
	owner := middleware.UserFrom(c)
	doc, err := h.docSvc.ToggleActive(c.Request.Context(), owner.ID, c.Param("id"))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": doc.ID, "is_active": doc.IsActive})
}

// DocumentProgress streams ingestion progress as server-sent events. For a
// document already in a terminal state a single synthetic event is emitted
// and the stream closes; otherwise events flow until the terminal update or
// client disconnect.
func (h *Handlers) DocumentProgress(c *gin.Context) {
	owner := middleware.UserFrom(c)
	doc, err := h.docSvc.Get(c.Request.Context(), owner.ID, c.Param("id"))
	if err != nil {
		failService(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	if doc.Status == domain.StatusCompleted || doc.Status == domain.StatusFailed {
		c.SSEvent("progress", terminalEvent(doc))
		c.Writer.Flush()
		return
	}
	if h.hub == nil {
		c.Writer.Flush()
		return
	}

	ch, cancel := h.hub.Subscribe(doc.ID)
	defer cancel()

	// ingestion may have finished between the status check and Subscribe,
	// with its events fanned out before this subscriber existed; re-read
	// once so the stream cannot wait on a terminal update that already fired
	if cur, err := h.docSvc.Get(c.Request.Context(), owner.ID, doc.ID); err == nil &&
		(cur.Status == domain.StatusCompleted || cur.Status == domain.StatusFailed) {
		c.SSEvent("progress", terminalEvent(cur))
		c.Writer.Flush()
		return
	}

	clientGone := c.Request.Context().Done()
	c.Stream(func(io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case ev, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent("progress", ev)
			return ev.Percent < 100 && ev.Message != domain.StatusFailed
		}
	})
}

func terminalPercent(status string) int {
	if status == domain.StatusCompleted {
		return 100
	}
	return 0
}

func terminalEvent(doc *domain.Document) notify.Event {
	return notify.Event{
		DocumentID: doc.ID,
		Percent:    terminalPercent(doc.Status),
		Message:    doc.Status,
	}
}

// PublicDocument returns share-page metadata for a share token.
func (h *Handlers) PublicDocument(c *gin.Context) {
	doc, err := h.docSvc.PublicMetadata(c.Request.Context(), c.Param("shareToken"))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, PublicDocumentResponse{
		Title:        doc.Title,
		OriginalName: doc.OriginalName,
		MimeType:     doc.MimeType,
		Size:         doc.Size,
		Visibility:   doc.Visibility,
		Protection:   doc.Protection,
		CreatedAt:    doc.CreatedAt,
	})
}

// VerifyDocumentPassword checks a share password before granting the client
// access to the protected chat page.
func (h *Handlers) VerifyDocumentPassword(c *gin.Context) {
	var req VerifyPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.docSvc.VerifyPassword(c.Request.Context(), c.Param("shareToken"), req.Password); err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"verified": true})
}
