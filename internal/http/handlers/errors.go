// Package handlers defines the HTTP-layer error codes used across all API
// endpoints and the mapping from service errors to HTTP responses.
//
// Conventions:
//   - Codes are lowercase snake_case; generic codes mirror common HTTP
//     status semantics, domain-specific codes cover business outcomes a
//     status alone cannot convey.
//   - Every error response carries both an HTTP status and one of these
//     codes, via the fail() helper.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shreyansh2912/prashnly-backend/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeInvalidCredential = "invalid_credential"
	ErrCodeQuotaExceeded     = "quota_exceeded"
	ErrCodePlanLimit         = "plan_limit_reached"
	ErrCodeIngestBusy        = "ingest_busy"
	ErrCodeAnswerFailed      = "answer_failed"
	ErrCodeMethodNotAllowed  = "method_not_allowed"
)

// failService translates a service error into the matching HTTP response.
// Unknown errors become opaque 500s so internals never leak to clients.
func failService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrDocumentNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "document not found")
	case errors.Is(err, services.ErrThreadNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "chat thread not found")
	case errors.Is(err, services.ErrDocumentNotReady):
		fail(c, http.StatusConflict, ErrCodeConflict, "document is not ready for chat")
	case errors.Is(err, services.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
	case errors.Is(err, services.ErrInvalidCredential):
		fail(c, http.StatusUnauthorized, ErrCodeInvalidCredential, "invalid password")
	case errors.Is(err, services.ErrQuotaExceeded):
		fail(c, http.StatusTooManyRequests, ErrCodeQuotaExceeded, "usage quota exceeded")
	case errors.Is(err, services.ErrPlanLimit):
		fail(c, http.StatusForbidden, ErrCodePlanLimit, "plan document limit reached")
	case errors.Is(err, services.ErrIngestBusy):
		fail(c, http.StatusServiceUnavailable, ErrCodeIngestBusy, "ingestion queue is full, retry later")
	case errors.Is(err, services.ErrGenerationFailure):
		fail(c, http.StatusBadGateway, ErrCodeAnswerFailed, "could not generate an answer")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
