// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities used across all
// endpoints: a structured error envelope with a stable machine-readable
// code, and helpers for the common success shapes.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "document not found"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shreyansh2912/prashnly-backend/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// RequestID correlates server logs and client errors.
	RequestID string `json:"request_id,omitempty"`
	// Code is a stable, machine-readable string (see errors.go constants).
	Code string `json:"code"`
	// Message is human-readable and safe to show to users.
	Message string `json:"message"`
}

// fail aborts the request with a structured error. Server errors (>= 500)
// are logged with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for use by router setup.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
