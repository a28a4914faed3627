// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides structured request logging, a panic-safe recovery handler,
// and a request ID injector:
//
//   - RequestID() ensures every request carries a stable correlation ID
//     (propagated via X-Request-ID and stored in the Gin context).
//   - Logger() emits structured access logs with request/response metadata,
//     attaches a request-scoped zerolog.Logger, and selects log level by
//     outcome (info/warn/error). Credentials never reach the log: the
//     X-API-Key header is not logged and api_key/password query parameters
//     are masked.
//   - Recovery() converts panics into JSON 500 responses while preserving the
//     correlation ID and emitting a stack trace to logs.
//   - LoggerFrom() retrieves the request-scoped logger for use in handlers.
//
// Recommended order: RequestID() → Logger() → Recovery(), so panics and
// errors include the correlation ID and are logged.
package middleware

import (
	"net/http"
	"net/url"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
	// maxQueryLogLength caps the number of bytes of the query string logged.
	maxQueryLogLength = 2048
)

// sensitiveParams are query parameters masked in access logs.
var sensitiveParams = map[string]struct{}{
	"api_key":  {},
	"password": {},
	"token":    {},
}

// RequestID attaches (or propagates) a correlation identifier per request.
// An incoming X-Request-ID is reused; otherwise a fresh UUID is generated.
// The ID is echoed in the response header and stored in the Gin context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger writes a structured access log per request and stores a
// request-scoped zerolog.Logger in the Gin context under "logger".
//
// Level by outcome: error for 5xx or collected Gin errors, warn for 4xx,
// info otherwise. Place after RequestID() so logs carry the correlation ID.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		uid, _ := c.Get("userID")
		path := c.FullPath()
		if path == "" {
			// route not matched / 404
			path = c.Request.URL.Path
		}

		l := log.With().
			Str("request_id", asString(rid)).
			Str("user_id", asString(uid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(redactQuery(c.Request.URL.RawQuery), maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength).
			Logger()

		c.Set("logger", &l)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		ev := l.With().
			Int("status", status).
			Dur("latency", latency).
			Int("bytes_out", c.Writer.Size()).
			Logger()

		switch {
		case len(c.Errors) > 0:
			ev.Error().Str("errors", c.Errors.String()).Msg("request")
		case status >= 500:
			ev.Error().Msg("request")
		case status >= 400:
			ev.Warn().Msg("request")
		default:
			ev.Info().Msg("request")
		}
	}
}

// Recovery intercepts panics, logs the stack trace, and returns a JSON 500
// error carrying the correlation ID.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid, _ := c.Get(requestIDKey)
				log.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("request_id", asString(rid)).
					Msg("panic recovered")

				if !c.Writer.Written() {
					c.Header("Content-Type", "application/json")
					c.Header(requestIDHeader, asString(rid))
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"request_id": asString(rid),
						"code":       "internal_error",
						"message":    "internal server error",
					})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped zerolog.Logger, or a fallback logger
// when Logger() did not run. Callers never need a nil check.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("logger"); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// redactQuery masks the values of sensitive query parameters. A query string
// that fails to parse is dropped from the log entirely.
func redactQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "(unparseable)"
	}
	changed := false
	for k := range values {
		if _, ok := sensitiveParams[k]; ok {
			values.Set(k, "***")
			changed = true
		}
	}
	if !changed {
		return raw
	}
	return values.Encode()
}

// asString converts a context value to a string, empty when not a string.
func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate caps s at max bytes, appending an ellipsis. max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
