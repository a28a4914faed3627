// Package services implements the application's use cases on top of the
// repositories, the ingestion queue, the retrieval assembler, and the
// generation backend. Handlers call services; services own authorization,
// quota, and transaction boundaries.
package services

import "errors"

// Centralized service error values. Handlers translate these into HTTP
// status codes and stable error codes; everything else is an internal error.
var (
	// ErrInvalidInput marks a request the service cannot act on (empty
	// question, missing upload, malformed target).
	ErrInvalidInput = errors.New("invalid input")

	// ErrDocumentNotFound covers a missing document, a foreign document, and
	// an unknown share token. Ownership failures collapse into not-found so
	// responses do not leak which ids exist.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrDocumentNotReady is returned when chat targets a document that has
	// not completed ingestion or was deactivated by its owner.
	ErrDocumentNotReady = errors.New("document not ready for chat")

	// ErrThreadNotFound covers missing and inaccessible chat threads.
	ErrThreadNotFound = errors.New("chat thread not found")

	// ErrUnauthorized is returned when no usable chat target or credential
	// was supplied.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredential is returned on a share-password mismatch.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrQuotaExceeded is returned when the document owner is out of usage
	// allowance. Terminal for the turn; nothing is generated or charged.
	ErrQuotaExceeded = errors.New("usage quota exceeded")

	// ErrPlanLimit is returned when an upload would exceed the owner plan's
	// document allowance.
	ErrPlanLimit = errors.New("plan document limit reached")

	// ErrIngestBusy is returned when the ingestion queue cannot accept more
	// work. The upload is rolled back; the client should retry later.
	ErrIngestBusy = errors.New("ingestion queue is full")

	// ErrGenerationFailure wraps answer-backend errors. The conversation is
	// left untouched when it occurs.
	ErrGenerationFailure = errors.New("answer generation failed")
)
