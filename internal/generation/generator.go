// Package generation defines the answer-generation seam. The chat service
// hands it a grounding context, a bounded history window, and the user's
// question; which LLM vendor sits behind the interface is a deployment
// concern.
package generation

import (
	"context"
	"fmt"
)

// Turn is one prior utterance carried into the generation call.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// Generator produces an answer grounded in the supplied system prompt.
type Generator interface {
	Generate(ctx context.Context, systemPrompt string, history []Turn, question string) (string, error)
}

// Failure wraps a generation backend error.
type Failure struct {
	Err error
}

// Error implements the error interface.
func (f *Failure) Error() string { return fmt.Sprintf("generation: %v", f.Err) }

// Unwrap returns the underlying backend error.
func (f *Failure) Unwrap() error { return f.Err }

// SystemPrompt renders the grounding instructions with the retrieved context
// embedded. Answers must come only from the context.
func SystemPrompt(context string) string {
	return "You are a helpful assistant for Prashnly.\n" +
		"You are given a context from a document and a question.\n" +
		"Answer the question ONLY based on the provided context.\n" +
		"If the answer is not in the context, say \"I cannot find the answer in the provided document.\"\n" +
		"Do not hallucinate or use outside knowledge.\n\n" +
		"Context:\n" + context
}
