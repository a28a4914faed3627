// Package retrieval embeds a question, queries the vector index scoped to a
// document or owner, and assembles the retrieved passages into the context
// string handed to generation.
package retrieval

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shreyansh2912/prashnly-backend/internal/embedding"
	"github.com/shreyansh2912/prashnly-backend/internal/vectorindex"
)

// DefaultTopK is the number of passages retrieved per question.
const DefaultTopK = 5

// Source identifies one retrieved passage in a chat response.
type Source struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

// Result is the assembled retrieval outcome for one question.
type Result struct {
	// Context is the ranked passage texts joined by blank lines.
	Context string
	// Sources lists the match ids and similarity scores in rank order.
	Sources []Source
}

// Assembler wires the embedding provider to the vector index.
type Assembler struct {
	Embedder embedding.Embedder
	Index    vectorindex.Index

	// TopK caps matches per question; <= 0 uses DefaultTopK.
	TopK int
}

// New constructs an Assembler with the default top-k.
func New(emb embedding.Embedder, ix vectorindex.Index) *Assembler {
	return &Assembler{Embedder: emb, Index: ix, TopK: DefaultTopK}
}

// Retrieve embeds the question and returns the context assembled from the
// top matches under the given metadata filter. A question matching nothing
// yields an empty context and no sources, not an error.
func (a *Assembler) Retrieve(ctx context.Context, question string, filter vectorindex.Filter) (*Result, error) {
	tr := otel.Tracer("retrieval/Assembler")
	ctx, span := tr.Start(ctx, "Retrieve",
		trace.WithAttributes(
			attribute.String("filter.document_id", filter[vectorindex.MetaDocumentID]),
			attribute.Int("top_k", a.topK()),
		),
	)
	defer span.End()

	vec, err := a.Embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	matches, err := a.Index.Query(ctx, vec, filter, a.topK())
	if err != nil {
		return nil, err
	}

	texts := make([]string, 0, len(matches))
	sources := make([]Source, 0, len(matches))
	for _, m := range matches {
		texts = append(texts, m.Text)
		sources = append(sources, Source{ID: m.ID, Similarity: m.Score})
	}
	return &Result{
		Context: strings.Join(texts, "\n\n"),
		Sources: sources,
	}, nil
}

func (a *Assembler) topK() int {
	if a.TopK <= 0 {
		return DefaultTopK
	}
	return a.TopK
}
