// Package chunker splits extracted document text into overlapping fixed-size
// windows. Chunking is purely a function of the input text and the window
// configuration, so re-ingesting identical content always yields identical
// chunk ids and contents.
package chunker

import (
	"fmt"
)

// Chunk is a contiguous slice of a document's text. Chunks are ephemeral:
// they exist only as the unit mapped to one vector entry in the index.
type Chunk struct {
	// ID is "{documentID}_{index}", matching the vector record id.
	ID string
	// Index is the zero-based window sequence number.
	Index int
	// Start is the rune offset of the chunk within the source text.
	Start int
	// Text is the chunk content, at most Size runes.
	Text string
}

// Chunker produces overlapping windows of Size characters with Overlap
// characters shared between consecutive chunks.
type Chunker struct {
	size    int
	overlap int
}

// New constructs a Chunker. Size must be positive and overlap must satisfy
// 0 <= overlap < size; invalid values fall back to 1000/200.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 200
		if overlap >= size {
			overlap = size / 5
		}
	}
	return &Chunker{size: size, overlap: overlap}
}

// Size returns the configured window size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured window overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split divides text into ordered chunks. Chunk k starts at rune offset
// k*(size-overlap) and spans min(size, remaining) runes, so every character
// is covered and consecutive chunks overlap by exactly the configured amount
// except possibly the final one. Windows are measured in runes, not bytes, so
// a boundary never splits a multi-byte character. Empty text yields nil; text
// shorter than the window yields a single chunk equal to the input.
func (c *Chunker) Split(documentID, text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	stride := c.size - c.overlap
	chunks := make([]Chunk, 0, c.Count(len(runes)))
	for start, idx := 0, 0; start < len(runes); start, idx = start+stride, idx+1 {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			ID:    ChunkID(documentID, idx),
			Index: idx,
			Start: start,
			Text:  string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Count returns the number of chunks Split produces for a text of the given
// rune length without materializing them.
func (c *Chunker) Count(textLen int) int {
	if textLen <= 0 {
		return 0
	}
	stride := c.size - c.overlap
	n := 0
	for start := 0; start < textLen; start += stride {
		n++
		if start+c.size >= textLen {
			break
		}
	}
	return n
}

// ChunkID derives the stable vector record id for a document chunk.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_%d", documentID, index)
}
