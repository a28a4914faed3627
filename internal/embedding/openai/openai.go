// Package openai implements embedding.Embedder against an OpenAI-compatible
// /embeddings endpoint. It handles retry with exponential backoff on 429/5xx
// and learns the vector dimension from the first successful response.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/shreyansh2912/prashnly-backend/internal/embedding"
)

// Config configures the embeddings client.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int // optional; 0 learns from the first response
	Timeout   time.Duration
}

// Client is an OpenAI-compatible embeddings client.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	client     *http.Client
	maxRetries int

	mu        sync.Mutex
	dimension int
}

// New creates an embeddings client using the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("embedding API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		client:     &http.Client{Timeout: t},
		maxRetries: 4,
		dimension:  cfg.Dimension,
	}, nil
}

// Dimension returns the learned or configured vector dimensionality.
func (c *Client) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimension
}

// Embed returns an embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns one vector per input, in input order. The call is
// all-or-nothing: any backend error discards the whole batch.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return c.embed(ctx, texts)
}

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *Client) embed(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := c.post(ctx, texts)
	if err != nil {
		return nil, embedding.NewError(-1, err)
	}

	var out embedResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, embedding.NewError(-1, fmt.Errorf("decode embeddings response: %w", err))
	}
	if len(out.Data) != len(texts) {
		return nil, embedding.NewError(-1, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(out.Data)))
	}

	// Responses may arrive out of order; the index field is authoritative.
	vecs := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, embedding.NewError(-1, fmt.Errorf("embedding index %d out of range", d.Index))
		}
		vecs[d.Index] = d.Embedding
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return nil, embedding.NewError(i, errors.New("no embedding returned"))
		}
	}

	c.mu.Lock()
	if c.dimension == 0 {
		c.dimension = len(vecs[0])
	}
	dim := c.dimension
	c.mu.Unlock()

	for i, v := range vecs {
		if len(v) != dim {
			// A dimension mismatch is a configuration fault, not a per-call error.
			return nil, embedding.NewError(i, fmt.Errorf("vector dimension %d, expected %d", len(v), dim))
		}
	}
	return vecs, nil
}

// post sends the embeddings request, retrying on 429 and 5xx with backoff.
func (c *Client) post(ctx context.Context, texts []string) ([]byte, error) {
	url := c.baseURL + "/embeddings"
	body, _ := json.Marshal(embedRequest{Input: texts, Model: c.model})

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt < c.maxRetries {
				if err := sleep(ctx, retryDelay(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			delay := retryDelay(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("embeddings request failed: %s", resp.Status)
			if attempt < c.maxRetries {
				if err := sleep(ctx, delay); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr
		}

		if resp.StatusCode >= 300 {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("embeddings request failed: %s", resp.Status)
		}

		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, err
		}
		return payload, nil
	}
	return nil, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryDelay returns an exponential backoff capped at 5s.
func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
