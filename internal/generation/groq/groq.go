// Package groq implements generation.Generator against a Groq/OpenAI
// compatible chat-completions endpoint.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shreyansh2912/prashnly-backend/internal/generation"
)

// Config configures the chat-completions client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client calls a chat-completions endpoint over HTTP.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

// New creates a generation client using the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("generation API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "llama-3.1-8b-instant"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 45 * time.Second
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: t},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends system prompt, history window, and question as one
// chat-completions call and returns the first choice's content.
func (c *Client) Generate(ctx context.Context, systemPrompt string, history []generation.Turn, question string) (string, error) {
	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	for _, turn := range history {
		messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: question})

	body, _ := json.Marshal(chatRequest{
		Messages:    messages,
		Model:       c.model,
		Temperature: c.temperature,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &generation.Failure{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &generation.Failure{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", &generation.Failure{Err: fmt.Errorf("chat completions failed: %s", resp.Status)}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &generation.Failure{Err: err}
	}
	var out chatResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", &generation.Failure{Err: fmt.Errorf("decode chat response: %w", err)}
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", &generation.Failure{Err: errors.New("no response generated")}
	}
	return out.Choices[0].Message.Content, nil
}
