// Package llm holds the chat-completion clients used by the section engine.
// Both providers speak the OpenAI chat-completions wire format; each client is
// constructed once with its credential checked at construction, not per call.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client is a JSON-mode text-completion provider.
type Client interface {
	Name() string
	// Models lists this provider's models from highest to lowest capability.
	Models() []string
	// Complete sends prompt to model and returns the raw response text with
	// any markdown fences stripped.
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// temperature is fixed for all section generation calls.
const temperature = 0.7

var httpClient = &http.Client{
	Timeout: 90 * time.Second,
}

// StripFences removes markdown code fences from LLM output.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// chatComplete posts one chat-completions request. 429 and 5xx responses are
// retried with exponential backoff for a bounded window; every other failure
// returns immediately so the caller can fall through to the next provider.
func chatComplete(ctx context.Context, baseURL, apiKey, model, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:          model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		Temperature:    temperature,
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return "", err
	}

	var content string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+apiKey)

		resp, err := httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("%s: status %d: %s", model, resp.StatusCode, respBody)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("%s: status %d: %s", model, resp.StatusCode, respBody))
		}

		var parsed chatResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("%s: decode response: %w", model, err))
		}
		if parsed.Error != nil {
			return backoff.Permanent(fmt.Errorf("%s: provider error: %s", model, parsed.Error.Message))
		}
		if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
			return backoff.Permanent(fmt.Errorf("%s: empty completion", model))
		}
		content = parsed.Choices[0].Message.Content
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return "", err
	}
	return StripFences(content), nil
}

// OpenAI is the primary provider: one high-capability model.
type OpenAI struct {
	apiKey  string
	baseURL string
	model   string
}

// NewOpenAI returns nil when the API key is absent.
func NewOpenAI(apiKey, model string) *OpenAI {
	if apiKey == "" {
		return nil
	}
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAI{apiKey: apiKey, baseURL: "https://api.openai.com/v1", model: model}
}

func (c *OpenAI) Name() string     { return "openai" }
func (c *OpenAI) Models() []string { return []string{c.model} }

func (c *OpenAI) Complete(ctx context.Context, model, prompt string) (string, error) {
	if model == "" {
		model = c.model
	}
	return chatComplete(ctx, c.baseURL, c.apiKey, model, prompt)
}

// Groq is the fallback provider: an ordered list of models, fastest-capable first.
type Groq struct {
	apiKey  string
	baseURL string
	models  []string
}

// NewGroq returns nil when the API key is absent.
func NewGroq(apiKey string, models []string) *Groq {
	if apiKey == "" {
		return nil
	}
	if len(models) == 0 {
		models = []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant"}
	}
	return &Groq{apiKey: apiKey, baseURL: "https://api.groq.com/openai/v1", models: models}
}

func (c *Groq) Name() string     { return "groq" }
func (c *Groq) Models() []string { return c.models }

func (c *Groq) Complete(ctx context.Context, model, prompt string) (string, error) {
	if model == "" {
		model = c.models[0]
	}
	return chatComplete(ctx, c.baseURL, c.apiKey, model, prompt)
}
