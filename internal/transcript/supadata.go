package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tubeinsights/internal/types"
)

const supadataBaseURL = "https://api.supadata.ai/v1/youtube/transcript"

// Supadata is the first-priority provider: a hosted YouTube transcript API,
// fastest and cheapest when its key is present.
type Supadata struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewSupadata(apiKey string) *Supadata {
	return &Supadata{
		apiKey:  apiKey,
		baseURL: supadataBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *Supadata) Name() string    { return "supadata" }
func (p *Supadata) Source() string  { return types.SourceSupadata }
func (p *Supadata) Available() bool { return p.apiKey != "" }

type supadataResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error string `json:"error,omitempty"`
}

func (p *Supadata) Fetch(ctx context.Context, videoID string) (string, error) {
	q := url.Values{}
	q.Set("videoId", videoID)
	q.Set("text", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("x-api-key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("supadata request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("supadata: status %d: %s", resp.StatusCode, body)
	}

	var parsed supadataResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("supadata: decode response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("supadata: %s", parsed.Error)
	}

	var sb strings.Builder
	for _, seg := range parsed.Content {
		if seg.Text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(seg.Text)
	}
	return sb.String(), nil
}
