package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tubeinsights/internal/types"
)

const assemblyAIBaseURL = "https://api.assemblyai.com/v2"

// AssemblyAI submits the full video URL for transcription and polls until the
// job settles. Third priority: slower than the audio-stream path but needs no
// local download.
type AssemblyAI struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	maxPolls     int
}

func NewAssemblyAI(apiKey string) *AssemblyAI {
	return &AssemblyAI{
		apiKey:       apiKey,
		baseURL:      assemblyAIBaseURL,
		client:       &http.Client{Timeout: 30 * time.Second},
		pollInterval: 3 * time.Second,
		maxPolls:     100,
	}
}

func (p *AssemblyAI) Name() string    { return "assemblyai" }
func (p *AssemblyAI) Source() string  { return types.SourceAssemblyAI }
func (p *AssemblyAI) Available() bool { return p.apiKey != "" }

type assemblyTranscript struct {
	ID     string `json:"id"`
	Status string `json:"status"` // queued, processing, completed, error
	Text   string `json:"text"`
	Error  string `json:"error,omitempty"`
}

func (p *AssemblyAI) Fetch(ctx context.Context, videoID string) (string, error) {
	id, err := p.submit(ctx, WatchURL(videoID))
	if err != nil {
		return "", err
	}
	return p.pollUntilDone(ctx, id)
}

func (p *AssemblyAI) submit(ctx context.Context, audioURL string) (string, error) {
	body, _ := json.Marshal(map[string]string{"audio_url": audioURL})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", p.apiKey)

	var tr assemblyTranscript
	if err := p.doJSON(req, &tr); err != nil {
		return "", fmt.Errorf("assemblyai submit: %w", err)
	}
	if tr.ID == "" {
		return "", fmt.Errorf("assemblyai submit: no transcript id returned")
	}
	return tr.ID, nil
}

func (p *AssemblyAI) pollUntilDone(ctx context.Context, id string) (string, error) {
	for i := 0; i < p.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.pollInterval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/transcript/"+id, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", p.apiKey)

		var tr assemblyTranscript
		if err := p.doJSON(req, &tr); err != nil {
			return "", fmt.Errorf("assemblyai poll: %w", err)
		}

		switch tr.Status {
		case "completed":
			return tr.Text, nil
		case "error":
			return "", fmt.Errorf("assemblyai transcription failed: %s", tr.Error)
		}
	}
	return "", fmt.Errorf("assemblyai: transcription did not complete in time")
}

func (p *AssemblyAI) doJSON(req *http.Request, target interface{}) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("json decode error: %v body=%s", err, body)
	}
	return nil
}
