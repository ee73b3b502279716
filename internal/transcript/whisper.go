package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"tubeinsights/internal/types"
)

// Both speech-to-text fallbacks speak the OpenAI audio/transcriptions wire
// format over a buffered audio upload: Groq as the fast inference step, OpenAI
// Whisper as the paid last resort.

var sttHTTPClient = &http.Client{
	Timeout: 10 * time.Minute,
}

// postTranscription uploads an audio buffer as multipart form data and returns
// the transcribed text.
func postTranscription(ctx context.Context, endpoint, apiKey, model string, audio []byte, filename string) (string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := w.WriteField("model", model); err != nil {
		return "", err
	}
	if err := w.WriteField("response_format", "json"); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &b)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := sttHTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription: status %d: %s", resp.StatusCode, body)
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("transcription: decode response: %w", err)
	}
	return parsed.Text, nil
}

// GroqWhisper downloads the low-quality audio stream and transcribes it with
// Groq's hosted whisper-large-v3. Second priority: fast and near-free.
type GroqWhisper struct {
	apiKey     string
	endpoint   string
	model      string
	downloader *AudioDownloader
}

func NewGroqWhisper(apiKey string, downloader *AudioDownloader) *GroqWhisper {
	return &GroqWhisper{
		apiKey:     apiKey,
		endpoint:   "https://api.groq.com/openai/v1/audio/transcriptions",
		model:      "whisper-large-v3",
		downloader: downloader,
	}
}

func (p *GroqWhisper) Name() string    { return "groq_whisper" }
func (p *GroqWhisper) Source() string  { return types.SourceGroqWhisper }
func (p *GroqWhisper) Available() bool { return p.apiKey != "" }

func (p *GroqWhisper) Fetch(ctx context.Context, videoID string) (string, error) {
	audio, filename, err := p.downloader.Download(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("audio download: %w", err)
	}
	return postTranscription(ctx, p.endpoint, p.apiKey, p.model, audio, filename)
}

// OpenAIWhisper is the paid last resort: a fresh audio download submitted to
// OpenAI's whisper-1. Every invocation costs money, so it sits at the end of
// the chain.
type OpenAIWhisper struct {
	apiKey     string
	endpoint   string
	model      string
	downloader *AudioDownloader
}

func NewOpenAIWhisper(apiKey string, downloader *AudioDownloader) *OpenAIWhisper {
	return &OpenAIWhisper{
		apiKey:     apiKey,
		endpoint:   "https://api.openai.com/v1/audio/transcriptions",
		model:      "whisper-1",
		downloader: downloader,
	}
}

func (p *OpenAIWhisper) Name() string    { return "openai_whisper" }
func (p *OpenAIWhisper) Source() string  { return types.SourceOpenAIWhisper }
func (p *OpenAIWhisper) Available() bool { return p.apiKey != "" }

func (p *OpenAIWhisper) Fetch(ctx context.Context, videoID string) (string, error) {
	audio, filename, err := p.downloader.Download(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("audio download: %w", err)
	}
	return postTranscription(ctx, p.endpoint, p.apiKey, p.model, audio, filename)
}
