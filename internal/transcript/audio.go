package transcript

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

// browserUserAgent mimics a desktop browser; googlevideo endpoints block
// obvious bot signatures.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// maxAudioBytes caps the in-memory audio buffer (128 MB covers hours of
// worst-quality audio).
const maxAudioBytes = 128 << 20

var audioHTTPClient = &http.Client{
	Timeout: 10 * time.Minute,
}

// AudioDownloader resolves and buffers the lowest-bitrate audio-only stream of
// a video. The whole stream is buffered before transcription starts; the
// speech-to-text providers consume a complete file upload.
type AudioDownloader struct {
	binaryPath string
}

func NewAudioDownloader() *AudioDownloader {
	return &AudioDownloader{binaryPath: "yt-dlp"}
}

// Download returns the audio bytes and a filename hint for multipart uploads.
func (d *AudioDownloader) Download(ctx context.Context, videoID string) ([]byte, string, error) {
	streamURL, err := d.resolveAudioURL(ctx, videoID)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := audioHTTPClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("audio download: unexpected status %d", resp.StatusCode)
	}

	buf, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to buffer audio stream: %w", err)
	}
	if len(buf) > maxAudioBytes {
		return nil, "", fmt.Errorf("audio stream exceeds %d byte buffer limit", maxAudioBytes)
	}
	if len(buf) == 0 {
		return nil, "", fmt.Errorf("audio stream was empty")
	}

	return buf, videoID + ".webm", nil
}

// resolveAudioURL asks yt-dlp for the direct URL of the worst audio-only format.
func (d *AudioDownloader) resolveAudioURL(ctx context.Context, videoID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.binaryPath,
		"-f", "worstaudio",
		"--get-url",
		"--no-warnings",
		WatchURL(videoID),
	)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("yt-dlp failed: %w, stderr: %s", err, stderr.String())
	}

	urlStr := strings.TrimSpace(out.String())
	if urlStr == "" {
		return "", fmt.Errorf("yt-dlp returned empty URL")
	}
	// Take the first URL when several are printed.
	if i := strings.IndexByte(urlStr, '\n'); i >= 0 {
		urlStr = urlStr[:i]
	}
	return urlStr, nil
}
