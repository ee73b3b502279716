package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"tubeinsights/internal/types"
)

// Captions scrapes the free caption track from the watch page. No credential
// needed, but YouTube's anti-automation measures block plain HTTP scrapes, so
// the page is loaded in headless Chrome and the caption track URL is read from
// the player response the page itself received.
type Captions struct {
	client *http.Client
}

func NewCaptions() *Captions {
	return &Captions{client: &http.Client{Timeout: 30 * time.Second}}
}

func (p *Captions) Name() string    { return "captions" }
func (p *Captions) Source() string  { return types.SourceCaptions }
func (p *Captions) Available() bool { return true }

// captionTrackJS pulls the first caption track URL out of the player response,
// preferring an English track when one exists.
const captionTrackJS = `(() => {
	const tracks = window.ytInitialPlayerResponse
		&& window.ytInitialPlayerResponse.captions
		&& window.ytInitialPlayerResponse.captions.playerCaptionsTracklistRenderer
		&& window.ytInitialPlayerResponse.captions.playerCaptionsTracklistRenderer.captionTracks;
	if (!tracks || tracks.length === 0) return "";
	const en = tracks.find(t => t.languageCode && t.languageCode.startsWith("en"));
	return (en || tracks[0]).baseUrl;
})()`

func (p *Captions) Fetch(ctx context.Context, videoID string) (string, error) {
	chromeCtx, cancel := chromedp.NewContext(ctx)
	defer cancel()
	chromeCtx, cancelTimeout := context.WithTimeout(chromeCtx, 60*time.Second)
	defer cancelTimeout()

	var trackURL string
	err := chromedp.Run(chromeCtx,
		chromedp.Navigate(WatchURL(videoID)),
		chromedp.WaitReady("body"),
		chromedp.Sleep(2*time.Second), // player response populates after load
		chromedp.Evaluate(captionTrackJS, &trackURL, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("caption scrape: page load failed: %w", err)
	}
	if trackURL == "" {
		return "", fmt.Errorf("caption scrape: no caption track exposed for %s", videoID)
	}

	return p.fetchTrack(ctx, trackURL)
}

// json3 caption payload: events carry segments with UTF-8 text runs.
type captionEvents struct {
	Events []struct {
		Segs []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

func (p *Captions) fetchTrack(ctx context.Context, trackURL string) (string, error) {
	sep := "?"
	if strings.Contains(trackURL, "?") {
		sep = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trackURL+sep+"fmt=json3", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("caption track fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("caption track fetch: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed captionEvents
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("caption track: decode json3: %w", err)
	}

	var sb strings.Builder
	for _, ev := range parsed.Events {
		for _, seg := range ev.Segs {
			text := strings.TrimSpace(seg.UTF8)
			if text == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(text)
		}
	}
	return sb.String(), nil
}
