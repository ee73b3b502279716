package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"tubeinsights/internal/logger"
	"tubeinsights/internal/queue"
	"tubeinsights/internal/storage"
	"tubeinsights/internal/types"
)

// videoIDPattern matches a bare 11-character YouTube video id.
var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// VideoHandler handles video ingestion and transcript reads.
type VideoHandler struct {
	store      *storage.Store
	workerPool *queue.WorkerPool
	httpClient *http.Client
	oembedBase string
	log        *logrus.Entry
}

// NewVideoHandler creates a new video handler.
func NewVideoHandler(store *storage.Store, workerPool *queue.WorkerPool, log *logger.Logger) *VideoHandler {
	return &VideoHandler{
		store:      store,
		workerPool: workerPool,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		oembedBase: "https://www.youtube.com/oembed",
		log:        log.Module("handlers"),
	}
}

// IngestRequest represents the request body for video ingestion. Either url
// or video_id identifies the video; the metadata fields override what the
// oEmbed lookup would fill.
type IngestRequest struct {
	URL          string `json:"url"`
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	Channel      string `json:"channel"`
	Duration     int64  `json:"duration_seconds"`
	ViewCount    *int64 `json:"view_count"`
	LikeCount    *int64 `json:"like_count"`
	CommentCount *int64 `json:"comment_count"`
}

// Ingest registers a YouTube video, creates an analysis job for it and kicks
// off transcript acquisition in the background. Re-ingesting a known video
// reuses the video row and creates a fresh job.
func (h *VideoHandler) Ingest(c *fiber.Ctx) error {
	var req IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": "Invalid request body",
			"code":  "ERR_INVALID_BODY",
		})
	}

	raw := req.URL
	if raw == "" {
		raw = req.VideoID
	}
	videoID, err := ExtractVideoID(raw)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "ERR_INVALID_URL",
		})
	}

	if req.Duration < 0 {
		return c.Status(400).JSON(fiber.Map{
			"error": "duration_seconds must not be negative",
			"code":  "ERR_INVALID_BODY",
		})
	}

	video := &types.Video{
		ExternalID:   videoID,
		Title:        req.Title,
		Channel:      req.Channel,
		Duration:     req.Duration,
		ViewCount:    req.ViewCount,
		LikeCount:    req.LikeCount,
		CommentCount: req.CommentCount,
	}
	if video.Title == "" {
		h.fillMetadata(video)
	}

	ctx := c.Context()
	if err := h.store.CreateVideo(ctx, video); err != nil {
		h.log.WithError(err).Error("video create failed")
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to register video",
			"code":  "ERR_STORE",
		})
	}

	job, err := h.store.CreateJob(ctx, video.ID)
	if err != nil {
		h.log.WithError(err).Error("job create failed")
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to create job",
			"code":  "ERR_STORE",
		})
	}

	h.workerPool.Enqueue(queue.NewAcquireTask(videoID))

	return c.Status(202).JSON(fiber.Map{
		"job_id":   job.ID,
		"video_id": videoID,
		"status":   job.Status,
	})
}

// Transcript returns the stored transcript for a video by its YouTube id.
func (h *VideoHandler) Transcript(c *fiber.Ctx) error {
	videoID := c.Params("id")
	ctx := c.Context()

	video, err := h.store.GetVideoByExternalID(ctx, videoID)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(404).JSON(fiber.Map{
			"error": "Video not found",
			"code":  "ERR_NOT_FOUND",
		})
	}
	if err != nil {
		h.log.WithError(err).Error("video lookup failed")
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to load video",
			"code":  "ERR_STORE",
		})
	}

	tr, err := h.store.GetTranscript(ctx, video.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(404).JSON(fiber.Map{
			"error": "No transcript for this video yet",
			"code":  "ERR_NO_TRANSCRIPT",
		})
	}
	if err != nil {
		h.log.WithError(err).Error("transcript lookup failed")
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to load transcript",
			"code":  "ERR_STORE",
		})
	}

	return c.JSON(fiber.Map{
		"video_id": videoID,
		"source":   tr.Source,
		"text":     tr.Text,
	})
}

// oEmbedResponse is the subset of YouTube's oEmbed payload we keep.
type oEmbedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// fillMetadata enriches the video with title, channel and thumbnail from the
// public oEmbed endpoint. Failures leave the fields empty.
func (h *VideoHandler) fillMetadata(video *types.Video) {
	oembedURL := h.oembedBase + "?format=json&url=" +
		url.QueryEscape("https://www.youtube.com/watch?v="+video.ExternalID)

	resp, err := h.httpClient.Get(oembedURL)
	if err != nil {
		h.log.WithField("video_id", video.ExternalID).WithError(err).Debug("oembed fetch failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		h.log.WithFields(logrus.Fields{"video_id": video.ExternalID, "status": resp.StatusCode}).
			Debug("oembed fetch failed")
		return
	}

	var meta oEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return
	}
	video.Title = meta.Title
	if video.Channel == "" {
		video.Channel = meta.AuthorName
	}
	if video.ThumbnailURL == "" {
		video.ThumbnailURL = meta.ThumbnailURL
	}
}

// ExtractVideoID pulls the 11-character video id out of the common YouTube
// URL shapes, or accepts a bare id.
func ExtractVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("url is required")
	}
	if videoIDPattern.MatchString(raw) {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url: %v", err)
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")
	switch host {
	case "youtu.be":
		id := strings.Trim(u.Path, "/")
		if videoIDPattern.MatchString(id) {
			return id, nil
		}
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if id := u.Query().Get("v"); videoIDPattern.MatchString(id) {
			return id, nil
		}
		// /shorts/<id>, /embed/<id>, /live/<id>
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 && videoIDPattern.MatchString(parts[1]) {
			switch parts[0] {
			case "shorts", "embed", "live":
				return parts[1], nil
			}
		}
	}

	return "", fmt.Errorf("could not extract a video id from %q", raw)
}
