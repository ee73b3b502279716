package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubeinsights/internal/logger"
	"tubeinsights/internal/queue"
	"tubeinsights/internal/storage"
	"tubeinsights/internal/types"
)

type testEnv struct {
	app   *fiber.App
	store *storage.Store
}

// newTestEnv wires the handlers onto a fiber app with a fresh store and an
// idle worker pool. Workers are never started so enqueued tasks stay queued
// and tests remain deterministic.
func newTestEnv(t *testing.T, oembedURL string) *testEnv {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logger.New()
	pool := queue.NewWorkerPool(1, store, nil, nil, log)

	videos := NewVideoHandler(store, pool, log)
	if oembedURL != "" {
		videos.oembedBase = oembedURL
	}
	jobs := NewJobHandler(store, pool, log)

	app := fiber.New()
	app.Post("/videos", videos.Ingest)
	app.Get("/videos/:id/transcript", videos.Transcript)
	app.Post("/jobs/:id/run", jobs.Run)
	app.Get("/jobs/:id", jobs.Get)

	return &testEnv{app: app, store: store}
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func getJSON(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	resp.Body.Close()
	return m
}

func TestIngestCreatesVideoAndJob(t *testing.T) {
	oembed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"title":         "Me at the zoo",
			"author_name":   "jawed",
			"thumbnail_url": "https://i.ytimg.com/vi/jNQXAC9IVRw/hqdefault.jpg",
		})
	}))
	defer oembed.Close()

	env := newTestEnv(t, oembed.URL)

	resp := postJSON(t, env.app, "/videos", IngestRequest{URL: "https://www.youtube.com/watch?v=jNQXAC9IVRw"})
	require.Equal(t, 202, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "jNQXAC9IVRw", body["video_id"])
	assert.Equal(t, types.StatusPending, body["status"])
	assert.NotEmpty(t, body["job_id"])

	video, err := env.store.GetVideoByExternalID(context.Background(), "jNQXAC9IVRw")
	require.NoError(t, err)
	assert.Equal(t, "Me at the zoo", video.Title)
	assert.Equal(t, "jawed", video.Channel)
}

func TestIngestIdempotentOnVideo(t *testing.T) {
	oembed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"title": "t"})
	}))
	defer oembed.Close()
	env := newTestEnv(t, oembed.URL)

	first := decodeBody(t, postJSON(t, env.app, "/videos", IngestRequest{URL: "jNQXAC9IVRw"}))
	second := decodeBody(t, postJSON(t, env.app, "/videos", IngestRequest{URL: "https://youtu.be/jNQXAC9IVRw"}))

	assert.Equal(t, first["video_id"], second["video_id"])
	// each ingest still gets its own job
	assert.NotEqual(t, first["job_id"], second["job_id"])
}

func TestIngestMetadataOverridesSkipOembed(t *testing.T) {
	var oembedCalls int
	oembed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		oembedCalls++
		json.NewEncoder(w).Encode(map[string]string{"title": "remote title"})
	}))
	defer oembed.Close()
	env := newTestEnv(t, oembed.URL)

	views := int64(1200)
	resp := postJSON(t, env.app, "/videos", IngestRequest{
		VideoID:   "jNQXAC9IVRw",
		Title:     "caller title",
		Channel:   "caller channel",
		Duration:  19,
		ViewCount: &views,
	})
	require.Equal(t, 202, resp.StatusCode)
	decodeBody(t, resp)

	video, err := env.store.GetVideoByExternalID(context.Background(), "jNQXAC9IVRw")
	require.NoError(t, err)
	assert.Equal(t, "caller title", video.Title)
	assert.Equal(t, "caller channel", video.Channel)
	assert.Equal(t, int64(19), video.Duration)
	require.NotNil(t, video.ViewCount)
	assert.Equal(t, int64(1200), *video.ViewCount)
	assert.Zero(t, oembedCalls)
}

func TestIngestRejectsNegativeDuration(t *testing.T) {
	env := newTestEnv(t, "")
	resp := postJSON(t, env.app, "/videos", IngestRequest{VideoID: "jNQXAC9IVRw", Title: "t", Duration: -5})
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, "ERR_INVALID_BODY", decodeBody(t, resp)["code"])
}

func TestIngestRejectsBadURL(t *testing.T) {
	env := newTestEnv(t, "")
	resp := postJSON(t, env.app, "/videos", IngestRequest{URL: "https://example.com/not-youtube"})
	assert.Equal(t, 400, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "ERR_INVALID_URL", body["code"])
}

func TestIngestSurvivesOembedOutage(t *testing.T) {
	oembed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer oembed.Close()
	env := newTestEnv(t, oembed.URL)

	resp := postJSON(t, env.app, "/videos", IngestRequest{URL: "jNQXAC9IVRw"})
	require.Equal(t, 202, resp.StatusCode)
	decodeBody(t, resp)

	video, err := env.store.GetVideoByExternalID(context.Background(), "jNQXAC9IVRw")
	require.NoError(t, err)
	assert.Empty(t, video.Title)
}

func TestGetJobHidesSectionsUntilDone(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	v := &types.Video{ExternalID: "jNQXAC9IVRw"}
	require.NoError(t, env.store.CreateVideo(ctx, v))
	job, err := env.store.CreateJob(ctx, v.ID)
	require.NoError(t, err)
	require.NoError(t, env.store.UpsertSection(ctx, job.ID, types.TaskOverview, []byte(`{"summary":"s","verdict":"v"}`), "s"))

	body := decodeBody(t, getJSON(t, env.app, "/jobs/"+job.ID))
	assert.Equal(t, types.StatusPending, body["status"])
	_, hasSections := body["sections"]
	assert.False(t, hasSections)

	require.NoError(t, env.store.UpdateJobStatus(ctx, job.ID, types.StatusDone, ""))
	body = decodeBody(t, getJSON(t, env.app, "/jobs/"+job.ID))
	assert.Equal(t, types.StatusDone, body["status"])
	sections, ok := body["sections"].([]any)
	require.True(t, ok)
	assert.Len(t, sections, 1)
}

func TestGetJobNotFound(t *testing.T) {
	env := newTestEnv(t, "")
	resp := getJSON(t, env.app, "/jobs/nope")
	assert.Equal(t, 404, resp.StatusCode)
	decodeBody(t, resp)
}

func TestRunJobPreconditions(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	v := &types.Video{ExternalID: "jNQXAC9IVRw"}
	require.NoError(t, env.store.CreateVideo(ctx, v))
	job, err := env.store.CreateJob(ctx, v.ID)
	require.NoError(t, err)

	// no transcript yet
	resp := postJSON(t, env.app, "/jobs/"+job.ID+"/run", nil)
	assert.Equal(t, 409, resp.StatusCode)
	assert.Equal(t, "ERR_NO_TRANSCRIPT", decodeBody(t, resp)["code"])

	require.NoError(t, env.store.UpsertTranscript(ctx, v.ID, "text", types.SourceCaptions))
	resp = postJSON(t, env.app, "/jobs/"+job.ID+"/run", nil)
	assert.Equal(t, 202, resp.StatusCode)
	decodeBody(t, resp)

	// terminal jobs cannot be re-run
	require.NoError(t, env.store.UpdateJobStatus(ctx, job.ID, types.StatusDone, ""))
	resp = postJSON(t, env.app, "/jobs/"+job.ID+"/run", nil)
	assert.Equal(t, 409, resp.StatusCode)
	assert.Equal(t, "ERR_NOT_PENDING", decodeBody(t, resp)["code"])
}

func TestTranscriptEndpoint(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	resp := getJSON(t, env.app, "/videos/jNQXAC9IVRw/transcript")
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, "ERR_NOT_FOUND", decodeBody(t, resp)["code"])

	v := &types.Video{ExternalID: "jNQXAC9IVRw"}
	require.NoError(t, env.store.CreateVideo(ctx, v))

	resp = getJSON(t, env.app, "/videos/jNQXAC9IVRw/transcript")
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, "ERR_NO_TRANSCRIPT", decodeBody(t, resp)["code"])

	require.NoError(t, env.store.UpsertTranscript(ctx, v.ID, "hello there", types.SourceGroqWhisper))
	resp = getJSON(t, env.app, "/videos/jNQXAC9IVRw/transcript")
	require.Equal(t, 200, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "hello there", body["text"])
	assert.Equal(t, types.SourceGroqWhisper, body["source"])
}

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"jNQXAC9IVRw", "jNQXAC9IVRw", true},
		{"https://www.youtube.com/watch?v=jNQXAC9IVRw", "jNQXAC9IVRw", true},
		{"https://youtube.com/watch?v=jNQXAC9IVRw&t=42s", "jNQXAC9IVRw", true},
		{"https://youtu.be/jNQXAC9IVRw", "jNQXAC9IVRw", true},
		{"https://www.youtube.com/shorts/jNQXAC9IVRw", "jNQXAC9IVRw", true},
		{"https://www.youtube.com/embed/jNQXAC9IVRw", "jNQXAC9IVRw", true},
		{"https://m.youtube.com/watch?v=jNQXAC9IVRw", "jNQXAC9IVRw", true},
		{"", "", false},
		{"https://example.com/watch?v=jNQXAC9IVRw", "", false},
		{"https://www.youtube.com/watch?v=short", "", false},
		{"not a url at all", "", false},
	}
	for _, tc := range cases {
		got, err := ExtractVideoID(tc.in)
		if tc.ok {
			require.NoError(t, err, tc.in)
			assert.Equal(t, tc.want, got, tc.in)
		} else {
			assert.Error(t, err, tc.in)
		}
	}
}
