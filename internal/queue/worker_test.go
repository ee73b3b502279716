package queue

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubeinsights/internal/logger"
	"tubeinsights/internal/storage"
	"tubeinsights/internal/transcript"
	"tubeinsights/internal/types"
)

type fakeFetcher struct {
	result *transcript.Result
	err    error
	calls  int
	mu     sync.Mutex
}

func (f *fakeFetcher) Fetch(ctx context.Context, videoID string) (*transcript.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeRunner struct {
	mu     sync.Mutex
	jobIDs []string
	err    error
}

func (r *fakeRunner) RunJob(ctx context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobIDs = append(r.jobIDs, jobID)
	return r.err
}

func (r *fakeRunner) ran() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.jobIDs...)
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedVideoWithJob(t *testing.T, store *storage.Store) (*types.Video, *types.Job) {
	t.Helper()
	ctx := context.Background()
	v := &types.Video{ExternalID: "jNQXAC9IVRw", Title: "Me at the zoo"}
	require.NoError(t, store.CreateVideo(ctx, v))
	job, err := store.CreateJob(ctx, v.ID)
	require.NoError(t, err)
	return v, job
}

func TestAcquireTaskStoresTranscriptAndRunsJob(t *testing.T) {
	store := newTestStore(t)
	video, job := seedVideoWithJob(t, store)

	fetcher := &fakeFetcher{result: &transcript.Result{Text: "hello world", Source: types.SourceSupadata}}
	runner := &fakeRunner{}
	pool := NewWorkerPool(2, store, fetcher, runner, logger.New())
	pool.Start()

	pool.Enqueue(NewAcquireTask(video.ExternalID))
	pool.Stop()

	tr, err := store.GetTranscript(context.Background(), video.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello world", tr.Text)
	assert.Equal(t, types.SourceSupadata, tr.Source)
	assert.Equal(t, []string{job.ID}, runner.ran())
}

func TestAcquireFailureFailsPendingJob(t *testing.T) {
	store := newTestStore(t)
	video, job := seedVideoWithJob(t, store)

	fetcher := &fakeFetcher{err: errors.New("all transcript providers exhausted")}
	runner := &fakeRunner{}
	pool := NewWorkerPool(1, store, fetcher, runner, logger.New())
	pool.Start()

	pool.Enqueue(NewAcquireTask(video.ExternalID))
	pool.Stop()

	got, err := store.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "transcript acquisition failed")
	assert.Empty(t, runner.ran())
}

func TestAnalysisTaskInvokesRunner(t *testing.T) {
	store := newTestStore(t)
	_, job := seedVideoWithJob(t, store)

	runner := &fakeRunner{}
	pool := NewWorkerPool(1, store, &fakeFetcher{}, runner, logger.New())
	pool.Start()

	pool.Enqueue(NewAnalysisTask(job.ID, "jNQXAC9IVRw"))
	pool.Stop()

	assert.Equal(t, []string{job.ID}, runner.ran())
}

func TestWorkerSurvivesPanic(t *testing.T) {
	store := newTestStore(t)
	video, job := seedVideoWithJob(t, store)

	// nil result with nil error makes acquireTranscript dereference nil,
	// exercising the recover path
	fetcher := &fakeFetcher{}
	runner := &fakeRunner{}
	pool := NewWorkerPool(1, store, fetcher, runner, logger.New())
	pool.Start()

	pool.Enqueue(NewAcquireTask(video.ExternalID))

	// the same worker must still pick up the next task
	pool.Enqueue(NewAnalysisTask(job.ID, video.ExternalID))

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker pool did not drain after panic")
	}

	assert.Equal(t, []string{job.ID}, runner.ran())
}

func TestUnknownVideoLogsAndSkips(t *testing.T) {
	store := newTestStore(t)
	runner := &fakeRunner{}
	fetcher := &fakeFetcher{result: &transcript.Result{Text: "x", Source: types.SourceCaptions}}
	pool := NewWorkerPool(1, store, fetcher, runner, logger.New())
	pool.Start()

	pool.Enqueue(NewAcquireTask("does-not-exist"))
	pool.Stop()

	assert.Zero(t, fetcher.calls)
	assert.Empty(t, runner.ran())
}
