package analysis

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubeinsights/internal/generate"
	"tubeinsights/internal/logger"
	"tubeinsights/internal/storage"
	"tubeinsights/internal/types"
)

// stubEngine replays scripted per-task outcomes and persists a section for
// every task that succeeds.
type stubEngine struct {
	store *storage.Store
	fail  map[types.TaskType]error
	runs  int
}

func (e *stubEngine) Run(ctx context.Context, job *types.Job, video *types.Video, transcript string) []generate.TaskResult {
	e.runs++
	results := make([]generate.TaskResult, 0, len(types.AllTasks))
	for _, task := range types.AllTasks {
		if err := e.fail[task]; err != nil {
			results = append(results, generate.TaskResult{Task: task, Err: err})
			continue
		}
		payload := []byte(`{"ok":true}`)
		if err := e.store.UpsertSection(ctx, job.ID, task, payload, "ok"); err != nil {
			results = append(results, generate.TaskResult{Task: task, Err: err})
			continue
		}
		results = append(results, generate.TaskResult{Task: task})
	}
	return results
}

type recordingReporter struct {
	published int
	sections  int
	err       error
}

func (r *recordingReporter) Publish(ctx context.Context, video *types.Video, sections []types.Section) error {
	r.published++
	r.sections = len(sections)
	return r.err
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "analysis.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seedJob ingests a video and a PENDING job, with a transcript unless told
// otherwise.
func seedJob(t *testing.T, store *storage.Store, withTranscript bool) *types.Job {
	t.Helper()
	ctx := context.Background()
	v := &types.Video{ExternalID: "dQw4w9WgXcQ", Title: "Test Video", Channel: "Test Channel", Duration: 754}
	require.NoError(t, store.CreateVideo(ctx, v))
	if withTranscript {
		require.NoError(t, store.UpsertTranscript(ctx, v.ID, "hello and welcome back to the channel", types.SourceSupadata))
	}
	job, err := store.CreateJob(ctx, v.ID)
	require.NoError(t, err)
	return job
}

func TestRunJobAllTasksSucceed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	job := seedJob(t, store, true)

	engine := &stubEngine{store: store, fail: map[types.TaskType]error{}}
	reporter := &recordingReporter{}
	orch := NewOrchestrator(store, engine, reporter, logger.New())

	require.NoError(t, orch.RunJob(ctx, job.ID))

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusDone, got.Status)
	assert.Empty(t, got.Error)

	sections, err := store.ListSections(ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, sections, len(types.AllTasks))

	assert.Equal(t, 1, reporter.published)
	assert.Equal(t, len(types.AllTasks), reporter.sections)
}

func TestRunJobNonCriticalFailureStillDone(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	job := seedJob(t, store, true)

	engine := &stubEngine{store: store, fail: map[types.TaskType]error{
		types.TaskHighlights: errors.New("model exhausted"),
	}}
	orch := NewOrchestrator(store, engine, nil, logger.New())

	require.NoError(t, orch.RunJob(ctx, job.ID))

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusDone, got.Status)

	sections, err := store.ListSections(ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, sections, len(types.AllTasks)-1)
	for _, s := range sections {
		assert.NotEqual(t, types.TaskHighlights, s.Task)
	}
}

func TestRunJobCriticalFailureFailsJob(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	job := seedJob(t, store, true)

	engine := &stubEngine{store: store, fail: map[types.TaskType]error{
		types.TaskOverview:     errors.New("model exhausted"),
		types.TaskEmotionalArc: errors.New("model exhausted"),
	}}
	reporter := &recordingReporter{}
	orch := NewOrchestrator(store, engine, reporter, logger.New())

	require.NoError(t, orch.RunJob(ctx, job.ID))

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "critical tasks failed:")
	assert.Contains(t, got.Error, string(types.TaskEmotionalArc))
	assert.Contains(t, got.Error, string(types.TaskOverview))

	// Failed jobs never publish a report
	assert.Zero(t, reporter.published)
}

func TestRunJobRequiresTranscript(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	job := seedJob(t, store, false)

	engine := &stubEngine{store: store, fail: map[types.TaskType]error{}}
	orch := NewOrchestrator(store, engine, nil, logger.New())

	err := orch.RunJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrNoTranscript)
	assert.Zero(t, engine.runs)

	// Precondition failures leave the job untouched
	got, gerr := store.GetJob(ctx, job.ID)
	require.NoError(t, gerr)
	assert.Equal(t, types.StatusPending, got.Status)
}

func TestRunJobRejectsNonPending(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	job := seedJob(t, store, true)
	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, types.StatusDone, ""))

	engine := &stubEngine{store: store, fail: map[types.TaskType]error{}}
	orch := NewOrchestrator(store, engine, nil, logger.New())

	err := orch.RunJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotPending)
	assert.Zero(t, engine.runs)

	got, gerr := store.GetJob(ctx, job.ID)
	require.NoError(t, gerr)
	assert.Equal(t, types.StatusDone, got.Status)
}

func TestRunJobUnknownJob(t *testing.T) {
	store := newTestStore(t)
	orch := NewOrchestrator(store, &stubEngine{store: store}, nil, logger.New())

	err := orch.RunJob(context.Background(), "no-such-job")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMultiReporterAttemptsAll(t *testing.T) {
	first := &recordingReporter{err: errors.New("boom")}
	second := &recordingReporter{}

	r := MultiReporter(nil, first, second)
	err := r.Publish(context.Background(), &types.Video{ExternalID: "x"}, nil)

	assert.Error(t, err)
	assert.Equal(t, 1, first.published)
	assert.Equal(t, 1, second.published)

	assert.Nil(t, MultiReporter(nil, nil))
}

func TestRunJobReporterFailureDoesNotFailJob(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	job := seedJob(t, store, true)

	engine := &stubEngine{store: store, fail: map[types.TaskType]error{}}
	reporter := &recordingReporter{err: errors.New("drive quota exceeded")}
	orch := NewOrchestrator(store, engine, reporter, logger.New())

	require.NoError(t, orch.RunJob(ctx, job.ID))

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusDone, got.Status)
	assert.Equal(t, 1, reporter.published)
}
