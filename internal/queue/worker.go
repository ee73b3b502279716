package queue

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tubeinsights/internal/logger"
	"tubeinsights/internal/storage"
	"tubeinsights/internal/transcript"
	"tubeinsights/internal/types"
)

// transcriptFetcher is the transcript acquisition collaborator. Implemented by
// transcript.Chain.
type transcriptFetcher interface {
	Fetch(ctx context.Context, videoID string) (*transcript.Result, error)
}

// jobRunner drives one analysis job to a terminal state. Implemented by
// analysis.Orchestrator.
type jobRunner interface {
	RunJob(ctx context.Context, jobID string) error
}

// taskTimeout bounds a single background task. Transcript acquisition can
// involve an audio download plus a speech-to-text round trip.
const taskTimeout = 20 * time.Minute

// WorkerPool processes transcript acquisition and analysis tasks on a fixed
// set of workers.
type WorkerPool struct {
	taskQueue   chan *Task
	workerCount int
	store       *storage.Store
	fetcher     transcriptFetcher
	runner      jobRunner
	log         *logrus.Entry
	wg          sync.WaitGroup
}

// NewWorkerPool creates a worker pool. Workers are not started until Start.
func NewWorkerPool(workerCount int, store *storage.Store, fetcher transcriptFetcher, runner jobRunner, log *logger.Logger) *WorkerPool {
	return &WorkerPool{
		taskQueue:   make(chan *Task, 100),
		workerCount: workerCount,
		store:       store,
		fetcher:     fetcher,
		runner:      runner,
		log:         log.Module("queue"),
	}
}

// Start launches all workers.
func (wp *WorkerPool) Start() {
	wp.log.WithField("workers", wp.workerCount).Info("starting worker pool")
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop drains the queue and waits for in-flight tasks to finish.
func (wp *WorkerPool) Stop() {
	close(wp.taskQueue)
	wp.wg.Wait()
}

// Enqueue adds a task to the queue.
func (wp *WorkerPool) Enqueue(task *Task) {
	wp.taskQueue <- task
	wp.log.WithFields(logrus.Fields{
		"task_id": task.ID, "kind": task.Kind, "video_id": task.VideoID,
	}).Info("task enqueued")
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	wp.log.WithField("worker", id).Debug("worker started")

	for task := range wp.taskQueue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					wp.log.WithFields(logrus.Fields{
						"worker": id, "task_id": task.ID, "panic": r,
					}).Errorf("panic processing task\n%s", debug.Stack())
				}
			}()
			wp.process(id, task)
		}()
	}
}

func (wp *WorkerPool) process(workerID int, task *Task) {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	entry := wp.log.WithFields(logrus.Fields{
		"worker": workerID, "task_id": task.ID, "kind": task.Kind, "video_id": task.VideoID,
	})
	entry.Info("processing task")

	switch task.Kind {
	case KindAcquireTranscript:
		wp.acquireTranscript(ctx, entry, task)
	case KindRunAnalysis:
		if err := wp.runner.RunJob(ctx, task.JobID); err != nil {
			entry.WithField("job_id", task.JobID).WithError(err).Error("analysis run failed")
		}
	default:
		entry.Error("unknown task kind")
	}
}

// acquireTranscript walks the provider chain, stores the transcript and hands
// the video's pending job to the analysis runner. When every provider fails,
// the pending job is failed so callers are not left waiting on PENDING.
func (wp *WorkerPool) acquireTranscript(ctx context.Context, entry *logrus.Entry, task *Task) {
	video, err := wp.store.GetVideoByExternalID(ctx, task.VideoID)
	if err != nil {
		entry.WithError(err).Error("video lookup failed")
		return
	}

	result, err := wp.fetcher.Fetch(ctx, task.VideoID)
	if err != nil {
		entry.WithError(err).Warn("transcript acquisition failed")
		wp.failPendingJob(ctx, entry, video.ID, err.Error())
		return
	}

	if err := wp.store.UpsertTranscript(ctx, video.ID, result.Text, result.Source); err != nil {
		entry.WithError(err).Error("transcript save failed")
		return
	}
	entry.WithField("source", result.Source).Info("transcript acquired")

	job, err := wp.store.LatestPendingJob(ctx, video.ID)
	if err != nil {
		if err != storage.ErrNotFound {
			entry.WithError(err).Error("pending job lookup failed")
		}
		return
	}

	if err := wp.runner.RunJob(ctx, job.ID); err != nil {
		entry.WithField("job_id", job.ID).WithError(err).Error("analysis run failed")
	}
}

func (wp *WorkerPool) failPendingJob(ctx context.Context, entry *logrus.Entry, videoID int64, reason string) {
	job, err := wp.store.LatestPendingJob(ctx, videoID)
	if err != nil {
		if err != storage.ErrNotFound {
			entry.WithError(err).Error("pending job lookup failed")
		}
		return
	}
	if err := wp.store.UpdateJobStatus(ctx, job.ID, types.StatusFailed, "transcript acquisition failed: "+reason); err != nil {
		entry.WithField("job_id", job.ID).WithError(err).Error("job status update failed")
	}
}
