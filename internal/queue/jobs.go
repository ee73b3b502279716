package queue

import (
	"time"

	"github.com/google/uuid"
)

// Task kinds processed by the worker pool.
const (
	KindAcquireTranscript = "acquire_transcript"
	KindRunAnalysis       = "run_analysis"
)

// Task is one unit of background work: either fetching a transcript for a
// video or running the analysis for a job.
type Task struct {
	ID        string
	Kind      string
	VideoID   string // YouTube video id
	JobID     string // set for run_analysis tasks
	CreatedAt time.Time
}

// NewAcquireTask builds a transcript acquisition task for a video.
func NewAcquireTask(videoID string) *Task {
	return &Task{
		ID:        uuid.NewString(),
		Kind:      KindAcquireTranscript,
		VideoID:   videoID,
		CreatedAt: time.Now(),
	}
}

// NewAnalysisTask builds an analysis task for an existing job.
func NewAnalysisTask(jobID, videoID string) *Task {
	return &Task{
		ID:        uuid.NewString(),
		Kind:      KindRunAnalysis,
		VideoID:   videoID,
		JobID:     jobID,
		CreatedAt: time.Now(),
	}
}
