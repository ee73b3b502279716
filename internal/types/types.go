package types

import "time"

// Job status constants
const (
	StatusPending = "PENDING"
	StatusRunning = "RUNNING"
	StatusDone    = "DONE"
	StatusFailed  = "FAILED"
)

// TerminalStatus reports whether a job status can never change again.
func TerminalStatus(status string) bool {
	return status == StatusDone || status == StatusFailed
}

// Transcript source constants, one per acquisition provider
const (
	SourceSupadata      = "supadata"
	SourceGroqWhisper   = "groq_whisper"
	SourceAssemblyAI    = "assemblyai"
	SourceCaptions      = "captions"
	SourceOpenAIWhisper = "openai_whisper"
)

// TaskType identifies one of the fixed analysis categories.
type TaskType string

const (
	TaskStructuralBeats TaskType = "structural_beats"
	TaskEmotionalArc    TaskType = "emotional_arc"
	TaskMonetization    TaskType = "monetization"
	TaskTitlePattern    TaskType = "title_pattern"
	TaskVisualAssets    TaskType = "visual_assets"
	TaskHighlights      TaskType = "highlights"
	TaskNarrative       TaskType = "narrative"
	TaskOverview        TaskType = "overview"
)

// AllTasks lists every analysis task in launch order.
var AllTasks = []TaskType{
	TaskStructuralBeats,
	TaskEmotionalArc,
	TaskMonetization,
	TaskTitlePattern,
	TaskVisualAssets,
	TaskHighlights,
	TaskNarrative,
	TaskOverview,
}

// criticalTasks fail the whole job when they fail.
var criticalTasks = map[TaskType]bool{
	TaskStructuralBeats: true,
	TaskEmotionalArc:    true,
	TaskOverview:        true,
}

// Critical reports whether a failed task escalates to job-level failure.
func (t TaskType) Critical() bool {
	return criticalTasks[t]
}

// Valid reports whether t is one of the known task types.
func (t TaskType) Valid() bool {
	for _, known := range AllTasks {
		if t == known {
			return true
		}
	}
	return false
}

// Video is an ingested source video. Immutable after ingestion except for
// count refreshes.
type Video struct {
	ID           int64     `json:"-"`
	ExternalID   string    `json:"video_id"`
	Title        string    `json:"title"`
	Channel      string    `json:"channel"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Duration     int64     `json:"duration_seconds"`
	ViewCount    *int64    `json:"view_count,omitempty"`
	LikeCount    *int64    `json:"like_count,omitempty"`
	CommentCount *int64    `json:"comment_count,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Transcript holds the full text for one video and the provider that produced it.
type Transcript struct {
	ID        int64     `json:"-"`
	VideoID   int64     `json:"-"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Job is one analysis run over a video's transcript.
type Job struct {
	ID        string    `json:"job_id"`
	VideoID   int64     `json:"-"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Section is the validated output of one analysis task for one job.
// At most one section exists per (job, task type).
type Section struct {
	ID        int64     `json:"-"`
	JobID     string    `json:"-"`
	Task      TaskType  `json:"task_type"`
	Payload   []byte    `json:"payload"`
	Markdown  string    `json:"markdown,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
