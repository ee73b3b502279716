package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"tubeinsights/internal/types"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store handles SQLite database operations for videos, transcripts, jobs and
// sections.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at dbPath and ensures the schema.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Concurrent section writers share one connection; SQLite serializes them.
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS videos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		channel TEXT NOT NULL,
		thumbnail_url TEXT NOT NULL DEFAULT '',
		duration_seconds INTEGER NOT NULL DEFAULT 0 CHECK (duration_seconds >= 0),
		view_count INTEGER,
		like_count INTEGER,
		comment_count INTEGER,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transcripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		video_id INTEGER NOT NULL UNIQUE REFERENCES videos(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		source TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		video_id INTEGER NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		task_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		markdown TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE(job_id, task_type)
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_video_status ON jobs(video_id, status, created_at);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &Store{db: db}, nil
}

// CreateVideo inserts a video. Re-ingesting a known external ID returns the
// existing row unchanged.
func (s *Store) CreateVideo(ctx context.Context, v *types.Video) error {
	existing, err := s.GetVideoByExternalID(ctx, v.ExternalID)
	if err == nil {
		*v = *existing
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	v.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO videos (external_id, title, channel, thumbnail_url, duration_seconds,
			view_count, like_count, comment_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ExternalID, v.Title, v.Channel, v.ThumbnailURL, v.Duration,
		v.ViewCount, v.LikeCount, v.CommentCount, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert video: %w", err)
	}
	v.ID, _ = res.LastInsertId()
	return nil
}

// GetVideoByExternalID fetches a video by its external provider ID.
func (s *Store) GetVideoByExternalID(ctx context.Context, externalID string) (*types.Video, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, external_id, title, channel, thumbnail_url, duration_seconds,
			view_count, like_count, comment_count, created_at
		FROM videos WHERE external_id = ?`, externalID)
	return scanVideo(row)
}

func (s *Store) getVideoByID(ctx context.Context, id int64) (*types.Video, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, external_id, title, channel, thumbnail_url, duration_seconds,
			view_count, like_count, comment_count, created_at
		FROM videos WHERE id = ?`, id)
	return scanVideo(row)
}

func scanVideo(row *sql.Row) (*types.Video, error) {
	var v types.Video
	err := row.Scan(&v.ID, &v.ExternalID, &v.Title, &v.Channel, &v.ThumbnailURL,
		&v.Duration, &v.ViewCount, &v.LikeCount, &v.CommentCount, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan video: %w", err)
	}
	return &v, nil
}

// UpsertTranscript writes the transcript for a video, replacing any previous one.
func (s *Store) UpsertTranscript(ctx context.Context, videoID int64, text, source string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcripts (video_id, text, source, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET text = excluded.text, source = excluded.source`,
		videoID, text, source, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert transcript: %w", err)
	}
	return nil
}

// GetTranscript fetches the transcript for a video, ErrNotFound when absent.
func (s *Store) GetTranscript(ctx context.Context, videoID int64) (*types.Transcript, error) {
	var tr types.Transcript
	err := s.db.QueryRowContext(ctx, `
		SELECT id, video_id, text, source, created_at FROM transcripts WHERE video_id = ?`,
		videoID).Scan(&tr.ID, &tr.VideoID, &tr.Text, &tr.Source, &tr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}
	return &tr, nil
}

// CreateJob creates a PENDING job for a video.
func (s *Store) CreateJob(ctx context.Context, videoID int64) (*types.Job, error) {
	now := time.Now().UTC()
	job := &types.Job{
		ID:        uuid.New().String(),
		VideoID:   videoID,
		Status:    types.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, video_id, status, error, created_at, updated_at)
		VALUES (?, ?, ?, '', ?, ?)`,
		job.ID, job.VideoID, job.Status, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}
	return job, nil
}

// GetJob fetches a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*types.Job, error) {
	var j types.Job
	err := s.db.QueryRowContext(ctx, `
		SELECT id, video_id, status, error, created_at, updated_at FROM jobs WHERE id = ?`,
		jobID).Scan(&j.ID, &j.VideoID, &j.Status, &j.Error, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &j, nil
}

// JobContext is a job with its video, transcript and sections eagerly joined.
type JobContext struct {
	Job        *types.Job
	Video      *types.Video
	Transcript *types.Transcript // nil when no transcript exists yet
	Sections   []types.Section
}

// GetJobContext fetches a job together with its video, transcript and sections.
func (s *Store) GetJobContext(ctx context.Context, jobID string) (*JobContext, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	video, err := s.getVideoByID(ctx, job.VideoID)
	if err != nil {
		return nil, err
	}
	transcript, err := s.GetTranscript(ctx, job.VideoID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	sections, err := s.ListSections(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &JobContext{Job: job, Video: video, Transcript: transcript, Sections: sections}, nil
}

// UpdateJobStatus transitions a job's status and error text.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID, status, errText string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, errText, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// LatestPendingJob returns the most recent PENDING job for a video, or
// ErrNotFound when none exists.
func (s *Store) LatestPendingJob(ctx context.Context, videoID int64) (*types.Job, error) {
	var j types.Job
	err := s.db.QueryRowContext(ctx, `
		SELECT id, video_id, status, error, created_at, updated_at
		FROM jobs WHERE video_id = ? AND status = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		videoID, types.StatusPending).Scan(&j.ID, &j.VideoID, &j.Status, &j.Error, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending job: %w", err)
	}
	return &j, nil
}

// UpsertSection writes a section keyed on (job, task type). A second write for
// the same key overwrites the payload; last write wins.
func (s *Store) UpsertSection(ctx context.Context, jobID string, task types.TaskType, payload []byte, markdown string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sections (job_id, task_type, payload, markdown, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id, task_type) DO UPDATE SET
			payload = excluded.payload,
			markdown = excluded.markdown,
			updated_at = excluded.updated_at`,
		jobID, string(task), string(payload), markdown, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert section: %w", err)
	}
	return nil
}

// ListSections returns every section of a job.
func (s *Store) ListSections(ctx context.Context, jobID string) ([]types.Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, task_type, payload, markdown, created_at, updated_at
		FROM sections WHERE job_id = ? ORDER BY task_type`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer rows.Close()

	var sections []types.Section
	for rows.Next() {
		var sec types.Section
		var payload string
		if err := rows.Scan(&sec.ID, &sec.JobID, &sec.Task, &payload, &sec.Markdown,
			&sec.CreatedAt, &sec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sec.Payload = []byte(payload)
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
