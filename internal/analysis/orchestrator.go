// Package analysis owns the job state machine: PENDING -> RUNNING -> DONE or
// FAILED. Terminal states are never left; preconditions fail the trigger, not
// the job.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"tubeinsights/internal/generate"
	"tubeinsights/internal/logger"
	"tubeinsights/internal/storage"
	"tubeinsights/internal/types"
)

// ErrNoTranscript rejects a run trigger for a job whose video has no
// transcript yet. The job's state is left untouched.
var ErrNoTranscript = errors.New("job has no transcript: acquire one before running analysis")

// ErrJobNotPending rejects a run trigger for a job that already left PENDING.
var ErrJobNotPending = errors.New("job is not pending")

// Engine is the section generation collaborator. Implemented by
// generate.Engine.
type Engine interface {
	Run(ctx context.Context, job *types.Job, video *types.Video, transcript string) []generate.TaskResult
}

// Reporter renders and ships the finished report. Optional; nil disables it.
type Reporter interface {
	Publish(ctx context.Context, video *types.Video, sections []types.Section) error
}

type multiReporter []Reporter

// MultiReporter fans a report out to several destinations. Every destination
// is attempted; the first error is returned. Nil destinations are dropped.
func MultiReporter(reporters ...Reporter) Reporter {
	var rs multiReporter
	for _, r := range reporters {
		if r != nil {
			rs = append(rs, r)
		}
	}
	if len(rs) == 0 {
		return nil
	}
	return rs
}

func (rs multiReporter) Publish(ctx context.Context, video *types.Video, sections []types.Section) error {
	var firstErr error
	for _, r := range rs {
		if err := r.Publish(ctx, video, sections); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Orchestrator drives one job from PENDING to a terminal state.
type Orchestrator struct {
	store    *storage.Store
	engine   Engine
	reporter Reporter
	log      *logrus.Entry
}

func NewOrchestrator(store *storage.Store, engine Engine, reporter Reporter, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		engine:   engine,
		reporter: reporter,
		log:      log.Module("analysis"),
	}
}

// RunJob executes the full analysis for one job. Preconditions (job must be
// PENDING, a transcript must exist) fail the call without mutating job state.
func (o *Orchestrator) RunJob(ctx context.Context, jobID string) error {
	jc, err := o.store.GetJobContext(ctx, jobID)
	if err != nil {
		return fmt.Errorf("fetch job %s: %w", jobID, err)
	}

	if jc.Job.Status != types.StatusPending {
		return fmt.Errorf("%w: job %s is %s", ErrJobNotPending, jobID, jc.Job.Status)
	}
	if jc.Transcript == nil {
		return ErrNoTranscript
	}

	if err := o.store.UpdateJobStatus(ctx, jobID, types.StatusRunning, ""); err != nil {
		return fmt.Errorf("transition job %s to running: %w", jobID, err)
	}
	o.log.WithFields(logrus.Fields{"job_id": jobID, "video_id": jc.Video.ExternalID}).
		Info("job running")

	results := o.engine.Run(ctx, jc.Job, jc.Video, jc.Transcript.Text)

	var failedCritical []string
	for _, r := range results {
		if r.Err != nil && r.Task.Critical() {
			failedCritical = append(failedCritical, string(r.Task))
		}
	}

	if len(failedCritical) > 0 {
		msg := "critical tasks failed: " + strings.Join(failedCritical, ", ")
		if err := o.store.UpdateJobStatus(ctx, jobID, types.StatusFailed, msg); err != nil {
			return fmt.Errorf("transition job %s to failed: %w", jobID, err)
		}
		o.log.WithField("job_id", jobID).Warn(msg)
		return nil
	}

	if err := o.store.UpdateJobStatus(ctx, jobID, types.StatusDone, ""); err != nil {
		return fmt.Errorf("transition job %s to done: %w", jobID, err)
	}
	o.log.WithField("job_id", jobID).Info("job done")

	o.publishReport(ctx, jobID, jc.Video)
	return nil
}

// publishReport ships the rendered report for a finished job. Failures are
// logged; a report problem never fails a DONE job.
func (o *Orchestrator) publishReport(ctx context.Context, jobID string, video *types.Video) {
	if o.reporter == nil {
		return
	}
	sections, err := o.store.ListSections(ctx, jobID)
	if err != nil {
		o.log.WithField("job_id", jobID).WithError(err).Warn("report: listing sections failed")
		return
	}
	if err := o.reporter.Publish(ctx, video, sections); err != nil {
		o.log.WithField("job_id", jobID).WithError(err).Warn("report publish failed")
	}
}
