// Package generate runs the fixed set of analysis tasks for one job. Every
// task builds a prompt, walks the LLM provider ladder with a schema gate at
// each rung, persists its section on success and settles independently of its
// siblings.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tubeinsights/internal/llm"
	"tubeinsights/internal/logger"
	"tubeinsights/internal/prompt"
	"tubeinsights/internal/schema"
	"tubeinsights/internal/types"
)

// SectionWriter persists one validated section. Implemented by storage.Store.
type SectionWriter interface {
	UpsertSection(ctx context.Context, jobID string, task types.TaskType, payload []byte, markdown string) error
}

// TaskResult is the settled outcome of one task. Err is nil on success.
type TaskResult struct {
	Task types.TaskType
	Err  error
}

// taskTimeout bounds one task end to end so a hung provider call cannot stall
// a task's settlement forever.
const taskTimeout = 5 * time.Minute

// Engine generates sections through a primary client and a fallback client
// whose model list is walked highest-capability first. Either client may be
// nil; at least one must be configured.
type Engine struct {
	primary  llm.Client
	fallback llm.Client
	sections SectionWriter
	log      *logrus.Entry
}

func NewEngine(primary, fallback llm.Client, sections SectionWriter, log *logger.Logger) (*Engine, error) {
	if primary == nil && fallback == nil {
		return nil, errors.New("no LLM provider configured: set OPENAI_API_KEY or GROQ_API_KEY")
	}
	return &Engine{
		primary:  primary,
		fallback: fallback,
		sections: sections,
		log:      log.Module("generate"),
	}, nil
}

// Run launches every task concurrently and returns once all of them have
// settled. One task's failure never aborts its siblings.
func (e *Engine) Run(ctx context.Context, job *types.Job, video *types.Video, transcript string) []TaskResult {
	results := make([]TaskResult, len(types.AllTasks))
	var wg sync.WaitGroup

	for i, task := range types.AllTasks {
		wg.Add(1)
		go func(i int, task types.TaskType) {
			defer wg.Done()
			results[i] = TaskResult{Task: task, Err: e.runTask(ctx, job, video, transcript, task)}
		}(i, task)
	}

	wg.Wait()
	return results
}

// runTask executes one task to settlement: generate, validate, persist. A
// panic anywhere inside counts as this task's failure.
func (e *Engine) runTask(ctx context.Context, job *types.Job, video *types.Video, transcript string, task types.TaskType) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	norm, genErr := e.generateSection(ctx, task, video, transcript)
	if genErr != nil {
		e.log.WithFields(logrus.Fields{"job_id": job.ID, "task": task}).
			WithError(genErr).Warn("section generation failed")
		return genErr
	}

	// Persist before reporting success so the write and the outcome are atomic
	// from the orchestrator's perspective.
	if err := e.sections.UpsertSection(ctx, job.ID, task, norm.JSON, norm.Markdown); err != nil {
		return fmt.Errorf("persist section: %w", err)
	}

	e.log.WithFields(logrus.Fields{"job_id": job.ID, "task": task}).Info("section persisted")
	return nil
}

// generateSection walks the provider ladder for one task: primary model first,
// then every fallback model in order, applying the parse-and-validate protocol
// at each rung and returning on first success.
func (e *Engine) generateSection(ctx context.Context, task types.TaskType, video *types.Video, transcript string) (*schema.Normalized, error) {
	basePrompt := prompt.Build(task, *video, transcript)

	var lastErr error
	for _, rung := range e.ladder() {
		norm, err := e.attemptModel(ctx, rung.client, rung.model, task, basePrompt)
		if err == nil {
			return norm, nil
		}
		e.log.WithFields(logrus.Fields{
			"task":     task,
			"provider": rung.client.Name(),
			"model":    rung.model,
		}).WithError(err).Debug("model attempt failed, falling through")
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

type rung struct {
	client llm.Client
	model  string
}

func (e *Engine) ladder() []rung {
	var rungs []rung
	if e.primary != nil {
		for _, m := range e.primary.Models() {
			rungs = append(rungs, rung{e.primary, m})
		}
	}
	if e.fallback != nil {
		for _, m := range e.fallback.Models() {
			rungs = append(rungs, rung{e.fallback, m})
		}
	}
	return rungs
}

// attemptModel asks one model for the section, validating the response. On a
// validation failure it re-invokes the same model once with the validation
// reason folded into the prompt before giving up on this rung.
func (e *Engine) attemptModel(ctx context.Context, client llm.Client, model string, task types.TaskType, basePrompt string) (*schema.Normalized, error) {
	norm, err := e.completeAndValidate(ctx, client, model, task, basePrompt)
	if err == nil {
		return norm, nil
	}

	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		return nil, err
	}

	// One correction retry against the same model with the reason attached.
	return e.completeAndValidate(ctx, client, model, task, prompt.BuildRetry(basePrompt, verr.Reason))
}

func (e *Engine) completeAndValidate(ctx context.Context, client llm.Client, model string, task types.TaskType, promptText string) (*schema.Normalized, error) {
	raw, err := client.Complete(ctx, model, promptText)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, fmt.Errorf("%s/%s: empty completion", client.Name(), model)
	}
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("%s/%s: response is not valid JSON", client.Name(), model)
	}
	return schema.Validate(task, json.RawMessage(raw))
}
