package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"tubeinsights/internal/logger"
	"tubeinsights/internal/queue"
	"tubeinsights/internal/storage"
	"tubeinsights/internal/types"
)

// JobHandler exposes job status reads and manual run triggers.
type JobHandler struct {
	store      *storage.Store
	workerPool *queue.WorkerPool
	log        *logrus.Entry
}

// NewJobHandler creates a new job handler.
func NewJobHandler(store *storage.Store, workerPool *queue.WorkerPool, log *logger.Logger) *JobHandler {
	return &JobHandler{
		store:      store,
		workerPool: workerPool,
		log:        log.Module("handlers"),
	}
}

// Get returns a job's status. Sections are included only once the job is
// DONE; callers never see partial results from a run still in flight.
func (h *JobHandler) Get(c *fiber.Ctx) error {
	jobID := c.Params("id")
	ctx := c.Context()

	jc, err := h.store.GetJobContext(ctx, jobID)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(404).JSON(fiber.Map{
			"error": "Job not found",
			"code":  "ERR_NOT_FOUND",
		})
	}
	if err != nil {
		h.log.WithError(err).Error("job lookup failed")
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to load job",
			"code":  "ERR_STORE",
		})
	}

	resp := fiber.Map{
		"job_id":     jc.Job.ID,
		"video_id":   jc.Video.ExternalID,
		"status":     jc.Job.Status,
		"created_at": jc.Job.CreatedAt,
		"updated_at": jc.Job.UpdatedAt,
	}
	if jc.Job.Error != "" {
		resp["error"] = jc.Job.Error
	}
	if jc.Job.Status == types.StatusDone {
		resp["sections"] = sectionsPayload(jc.Sections)
	}
	return c.JSON(resp)
}

// Run re-triggers analysis for a PENDING job. The actual preconditions are
// enforced by the run itself; this endpoint only rejects what is already
// knowable.
func (h *JobHandler) Run(c *fiber.Ctx) error {
	jobID := c.Params("id")
	ctx := c.Context()

	jc, err := h.store.GetJobContext(ctx, jobID)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(404).JSON(fiber.Map{
			"error": "Job not found",
			"code":  "ERR_NOT_FOUND",
		})
	}
	if err != nil {
		h.log.WithError(err).Error("job lookup failed")
		return c.Status(500).JSON(fiber.Map{
			"error": "Failed to load job",
			"code":  "ERR_STORE",
		})
	}

	if jc.Job.Status != types.StatusPending {
		return c.Status(409).JSON(fiber.Map{
			"error": "Job is " + jc.Job.Status + ", only PENDING jobs can be run",
			"code":  "ERR_NOT_PENDING",
		})
	}
	if jc.Transcript == nil {
		return c.Status(409).JSON(fiber.Map{
			"error": "Video has no transcript yet",
			"code":  "ERR_NO_TRANSCRIPT",
		})
	}

	h.workerPool.Enqueue(queue.NewAnalysisTask(jc.Job.ID, jc.Video.ExternalID))

	return c.Status(202).JSON(fiber.Map{
		"job_id": jc.Job.ID,
		"status": jc.Job.Status,
	})
}

// sectionPayload is one generated section in API responses.
type sectionPayload struct {
	Task     types.TaskType  `json:"task"`
	Data     json.RawMessage `json:"data"`
	Markdown string          `json:"markdown"`
}

func sectionsPayload(sections []types.Section) []sectionPayload {
	out := make([]sectionPayload, 0, len(sections))
	for _, s := range sections {
		out = append(out, sectionPayload{
			Task:     s.Task,
			Data:     json.RawMessage(s.Payload),
			Markdown: s.Markdown,
		})
	}
	return out
}
