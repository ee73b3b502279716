package handlers

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"tubeinsights/internal/logger"
	"tubeinsights/internal/storage"
	"tubeinsights/internal/types"
)

// progressInterval is how often the progress socket pushes an update.
const progressInterval = 2 * time.Second

// ProgressHandler streams job progress over a WebSocket.
type ProgressHandler struct {
	store *storage.Store
	log   *logrus.Entry
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(store *storage.Store, log *logger.Logger) *ProgressHandler {
	return &ProgressHandler{
		store: store,
		log:   log.Module("handlers"),
	}
}

// progressUpdate is one frame pushed to the client.
type progressUpdate struct {
	JobID        string `json:"job_id"`
	Status       string `json:"status"`
	SectionsDone int    `json:"sections_done"`
	Error        string `json:"error,omitempty"`
}

// Handle pushes the job's status and completed section count every couple of
// seconds and closes the socket once the job reaches a terminal state.
func (h *ProgressHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	jobID := c.Params("id")
	ctx := context.Background()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		job, err := h.store.GetJob(ctx, jobID)
		if err != nil {
			h.log.WithField("job_id", jobID).WithError(err).Warn("progress: job lookup failed")
			c.WriteJSON(progressUpdate{JobID: jobID, Status: "UNKNOWN", Error: "job not found"})
			return
		}

		sections, err := h.store.ListSections(ctx, jobID)
		if err != nil {
			h.log.WithField("job_id", jobID).WithError(err).Warn("progress: section count failed")
		}

		update := progressUpdate{
			JobID:        jobID,
			Status:       job.Status,
			SectionsDone: len(sections),
			Error:        job.Error,
		}
		if err := c.WriteJSON(update); err != nil {
			// client went away
			return
		}

		if types.TerminalStatus(job.Status) {
			return
		}
		<-ticker.C
	}
}
