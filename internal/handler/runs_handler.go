package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/arturoeanton/go-survey-indexer/internal/port"
	"github.com/arturoeanton/go-survey-indexer/internal/service"
	"github.com/gofiber/fiber/v3"
)

// RunsHandler exposes indexing run progress.
type RunsHandler struct {
	tracker       *service.RunTracker
	streamTimeout time.Duration
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(tracker *service.RunTracker) *RunsHandler {
	return &RunsHandler{tracker: tracker, streamTimeout: 30 * time.Minute}
}

// Register sets up run routes.
func (h *RunsHandler) Register(router fiber.Router) {
	runs := router.Group("/runs")
	runs.Get("/current", h.GetCurrent)
	runs.Get("/:id", h.GetStatus)
	runs.Get("/:id/stream", h.StreamSSE)
}

// GetCurrent returns the most recently started run, so a client that
// triggered indexing can find the run id and follow its stream.
func (h *RunsHandler) GetCurrent(c fiber.Ctx) error {
	run, ok := h.tracker.Latest()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": port.ErrRunNotFound.Error()})
	}
	return c.JSON(run)
}

// GetStatus returns the current run status.
func (h *RunsHandler) GetStatus(c fiber.Ctx) error {
	run, ok := h.tracker.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": port.ErrRunNotFound.Error()})
	}
	return c.JSON(run)
}

// StreamSSE streams run updates via Server-Sent Events.
func (h *RunsHandler) StreamSSE(c fiber.Ctx) error {
	id := c.Params("id")

	run, ok := h.tracker.Get(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": port.ErrRunNotFound.Error()})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	if run.Done() {
		data, _ := json.Marshal(run)
		return c.SendString(fmt.Sprintf("event: %s\ndata: %s\n\n", run.Status, string(data)))
	}

	ch := h.tracker.Subscribe(id)
	timeout := h.streamTimeout

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer h.tracker.Unsubscribe(id, ch)

		data, _ := json.Marshal(run)
		fmt.Fprintf(w, "event: progress\ndata: %s\n\n", string(data))
		if err := w.Flush(); err != nil {
			return
		}

		deadline := time.After(timeout)
		for {
			select {
			case update, ok := <-ch:
				if !ok {
					return
				}
				data, _ := json.Marshal(update)
				event := "progress"
				if update.Done() {
					event = update.Status
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(data))
				if err := w.Flush(); err != nil {
					return
				}
				if update.Done() {
					return
				}
			case <-deadline:
				slog.Warn("SSE timeout", "run_id", id)
				return
			}
		}
	})
}
