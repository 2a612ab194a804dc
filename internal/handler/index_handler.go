package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/arturoeanton/go-survey-indexer/internal/domain"
	"github.com/arturoeanton/go-survey-indexer/internal/port"
	"github.com/gofiber/fiber/v3"
)

// Indexer is the pipeline the HTTP layer drives.
type Indexer interface {
	IndexName() string
	CreateIndex(ctx context.Context) (bool, error)
	Run(ctx context.Context) (*domain.IndexReport, error)
}

// IndexHandler exposes index creation and pipeline runs.
type IndexHandler struct {
	indexer Indexer
	appName string
}

// NewIndexHandler creates a new index handler.
func NewIndexHandler(indexer Indexer, appName string) *IndexHandler {
	return &IndexHandler{indexer: indexer, appName: appName}
}

// Register sets up liveness, health and indexing routes.
func (h *IndexHandler) Register(router fiber.Router) {
	router.Get("/", h.Root)
	router.Get("/api/v1/health", h.Health)
	router.Post("/indices", h.CreateIndex)
	router.Post("/index-survey-data", h.IndexSurveyData)
}

// Root answers liveness checks.
func (h *IndexHandler) Root(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": h.appName + " is running"})
}

// Health reports service status and the configured index.
func (h *IndexHandler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"app":    h.appName,
		"index":  h.indexer.IndexName(),
	})
}

// CreateIndex creates the configured index when missing.
func (h *IndexHandler) CreateIndex(c fiber.Ctx) error {
	created, err := h.indexer.CreateIndex(c.Context())
	if err != nil {
		slog.Error("index creation failed", "index", h.indexer.IndexName(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if created {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"index": h.indexer.IndexName(), "created": true})
	}
	return c.JSON(fiber.Map{"index": h.indexer.IndexName(), "created": false})
}

// IndexSurveyData runs the whole pipeline synchronously and returns its report.
func (h *IndexHandler) IndexSurveyData(c fiber.Ctx) error {
	report, err := h.indexer.Run(c.Context())
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, port.ErrSourceNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, port.ErrRunInProgress):
		return fiber.StatusConflict
	case errors.Is(err, port.ErrMalformedMetadata):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}
