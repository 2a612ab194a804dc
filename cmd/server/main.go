package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/arturoeanton/go-survey-indexer/internal/adapter/ai"
	"github.com/arturoeanton/go-survey-indexer/internal/adapter/index"
	"github.com/arturoeanton/go-survey-indexer/internal/handler"
	"github.com/arturoeanton/go-survey-indexer/internal/middleware"
	"github.com/arturoeanton/go-survey-indexer/internal/service"
	"github.com/arturoeanton/go-survey-indexer/pkg/config"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("🚀 Starting Survey Indexer",
		"port", cfg.Port,
		"index", cfg.IndexName,
		"backend", cfg.IndexBackend,
		"variant", cfg.DocumentVariant,
		"summarizer", cfg.Summarizer,
		"ollama_embed", cfg.OllamaEmbedURL,
	)

	// ── Search index ─────────────────────────────────────────────────────
	searchIndex, closeIndex, err := index.NewFromConfig(cfg)
	if err != nil {
		slog.Error("failed to open search index", "backend", cfg.IndexBackend, "error", err)
		os.Exit(1)
	}
	defer closeIndex()

	// ── AI adapters ──────────────────────────────────────────────────────
	embedder := ai.NewEmbedderFromConfig(cfg)
	summarizer, err := ai.NewSummarizerFromConfig(cfg)
	if err != nil {
		slog.Error("failed to create summarizer", "error", err)
		os.Exit(1)
	}

	// ── Services ─────────────────────────────────────────────────────────
	tracker := service.NewRunTracker()
	indexingService := service.NewIndexingService(searchIndex, embedder, summarizer, service.OptionsFromConfig(cfg), tracker)

	// ── Fiber App ────────────────────────────────────────────────────────
	// No write timeout: an indexing run answers only once every row is processed.
	app := fiber.New(fiber.Config{
		AppName:     cfg.AppName,
		ReadTimeout: 30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(middleware.AccessLog(nil))
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
	}))

	handler.NewIndexHandler(indexingService, cfg.AppName).Register(app)
	handler.NewRunsHandler(tracker).Register(app)

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
