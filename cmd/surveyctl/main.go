package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/arturoeanton/go-survey-indexer/internal/adapter/ai"
	"github.com/arturoeanton/go-survey-indexer/internal/adapter/index"
	"github.com/arturoeanton/go-survey-indexer/internal/service"
	"github.com/arturoeanton/go-survey-indexer/pkg/config"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "surveyctl",
		Usage: "Index survey responses into a vector search index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "index",
				Usage:  "Run the full CSV to index pipeline once",
				Action: indexCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "responses",
						Usage: "Path to the responses CSV (overrides RESPONSES_CSV_PATH)",
					},
					&cli.StringFlag{
						Name:  "questions",
						Usage: "Path to the question metadata CSV (overrides QUESTIONS_CSV_PATH)",
					},
					&cli.StringFlag{
						Name:  "index",
						Usage: "Target index name (overrides INDEX_NAME)",
					},
					&cli.BoolFlag{
						Name:  "keep-index",
						Usage: "Append to an existing index instead of recreating it",
					},
				},
			},
			{
				Name:   "create-index",
				Usage:  "Create the configured index if it does not exist",
				Action: createIndexCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "index",
						Usage: "Target index name (overrides INDEX_NAME)",
					},
				},
			},
			{
				Name:   "questions",
				Usage:  "Parse the question metadata file and print it as JSON",
				Action: questionsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Usage: "Path to the question metadata CSV (overrides QUESTIONS_CSV_PATH)",
					},
				},
			},
		},
	}
}

// loadConfig applies flag overrides; the summarizer is validated only when
// the command summarizes.
func loadConfig(c *cli.Context, summarizes bool) (*config.Config, error) {
	cfg := config.Load()
	if v := c.String("responses"); v != "" {
		cfg.ResponsesCSVPath = v
	}
	if v := c.String("questions"); v != "" {
		cfg.QuestionsCSVPath = v
	}
	if v := c.String("index"); v != "" {
		cfg.IndexName = v
	}
	if c.Bool("keep-index") {
		cfg.RecreateIndex = false
	}
	validate := cfg.ValidateIndex
	if summarizes {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func indexCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig(c, true)
	if err != nil {
		return err
	}

	searchIndex, closeIndex, err := index.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to open search index: %w", err)
	}
	defer closeIndex()

	summarizer, err := ai.NewSummarizerFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to create summarizer: %w", err)
	}

	svc := service.NewIndexingService(searchIndex, ai.NewEmbedderFromConfig(cfg), summarizer, service.OptionsFromConfig(cfg), nil)
	report, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	return printJSON(c, report)
}

func createIndexCommand(c *cli.Context) error {
	cfg, err := loadConfig(c, false)
	if err != nil {
		return err
	}

	searchIndex, closeIndex, err := index.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to open search index: %w", err)
	}
	defer closeIndex()

	svc := service.NewIndexingService(searchIndex, nil, nil, service.OptionsFromConfig(cfg), nil)
	created, err := svc.CreateIndex(c.Context)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(c.App.Writer, "index %s created\n", cfg.IndexName)
	} else {
		fmt.Fprintf(c.App.Writer, "index %s already exists\n", cfg.IndexName)
	}
	return nil
}

func questionsCommand(c *cli.Context) error {
	path := c.String("file")
	if path == "" {
		path = config.Load().QuestionsCSVPath
	}
	qs, err := service.LoadQuestions(path)
	if err != nil {
		return err
	}
	slog.Debug("question metadata parsed", "path", path, "questions", qs.Len())
	return printJSON(c, qs.Questions())
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
