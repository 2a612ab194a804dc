package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/arturoeanton/go-survey-indexer/internal/adapter/source"
	"github.com/arturoeanton/go-survey-indexer/internal/domain"
	"github.com/arturoeanton/go-survey-indexer/internal/port"
	"github.com/arturoeanton/go-survey-indexer/internal/survey"
	"github.com/arturoeanton/go-survey-indexer/pkg/config"
	"github.com/google/uuid"
)

// Options describes one indexing job.
type Options struct {
	ResponsesPath      string
	QuestionsPath      string
	IndexName          string
	SurveyName         string
	Variant            domain.DocumentVariant
	RespondentIDColumn string
	Dimension          int
	RecreateIndex      bool
}

// OptionsFromConfig maps application configuration onto job options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ResponsesPath:      cfg.ResponsesCSVPath,
		QuestionsPath:      cfg.QuestionsCSVPath,
		IndexName:          cfg.IndexName,
		SurveyName:         cfg.SurveyName,
		Variant:            domain.DocumentVariant(cfg.DocumentVariant),
		RespondentIDColumn: cfg.RespondentIDColumn,
		Dimension:          cfg.EmbeddingDimension,
		RecreateIndex:      cfg.RecreateIndex,
	}
}

// IndexingService runs the CSV → document → search index pipeline.
// Only one run may be active at a time.
type IndexingService struct {
	index      port.SearchIndex
	embedder   port.Embedder
	summarizer port.Summarizer
	opts       Options
	tracker    *RunTracker
	running    sync.Mutex
	logger     *slog.Logger
}

// NewIndexingService creates the pipeline service. summarizer may be nil.
func NewIndexingService(index port.SearchIndex, embedder port.Embedder, summarizer port.Summarizer, opts Options, tracker *RunTracker) *IndexingService {
	if tracker == nil {
		tracker = NewRunTracker()
	}
	return &IndexingService{
		index:      index,
		embedder:   embedder,
		summarizer: summarizer,
		opts:       opts,
		tracker:    tracker,
		logger:     slog.Default().With("component", "indexing-service"),
	}
}

// Tracker returns the run tracker.
func (s *IndexingService) Tracker() *RunTracker {
	return s.tracker
}

// IndexName returns the target index.
func (s *IndexingService) IndexName() string {
	return s.opts.IndexName
}

// CreateIndex creates the index if it does not exist yet and reports whether it did.
func (s *IndexingService) CreateIndex(ctx context.Context) (bool, error) {
	exists, err := s.index.Exists(ctx, s.opts.IndexName)
	if err != nil {
		return false, fmt.Errorf("%w: %v", port.ErrIndexCreate, err)
	}
	if exists {
		return false, nil
	}
	s.logger.Info("creating index", "index", s.opts.IndexName, "backend", s.index.Backend(), "dims", s.opts.Dimension)
	if err := s.index.Create(ctx, s.opts.IndexName, s.opts.Dimension); err != nil {
		return false, err
	}
	return true, nil
}

// LoadQuestions reads and parses the question metadata file.
func LoadQuestions(path string) (domain.QuestionSet, error) {
	records, err := source.LoadQuestionFile(path)
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return survey.ParseQuestions(records)
}

// Run executes a full pipeline run and returns its report.
// Row-level failures are logged and skipped; bulk rejections are reported, not returned as errors.
func (s *IndexingService) Run(ctx context.Context) (*domain.IndexReport, error) {
	if !s.running.TryLock() {
		return nil, port.ErrRunInProgress
	}
	defer s.running.Unlock()

	runID := uuid.NewString()
	s.tracker.Start(runID, s.opts.IndexName)
	logger := s.logger.With("run_id", runID, "index", s.opts.IndexName)

	report, err := s.run(ctx, runID, logger)
	if err != nil {
		logger.Error("indexing run failed", "error", err)
		s.tracker.Update(runID, func(st *RunStatus) {
			st.Status = RunError
			st.Error = err.Error()
		})
		return nil, err
	}

	s.tracker.Update(runID, func(st *RunStatus) {
		st.Status = RunComplete
		st.Indexed = report.SuccessCount
		st.Failed = report.FailedCount
	})
	logger.Info("indexing run complete",
		"indexed", report.SuccessCount,
		"failed", report.FailedCount,
		"skipped", len(report.SkippedRows),
	)
	return report, nil
}

func (s *IndexingService) run(ctx context.Context, runID string, logger *slog.Logger) (*domain.IndexReport, error) {
	table, err := source.LoadResponses(s.opts.ResponsesPath)
	if err != nil {
		return nil, fmt.Errorf("load responses: %w", err)
	}

	questions, err := s.loadQuestions(logger)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	logger.Info("inputs loaded", "rows", len(table.Rows), "columns", len(table.Columns), "questions", questions.Len())

	s.tracker.Update(runID, func(st *RunStatus) { st.Total = len(table.Rows) })

	if s.opts.RecreateIndex {
		exists, err := s.index.Exists(ctx, s.opts.IndexName)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", port.ErrIndexCreate, err)
		}
		if exists {
			if err := s.index.Delete(ctx, s.opts.IndexName); err != nil {
				return nil, fmt.Errorf("%w: reset index: %v", port.ErrIndexCreate, err)
			}
			logger.Info("existing index deleted")
		}
	}
	if _, err := s.CreateIndex(ctx); err != nil {
		return nil, err
	}

	builder := survey.NewBuilder(survey.BuilderConfig{
		Variant:            s.opts.Variant,
		SurveyName:         s.opts.SurveyName,
		RespondentIDColumn: s.opts.RespondentIDColumn,
		Dimension:          s.opts.Dimension,
	}, questions, table.Columns, s.embedder, s.summarizer)

	report := &domain.IndexReport{
		RunID:       runID,
		Index:       s.opts.IndexName,
		Failures:    []domain.BulkFailure{},
		SkippedRows: []domain.SkippedRow{},
	}

	docs := make([]domain.SurveyDocument, 0, len(table.Rows))
	firstRow := make(map[string]int, len(table.Rows))
	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// A document id is written once per run; later rows would overwrite it.
		id := builder.DocumentID(row)
		if first, dup := firstRow[id]; dup {
			reason := fmt.Sprintf("duplicate document id %q, first seen at row %d", id, first)
			logger.Warn("row skipped", "row", row.Index, "error", reason)
			report.SkippedRows = append(report.SkippedRows, domain.SkippedRow{Row: row.Index, Reason: reason})
		} else if doc, err := builder.Build(ctx, row); err != nil {
			logger.Warn("row skipped", "row", row.Index, "error", err)
			report.SkippedRows = append(report.SkippedRows, domain.SkippedRow{Row: row.Index, Reason: err.Error()})
		} else {
			firstRow[id] = row.Index
			docs = append(docs, *doc)
		}
		s.tracker.Update(runID, func(st *RunStatus) {
			st.Processed++
			st.Built = len(docs)
			st.Skipped = len(report.SkippedRows)
		})
	}

	if len(docs) == 0 {
		report.Message = "no data to index, or every row failed"
		return report, nil
	}

	result, err := s.index.Bulk(ctx, s.opts.IndexName, docs)
	if err != nil {
		return nil, fmt.Errorf("bulk index: %w", err)
	}
	report.Message = "indexing complete"
	report.SuccessCount = result.Succeeded
	report.FailedCount = len(result.Failures)
	report.Failures = append(report.Failures, result.Failures...)
	return report, nil
}

// loadQuestions tolerates a missing metadata file only for response documents,
// which do not carry QA pairs.
func (s *IndexingService) loadQuestions(logger *slog.Logger) (domain.QuestionSet, error) {
	if s.opts.QuestionsPath == "" {
		return domain.QuestionSet{}, nil
	}
	qs, err := LoadQuestions(s.opts.QuestionsPath)
	if err != nil && errors.Is(err, port.ErrSourceNotFound) && s.opts.Variant == domain.VariantResponse {
		logger.Warn("question metadata not found, answers stay unresolved", "path", s.opts.QuestionsPath)
		return domain.QuestionSet{}, nil
	}
	return qs, err
}
