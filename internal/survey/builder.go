package survey

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arturoeanton/go-survey-indexer/internal/domain"
	"github.com/arturoeanton/go-survey-indexer/internal/port"
)

// BuilderConfig configures a Builder.
type BuilderConfig struct {
	Variant            domain.DocumentVariant
	SurveyName         string
	RespondentIDColumn string
	Dimension          int
}

// Builder turns response rows into search documents.
// Summarizer may be nil, in which case the summary is composed from the answers.
type Builder struct {
	cfg        BuilderConfig
	questions  domain.QuestionSet
	columns    []domain.Column
	embedder   port.Embedder
	summarizer port.Summarizer
	now        func() time.Time
	logger     *slog.Logger
}

// NewBuilder creates a builder for rows of a table with the given columns.
func NewBuilder(cfg BuilderConfig, questions domain.QuestionSet, columns []domain.Column, embedder port.Embedder, summarizer port.Summarizer) *Builder {
	if cfg.Variant == "" {
		cfg.Variant = domain.VariantRespondent
	}
	return &Builder{
		cfg:        cfg,
		questions:  questions,
		columns:    columns,
		embedder:   embedder,
		summarizer: summarizer,
		now:        time.Now,
		logger:     slog.Default().With("component", "document-builder"),
	}
}

// WithClock overrides the timestamp source.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build creates the document for one row.
func (b *Builder) Build(ctx context.Context, row domain.ResponseRow) (*domain.SurveyDocument, error) {
	if b.cfg.Variant == domain.VariantResponse {
		return b.buildResponse(ctx, row)
	}
	return b.buildRespondent(ctx, row)
}

type answeredColumn struct {
	column domain.Column
	meta   *domain.QuestionMeta
	raw    string
	text   string
}

// answered resolves every non-empty column except the respondent id.
func (b *Builder) answered(row domain.ResponseRow) []answeredColumn {
	out := make([]answeredColumn, 0, len(row.Values))
	for _, col := range b.columns {
		if col.Name == b.cfg.RespondentIDColumn {
			continue
		}
		raw, ok := row.Get(col.Name)
		if !ok {
			continue
		}
		meta := b.lookup(col)
		text, ok := Resolve(meta, raw)
		if !ok {
			continue
		}
		out = append(out, answeredColumn{column: col, meta: meta, raw: raw, text: text})
	}
	return out
}

func (b *Builder) lookup(col domain.Column) *domain.QuestionMeta {
	if q, ok := b.questions.Lookup(col.Raw); ok {
		return &q
	}
	if q, ok := b.questions.Lookup(col.Name); ok {
		return &q
	}
	return nil
}

// DocumentID returns the id Build assigns to the document for row.
func (b *Builder) DocumentID(row domain.ResponseRow) string {
	if b.cfg.Variant == domain.VariantResponse {
		return fmt.Sprintf("resp_%s_%d", b.respondentID(row), row.Index)
	}
	return b.respondentID(row)
}

func (b *Builder) respondentID(row domain.ResponseRow) string {
	if id, ok := row.Get(b.cfg.RespondentIDColumn); ok {
		return id
	}
	return fmt.Sprintf("row_%d", row.Index)
}

func (b *Builder) buildRespondent(ctx context.Context, row domain.ResponseRow) (*domain.SurveyDocument, error) {
	answers := b.answered(row)
	if len(answers) == 0 {
		return nil, fmt.Errorf("row %d: no answers", row.Index)
	}

	doc := &domain.SurveyDocument{
		RespondentID: b.respondentID(row),
		SurveyName:   b.cfg.SurveyName,
		SubmittedAt:  b.now().UTC(),
		Answers:      make(map[string]string, len(answers)),
	}
	doc.ID = doc.RespondentID

	lines := make([]AnswerLine, 0, len(answers))
	var texts []string
	for _, a := range answers {
		doc.Answers[a.column.Name] = a.text
		if a.meta == nil {
			lines = append(lines, AnswerLine{Label: a.column.Raw, Value: a.text})
			continue
		}
		lines = append(lines, AnswerLine{Label: a.meta.Text, Value: a.text})
		qa := domain.QAPair{
			QuestionCode:  a.meta.Code,
			QuestionText:  a.meta.Text,
			QuestionType:  a.meta.Type,
			AnswerText:    a.text,
			EmbeddingText: EmbeddingText(a.meta.Text, a.text),
		}
		doc.QAPairs = append(doc.QAPairs, qa)
		texts = append(texts, qa.EmbeddingText)
	}

	if len(texts) > 0 {
		vectors, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("row %d: embed answers: %w", row.Index, err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("row %d: embed answers: got %d vectors for %d texts", row.Index, len(vectors), len(texts))
		}
		for i := range doc.QAPairs {
			doc.QAPairs[i].EmbeddingVector = vectors[i]
		}
	}

	summary, err := b.summarize(ctx, lines)
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", row.Index, err)
	}
	doc.SummaryText = summary

	vector, err := b.embedder.Embed(ctx, summary)
	if err != nil {
		return nil, fmt.Errorf("row %d: embed summary: %w", row.Index, err)
	}
	doc.SummaryVector = vector

	if err := b.checkDimensions(doc); err != nil {
		return nil, fmt.Errorf("row %d: %w", row.Index, err)
	}
	b.logger.Debug("document built", "row", row.Index, "id", doc.ID, "qa_pairs", len(doc.QAPairs))
	return doc, nil
}

func (b *Builder) buildResponse(ctx context.Context, row domain.ResponseRow) (*domain.SurveyDocument, error) {
	answers := b.answered(row)
	if len(answers) == 0 {
		return nil, fmt.Errorf("row %d: no answers", row.Index)
	}

	id := b.respondentID(row)
	doc := &domain.SurveyDocument{
		ResponseID:   b.DocumentID(row),
		RespondentID: id,
		SurveyName:   b.cfg.SurveyName,
		SubmittedAt:  b.now().UTC(),
		Answers:      make(map[string]string, len(row.Values)),
	}
	doc.ID = doc.ResponseID
	for k, v := range row.Values {
		doc.Answers[k] = v
	}

	lines := make([]AnswerLine, 0, len(answers))
	for _, a := range answers {
		lines = append(lines, AnswerLine{Label: a.column.Name, Value: a.text})
	}

	summary, err := b.summarize(ctx, lines)
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", row.Index, err)
	}
	vector, err := b.embedder.Embed(ctx, summary)
	if err != nil {
		return nil, fmt.Errorf("row %d: embed summary: %w", row.Index, err)
	}
	doc.SearchAssistance = &domain.SearchAssistance{ActivityText: summary, ActivityVector: vector}

	if err := b.checkDimensions(doc); err != nil {
		return nil, fmt.Errorf("row %d: %w", row.Index, err)
	}
	b.logger.Debug("document built", "row", row.Index, "id", doc.ID, "answers", len(doc.Answers))
	return doc, nil
}

func (b *Builder) summarize(ctx context.Context, lines []AnswerLine) (string, error) {
	if b.summarizer == nil {
		return ComposeSummary(lines), nil
	}
	summary, err := b.summarizer.Summarize(ctx, BuildPrompt(lines))
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", port.ErrEmptySummary
	}
	return summary, nil
}

// checkDimensions enforces that every vector matches the index dimension.
func (b *Builder) checkDimensions(doc *domain.SurveyDocument) error {
	if b.cfg.Dimension <= 0 {
		return nil
	}
	for _, v := range doc.Vectors() {
		if len(v) != b.cfg.Dimension {
			return fmt.Errorf("%w: got %d, index expects %d", port.ErrDimensionMismatch, len(v), b.cfg.Dimension)
		}
	}
	return nil
}
