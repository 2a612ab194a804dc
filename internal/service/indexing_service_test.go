package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/arturoeanton/go-survey-indexer/internal/domain"
	"github.com/arturoeanton/go-survey-indexer/internal/port"
	"github.com/arturoeanton/go-survey-indexer/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryIndex implements port.SearchIndex in memory.
type memoryIndex struct {
	indices   map[string][]domain.SurveyDocument
	reject    map[string]string
	createErr error
	bulkErr   error
	deletes   int
	bulkCalls int
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{indices: make(map[string][]domain.SurveyDocument), reject: make(map[string]string)}
}

func (m *memoryIndex) Backend() string { return "memory" }

func (m *memoryIndex) Exists(ctx context.Context, name string) (bool, error) {
	_, ok := m.indices[name]
	return ok, nil
}

func (m *memoryIndex) Create(ctx context.Context, name string, dims int) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.indices[name] = nil
	return nil
}

func (m *memoryIndex) Delete(ctx context.Context, name string) error {
	m.deletes++
	delete(m.indices, name)
	return nil
}

func (m *memoryIndex) Bulk(ctx context.Context, name string, docs []domain.SurveyDocument) (*domain.BulkResult, error) {
	m.bulkCalls++
	if m.bulkErr != nil {
		return nil, m.bulkErr
	}
	res := &domain.BulkResult{Failures: []domain.BulkFailure{}}
	for _, d := range docs {
		if reason, ok := m.reject[d.ID]; ok {
			res.Failures = append(res.Failures, domain.BulkFailure{DocumentID: d.ID, Reason: reason})
			continue
		}
		m.indices[name] = append(m.indices[name], d)
		res.Succeeded++
	}
	return res, nil
}

// fixedEmbedder returns zero vectors of dims, failing for listed texts.
type fixedEmbedder struct {
	dims   int
	failOn map[string]bool
}

func (e *fixedEmbedder) ModelName() string { return "fixed" }

func (e *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.failOn[text] {
		return nil, errors.New("embedding service unavailable")
	}
	return make([]float32, e.dims), nil
}

func (e *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

const responsesCSV = "\xEF\xBB\xBFmb_sn,Q1,Q2\n" +
	"u1,1,1;2\n" +
	"u2,2,\n" +
	"u3,,\n"

const questionsCSV = "code,text,type,options\n" +
	"Q1,Gender,SINGLE,1=Male|2=Female\n" +
	"Q2,Hobbies,MULTI,1=Reading|2=Sports\n"

func writeInputs(t *testing.T, responses, questions string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	rp := filepath.Join(dir, "responses.csv")
	qp := filepath.Join(dir, "questions.csv")
	require.NoError(t, os.WriteFile(rp, []byte(responses), 0o644))
	if questions != "" {
		require.NoError(t, os.WriteFile(qp, []byte(questions), 0o644))
	}
	return rp, qp
}

func testOptions(rp, qp string) Options {
	return Options{
		ResponsesPath:      rp,
		QuestionsPath:      qp,
		IndexName:          "survey",
		SurveyName:         "s1",
		Variant:            domain.VariantRespondent,
		RespondentIDColumn: "mb_sn",
		Dimension:          3,
		RecreateIndex:      true,
	}
}

func TestRunIndexesRowsAndSkipsEmptyOnes(t *testing.T) {
	rp, qp := writeInputs(t, responsesCSV, questionsCSV)
	idx := newMemoryIndex()
	svc := NewIndexingService(idx, &fixedEmbedder{dims: 3}, nil, testOptions(rp, qp), nil)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "indexing complete", report.Message)
	assert.Equal(t, 2, report.SuccessCount)
	assert.Zero(t, report.FailedCount)
	require.Len(t, report.SkippedRows, 1)
	assert.Equal(t, 2, report.SkippedRows[0].Row)

	docs := idx.indices["survey"]
	require.Len(t, docs, 2)
	assert.Equal(t, "u1", docs[0].ID)
	assert.Equal(t, "Reading, Sports", docs[0].Answers["Q2"])
	assert.Len(t, docs[0].QAPairs, 2)
	assert.Equal(t, "Gender: Female", docs[1].SummaryText)

	run, ok := svc.Tracker().Get(report.RunID)
	require.True(t, ok)
	assert.Equal(t, RunComplete, run.Status)
	assert.Equal(t, 3, run.Total)
	assert.Equal(t, 3, run.Processed)
	assert.Equal(t, 2, run.Indexed)
	assert.False(t, run.CompletedAt.IsZero())
}

func TestRunSkipsDuplicateRespondents(t *testing.T) {
	rp, qp := writeInputs(t, "mb_sn,Q1\nu1,1\nu2,2\nu1,2\n", questionsCSV)
	idx := newMemoryIndex()
	svc := NewIndexingService(idx, &fixedEmbedder{dims: 3}, nil, testOptions(rp, qp), nil)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.SuccessCount)
	require.Len(t, report.SkippedRows, 1)
	assert.Equal(t, 2, report.SkippedRows[0].Row)
	assert.Contains(t, report.SkippedRows[0].Reason, `duplicate document id "u1"`)

	docs := idx.indices["survey"]
	require.Len(t, docs, 2)
	assert.Equal(t, "Gender: Male", docs[0].SummaryText, "the first row for a respondent wins")
}

func TestRunKeepsRepeatedRespondentsInResponseVariant(t *testing.T) {
	rp, qp := writeInputs(t, "mb_sn,Q1\nu1,1\nu1,2\n", questionsCSV)
	opts := testOptions(rp, qp)
	opts.Variant = domain.VariantResponse
	idx := newMemoryIndex()
	svc := NewIndexingService(idx, &fixedEmbedder{dims: 3}, nil, opts, nil)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.SuccessCount)
	assert.Empty(t, report.SkippedRows)
	assert.Equal(t, "resp_u1_0", idx.indices["survey"][0].ID)
	assert.Equal(t, "resp_u1_1", idx.indices["survey"][1].ID)
}

func TestRunRecreatesExistingIndex(t *testing.T) {
	rp, qp := writeInputs(t, responsesCSV, questionsCSV)
	idx := newMemoryIndex()
	idx.indices["survey"] = []domain.SurveyDocument{{ID: "stale"}}
	svc := NewIndexingService(idx, &fixedEmbedder{dims: 3}, nil, testOptions(rp, qp), nil)

	_, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, idx.deletes)
	for _, d := range idx.indices["survey"] {
		assert.NotEqual(t, "stale", d.ID)
	}
}

func TestRunKeepsIndexWhenNotRecreating(t *testing.T) {
	rp, qp := writeInputs(t, responsesCSV, questionsCSV)
	idx := newMemoryIndex()
	idx.indices["survey"] = []domain.SurveyDocument{{ID: "kept"}}
	opts := testOptions(rp, qp)
	opts.RecreateIndex = false
	svc := NewIndexingService(idx, &fixedEmbedder{dims: 3}, nil, opts, nil)

	_, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, idx.deletes)
	assert.Len(t, idx.indices["survey"], 3)
}

func TestRunReportsBulkFailures(t *testing.T) {
	rp, qp := writeInputs(t, responsesCSV, questionsCSV)
	idx := newMemoryIndex()
	idx.reject["u2"] = "mapper_parsing_exception"
	svc := NewIndexingService(idx, &fixedEmbedder{dims: 3}, nil, testOptions(rp, qp), nil)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, 1, report.FailedCount)
	assert.Equal(t, []domain.BulkFailure{{DocumentID: "u2", Reason: "mapper_parsing_exception"}}, report.Failures)
}

func TestRunSkipsRowsWhoseEmbeddingFails(t *testing.T) {
	rp, qp := writeInputs(t, responsesCSV, questionsCSV)
	idx := newMemoryIndex()
	emb := &fixedEmbedder{dims: 3, failOn: map[string]bool{"Q: Gender\nA: Female": true}}
	svc := NewIndexingService(idx, emb, nil, testOptions(rp, qp), nil)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.SuccessCount)
	assert.Len(t, report.SkippedRows, 2)
	assert.Contains(t, report.SkippedRows[0].Reason, "embedding service unavailable")
}

func TestRunWithNothingToIndex(t *testing.T) {
	rp, qp := writeInputs(t, "mb_sn,Q1\nu1,\n", questionsCSV)
	idx := newMemoryIndex()
	svc := NewIndexingService(idx, &fixedEmbedder{dims: 3}, nil, testOptions(rp, qp), nil)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "no data to index, or every row failed", report.Message)
	assert.Zero(t, idx.bulkCalls)
}

func TestRunMissingResponses(t *testing.T) {
	_, qp := writeInputs(t, responsesCSV, questionsCSV)
	idx := newMemoryIndex()
	idx.indices["survey"] = nil
	svc := NewIndexingService(idx, &fixedEmbedder{dims: 3}, nil, testOptions(filepath.Join(t.TempDir(), "missing.csv"), qp), nil)

	_, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrSourceNotFound)
	assert.Zero(t, idx.deletes, "inputs are loaded before the index is touched")
}

func TestRunMissingQuestions(t *testing.T) {
	rp, _ := writeInputs(t, responsesCSV, "")
	missing := filepath.Join(t.TempDir(), "missing.csv")

	svc := NewIndexingService(newMemoryIndex(), &fixedEmbedder{dims: 3}, nil, testOptions(rp, missing), nil)
	_, err := svc.Run(context.Background())
	assert.ErrorIs(t, err, port.ErrSourceNotFound)

	opts := testOptions(rp, missing)
	opts.Variant = domain.VariantResponse
	svc = NewIndexingService(newMemoryIndex(), &fixedEmbedder{dims: 3}, nil, opts, nil)
	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.SuccessCount)
}

func TestRunIndexCreationFailure(t *testing.T) {
	rp, qp := writeInputs(t, responsesCSV, questionsCSV)
	idx := newMemoryIndex()
	idx.createErr = errors.New("cluster unavailable")
	svc := NewIndexingService(idx, &fixedEmbedder{dims: 3}, nil, testOptions(rp, qp), nil)

	_, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cluster unavailable")
}

func TestRunBulkRequestFailure(t *testing.T) {
	rp, qp := writeInputs(t, responsesCSV, questionsCSV)
	idx := newMemoryIndex()
	idx.bulkErr = errors.New("connection reset")
	tracker := NewRunTracker()
	svc := NewIndexingService(idx, &fixedEmbedder{dims: 3}, nil, testOptions(rp, qp), tracker)

	ch := make(chan error, 1)
	go func() {
		_, err := svc.Run(context.Background())
		ch <- err
	}()
	err := <-ch
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	svc := NewIndexingService(newMemoryIndex(), &fixedEmbedder{dims: 3}, nil, Options{}, nil)
	svc.running.Lock()
	defer svc.running.Unlock()

	_, err := svc.Run(context.Background())
	assert.ErrorIs(t, err, port.ErrRunInProgress)
}

func TestRunCancelled(t *testing.T) {
	rp, qp := writeInputs(t, responsesCSV, questionsCSV)
	svc := NewIndexingService(newMemoryIndex(), &fixedEmbedder{dims: 3}, nil, testOptions(rp, qp), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCreateIndex(t *testing.T) {
	idx := newMemoryIndex()
	svc := NewIndexingService(idx, &fixedEmbedder{dims: 3}, nil, Options{IndexName: "survey", Dimension: 3}, nil)

	created, err := svc.CreateIndex(context.Background())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.CreateIndex(context.Background())
	require.NoError(t, err)
	assert.False(t, created)
}

func TestLoadQuestions(t *testing.T) {
	_, qp := writeInputs(t, responsesCSV, questionsCSV)
	qs, err := LoadQuestions(qp)
	require.NoError(t, err)
	assert.Equal(t, 2, qs.Len())
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(&config.Config{
		ResponsesCSVPath:   "r.csv",
		QuestionsCSVPath:   "q.csv",
		IndexName:          "idx",
		DocumentVariant:    "response",
		RespondentIDColumn: "mb_sn",
		EmbeddingDimension: 768,
		RecreateIndex:      true,
	})
	assert.Equal(t, domain.VariantResponse, opts.Variant)
	assert.Equal(t, "r.csv", opts.ResponsesPath)
	assert.Equal(t, 768, opts.Dimension)
	assert.True(t, opts.RecreateIndex)
}
