package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arturoeanton/go-survey-indexer/internal/domain"
	"github.com/arturoeanton/go-survey-indexer/internal/port"
	"github.com/arturoeanton/go-survey-indexer/internal/service"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndexer struct {
	report    *domain.IndexReport
	runErr    error
	created   bool
	createErr error
}

func (f *fakeIndexer) IndexName() string { return "survey" }

func (f *fakeIndexer) CreateIndex(ctx context.Context) (bool, error) {
	return f.created, f.createErr
}

func (f *fakeIndexer) Run(ctx context.Context) (*domain.IndexReport, error) {
	return f.report, f.runErr
}

func newApp(idx Indexer, tracker *service.RunTracker) *fiber.App {
	app := fiber.New()
	NewIndexHandler(idx, "Survey Indexer").Register(app)
	NewRunsHandler(tracker).Register(app)
	return app
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRootAndHealth(t *testing.T) {
	app := newApp(&fakeIndexer{}, service.NewRunTracker())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Survey Indexer is running", decode(t, resp)["message"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	body := decode(t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "survey", body["index"])
}

func TestIndexSurveyData(t *testing.T) {
	report := &domain.IndexReport{
		RunID:        "run-1",
		Message:      "indexing complete",
		Index:        "survey",
		SuccessCount: 2,
		FailedCount:  1,
		Failures:     []domain.BulkFailure{{DocumentID: "u3", Reason: "bad vector"}},
		SkippedRows:  []domain.SkippedRow{},
	}
	app := newApp(&fakeIndexer{report: report}, service.NewRunTracker())

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/index-survey-data", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "indexing complete", body["message"])
	assert.EqualValues(t, 2, body["success_count"])
	assert.EqualValues(t, 1, body["failed_count"])
}

func TestIndexSurveyDataErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"missing file", fmt.Errorf("load responses: %w", port.ErrSourceNotFound), http.StatusNotFound},
		{"run in progress", port.ErrRunInProgress, http.StatusConflict},
		{"bad metadata", fmt.Errorf("%w: no code column", port.ErrMalformedMetadata), http.StatusUnprocessableEntity},
		{"index failure", errors.New("bulk index: connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp(&fakeIndexer{runErr: tt.err}, service.NewRunTracker())
			resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/index-survey-data", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.err.Error(), decode(t, resp)["error"])
		})
	}
}

func TestCreateIndexStatuses(t *testing.T) {
	app := newApp(&fakeIndexer{created: true}, service.NewRunTracker())
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/indices", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	app = newApp(&fakeIndexer{created: false}, service.NewRunTracker())
	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/indices", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decode(t, resp)["created"])

	app = newApp(&fakeIndexer{createErr: fmt.Errorf("%w: unknown analyzer", port.ErrIndexCreate)}, service.NewRunTracker())
	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/indices", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestRunStatus(t *testing.T) {
	tracker := service.NewRunTracker()
	tracker.Start("run-1", "survey")
	tracker.Update("run-1", func(s *service.RunStatus) { s.Total = 10; s.Processed = 4 })
	app := newApp(&fakeIndexer{}, tracker)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/runs/run-1", nil))
	require.NoError(t, err)
	body := decode(t, resp)
	assert.Equal(t, service.RunRunning, body["status"])
	assert.EqualValues(t, 4, body["processed"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/runs/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, port.ErrRunNotFound.Error(), decode(t, resp)["error"])
}

func TestCurrentRun(t *testing.T) {
	tracker := service.NewRunTracker()
	app := newApp(&fakeIndexer{}, tracker)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/runs/current", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	tracker.Start("run-1", "survey")
	tracker.Start("run-2", "survey")
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/runs/current", nil))
	require.NoError(t, err)
	assert.Equal(t, "run-2", decode(t, resp)["id"])
}

func TestStreamFinishedRun(t *testing.T) {
	tracker := service.NewRunTracker()
	tracker.Start("run-1", "survey")
	tracker.Update("run-1", func(s *service.RunStatus) { s.Status = service.RunComplete })
	app := newApp(&fakeIndexer{}, tracker)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/runs/run-1/stream", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "event: complete\ndata: "))
}

func TestStreamRunningRun(t *testing.T) {
	tracker := service.NewRunTracker()
	tracker.Start("run-1", "survey")
	app := newApp(&fakeIndexer{}, tracker)

	go func() {
		time.Sleep(50 * time.Millisecond)
		tracker.Update("run-1", func(s *service.RunStatus) { s.Processed = 1 })
		tracker.Update("run-1", func(s *service.RunStatus) { s.Status = service.RunComplete })
	}()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/runs/run-1/stream", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	events := strings.Count(string(raw), "event: progress")
	assert.GreaterOrEqual(t, events, 2)
	assert.Contains(t, string(raw), "event: complete")
}

// sliceIndex is an in-memory port.SearchIndex.
type sliceIndex struct {
	mu   sync.Mutex
	docs []domain.SurveyDocument
}

func (s *sliceIndex) Backend() string { return "memory" }

func (s *sliceIndex) Exists(ctx context.Context, name string) (bool, error) { return false, nil }

func (s *sliceIndex) Create(ctx context.Context, name string, dims int) error { return nil }

func (s *sliceIndex) Delete(ctx context.Context, name string) error { return nil }

func (s *sliceIndex) Bulk(ctx context.Context, name string, docs []domain.SurveyDocument) (*domain.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, docs...)
	return &domain.BulkResult{Succeeded: len(docs), Failures: []domain.BulkFailure{}}, nil
}

// gatedEmbedder blocks every call until release is closed.
type gatedEmbedder struct {
	release chan struct{}
}

func (g *gatedEmbedder) ModelName() string { return "gated" }

func (g *gatedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-g.release:
		return []float32{0, 0}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := g.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func TestFollowRunInProgress(t *testing.T) {
	dir := t.TempDir()
	rp := filepath.Join(dir, "responses.csv")
	require.NoError(t, os.WriteFile(rp, []byte("mb_sn,Q1\nu1,yes\nu2,no\n"), 0o644))

	tracker := service.NewRunTracker()
	emb := &gatedEmbedder{release: make(chan struct{})}
	svc := service.NewIndexingService(&sliceIndex{}, emb, nil, service.Options{
		ResponsesPath:      rp,
		IndexName:          "survey",
		Variant:            domain.VariantResponse,
		RespondentIDColumn: "mb_sn",
		Dimension:          2,
	}, tracker)
	app := newApp(svc, tracker)

	done := make(chan *domain.IndexReport, 1)
	go func() {
		report, err := svc.Run(context.Background())
		assert.NoError(t, err)
		done <- report
	}()

	var runID string
	require.Eventually(t, func() bool {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/runs/current", nil))
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		defer resp.Body.Close()
		var run service.RunStatus
		if json.NewDecoder(resp.Body).Decode(&run) != nil {
			return false
		}
		runID = run.ID
		return run.Status == service.RunRunning
	}, time.Second, 10*time.Millisecond)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(emb.release)
	}()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/runs/"+runID+"/stream", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "event: progress\n"), "stream opens while the run is in progress")
	assert.Contains(t, string(raw), "event: complete")

	report := <-done
	assert.Equal(t, runID, report.RunID)
	assert.Equal(t, 2, report.SuccessCount)
}
