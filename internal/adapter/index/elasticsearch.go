package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/arturoeanton/go-survey-indexer/internal/domain"
	"github.com/arturoeanton/go-survey-indexer/internal/port"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"
)

// ElasticsearchConfig configures the Elasticsearch backend.
type ElasticsearchConfig struct {
	Addresses []string
	Username  string
	Password  string
	Analyzer  string // text analyzer for free-text fields, e.g. "nori"; empty = standard
	Transport http.RoundTripper

	// FlushBytes caps the payload of one _bulk request. Zero means 5MB.
	FlushBytes int
}

const defaultFlushBytes = 5_000_000

// ElasticsearchIndex implements port.SearchIndex on an Elasticsearch cluster.
type ElasticsearchIndex struct {
	es         *elasticsearch.Client
	analyzer   string
	flushBytes int
	logger     *slog.Logger
}

// NewElasticsearchIndex creates a client for the configured cluster.
func NewElasticsearchIndex(cfg ElasticsearchConfig) (*ElasticsearchIndex, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	flushBytes := cfg.FlushBytes
	if flushBytes <= 0 {
		flushBytes = defaultFlushBytes
	}
	return &ElasticsearchIndex{
		es:         es,
		analyzer:   cfg.Analyzer,
		flushBytes: flushBytes,
		logger:     slog.Default().With("component", "elasticsearch-index"),
	}, nil
}

// Backend returns "elasticsearch".
func (e *ElasticsearchIndex) Backend() string { return "elasticsearch" }

// Exists reports whether the index exists.
func (e *ElasticsearchIndex) Exists(ctx context.Context, name string) (bool, error) {
	res, err := e.es.Indices.Exists([]string{name}, e.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("index exists: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("index exists: %s", responseError(res))
	}
}

// Create creates the index with nested QA pairs and dense_vector fields.
func (e *ElasticsearchIndex) Create(ctx context.Context, name string, dims int) error {
	body, err := json.Marshal(Mapping(dims, e.analyzer))
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	res, err := e.es.Indices.Create(name,
		e.es.Indices.Create.WithBody(bytes.NewReader(body)),
		e.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", port.ErrIndexCreate, name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: %s: %s", port.ErrIndexCreate, name, responseError(res))
	}
	e.logger.Info("index created", "index", name, "dims", dims)
	return nil
}

// Delete drops the index if it exists.
func (e *ElasticsearchIndex) Delete(ctx context.Context, name string) error {
	res, err := e.es.Indices.Delete([]string{name}, e.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete index %s: %s", name, responseError(res))
	}
	e.logger.Info("index deleted", "index", name)
	return nil
}

// Bulk indexes docs keyed by document id, flushing a request whenever the
// buffered payload reaches the configured byte threshold. Documents the
// cluster never acknowledged are reported as failures; an error is returned
// only when no document could be settled at all.
func (e *ElasticsearchIndex) Bulk(ctx context.Context, name string, docs []domain.SurveyDocument) (*domain.BulkResult, error) {
	result := &domain.BulkResult{Failures: []domain.BulkFailure{}}
	if len(docs) == 0 {
		return result, nil
	}

	var (
		mu       sync.Mutex
		settled  = make([]bool, len(docs))
		flushErr error
	)
	fail := func(i int, reason string) {
		mu.Lock()
		defer mu.Unlock()
		settled[i] = true
		result.Failures = append(result.Failures, domain.BulkFailure{DocumentID: docs[i].ID, Reason: reason})
	}

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:     e.es,
		Index:      name,
		NumWorkers: 1,
		FlushBytes: e.flushBytes,
		Refresh:    "true",
		OnError: func(_ context.Context, err error) {
			e.logger.Error("bulk flush failed", "index", name, "error", err)
			mu.Lock()
			flushErr = err
			mu.Unlock()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("bulk indexer: %w", err)
	}

	for i := range docs {
		body, err := json.Marshal(&docs[i])
		if err != nil {
			fail(i, fmt.Sprintf("encode document: %v", err))
			continue
		}
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: docs[i].ID,
			Body:       bytes.NewReader(body),
			OnSuccess: func(context.Context, esutil.BulkIndexerItem, esutil.BulkIndexerResponseItem) {
				mu.Lock()
				defer mu.Unlock()
				settled[i] = true
				result.Succeeded++
			},
			OnFailure: func(_ context.Context, _ esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				fail(i, failureReason(res, err))
			},
		})
		if err != nil {
			_ = bi.Close(context.Background())
			return nil, fmt.Errorf("bulk add %s: %w", docs[i].ID, err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return nil, fmt.Errorf("bulk close: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if result.Succeeded == 0 && len(result.Failures) == 0 && flushErr != nil {
		return nil, fmt.Errorf("bulk: %w", flushErr)
	}
	for i := range docs {
		if settled[i] {
			continue
		}
		reason := "not acknowledged by the cluster"
		if flushErr != nil {
			reason = flushErr.Error()
		}
		result.Failures = append(result.Failures, domain.BulkFailure{DocumentID: docs[i].ID, Reason: reason})
	}

	stats := bi.Stats()
	e.logger.Info("bulk complete",
		"index", name,
		"succeeded", result.Succeeded,
		"failed", len(result.Failures),
		"requests", stats.NumRequests,
	)
	return result, nil
}

func failureReason(res esutil.BulkIndexerResponseItem, err error) string {
	switch {
	case err != nil:
		return err.Error()
	case res.Error.Reason != "":
		return res.Error.Reason
	case res.Error.Type != "":
		return res.Error.Type
	default:
		return fmt.Sprintf("status %d", res.Status)
	}
}

// responseError extracts the error reason from an Elasticsearch error response.
func responseError(res *esapi.Response) string {
	raw, _ := io.ReadAll(res.Body)
	var e struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &e); err == nil && e.Error.Reason != "" {
		return fmt.Sprintf("[%d] %s: %s", res.StatusCode, e.Error.Type, e.Error.Reason)
	}
	return fmt.Sprintf("[%d] %s", res.StatusCode, string(raw))
}
