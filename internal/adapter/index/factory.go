package index

import (
	"fmt"

	"github.com/arturoeanton/go-survey-indexer/internal/port"
	"github.com/arturoeanton/go-survey-indexer/pkg/config"
)

// NewFromConfig opens the index backend selected by cfg.
// The returned close function releases backend resources.
func NewFromConfig(cfg *config.Config) (port.SearchIndex, func() error, error) {
	switch cfg.IndexBackend {
	case config.BackendElasticsearch:
		es, err := NewElasticsearchIndex(ElasticsearchConfig{
			Addresses:  []string{cfg.ElasticsearchURL},
			Username:   cfg.ElasticsearchUsername,
			Password:   cfg.ElasticsearchPassword,
			Analyzer:   cfg.ElasticsearchAnalyzer,
			FlushBytes: cfg.ElasticsearchFlushMB << 20,
		})
		if err != nil {
			return nil, nil, err
		}
		return es, func() error { return nil }, nil
	case config.BackendPostgres:
		pg, err := NewPostgresIndex(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", port.ErrUnknownIndexBackend, cfg.IndexBackend)
	}
}
