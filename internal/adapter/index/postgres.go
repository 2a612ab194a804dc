package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/arturoeanton/go-survey-indexer/internal/domain"
	"github.com/arturoeanton/go-survey-indexer/internal/port"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PostgresIndex implements port.SearchIndex on PostgreSQL with pgvector.
// Each index is a documents table plus a "<name>_qa_pairs" child table.
type PostgresIndex struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresIndex opens a connection and returns an index backend.
func NewPostgresIndex(databaseURL string) (*PostgresIndex, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresIndex{db: db, logger: slog.Default().With("component", "postgres-index")}, nil
}

// Close closes the database connection.
func (p *PostgresIndex) Close() error {
	return p.db.Close()
}

// Backend returns "postgres".
func (p *PostgresIndex) Backend() string { return "postgres" }

// Exists reports whether the documents table exists in the current schema.
func (p *PostgresIndex) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1)`,
		name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("index exists: %w", err)
	}
	return exists, nil
}

// Create creates both tables with vector columns of dims.
func (p *PostgresIndex) Create(ctx context.Context, name string, dims int) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", port.ErrIndexCreate, err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements(name, dims) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %s: %v", port.ErrIndexCreate, name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", port.ErrIndexCreate, err)
	}
	p.logger.Info("index created", "index", name, "dims", dims)
	return nil
}

// Delete drops both tables.
func (p *PostgresIndex) Delete(ctx context.Context, name string) error {
	docs, qa := tableNames(name)
	if _, err := p.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s, %s`, qa, docs)); err != nil {
		return fmt.Errorf("delete index %s: %w", name, err)
	}
	p.logger.Info("index deleted", "index", name)
	return nil
}

// Bulk upserts each document in its own transaction; a failing document
// is reported and the remaining ones are still written.
func (p *PostgresIndex) Bulk(ctx context.Context, name string, docs []domain.SurveyDocument) (*domain.BulkResult, error) {
	result := &domain.BulkResult{Failures: []domain.BulkFailure{}}
	for i := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := p.upsert(ctx, name, &docs[i]); err != nil {
			p.logger.Warn("document rejected", "index", name, "document_id", docs[i].ID, "error", err)
			result.Failures = append(result.Failures, domain.BulkFailure{DocumentID: docs[i].ID, Reason: err.Error()})
			continue
		}
		result.Succeeded++
	}
	p.logger.Info("bulk complete", "index", name, "succeeded", result.Succeeded, "failed", len(result.Failures))
	return result, nil
}

func (p *PostgresIndex) upsert(ctx context.Context, name string, doc *domain.SurveyDocument) error {
	docsTable, qaTable := tableNames(name)

	answers, err := json.Marshal(doc.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	full, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	summaryText, summaryVec := summaryOf(doc)
	query := fmt.Sprintf(`
		INSERT INTO %s (id, response_id, respondent_id, survey_name, submitted_at, answers, summary_text, summary_vector, document)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			response_id = EXCLUDED.response_id,
			respondent_id = EXCLUDED.respondent_id,
			survey_name = EXCLUDED.survey_name,
			submitted_at = EXCLUDED.submitted_at,
			answers = EXCLUDED.answers,
			summary_text = EXCLUDED.summary_text,
			summary_vector = EXCLUDED.summary_vector,
			document = EXCLUDED.document`, docsTable)

	if _, err := tx.ExecContext(ctx, query,
		doc.ID, nullString(doc.ResponseID), doc.RespondentID, doc.SurveyName, doc.SubmittedAt,
		string(answers), summaryText, vectorValue(summaryVec), string(full),
	); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE doc_id = $1`, qaTable), doc.ID); err != nil {
		return fmt.Errorf("clear qa pairs: %w", err)
	}

	if len(doc.QAPairs) > 0 {
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
			`INSERT INTO %s (doc_id, position, question_code, question_text, question_type, answer_text, embedding_text, embedding_vector)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, qaTable))
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for i, qa := range doc.QAPairs {
			if _, err := stmt.ExecContext(ctx,
				doc.ID, i, qa.QuestionCode, qa.QuestionText, string(qa.QuestionType),
				qa.AnswerText, qa.EmbeddingText, vectorValue(qa.EmbeddingVector),
			); err != nil {
				return fmt.Errorf("insert qa pair %s: %w", qa.QuestionCode, err)
			}
		}
	}

	return tx.Commit()
}

// tableNames returns the quoted documents and QA tables for an index.
func tableNames(name string) (docs, qa string) {
	return pq.QuoteIdentifier(name), pq.QuoteIdentifier(name + "_qa_pairs")
}

func schemaStatements(name string, dims int) []string {
	docs, qa := tableNames(name)
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id             TEXT PRIMARY KEY,
			response_id    TEXT,
			respondent_id  TEXT NOT NULL,
			survey_name    TEXT NOT NULL,
			submitted_at   TIMESTAMPTZ NOT NULL,
			answers        JSONB NOT NULL DEFAULT '{}'::jsonb,
			summary_text   TEXT,
			summary_vector vector(%d),
			document       JSONB NOT NULL
		)`, docs, dims),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			doc_id           TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			position         INT NOT NULL,
			question_code    TEXT NOT NULL,
			question_text    TEXT NOT NULL,
			question_type    TEXT NOT NULL,
			answer_text      TEXT NOT NULL,
			embedding_text   TEXT NOT NULL,
			embedding_vector vector(%d),
			PRIMARY KEY (doc_id, position)
		)`, qa, docs, dims),
	}
}

// summaryOf returns the summary carried by either document variant.
func summaryOf(doc *domain.SurveyDocument) (string, []float32) {
	if doc.SearchAssistance != nil {
		return doc.SearchAssistance.ActivityText, doc.SearchAssistance.ActivityVector
	}
	return doc.SummaryText, doc.SummaryVector
}

func vectorValue(v []float32) any {
	if v == nil {
		return nil
	}
	return pgvector.NewVector(v)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
