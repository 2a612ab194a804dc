package domain

// BulkFailure describes a document the index rejected.
type BulkFailure struct {
	DocumentID string `json:"document_id"`
	Reason     string `json:"reason"`
}

// BulkResult is the outcome of a bulk upsert.
type BulkResult struct {
	Succeeded int           `json:"success_count"`
	Failures  []BulkFailure `json:"failures"`
}

// SkippedRow records a response row that could not be turned into a document.
type SkippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// IndexReport is returned by a pipeline run.
type IndexReport struct {
	RunID        string        `json:"run_id"`
	Message      string        `json:"message"`
	Index        string        `json:"index"`
	SuccessCount int           `json:"success_count"`
	FailedCount  int           `json:"failed_count"`
	Failures     []BulkFailure `json:"failures"`
	SkippedRows  []SkippedRow  `json:"skipped_rows"`
}
