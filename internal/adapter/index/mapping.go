package index

// Mapping returns the index body for survey documents with vectors of dims.
// qa_pairs is nested so question and answer stay paired in queries.
func Mapping(dims int, analyzer string) map[string]any {
	text := map[string]any{"type": "text"}
	if analyzer != "" {
		text["analyzer"] = analyzer
	}
	vector := map[string]any{"type": "dense_vector", "dims": dims, "index": true, "similarity": "cosine"}

	return map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"response_id":    map[string]any{"type": "keyword"},
				"respondent_id":  map[string]any{"type": "keyword"},
				"survey_name":    map[string]any{"type": "keyword"},
				"submitted_at":   map[string]any{"type": "date"},
				"answers":        map[string]any{"type": "object", "dynamic": true},
				"summary_text":   text,
				"summary_vector": vector,
				"qa_pairs": map[string]any{
					"type": "nested",
					"properties": map[string]any{
						"question_code":    map[string]any{"type": "keyword"},
						"question_text":    text,
						"question_type":    map[string]any{"type": "keyword"},
						"answer_text":      text,
						"embedding_text":   text,
						"embedding_vector": vector,
					},
				},
				"search_assistance": map[string]any{
					"properties": map[string]any{
						"activity_text":   text,
						"activity_vector": vector,
					},
				},
				"respondent_info": map[string]any{"type": "object"},
			},
		},
	}
}
