package domain

import "time"

// DocumentVariant selects the document shape written to the index.
type DocumentVariant string

// DocumentVariant constants.
const (
	// VariantRespondent builds one document per respondent with nested QA pairs.
	VariantRespondent DocumentVariant = "respondent"
	// VariantResponse builds one denormalised document per response row.
	VariantResponse DocumentVariant = "response"
)

// QAPair is one answered question inside a SurveyDocument.
type QAPair struct {
	QuestionCode    string       `json:"question_code"`
	QuestionText    string       `json:"question_text"`
	QuestionType    QuestionType `json:"question_type"`
	AnswerText      string       `json:"answer_text"`
	EmbeddingText   string       `json:"embedding_text"`
	EmbeddingVector []float32    `json:"embedding_vector"`
}

// SearchAssistance carries the summary text and its vector.
type SearchAssistance struct {
	ActivityText   string    `json:"activity_text"`
	ActivityVector []float32 `json:"activity_vector"`
}

// SurveyDocument is written once to the index and never mutated afterwards.
type SurveyDocument struct {
	ID               string            `json:"-"`
	ResponseID       string            `json:"response_id,omitempty"`
	RespondentID     string            `json:"respondent_id"`
	SurveyName       string            `json:"survey_name"`
	SubmittedAt      time.Time         `json:"submitted_at"`
	QAPairs          []QAPair          `json:"qa_pairs,omitempty"`
	Answers          map[string]string `json:"answers"`
	SummaryText      string            `json:"summary_text,omitempty"`
	SummaryVector    []float32         `json:"summary_vector,omitempty"`
	SearchAssistance *SearchAssistance `json:"search_assistance,omitempty"`
	RespondentInfo   map[string]any    `json:"respondent_info"`
}

// Vectors returns every vector carried by the document.
func (d *SurveyDocument) Vectors() [][]float32 {
	var out [][]float32
	if d.SummaryVector != nil {
		out = append(out, d.SummaryVector)
	}
	if d.SearchAssistance != nil {
		out = append(out, d.SearchAssistance.ActivityVector)
	}
	for _, qa := range d.QAPairs {
		out = append(out, qa.EmbeddingVector)
	}
	return out
}
