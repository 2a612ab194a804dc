package domain

// QuestionType classifies how a stored answer is encoded.
type QuestionType string

// QuestionType constants.
const (
	QuestionSingle QuestionType = "SINGLE"
	QuestionMulti  QuestionType = "MULTI"
	QuestionOther  QuestionType = "OTHER"
)

// QuestionMeta describes one survey question and its answer options.
type QuestionMeta struct {
	Code    string            `json:"code"`
	Text    string            `json:"text"`
	Type    QuestionType      `json:"type"`
	Options map[string]string `json:"options,omitempty"` // option code -> option text
}

// QuestionSet is the parsed question metadata keyed by question code.
// It is built once per run and only read afterwards.
type QuestionSet struct {
	byCode map[string]QuestionMeta
	order  []string
}

// NewQuestionSet builds a set from questions, keeping their order.
// Later duplicates are ignored.
func NewQuestionSet(questions []QuestionMeta) QuestionSet {
	qs := QuestionSet{byCode: make(map[string]QuestionMeta, len(questions))}
	for _, q := range questions {
		if _, ok := qs.byCode[q.Code]; ok {
			continue
		}
		qs.byCode[q.Code] = q
		qs.order = append(qs.order, q.Code)
	}
	return qs
}

// Lookup returns the question for code.
func (qs QuestionSet) Lookup(code string) (QuestionMeta, bool) {
	q, ok := qs.byCode[code]
	return q, ok
}

// Len returns the number of questions.
func (qs QuestionSet) Len() int {
	return len(qs.order)
}

// Questions returns the questions in file order.
func (qs QuestionSet) Questions() []QuestionMeta {
	out := make([]QuestionMeta, 0, len(qs.order))
	for _, code := range qs.order {
		out = append(out, qs.byCode[code])
	}
	return out
}
