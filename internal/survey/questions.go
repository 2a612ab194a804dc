package survey

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/arturoeanton/go-survey-indexer/internal/domain"
	"github.com/arturoeanton/go-survey-indexer/internal/port"
)

// Header aliases, compared lower-cased and trimmed.
var (
	codeHeaders       = []string{"code", "question_code", "qcode", "문항코드", "문항번호"}
	textHeaders       = []string{"text", "question", "question_text", "문항", "문항내용", "질문"}
	typeHeaders       = []string{"type", "question_type", "qtype", "유형", "문항유형"}
	optionsHeaders    = []string{"options", "choices", "answers", "보기", "선택지"}
	optionCodeHeaders = []string{"option_code", "choice_code", "보기코드"}
	optionTextHeaders = []string{"option_text", "choice_text", "보기내용"}
)

// optionEntry matches "1=Male", "1: Male", "1. Male", "1) Male" and "1 Male".
var optionEntry = regexp.MustCompile(`^(?:([0-9A-Za-z_-]+)\s*[=:.)]\s*|(\d+)\s+)(.+)$`)

var optionSeparators = strings.NewReplacer("\r\n", "\n", "|", "\n", ";", "\n")

type metaColumns struct {
	code, text, typ, options, optionCode, optionText int
}

// ParseQuestions turns raw metadata records (header row first) into a QuestionSet.
//
// A row with a non-empty code opens a question; a row with an empty code
// adds options to the question opened before it. A repeated code merges
// its options into the first definition.
func ParseQuestions(records [][]string) (domain.QuestionSet, error) {
	if len(records) == 0 {
		return domain.QuestionSet{}, fmt.Errorf("%w: empty file", port.ErrMalformedMetadata)
	}

	cols := locateColumns(records[0])
	if cols.code < 0 {
		return domain.QuestionSet{}, fmt.Errorf("%w: no question code column in header %q", port.ErrMalformedMetadata, records[0])
	}

	var questions []domain.QuestionMeta
	byCode := make(map[string]int)
	current := -1

	for _, rec := range records[1:] {
		code := cell(rec, cols.code)
		if code != "" {
			idx, ok := byCode[code]
			if !ok {
				questions = append(questions, domain.QuestionMeta{
					Code:    code,
					Text:    cell(rec, cols.text),
					Type:    ParseQuestionType(cell(rec, cols.typ)),
					Options: make(map[string]string),
				})
				idx = len(questions) - 1
				byCode[code] = idx
			}
			current = idx
		}
		if current < 0 {
			continue
		}

		q := &questions[current]
		if q.Text == "" {
			q.Text = cell(rec, cols.text)
		}
		for k, v := range ParseOptions(cell(rec, cols.options)) {
			if _, exists := q.Options[k]; !exists {
				q.Options[k] = v
			}
		}
		if oc, ot := NormalizeCode(cell(rec, cols.optionCode)), cell(rec, cols.optionText); oc != "" && ot != "" {
			if _, exists := q.Options[oc]; !exists {
				q.Options[oc] = ot
			}
		}
	}

	for i := range questions {
		if questions[i].Text == "" {
			questions[i].Text = questions[i].Code
		}
	}
	return domain.NewQuestionSet(questions), nil
}

// ParseQuestionType maps a free-form type label onto a QuestionType.
func ParseQuestionType(s string) domain.QuestionType {
	u := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case u == "":
		return domain.QuestionOther
	case strings.Contains(u, "MULTI"), strings.Contains(u, "복수"), u == "MA":
		return domain.QuestionMulti
	case strings.Contains(u, "SINGLE"), strings.Contains(u, "단일"), u == "SA":
		return domain.QuestionSingle
	default:
		return domain.QuestionOther
	}
}

// ParseOptions parses an options cell into option code -> option text.
// Entries are separated by newlines, '|' or ';'. Entries without a code are dropped.
func ParseOptions(s string) map[string]string {
	out := make(map[string]string)
	for _, entry := range strings.Split(optionSeparators.Replace(s), "\n") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		m := optionEntry.FindStringSubmatch(entry)
		if m == nil {
			continue
		}
		code := m[1]
		if code == "" {
			code = m[2]
		}
		code = NormalizeCode(code)
		text := strings.TrimSpace(m[3])
		if code == "" || text == "" {
			continue
		}
		if _, exists := out[code]; !exists {
			out[code] = text
		}
	}
	return out
}

// NormalizeCode canonicalises an answer or option code so that "1", "01" and "1.0" compare equal.
func NormalizeCode(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return s
	}
	return strconv.FormatInt(int64(f), 10)
}

func locateColumns(header []string) metaColumns {
	return metaColumns{
		code:       findColumn(header, codeHeaders),
		text:       findColumn(header, textHeaders),
		typ:        findColumn(header, typeHeaders),
		options:    findColumn(header, optionsHeaders),
		optionCode: findColumn(header, optionCodeHeaders),
		optionText: findColumn(header, optionTextHeaders),
	}
}

func findColumn(header []string, aliases []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, a := range aliases {
			if h == a {
				return i
			}
		}
	}
	return -1
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
