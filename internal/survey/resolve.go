package survey

import (
	"strings"
	"unicode"

	"github.com/arturoeanton/go-survey-indexer/internal/domain"
)

// Resolve converts a stored answer into display text using the question's type.
// It returns false when the answer is empty. A nil meta yields the trimmed raw value.
func Resolve(meta *domain.QuestionMeta, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if meta == nil {
		return raw, true
	}

	switch meta.Type {
	case domain.QuestionSingle:
		return lookupOption(meta, raw), true
	case domain.QuestionMulti:
		codes := strings.FieldsFunc(raw, func(r rune) bool {
			return r == ',' || r == ';' || r == '|' || unicode.IsSpace(r)
		})
		seen := make(map[string]bool, len(codes))
		texts := make([]string, 0, len(codes))
		for _, c := range codes {
			t := lookupOption(meta, c)
			if seen[t] {
				continue
			}
			seen[t] = true
			texts = append(texts, t)
		}
		if len(texts) == 0 {
			return "", false
		}
		return strings.Join(texts, ", "), true
	default:
		return raw, true
	}
}

func lookupOption(meta *domain.QuestionMeta, code string) string {
	if t, ok := meta.Options[NormalizeCode(code)]; ok {
		return t
	}
	return code
}
