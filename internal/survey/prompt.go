package survey

import (
	"fmt"
	"strings"
)

// AnswerLine is one "label: value" line fed to the summarizer.
type AnswerLine struct {
	Label string
	Value string
}

const summaryInstruction = `Based on the survey response data below, write one or two natural sentences that describe this person.`

const summaryExample = `Example: "A married office worker in a family of four with two children."`

// BuildPrompt renders the summarisation prompt for one respondent.
func BuildPrompt(lines []AnswerLine) string {
	return fmt.Sprintf("%s\n\n<data>\n%s\n</data>\n\n%s", summaryInstruction, renderLines(lines), summaryExample)
}

// ComposeSummary joins the answers into a plain summary when no LLM is configured.
func ComposeSummary(lines []AnswerLine) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, l.Label+": "+l.Value)
	}
	return strings.Join(parts, "; ")
}

func renderLines(lines []AnswerLine) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s: %s", l.Label, l.Value)
	}
	return b.String()
}

// EmbeddingText is the text embedded for a single question/answer pair.
func EmbeddingText(question, answer string) string {
	return "Q: " + question + "\nA: " + answer
}
