package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rc-ventura/smart-grading-assistant/internal/llm"
	"github.com/rc-ventura/smart-grading-assistant/internal/types"
)

func graderRequest(c types.Criterion, submission string) llm.Request {
	prompt := fmt.Sprintf(`You are an expert evaluator for the criterion: %q

Criterion description: %s
Maximum score: %.0f points

Student submission:
---
%s
---

Evaluate the submission against this criterion only. Respond with a
single JSON object and nothing else:
{"criterion_name": %q, "max_score": %.0f, "score": <number between 0 and %.0f>, "evaluation_notes": "<concise justification, max 300 characters, no newlines>"}`,
		c.Name, c.Description, c.MaxScore, submission, c.Name, c.MaxScore, c.MaxScore)
	return llm.Request{
		System:      "You grade student work fairly and consistently. Output only JSON.",
		Prompt:      prompt,
		Temperature: 0.2,
		MaxTokens:   512,
	}
}

type graderOutput struct {
	CriterionName   string  `json:"criterion_name"`
	MaxScore        float64 `json:"max_score"`
	Score           float64 `json:"score"`
	EvaluationNotes string  `json:"evaluation_notes"`
}

func decodeGraderOutput(raw string, c types.Criterion) (types.CriterionGrade, error) {
	var out graderOutput
	if err := decodeJSONBlock(raw, &out); err != nil {
		return types.CriterionGrade{}, err
	}
	return types.CriterionGrade{
		Criterion: c.Name,
		Score:     out.Score,
		MaxScore:  c.MaxScore,
		Notes:     out.EvaluationNotes,
	}, nil
}

func feedbackRequest(input types.GradingInput, agg types.AggregationResult) llm.Request {
	var grades strings.Builder
	for _, g := range agg.Grades {
		fmt.Fprintf(&grades, "- %s: %.1f/%.1f (%s)\n", g.Criterion, g.Score, g.MaxScore, g.Notes)
	}
	prompt := fmt.Sprintf(`You are a feedback specialist writing constructive, encouraging feedback
for a student.

Overall result: %.1f/%.1f points (%.1f%%, grade %s)
Per-criterion results:
%s
Student submission:
---
%s
---

Respond with a single JSON object and nothing else:
{"strengths": [<up to 3 items>], "areas_for_improvement": [<up to 3 items>], "suggestions": [<up to 3 items>], "encouragement": "<max 300 characters>", "overall_summary": "<max 400 characters>"}
Each list item: max 200 characters, no newlines. Be specific,
constructive and clear.`,
		agg.TotalScore, agg.MaxPossible, agg.Percentage, agg.LetterGrade,
		grades.String(), input.Submission)
	return llm.Request{
		System:      "You write student feedback. Output only JSON.",
		Prompt:      prompt,
		Temperature: 0.6,
		MaxTokens:   1024,
	}
}

type feedbackOutput struct {
	Strengths           []string `json:"strengths"`
	AreasForImprovement []string `json:"areas_for_improvement"`
	Suggestions         []string `json:"suggestions"`
	Encouragement       string   `json:"encouragement"`
	OverallSummary      string   `json:"overall_summary"`
}

func decodeFeedbackOutput(raw string) (feedbackOutput, error) {
	var out feedbackOutput
	err := decodeJSONBlock(raw, &out)
	return out, err
}

// renderFeedback flattens the structured feedback into the markdown
// text stored on the final grade.
func renderFeedback(f feedbackOutput) string {
	var b strings.Builder
	if f.OverallSummary != "" {
		b.WriteString(f.OverallSummary)
		b.WriteString("\n")
	}
	writeSection(&b, "Strengths", f.Strengths)
	writeSection(&b, "Areas for improvement", f.AreasForImprovement)
	writeSection(&b, "Suggestions", f.Suggestions)
	if f.Encouragement != "" {
		b.WriteString("\n")
		b.WriteString(f.Encouragement)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n## ")
	b.WriteString(title)
	b.WriteString("\n")
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}

// decodeJSONBlock decodes model output that may wrap its JSON in a
// markdown fence or surrounding prose.
func decodeJSONBlock(raw string, v any) error {
	raw = strings.TrimSpace(raw)
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	if raw == "" {
		return fmt.Errorf("empty model output")
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("model output is not valid JSON: %w", err)
	}
	return nil
}
