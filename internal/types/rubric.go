package types

// Rubric describes what a submission is graded against. It is supplied
// by the teacher as JSON and validated before any grading starts.
type Rubric struct {
	Name     string      `json:"name"`
	Criteria []Criterion `json:"criteria"`
}

// Criterion is one independently graded aspect of a submission.
type Criterion struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	MaxScore    float64 `json:"max_score"`
	Slug        string  `json:"slug,omitempty"`
}

// TotalPoints sums the criterion maxima.
func (r Rubric) TotalPoints() float64 {
	var total float64
	for _, c := range r.Criteria {
		total += c.MaxScore
	}
	return total
}

// GradingInput bundles everything one run grades.
type GradingInput struct {
	Rubric     Rubric `json:"rubric"`
	RubricJSON string `json:"rubric_json,omitempty"`
	Submission string `json:"submission"`
}
