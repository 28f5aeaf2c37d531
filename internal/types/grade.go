package types

// CriterionGrade is the outcome of grading one criterion. A criterion
// that could not be graded keeps Score 0 and carries the failure text
// in Notes with Errored set; it is never silently given a passing score.
type CriterionGrade struct {
	Criterion string  `json:"criterion"`
	Score     float64 `json:"score"`
	MaxScore  float64 `json:"max_score"`
	Notes     string  `json:"notes,omitempty"`
	Errored   bool    `json:"errored,omitempty"`
}

// AggregationResult is the combined score across all criteria.
type AggregationResult struct {
	TotalScore     float64          `json:"total_score"`
	MaxPossible    float64          `json:"max_possible"`
	Percentage     float64          `json:"percentage"`
	LetterGrade    string           `json:"letter_grade"`
	Grades         []CriterionGrade `json:"grades"`
	FailedCriteria []string         `json:"failed_criteria,omitempty"`
}

// FinalGrade is what the run ultimately produces: the aggregate plus
// the feedback text shown to the student. ManuallyAdjusted records
// that a teacher substituted the values during the approval gate, in
// which case Feedback is the teacher's text verbatim.
type FinalGrade struct {
	Score            float64 `json:"score"`
	MaxScore         float64 `json:"max_score"`
	Percentage       float64 `json:"percentage"`
	LetterGrade      string  `json:"letter_grade"`
	Feedback         string  `json:"feedback,omitempty"`
	ManuallyAdjusted bool    `json:"manually_adjusted,omitempty"`
}
