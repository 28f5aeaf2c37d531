package types

import "time"

// ApprovalRequest asks the teacher to confirm an edge-case grade. It is
// bound to the backend invocation that paused; a decision referencing
// any other invocation must not resolve it.
type ApprovalRequest struct {
	RunID           string            `json:"run_id"`
	InvocationID    string            `json:"invocation_id"`
	Reason          string            `json:"reason"`
	SubjectSnapshot AggregationResult `json:"subject_snapshot"`
	CreatedAt       time.Time         `json:"created_at"`
}

// DecisionOutcome is the closed set of teacher responses to an
// ApprovalRequest.
type DecisionOutcome string

const (
	DecisionApprove      DecisionOutcome = "approve"
	DecisionManualAdjust DecisionOutcome = "manual_adjust"
	DecisionRegrade      DecisionOutcome = "regrade"
	DecisionCancel       DecisionOutcome = "cancelled"
)

// ManualAdjustment carries the teacher-supplied replacement grade for a
// manual_adjust decision. Feedback is used verbatim; the automatic
// feedback step must not run for the same grade.
type ManualAdjustment struct {
	Score       float64 `json:"score"`
	LetterGrade string  `json:"letter_grade,omitempty"`
	Feedback    string  `json:"feedback,omitempty"`
}

// ApprovalDecision resolves a pending ApprovalRequest. InvocationID
// must match the pending request's invocation exactly.
type ApprovalDecision struct {
	InvocationID string            `json:"invocation_id"`
	Outcome      DecisionOutcome   `json:"outcome"`
	Adjustment   *ManualAdjustment `json:"adjustment,omitempty"`
	DecidedAt    time.Time         `json:"decided_at"`
}
