package types

// Stage names in pipeline order. Grading's per-criterion work runs in
// parallel internally; every other stage is strictly sequential.
type Stage string

const (
	StageValidating  Stage = "validating"
	StageGrading     Stage = "grading"
	StageAggregating Stage = "aggregating"
	StageApproval    Stage = "approval"
	StageFeedback    Stage = "feedback"
)

type StageEventKind string

const (
	EventStageStart       StageEventKind = "stage_start"
	EventStageComplete    StageEventKind = "stage_complete"
	EventCriterionResult  StageEventKind = "criterion_result"
	EventApprovalRequired StageEventKind = "approval_required"
	EventError            StageEventKind = "error"
	EventFinished         StageEventKind = "finished"
)

// FinishReason qualifies an EventFinished record.
type FinishReason string

const (
	FinishCompleted FinishReason = "completed"
	FinishRegrade   FinishReason = "regrade"
	FinishCancelled FinishReason = "cancelled"
)

// StageEvent is one immutable record produced by the evaluation
// backend. Events for a run form a finite ordered sequence that is
// never rewound; a new run gets a new sequence.
type StageEvent struct {
	Kind         StageEventKind     `json:"kind"`
	Stage        Stage              `json:"stage,omitempty"`
	InvocationID string             `json:"invocation_id,omitempty"`
	Message      string             `json:"message,omitempty"`
	Grade        *CriterionGrade    `json:"grade,omitempty"`
	Aggregate    *AggregationResult `json:"aggregate,omitempty"`
	Final        *FinalGrade        `json:"final,omitempty"`
	Reason       FinishReason       `json:"reason,omitempty"`
	Err          string             `json:"error,omitempty"`
	Fatal        bool               `json:"fatal,omitempty"`
}
