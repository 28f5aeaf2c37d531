package types

import "time"

// RunStatus is the lifecycle of one grading run. Transitions are
// monotonic: Idle through Complete in stage order, with Cancelled and
// Failed reachable from any non-terminal status.
type RunStatus string

const (
	RunIdle             RunStatus = "idle"
	RunValidating       RunStatus = "validating"
	RunGrading          RunStatus = "grading"
	RunAggregating      RunStatus = "aggregating"
	RunAwaitingApproval RunStatus = "awaiting_approval"
	RunFinalizing       RunStatus = "finalizing"
	RunComplete         RunStatus = "complete"
	RunCancelled        RunStatus = "cancelled"
	RunFailed           RunStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunComplete, RunCancelled, RunFailed:
		return true
	}
	return false
}

// RunState is the single mutable record describing one run. The run
// controller is its only writer; everyone else sees copies. It is a
// plain serializable value so an archive can persist it as-is.
type RunState struct {
	RunID               string                    `json:"run_id"`
	Provider            string                    `json:"provider"`
	Model               string                    `json:"model,omitempty"`
	Status              RunStatus                 `json:"status"`
	Grades              map[string]CriterionGrade `json:"grades,omitempty"`
	Aggregate           *AggregationResult        `json:"aggregate,omitempty"`
	Final               *FinalGrade               `json:"final,omitempty"`
	PendingApproval     *ApprovalRequest          `json:"pending_approval,omitempty"`
	CurrentInvocationID string                    `json:"current_invocation_id,omitempty"`
	TerminalError       string                    `json:"terminal_error,omitempty"`
	StartedAt           time.Time                 `json:"started_at"`
	EndedAt             *time.Time                `json:"ended_at,omitempty"`
}

// Clone returns a deep copy safe to hand to readers.
func (s RunState) Clone() RunState {
	out := s
	if s.Grades != nil {
		out.Grades = make(map[string]CriterionGrade, len(s.Grades))
		for name, grade := range s.Grades {
			out.Grades[name] = grade
		}
	}
	if s.Aggregate != nil {
		agg := *s.Aggregate
		agg.Grades = append([]CriterionGrade(nil), s.Aggregate.Grades...)
		agg.FailedCriteria = append([]string(nil), s.Aggregate.FailedCriteria...)
		out.Aggregate = &agg
	}
	if s.Final != nil {
		final := *s.Final
		out.Final = &final
	}
	if s.PendingApproval != nil {
		req := *s.PendingApproval
		out.PendingApproval = &req
	}
	if s.EndedAt != nil {
		at := *s.EndedAt
		out.EndedAt = &at
	}
	return out
}
