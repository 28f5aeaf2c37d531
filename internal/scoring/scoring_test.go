package scoring

import (
	"errors"
	"strings"
	"testing"

	"github.com/rc-ventura/smart-grading-assistant/internal/types"
)

func TestAggregateSumsAndRounds(t *testing.T) {
	agg, err := Aggregate([]types.CriterionGrade{
		{Criterion: "quality", Score: 25, MaxScore: 30},
		{Criterion: "functionality", Score: 35, MaxScore: 40},
		{Criterion: "documentation", Score: 15, MaxScore: 30},
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if agg.TotalScore != 75 || agg.MaxPossible != 100 {
		t.Fatalf("unexpected totals: %v/%v", agg.TotalScore, agg.MaxPossible)
	}
	if agg.Percentage != 75 {
		t.Fatalf("unexpected percentage: %v", agg.Percentage)
	}
	if agg.LetterGrade != "C" {
		t.Fatalf("unexpected letter grade: %q", agg.LetterGrade)
	}
}

func TestAggregateClampsOutOfRangeScores(t *testing.T) {
	agg, err := Aggregate([]types.CriterionGrade{
		{Criterion: "a", Score: -10, MaxScore: 50},
		{Criterion: "b", Score: 80, MaxScore: 50},
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if agg.TotalScore != 50 {
		t.Fatalf("expected clamped total 50, got %v", agg.TotalScore)
	}
	if agg.Grades[0].Score != 0 || agg.Grades[1].Score != 50 {
		t.Fatalf("expected per-grade clamping, got %+v", agg.Grades)
	}
}

func TestAggregateErroredCriterionScoresZeroButCountsMax(t *testing.T) {
	agg, err := Aggregate([]types.CriterionGrade{
		{Criterion: "a", Score: 40, MaxScore: 40},
		{Criterion: "b", Score: 33, MaxScore: 60, Errored: true},
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if agg.TotalScore != 40 || agg.MaxPossible != 100 {
		t.Fatalf("unexpected totals: %v/%v", agg.TotalScore, agg.MaxPossible)
	}
	if len(agg.FailedCriteria) != 1 || agg.FailedCriteria[0] != "b" {
		t.Fatalf("unexpected failed criteria: %v", agg.FailedCriteria)
	}
}

func TestAggregateRejectsEmptyAndInvalidInput(t *testing.T) {
	if _, err := Aggregate(nil); !errors.Is(err, ErrAggregation) {
		t.Fatalf("expected ErrAggregation, got %v", err)
	}
	_, err := Aggregate([]types.CriterionGrade{{Criterion: "a", MaxScore: 0}})
	if !errors.Is(err, ErrAggregation) {
		t.Fatalf("expected ErrAggregation, got %v", err)
	}
}

func TestLetterGradeBoundaries(t *testing.T) {
	cases := []struct {
		pct  float64
		want string
	}{
		{95, "A"}, {90, "A"}, {89.9, "B"}, {80, "B"}, {75, "C"}, {60, "D"}, {59.9, "F"}, {0, "F"},
	}
	for _, tc := range cases {
		if got := LetterGrade(tc.pct); got != tc.want {
			t.Fatalf("LetterGrade(%v) = %q, want %q", tc.pct, got, tc.want)
		}
	}
}

func TestGatePolicyBand(t *testing.T) {
	policy := GatePolicy{FailingThreshold: 50, ExceptionalThreshold: 90}

	if reason, gated := policy.Evaluate(types.AggregationResult{Percentage: 75}); gated {
		t.Fatalf("75%% should not gate, reason %q", reason)
	}
	reason, gated := policy.Evaluate(types.AggregationResult{Percentage: 40})
	if !gated || !strings.Contains(reason, "40") {
		t.Fatalf("40%% should gate with reason mentioning the score, got %q gated=%v", reason, gated)
	}
	reason, gated = policy.Evaluate(types.AggregationResult{Percentage: 95})
	if !gated || !strings.Contains(reason, "exceptional") {
		t.Fatalf("95%% should gate as exceptional, got %q gated=%v", reason, gated)
	}
}

func TestGatePolicyFailedCriteriaAlwaysGate(t *testing.T) {
	policy := GatePolicy{FailingThreshold: 50, ExceptionalThreshold: 90}
	reason, gated := policy.Evaluate(types.AggregationResult{
		Percentage:     75,
		FailedCriteria: []string{"documentation"},
	})
	if !gated {
		t.Fatalf("runs with failed criteria must gate")
	}
	if !strings.Contains(reason, "documentation") {
		t.Fatalf("reason should name the failed criterion, got %q", reason)
	}
}
