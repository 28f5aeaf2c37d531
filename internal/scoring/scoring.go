package scoring

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rc-ventura/smart-grading-assistant/internal/types"
)

// ErrAggregation marks runs whose criterion results cannot produce a
// valid score. It is fatal to the run; nothing downstream can recover.
var ErrAggregation = errors.New("aggregation failed")

// Aggregate combines per-criterion grades into a final score. Scores
// are clamped into [0, max] per criterion; errored criteria contribute
// zero points but keep their max in the denominator so a failed grade
// can never inflate the percentage.
func Aggregate(grades []types.CriterionGrade) (types.AggregationResult, error) {
	if len(grades) == 0 {
		return types.AggregationResult{}, fmt.Errorf("%w: no criterion grades", ErrAggregation)
	}
	var total, max float64
	var failed []string
	out := make([]types.CriterionGrade, 0, len(grades))
	for _, g := range grades {
		if g.MaxScore <= 0 {
			return types.AggregationResult{}, fmt.Errorf("%w: criterion %q has non-positive max score", ErrAggregation, g.Criterion)
		}
		if g.Errored {
			g.Score = 0
			failed = append(failed, g.Criterion)
		}
		if g.Score < 0 {
			g.Score = 0
		}
		if g.Score > g.MaxScore {
			g.Score = g.MaxScore
		}
		total += g.Score
		max += g.MaxScore
		out = append(out, g)
	}
	pct := roundOne(total / max * 100)
	return types.AggregationResult{
		TotalScore:     total,
		MaxPossible:    max,
		Percentage:     pct,
		LetterGrade:    LetterGrade(pct),
		Grades:         out,
		FailedCriteria: failed,
	}, nil
}

// LetterGrade maps a percentage onto the A-F scale.
func LetterGrade(percentage float64) string {
	switch {
	case percentage >= 90:
		return "A"
	case percentage >= 80:
		return "B"
	case percentage >= 70:
		return "C"
	case percentage >= 60:
		return "D"
	default:
		return "F"
	}
}

// GatePolicy decides when a grade needs teacher sign-off. The pipeline
// queries it rather than hardcoding the rule.
type GatePolicy struct {
	FailingThreshold     float64
	ExceptionalThreshold float64
}

// Evaluate reports whether the aggregate needs human approval and why.
// Failing and exceptional percentages gate, and any criterion that
// could not be graded gates regardless of the percentage.
func (p GatePolicy) Evaluate(agg types.AggregationResult) (string, bool) {
	if len(agg.FailedCriteria) > 0 {
		return fmt.Sprintf("one or more criteria failed to grade: %s", strings.Join(agg.FailedCriteria, ", ")), true
	}
	if agg.Percentage < p.FailingThreshold {
		return fmt.Sprintf("score %.1f%% is below the passing threshold (%.0f%%)", agg.Percentage, p.FailingThreshold), true
	}
	if agg.Percentage > p.ExceptionalThreshold {
		return fmt.Sprintf("score %.1f%% is exceptional (above %.0f%%)", agg.Percentage, p.ExceptionalThreshold), true
	}
	return "", false
}

func roundOne(v float64) float64 {
	return math.Round(v*10) / 10
}
