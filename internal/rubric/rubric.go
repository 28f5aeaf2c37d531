package rubric

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rc-ventura/smart-grading-assistant/internal/types"
)

// ErrInvalid marks rubric validation failures. The run that hit it is
// over; there is nothing to retry until the teacher fixes the rubric.
var ErrInvalid = errors.New("rubric is not valid")

// ValidationResult lists everything wrong with a rubric so the teacher
// can fix the whole document in one pass.
type ValidationResult struct {
	Valid         bool     `json:"valid"`
	Errors        []string `json:"errors,omitempty"`
	CriteriaCount int      `json:"criteria_count"`
	TotalPoints   float64  `json:"total_points"`
}

// Err folds the result into a single error, nil when valid.
func (v ValidationResult) Err() error {
	if v.Valid {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(v.Errors, "; "))
}

// Parse decodes rubric JSON and validates it. A decode failure is
// reported as a validation error, not a distinct failure mode.
func Parse(raw string) (types.Rubric, ValidationResult) {
	var r types.Rubric
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return types.Rubric{}, ValidationResult{Errors: []string{"invalid JSON: " + err.Error()}}
	}
	result := Validate(r)
	if result.Valid {
		for i := range r.Criteria {
			if strings.TrimSpace(r.Criteria[i].Slug) == "" {
				r.Criteria[i].Slug = Slugify(r.Criteria[i].Name)
			}
		}
	}
	return r, result
}

// Validate checks rubric structure: a name, at least one criterion, and
// per criterion a name, a positive max score, and a description.
func Validate(r types.Rubric) ValidationResult {
	var errs []string
	if strings.TrimSpace(r.Name) == "" {
		errs = append(errs, "missing 'name' field in rubric")
	}
	if len(r.Criteria) == 0 {
		errs = append(errs, "rubric must have at least one criterion")
		return ValidationResult{Errors: errs}
	}
	var total float64
	for i, c := range r.Criteria {
		prefix := fmt.Sprintf("criterion %d", i+1)
		if strings.TrimSpace(c.Name) == "" {
			errs = append(errs, prefix+": missing 'name' field")
		}
		if c.MaxScore <= 0 {
			errs = append(errs, prefix+": 'max_score' must be positive")
		} else {
			total += c.MaxScore
		}
		if strings.TrimSpace(c.Description) == "" {
			errs = append(errs, prefix+": missing 'description' field")
		}
	}
	if len(errs) > 0 {
		return ValidationResult{Errors: errs}
	}
	return ValidationResult{
		Valid:         true,
		CriteriaCount: len(r.Criteria),
		TotalPoints:   total,
	}
}

// Slugify lowercases a criterion name and replaces runs of
// non-alphanumeric characters with single underscores.
func Slugify(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}
