// Package progress holds the side-effect-free scoring rules applied to task submissions.
// Every function here is safe to call on each keystroke and degrades to zero on malformed input.
package progress

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/noah-isme/gema-tasks-api/internal/models"
)

// FieldEvaluation is the completion state of a field that carries completion criteria.
type FieldEvaluation struct {
	Current         float64 `json:"current"`
	Target          float64 `json:"target"`
	ProgressPercent float64 `json:"progress_percent"`
	IsComplete      bool    `json:"is_complete"`
}

// EvaluateField scores one answer against the field's completion criteria.
// It returns nil when the field has no criteria or its kind does not support them.
func EvaluateField(field models.TaskField, answer models.AnswerValue) *FieldEvaluation {
	criteria := field.CompletionCriteria()
	if criteria == nil || !field.Kind.SupportsCriteria() {
		return nil
	}

	text := answer.String()

	var current, target float64
	switch criteria.Type {
	case models.CriteriaCharacters:
		current = float64(utf8.RuneCountInString(text))
		target = criteria.Target
	case models.CriteriaWords:
		current = float64(len(strings.Fields(text)))
		target = criteria.Target
	case models.CriteriaSolution:
		target = 1
		if matchesSolution(text, criteria.Solution) {
			current = 1
		}
	default:
		return nil
	}

	return &FieldEvaluation{
		Current:         current,
		Target:          target,
		ProgressPercent: percentOf(current, target),
		IsComplete:      current >= target,
	}
}

func matchesSolution(answer, solution string) bool {
	expected := strings.TrimSpace(solution)
	if expected == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), expected)
}

// percentOf clamps current/target to [0, 100]. A non-positive target counts as already met.
func percentOf(current, target float64) float64 {
	if target <= 0 {
		return 100
	}
	percent := current / target * 100
	if math.IsNaN(percent) || percent < 0 {
		return 0
	}
	return math.Min(100, percent)
}
