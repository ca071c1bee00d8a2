package progress

import (
	"math"

	"github.com/noah-isme/gema-tasks-api/internal/models"
)

// IsAnswered reports whether an answer is present. Only a missing value or the empty string is
// unanswered; whitespace, zero and an unchecked checkbox all count as entered values.
func IsAnswered(answer models.AnswerValue) bool {
	switch answer.Kind {
	case models.AnswerText:
		return answer.Text != ""
	case models.AnswerNumber, models.AnswerBool:
		return true
	default:
		return false
	}
}

// FieldContribution returns the 0-100 share a single field adds to the submission progress.
func FieldContribution(field models.TaskField, answer models.AnswerValue) float64 {
	if evaluation := EvaluateField(field, answer); evaluation != nil {
		return evaluation.ProgressPercent
	}
	if IsAnswered(answer) {
		return 100
	}
	return 0
}

// CalculateProgress averages the contributions of all fields and rounds to a whole percentage.
// Answers for field ids the task no longer has are ignored; no fields yields 0.
func CalculateProgress(fields []models.TaskField, answers models.Answers) int {
	if len(fields) == 0 {
		return 0
	}

	var total float64
	for _, field := range fields {
		total += FieldContribution(field, answers[field.ID])
	}

	mean := total / float64(len(fields))
	return int(math.Round(math.Max(0, math.Min(100, mean))))
}

// MissingRequired lists the ids of required fields without an answer, in field order.
// Completion criteria targets are deliberately not consulted.
func MissingRequired(fields []models.TaskField, answers models.Answers) []string {
	missing := make([]string, 0)
	for _, field := range fields {
		if !field.Required {
			continue
		}
		if !IsAnswered(answers[field.ID]) {
			missing = append(missing, field.ID)
		}
	}
	return missing
}

// CanSubmit reports whether every required field has a non-empty answer.
func CanSubmit(fields []models.TaskField, answers models.Answers) bool {
	return len(MissingRequired(fields, answers)) == 0
}
