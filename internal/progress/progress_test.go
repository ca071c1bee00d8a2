package progress

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-tasks-api/internal/models"
)

func textField(id string, required bool) models.TaskField {
	return models.TaskField{ID: id, Kind: models.FieldKindText, Required: required}
}

func criteriaField(id string, criteria models.CompletionCriteria) models.TaskField {
	return models.TaskField{
		ID:       id,
		Kind:     models.FieldKindTextarea,
		Criteria: datatypes.NewJSONType(criteria),
	}
}

func TestEvaluateFieldWithoutCriteriaReturnsNil(t *testing.T) {
	require.Nil(t, EvaluateField(textField("a", true), models.TextAnswer("hello")))
}

func TestEvaluateFieldIgnoresCriteriaOnNonTextKinds(t *testing.T) {
	field := criteriaField("n", models.CompletionCriteria{Type: models.CriteriaCharacters, Target: 3})
	field.Kind = models.FieldKindNumber
	require.Nil(t, EvaluateField(field, models.NumberAnswer(12345)))
}

func TestEvaluateFieldCharactersIsLinearAndClamped(t *testing.T) {
	field := criteriaField("essay", models.CompletionCriteria{Type: models.CriteriaCharacters, Target: 100})

	half := EvaluateField(field, models.TextAnswer(strings.Repeat("a", 50)))
	require.NotNil(t, half)
	require.Equal(t, 50.0, half.Current)
	require.Equal(t, 50.0, half.ProgressPercent)
	require.False(t, half.IsComplete)

	exact := EvaluateField(field, models.TextAnswer(strings.Repeat("a", 100)))
	require.Equal(t, 100.0, exact.ProgressPercent)
	require.True(t, exact.IsComplete)

	over := EvaluateField(field, models.TextAnswer(strings.Repeat("a", 250)))
	require.Equal(t, 250.0, over.Current)
	require.Equal(t, 100.0, over.ProgressPercent)
	require.True(t, over.IsComplete)
}

func TestEvaluateFieldCharactersCountsUntrimmedRunes(t *testing.T) {
	field := criteriaField("c", models.CompletionCriteria{Type: models.CriteriaCharacters, Target: 10})
	evaluation := EvaluateField(field, models.TextAnswer("  äöü  "))
	require.Equal(t, 7.0, evaluation.Current)
}

func TestEvaluateFieldWords(t *testing.T) {
	field := criteriaField("w", models.CompletionCriteria{Type: models.CriteriaWords, Target: 4})

	blank := EvaluateField(field, models.TextAnswer("  "))
	require.Equal(t, 0.0, blank.Current)
	require.Equal(t, 0.0, blank.ProgressPercent)

	two := EvaluateField(field, models.TextAnswer("  hello \n  world "))
	require.Equal(t, 2.0, two.Current)
	require.Equal(t, 50.0, two.ProgressPercent)
	require.False(t, two.IsComplete)

	missing := EvaluateField(field, models.AnswerValue{})
	require.Equal(t, 0.0, missing.Current)
}

func TestEvaluateFieldSolutionIgnoresCaseAndWhitespace(t *testing.T) {
	field := criteriaField("s", models.CompletionCriteria{Type: models.CriteriaSolution, Target: 7, Solution: "Photosynthesis"})

	match := EvaluateField(field, models.TextAnswer("  photoSYNTHESIS "))
	require.Equal(t, 1.0, match.Current)
	require.Equal(t, 1.0, match.Target)
	require.Equal(t, 100.0, match.ProgressPercent)
	require.True(t, match.IsComplete)

	miss := EvaluateField(field, models.TextAnswer("photosynthesis!"))
	require.Equal(t, 0.0, miss.Current)
	require.Equal(t, 1.0, miss.Target)
	require.False(t, miss.IsComplete)
}

func TestEvaluateFieldNonPositiveTargetCountsAsMet(t *testing.T) {
	field := criteriaField("z", models.CompletionCriteria{Type: models.CriteriaCharacters, Target: 0})
	evaluation := EvaluateField(field, models.TextAnswer(""))
	require.Equal(t, 100.0, evaluation.ProgressPercent)
	require.True(t, evaluation.IsComplete)
}

func TestFieldContributionWithoutCriteria(t *testing.T) {
	cases := []struct {
		name   string
		kind   models.FieldKind
		answer models.AnswerValue
		want   float64
	}{
		{"missing", models.FieldKindText, models.AnswerValue{}, 0},
		{"empty string", models.FieldKindText, models.TextAnswer(""), 0},
		{"whitespace", models.FieldKindTextarea, models.TextAnswer("   "), 100},
		{"text", models.FieldKindText, models.TextAnswer("x"), 100},
		{"zero number", models.FieldKindNumber, models.NumberAnswer(0), 100},
		{"choice", models.FieldKindMultipleChoice, models.TextAnswer("B"), 100},
		{"unchecked", models.FieldKindCheckbox, models.BoolAnswer(false), 100},
		{"checked", models.FieldKindCheckbox, models.BoolAnswer(true), 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			field := models.TaskField{ID: "f", Kind: tc.kind}
			require.Equal(t, tc.want, FieldContribution(field, tc.answer))
		})
	}
}

func TestCalculateProgressEmptyFieldsIsZero(t *testing.T) {
	require.Equal(t, 0, CalculateProgress(nil, models.Answers{}))
	require.Equal(t, 0, CalculateProgress([]models.TaskField{}, models.Answers{"ghost": models.TextAnswer("x")}))
}

func TestCalculateProgressTwoRequiredFieldsOneAnswered(t *testing.T) {
	fields := []models.TaskField{textField("f1", true), textField("f2", true)}
	answers := models.Answers{"f1": models.TextAnswer("done")}

	require.Equal(t, 50, CalculateProgress(fields, answers))
	require.False(t, CanSubmit(fields, answers))
	require.Equal(t, []string{"f2"}, MissingRequired(fields, answers))
}

func TestCalculateProgressMixesCriteriaAndBinaryFields(t *testing.T) {
	fields := []models.TaskField{
		criteriaField("essay", models.CompletionCriteria{Type: models.CriteriaCharacters, Target: 100}),
		textField("name", false),
		{ID: "agree", Kind: models.FieldKindCheckbox},
	}
	answers := models.Answers{
		"essay":  models.TextAnswer(strings.Repeat("x", 25)),
		"name":   models.TextAnswer("Mia"),
		"orphan": models.TextAnswer("ignored"),
	}

	// (25 + 100 + 0) / 3 = 41.67
	require.Equal(t, 42, CalculateProgress(fields, answers))

	// An unchecked box is still an entered value: (25 + 100 + 100) / 3 = 75.
	answers["agree"] = models.BoolAnswer(false)
	require.Equal(t, 75, CalculateProgress(fields, answers))
}

func TestCanSubmitIgnoresCriteriaTargets(t *testing.T) {
	field := criteriaField("essay", models.CompletionCriteria{Type: models.CriteriaCharacters, Target: 500})
	field.Required = true
	fields := []models.TaskField{field, textField("optional", false)}

	require.False(t, CanSubmit(fields, models.Answers{}))
	require.True(t, CanSubmit(fields, models.Answers{"essay": models.TextAnswer("short")}))
}

func TestStatusBadge(t *testing.T) {
	studentOnly := []models.HelpMessage{{IsFromStudent: true}}
	withReply := []models.HelpMessage{{IsFromStudent: true}, {IsFromStudent: false}}

	require.Equal(t, BadgeNotStarted, StatusBadge(models.SubmissionStatusNotStarted, false, nil).Kind)
	require.Equal(t, BadgeInProgress, StatusBadge(models.SubmissionStatusInProgress, false, nil).Kind)
	require.Equal(t, BadgeNeedsHelp, StatusBadge(models.SubmissionStatusInProgress, true, studentOnly).Kind)
	require.Equal(t, BadgeHelpAnswered, StatusBadge(models.SubmissionStatusInProgress, true, withReply).Kind)
	require.Equal(t, BadgeInProgress, StatusBadge(models.SubmissionStatusInProgress, false, withReply).Kind)
	require.Equal(t, BadgeCompleted, StatusBadge(models.SubmissionStatusCompleted, true, studentOnly).Kind)
}

func TestUnreadCount(t *testing.T) {
	messages := []models.HelpMessage{
		{IsFromStudent: true},
		{IsFromStudent: false},
		{IsFromStudent: false},
	}
	require.Equal(t, 2, UnreadCount(messages))
	require.True(t, TeacherResponded(messages))
	require.False(t, TeacherResponded(messages[:1]))
}

func TestCanSubmitTreatsOnlyMissingOrEmptyAsUnanswered(t *testing.T) {
	fields := []models.TaskField{
		textField("note", true),
		{ID: "agree", Kind: models.FieldKindCheckbox, Required: true},
		{ID: "count", Kind: models.FieldKindNumber, Required: true},
	}

	entered := models.Answers{
		"note":  models.TextAnswer("   "),
		"agree": models.BoolAnswer(false),
		"count": models.NumberAnswer(0),
	}
	require.True(t, CanSubmit(fields, entered))
	require.Equal(t, 100, CalculateProgress(fields, entered))

	blank := models.Answers{"note": models.TextAnswer(""), "agree": {}}
	require.False(t, CanSubmit(fields, blank))
	require.Equal(t, []string{"note", "agree", "count"}, MissingRequired(fields, blank))
	require.Equal(t, 0, CalculateProgress(fields, blank))
}
