package dto

import (
	"time"

	"github.com/noah-isme/gema-tasks-api/internal/models"
	"github.com/noah-isme/gema-tasks-api/internal/progress"
)

// SubmissionSaveRequest carries the full answer set of an auto-save.
type SubmissionSaveRequest struct {
	Answers models.Answers `json:"answers" validate:"required"`
}

// SubmissionSubmitRequest optionally carries answers that are merged before the submit check.
type SubmissionSubmitRequest struct {
	Answers models.Answers `json:"answers"`
}

// FieldProgressResponse reports how one field contributes to the progress score.
type FieldProgressResponse struct {
	FieldID    string                    `json:"field_id"`
	Answered   bool                      `json:"answered"`
	Percent    float64                   `json:"percent"`
	Evaluation *progress.FieldEvaluation `json:"evaluation,omitempty"`
}

// SubmissionResponse is the student's view of one submission. Exists is false for not-started tasks.
type SubmissionResponse struct {
	ID            uint                    `json:"id,omitempty"`
	TaskID        uint                    `json:"task_id"`
	StudentID     uint                    `json:"student_id"`
	Exists        bool                    `json:"exists"`
	Status        string                  `json:"status"`
	Answers       models.Answers          `json:"answers"`
	Progress      int                     `json:"progress"`
	NeedsHelp     bool                    `json:"needs_help"`
	HasUnreadHelp bool                    `json:"has_unread_help"`
	LastSaved     *time.Time              `json:"last_saved,omitempty"`
	SubmittedAt   *time.Time              `json:"submitted_at,omitempty"`
	CanSubmit     bool                    `json:"can_submit"`
	MissingFields []string                `json:"missing_fields"`
	Fields        []FieldProgressResponse `json:"fields"`
	Badge         progress.Badge          `json:"badge"`
}

// SubmitResponse reports the outcome of a submit attempt.
type SubmitResponse struct {
	Accepted      bool               `json:"accepted"`
	MissingFields []string           `json:"missing_fields,omitempty"`
	Submission    SubmissionResponse `json:"submission"`
}

// NewSubmissionResponse assembles the view of a stored submission against the task definition.
func NewSubmissionResponse(task models.Task, submission models.TaskSubmission, messages []models.HelpMessage) SubmissionResponse {
	answers := submission.AnswerMap()
	lastSaved := submission.LastSaved

	response := newSubmissionView(task, submission.StudentID, answers)
	response.ID = submission.ID
	response.Exists = true
	response.Status = string(submission.Status)
	response.Progress = submission.Progress
	response.NeedsHelp = submission.NeedsHelp
	response.HasUnreadHelp = submission.HasUnreadHelp
	response.LastSaved = &lastSaved
	response.SubmittedAt = submission.SubmittedAt
	response.Badge = progress.StatusBadge(submission.Status, submission.NeedsHelp, messages)
	return response
}

// NewNotStartedSubmissionResponse is returned when no submission row exists yet.
func NewNotStartedSubmissionResponse(task models.Task, studentID uint) SubmissionResponse {
	response := newSubmissionView(task, studentID, models.Answers{})
	response.Status = string(models.SubmissionStatusNotStarted)
	response.Badge = progress.StatusBadge(models.SubmissionStatusNotStarted, false, nil)
	return response
}

func newSubmissionView(task models.Task, studentID uint, answers models.Answers) SubmissionResponse {
	fields := make([]FieldProgressResponse, 0, len(task.Fields))
	for _, field := range task.Fields {
		answer := answers[field.ID]
		fields = append(fields, FieldProgressResponse{
			FieldID:    field.ID,
			Answered:   progress.IsAnswered(answer),
			Percent:    progress.FieldContribution(field, answer),
			Evaluation: progress.EvaluateField(field, answer),
		})
	}

	missing := progress.MissingRequired(task.Fields, answers)
	if missing == nil {
		missing = []string{}
	}

	return SubmissionResponse{
		TaskID:        task.ID,
		StudentID:     studentID,
		Answers:       answers,
		Progress:      progress.CalculateProgress(task.Fields, answers),
		CanSubmit:     len(missing) == 0,
		MissingFields: missing,
		Fields:        fields,
	}
}

// SubmissionSummaryResponse is the teacher's row-level view of a submission.
type SubmissionSummaryResponse struct {
	ID            uint           `json:"id"`
	StudentID     uint           `json:"student_id"`
	Status        string         `json:"status"`
	Progress      int            `json:"progress"`
	NeedsHelp     bool           `json:"needs_help"`
	HasUnreadHelp bool           `json:"has_unread_help"`
	Answers       models.Answers `json:"answers"`
	LastSaved     time.Time      `json:"last_saved"`
	SubmittedAt   *time.Time     `json:"submitted_at,omitempty"`
	Badge         progress.Badge `json:"badge"`
}

// NewSubmissionSummaryResponse converts a stored submission for the teacher view.
func NewSubmissionSummaryResponse(submission models.TaskSubmission, messages []models.HelpMessage) SubmissionSummaryResponse {
	return SubmissionSummaryResponse{
		ID:            submission.ID,
		StudentID:     submission.StudentID,
		Status:        string(submission.Status),
		Progress:      submission.Progress,
		NeedsHelp:     submission.NeedsHelp,
		HasUnreadHelp: submission.HasUnreadHelp,
		Answers:       submission.AnswerMap(),
		LastSaved:     submission.LastSaved,
		SubmittedAt:   submission.SubmittedAt,
		Badge:         progress.StatusBadge(submission.Status, submission.NeedsHelp, messages),
	}
}
