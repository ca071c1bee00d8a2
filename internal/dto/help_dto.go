package dto

import (
	"time"

	"github.com/noah-isme/gema-tasks-api/internal/models"
	"github.com/noah-isme/gema-tasks-api/internal/progress"
)

// HelpRequestCreateRequest is sent by a student asking for help on a task.
type HelpRequestCreateRequest struct {
	Message  string `json:"message" validate:"required,min=1,max=4000"`
	Urgency  string `json:"urgency" validate:"omitempty,oneof=low medium high"`
	Category string `json:"category" validate:"omitempty,oneof=understanding task-content technical organisational other"`
}

// HelpResponseCreateRequest is sent by a teacher answering a help request.
type HelpResponseCreateRequest struct {
	Message string `json:"message" validate:"required,min=1,max=4000"`
}

// HelpMessageResponse is one message of the help log.
type HelpMessageResponse struct {
	ID            uint       `json:"id"`
	SubmissionID  uint       `json:"submission_id"`
	StudentID     uint       `json:"student_id"`
	TeacherID     *uint      `json:"teacher_id,omitempty"`
	Message       string     `json:"message"`
	Urgency       string     `json:"urgency"`
	Category      string     `json:"category"`
	IsFromStudent bool       `json:"is_from_student"`
	CreatedAt     time.Time  `json:"created_at"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
}

// HelpThreadResponse is the help log of a submission together with its derived state.
type HelpThreadResponse struct {
	SubmissionID     uint                  `json:"submission_id"`
	TaskID           uint                  `json:"task_id"`
	StudentID        uint                  `json:"student_id"`
	NeedsHelp        bool                  `json:"needs_help"`
	HasUnreadHelp    bool                  `json:"has_unread_help"`
	TeacherResponded bool                  `json:"teacher_responded"`
	UnreadCount      int                   `json:"unread_count"`
	Badge            progress.Badge        `json:"badge"`
	Messages         []HelpMessageResponse `json:"messages"`
}

// OpenHelpRequestResponse is one entry of a teacher's help inbox.
type OpenHelpRequestResponse struct {
	SubmissionID     uint                 `json:"submission_id"`
	TaskID           uint                 `json:"task_id"`
	StudentID        uint                 `json:"student_id"`
	Progress         int                  `json:"progress"`
	TeacherResponded bool                 `json:"teacher_responded"`
	LatestMessage    *HelpMessageResponse `json:"latest_message,omitempty"`
	WaitingSince     time.Time            `json:"waiting_since"`
}

// NewHelpMessageResponse converts a help message model.
func NewHelpMessageResponse(message models.HelpMessage) HelpMessageResponse {
	return HelpMessageResponse{
		ID:            message.ID,
		SubmissionID:  message.SubmissionID,
		StudentID:     message.StudentID,
		TeacherID:     message.TeacherID,
		Message:       message.Message,
		Urgency:       string(message.Urgency),
		Category:      string(message.Category),
		IsFromStudent: message.IsFromStudent,
		CreatedAt:     message.CreatedAt,
		ReadAt:        message.ReadAt,
	}
}

// NewHelpMessageResponseSlice converts an ordered help log.
func NewHelpMessageResponseSlice(messages []models.HelpMessage) []HelpMessageResponse {
	out := make([]HelpMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewHelpMessageResponse(message))
	}
	return out
}

// NewHelpThreadResponse derives the thread view for a submission.
func NewHelpThreadResponse(submission models.TaskSubmission, messages []models.HelpMessage) HelpThreadResponse {
	return HelpThreadResponse{
		SubmissionID:     submission.ID,
		TaskID:           submission.TaskID,
		StudentID:        submission.StudentID,
		NeedsHelp:        submission.NeedsHelp,
		HasUnreadHelp:    submission.HasUnreadHelp,
		TeacherResponded: progress.TeacherResponded(messages),
		UnreadCount:      progress.UnreadCount(messages),
		Badge:            progress.StatusBadge(submission.Status, submission.NeedsHelp, messages),
		Messages:         NewHelpMessageResponseSlice(messages),
	}
}

// NewOpenHelpRequestResponse builds an inbox entry from a submission and its log.
func NewOpenHelpRequestResponse(submission models.TaskSubmission, messages []models.HelpMessage) OpenHelpRequestResponse {
	entry := OpenHelpRequestResponse{
		SubmissionID:     submission.ID,
		TaskID:           submission.TaskID,
		StudentID:        submission.StudentID,
		Progress:         submission.Progress,
		TeacherResponded: progress.TeacherResponded(messages),
		WaitingSince:     submission.UpdatedAt,
	}
	if len(messages) > 0 {
		latest := NewHelpMessageResponse(messages[len(messages)-1])
		entry.LatestMessage = &latest
		for _, message := range messages {
			if message.IsFromStudent {
				entry.WaitingSince = message.CreatedAt
			}
		}
	}
	return entry
}
