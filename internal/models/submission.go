package models

import (
	"time"

	"gorm.io/datatypes"
)

// SubmissionStatus describes the stored lifecycle state of a submission.
type SubmissionStatus string

const (
	// SubmissionStatusNotStarted is virtual: it is never stored and stands for "no row exists".
	SubmissionStatusNotStarted SubmissionStatus = "not-started"
	// SubmissionStatusInProgress is assigned on the first save.
	SubmissionStatusInProgress SubmissionStatus = "in-progress"
	// SubmissionStatusCompleted is assigned by an explicit submit.
	SubmissionStatusCompleted SubmissionStatus = "completed"
)

// TaskSubmission is one student's answer set for one task. (task_id, student_id) is unique.
type TaskSubmission struct {
	ID            uint                        `gorm:"primaryKey" json:"id"`
	TaskID        uint                        `gorm:"not null;uniqueIndex:idx_submission_task_student" json:"task_id"`
	StudentID     uint                        `gorm:"not null;uniqueIndex:idx_submission_task_student;index" json:"student_id"`
	Answers       datatypes.JSONType[Answers] `json:"answers"`
	Status        SubmissionStatus            `gorm:"size:16;not null;index" json:"status"`
	NeedsHelp     bool                        `gorm:"not null;default:false" json:"needs_help"`
	HasUnreadHelp bool                        `gorm:"not null;default:false" json:"has_unread_help"`
	Progress      int                         `gorm:"not null;default:0" json:"progress"`
	LastSaved     time.Time                   `gorm:"not null" json:"last_saved"`
	SubmittedAt   *time.Time                  `json:"submitted_at"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
	Task          Task                        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsCompleted reports whether the submission has been explicitly submitted.
func (s TaskSubmission) IsCompleted() bool {
	return s.Status == SubmissionStatusCompleted
}

// AnswerMap returns the decoded answers, never nil.
func (s TaskSubmission) AnswerMap() Answers {
	answers := s.Answers.Data()
	if answers == nil {
		return Answers{}
	}
	return answers
}
