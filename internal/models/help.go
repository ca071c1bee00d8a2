package models

import "time"

// HelpMessage is one entry of the append-only help log attached to a submission.
type HelpMessage struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	SubmissionID  uint           `gorm:"not null;index" json:"submission_id"`
	StudentID     uint           `gorm:"not null;index" json:"student_id"`
	TeacherID     *uint          `json:"teacher_id"`
	Message       string         `gorm:"type:text;not null" json:"message"`
	Urgency       Urgency        `gorm:"size:16;not null" json:"urgency"`
	Category      HelpCategory   `gorm:"size:32;not null" json:"category"`
	IsFromStudent bool           `gorm:"not null" json:"is_from_student"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
	ReadAt        *time.Time     `json:"read_at"`
	Submission    TaskSubmission `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsUnreadByStudent reports whether a teacher-authored message has not been read yet.
func (m HelpMessage) IsUnreadByStudent() bool {
	return !m.IsFromStudent && m.ReadAt == nil
}
