package models

import (
	"time"

	"gorm.io/datatypes"
)

// TaskStatus describes the lifecycle of a task.
type TaskStatus string

const (
	// TaskStatusActive marks a task that still accepts work.
	TaskStatusActive TaskStatus = "active"
	// TaskStatusCompleted marks a task whose assigned students have all completed their submissions.
	TaskStatusCompleted TaskStatus = "completed"
)

// AssignmentType describes how students are bound to a task.
type AssignmentType string

const (
	// AssignmentTypeClass binds a task to every member of one group.
	AssignmentTypeClass AssignmentType = "class"
	// AssignmentTypeIndividual binds a task to an explicit list of students.
	AssignmentTypeIndividual AssignmentType = "individual"
)

// Task is a structured piece of work created by a teacher.
type Task struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	TeacherID      uint           `gorm:"not null;index" json:"teacher_id"`
	Title          string         `gorm:"size:255;not null" json:"title"`
	Description    string         `gorm:"type:text" json:"description"`
	Subject        Subject        `gorm:"size:32;not null" json:"subject"`
	AssignmentType AssignmentType `gorm:"size:16;not null" json:"assignment_type"`
	GroupID        *uint          `gorm:"index" json:"group_id"`
	DueDate        *time.Time     `json:"due_date"`
	Status         TaskStatus     `gorm:"size:16;not null;default:active;index" json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Fields         []TaskField    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"fields"`
	Assignees      []TaskAssignee `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignees"`
}

// IsCompleted reports whether the task has been closed by the completion aggregator.
func (t Task) IsCompleted() bool {
	return t.Status == TaskStatusCompleted
}

// IsPastDue returns true when the task has a due date that already passed.
func (t Task) IsPastDue(reference time.Time) bool {
	return t.DueDate != nil && reference.After(*t.DueDate)
}

// FieldKind enumerates the input kinds a task field may have.
type FieldKind string

const (
	FieldKindText           FieldKind = "text"
	FieldKindTextarea       FieldKind = "textarea"
	FieldKindNumber         FieldKind = "number"
	FieldKindMultipleChoice FieldKind = "multiple-choice"
	FieldKindCheckbox       FieldKind = "checkbox"
)

// SupportsCriteria reports whether completion criteria may be attached to the kind.
func (k FieldKind) SupportsCriteria() bool {
	return k == FieldKindText || k == FieldKindTextarea
}

// CriteriaType enumerates the completion criteria a text field may carry.
type CriteriaType string

const (
	CriteriaCharacters CriteriaType = "characters"
	CriteriaWords      CriteriaType = "words"
	CriteriaSolution   CriteriaType = "solution"
)

// CompletionCriteria is an optional per-field progress target.
type CompletionCriteria struct {
	Type     CriteriaType `json:"type"`
	Target   float64      `json:"target"`
	Solution string       `json:"solution,omitempty"`
}

// TaskField is one input of a task. IDs are unique within a task and referenced by submission answers.
type TaskField struct {
	ID       string                                 `gorm:"primaryKey;size:64" json:"id"`
	TaskID   uint                                   `gorm:"primaryKey" json:"task_id"`
	Position int                                    `gorm:"not null" json:"position"`
	Label    string                                 `gorm:"size:255;not null" json:"label"`
	Kind     FieldKind                              `gorm:"size:32;not null" json:"kind"`
	Required bool                                   `gorm:"not null;default:false" json:"required"`
	Options  datatypes.JSONSlice[string]            `json:"options"`
	Criteria datatypes.JSONType[CompletionCriteria] `json:"criteria"`
}

// CompletionCriteria returns the criteria attached to the field, if any.
func (f TaskField) CompletionCriteria() *CompletionCriteria {
	criteria := f.Criteria.Data()
	if criteria.Type == "" {
		return nil
	}
	return &criteria
}

// TaskAssignee binds a student to an individually assigned task.
type TaskAssignee struct {
	TaskID    uint `gorm:"primaryKey" json:"task_id"`
	StudentID uint `gorm:"primaryKey" json:"student_id"`
}

// Group is a class roster. Group administration lives outside this service.
type Group struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	Name      string        `gorm:"size:255;not null" json:"name"`
	TeacherID uint          `gorm:"index" json:"teacher_id"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Members   []GroupMember `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"members"`
}

// GroupMember links a student to a group.
type GroupMember struct {
	GroupID   uint `gorm:"primaryKey" json:"group_id"`
	StudentID uint `gorm:"primaryKey" json:"student_id"`
}
