package dto

import (
	"time"

	"github.com/noah-isme/gema-tasks-api/internal/models"
	"github.com/noah-isme/gema-tasks-api/internal/progress"
)

// CompletionCriteriaRequest describes an optional progress target on a text field.
type CompletionCriteriaRequest struct {
	Type     string  `json:"type" validate:"required,oneof=characters words solution"`
	Target   float64 `json:"target" validate:"gte=0"`
	Solution string  `json:"solution" validate:"max=2000"`
}

// TaskFieldRequest is one input definition inside a task payload.
type TaskFieldRequest struct {
	ID       string                     `json:"id" validate:"required,max=64"`
	Label    string                     `json:"label" validate:"required,max=255"`
	Kind     string                     `json:"kind" validate:"required,oneof=text textarea number multiple-choice checkbox"`
	Required bool                       `json:"required"`
	Options  []string                   `json:"options" validate:"omitempty,max=50,dive,required,max=255"`
	Criteria *CompletionCriteriaRequest `json:"criteria"`
}

// TaskCreateRequest captures the payload a teacher sends to publish a task.
type TaskCreateRequest struct {
	Title          string             `json:"title" validate:"required,max=255"`
	Description    string             `json:"description" validate:"max=10000"`
	Subject        string             `json:"subject" validate:"required,max=32"`
	AssignmentType string             `json:"assignment_type" validate:"required,oneof=class individual"`
	GroupID        *uint              `json:"group_id"`
	StudentIDs     []uint             `json:"student_ids" validate:"omitempty,dive,gt=0"`
	DueDate        *time.Time         `json:"due_date"`
	Fields         []TaskFieldRequest `json:"fields" validate:"required,min=1,max=100,dive"`
}

// CompletionCriteriaResponse is the public view of field criteria.
type CompletionCriteriaResponse struct {
	Type     string  `json:"type"`
	Target   float64 `json:"target"`
	Solution string  `json:"solution,omitempty"`
}

// TaskFieldResponse is the public view of one task field.
type TaskFieldResponse struct {
	ID       string                      `json:"id"`
	Label    string                      `json:"label"`
	Kind     string                      `json:"kind"`
	Required bool                        `json:"required"`
	Options  []string                    `json:"options,omitempty"`
	Criteria *CompletionCriteriaResponse `json:"criteria,omitempty"`
}

// TaskResponse represents a task returned to clients.
type TaskResponse struct {
	ID             uint                `json:"id"`
	TeacherID      uint                `json:"teacher_id"`
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	Subject        string              `json:"subject"`
	AssignmentType string              `json:"assignment_type"`
	GroupID        *uint               `json:"group_id,omitempty"`
	StudentIDs     []uint              `json:"student_ids,omitempty"`
	DueDate        *time.Time          `json:"due_date,omitempty"`
	Status         string              `json:"status"`
	Fields         []TaskFieldResponse `json:"fields"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// StudentTaskResponse is a task as listed for the assigned student.
type StudentTaskResponse struct {
	TaskResponse
	SubmissionStatus string         `json:"submission_status"`
	Progress         int            `json:"progress"`
	Badge            progress.Badge `json:"badge"`
	FolderID         *uint          `json:"folder_id,omitempty"`
	Overdue          bool           `json:"overdue"`
}

// NewTaskResponse converts a task model. Solutions are only included for the owning teacher.
func NewTaskResponse(task models.Task, includeSolutions bool) TaskResponse {
	fields := make([]TaskFieldResponse, 0, len(task.Fields))
	for _, field := range task.Fields {
		fields = append(fields, newTaskFieldResponse(field, includeSolutions))
	}

	var studentIDs []uint
	for _, assignee := range task.Assignees {
		studentIDs = append(studentIDs, assignee.StudentID)
	}

	return TaskResponse{
		ID:             task.ID,
		TeacherID:      task.TeacherID,
		Title:          task.Title,
		Description:    task.Description,
		Subject:        string(task.Subject),
		AssignmentType: string(task.AssignmentType),
		GroupID:        task.GroupID,
		StudentIDs:     studentIDs,
		DueDate:        task.DueDate,
		Status:         string(task.Status),
		Fields:         fields,
		CreatedAt:      task.CreatedAt,
		UpdatedAt:      task.UpdatedAt,
	}
}

// NewTaskResponseSlice converts a list of tasks.
func NewTaskResponseSlice(tasks []models.Task, includeSolutions bool) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, NewTaskResponse(task, includeSolutions))
	}
	return out
}

func newTaskFieldResponse(field models.TaskField, includeSolutions bool) TaskFieldResponse {
	response := TaskFieldResponse{
		ID:       field.ID,
		Label:    field.Label,
		Kind:     string(field.Kind),
		Required: field.Required,
		Options:  []string(field.Options),
	}
	if criteria := field.CompletionCriteria(); criteria != nil {
		response.Criteria = &CompletionCriteriaResponse{
			Type:   string(criteria.Type),
			Target: criteria.Target,
		}
		if includeSolutions {
			response.Criteria.Solution = criteria.Solution
		}
	}
	return response
}
