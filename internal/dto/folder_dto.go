package dto

import (
	"time"

	"github.com/noah-isme/gema-tasks-api/internal/models"
)

// FolderCreateRequest describes a new student folder.
type FolderCreateRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=120"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

// FolderResponse is the public view of a folder.
type FolderResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FolderAssignmentResponse places one task into one folder.
type FolderAssignmentResponse struct {
	TaskID   uint `json:"task_id"`
	FolderID uint `json:"folder_id"`
}

// NewFolderResponse converts a folder model.
func NewFolderResponse(folder models.TaskFolder) FolderResponse {
	return FolderResponse{
		ID:        folder.ID,
		Name:      folder.Name,
		Color:     folder.Color,
		CreatedAt: folder.CreatedAt,
	}
}

// NewFolderResponseSlice converts folder models.
func NewFolderResponseSlice(folders []models.TaskFolder) []FolderResponse {
	out := make([]FolderResponse, 0, len(folders))
	for _, folder := range folders {
		out = append(out, NewFolderResponse(folder))
	}
	return out
}

// NewFolderAssignmentResponseSlice converts folder assignment rows.
func NewFolderAssignmentResponseSlice(assignments []models.TaskFolderAssignment) []FolderAssignmentResponse {
	out := make([]FolderAssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		out = append(out, FolderAssignmentResponse{TaskID: assignment.TaskID, FolderID: assignment.FolderID})
	}
	return out
}
