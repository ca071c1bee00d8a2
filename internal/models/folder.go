package models

import "time"

// TaskFolder is a student-owned bucket used to organise the student's own task list.
type TaskFolder struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID uint      `gorm:"not null;index" json:"student_id"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	Color     string    `gorm:"size:16" json:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskFolderAssignment places a task into a folder. At most one row per (task, student).
type TaskFolderAssignment struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	TaskID    uint       `gorm:"not null;uniqueIndex:idx_folder_assignment_task_student" json:"task_id"`
	StudentID uint       `gorm:"not null;uniqueIndex:idx_folder_assignment_task_student;index" json:"student_id"`
	FolderID  uint       `gorm:"not null;index" json:"folder_id"`
	CreatedAt time.Time  `json:"created_at"`
	Folder    TaskFolder `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Task      Task       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
