package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-tasks-api/internal/models"
)

// FolderRepository persists student folders and the task-to-folder index.
type FolderRepository interface {
	CreateFolder(ctx context.Context, folder *models.TaskFolder) error
	GetFolder(ctx context.Context, id uint) (models.TaskFolder, error)
	ListFolders(ctx context.Context, studentID uint) ([]models.TaskFolder, error)
	DeleteFolder(ctx context.Context, id uint) error
	AssignTask(ctx context.Context, assignment *models.TaskFolderAssignment) error
	UnassignTask(ctx context.Context, taskID, studentID uint) error
	ListAssignments(ctx context.Context, studentID uint) ([]models.TaskFolderAssignment, error)
}

type folderRepository struct {
	db *gorm.DB
}

// NewFolderRepository constructs a GORM-backed repository.
func NewFolderRepository(db *gorm.DB) FolderRepository {
	return &folderRepository{db: db}
}

func (r *folderRepository) CreateFolder(ctx context.Context, folder *models.TaskFolder) error {
	return r.db.WithContext(ctx).Create(folder).Error
}

func (r *folderRepository) GetFolder(ctx context.Context, id uint) (models.TaskFolder, error) {
	var folder models.TaskFolder
	if err := r.db.WithContext(ctx).First(&folder, id).Error; err != nil {
		return models.TaskFolder{}, err
	}
	return folder, nil
}

func (r *folderRepository) ListFolders(ctx context.Context, studentID uint) ([]models.TaskFolder, error) {
	var folders []models.TaskFolder
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("name ASC").
		Find(&folders).Error; err != nil {
		return nil, err
	}
	return folders, nil
}

func (r *folderRepository) DeleteFolder(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("folder_id = ?", id).Delete(&models.TaskFolderAssignment{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.TaskFolder{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// AssignTask places a task in a folder with replace semantics: any prior placement of the task for the
// same student is removed first, so at most one row exists per (task, student).
func (r *folderRepository) AssignTask(ctx context.Context, assignment *models.TaskFolderAssignment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ? AND student_id = ?", assignment.TaskID, assignment.StudentID).
			Delete(&models.TaskFolderAssignment{}).Error; err != nil {
			return err
		}

		assignment.ID = 0
		return tx.Omit(clause.Associations).Create(assignment).Error
	})
}

func (r *folderRepository) UnassignTask(ctx context.Context, taskID, studentID uint) error {
	result := r.db.WithContext(ctx).
		Where("task_id = ? AND student_id = ?", taskID, studentID).
		Delete(&models.TaskFolderAssignment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *folderRepository) ListAssignments(ctx context.Context, studentID uint) ([]models.TaskFolderAssignment, error) {
	var assignments []models.TaskFolderAssignment
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("folder_id ASC").
		Order("task_id ASC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}
