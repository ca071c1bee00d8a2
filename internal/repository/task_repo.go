package repository

import (
	"context"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-tasks-api/internal/models"
)

// TaskRepository defines persistence operations for tasks and their assignment membership.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id uint) (models.Task, error)
	ListByTeacher(ctx context.Context, teacherID uint) ([]models.Task, error)
	ListForStudent(ctx context.Context, studentID uint) ([]models.Task, error)
	Delete(ctx context.Context, id uint) error
	SetStatus(ctx context.Context, id uint, status models.TaskStatus) error
	AssignedStudentIDs(ctx context.Context, taskID uint) ([]uint, error)
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository instantiates a GORM-backed repository.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Task{}).
		Preload("Fields", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Assignees")
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(task).Error; err != nil {
			return err
		}

		for i := range task.Fields {
			task.Fields[i].TaskID = task.ID
			task.Fields[i].Position = i
		}
		if len(task.Fields) > 0 {
			if err := tx.Create(&task.Fields).Error; err != nil {
				return err
			}
		}

		for i := range task.Assignees {
			task.Assignees[i].TaskID = task.ID
		}
		if len(task.Assignees) > 0 {
			if err := tx.Create(&task.Assignees).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *taskRepository) GetByID(ctx context.Context, id uint) (models.Task, error) {
	var task models.Task
	if err := r.baseQuery(ctx).First(&task, id).Error; err != nil {
		return models.Task{}, err
	}

	return task, nil
}

func (r *taskRepository) ListByTeacher(ctx context.Context, teacherID uint) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.baseQuery(ctx).
		Where("teacher_id = ?", teacherID).
		Order("created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}

	return tasks, nil
}

func (r *taskRepository) ListForStudent(ctx context.Context, studentID uint) ([]models.Task, error) {
	individual := r.db.Model(&models.TaskAssignee{}).Select("task_id").Where("student_id = ?", studentID)
	groups := r.db.Model(&models.GroupMember{}).Select("group_id").Where("student_id = ?", studentID)

	var tasks []models.Task
	if err := r.baseQuery(ctx).
		Where("(assignment_type = ? AND id IN (?)) OR (assignment_type = ? AND group_id IN (?))",
			models.AssignmentTypeIndividual, individual,
			models.AssignmentTypeClass, groups).
		Order("due_date IS NULL, due_date ASC").
		Order("created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}

	return tasks, nil
}

// Delete removes the task and everything hanging off it: submissions, their help log, folder placements,
// fields and individual assignees.
func (r *taskRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submissionIDs := tx.Model(&models.TaskSubmission{}).Select("id").Where("task_id = ?", id)
		if err := tx.Where("submission_id IN (?)", submissionIDs).Delete(&models.HelpMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", id).Delete(&models.TaskSubmission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", id).Delete(&models.TaskFolderAssignment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", id).Delete(&models.TaskField{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", id).Delete(&models.TaskAssignee{}).Error; err != nil {
			return err
		}

		result := tx.Delete(&models.Task{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *taskRepository) SetStatus(ctx context.Context, id uint, status models.TaskStatus) error {
	result := r.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AssignedStudentIDs resolves membership live on every call: the individual list, or the current
// roster of the bound group. Results are de-duplicated and sorted.
func (r *taskRepository) AssignedStudentIDs(ctx context.Context, taskID uint) ([]uint, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).Select("id", "assignment_type", "group_id").First(&task, taskID).Error; err != nil {
		return nil, err
	}

	var ids []uint
	switch task.AssignmentType {
	case models.AssignmentTypeIndividual:
		if err := r.db.WithContext(ctx).Model(&models.TaskAssignee{}).
			Where("task_id = ?", taskID).
			Pluck("student_id", &ids).Error; err != nil {
			return nil, err
		}
	case models.AssignmentTypeClass:
		if task.GroupID == nil {
			return []uint{}, nil
		}
		if err := r.db.WithContext(ctx).Model(&models.GroupMember{}).
			Where("group_id = ?", *task.GroupID).
			Pluck("student_id", &ids).Error; err != nil {
			return nil, err
		}
	default:
		return []uint{}, nil
	}

	return uniqueSorted(ids), nil
}

func uniqueSorted(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
