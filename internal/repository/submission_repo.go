package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-tasks-api/internal/models"
)

// SubmissionRepository defines data operations for task submissions.
type SubmissionRepository interface {
	Get(ctx context.Context, taskID, studentID uint) (models.TaskSubmission, error)
	GetByID(ctx context.Context, id uint) (models.TaskSubmission, error)
	Upsert(ctx context.Context, submission *models.TaskSubmission) error
	ListByTask(ctx context.Context, taskID uint) ([]models.TaskSubmission, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.TaskSubmission, error)
	CompletedStudentIDs(ctx context.Context, taskID uint) ([]uint, error)
	ListOpenHelpRequests(ctx context.Context, teacherID uint) ([]models.TaskSubmission, error)
	SetNeedsHelp(ctx context.Context, id uint, needsHelp bool) error
	SetHasUnreadHelp(ctx context.Context, id uint, hasUnread bool) error
	ClearHelpFlags(ctx context.Context, id uint) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

// Help flags are written on insert only; afterwards they change through the dedicated setters so a
// concurrent save cannot overwrite a help request with a stale flag.
var upsertColumns = []string{
	"answers", "status", "progress", "last_saved", "submitted_at", "updated_at",
}

func (r *submissionRepository) Get(ctx context.Context, taskID, studentID uint) (models.TaskSubmission, error) {
	var submission models.TaskSubmission
	if err := r.db.WithContext(ctx).
		Where("task_id = ? AND student_id = ?", taskID, studentID).
		First(&submission).Error; err != nil {
		return models.TaskSubmission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.TaskSubmission, error) {
	var submission models.TaskSubmission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.TaskSubmission{}, err
	}

	return submission, nil
}

// Upsert writes the submission keyed by (task_id, student_id); a second write for the same pair
// overwrites the row instead of inserting another. The stored row is loaded back into submission.
func (r *submissionRepository) Upsert(ctx context.Context, submission *models.TaskSubmission) error {
	row := *submission
	row.ID = 0

	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "task_id"}, {Name: "student_id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(&row).Error
	if err != nil {
		return err
	}

	stored, err := r.Get(ctx, submission.TaskID, submission.StudentID)
	if err != nil {
		return err
	}

	*submission = stored
	return nil
}

func (r *submissionRepository) ListByTask(ctx context.Context, taskID uint) ([]models.TaskSubmission, error) {
	var submissions []models.TaskSubmission
	if err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("student_id ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.TaskSubmission, error) {
	var submissions []models.TaskSubmission
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) CompletedStudentIDs(ctx context.Context, taskID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.TaskSubmission{}).
		Where("task_id = ? AND status = ?", taskID, models.SubmissionStatusCompleted).
		Pluck("student_id", &ids).Error; err != nil {
		return nil, err
	}

	return uniqueSorted(ids), nil
}

// ListOpenHelpRequests returns unresolved help requests across the teacher's tasks, oldest first.
// Completed submissions are excluded even when their flag was never cleared.
func (r *submissionRepository) ListOpenHelpRequests(ctx context.Context, teacherID uint) ([]models.TaskSubmission, error) {
	var submissions []models.TaskSubmission
	if err := r.db.WithContext(ctx).
		Joins("JOIN tasks ON tasks.id = task_submissions.task_id").
		Where("tasks.teacher_id = ?", teacherID).
		Where("task_submissions.needs_help = ? AND task_submissions.status <> ?", true, models.SubmissionStatusCompleted).
		Order("task_submissions.updated_at ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) SetNeedsHelp(ctx context.Context, id uint, needsHelp bool) error {
	return r.updateFlags(ctx, id, map[string]interface{}{"needs_help": needsHelp})
}

func (r *submissionRepository) SetHasUnreadHelp(ctx context.Context, id uint, hasUnread bool) error {
	return r.updateFlags(ctx, id, map[string]interface{}{"has_unread_help": hasUnread})
}

func (r *submissionRepository) ClearHelpFlags(ctx context.Context, id uint) error {
	return r.updateFlags(ctx, id, map[string]interface{}{"needs_help": false, "has_unread_help": false})
}

func (r *submissionRepository) updateFlags(ctx context.Context, id uint, values map[string]interface{}) error {
	return updateHelpFlags(r.db.WithContext(ctx), id, values)
}

func updateHelpFlags(db *gorm.DB, id uint, values map[string]interface{}) error {
	result := db.Model(&models.TaskSubmission{}).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
