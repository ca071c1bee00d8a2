package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-tasks-api/internal/models"
)

// HelpMessageRepository persists the append-only help log of submissions.
type HelpMessageRepository interface {
	Append(ctx context.Context, message *models.HelpMessage) error
	ListBySubmission(ctx context.Context, submissionID uint) ([]models.HelpMessage, error)
	ListBySubmissions(ctx context.Context, submissionIDs []uint) (map[uint][]models.HelpMessage, error)
	MarkReadByStudent(ctx context.Context, submissionID uint, readAt time.Time) (int64, error)
	StartRequest(ctx context.Context, submission *models.TaskSubmission, message *models.HelpMessage) error
	AppendWithFlags(ctx context.Context, message *models.HelpMessage, flags HelpFlags) error
}

// HelpFlags selects which submission help flags change together with an appended message.
// Nil fields are left untouched.
type HelpFlags struct {
	NeedsHelp     *bool
	HasUnreadHelp *bool
}

func (f HelpFlags) columns() map[string]interface{} {
	values := make(map[string]interface{}, 2)
	if f.NeedsHelp != nil {
		values["needs_help"] = *f.NeedsHelp
	}
	if f.HasUnreadHelp != nil {
		values["has_unread_help"] = *f.HasUnreadHelp
	}
	return values
}

type helpMessageRepository struct {
	db *gorm.DB
}

// NewHelpMessageRepository constructs a GORM-backed repository.
func NewHelpMessageRepository(db *gorm.DB) HelpMessageRepository {
	return &helpMessageRepository{db: db}
}

func (r *helpMessageRepository) Append(ctx context.Context, message *models.HelpMessage) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(message).Error
}

func (r *helpMessageRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]models.HelpMessage, error) {
	var messages []models.HelpMessage
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *helpMessageRepository) ListBySubmissions(ctx context.Context, submissionIDs []uint) (map[uint][]models.HelpMessage, error) {
	grouped := make(map[uint][]models.HelpMessage, len(submissionIDs))
	if len(submissionIDs) == 0 {
		return grouped, nil
	}

	var messages []models.HelpMessage
	if err := r.db.WithContext(ctx).
		Where("submission_id IN ?", submissionIDs).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}

	for _, message := range messages {
		grouped[message.SubmissionID] = append(grouped[message.SubmissionID], message)
	}
	return grouped, nil
}

// MarkReadByStudent stamps read_at on every teacher message the student has not read yet and
// clears the submission's unread flag in the same transaction.
func (r *helpMessageRepository) MarkReadByStudent(ctx context.Context, submissionID uint, readAt time.Time) (int64, error) {
	var updated int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.HelpMessage{}).
			Where("submission_id = ? AND is_from_student = ? AND read_at IS NULL", submissionID, false).
			Update("read_at", readAt)
		if result.Error != nil {
			return result.Error
		}
		updated = result.RowsAffected

		return tx.Model(&models.TaskSubmission{}).
			Where("id = ?", submissionID).
			Update("has_unread_help", false).
			Error
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// StartRequest records a student's help message and raises needs_help atomically. A submission
// without an id is created first; when a concurrent save already created the row it is reused.
// On success submission holds the stored row.
func (r *helpMessageRepository) StartRequest(ctx context.Context, submission *models.TaskSubmission, message *models.HelpMessage) error {
	var stored models.TaskSubmission
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stored = *submission
		if stored.ID == 0 {
			if err := tx.Omit(clause.Associations).
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "task_id"}, {Name: "student_id"}},
					DoNothing: true,
				}).
				Create(&stored).Error; err != nil {
				return err
			}
			var existing models.TaskSubmission
			if err := tx.Where("task_id = ? AND student_id = ?", submission.TaskID, submission.StudentID).
				First(&existing).Error; err != nil {
				return err
			}
			stored = existing
		}

		needsHelp := true
		if err := updateHelpFlags(tx, stored.ID, HelpFlags{NeedsHelp: &needsHelp}.columns()); err != nil {
			return err
		}
		stored.NeedsHelp = true

		message.SubmissionID = stored.ID
		return tx.Omit(clause.Associations).Create(message).Error
	})
	if err != nil {
		return err
	}

	*submission = stored
	return nil
}

// AppendWithFlags inserts the message and updates the submission's help flags in one transaction.
func (r *helpMessageRepository) AppendWithFlags(ctx context.Context, message *models.HelpMessage, flags HelpFlags) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(message).Error; err != nil {
			return err
		}

		values := flags.columns()
		if len(values) == 0 {
			return nil
		}
		return updateHelpFlags(tx, message.SubmissionID, values)
	})
}
