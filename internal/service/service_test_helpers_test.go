package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-tasks-api/internal/database"
	"github.com/noah-isme/gema-tasks-api/internal/dto"
	"github.com/noah-isme/gema-tasks-api/internal/models"
	"github.com/noah-isme/gema-tasks-api/internal/repository"
)

const testTeacherID = uint(100)

var (
	teacher = Actor{ID: testTeacherID, Role: RoleTeacher}
	alice   = Actor{ID: 1, Role: RoleStudent}
	bob     = Actor{ID: 2, Role: RoleStudent}
	carol   = Actor{ID: 3, Role: RoleStudent}
)

type testEnv struct {
	db            *gorm.DB
	tasks         repository.TaskRepository
	submissions   repository.SubmissionRepository
	messages      repository.HelpMessageRepository
	folders       repository.FolderRepository
	notifications *recordingPublisher
	validate      *validator.Validate
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	return testEnv{
		db:            db,
		tasks:         repository.NewTaskRepository(db),
		submissions:   repository.NewSubmissionRepository(db),
		messages:      repository.NewHelpMessageRepository(db),
		folders:       repository.NewFolderRepository(db),
		notifications: &recordingPublisher{},
		validate:      validator.New(),
	}
}

// seedClassTask creates a group with the given members and a task bound to it with one required
// text field and one optional number field.
func (e testEnv) seedClassTask(t *testing.T, members ...uint) (models.Task, models.Group) {
	t.Helper()
	group := models.Group{Name: "9a", TeacherID: testTeacherID}
	require.NoError(t, e.db.Create(&group).Error)
	for _, member := range members {
		require.NoError(t, e.db.Create(&models.GroupMember{GroupID: group.ID, StudentID: member}).Error)
	}

	task := models.Task{
		TeacherID:      testTeacherID,
		Title:          "Fractions",
		Subject:        models.SubjectMath,
		AssignmentType: models.AssignmentTypeClass,
		GroupID:        &group.ID,
		Status:         models.TaskStatusActive,
		Fields: []models.TaskField{
			{ID: "explain", Label: "Explain", Kind: models.FieldKindTextarea, Required: true,
				Criteria: datatypes.NewJSONType(models.CompletionCriteria{Type: models.CriteriaCharacters, Target: 10})},
			{ID: "result", Label: "Result", Kind: models.FieldKindNumber},
		},
	}
	require.NoError(t, e.tasks.Create(context.Background(), &task))
	return task, group
}

func (e testEnv) taskStatus(t *testing.T, taskID uint) models.TaskStatus {
	t.Helper()
	task, err := e.tasks.GetByID(context.Background(), taskID)
	require.NoError(t, err)
	return task.Status
}

type recordingPublisher struct {
	mu    sync.Mutex
	items []dto.NotificationCreateRequest
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return dto.NotificationResponse{}, p.err
	}
	p.items = append(p.items, payload)
	return dto.NotificationResponse{UserID: payload.UserID, Type: payload.Type, Message: payload.Message}, nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.items))
	for _, item := range p.items {
		out = append(out, item.Type)
	}
	return out
}

var errStoreDown = errors.New("store down")

// failWrites makes every insert or update against table fail until the returned func runs.
func failWrites(t *testing.T, db *gorm.DB, table string) func() {
	t.Helper()
	name := "test:fail_writes_" + table
	fail := func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(errStoreDown)
		}
	}
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register(name, fail))
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register(name, fail))

	return func() {
		require.NoError(t, db.Callback().Create().Remove(name))
		require.NoError(t, db.Callback().Update().Remove(name))
	}
}

func isValidationErr(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}
