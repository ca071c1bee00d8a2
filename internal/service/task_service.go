package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-tasks-api/internal/dto"
	"github.com/noah-isme/gema-tasks-api/internal/models"
	"github.com/noah-isme/gema-tasks-api/internal/progress"
	"github.com/noah-isme/gema-tasks-api/internal/repository"
)

// TaskService manages task definitions. Task status is only ever written by the completion aggregator.
type TaskService interface {
	Create(ctx context.Context, actor Actor, payload dto.TaskCreateRequest) (dto.TaskResponse, error)
	Get(ctx context.Context, actor Actor, taskID uint) (dto.TaskResponse, error)
	ListForTeacher(ctx context.Context, actor Actor) ([]dto.TaskResponse, error)
	ListForStudent(ctx context.Context, actor Actor) ([]dto.StudentTaskResponse, error)
	Delete(ctx context.Context, actor Actor, taskID uint) error
}

type taskService struct {
	access       taskAccess
	tasks        repository.TaskRepository
	submissions  repository.SubmissionRepository
	helpMessages repository.HelpMessageRepository
	folders      repository.FolderRepository
	overview     OverviewInvalidator
	validator    *validator.Validate
	logger       zerolog.Logger
	tracer       trace.Tracer
	titles       *bluemonday.Policy
	descriptions *bluemonday.Policy
	now          func() time.Time
}

// NewTaskService constructs the task service.
func NewTaskService(tasks repository.TaskRepository, submissions repository.SubmissionRepository, helpMessages repository.HelpMessageRepository, folders repository.FolderRepository, overview OverviewInvalidator, validate *validator.Validate, logger zerolog.Logger) TaskService {
	return &taskService{
		access:       taskAccess{tasks: tasks},
		tasks:        tasks,
		submissions:  submissions,
		helpMessages: helpMessages,
		folders:      folders,
		overview:     overview,
		validator:    validate,
		logger:       logger.With().Str("component", "task_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/gema-tasks-api/internal/service/task"),
		titles:       bluemonday.StrictPolicy(),
		descriptions: bluemonday.UGCPolicy(),
		now:          time.Now,
	}
}

func (s *taskService) Create(ctx context.Context, actor Actor, payload dto.TaskCreateRequest) (dto.TaskResponse, error) {
	if !actor.IsTeacher() {
		return dto.TaskResponse{}, ErrTaskForbidden
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.TaskResponse{}, err
	}

	task, err := s.buildTask(actor, payload)
	if err != nil {
		return dto.TaskResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "task.create", trace.WithAttributes(
		attribute.Int64("teacher.id", int64(actor.ID)),
		attribute.Int("task.fields", len(task.Fields)),
	))
	defer span.End()

	if err := s.tasks.Create(spanCtx, &task); err != nil {
		span.RecordError(err)
		return dto.TaskResponse{}, err
	}

	s.logger.Info().Uint("task_id", task.ID).Uint("teacher_id", actor.ID).Str("assignment_type", string(task.AssignmentType)).Msg("task created")

	created, err := s.access.load(spanCtx, task.ID)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	return dto.NewTaskResponse(created, true), nil
}

func (s *taskService) Get(ctx context.Context, actor Actor, taskID uint) (dto.TaskResponse, error) {
	task, err := s.access.forReader(ctx, actor, taskID)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	return dto.NewTaskResponse(task, actor.IsTeacher()), nil
}

func (s *taskService) ListForTeacher(ctx context.Context, actor Actor) ([]dto.TaskResponse, error) {
	if !actor.IsTeacher() {
		return nil, ErrTaskForbidden
	}
	tasks, err := s.tasks.ListByTeacher(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewTaskResponseSlice(tasks, true), nil
}

func (s *taskService) ListForStudent(ctx context.Context, actor Actor) ([]dto.StudentTaskResponse, error) {
	if !actor.IsStudent() {
		return nil, ErrTaskForbidden
	}

	tasks, err := s.tasks.ListForStudent(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	submissions, err := s.submissions.ListByStudent(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	byTask := make(map[uint]models.TaskSubmission, len(submissions))
	ids := make([]uint, 0, len(submissions))
	for _, submission := range submissions {
		byTask[submission.TaskID] = submission
		ids = append(ids, submission.ID)
	}

	messages, err := s.helpMessages.ListBySubmissions(ctx, ids)
	if err != nil {
		return nil, err
	}

	assignments, err := s.folders.ListAssignments(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	folderByTask := make(map[uint]uint, len(assignments))
	for _, assignment := range assignments {
		folderByTask[assignment.TaskID] = assignment.FolderID
	}

	now := s.now()
	out := make([]dto.StudentTaskResponse, 0, len(tasks))
	for _, task := range tasks {
		entry := dto.StudentTaskResponse{
			TaskResponse:     dto.NewTaskResponse(task, false),
			SubmissionStatus: string(models.SubmissionStatusNotStarted),
			Badge:            progress.StatusBadge(models.SubmissionStatusNotStarted, false, nil),
		}

		completed := false
		if submission, ok := byTask[task.ID]; ok {
			entry.SubmissionStatus = string(submission.Status)
			entry.Progress = submission.Progress
			entry.Badge = progress.StatusBadge(submission.Status, submission.NeedsHelp, messages[submission.ID])
			completed = submission.IsCompleted()
		}
		if folderID, ok := folderByTask[task.ID]; ok {
			id := folderID
			entry.FolderID = &id
		}
		entry.Overdue = !completed && task.IsPastDue(now)

		out = append(out, entry)
	}
	return out, nil
}

func (s *taskService) Delete(ctx context.Context, actor Actor, taskID uint) error {
	if _, err := s.access.forTeacher(ctx, actor, taskID); err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return err
	}

	invalidateOverview(ctx, s.overview, taskID)
	s.logger.Info().Uint("task_id", taskID).Uint("teacher_id", actor.ID).Msg("task deleted")
	return nil
}

func (s *taskService) buildTask(actor Actor, payload dto.TaskCreateRequest) (models.Task, error) {
	title := strings.TrimSpace(s.titles.Sanitize(payload.Title))
	if title == "" {
		return models.Task{}, fmt.Errorf("%w: title empty after sanitization", ErrInvalidTask)
	}

	task := models.Task{
		TeacherID:      actor.ID,
		Title:          title,
		Description:    strings.TrimSpace(s.descriptions.Sanitize(payload.Description)),
		Subject:        models.ParseSubject(payload.Subject),
		AssignmentType: models.AssignmentType(payload.AssignmentType),
		DueDate:        payload.DueDate,
		Status:         models.TaskStatusActive,
	}

	switch task.AssignmentType {
	case models.AssignmentTypeClass:
		if payload.GroupID == nil || *payload.GroupID == 0 {
			return models.Task{}, fmt.Errorf("%w: class assignment requires group_id", ErrInvalidTask)
		}
		if len(payload.StudentIDs) > 0 {
			return models.Task{}, fmt.Errorf("%w: student_ids are only allowed for individual assignment", ErrInvalidTask)
		}
		groupID := *payload.GroupID
		task.GroupID = &groupID
	case models.AssignmentTypeIndividual:
		if len(payload.StudentIDs) == 0 {
			return models.Task{}, fmt.Errorf("%w: individual assignment requires at least one student", ErrInvalidTask)
		}
		seen := make(map[uint]struct{}, len(payload.StudentIDs))
		for _, studentID := range payload.StudentIDs {
			if _, dup := seen[studentID]; dup {
				continue
			}
			seen[studentID] = struct{}{}
			task.Assignees = append(task.Assignees, models.TaskAssignee{StudentID: studentID})
		}
	default:
		return models.Task{}, fmt.Errorf("%w: unknown assignment type %q", ErrInvalidTask, payload.AssignmentType)
	}

	ids := make(map[string]struct{}, len(payload.Fields))
	for i, input := range payload.Fields {
		field, err := buildField(input, i)
		if err != nil {
			return models.Task{}, err
		}
		if _, dup := ids[field.ID]; dup {
			return models.Task{}, fmt.Errorf("%w: duplicate field id %q", ErrInvalidTask, field.ID)
		}
		ids[field.ID] = struct{}{}
		task.Fields = append(task.Fields, field)
	}

	return task, nil
}

func buildField(input dto.TaskFieldRequest, position int) (models.TaskField, error) {
	field := models.TaskField{
		ID:       strings.TrimSpace(input.ID),
		Position: position,
		Label:    strings.TrimSpace(input.Label),
		Kind:     models.FieldKind(input.Kind),
		Required: input.Required,
	}
	if field.ID == "" {
		return models.TaskField{}, fmt.Errorf("%w: field id is blank", ErrInvalidTask)
	}

	switch field.Kind {
	case models.FieldKindMultipleChoice:
		if len(input.Options) < 2 {
			return models.TaskField{}, fmt.Errorf("%w: field %q needs at least two options", ErrInvalidTask, field.ID)
		}
		field.Options = datatypes.JSONSlice[string](input.Options)
	default:
		if len(input.Options) > 0 {
			return models.TaskField{}, fmt.Errorf("%w: field %q does not take options", ErrInvalidTask, field.ID)
		}
	}

	if input.Criteria == nil {
		return field, nil
	}
	if !field.Kind.SupportsCriteria() {
		return models.TaskField{}, fmt.Errorf("%w: field %q of kind %s cannot carry completion criteria", ErrInvalidTask, field.ID, field.Kind)
	}

	criteria := models.CompletionCriteria{
		Type:     models.CriteriaType(input.Criteria.Type),
		Target:   input.Criteria.Target,
		Solution: strings.TrimSpace(input.Criteria.Solution),
	}
	switch criteria.Type {
	case models.CriteriaCharacters, models.CriteriaWords:
		if criteria.Target <= 0 {
			return models.TaskField{}, fmt.Errorf("%w: field %q needs a positive target", ErrInvalidTask, field.ID)
		}
		criteria.Solution = ""
	case models.CriteriaSolution:
		if criteria.Solution == "" {
			return models.TaskField{}, fmt.Errorf("%w: field %q needs a solution", ErrInvalidTask, field.ID)
		}
		criteria.Target = 1
	}
	field.Criteria = datatypes.NewJSONType(criteria)

	return field, nil
}
