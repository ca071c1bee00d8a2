package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-tasks-api/internal/dto"
	"github.com/noah-isme/gema-tasks-api/internal/models"
	"github.com/noah-isme/gema-tasks-api/internal/observability"
	"github.com/noah-isme/gema-tasks-api/internal/progress"
	"github.com/noah-isme/gema-tasks-api/internal/repository"
)

// SubmissionService drives the submission status machine.
type SubmissionService interface {
	Get(ctx context.Context, actor Actor, taskID uint) (dto.SubmissionResponse, error)
	Save(ctx context.Context, actor Actor, taskID uint, payload dto.SubmissionSaveRequest) (dto.SubmissionResponse, error)
	Submit(ctx context.Context, actor Actor, taskID uint, payload dto.SubmissionSubmitRequest) (dto.SubmitResponse, error)
	ListByTask(ctx context.Context, actor Actor, taskID uint) ([]dto.SubmissionSummaryResponse, error)
}

type submissionService struct {
	access       taskAccess
	submissions  repository.SubmissionRepository
	helpMessages repository.HelpMessageRepository
	completion   CompletionChecker
	overview     OverviewInvalidator
	validator    *validator.Validate
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewSubmissionService wires the status machine. completion and overview may be nil.
func NewSubmissionService(tasks repository.TaskRepository, submissions repository.SubmissionRepository, helpMessages repository.HelpMessageRepository, completion CompletionChecker, overview OverviewInvalidator, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		access:       taskAccess{tasks: tasks},
		submissions:  submissions,
		helpMessages: helpMessages,
		completion:   completion,
		overview:     overview,
		validator:    validate,
		logger:       logger.With().Str("component", "submission_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/gema-tasks-api/internal/service/submission"),
		now:          time.Now,
	}
}

func (s *submissionService) Get(ctx context.Context, actor Actor, taskID uint) (dto.SubmissionResponse, error) {
	task, err := s.access.forStudent(ctx, actor, taskID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, found, err := s.find(ctx, taskID, actor.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if !found {
		return dto.NewNotStartedSubmissionResponse(task, actor.ID), nil
	}

	return s.respond(ctx, task, submission)
}

func (s *submissionService) Save(ctx context.Context, actor Actor, taskID uint, payload dto.SubmissionSaveRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "submission.save", trace.WithAttributes(
		attribute.Int64("task.id", int64(taskID)),
		attribute.Int64("student.id", int64(actor.ID)),
	))
	defer span.End()

	task, err := s.access.forStudent(spanCtx, actor, taskID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, found, err := s.find(spanCtx, taskID, actor.ID)
	if err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, err
	}
	if !found {
		submission = models.TaskSubmission{TaskID: taskID, StudentID: actor.ID}
	}

	// A save keeps whatever state the submission already had; only a fresh row starts in progress.
	if submission.Status == "" {
		submission.Status = models.SubmissionStatusInProgress
	}

	answers := knownAnswers(task.Fields, payload.Answers)
	submission.Answers = datatypes.NewJSONType(answers)
	submission.Progress = progress.CalculateProgress(task.Fields, answers)
	submission.LastSaved = s.now().UTC()

	if err := s.submissions.Upsert(spanCtx, &submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert submission")
		return dto.SubmissionResponse{}, err
	}

	observability.SubmissionSaves().WithLabelValues(string(submission.Status)).Inc()
	invalidateOverview(spanCtx, s.overview, taskID)

	return s.respond(spanCtx, task, submission)
}

func (s *submissionService) Submit(ctx context.Context, actor Actor, taskID uint, payload dto.SubmissionSubmitRequest) (dto.SubmitResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmitResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "submission.submit", trace.WithAttributes(
		attribute.Int64("task.id", int64(taskID)),
		attribute.Int64("student.id", int64(actor.ID)),
	))
	defer span.End()

	task, err := s.access.forStudent(spanCtx, actor, taskID)
	if err != nil {
		return dto.SubmitResponse{}, err
	}

	submission, found, err := s.find(spanCtx, taskID, actor.ID)
	if err != nil {
		span.RecordError(err)
		return dto.SubmitResponse{}, err
	}

	answers := models.Answers{}
	if found {
		answers = submission.AnswerMap().Clone()
	}
	for id, value := range knownAnswers(task.Fields, payload.Answers) {
		answers[id] = value
	}

	if missing := progress.MissingRequired(task.Fields, answers); len(missing) > 0 {
		observability.SubmissionSubmits().WithLabelValues("denied").Inc()
		span.SetAttributes(attribute.Int("submission.missing_fields", len(missing)))

		current := dto.NewNotStartedSubmissionResponse(task, actor.ID)
		if found {
			current, err = s.respond(spanCtx, task, submission)
			if err != nil {
				return dto.SubmitResponse{}, err
			}
		}
		return dto.SubmitResponse{Accepted: false, MissingFields: missing, Submission: current}, nil
	}

	now := s.now().UTC()
	if !found {
		submission = models.TaskSubmission{TaskID: taskID, StudentID: actor.ID}
	}
	submission.Status = models.SubmissionStatusCompleted
	submission.Answers = datatypes.NewJSONType(answers)
	submission.Progress = progress.CalculateProgress(task.Fields, answers)
	submission.LastSaved = now
	if submission.SubmittedAt == nil {
		submission.SubmittedAt = &now
	}

	if err := s.submissions.Upsert(spanCtx, &submission); err != nil {
		observability.SubmissionSubmits().WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert submission")
		return dto.SubmitResponse{}, err
	}

	observability.SubmissionSubmits().WithLabelValues("accepted").Inc()
	invalidateOverview(spanCtx, s.overview, taskID)
	s.logger.Info().Uint("task_id", taskID).Uint("student_id", actor.ID).Msg("submission completed")

	s.runCompletion(spanCtx, taskID)

	response, err := s.respond(spanCtx, task, submission)
	if err != nil {
		return dto.SubmitResponse{}, err
	}
	return dto.SubmitResponse{Accepted: true, Submission: response}, nil
}

// runCompletion triggers the aggregator after a completed write. Its failures never undo the submit;
// a deferred recheck is queued instead.
func (s *submissionService) runCompletion(ctx context.Context, taskID uint) {
	if s.completion == nil {
		return
	}

	if _, err := s.completion.CheckCompletion(ctx, taskID); err != nil {
		s.logger.Warn().Err(err).Uint("task_id", taskID).Msg("completion check failed, scheduling recheck")
		if scheduleErr := s.completion.ScheduleRecheck(ctx, taskID); scheduleErr != nil {
			s.logger.Error().Err(scheduleErr).Uint("task_id", taskID).Msg("failed to schedule completion recheck")
		}
	}
}

func (s *submissionService) ListByTask(ctx context.Context, actor Actor, taskID uint) ([]dto.SubmissionSummaryResponse, error) {
	if _, err := s.access.forTeacher(ctx, actor, taskID); err != nil {
		return nil, err
	}

	submissions, err := s.submissions.ListByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(submissions))
	for _, submission := range submissions {
		ids = append(ids, submission.ID)
	}
	messages, err := s.helpMessages.ListBySubmissions(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]dto.SubmissionSummaryResponse, 0, len(submissions))
	for _, submission := range submissions {
		out = append(out, dto.NewSubmissionSummaryResponse(submission, messages[submission.ID]))
	}
	return out, nil
}

func (s *submissionService) find(ctx context.Context, taskID, studentID uint) (models.TaskSubmission, bool, error) {
	submission, err := s.submissions.Get(ctx, taskID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.TaskSubmission{}, false, nil
		}
		return models.TaskSubmission{}, false, err
	}
	return submission, true, nil
}

func (s *submissionService) respond(ctx context.Context, task models.Task, submission models.TaskSubmission) (dto.SubmissionResponse, error) {
	messages, err := s.helpMessages.ListBySubmission(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	return dto.NewSubmissionResponse(task, submission, messages), nil
}

// knownAnswers keeps answers whose id still exists on the task.
func knownAnswers(fields []models.TaskField, answers models.Answers) models.Answers {
	known := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		known[field.ID] = struct{}{}
	}

	out := make(models.Answers, len(answers))
	for id, value := range answers {
		if _, ok := known[id]; ok {
			out[id] = value
		}
	}
	return out
}
