package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
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

// ErrEmptyHelpMessage indicates the message had no text left after sanitization.
var ErrEmptyHelpMessage = errors.New("help message empty after sanitization")

// HelpService runs the help-request channel between a student and the task's teacher.
type HelpService interface {
	RequestHelp(ctx context.Context, actor Actor, taskID uint, payload dto.HelpRequestCreateRequest) (dto.HelpThreadResponse, error)
	Respond(ctx context.Context, actor Actor, submissionID uint, payload dto.HelpResponseCreateRequest) (dto.HelpThreadResponse, error)
	MarkRead(ctx context.Context, actor Actor, submissionID uint) (dto.HelpThreadResponse, error)
	Resolve(ctx context.Context, actor Actor, submissionID uint) (dto.HelpThreadResponse, error)
	Thread(ctx context.Context, actor Actor, submissionID uint) (dto.HelpThreadResponse, error)
	OpenRequests(ctx context.Context, actor Actor) ([]dto.OpenHelpRequestResponse, error)
}

type helpService struct {
	access        taskAccess
	submissions   repository.SubmissionRepository
	messages      repository.HelpMessageRepository
	notifications NotificationPublisher
	overview      OverviewInvalidator
	validator     *validator.Validate
	logger        zerolog.Logger
	tracer        trace.Tracer
	sanitizer     *bluemonday.Policy
	now           func() time.Time
}

// NewHelpService constructs the help channel service.
func NewHelpService(tasks repository.TaskRepository, submissions repository.SubmissionRepository, messages repository.HelpMessageRepository, notifications NotificationPublisher, overview OverviewInvalidator, validate *validator.Validate, logger zerolog.Logger) HelpService {
	return &helpService{
		access:        taskAccess{tasks: tasks},
		submissions:   submissions,
		messages:      messages,
		notifications: notifications,
		overview:      overview,
		validator:     validate,
		logger:        logger.With().Str("component", "help_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/gema-tasks-api/internal/service/help"),
		sanitizer:     bluemonday.StrictPolicy(),
		now:           time.Now,
	}
}

func (s *helpService) RequestHelp(ctx context.Context, actor Actor, taskID uint, payload dto.HelpRequestCreateRequest) (dto.HelpThreadResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.HelpThreadResponse{}, err
	}
	text, err := s.clean(payload.Message)
	if err != nil {
		return dto.HelpThreadResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "help.request", trace.WithAttributes(
		attribute.Int64("task.id", int64(taskID)),
		attribute.Int64("student.id", int64(actor.ID)),
	))
	defer span.End()

	task, err := s.access.forStudent(spanCtx, actor, taskID)
	if err != nil {
		return dto.HelpThreadResponse{}, err
	}

	now := s.now().UTC()
	submission, err := s.submissions.Get(spanCtx, taskID, actor.ID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Asking for help is an explicit start of the task.
		answers := models.Answers{}
		submission = models.TaskSubmission{
			TaskID:    taskID,
			StudentID: actor.ID,
			Answers:   datatypes.NewJSONType(answers),
			Status:    models.SubmissionStatusInProgress,
			NeedsHelp: true,
			Progress:  progress.CalculateProgress(task.Fields, answers),
			LastSaved: now,
		}
	case err != nil:
		span.RecordError(err)
		return dto.HelpThreadResponse{}, err
	}

	message := models.HelpMessage{
		StudentID:     actor.ID,
		Message:       text,
		Urgency:       models.ParseUrgency(payload.Urgency),
		Category:      models.ParseHelpCategory(payload.Category),
		IsFromStudent: true,
		CreatedAt:     now,
	}
	if err := s.messages.StartRequest(spanCtx, &submission, &message); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start help request")
		return dto.HelpThreadResponse{}, err
	}

	observability.HelpMessages().WithLabelValues(RoleStudent).Inc()
	invalidateOverview(spanCtx, s.overview, taskID)
	s.logger.Info().Uint("submission_id", submission.ID).Str("urgency", string(message.Urgency)).Msg("help requested")

	notifyBestEffort(spanCtx, s.logger, s.notifications, dto.NotificationCreateRequest{
		UserID:  strconv.FormatUint(uint64(task.TeacherID), 10),
		Type:    models.NotificationHelpRequested,
		Message: fmt.Sprintf("A student asked for help on %q", task.Title),
		Metadata: map[string]interface{}{
			"task_id":       task.ID,
			"submission_id": submission.ID,
			"urgency":       string(message.Urgency),
			"category":      string(message.Category),
		},
	})

	return s.thread(spanCtx, submission)
}

func (s *helpService) Respond(ctx context.Context, actor Actor, submissionID uint, payload dto.HelpResponseCreateRequest) (dto.HelpThreadResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.HelpThreadResponse{}, err
	}
	text, err := s.clean(payload.Message)
	if err != nil {
		return dto.HelpThreadResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "help.respond", trace.WithAttributes(
		attribute.Int64("submission.id", int64(submissionID)),
		attribute.Int64("teacher.id", int64(actor.ID)),
	))
	defer span.End()

	submission, task, err := s.forTeacher(spanCtx, actor, submissionID)
	if err != nil {
		return dto.HelpThreadResponse{}, err
	}

	history, err := s.messages.ListBySubmission(spanCtx, submissionID)
	if err != nil {
		span.RecordError(err)
		return dto.HelpThreadResponse{}, err
	}

	teacherID := actor.ID
	message := models.HelpMessage{
		SubmissionID:  submission.ID,
		StudentID:     submission.StudentID,
		TeacherID:     &teacherID,
		Message:       text,
		Urgency:       models.UrgencyMedium,
		Category:      models.HelpCategoryOther,
		IsFromStudent: false,
		CreatedAt:     s.now().UTC(),
	}
	// Replies inherit the classification of the request they answer.
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].IsFromStudent {
			message.Urgency = history[i].Urgency
			message.Category = history[i].Category
			break
		}
	}

	hasUnread := true
	if err := s.messages.AppendWithFlags(spanCtx, &message, repository.HelpFlags{HasUnreadHelp: &hasUnread}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append help message")
		return dto.HelpThreadResponse{}, err
	}
	submission.HasUnreadHelp = true

	observability.HelpMessages().WithLabelValues(RoleTeacher).Inc()
	invalidateOverview(spanCtx, s.overview, task.ID)

	notifyBestEffort(spanCtx, s.logger, s.notifications, dto.NotificationCreateRequest{
		UserID:  strconv.FormatUint(uint64(submission.StudentID), 10),
		Type:    models.NotificationHelpAnswered,
		Message: fmt.Sprintf("Your teacher answered your question on %q", task.Title),
		Metadata: map[string]interface{}{
			"task_id":       task.ID,
			"submission_id": submission.ID,
		},
	})

	return s.thread(spanCtx, submission)
}

func (s *helpService) MarkRead(ctx context.Context, actor Actor, submissionID uint) (dto.HelpThreadResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "help.mark_read", trace.WithAttributes(
		attribute.Int64("submission.id", int64(submissionID)),
	))
	defer span.End()

	submission, err := s.loadSubmission(spanCtx, submissionID)
	if err != nil {
		return dto.HelpThreadResponse{}, err
	}
	if !actor.IsStudent() || submission.StudentID != actor.ID {
		return dto.HelpThreadResponse{}, ErrSubmissionForbidden
	}

	if _, err := s.messages.MarkReadByStudent(spanCtx, submissionID, s.now().UTC()); err != nil {
		span.RecordError(err)
		return dto.HelpThreadResponse{}, err
	}
	if submission.HasUnreadHelp {
		submission.HasUnreadHelp = false
		invalidateOverview(spanCtx, s.overview, submission.TaskID)
	}

	return s.thread(spanCtx, submission)
}

func (s *helpService) Resolve(ctx context.Context, actor Actor, submissionID uint) (dto.HelpThreadResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "help.resolve", trace.WithAttributes(
		attribute.Int64("submission.id", int64(submissionID)),
		attribute.Int64("teacher.id", int64(actor.ID)),
	))
	defer span.End()

	submission, task, err := s.forTeacher(spanCtx, actor, submissionID)
	if err != nil {
		return dto.HelpThreadResponse{}, err
	}

	if err := s.submissions.ClearHelpFlags(spanCtx, submissionID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "clear help flags")
		return dto.HelpThreadResponse{}, err
	}
	submission.NeedsHelp = false
	submission.HasUnreadHelp = false

	invalidateOverview(spanCtx, s.overview, task.ID)
	s.logger.Info().Uint("submission_id", submissionID).Uint("teacher_id", actor.ID).Msg("help request resolved")

	notifyBestEffort(spanCtx, s.logger, s.notifications, dto.NotificationCreateRequest{
		UserID:  strconv.FormatUint(uint64(submission.StudentID), 10),
		Type:    models.NotificationHelpResolved,
		Message: fmt.Sprintf("Your help request on %q was resolved", task.Title),
		Metadata: map[string]interface{}{
			"task_id":       task.ID,
			"submission_id": submission.ID,
		},
	})

	return s.thread(spanCtx, submission)
}

func (s *helpService) Thread(ctx context.Context, actor Actor, submissionID uint) (dto.HelpThreadResponse, error) {
	if actor.IsTeacher() {
		submission, _, err := s.forTeacher(ctx, actor, submissionID)
		if err != nil {
			return dto.HelpThreadResponse{}, err
		}
		return s.thread(ctx, submission)
	}

	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return dto.HelpThreadResponse{}, err
	}
	if !actor.IsStudent() || submission.StudentID != actor.ID {
		return dto.HelpThreadResponse{}, ErrSubmissionForbidden
	}
	return s.thread(ctx, submission)
}

func (s *helpService) OpenRequests(ctx context.Context, actor Actor) ([]dto.OpenHelpRequestResponse, error) {
	if !actor.IsTeacher() {
		return nil, ErrTaskForbidden
	}

	submissions, err := s.submissions.ListOpenHelpRequests(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(submissions))
	for _, submission := range submissions {
		ids = append(ids, submission.ID)
	}
	messages, err := s.messages.ListBySubmissions(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]dto.OpenHelpRequestResponse, 0, len(submissions))
	for _, submission := range submissions {
		out = append(out, dto.NewOpenHelpRequestResponse(submission, messages[submission.ID]))
	}
	return out, nil
}

func (s *helpService) clean(message string) (string, error) {
	text := strings.TrimSpace(s.sanitizer.Sanitize(message))
	if text == "" {
		return "", ErrEmptyHelpMessage
	}
	return text, nil
}

func (s *helpService) loadSubmission(ctx context.Context, submissionID uint) (models.TaskSubmission, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.TaskSubmission{}, ErrSubmissionNotFound
		}
		return models.TaskSubmission{}, err
	}
	return submission, nil
}

func (s *helpService) forTeacher(ctx context.Context, actor Actor, submissionID uint) (models.TaskSubmission, models.Task, error) {
	submission, err := s.loadSubmission(ctx, submissionID)
	if err != nil {
		return models.TaskSubmission{}, models.Task{}, err
	}
	task, err := s.access.forTeacher(ctx, actor, submission.TaskID)
	if err != nil {
		return models.TaskSubmission{}, models.Task{}, err
	}
	return submission, task, nil
}

func (s *helpService) thread(ctx context.Context, submission models.TaskSubmission) (dto.HelpThreadResponse, error) {
	messages, err := s.messages.ListBySubmission(ctx, submission.ID)
	if err != nil {
		return dto.HelpThreadResponse{}, err
	}
	return dto.NewHelpThreadResponse(submission, messages), nil
}
