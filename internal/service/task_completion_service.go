package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-tasks-api/internal/dto"
	"github.com/noah-isme/gema-tasks-api/internal/models"
	"github.com/noah-isme/gema-tasks-api/internal/observability"
	"github.com/noah-isme/gema-tasks-api/internal/repository"
)

const (
	completionQueueGroup   = "tasks-completion"
	completionCheckTimeout = 10 * time.Second
)

// CompletionResult describes one run of the completion aggregator.
type CompletionResult struct {
	TaskID            uint
	Status            models.TaskStatus
	AssignedCount     int
	CompletedCount    int
	TransitionApplied bool
}

// ToResponse converts the result for transport.
func (r CompletionResult) ToResponse() dto.CompletionCheckResponse {
	return dto.CompletionCheckResponse{
		TaskID:            r.TaskID,
		Status:            string(r.Status),
		AssignedCount:     r.AssignedCount,
		CompletedCount:    r.CompletedCount,
		TransitionApplied: r.TransitionApplied,
	}
}

// CompletionChecker is the part of the aggregator the submission flow depends on.
type CompletionChecker interface {
	CheckCompletion(ctx context.Context, taskID uint) (CompletionResult, error)
	ScheduleRecheck(ctx context.Context, taskID uint) error
}

// TaskCompletionService closes a task once every assigned student has completed it.
//
// The check reads membership and completions, then conditionally writes the task status without a
// transaction. Two students completing at the same moment can both observe an unfinished class and
// leave the task active. Every later completion, a manual check or a queued recheck heals that.
type TaskCompletionService interface {
	CompletionChecker
	Start(ctx context.Context)
}

type completionRecheck struct {
	TaskID      uint      `json:"task_id"`
	RequestedAt time.Time `json:"requested_at"`
}

type taskCompletionService struct {
	tasks         repository.TaskRepository
	submissions   repository.SubmissionRepository
	notifications NotificationPublisher
	overview      OverviewInvalidator
	nats          *nats.Conn
	subject       string
	logger        zerolog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// NewTaskCompletionService wires the aggregator. natsConn may be nil, which disables deferred rechecks.
func NewTaskCompletionService(tasks repository.TaskRepository, submissions repository.SubmissionRepository, notifications NotificationPublisher, overview OverviewInvalidator, natsConn *nats.Conn, subject string, logger zerolog.Logger) TaskCompletionService {
	return &taskCompletionService{
		tasks:         tasks,
		submissions:   submissions,
		notifications: notifications,
		overview:      overview,
		nats:          natsConn,
		subject:       subject,
		logger:        logger.With().Str("component", "task_completion_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/gema-tasks-api/internal/service/task_completion"),
		now:           time.Now,
	}
}

func (s *taskCompletionService) CheckCompletion(ctx context.Context, taskID uint) (CompletionResult, error) {
	spanCtx, span := s.tracer.Start(ctx, "task_completion.check", trace.WithAttributes(
		attribute.Int64("task.id", int64(taskID)),
	))
	defer span.End()

	task, err := taskAccess{tasks: s.tasks}.load(spanCtx, taskID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load task")
		return CompletionResult{}, err
	}

	result := CompletionResult{TaskID: task.ID, Status: task.Status}

	// Rosters change after creation, so membership is resolved on every run.
	assigned, err := s.tasks.AssignedStudentIDs(spanCtx, taskID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve assignees")
		return CompletionResult{}, fmt.Errorf("resolve assignees: %w", err)
	}
	result.AssignedCount = len(assigned)
	if len(assigned) == 0 {
		return result, nil
	}

	completedIDs, err := s.submissions.CompletedStudentIDs(spanCtx, taskID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load completions")
		return CompletionResult{}, fmt.Errorf("load completions: %w", err)
	}

	completed := make(map[uint]struct{}, len(completedIDs))
	for _, id := range completedIDs {
		completed[id] = struct{}{}
	}

	allDone := true
	for _, id := range assigned {
		if _, ok := completed[id]; ok {
			result.CompletedCount++
		} else {
			allDone = false
		}
	}

	span.SetAttributes(
		attribute.Int("task.assigned", result.AssignedCount),
		attribute.Int("task.completed", result.CompletedCount),
	)

	if !allDone || task.IsCompleted() {
		return result, nil
	}

	if err := s.tasks.SetStatus(spanCtx, taskID, models.TaskStatusCompleted); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "set task status")
		return CompletionResult{}, fmt.Errorf("set task status: %w", err)
	}

	result.Status = models.TaskStatusCompleted
	result.TransitionApplied = true
	observability.TaskCompletions().Inc()
	invalidateOverview(spanCtx, s.overview, taskID)

	s.logger.Info().Uint("task_id", taskID).Int("students", result.AssignedCount).Msg("task completed by all assigned students")
	notifyBestEffort(spanCtx, s.logger, s.notifications, dto.NotificationCreateRequest{
		UserID:  strconv.FormatUint(uint64(task.TeacherID), 10),
		Type:    models.NotificationTaskCompleted,
		Message: fmt.Sprintf("All students completed %q", task.Title),
		Metadata: map[string]interface{}{
			"task_id": task.ID,
		},
	})

	return result, nil
}

func (s *taskCompletionService) ScheduleRecheck(ctx context.Context, taskID uint) error {
	if s.nats == nil || s.subject == "" {
		s.logger.Debug().Uint("task_id", taskID).Msg("deferred recheck disabled, skipping")
		return nil
	}

	payload, err := json.Marshal(completionRecheck{TaskID: taskID, RequestedAt: s.now().UTC()})
	if err != nil {
		return err
	}

	if err := s.nats.Publish(s.subject, payload); err != nil {
		observability.CompletionRechecks().WithLabelValues("failed").Inc()
		return fmt.Errorf("publish recheck: %w", err)
	}

	observability.CompletionRechecks().WithLabelValues("scheduled").Inc()
	return nil
}

func (s *taskCompletionService) Start(ctx context.Context) {
	if s.nats == nil || s.subject == "" {
		return
	}

	sub, err := s.nats.QueueSubscribe(s.subject, completionQueueGroup, func(msg *nats.Msg) {
		s.handleRecheck(ctx, msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to completion recheck subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain completion recheck subscription")
		}
	}()
}

func (s *taskCompletionService) handleRecheck(ctx context.Context, payload []byte) {
	var event completionRecheck
	if err := json.Unmarshal(payload, &event); err != nil || event.TaskID == 0 {
		s.logger.Warn().Err(err).Msg("invalid completion recheck payload")
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, completionCheckTimeout)
	defer cancel()

	if _, err := s.CheckCompletion(checkCtx, event.TaskID); err != nil {
		observability.CompletionRechecks().WithLabelValues("failed").Inc()
		s.logger.Error().Err(err).Uint("task_id", event.TaskID).Msg("deferred completion recheck failed")
		return
	}
	observability.CompletionRechecks().WithLabelValues("processed").Inc()
}
