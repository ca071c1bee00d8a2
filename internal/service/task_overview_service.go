package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-tasks-api/internal/dto"
	"github.com/noah-isme/gema-tasks-api/internal/models"
	"github.com/noah-isme/gema-tasks-api/internal/observability"
	"github.com/noah-isme/gema-tasks-api/internal/progress"
	"github.com/noah-isme/gema-tasks-api/internal/repository"
)

// OverviewInvalidator drops cached overviews after a mutation on the task.
type OverviewInvalidator interface {
	Invalidate(ctx context.Context, taskID uint)
}

func invalidateOverview(ctx context.Context, invalidator OverviewInvalidator, taskID uint) {
	if invalidator != nil {
		invalidator.Invalidate(ctx, taskID)
	}
}

// TaskOverviewService produces the teacher's per-task progress dashboard.
type TaskOverviewService interface {
	OverviewInvalidator
	GetOverview(ctx context.Context, actor Actor, taskID uint) (dto.TaskOverviewResponse, bool, error)
}

type taskOverviewService struct {
	access       taskAccess
	tasks        repository.TaskRepository
	submissions  repository.SubmissionRepository
	helpMessages repository.HelpMessageRepository
	cache        *redis.Client
	cacheTTL     time.Duration
	logger       zerolog.Logger
	now          func() time.Time
}

// NewTaskOverviewService builds the overview aggregator. cache may be nil.
func NewTaskOverviewService(tasks repository.TaskRepository, submissions repository.SubmissionRepository, helpMessages repository.HelpMessageRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) TaskOverviewService {
	return &taskOverviewService{
		access:       taskAccess{tasks: tasks},
		tasks:        tasks,
		submissions:  submissions,
		helpMessages: helpMessages,
		cache:        cache,
		cacheTTL:     ttl,
		logger:       logger.With().Str("component", "task_overview_service").Logger(),
		now:          time.Now,
	}
}

func overviewCacheKey(taskID uint) string {
	return fmt.Sprintf("overview:task:%d", taskID)
}

func (s *taskOverviewService) GetOverview(ctx context.Context, actor Actor, taskID uint) (dto.TaskOverviewResponse, bool, error) {
	task, err := s.access.forTeacher(ctx, actor, taskID)
	if err != nil {
		return dto.TaskOverviewResponse{}, false, err
	}

	cacheKey := overviewCacheKey(taskID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.TaskOverviewResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				observability.OverviewCache().WithLabelValues("hit").Inc()
				s.logger.Debug().Uint("task_id", taskID).Msg("overview cache hit")
				return response, true, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read overview cache")
		}
	}
	observability.OverviewCache().WithLabelValues("miss").Inc()

	assigned, err := s.tasks.AssignedStudentIDs(ctx, taskID)
	if err != nil {
		return dto.TaskOverviewResponse{}, false, err
	}

	submissions, err := s.submissions.ListByTask(ctx, taskID)
	if err != nil {
		return dto.TaskOverviewResponse{}, false, err
	}

	ids := make([]uint, 0, len(submissions))
	for _, submission := range submissions {
		ids = append(ids, submission.ID)
	}
	messages, err := s.helpMessages.ListBySubmissions(ctx, ids)
	if err != nil {
		return dto.TaskOverviewResponse{}, false, err
	}

	response := s.buildResponse(task, assigned, submissions, messages)

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store overview cache")
			}
		}
	}

	return response, false, nil
}

func (s *taskOverviewService) Invalidate(ctx context.Context, taskID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, overviewCacheKey(taskID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("task_id", taskID).Msg("failed to invalidate overview cache")
	}
}

// buildResponse lists every assigned student. Submissions of students no longer on the roster are left out.
func (s *taskOverviewService) buildResponse(task models.Task, assigned []uint, submissions []models.TaskSubmission, messages map[uint][]models.HelpMessage) dto.TaskOverviewResponse {
	byStudent := make(map[uint]models.TaskSubmission, len(submissions))
	for _, submission := range submissions {
		byStudent[submission.StudentID] = submission
	}

	summary := dto.TaskOverviewSummary{Assigned: len(assigned)}
	students := make([]dto.TaskOverviewStudent, 0, len(assigned))
	var progressTotal int

	for _, studentID := range assigned {
		submission, exists := byStudent[studentID]
		if !exists {
			summary.NotStarted++
			students = append(students, dto.TaskOverviewStudent{
				StudentID: studentID,
				Status:    string(models.SubmissionStatusNotStarted),
				Badge:     progress.StatusBadge(models.SubmissionStatusNotStarted, false, nil),
			})
			continue
		}

		switch submission.Status {
		case models.SubmissionStatusCompleted:
			summary.Completed++
		default:
			summary.InProgress++
		}
		if submission.NeedsHelp && !submission.IsCompleted() {
			summary.NeedsHelp++
		}
		progressTotal += submission.Progress

		lastSaved := submission.LastSaved
		students = append(students, dto.TaskOverviewStudent{
			StudentID:     studentID,
			Status:        string(submission.Status),
			Progress:      submission.Progress,
			NeedsHelp:     submission.NeedsHelp,
			HasUnreadHelp: submission.HasUnreadHelp,
			Badge:         progress.StatusBadge(submission.Status, submission.NeedsHelp, messages[submission.ID]),
			LastSaved:     &lastSaved,
			SubmittedAt:   submission.SubmittedAt,
		})
	}

	if summary.Assigned > 0 {
		summary.AverageProgress = roundTwo(float64(progressTotal) / float64(summary.Assigned))
		summary.CompletionRate = roundTwo(float64(summary.Completed) / float64(summary.Assigned) * 100)
	}

	return dto.TaskOverviewResponse{
		TaskID:      task.ID,
		Title:       task.Title,
		Status:      string(task.Status),
		DueDate:     task.DueDate,
		Summary:     summary,
		Students:    students,
		GeneratedAt: s.now().UTC(),
	}
}

func roundTwo(value float64) float64 {
	return math.Round(value*100) / 100
}
