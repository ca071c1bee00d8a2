package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-tasks-api/internal/dto"
	"github.com/noah-isme/gema-tasks-api/internal/models"
)

func newCompletionForTest(env testEnv) *taskCompletionService {
	return NewTaskCompletionService(env.tasks, env.submissions, env.notifications, nil, nil, "", zerolog.Nop()).(*taskCompletionService)
}

func submitFor(t *testing.T, svc SubmissionService, actor Actor, taskID uint) {
	t.Helper()
	result, err := svc.Submit(context.Background(), actor, taskID, dto.SubmissionSubmitRequest{Answers: models.Answers{
		"explain": models.TextAnswer("because a half is two quarters"),
	}})
	require.NoError(t, err)
	require.True(t, result.Accepted)
}

func TestTaskCompletionFlipsOnlyAfterWholeGroupCompletes(t *testing.T) {
	env := newTestEnv(t)
	task, _ := env.seedClassTask(t, alice.ID, bob.ID, carol.ID)
	completion := newCompletionForTest(env)
	submissions := newSubmissionServiceForTest(env, completion)

	submitFor(t, submissions, alice, task.ID)
	require.Equal(t, models.TaskStatusActive, env.taskStatus(t, task.ID))

	submitFor(t, submissions, bob, task.ID)
	require.Equal(t, models.TaskStatusActive, env.taskStatus(t, task.ID))

	// A save without submit never completes the task, even at full progress.
	_, err := submissions.Save(context.Background(), carol, task.ID, dto.SubmissionSaveRequest{Answers: models.Answers{
		"explain": models.TextAnswer("fully written answer"),
		"result":  models.NumberAnswer(1),
	}})
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusActive, env.taskStatus(t, task.ID))

	submitFor(t, submissions, carol, task.ID)
	require.Equal(t, models.TaskStatusCompleted, env.taskStatus(t, task.ID))
	require.Equal(t, []string{models.NotificationTaskCompleted}, env.notifications.types())
}

func TestTaskCompletionIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	task, _ := env.seedClassTask(t, alice.ID)
	completion := newCompletionForTest(env)
	submitFor(t, newSubmissionServiceForTest(env, completion), alice, task.ID)

	result, err := completion.CheckCompletion(context.Background(), task.ID)
	require.NoError(t, err)
	require.False(t, result.TransitionApplied)
	require.Equal(t, models.TaskStatusCompleted, result.Status)
	require.Equal(t, 1, result.AssignedCount)
	require.Equal(t, 1, result.CompletedCount)
	require.Len(t, env.notifications.types(), 1)
}

func TestTaskCompletionNoOpWithoutAssignees(t *testing.T) {
	env := newTestEnv(t)
	task, _ := env.seedClassTask(t)
	completion := newCompletionForTest(env)

	result, err := completion.CheckCompletion(context.Background(), task.ID)
	require.NoError(t, err)
	require.Zero(t, result.AssignedCount)
	require.False(t, result.TransitionApplied)
	require.Equal(t, models.TaskStatusActive, env.taskStatus(t, task.ID))
}

func TestTaskCompletionResolvesRosterLive(t *testing.T) {
	env := newTestEnv(t)
	task, group := env.seedClassTask(t, alice.ID, bob.ID)
	completion := newCompletionForTest(env)
	submitFor(t, newSubmissionServiceForTest(env, completion), alice, task.ID)
	require.Equal(t, models.TaskStatusActive, env.taskStatus(t, task.ID))

	require.NoError(t, env.db.Where("group_id = ? AND student_id = ?", group.ID, bob.ID).Delete(&models.GroupMember{}).Error)

	result, err := completion.CheckCompletion(context.Background(), task.ID)
	require.NoError(t, err)
	require.True(t, result.TransitionApplied)
	require.Equal(t, models.TaskStatusCompleted, env.taskStatus(t, task.ID))
}

func TestTaskCompletionUnknownTask(t *testing.T) {
	env := newTestEnv(t)
	_, err := newCompletionForTest(env).CheckCompletion(context.Background(), 404)
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskCompletionRecheckWithoutBrokerIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, newCompletionForTest(env).ScheduleRecheck(context.Background(), 1))
}

func TestTaskCompletionDeferredRecheckHealsMissedTransition(t *testing.T) {
	env := newTestEnv(t)
	task, _ := env.seedClassTask(t, alice.ID)

	// The submit ran without an aggregator, leaving the task open.
	submitFor(t, newSubmissionServiceForTest(env, nil), alice, task.ID)
	require.Equal(t, models.TaskStatusActive, env.taskStatus(t, task.ID))

	payload, err := json.Marshal(completionRecheck{TaskID: task.ID})
	require.NoError(t, err)

	completion := newCompletionForTest(env)
	completion.handleRecheck(context.Background(), payload)
	require.Equal(t, models.TaskStatusCompleted, env.taskStatus(t, task.ID))

	completion.handleRecheck(context.Background(), []byte("not json"))
	require.Equal(t, models.TaskStatusCompleted, env.taskStatus(t, task.ID))
}
