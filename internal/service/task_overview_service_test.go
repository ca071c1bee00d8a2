package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-tasks-api/internal/dto"
	"github.com/noah-isme/gema-tasks-api/internal/models"
)

func TestTaskOverviewCachesAndInvalidatesOnSave(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()
	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})

	env := newTestEnv(t)
	task, _ := env.seedClassTask(t, alice.ID, bob.ID, carol.ID)
	overview := NewTaskOverviewService(env.tasks, env.submissions, env.messages, redisClient, time.Minute, zerolog.Nop())
	submissions := NewSubmissionService(env.tasks, env.submissions, env.messages, nil, overview, env.validate, zerolog.Nop())
	help := NewHelpService(env.tasks, env.submissions, env.messages, nil, overview, env.validate, zerolog.Nop())
	ctx := context.Background()

	_, err = submissions.Submit(ctx, alice, task.ID, dto.SubmissionSubmitRequest{Answers: models.Answers{
		"explain": models.TextAnswer("ten chars!"),
		"result":  models.NumberAnswer(5),
	}})
	require.NoError(t, err)
	_, err = help.RequestHelp(ctx, bob, task.ID, dto.HelpRequestCreateRequest{Message: "what is a numerator?"})
	require.NoError(t, err)

	first, hit, err := overview.GetOverview(ctx, teacher, task.ID)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 3, first.Summary.Assigned)
	require.Equal(t, 1, first.Summary.Completed)
	require.Equal(t, 1, first.Summary.InProgress)
	require.Equal(t, 1, first.Summary.NotStarted)
	require.Equal(t, 1, first.Summary.NeedsHelp)
	require.InDelta(t, 33.33, first.Summary.AverageProgress, 0.01)
	require.InDelta(t, 33.33, first.Summary.CompletionRate, 0.01)
	require.Len(t, first.Students, 3)
	require.Equal(t, "needs-help", string(first.Students[1].Badge.Kind))
	require.True(t, mini.Exists(overviewCacheKey(task.ID)))

	second, hit, err := overview.GetOverview(ctx, teacher, task.ID)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, first.Summary, second.Summary)

	_, err = submissions.Save(ctx, carol, task.ID, dto.SubmissionSaveRequest{Answers: models.Answers{"result": models.NumberAnswer(1)}})
	require.NoError(t, err)
	require.False(t, mini.Exists(overviewCacheKey(task.ID)))

	third, hit, err := overview.GetOverview(ctx, teacher, task.ID)
	require.NoError(t, err)
	require.False(t, hit)
	require.Zero(t, third.Summary.NotStarted)
}

func TestTaskOverviewWithoutCacheAndForeignTeacher(t *testing.T) {
	env := newTestEnv(t)
	task, _ := env.seedClassTask(t, alice.ID)
	overview := NewTaskOverviewService(env.tasks, env.submissions, env.messages, nil, time.Minute, zerolog.Nop())
	ctx := context.Background()

	response, hit, err := overview.GetOverview(ctx, teacher, task.ID)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 1, response.Summary.NotStarted)
	require.Zero(t, response.Summary.AverageProgress)

	_, _, err = overview.GetOverview(ctx, Actor{ID: 8, Role: RoleTeacher}, task.ID)
	require.ErrorIs(t, err, ErrTaskForbidden)

	_, _, err = overview.GetOverview(ctx, alice, task.ID)
	require.ErrorIs(t, err, ErrTaskForbidden)
}
