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
	"github.com/noah-isme/gema-tasks-api/internal/repository"
)

func TestNotificationServicePublishStreamsAndPersists(t *testing.T) {
	env := newTestEnv(t)
	svc := NewNotificationService(repository.NewNotificationRepository(env.db), nil, "", nil, env.validate, zerolog.Nop())
	ctx := context.Background()

	stream, cleanup := svc.Subscribe("100")
	defer cleanup()

	published, err := svc.Publish(ctx, dto.NotificationCreateRequest{
		UserID:   "100",
		Type:     models.NotificationHelpRequested,
		Message:  "A student asked for <b>help</b>",
		Metadata: map[string]interface{}{"task_id": 4},
	})
	require.NoError(t, err)
	require.Equal(t, "A student asked for help", published.Message)

	select {
	case received := <-stream:
		require.Equal(t, published.ID, received.ID)
	case <-time.After(time.Second):
		t.Fatal("notification was not streamed")
	}

	list, err := svc.List(ctx, "100", false, 10, 0)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.Equal(t, int64(1), list.UnreadCount)
	require.EqualValues(t, 4, list.Items[0].Metadata["task_id"])

	read, err := svc.MarkRead(ctx, published.ID, "100")
	require.NoError(t, err)
	require.True(t, read.Read)

	unread, err := svc.List(ctx, "100", true, 10, 0)
	require.NoError(t, err)
	require.Empty(t, unread.Items)
	require.Zero(t, unread.UnreadCount)

	_, err = svc.MarkRead(ctx, published.ID, "200")
	require.Error(t, err)
}

func TestNotificationServiceFansOutAcrossNodesViaRedis(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	env := newTestEnv(t)
	repo := repository.NewNotificationRepository(env.db)
	sender := NewNotificationService(repo, redis.NewClient(&redis.Options{Addr: mini.Addr()}), "tasks", nil, env.validate, zerolog.Nop())
	receiver := NewNotificationService(repo, redis.NewClient(&redis.Options{Addr: mini.Addr()}), "tasks", nil, env.validate, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	receiver.Start(ctx)

	stream, cleanup := receiver.Subscribe("7")
	defer cleanup()

	require.Eventually(t, func() bool {
		_, err := sender.Publish(ctx, dto.NotificationCreateRequest{UserID: "7", Type: models.NotificationHelpAnswered, Message: "answered"})
		require.NoError(t, err)
		select {
		case received := <-stream:
			return received.Type == models.NotificationHelpAnswered
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
