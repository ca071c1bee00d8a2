package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-tasks-api/internal/dto"
	"github.com/noah-isme/gema-tasks-api/internal/models"
)

func TestFolderServiceReassignKeepsSingleRow(t *testing.T) {
	env := newTestEnv(t)
	task, _ := env.seedClassTask(t, alice.ID)
	svc := NewFolderService(env.tasks, env.folders, env.validate, zerolog.Nop())
	ctx := context.Background()

	first, err := svc.CreateFolder(ctx, alice, dto.FolderCreateRequest{Name: "Maths", Color: "#FFAA00"})
	require.NoError(t, err)
	require.Equal(t, "#ffaa00", first.Color)
	second, err := svc.CreateFolder(ctx, alice, dto.FolderCreateRequest{Name: "Done"})
	require.NoError(t, err)

	_, err = svc.AssignTask(ctx, alice, task.ID, first.ID)
	require.NoError(t, err)
	_, err = svc.AssignTask(ctx, alice, task.ID, second.ID)
	require.NoError(t, err)

	var rows []models.TaskFolderAssignment
	require.NoError(t, env.db.Where("task_id = ? AND student_id = ?", task.ID, alice.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, second.ID, rows[0].FolderID)

	assignments, err := svc.ListAssignments(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, []dto.FolderAssignmentResponse{{TaskID: task.ID, FolderID: second.ID}}, assignments)

	require.NoError(t, svc.UnassignTask(ctx, alice, task.ID))
	require.ErrorIs(t, svc.UnassignTask(ctx, alice, task.ID), ErrFolderAssignmentNotFound)
}

func TestFolderServiceScopesFoldersToStudent(t *testing.T) {
	env := newTestEnv(t)
	task, _ := env.seedClassTask(t, alice.ID, bob.ID)
	svc := NewFolderService(env.tasks, env.folders, env.validate, zerolog.Nop())
	ctx := context.Background()

	folder, err := svc.CreateFolder(ctx, alice, dto.FolderCreateRequest{Name: "Mine"})
	require.NoError(t, err)

	_, err = svc.AssignTask(ctx, bob, task.ID, folder.ID)
	require.ErrorIs(t, err, ErrFolderForbidden)
	require.ErrorIs(t, svc.DeleteFolder(ctx, bob, folder.ID), ErrFolderForbidden)

	_, err = svc.AssignTask(ctx, carol, task.ID, folder.ID)
	require.ErrorIs(t, err, ErrFolderForbidden)

	_, err = svc.CreateFolder(ctx, teacher, dto.FolderCreateRequest{Name: "x"})
	require.ErrorIs(t, err, ErrFolderForbidden)

	_, err = svc.CreateFolder(ctx, alice, dto.FolderCreateRequest{Name: "<i></i>"})
	require.ErrorIs(t, err, ErrInvalidFolderName)

	require.NoError(t, svc.DeleteFolder(ctx, alice, folder.ID))
	require.ErrorIs(t, svc.DeleteFolder(ctx, alice, folder.ID), ErrFolderNotFound)

	folders, err := svc.ListFolders(ctx, alice)
	require.NoError(t, err)
	require.Empty(t, folders)
}

func TestFolderServiceRequiresAssignedTask(t *testing.T) {
	env := newTestEnv(t)
	task, _ := env.seedClassTask(t, bob.ID)
	svc := NewFolderService(env.tasks, env.folders, env.validate, zerolog.Nop())
	ctx := context.Background()

	folder, err := svc.CreateFolder(ctx, alice, dto.FolderCreateRequest{Name: "Mine"})
	require.NoError(t, err)

	_, err = svc.AssignTask(ctx, alice, task.ID, folder.ID)
	require.ErrorIs(t, err, ErrTaskForbidden)
}
