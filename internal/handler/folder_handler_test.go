package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-tasks-api/internal/dto"
	"github.com/noah-isme/gema-tasks-api/internal/models"
)

func TestFolderAssignmentReplacesPreviousFolder(t *testing.T) {
	app, db := setupApp(t)
	group := seedGroup(t, db, aliceUser.id)
	taskID := createClassTask(t, app, group.ID)

	var folders [2]dto.FolderResponse
	for i, name := range []string{"Homework", "Revision"} {
		resp := doJSON(t, app, http.MethodPost, "/api/v1/folders", aliceUser, map[string]interface{}{
			"name":  name,
			"color": "#aabbcc",
		})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		decodeData(t, resp, &folders[i])
	}

	for _, folder := range folders {
		resp := doJSON(t, app, http.MethodPut, fmt.Sprintf("/api/v1/folders/%d/tasks/%d", folder.ID, taskID), aliceUser, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	var rows int64
	require.NoError(t, db.Model(&models.TaskFolderAssignment{}).Where("task_id = ? AND student_id = ?", taskID, aliceUser.id).Count(&rows).Error)
	require.EqualValues(t, 1, rows)

	resp := doJSON(t, app, http.MethodGet, "/api/v1/folders/assignments", aliceUser, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var assignments []dto.FolderAssignmentResponse
	decodeData(t, resp, &assignments)
	require.Equal(t, []dto.FolderAssignmentResponse{{TaskID: taskID, FolderID: folders[1].ID}}, assignments)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/tasks", aliceUser, nil)
	var tasks []dto.StudentTaskResponse
	decodeData(t, resp, &tasks)
	require.Len(t, tasks, 1)
	require.NotNil(t, tasks[0].FolderID)
	require.Equal(t, folders[1].ID, *tasks[0].FolderID)

	resp = doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/v1/folders/assignments/%d", taskID), aliceUser, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/v1/folders/assignments/%d", taskID), aliceUser, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestFolderRoutesAreStudentScoped(t *testing.T) {
	app, db := setupApp(t)
	group := seedGroup(t, db, aliceUser.id, bobUser.id)
	taskID := createClassTask(t, app, group.ID)

	resp := doJSON(t, app, http.MethodGet, "/api/v1/folders", teacherUser, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/v1/folders", aliceUser, map[string]interface{}{"name": "Mine"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var folder dto.FolderResponse
	decodeData(t, resp, &folder)

	resp = doJSON(t, app, http.MethodPut, fmt.Sprintf("/api/v1/folders/%d/tasks/%d", folder.ID, taskID), bobUser, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/v1/folders/%d", folder.ID), bobUser, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/v1/folders", aliceUser, map[string]interface{}{"name": "Mine", "color": "red"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/folders", bobUser, nil)
	var bobFolders []dto.FolderResponse
	decodeData(t, resp, &bobFolders)
	require.Empty(t, bobFolders)

	resp = doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/v1/folders/%d", folder.ID), aliceUser, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
