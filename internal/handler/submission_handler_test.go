package handler_test

import (
	"net/http"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-tasks-api/internal/dto"
	"github.com/noah-isme/gema-tasks-api/internal/models"
)

func TestSubmissionLifecycleCompletesTask(t *testing.T) {
	app, db := setupApp(t)
	group := seedGroup(t, db, aliceUser.id, bobUser.id)
	taskID := createClassTask(t, app, group.ID)

	resp := doJSON(t, app, http.MethodGet, taskPath(taskID, "/submission"), aliceUser, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var initial dto.SubmissionResponse
	decodeData(t, resp, &initial)
	require.False(t, initial.Exists)
	require.Equal(t, "not-started", initial.Status)
	require.Equal(t, []string{"explain"}, initial.MissingFields)

	resp = doJSON(t, app, http.MethodPut, taskPath(taskID, "/submission"), aliceUser, map[string]interface{}{
		"answers": map[string]interface{}{"explain": "short", "result": 0},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var saved dto.SubmissionResponse
	decodeData(t, resp, &saved)
	require.True(t, saved.Exists)
	require.Equal(t, "in-progress", saved.Status)
	require.Greater(t, saved.Progress, 0)
	require.Less(t, saved.Progress, 100)

	resp = doJSON(t, app, http.MethodPost, taskPath(taskID, "/submission/submit"), bobUser, nil)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	denied := decodeEnvelope(t, resp)
	require.False(t, denied.Success)
	require.Equal(t, []interface{}{"explain"}, denied.Details["missing_fields"])

	var count int64
	require.NoError(t, db.Model(&models.TaskSubmission{}).Where("task_id = ? AND student_id = ?", taskID, bobUser.id).Count(&count).Error)
	require.Zero(t, count)

	resp = doJSON(t, app, http.MethodPost, taskPath(taskID, "/submission/submit"), aliceUser, map[string]interface{}{
		"answers": map[string]interface{}{"explain": "add the numerators over a common denominator"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var submitted dto.SubmissionResponse
	decodeData(t, resp, &submitted)
	require.Equal(t, "completed", submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)
	require.Equal(t, "completed", string(submitted.Badge.Kind))

	resp = doJSON(t, app, http.MethodGet, taskPath(taskID, ""), teacherUser, nil)
	var task dto.TaskResponse
	decodeData(t, resp, &task)
	require.Equal(t, "active", task.Status)

	resp = doJSON(t, app, http.MethodPost, taskPath(taskID, "/submission/submit"), bobUser, map[string]interface{}{
		"answers": map[string]interface{}{"explain": "find a common denominator first"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, taskPath(taskID, ""), teacherUser, nil)
	decodeData(t, resp, &task)
	require.Equal(t, "completed", task.Status)

	resp = doJSON(t, app, http.MethodGet, taskPath(taskID, "/submissions"), teacherUser, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var summaries []dto.SubmissionSummaryResponse
	decodeData(t, resp, &summaries)
	require.Len(t, summaries, 2)

	resp = doJSON(t, app, http.MethodPost, taskPath(taskID, "/completion-check"), teacherUser, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var check dto.CompletionCheckResponse
	decodeData(t, resp, &check)
	require.Equal(t, 2, check.AssignedCount)
	require.Equal(t, 2, check.CompletedCount)
	require.False(t, check.TransitionApplied)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/notifications", teacherUser, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var notifications []dto.NotificationResponse
	body := decodeData(t, resp, &notifications)
	require.Len(t, notifications, 1)
	require.Equal(t, models.NotificationTaskCompleted, notifications[0].Type)
	require.EqualValues(t, 1, body.Meta["unread_count"])
}

func TestSubmissionRoutesEnforceAccess(t *testing.T) {
	app, db := setupApp(t)
	group := seedGroup(t, db, aliceUser.id)
	taskID := createClassTask(t, app, group.ID)

	resp := doJSON(t, app, http.MethodGet, taskPath(taskID, "/submission"), carolUser, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, taskPath(taskID, "/submission"), teacherUser, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, taskPath(taskID, "/submissions"), otherTeacher, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, taskPath(taskID+99, "/submission"), aliceUser, nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/tasks/abc/submission", aliceUser, nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPut, taskPath(taskID, "/submission"), aliceUser, map[string]interface{}{})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decodeEnvelope(t, resp)
	require.Equal(t, "required", body.Details["answers"])

	resp = doJSON(t, app, http.MethodGet, taskPath(taskID, "/submission"), identity{}, nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestSubmissionResponseContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "submission.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + filepath.ToSlash(schemaPath))
	require.NoError(t, err)

	app, db := setupApp(t)
	group := seedGroup(t, db, aliceUser.id)
	taskID := createClassTask(t, app, group.ID)

	resp := doJSON(t, app, http.MethodGet, taskPath(taskID, "/submission"), aliceUser, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NoError(t, schema.Validate(decodeRaw(t, resp)))

	resp = doJSON(t, app, http.MethodPut, taskPath(taskID, "/submission"), aliceUser, map[string]interface{}{
		"answers": map[string]interface{}{"explain": "twelve chars", "result": 3.5, "unknown": true},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	payload := decodeRaw(t, resp)
	require.NoError(t, schema.Validate(payload))

	answers := payload.(map[string]interface{})["data"].(map[string]interface{})["answers"].(map[string]interface{})
	require.NotContains(t, answers, "unknown")
}
