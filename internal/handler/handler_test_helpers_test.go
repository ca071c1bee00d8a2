package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-tasks-api/internal/config"
	"github.com/noah-isme/gema-tasks-api/internal/database"
	"github.com/noah-isme/gema-tasks-api/internal/handler"
	"github.com/noah-isme/gema-tasks-api/internal/middleware"
	"github.com/noah-isme/gema-tasks-api/internal/models"
	"github.com/noah-isme/gema-tasks-api/internal/repository"
	"github.com/noah-isme/gema-tasks-api/internal/router"
	"github.com/noah-isme/gema-tasks-api/internal/service"
)

type identity struct {
	id   uint
	role string
}

var (
	teacherUser  = identity{id: 100, role: "teacher"}
	otherTeacher = identity{id: 200, role: "teacher"}
	aliceUser    = identity{id: 1, role: "student"}
	bobUser      = identity{id: 2, role: "student"}
	carolUser    = identity{id: 3, role: "student"}
)

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Meta    map[string]interface{} `json:"meta"`
	Details map[string]interface{} `json:"details"`
}

// testIdentity stands in for the JWT guard and reads the caller from test headers.
func testIdentity(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Get("X-Test-User"), 10, 64)
	if err != nil || id == 0 {
		return c.SendStatus(fiber.StatusUnauthorized)
	}
	c.Locals("user_id", uint(id))
	c.Locals("user_role", c.Get("X-Test-Role"))
	return c.Next()
}

func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:handler_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	taskRepo := repository.NewTaskRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	helpRepo := repository.NewHelpMessageRepository(db)
	folderRepo := repository.NewFolderRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	overviewService := service.NewTaskOverviewService(taskRepo, submissionRepo, helpRepo, nil, time.Minute, logger)
	notificationService := service.NewNotificationService(notificationRepo, nil, "", nil, validate, logger)
	completionService := service.NewTaskCompletionService(taskRepo, submissionRepo, notificationService, overviewService, nil, "", logger)
	submissionService := service.NewSubmissionService(taskRepo, submissionRepo, helpRepo, completionService, overviewService, validate, logger)
	helpService := service.NewHelpService(taskRepo, submissionRepo, helpRepo, notificationService, overviewService, validate, logger)
	folderService := service.NewFolderService(taskRepo, folderRepo, validate, logger)
	taskService := service.NewTaskService(taskRepo, submissionRepo, helpRepo, folderRepo, overviewService, validate, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		TaskHandler:         handler.NewTaskHandler(taskService, overviewService, completionService, logger),
		SubmissionHandler:   handler.NewSubmissionHandler(submissionService, logger),
		HelpHandler:         handler.NewHelpHandler(helpService, logger),
		FolderHandler:       handler.NewFolderHandler(folderService, logger),
		NotificationHandler: handler.NewNotificationHandler(notificationService, logger, time.Second),
		JWTMiddleware:       testIdentity,
	})

	return app, db
}

func seedGroup(t *testing.T, db *gorm.DB, members ...uint) models.Group {
	t.Helper()
	group := models.Group{Name: "9a", TeacherID: teacherUser.id}
	require.NoError(t, db.Create(&group).Error)
	for _, member := range members {
		require.NoError(t, db.Create(&models.GroupMember{GroupID: group.ID, StudentID: member}).Error)
	}
	return group
}

// createClassTask publishes a task with a required textarea (10 character target) and an optional number.
func createClassTask(t *testing.T, app *fiber.App, groupID uint) uint {
	t.Helper()

	resp := doJSON(t, app, http.MethodPost, "/api/v1/tasks", teacherUser, map[string]interface{}{
		"title":           "Fractions",
		"description":     "Explain how to add fractions",
		"subject":         "math",
		"assignment_type": "class",
		"group_id":        groupID,
		"fields": []map[string]interface{}{
			{
				"id":       "explain",
				"label":    "Explain",
				"kind":     "textarea",
				"required": true,
				"criteria": map[string]interface{}{"type": "characters", "target": 10},
			},
			{"id": "result", "label": "Result", "kind": "number"},
		},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var task struct {
		ID uint `json:"id"`
	}
	decodeData(t, resp, &task)
	require.NotZero(t, task.ID)
	return task.ID
}

func doJSON(t *testing.T, app *fiber.App, method, path string, who identity, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if who.id != 0 {
		req.Header.Set("X-Test-User", strconv.FormatUint(uint64(who.id), 10))
		req.Header.Set("X-Test-Role", who.role)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var body envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func decodeData(t *testing.T, resp *http.Response, target interface{}) envelope {
	t.Helper()
	body := decodeEnvelope(t, resp)
	require.True(t, body.Success, body.Message)
	require.NoError(t, json.Unmarshal(body.Data, target))
	return body
}

func taskPath(taskID uint, suffix string) string {
	return fmt.Sprintf("/api/v1/tasks/%d%s", taskID, suffix)
}

func decodeRaw(t *testing.T, resp *http.Response) interface{} {
	t.Helper()
	defer resp.Body.Close()
	var payload interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}
