package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-tasks-api/internal/dto"
	"github.com/noah-isme/gema-tasks-api/internal/middleware"
	"github.com/noah-isme/gema-tasks-api/internal/service"
	"github.com/noah-isme/gema-tasks-api/internal/utils"
)

// TaskHandler exposes task definitions, the teacher overview and the manual completion check.
type TaskHandler struct {
	tasks      service.TaskService
	overview   service.TaskOverviewService
	completion service.CompletionChecker
	logger     zerolog.Logger
}

// NewTaskHandler constructs a task handler.
func NewTaskHandler(tasks service.TaskService, overview service.TaskOverviewService, completion service.CompletionChecker, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		tasks:      tasks,
		overview:   overview,
		completion: completion,
		logger:     logger.With().Str("component", "task_handler").Logger(),
	}
}

// Register binds the task routes.
func (h *TaskHandler) Register(router fiber.Router) {
	router.Post("/tasks", middleware.RequireTeacher(), h.create)
	router.Get("/tasks", h.list)
	router.Get("/tasks/:taskId", h.get)
	router.Delete("/tasks/:taskId", middleware.RequireTeacher(), h.delete)
	router.Get("/tasks/:taskId/overview", middleware.RequireTeacher(), h.getOverview)
	router.Post("/tasks/:taskId/completion-check", middleware.RequireTeacher(), h.checkCompletion)
}

func (h *TaskHandler) create(c *fiber.Ctx) error {
	var payload dto.TaskCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	task, err := h.tasks.Create(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "task created", task)
}

func (h *TaskHandler) list(c *fiber.Ctx) error {
	actor := actorFromContext(c)
	ctx := requestContext(c)

	if actor.IsTeacher() {
		tasks, err := h.tasks.ListForTeacher(ctx, actor)
		if err != nil {
			return h.handleError(c, err)
		}
		return utils.SendSuccess(c, "tasks retrieved", tasks)
	}

	tasks, err := h.tasks.ListForStudent(ctx, actor)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "tasks retrieved", tasks)
}

func (h *TaskHandler) get(c *fiber.Ctx) error {
	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	task, err := h.tasks.Get(requestContext(c), actorFromContext(c), taskID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "task retrieved", task)
}

func (h *TaskHandler) delete(c *fiber.Ctx) error {
	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	if err := h.tasks.Delete(requestContext(c), actorFromContext(c), taskID); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "task deleted", nil)
}

func (h *TaskHandler) getOverview(c *fiber.Ctx) error {
	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	overview, cacheHit, err := h.overview.GetOverview(requestContext(c), actorFromContext(c), taskID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.OK(c, overview, "task overview", fiber.Map{"cache_hit": cacheHit})
}

func (h *TaskHandler) checkCompletion(c *fiber.Ctx) error {
	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	ctx := requestContext(c)
	if _, err := h.tasks.Get(ctx, actorFromContext(c), taskID); err != nil {
		return h.handleError(c, err)
	}

	result, err := h.completion.CheckCompletion(ctx, taskID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "completion checked", result.ToResponse())
}

func (h *TaskHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "task not found")
	case errors.Is(err, service.ErrTaskForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "task not accessible")
	case errors.Is(err, service.ErrInvalidTask):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "invalid task payload", utils.ValidationDetails(err))
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("task request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "")
	}
}
