package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-tasks-api/internal/dto"
	"github.com/noah-isme/gema-tasks-api/internal/middleware"
	"github.com/noah-isme/gema-tasks-api/internal/service"
	"github.com/noah-isme/gema-tasks-api/internal/utils"
)

// HelpHandler exposes the help-request channel between students and teachers.
type HelpHandler struct {
	service service.HelpService
	logger  zerolog.Logger
}

// NewHelpHandler constructs a help handler.
func NewHelpHandler(service service.HelpService, logger zerolog.Logger) *HelpHandler {
	return &HelpHandler{
		service: service,
		logger:  logger.With().Str("component", "help_handler").Logger(),
	}
}

// Register binds the help routes.
func (h *HelpHandler) Register(router fiber.Router) {
	router.Post("/tasks/:taskId/help", middleware.RequireStudent(), middleware.RateLimit("help-request", 20, time.Minute), h.requestHelp)
	router.Get("/submissions/:id/help", h.thread)
	router.Post("/submissions/:id/help/responses", middleware.RequireTeacher(), h.respond)
	router.Post("/submissions/:id/help/read", middleware.RequireStudent(), h.markRead)
	router.Post("/submissions/:id/help/resolve", middleware.RequireTeacher(), h.resolve)
	router.Get("/help/open", middleware.RequireTeacher(), h.openRequests)
}

func (h *HelpHandler) requestHelp(c *fiber.Ctx) error {
	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	var payload dto.HelpRequestCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	thread, err := h.service.RequestHelp(requestContext(c), actorFromContext(c), taskID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "help requested", thread)
}

func (h *HelpHandler) thread(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	thread, err := h.service.Thread(requestContext(c), actorFromContext(c), submissionID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "help thread retrieved", thread)
}

func (h *HelpHandler) respond(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	var payload dto.HelpResponseCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	thread, err := h.service.Respond(requestContext(c), actorFromContext(c), submissionID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "help response sent", thread)
}

func (h *HelpHandler) markRead(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	thread, err := h.service.MarkRead(requestContext(c), actorFromContext(c), submissionID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "help responses read", thread)
}

func (h *HelpHandler) resolve(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	thread, err := h.service.Resolve(requestContext(c), actorFromContext(c), submissionID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "help request resolved", thread)
}

func (h *HelpHandler) openRequests(c *fiber.Ctx) error {
	requests, err := h.service.OpenRequests(requestContext(c), actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "open help requests", requests)
}

func (h *HelpHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "task not found")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrTaskForbidden), errors.Is(err, service.ErrSubmissionForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "help thread not accessible")
	case errors.Is(err, service.ErrEmptyHelpMessage):
		return utils.SendError(c, fiber.StatusBadRequest, "message must not be empty")
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "invalid help payload", utils.ValidationDetails(err))
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("help request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "")
	}
}
