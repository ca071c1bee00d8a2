package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-tasks-api/internal/dto"
	"github.com/noah-isme/gema-tasks-api/internal/service"
	"github.com/noah-isme/gema-tasks-api/internal/utils"
)

// FolderHandler exposes a student's private task folders.
type FolderHandler struct {
	service service.FolderService
	logger  zerolog.Logger
}

// NewFolderHandler constructs a folder handler.
func NewFolderHandler(service service.FolderService, logger zerolog.Logger) *FolderHandler {
	return &FolderHandler{
		service: service,
		logger:  logger.With().Str("component", "folder_handler").Logger(),
	}
}

// Register binds the folder routes. The router is expected to be student-only.
func (h *FolderHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Post("/", h.create)
	router.Get("/assignments", h.listAssignments)
	router.Delete("/assignments/:taskId", h.unassign)
	router.Delete("/:id", h.delete)
	router.Put("/:id/tasks/:taskId", h.assign)
}

func (h *FolderHandler) list(c *fiber.Ctx) error {
	folders, err := h.service.ListFolders(requestContext(c), actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "folders retrieved", folders)
}

func (h *FolderHandler) create(c *fiber.Ctx) error {
	var payload dto.FolderCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	folder, err := h.service.CreateFolder(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "folder created", folder)
}

func (h *FolderHandler) delete(c *fiber.Ctx) error {
	folderID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid folder id")
	}

	if err := h.service.DeleteFolder(requestContext(c), actorFromContext(c), folderID); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "folder deleted", nil)
}

func (h *FolderHandler) assign(c *fiber.Ctx) error {
	folderID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid folder id")
	}
	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	assignment, err := h.service.AssignTask(requestContext(c), actorFromContext(c), taskID, folderID)
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "task filed", assignment)
}

func (h *FolderHandler) unassign(c *fiber.Ctx) error {
	taskID, err := parseUintParam(c, "taskId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}

	if err := h.service.UnassignTask(requestContext(c), actorFromContext(c), taskID); err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "task removed from folder", nil)
}

func (h *FolderHandler) listAssignments(c *fiber.Ctx) error {
	assignments, err := h.service.ListAssignments(requestContext(c), actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "folder assignments retrieved", assignments)
}

func (h *FolderHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrFolderNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "folder not found")
	case errors.Is(err, service.ErrFolderAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "task is not in a folder")
	case errors.Is(err, service.ErrTaskNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "task not found")
	case errors.Is(err, service.ErrFolderForbidden), errors.Is(err, service.ErrTaskForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "folder not accessible")
	case errors.Is(err, service.ErrInvalidFolderName):
		return utils.SendError(c, fiber.StatusBadRequest, "folder name must not be empty")
	case isValidationError(err):
		return utils.Fail(c, fiber.StatusBadRequest, "invalid folder payload", utils.ValidationDetails(err))
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("folder request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "")
	}
}
