package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-tasks-api/internal/dto"
	"github.com/noah-isme/gema-tasks-api/internal/models"
	"github.com/noah-isme/gema-tasks-api/internal/repository"
)

var (
	// ErrFolderNotFound indicates the folder does not exist.
	ErrFolderNotFound = errors.New("folder not found")
	// ErrFolderForbidden indicates the folder belongs to another student.
	ErrFolderForbidden = errors.New("folder belongs to another student")
	// ErrFolderAssignmentNotFound indicates the task is not filed in any folder.
	ErrFolderAssignmentNotFound = errors.New("task is not in a folder")
	// ErrInvalidFolderName indicates the folder name is empty after sanitization.
	ErrInvalidFolderName = errors.New("folder name empty after sanitization")
)

// FolderService lets a student organise assigned tasks into personal folders.
type FolderService interface {
	CreateFolder(ctx context.Context, actor Actor, payload dto.FolderCreateRequest) (dto.FolderResponse, error)
	ListFolders(ctx context.Context, actor Actor) ([]dto.FolderResponse, error)
	DeleteFolder(ctx context.Context, actor Actor, folderID uint) error
	AssignTask(ctx context.Context, actor Actor, taskID, folderID uint) (dto.FolderAssignmentResponse, error)
	UnassignTask(ctx context.Context, actor Actor, taskID uint) error
	ListAssignments(ctx context.Context, actor Actor) ([]dto.FolderAssignmentResponse, error)
}

type folderService struct {
	access    taskAccess
	folders   repository.FolderRepository
	validator *validator.Validate
	logger    zerolog.Logger
	sanitizer *bluemonday.Policy
}

// NewFolderService constructs the folder service.
func NewFolderService(tasks repository.TaskRepository, folders repository.FolderRepository, validate *validator.Validate, logger zerolog.Logger) FolderService {
	return &folderService{
		access:    taskAccess{tasks: tasks},
		folders:   folders,
		validator: validate,
		logger:    logger.With().Str("component", "folder_service").Logger(),
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (s *folderService) CreateFolder(ctx context.Context, actor Actor, payload dto.FolderCreateRequest) (dto.FolderResponse, error) {
	if !actor.IsStudent() {
		return dto.FolderResponse{}, ErrFolderForbidden
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.FolderResponse{}, err
	}

	name := strings.TrimSpace(s.sanitizer.Sanitize(payload.Name))
	if name == "" {
		return dto.FolderResponse{}, ErrInvalidFolderName
	}

	folder := models.TaskFolder{
		StudentID: actor.ID,
		Name:      name,
		Color:     strings.ToLower(strings.TrimSpace(payload.Color)),
	}
	if err := s.folders.CreateFolder(ctx, &folder); err != nil {
		return dto.FolderResponse{}, err
	}

	return dto.NewFolderResponse(folder), nil
}

func (s *folderService) ListFolders(ctx context.Context, actor Actor) ([]dto.FolderResponse, error) {
	if !actor.IsStudent() {
		return nil, ErrFolderForbidden
	}
	folders, err := s.folders.ListFolders(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewFolderResponseSlice(folders), nil
}

func (s *folderService) DeleteFolder(ctx context.Context, actor Actor, folderID uint) error {
	if _, err := s.ownedFolder(ctx, actor, folderID); err != nil {
		return err
	}
	if err := s.folders.DeleteFolder(ctx, folderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFolderNotFound
		}
		return err
	}
	s.logger.Info().Uint("folder_id", folderID).Uint("student_id", actor.ID).Msg("folder deleted")
	return nil
}

func (s *folderService) AssignTask(ctx context.Context, actor Actor, taskID, folderID uint) (dto.FolderAssignmentResponse, error) {
	if _, err := s.ownedFolder(ctx, actor, folderID); err != nil {
		return dto.FolderAssignmentResponse{}, err
	}
	if _, err := s.access.forStudent(ctx, actor, taskID); err != nil {
		return dto.FolderAssignmentResponse{}, err
	}

	assignment := models.TaskFolderAssignment{TaskID: taskID, StudentID: actor.ID, FolderID: folderID}
	if err := s.folders.AssignTask(ctx, &assignment); err != nil {
		return dto.FolderAssignmentResponse{}, err
	}

	return dto.FolderAssignmentResponse{TaskID: taskID, FolderID: folderID}, nil
}

func (s *folderService) UnassignTask(ctx context.Context, actor Actor, taskID uint) error {
	if !actor.IsStudent() {
		return ErrFolderForbidden
	}
	if err := s.folders.UnassignTask(ctx, taskID, actor.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFolderAssignmentNotFound
		}
		return err
	}
	return nil
}

func (s *folderService) ListAssignments(ctx context.Context, actor Actor) ([]dto.FolderAssignmentResponse, error) {
	if !actor.IsStudent() {
		return nil, ErrFolderForbidden
	}
	assignments, err := s.folders.ListAssignments(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewFolderAssignmentResponseSlice(assignments), nil
}

func (s *folderService) ownedFolder(ctx context.Context, actor Actor, folderID uint) (models.TaskFolder, error) {
	if !actor.IsStudent() {
		return models.TaskFolder{}, ErrFolderForbidden
	}
	folder, err := s.folders.GetFolder(ctx, folderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.TaskFolder{}, ErrFolderNotFound
		}
		return models.TaskFolder{}, err
	}
	if folder.StudentID != actor.ID {
		return models.TaskFolder{}, ErrFolderForbidden
	}
	return folder, nil
}
