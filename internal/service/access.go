package service

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-tasks-api/internal/models"
	"github.com/noah-isme/gema-tasks-api/internal/repository"
)

// Roles understood by the task services.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

var (
	// ErrTaskNotFound indicates the task does not exist.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskForbidden indicates the actor is neither the owning teacher nor an assigned student.
	ErrTaskForbidden = errors.New("task not accessible")
	// ErrInvalidTask wraps task definition problems the validator cannot express.
	ErrInvalidTask = errors.New("invalid task definition")
	// ErrSubmissionNotFound indicates the submission does not exist.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrSubmissionForbidden indicates the actor may not modify the submission.
	ErrSubmissionForbidden = errors.New("submission not accessible")
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   uint
	Role string
}

// IsTeacher reports whether the actor acts with teacher privileges.
func (a Actor) IsTeacher() bool {
	role := strings.ToLower(strings.TrimSpace(a.Role))
	return role == RoleTeacher || role == RoleAdmin
}

// IsStudent reports whether the actor is a student.
func (a Actor) IsStudent() bool {
	return strings.ToLower(strings.TrimSpace(a.Role)) == RoleStudent
}

// taskAccess resolves tasks and the actor's relation to them.
type taskAccess struct {
	tasks repository.TaskRepository
}

func (a taskAccess) load(ctx context.Context, taskID uint) (models.Task, error) {
	task, err := a.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, err
	}
	return task, nil
}

// forTeacher loads the task and checks the actor owns it.
func (a taskAccess) forTeacher(ctx context.Context, actor Actor, taskID uint) (models.Task, error) {
	if !actor.IsTeacher() {
		return models.Task{}, ErrTaskForbidden
	}
	task, err := a.load(ctx, taskID)
	if err != nil {
		return models.Task{}, err
	}
	if task.TeacherID != actor.ID && !strings.EqualFold(actor.Role, RoleAdmin) {
		return models.Task{}, ErrTaskForbidden
	}
	return task, nil
}

// forStudent loads the task and checks the actor is currently assigned to it.
func (a taskAccess) forStudent(ctx context.Context, actor Actor, taskID uint) (models.Task, error) {
	if !actor.IsStudent() {
		return models.Task{}, ErrTaskForbidden
	}
	task, err := a.load(ctx, taskID)
	if err != nil {
		return models.Task{}, err
	}
	assigned, err := a.isAssigned(ctx, taskID, actor.ID)
	if err != nil {
		return models.Task{}, err
	}
	if !assigned {
		return models.Task{}, ErrTaskForbidden
	}
	return task, nil
}

// forReader allows either the owning teacher or an assigned student.
func (a taskAccess) forReader(ctx context.Context, actor Actor, taskID uint) (models.Task, error) {
	if actor.IsTeacher() {
		return a.forTeacher(ctx, actor, taskID)
	}
	return a.forStudent(ctx, actor, taskID)
}

func (a taskAccess) isAssigned(ctx context.Context, taskID, studentID uint) (bool, error) {
	ids, err := a.tasks.AssignedStudentIDs(ctx, taskID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == studentID {
			return true, nil
		}
	}
	return false, nil
}
