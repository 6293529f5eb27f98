package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"taskapi/internal/cache"
	apperrors "taskapi/internal/errors"
	"taskapi/internal/metrics"
	"taskapi/internal/model"
	"taskapi/internal/repository"
)

const (
	// taskCacheTTL bounds staleness: a read that loses a race with an update
	// can repopulate the key after the update invalidated it.
	taskCacheTTL   = 30 * time.Second
	maxTitleLength = 255
)

// TaskInput carries the fields of a new task.
type TaskInput struct {
	Title       string
	Description string
	Priority    model.TaskPriority
	Status      model.TaskStatus
}

// TaskService exposes owner-scoped task operations.
type TaskService interface {
	CreateTask(ctx context.Context, ownerID uint, input TaskInput) (*model.Task, error)
	ListTasks(ctx context.Context, ownerID uint) ([]model.Task, error)
	GetTask(ctx context.Context, ownerID, id uint) (*model.Task, error)
	UpdateTask(ctx context.Context, ownerID, id uint, changes model.TaskChanges) (*model.Task, error)
	DeleteTask(ctx context.Context, ownerID, id uint) error
}

type taskService struct {
	repo    repository.TaskRepository
	cache   *cache.Client
	metrics *metrics.Metrics
}

// NewTaskService builds a TaskService with repository and cache.
func NewTaskService(repo repository.TaskRepository, cache *cache.Client, m *metrics.Metrics) TaskService {
	return &taskService{repo: repo, cache: cache, metrics: m}
}

func (s *taskService) cacheKey(ownerID, id uint) string {
	return fmt.Sprintf("task:%d:%d", ownerID, id)
}

func (s *taskService) observe(op string, start time.Time, err error) {
	result := metrics.ResultOK
	switch {
	case errors.Is(err, apperrors.ErrTaskNotFound):
		result = metrics.ResultNotFound
	case err != nil:
		result = metrics.ResultError
	}
	s.metrics.ObserveTaskOp(op, result, time.Since(start))
}

func (s *taskService) CreateTask(ctx context.Context, ownerID uint, input TaskInput) (task *model.Task, err error) {
	defer func(start time.Time) { s.observe("create", start, err) }(time.Now())

	title := strings.TrimSpace(input.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	priority := input.Priority
	if priority == "" {
		priority = model.TaskPriorityMedium
	}
	status := input.Status
	if status == "" {
		status = model.TaskStatusOpen
	}
	if err := validateEnums(&priority, &status); err != nil {
		return nil, err
	}

	task = &model.Task{
		Title:       title,
		Description: input.Description,
		Priority:    priority,
		Status:      status,
		UserID:      ownerID,
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, fmt.Errorf("%w: owner does not exist", apperrors.ErrValidation)
		}
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

func (s *taskService) ListTasks(ctx context.Context, ownerID uint) (tasks []model.Task, err error) {
	defer func(start time.Time) { s.observe("list", start, err) }(time.Now())

	tasks, err = s.repo.ListTasksByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

func (s *taskService) GetTask(ctx context.Context, ownerID, id uint) (task *model.Task, err error) {
	defer func(start time.Time) { s.observe("get", start, err) }(time.Now())

	var cached model.Task
	if s.cache.GetJSON(ctx, s.cacheKey(ownerID, id), &cached) && cached.UserID == ownerID {
		return &cached, nil
	}

	task, err = s.repo.GetTaskByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return nil, mapTaskErr(err, "get task")
	}

	s.cache.SetJSON(ctx, s.cacheKey(ownerID, id), task, taskCacheTTL)
	return task, nil
}

func (s *taskService) UpdateTask(ctx context.Context, ownerID, id uint, changes model.TaskChanges) (task *model.Task, err error) {
	defer func(start time.Time) { s.observe("update", start, err) }(time.Now())

	if changes.Title != nil {
		title := strings.TrimSpace(*changes.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		changes.Title = &title
	}
	if err := validateEnums(changes.Priority, changes.Status); err != nil {
		return nil, err
	}

	task, err = s.repo.UpdateTaskByIDAndOwner(ctx, id, ownerID, changes)
	if err != nil {
		return nil, mapTaskErr(err, "update task")
	}

	_ = s.cache.Delete(ctx, s.cacheKey(ownerID, id))
	return task, nil
}

func (s *taskService) DeleteTask(ctx context.Context, ownerID, id uint) (err error) {
	defer func(start time.Time) { s.observe("delete", start, err) }(time.Now())

	if err := s.repo.DeleteTaskByIDAndOwner(ctx, id, ownerID); err != nil {
		return mapTaskErr(err, "delete task")
	}

	_ = s.cache.Delete(ctx, s.cacheKey(ownerID, id))
	return nil
}

func mapTaskErr(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrTaskNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func validateTitle(title string) error {
	if title == "" {
		return fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return fmt.Errorf("%w: title must be at most %d characters", apperrors.ErrValidation, maxTitleLength)
	}
	return nil
}

func validateEnums(priority *model.TaskPriority, status *model.TaskStatus) error {
	if priority != nil && !priority.Valid() {
		return fmt.Errorf("%w: priority must be one of low, medium, high", apperrors.ErrValidation)
	}
	if status != nil && !status.Valid() {
		return fmt.Errorf("%w: status must be one of open, in_progress, done", apperrors.ErrValidation)
	}
	return nil
}
