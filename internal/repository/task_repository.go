package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskapi/internal/model"
)

// TaskRepository defines owner-scoped task persistence. Every lookup is keyed
// on both the task id and the owning user id; a task owned by someone else
// is indistinguishable from a missing one (gorm.ErrRecordNotFound).
type TaskRepository interface {
	CreateTask(ctx context.Context, task *model.Task) error
	ListTasksByOwner(ctx context.Context, ownerID uint) ([]model.Task, error)
	GetTaskByIDAndOwner(ctx context.Context, id, ownerID uint) (*model.Task, error)
	UpdateTaskByIDAndOwner(ctx context.Context, id, ownerID uint, changes model.TaskChanges) (*model.Task, error)
	DeleteTaskByIDAndOwner(ctx context.Context, id, ownerID uint) error
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// CreateTask inserts a task; ID and timestamps are filled in on success.
func (r *taskRepository) CreateTask(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// ListTasksByOwner returns the owner's tasks ordered by id. Never nil.
func (r *taskRepository) ListTasksByOwner(ctx context.Context, ownerID uint) ([]model.Task, error) {
	tasks := make([]model.Task, 0)
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("id").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRepository) GetTaskByIDAndOwner(ctx context.Context, id, ownerID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTaskByIDAndOwner locks the owned row, applies the non-nil changes and
// returns the stored result, all in one transaction. Locking first keeps the
// not-found check independent of whether the values actually changed (MySQL
// reports zero affected rows for a no-op update).
func (r *taskRepository) UpdateTaskByIDAndOwner(ctx context.Context, id, ownerID uint, changes model.TaskChanges) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", id, ownerID).
			First(&task).Error; err != nil {
			return err
		}
		if changes.Empty() {
			return nil
		}
		if err := tx.Model(&task).Updates(changes.Columns()).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", id, ownerID).First(&task).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTaskByIDAndOwner removes the owned row; zero affected rows is gorm.ErrRecordNotFound.
func (r *taskRepository) DeleteTaskByIDAndOwner(ctx context.Context, id, ownerID uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, ownerID).
		Delete(&model.Task{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
