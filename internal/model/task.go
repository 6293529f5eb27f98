package model

import "time"

// TaskPriority represents how urgent a task is.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// TaskStatus represents the progress state of a task.
type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "open"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// Task is a unit of work owned by exactly one user.
type Task struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	Title       string       `json:"title" gorm:"size:255;not null"`
	Description string       `json:"description" gorm:"type:text"`
	Priority    TaskPriority `json:"priority" gorm:"type:varchar(20);not null;default:'medium';index"`
	Status      TaskStatus   `json:"status" gorm:"type:varchar(20);not null;default:'open';index"`
	UserID      uint         `json:"user_id" gorm:"not null;index"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	// Relations
	User *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TaskChanges carries the fields of a partial task update. Nil fields are
// left untouched.
type TaskChanges struct {
	Title       *string
	Description *string
	Priority    *TaskPriority
	Status      *TaskStatus
}

// Empty reports whether no field is set.
func (c TaskChanges) Empty() bool {
	return c.Title == nil && c.Description == nil && c.Priority == nil && c.Status == nil
}

// Columns returns the column/value map used by GORM Updates.
func (c TaskChanges) Columns() map[string]interface{} {
	cols := make(map[string]interface{}, 4)
	if c.Title != nil {
		cols["title"] = *c.Title
	}
	if c.Description != nil {
		cols["description"] = *c.Description
	}
	if c.Priority != nil {
		cols["priority"] = *c.Priority
	}
	if c.Status != nil {
		cols["status"] = *c.Status
	}
	return cols
}

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusOpen, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}
