package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"taskapi/internal/cache"
	apperrors "taskapi/internal/errors"
	"taskapi/internal/metrics"
	"taskapi/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestTaskService_CreateTask(t *testing.T) {
	tests := []struct {
		name          string
		input         TaskInput
		repoErr       error
		expectCall    bool
		expectedError error
		check         func(t *testing.T, task *model.Task)
	}{
		{
			name:       "applies defaults",
			input:      TaskInput{Title: "  A  ", Description: "B"},
			expectCall: true,
			check: func(t *testing.T, task *model.Task) {
				assert.Equal(t, "A", task.Title)
				assert.Equal(t, model.TaskPriorityMedium, task.Priority)
				assert.Equal(t, model.TaskStatusOpen, task.Status)
				assert.Equal(t, uint(7), task.UserID)
			},
		},
		{
			name:       "keeps explicit values",
			input:      TaskInput{Title: "A", Priority: model.TaskPriorityLow, Status: model.TaskStatusDone},
			expectCall: true,
			check: func(t *testing.T, task *model.Task) {
				assert.Equal(t, model.TaskPriorityLow, task.Priority)
				assert.Equal(t, model.TaskStatusDone, task.Status)
			},
		},
		{
			name:          "missing title",
			input:         TaskInput{Title: "   "},
			expectedError: apperrors.ErrValidation,
		},
		{
			name:          "title too long",
			input:         TaskInput{Title: strings.Repeat("x", 256)},
			expectedError: apperrors.ErrValidation,
		},
		{
			name:       "multibyte title counts characters",
			input:      TaskInput{Title: strings.Repeat("日", 255)},
			expectCall: true,
			check: func(t *testing.T, task *model.Task) {
				assert.Equal(t, 255, utf8.RuneCountInString(task.Title))
			},
		},
		{
			name:          "multibyte title too long",
			input:         TaskInput{Title: strings.Repeat("日", 256)},
			expectedError: apperrors.ErrValidation,
		},
		{
			name:          "unknown priority",
			input:         TaskInput{Title: "A", Priority: "urgent"},
			expectedError: apperrors.ErrValidation,
		},
		{
			name:          "unknown status",
			input:         TaskInput{Title: "A", Status: "closed"},
			expectedError: apperrors.ErrValidation,
		},
		{
			name:          "store rejects owner",
			input:         TaskInput{Title: "A"},
			repoErr:       gorm.ErrForeignKeyViolated,
			expectCall:    true,
			expectedError: apperrors.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockTaskRepository)
			if tt.expectCall {
				repo.On("CreateTask", mock.Anything, mock.AnythingOfType("*model.Task")).Return(tt.repoErr)
			}
			svc := NewTaskService(repo, nil, nil)

			task, err := svc.CreateTask(context.Background(), 7, tt.input)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, task)
			} else {
				require.NoError(t, err)
				tt.check(t, task)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestTaskService_CreateTaskStoreFailureIsInternal(t *testing.T) {
	repo := new(MockTaskRepository)
	repo.On("CreateTask", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	svc := NewTaskService(repo, nil, nil)

	_, err := svc.CreateTask(context.Background(), 1, TaskInput{Title: "A"})

	require.Error(t, err)
	assert.Equal(t, 500, apperrors.MapErrorToHTTP(err).StatusCode)
}

func TestTaskService_ListTasksNeverNil(t *testing.T) {
	repo := new(MockTaskRepository)
	repo.On("ListTasksByOwner", mock.Anything, uint(1)).Return([]model.Task(nil), nil)
	svc := NewTaskService(repo, nil, nil)

	tasks, err := svc.ListTasks(context.Background(), 1)

	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestTaskService_NotFoundMapping(t *testing.T) {
	repo := new(MockTaskRepository)
	repo.On("GetTaskByIDAndOwner", mock.Anything, uint(10), uint(2)).Return(nil, gorm.ErrRecordNotFound)
	repo.On("UpdateTaskByIDAndOwner", mock.Anything, uint(10), uint(2), mock.Anything).Return(nil, gorm.ErrRecordNotFound)
	repo.On("DeleteTaskByIDAndOwner", mock.Anything, uint(10), uint(2)).Return(gorm.ErrRecordNotFound)
	m := metrics.New()
	svc := NewTaskService(repo, nil, m)
	ctx := context.Background()

	_, err := svc.GetTask(ctx, 2, 10)
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)

	_, err = svc.UpdateTask(ctx, 2, 10, model.TaskChanges{Title: ptr("x")})
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)

	err = svc.DeleteTask(ctx, 2, 10)
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	for _, op := range []string{"get", "update", "delete"} {
		assert.Contains(t, rec.Body.String(), `taskapi_task_operations_total{operation="`+op+`",result="not_found"} 1`)
	}
}

func TestTaskService_UpdateValidation(t *testing.T) {
	repo := new(MockTaskRepository)
	svc := NewTaskService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.UpdateTask(ctx, 1, 1, model.TaskChanges{Title: ptr("  ")})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.UpdateTask(ctx, 1, 1, model.TaskChanges{Priority: ptr(model.TaskPriority("asap"))})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.UpdateTask(ctx, 1, 1, model.TaskChanges{Status: ptr(model.TaskStatus("archived"))})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	repo.AssertNotCalled(t, "UpdateTaskByIDAndOwner", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTaskService_UpdateTrimsTitle(t *testing.T) {
	repo := new(MockTaskRepository)
	repo.On("UpdateTaskByIDAndOwner", mock.Anything, uint(3), uint(1), mock.MatchedBy(func(c model.TaskChanges) bool {
		return c.Title != nil && *c.Title == "clean" && c.Status == nil
	})).Return(&model.Task{ID: 3, UserID: 1, Title: "clean"}, nil)
	svc := NewTaskService(repo, nil, nil)

	task, err := svc.UpdateTask(context.Background(), 1, 3, model.TaskChanges{Title: ptr(" clean ")})

	require.NoError(t, err)
	assert.Equal(t, "clean", task.Title)
	repo.AssertExpectations(t)
}

func TestTaskService_GetTaskUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.New(mr.Addr(), "", 0)
	repo := new(MockTaskRepository)
	repo.On("GetTaskByIDAndOwner", mock.Anything, uint(4), uint(1)).
		Return(&model.Task{ID: 4, UserID: 1, Title: "cached"}, nil).Once()
	svc := NewTaskService(repo, c, nil)
	ctx := context.Background()

	first, err := svc.GetTask(ctx, 1, 4)
	require.NoError(t, err)
	second, err := svc.GetTask(ctx, 1, 4)
	require.NoError(t, err)

	assert.Equal(t, first.Title, second.Title)
	assert.True(t, mr.Exists("task:1:4"))
	assert.LessOrEqual(t, mr.TTL("task:1:4"), 30*time.Second)
	repo.AssertNumberOfCalls(t, "GetTaskByIDAndOwner", 1)

	mr.FastForward(31 * time.Second)
	assert.False(t, mr.Exists("task:1:4"))
}

func TestTaskService_WritesInvalidateCache(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.New(mr.Addr(), "", 0)
	repo := new(MockTaskRepository)
	repo.On("UpdateTaskByIDAndOwner", mock.Anything, uint(4), uint(1), mock.Anything).
		Return(&model.Task{ID: 4, UserID: 1, Title: "new"}, nil)
	repo.On("DeleteTaskByIDAndOwner", mock.Anything, uint(5), uint(1)).Return(nil)
	svc := NewTaskService(repo, c, nil)
	ctx := context.Background()

	require.NoError(t, mr.Set("task:1:4", `{"id":4,"user_id":1,"title":"old"}`))
	require.NoError(t, mr.Set("task:1:5", `{"id":5,"user_id":1,"title":"gone"}`))

	_, err := svc.UpdateTask(ctx, 1, 4, model.TaskChanges{Title: ptr("new")})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteTask(ctx, 1, 5))

	assert.False(t, mr.Exists("task:1:4"))
	assert.False(t, mr.Exists("task:1:5"))
}

func TestTaskService_CacheIsOwnerScoped(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.New(mr.Addr(), "", 0)
	repo := new(MockTaskRepository)
	repo.On("GetTaskByIDAndOwner", mock.Anything, uint(4), uint(2)).Return(nil, gorm.ErrRecordNotFound)
	svc := NewTaskService(repo, c, nil)

	require.NoError(t, mr.Set("task:1:4", `{"id":4,"user_id":1,"title":"private"}`))

	_, err := svc.GetTask(context.Background(), 2, 4)
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)
}
