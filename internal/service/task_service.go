package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/bpm-api/internal/domain"
	"github.com/phrazzld/bpm-api/internal/store"
)

// Task listing page sizes
const (
	DefaultTasksPerPage = 10
	MaxTasksPerPage     = 100
)

// TaskListOptions narrows a task listing.
type TaskListOptions struct {
	Status  domain.TaskStatus
	Order   []store.TaskOrder
	Page    int
	PerPage int
}

// TaskPage is one page of a task listing.
type TaskPage struct {
	Tasks   []*domain.Task
	Total   int
	Page    int
	PerPage int
}

// TotalPages returns the number of pages of the listing.
func (p *TaskPage) TotalPages() int {
	if p.PerPage <= 0 || p.Total == 0 {
		return 0
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// TaskDetails is a task with its optional includes.
type TaskDetails struct {
	Task *domain.Task
	User *domain.User // nil unless requested and the task is assigned
}

// TaskService provides the task operations of the API.
// Non-administrators only see and complete tasks assigned to them.
type TaskService interface {
	// List returns one page of the tasks visible to viewer.
	List(ctx context.Context, viewer *domain.User, opts TaskListOptions) (*TaskPage, error)

	// Get returns a task visible to viewer. The assigned user is loaded when includeUser is set.
	// Returns store.ErrTaskNotFound or ErrNotOwned.
	Get(ctx context.Context, viewer *domain.User, taskID int64, includeUser bool) (*TaskDetails, error)

	// Update changes the status of a task. Only domain.TaskStatusCompleted is accepted;
	// data is merged into the process request data.
	Update(ctx context.Context, viewer *domain.User, taskID int64, status domain.TaskStatus, data map[string]any) (*domain.Task, error)
}

// taskService implements the TaskService interface
type taskService struct {
	repo     store.Repository
	tx       store.Transactor
	workflow *WorkflowManager
	logger   *slog.Logger
}

var _ TaskService = (*taskService)(nil)

// NewTaskService creates a TaskService.
func NewTaskService(
	repo store.Repository,
	tx store.Transactor,
	workflow *WorkflowManager,
	logger *slog.Logger,
) (TaskService, error) {
	if repo == nil || tx == nil {
		return nil, fmt.Errorf("repository and transactor cannot be nil")
	}
	if workflow == nil {
		return nil, fmt.Errorf("workflow manager cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &taskService{
		repo:     repo,
		tx:       tx,
		workflow: workflow,
		logger:   logger.With("component", "task_service"),
	}, nil
}

// List implements TaskService.
func (s *taskService) List(ctx context.Context, viewer *domain.User, opts TaskListOptions) (*TaskPage, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	switch {
	case opts.PerPage <= 0:
		opts.PerPage = DefaultTasksPerPage
	case opts.PerPage > MaxTasksPerPage:
		opts.PerPage = MaxTasksPerPage
	}

	filter := store.TaskFilter{
		Status:  opts.Status,
		Order:   opts.Order,
		Page:    opts.Page,
		PerPage: opts.PerPage,
	}
	if !viewer.IsAdministrator {
		id := viewer.ID
		filter.UserID = &id
	}

	tasks, total, err := s.repo.Tasks().List(ctx, filter)
	if err != nil {
		if errors.Is(err, store.ErrInvalidEntity) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "failed to list tasks",
			slog.String("error", err.Error()),
			slog.String("user_id", viewer.ID.String()))
		return nil, NewServiceError("task", "list", "failed to list tasks", err)
	}

	return &TaskPage{
		Tasks:   tasks,
		Total:   total,
		Page:    opts.Page,
		PerPage: opts.PerPage,
	}, nil
}

// Get implements TaskService.
func (s *taskService) Get(ctx context.Context, viewer *domain.User, taskID int64, includeUser bool) (*TaskDetails, error) {
	task, err := s.visibleTask(ctx, s.repo, viewer, taskID)
	if err != nil {
		return nil, err
	}

	details := &TaskDetails{Task: task}
	if includeUser && task.UserID != nil {
		user, err := s.repo.Users().GetByID(ctx, *task.UserID)
		switch {
		case err == nil:
			details.User = user
		case errors.Is(err, store.ErrUserNotFound):
			s.logger.WarnContext(ctx, "task assigned to missing user",
				slog.Int64("task_id", taskID),
				slog.String("user_id", task.UserID.String()))
		default:
			return nil, NewServiceError("task", "get", "failed to load assigned user", err)
		}
	}
	return details, nil
}

// Update implements TaskService.
func (s *taskService) Update(
	ctx context.Context,
	viewer *domain.User,
	taskID int64,
	status domain.TaskStatus,
	data map[string]any,
) (*domain.Task, error) {
	if status != domain.TaskStatusCompleted {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var completed *domain.Task
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repo store.Repository) error {
		task, err := s.visibleTask(ctx, repo, viewer, taskID)
		if err != nil {
			return err
		}
		if err := s.workflow.CompleteTask(ctx, repo, task, data); err != nil {
			return err
		}
		completed = task
		return nil
	})
	if err != nil {
		s.logger.DebugContext(ctx, "task update rejected",
			slog.Int64("task_id", taskID),
			slog.String("error", err.Error()))
		return nil, err
	}
	return completed, nil
}

func (s *taskService) visibleTask(ctx context.Context, repo store.Repository, viewer *domain.User, taskID int64) (*domain.Task, error) {
	task, err := repo.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !viewer.IsAdministrator && !task.IsAssignedTo(viewer.ID) {
		return nil, ErrNotOwned
	}
	return task, nil
}
