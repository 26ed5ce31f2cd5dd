package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/phrazzld/bpm-api/internal/domain"
)

// TaskOrder is one ORDER BY clause of a task listing.
// Column is one of the names accepted by IsSortableTaskColumn.
type TaskOrder struct {
	Column string
	Desc   bool
}

// TaskFilter narrows and pages a task listing.
type TaskFilter struct {
	// UserID restricts the listing to tasks assigned to this user when set.
	UserID *uuid.UUID
	// Status restricts the listing to one status when non-empty.
	Status domain.TaskStatus
	// Order is applied in sequence; the task id is always the final tiebreaker.
	Order []TaskOrder
	// Page is 1-based.
	Page    int
	PerPage int
}

// DefaultTaskPageSize is used when TaskFilter.PerPage is not positive.
const DefaultTaskPageSize = 10

// Window returns the LIMIT and OFFSET selecting the filter's page.
// Non-positive Page and PerPage fall back to 1 and DefaultTaskPageSize.
// A page whose offset does not fit in an int is rejected with ErrInvalidEntity.
func (f TaskFilter) Window() (limit, offset int, err error) {
	limit = f.PerPage
	if limit <= 0 {
		limit = DefaultTaskPageSize
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	if page-1 > math.MaxInt/limit {
		return 0, 0, fmt.Errorf("%w: page %d is out of range", ErrInvalidEntity, f.Page)
	}
	return limit, (page - 1) * limit, nil
}

// sortableTaskColumns lists the columns a task listing may be ordered by.
var sortableTaskColumns = map[string]bool{
	"id":                    true,
	"due_at":                true,
	"completed_at":          true,
	"created_at":            true,
	"updated_at":            true,
	"process_request_id":    true,
	"element_name":          true,
	"status":                true,
	"process_requests.id":   true,
	"process_requests.name": true,
}

// IsSortableTaskColumn reports whether a task listing can be ordered by column.
func IsSortableTaskColumn(column string) bool {
	return sortableTaskColumns[column]
}

// TaskStore defines the interface for process request token persistence.
type TaskStore interface {
	// Create saves a new task and assigns its ID.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Task, error)

	// List returns one page of tasks matching filter and the total number of matches.
	List(ctx context.Context, filter TaskFilter) ([]*domain.Task, int, error)

	// UpdateStatus persists the status, completion time and data of a task.
	// Returns ErrTaskNotFound if the task does not exist.
	UpdateStatus(ctx context.Context, task *domain.Task) error

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) TaskStore
}

// ProcessRequestStore defines the interface for process request persistence.
type ProcessRequestStore interface {
	// Create saves a new process request and assigns its ID.
	Create(ctx context.Context, request *domain.ProcessRequest) error

	// GetByID retrieves a process request by ID.
	// Returns ErrProcessRequestNotFound if the request does not exist.
	GetByID(ctx context.Context, id int64) (*domain.ProcessRequest, error)

	// UpdateData replaces the data of a process request.
	// Returns ErrProcessRequestNotFound if the request does not exist.
	UpdateData(ctx context.Context, id int64, data json.RawMessage) error

	// WithTx returns a new ProcessRequestStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ProcessRequestStore
}
