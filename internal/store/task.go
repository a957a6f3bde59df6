package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskwire/taskwire/internal/domain"
)

// TaskFilter narrows List results. Zero values mean "no constraint".
type TaskFilter struct {
	// CreatedAfter keeps tasks created at or after the given instant.
	CreatedAfter *time.Time

	// DueAfter keeps tasks whose due date is at or after the given instant.
	DueAfter *time.Time

	// CompletedOnly keeps only completed tasks when true.
	CompletedOnly bool

	// Limit caps the number of returned tasks; 0 means no cap.
	Limit int

	// Offset skips the first N matching tasks, for pagination.
	Offset int
}

// TaskStore defines the interface for task data persistence.
// All operations are scoped to a single owning user where relevant;
// ownership checks beyond that scoping belong to the API layer.
type TaskStore interface {
	// Create saves a new task to the store.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Update modifies an existing task.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// Delete removes a task owned by userID.
	// Returns ErrTaskNotFound if no such task exists for that owner.
	Delete(ctx context.Context, id, userID uuid.UUID) error

	// List returns the user's tasks matching the filter, newest first.
	List(ctx context.Context, userID uuid.UUID, filter TaskFilter) ([]*domain.Task, error)

	// Count returns the number of the user's tasks matching the filter,
	// ignoring the filter's Limit and Offset.
	Count(ctx context.Context, userID uuid.UUID, filter TaskFilter) (int, error)
}
