package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/taskwire/taskwire/internal/api/shared"
	"github.com/taskwire/taskwire/internal/domain"
	"github.com/taskwire/taskwire/internal/store"
)

// TaskPublisher is the realtime notification hook invoked after every task
// mutation. Implemented by events.Publisher; publishing is fire-and-forget,
// so handler responses never wait on or fail from event delivery.
type TaskPublisher interface {
	TaskMutated(ctx context.Context, task *domain.Task)
}

// TaskHandler handles task CRUD requests and publishes a realtime event for
// every successful mutation.
type TaskHandler struct {
	taskStore store.TaskStore
	publisher TaskPublisher
	validator *validator.Validate
}

// NewTaskHandler creates a new TaskHandler with the given dependencies.
func NewTaskHandler(taskStore store.TaskStore, publisher TaskPublisher) *TaskHandler {
	return &TaskHandler{
		taskStore: taskStore,
		publisher: publisher,
		validator: validator.New(),
	}
}

// Create handles POST /tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateTaskRequest
	if err := DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	task, err := domain.NewTask(userID, req.Title, req.Description, req.DueDate)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task data: "+err.Error())
		return
	}

	if err := h.taskStore.Create(r.Context(), task); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to create task", err)
		return
	}

	h.publisher.TaskMutated(r.Context(), task)

	shared.RespondWithJSON(w, r, http.StatusCreated, task)
}

// Get handles GET /tasks/{task_id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	taskID, err := getPathUUID(r, "task_id")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.fetchOwnedTask(w, r, taskID, userID)
	if err != nil {
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// Update handles PATCH /tasks/{task_id}.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	taskID, err := getPathUUID(r, "task_id")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateTaskRequest
	if err := DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	task, err := h.fetchOwnedTask(w, r, taskID, userID)
	if err != nil {
		return
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.IsCompleted != nil {
		task.IsCompleted = *req.IsCompleted
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	task.UpdatedAt = time.Now().UTC()

	if err := task.Validate(); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task data: "+err.Error())
		return
	}

	if err := h.taskStore.Update(r.Context(), task); err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to update task", err)
		return
	}

	h.publisher.TaskMutated(r.Context(), task)

	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// Delete handles DELETE /tasks/{task_id}.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	taskID, err := getPathUUID(r, "task_id")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.fetchOwnedTask(w, r, taskID, userID)
	if err != nil {
		return
	}

	if err := h.taskStore.Delete(r.Context(), taskID, userID); err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to delete task", err)
		return
	}

	h.publisher.TaskMutated(r.Context(), task)

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"message": "success"})
}

// List handles GET /tasks with pagination and filtering.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit, page, filter, err := parseTaskQuery(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	total, err := h.taskStore.Count(r.Context(), userID, filter)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to fetch tasks", err)
		return
	}

	tasks, err := h.taskStore.List(r.Context(), userID, filter)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to fetch tasks", err)
		return
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{
		Meta: TaskListMeta{Limit: limit, Page: page, Total: total},
		Data: tasks,
	})
}

// fetchOwnedTask loads a task and enforces ownership, writing the error
// response itself when the task is missing or owned by someone else.
func (h *TaskHandler) fetchOwnedTask(
	w http.ResponseWriter,
	r *http.Request,
	taskID, userID uuid.UUID,
) (*domain.Task, error) {
	task, err := h.taskStore.GetByID(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Task not found")
			return nil, err
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to fetch task", err)
		return nil, err
	}

	if task.UserID != userID {
		shared.RespondWithError(w, r, http.StatusForbidden, "Cannot access this resource")
		return nil, store.ErrTaskNotFound
	}

	return task, nil
}

// parseTaskQuery extracts pagination and filter parameters from the request.
func parseTaskQuery(r *http.Request) (limit, page int, filter store.TaskFilter, err error) {
	query := r.URL.Query()

	limit = 20
	if raw := query.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > 100 {
			return 0, 0, filter, errors.New("limit must be an integer between 1 and 100")
		}
	}

	page = 1
	if raw := query.Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page <= 0 {
			return 0, 0, filter, errors.New("page must be a positive integer")
		}
	}

	if raw := query.Get("start_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return 0, 0, filter, errors.New("start_date must be an RFC 3339 timestamp")
		}
		filter.CreatedAfter = &t
	}

	if raw := query.Get("due_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return 0, 0, filter, errors.New("due_date must be an RFC 3339 timestamp")
		}
		filter.DueAfter = &t
	}

	if raw := query.Get("is_completed"); raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			return 0, 0, filter, errors.New("is_completed must be a boolean")
		}
		filter.CompletedOnly = completed
	}

	filter.Limit = limit
	filter.Offset = limit * (page - 1)
	return limit, page, filter, nil
}
