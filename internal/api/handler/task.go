package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/Rrens/projecthub/internal/api/response"
	"github.com/Rrens/projecthub/internal/domain"
)

// TaskService is the task backend of TaskHandler
type TaskService interface {
	List(ctx context.Context, userID, projectID uuid.UUID) ([]domain.Task, error)
	Create(ctx context.Context, userID, projectID uuid.UUID, input domain.TaskCreate) (*domain.Task, error)
	Update(ctx context.Context, userID, projectID, taskID uuid.UUID, input domain.TaskUpdate) (*domain.Task, error)
	Delete(ctx context.Context, userID, projectID, taskID uuid.UUID) error
}

// TaskHandler handles task endpoints
type TaskHandler struct {
	taskService TaskService
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := projectRequest(w, r)
	if !ok {
		return
	}

	tasks, err := h.taskService.List(r.Context(), userID, projectID)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, tasks)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := projectRequest(w, r)
	if !ok {
		return
	}

	var input domain.TaskCreate
	if !decode(w, r, &input) {
		return
	}

	task, err := h.taskService.Create(r.Context(), userID, projectID, input)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.Created(w, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := projectRequest(w, r)
	if !ok {
		return
	}
	taskID, ok := urlUUID(w, r, "taskID")
	if !ok {
		return
	}

	var input domain.TaskUpdate
	if !decode(w, r, &input) {
		return
	}

	task, err := h.taskService.Update(r.Context(), userID, projectID, taskID, input)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := projectRequest(w, r)
	if !ok {
		return
	}
	taskID, ok := urlUUID(w, r, "taskID")
	if !ok {
		return
	}

	if err := h.taskService.Delete(r.Context(), userID, projectID, taskID); err != nil {
		serviceError(w, r, err)
		return
	}

	response.NoContent(w)
}
