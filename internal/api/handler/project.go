package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/Rrens/projecthub/internal/api/middleware"
	"github.com/Rrens/projecthub/internal/api/response"
	"github.com/Rrens/projecthub/internal/domain"
)

// ProjectService is the project backend of ProjectHandler
type ProjectService interface {
	Create(ctx context.Context, userID uuid.UUID, input domain.ProjectCreate) (*domain.Project, error)
	Get(ctx context.Context, userID, projectID uuid.UUID) (*domain.Project, error)
	List(ctx context.Context, userID uuid.UUID) ([]domain.Project, error)
	Update(ctx context.Context, userID, projectID uuid.UUID, input domain.ProjectUpdate) (*domain.Project, error)
	Delete(ctx context.Context, userID, projectID uuid.UUID) error
}

// ProjectHandler handles project endpoints
type ProjectHandler struct {
	projectService ProjectService
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projectService ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// List handles listing the user's projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	projects, err := h.projectService.List(r.Context(), userID)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, projects)
}

// Create handles project creation
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var input domain.ProjectCreate
	if !decode(w, r, &input) {
		return
	}

	project, err := h.projectService.Create(r.Context(), userID, input)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.Created(w, project)
}

// Get handles getting a project by ID
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := projectRequest(w, r)
	if !ok {
		return
	}

	project, err := h.projectService.Get(r.Context(), userID, projectID)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, project)
}

// Update handles project updates
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := projectRequest(w, r)
	if !ok {
		return
	}

	var input domain.ProjectUpdate
	if !decode(w, r, &input) {
		return
	}

	project, err := h.projectService.Update(r.Context(), userID, projectID, input)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, project)
}

// Delete handles project deletion
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := projectRequest(w, r)
	if !ok {
		return
	}

	if err := h.projectService.Delete(r.Context(), userID, projectID); err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, map[string]any{"id": projectID})
}

// projectRequest reads the caller and project set by the auth and project
// middlewares
func projectRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return uuid.Nil, uuid.Nil, false
	}

	projectID, ok := middleware.GetProjectID(r.Context())
	if !ok {
		response.BadRequest(w, "missing project ID")
		return uuid.Nil, uuid.Nil, false
	}

	return userID, projectID, true
}
