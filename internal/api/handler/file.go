package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/Rrens/projecthub/internal/api/response"
	"github.com/Rrens/projecthub/internal/domain"
)

// FileService is the file metadata backend of FileHandler
type FileService interface {
	List(ctx context.Context, userID, projectID uuid.UUID) ([]domain.File, error)
	Upload(ctx context.Context, userID, projectID uuid.UUID, input domain.FileCreate) (*domain.File, error)
	Delete(ctx context.Context, userID, projectID, fileID uuid.UUID) error
}

// FileHandler handles file metadata endpoints
type FileHandler struct {
	fileService FileService
}

// NewFileHandler creates a new file handler
func NewFileHandler(fileService FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := projectRequest(w, r)
	if !ok {
		return
	}

	files, err := h.fileService.List(r.Context(), userID, projectID)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.OK(w, files)
}

// Upload registers metadata of a file already placed in storage
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := projectRequest(w, r)
	if !ok {
		return
	}

	var input domain.FileCreate
	if !decode(w, r, &input) {
		return
	}

	file, err := h.fileService.Upload(r.Context(), userID, projectID, input)
	if err != nil {
		serviceError(w, r, err)
		return
	}

	response.Created(w, file)
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := projectRequest(w, r)
	if !ok {
		return
	}
	fileID, ok := urlUUID(w, r, "fileID")
	if !ok {
		return
	}

	if err := h.fileService.Delete(r.Context(), userID, projectID, fileID); err != nil {
		serviceError(w, r, err)
		return
	}

	response.NoContent(w)
}
