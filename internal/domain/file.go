package domain

import (
	"time"

	"github.com/google/uuid"
)

// File is the metadata record of a file attached to a project.
// The bytes live in external storage referenced by StoragePath.
type File struct {
	ID          uuid.UUID `json:"id"`
	ProjectID   uuid.UUID `json:"project_id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	StoragePath string    `json:"storage_path"`
	UploadedBy  uuid.UUID `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// FileCreate represents file metadata registration
type FileCreate struct {
	Name        string `json:"name" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"required,max=127"`
	Size        int64  `json:"size" validate:"gte=0"`
	StoragePath string `json:"storage_path" validate:"required,max=1024"`
}
