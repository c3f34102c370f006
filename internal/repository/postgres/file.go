package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Rrens/projecthub/internal/domain"
)

// FileRepository handles file metadata access
type FileRepository struct {
	db *DB
}

// NewFileRepository creates a new file repository
func NewFileRepository(db *DB) *FileRepository {
	return &FileRepository{db: db}
}

const fileColumns = `id, project_id, name, content_type, size, storage_path, uploaded_by, created_at`

func scanFile(row pgx.Row) (*domain.File, error) {
	var f domain.File
	if err := row.Scan(
		&f.ID,
		&f.ProjectID,
		&f.Name,
		&f.ContentType,
		&f.Size,
		&f.StoragePath,
		&f.UploadedBy,
		&f.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &f, nil
}

// Create records file metadata
func (r *FileRepository) Create(ctx context.Context, file *domain.File) error {
	query := `INSERT INTO project_files (` + fileColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Pool.Exec(ctx, query,
		file.ID,
		file.ProjectID,
		file.Name,
		file.ContentType,
		file.Size,
		file.StoragePath,
		file.UploadedBy,
		file.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

// GetByID retrieves file metadata of a project
func (r *FileRepository) GetByID(ctx context.Context, projectID, id uuid.UUID) (*domain.File, error) {
	query := `SELECT ` + fileColumns + ` FROM project_files WHERE id = $1 AND project_id = $2`

	file, err := scanFile(r.db.Pool.QueryRow(ctx, query, id, projectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return file, nil
}

// ListByProject lists the files of a project, newest first
func (r *FileRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.File, error) {
	query := `SELECT ` + fileColumns + ` FROM project_files WHERE project_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	files := []domain.File{}
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, *file)
	}
	return files, rows.Err()
}

// Delete removes file metadata
func (r *FileRepository) Delete(ctx context.Context, projectID, id uuid.UUID) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM project_files WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return false, fmt.Errorf("failed to delete file: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
