package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Rrens/projecthub/internal/domain"
)

// FileService records file metadata attached to projects
type FileService struct {
	fileRepo domain.FileRepository
	access   access
	events   EventEmitter
}

// NewFileService creates a new file service
func NewFileService(fileRepo domain.FileRepository, memberRepo domain.MemberRepository, events EventEmitter) *FileService {
	return &FileService{
		fileRepo: fileRepo,
		access:   access{members: memberRepo},
		events:   emitterOrNop(events),
	}
}

func (s *FileService) List(ctx context.Context, userID, projectID uuid.UUID) ([]domain.File, error) {
	if _, err := s.access.member(ctx, projectID, userID); err != nil {
		return nil, err
	}

	files, err := s.fileRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// Upload registers an uploaded file
func (s *FileService) Upload(ctx context.Context, userID, projectID uuid.UUID, input domain.FileCreate) (*domain.File, error) {
	if _, err := s.access.member(ctx, projectID, userID); err != nil {
		return nil, err
	}

	file := &domain.File{
		ID:          uuid.New(),
		ProjectID:   projectID,
		Name:        input.Name,
		ContentType: input.ContentType,
		Size:        input.Size,
		StoragePath: input.StoragePath,
		UploadedBy:  userID,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.fileRepo.Create(ctx, file); err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	s.events.Emit(ctx, domain.NewFileEvent(domain.ActionUploaded, *file))
	return file, nil
}

// Delete deletes a file. Only the uploader or a manager may do so.
func (s *FileService) Delete(ctx context.Context, userID, projectID, fileID uuid.UUID) error {
	member, err := s.access.member(ctx, projectID, userID)
	if err != nil {
		return err
	}

	file, err := s.fileRepo.GetByID(ctx, projectID, fileID)
	if err != nil {
		return fmt.Errorf("failed to get file: %w", err)
	}
	if file == nil {
		return ErrNotFound
	}
	if file.UploadedBy != userID && !domain.CanManage(member.Role) {
		return ErrAdminRequired
	}

	deleted, err := s.fileRepo.Delete(ctx, projectID, fileID)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}

	s.events.Emit(ctx, domain.NewFileEvent(domain.ActionDeleted, *file))
	return nil
}
