package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Rrens/projecthub/internal/domain"
)

// ProjectService handles project operations
type ProjectService struct {
	projectRepo domain.ProjectRepository
	memberRepo  domain.MemberRepository
	access      access
	events      EventEmitter
}

// NewProjectService creates a new project service. events may be nil.
func NewProjectService(projectRepo domain.ProjectRepository, memberRepo domain.MemberRepository, events EventEmitter) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		memberRepo:  memberRepo,
		access:      access{members: memberRepo},
		events:      emitterOrNop(events),
	}
}

// Create creates a project owned by userID
func (s *ProjectService) Create(ctx context.Context, userID uuid.UUID, input domain.ProjectCreate) (*domain.Project, error) {
	status := input.Status
	if status == "" {
		status = domain.ProjectStatusActive
	}

	now := time.Now().UTC()
	project := &domain.Project{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: input.Description,
		Status:      status,
		OwnerID:     userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.events.Emit(ctx, domain.NewProjectEvent(domain.ActionCreated, *project))
	return project, nil
}

// Get retrieves a project the user is a member of
func (s *ProjectService) Get(ctx context.Context, userID, projectID uuid.UUID) (*domain.Project, error) {
	if _, err := s.access.member(ctx, projectID, userID); err != nil {
		return nil, err
	}

	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return nil, ErrNotFound
	}
	return project, nil
}

// List returns the user's projects, newest first
func (s *ProjectService) List(ctx context.Context, userID uuid.UUID) ([]domain.Project, error) {
	projects, err := s.projectRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// Update updates a project (admin or owner)
func (s *ProjectService) Update(ctx context.Context, userID, projectID uuid.UUID, input domain.ProjectUpdate) (*domain.Project, error) {
	if _, err := s.access.manager(ctx, projectID, userID); err != nil {
		return nil, err
	}

	project, err := s.projectRepo.Update(ctx, projectID, input)
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	if project == nil {
		return nil, ErrNotFound
	}

	s.events.Emit(ctx, domain.NewProjectEvent(domain.ActionUpdated, *project))
	return project, nil
}

// Delete deletes a project (owner only)
func (s *ProjectService) Delete(ctx context.Context, userID, projectID uuid.UUID) error {
	member, err := s.access.member(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if member.Role != domain.RoleOwner {
		return ErrOwnerRequired
	}

	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		return ErrNotFound
	}

	deleted, err := s.projectRepo.Delete(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}

	s.events.Emit(ctx, domain.NewProjectEvent(domain.ActionDeleted, *project))
	return nil
}

// IsMember checks if a user is a member of a project
func (s *ProjectService) IsMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	return s.memberRepo.IsMember(ctx, projectID, userID)
}
