package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Rrens/projecthub/internal/domain"
)

// MilestoneService handles milestone operations inside a project
type MilestoneService struct {
	milestoneRepo domain.MilestoneRepository
	access        access
	events        EventEmitter
}

// NewMilestoneService creates a new milestone service
func NewMilestoneService(milestoneRepo domain.MilestoneRepository, memberRepo domain.MemberRepository, events EventEmitter) *MilestoneService {
	return &MilestoneService{
		milestoneRepo: milestoneRepo,
		access:        access{members: memberRepo},
		events:        emitterOrNop(events),
	}
}

func (s *MilestoneService) List(ctx context.Context, userID, projectID uuid.UUID) ([]domain.Milestone, error) {
	if _, err := s.access.member(ctx, projectID, userID); err != nil {
		return nil, err
	}

	milestones, err := s.milestoneRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	return milestones, nil
}

// Create creates a milestone (admin or owner)
func (s *MilestoneService) Create(ctx context.Context, userID, projectID uuid.UUID, input domain.MilestoneCreate) (*domain.Milestone, error) {
	if _, err := s.access.manager(ctx, projectID, userID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	milestone := &domain.Milestone{
		ID:          uuid.New(),
		ProjectID:   projectID,
		Title:       input.Title,
		Description: input.Description,
		DueDate:     input.DueDate,
		Status:      domain.MilestoneStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.milestoneRepo.Create(ctx, milestone); err != nil {
		return nil, fmt.Errorf("failed to create milestone: %w", err)
	}

	s.events.Emit(ctx, domain.NewMilestoneEvent(domain.ActionCreated, *milestone))
	return milestone, nil
}

// Update updates a milestone (admin or owner)
func (s *MilestoneService) Update(ctx context.Context, userID, projectID, milestoneID uuid.UUID, input domain.MilestoneUpdate) (*domain.Milestone, error) {
	if _, err := s.access.manager(ctx, projectID, userID); err != nil {
		return nil, err
	}

	milestone, err := s.milestoneRepo.GetByID(ctx, projectID, milestoneID)
	if err != nil {
		return nil, fmt.Errorf("failed to get milestone: %w", err)
	}
	if milestone == nil {
		return nil, ErrNotFound
	}

	input.Apply(milestone)
	milestone.UpdatedAt = time.Now().UTC()

	if err := s.milestoneRepo.Update(ctx, milestone); err != nil {
		return nil, fmt.Errorf("failed to update milestone: %w", err)
	}

	s.events.Emit(ctx, domain.NewMilestoneEvent(domain.ActionUpdated, *milestone))
	return milestone, nil
}

// Delete deletes a milestone (admin or owner)
func (s *MilestoneService) Delete(ctx context.Context, userID, projectID, milestoneID uuid.UUID) error {
	if _, err := s.access.manager(ctx, projectID, userID); err != nil {
		return err
	}

	milestone, err := s.milestoneRepo.GetByID(ctx, projectID, milestoneID)
	if err != nil {
		return fmt.Errorf("failed to get milestone: %w", err)
	}
	if milestone == nil {
		return ErrNotFound
	}

	deleted, err := s.milestoneRepo.Delete(ctx, projectID, milestoneID)
	if err != nil {
		return fmt.Errorf("failed to delete milestone: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}

	s.events.Emit(ctx, domain.NewMilestoneEvent(domain.ActionDeleted, *milestone))
	return nil
}
