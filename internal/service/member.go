package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Rrens/projecthub/internal/domain"
)

// MemberService handles project membership
type MemberService struct {
	memberRepo domain.MemberRepository
	userRepo   domain.UserRepository
	access     access
	events     EventEmitter
}

// NewMemberService creates a new member service
func NewMemberService(memberRepo domain.MemberRepository, userRepo domain.UserRepository, events EventEmitter) *MemberService {
	return &MemberService{
		memberRepo: memberRepo,
		userRepo:   userRepo,
		access:     access{members: memberRepo},
		events:     emitterOrNop(events),
	}
}

// List lists the members of a project
func (s *MemberService) List(ctx context.Context, userID, projectID uuid.UUID) ([]domain.Member, error) {
	if _, err := s.access.member(ctx, projectID, userID); err != nil {
		return nil, err
	}

	members, err := s.memberRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// Add adds a user to a project (admin or owner)
func (s *MemberService) Add(ctx context.Context, requesterID, projectID uuid.UUID, input domain.MemberAdd) (*domain.Member, error) {
	if _, err := s.access.manager(ctx, projectID, requesterID); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}

	existing, err := s.memberRepo.Get(ctx, projectID, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	if existing != nil && existing.Role == domain.RoleOwner {
		return nil, ErrOwnerRequired
	}

	member := &domain.Member{
		ProjectID: projectID,
		UserID:    input.UserID,
		Role:      input.Role,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.memberRepo.Add(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	s.events.Emit(ctx, domain.NewMemberEvent(domain.ActionAdded, *member))
	return member, nil
}

// Remove removes a member. Managers may remove others; anyone may leave.
func (s *MemberService) Remove(ctx context.Context, requesterID, projectID, userID uuid.UUID) error {
	if requesterID == userID {
		if _, err := s.access.member(ctx, projectID, requesterID); err != nil {
			return err
		}
	} else if _, err := s.access.manager(ctx, projectID, requesterID); err != nil {
		return err
	}

	target, err := s.memberRepo.Get(ctx, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to get member: %w", err)
	}
	if target == nil {
		return ErrNotFound
	}
	if target.Role == domain.RoleOwner {
		return ErrCannotRemoveOwner
	}

	removed, err := s.memberRepo.Remove(ctx, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if !removed {
		return ErrNotFound
	}

	s.events.Emit(ctx, domain.NewMemberEvent(domain.ActionRemoved, *target))
	return nil
}
