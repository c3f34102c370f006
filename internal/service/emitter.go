package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/Rrens/projecthub/internal/domain"
)

// EventEmitter receives one event per successful mutation
type EventEmitter interface {
	Emit(ctx context.Context, event domain.Event)
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, domain.Event) {}

func emitterOrNop(e EventEmitter) EventEmitter {
	if e == nil {
		return nopEmitter{}
	}
	return e
}

// access resolves the caller's membership of a project
type access struct {
	members domain.MemberRepository
}

func (a access) member(ctx context.Context, projectID, userID uuid.UUID) (*domain.Member, error) {
	member, err := a.members.Get(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrAccessDenied
	}
	return member, nil
}

func (a access) manager(ctx context.Context, projectID, userID uuid.UUID) (*domain.Member, error) {
	member, err := a.member(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !domain.CanManage(member.Role) {
		return nil, ErrAdminRequired
	}
	return member, nil
}
