package domain

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository persists user accounts
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// ProjectRepository persists projects. Create also records the owner membership.
type ProjectRepository interface {
	Create(ctx context.Context, project *Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]Project, error)
	Update(ctx context.Context, id uuid.UUID, update ProjectUpdate) (*Project, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// MemberRepository persists project membership
type MemberRepository interface {
	Add(ctx context.Context, member *Member) error
	Get(ctx context.Context, projectID, userID uuid.UUID) (*Member, error)
	IsMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]Member, error)
	Remove(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
}

type TaskRepository interface {
	Create(ctx context.Context, task *Task) error
	GetByID(ctx context.Context, projectID, id uuid.UUID) (*Task, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]Task, error)
	Update(ctx context.Context, task *Task) error
	Delete(ctx context.Context, projectID, id uuid.UUID) (bool, error)
}

type MilestoneRepository interface {
	Create(ctx context.Context, milestone *Milestone) error
	GetByID(ctx context.Context, projectID, id uuid.UUID) (*Milestone, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]Milestone, error)
	Update(ctx context.Context, milestone *Milestone) error
	Delete(ctx context.Context, projectID, id uuid.UUID) (bool, error)
}

type FileRepository interface {
	Create(ctx context.Context, file *File) error
	GetByID(ctx context.Context, projectID, id uuid.UUID) (*File, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]File, error)
	Delete(ctx context.Context, projectID, id uuid.UUID) (bool, error)
}
