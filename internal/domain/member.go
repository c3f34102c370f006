package domain

import (
	"time"

	"github.com/google/uuid"
)

// Member represents project membership
type Member struct {
	ProjectID uuid.UUID `json:"project_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// MemberAdd represents a request to add a member to a project
type MemberAdd struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Role   string    `json:"role" validate:"required,oneof=admin member"`
}

// Role constants
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// CanManage reports whether the role may modify project settings and membership
func CanManage(role string) bool {
	return role == RoleOwner || role == RoleAdmin
}
