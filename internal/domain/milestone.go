package domain

import (
	"time"

	"github.com/google/uuid"
)

// Milestone status values
const (
	MilestoneStatusPending   = "pending"
	MilestoneStatusCompleted = "completed"
)

// Milestone represents a dated checkpoint in a project
type Milestone struct {
	ID          uuid.UUID  `json:"id"`
	ProjectID   uuid.UUID  `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// MilestoneCreate represents milestone creation data
type MilestoneCreate struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// MilestoneUpdate represents milestone update data
type MilestoneUpdate struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,max=255"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Status      *string    `json:"status,omitempty" validate:"omitempty,oneof=pending completed"`
}

// Apply copies the set fields of u onto m
func (u MilestoneUpdate) Apply(m *Milestone) {
	if u.Title != nil {
		m.Title = *u.Title
	}
	if u.Description != nil {
		m.Description = *u.Description
	}
	if u.DueDate != nil {
		m.DueDate = u.DueDate
	}
	if u.Status != nil {
		m.Status = *u.Status
	}
}
