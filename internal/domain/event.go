package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventCategory identifies the kind of entity an event describes
type EventCategory string

const (
	CategoryProject   EventCategory = "project"
	CategoryTask      EventCategory = "task"
	CategoryMilestone EventCategory = "milestone"
	CategoryMember    EventCategory = "member"
	CategoryFile      EventCategory = "file"
)

// EventAction identifies what happened to the entity
type EventAction string

const (
	ActionCreated  EventAction = "created"
	ActionUpdated  EventAction = "updated"
	ActionDeleted  EventAction = "deleted"
	ActionAdded    EventAction = "added"
	ActionRemoved  EventAction = "removed"
	ActionUploaded EventAction = "uploaded"
)

// Event is emitted after a successful mutation of project state.
// ProjectID is always the owning project, also for sub-resources.
type Event struct {
	Category  EventCategory `json:"category"`
	Action    EventAction   `json:"action"`
	ProjectID uuid.UUID     `json:"project_id"`
	Version   int64         `json:"version,omitempty"`
	Payload   any           `json:"payload"`
	Timestamp time.Time     `json:"timestamp"`
}

// MessageType returns the realtime wire name of the event.
// All project-level mutations share the single "project:update" type.
func (e Event) MessageType() string {
	if e.Category == CategoryProject {
		return "project:update"
	}
	return string(e.Category) + ":" + string(e.Action)
}

// IsProjectScoped reports whether the event concerns the project itself
// rather than one of its sub-resources
func (e Event) IsProjectScoped() bool {
	return e.Category == CategoryProject
}

// ProjectEvent is the payload of a "project:update" message
type ProjectEvent struct {
	Action  EventAction `json:"action"`
	Project Project     `json:"project"`
}

func newEvent(category EventCategory, action EventAction, projectID uuid.UUID, payload any) Event {
	return Event{
		Category:  category,
		Action:    action,
		ProjectID: projectID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewProjectEvent creates a project event
func NewProjectEvent(action EventAction, p Project) Event {
	return newEvent(CategoryProject, action, p.ID, ProjectEvent{Action: action, Project: p})
}

// NewTaskEvent creates a task event
func NewTaskEvent(action EventAction, t Task) Event {
	return newEvent(CategoryTask, action, t.ProjectID, t)
}

// NewMilestoneEvent creates a milestone event
func NewMilestoneEvent(action EventAction, m Milestone) Event {
	return newEvent(CategoryMilestone, action, m.ProjectID, m)
}

// NewMemberEvent creates a member event
func NewMemberEvent(action EventAction, m Member) Event {
	return newEvent(CategoryMember, action, m.ProjectID, m)
}

// NewFileEvent creates a file event
func NewFileEvent(action EventAction, f File) Event {
	return newEvent(CategoryFile, action, f.ProjectID, f)
}
