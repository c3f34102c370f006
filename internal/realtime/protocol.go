package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/Rrens/projecthub/internal/domain"
)

// Client to server message types
const (
	MsgJoinProject  = "join_project"
	MsgLeaveProject = "leave_project"
)

// Server to client message types
const (
	MsgRoomJoined = "room:joined"
	MsgRoomLeft   = "room:left"
	MsgError      = "error"

	MsgProjectUpdate    = "project:update"
	MsgTaskCreated      = "task:created"
	MsgTaskUpdated      = "task:updated"
	MsgTaskDeleted      = "task:deleted"
	MsgMilestoneCreated = "milestone:created"
	MsgMilestoneUpdated = "milestone:updated"
	MsgMilestoneDeleted = "milestone:deleted"
	MsgMemberAdded      = "member:added"
	MsgMemberRemoved    = "member:removed"
	MsgFileUploaded     = "file:uploaded"
	MsgFileDeleted      = "file:deleted"
)

// DefaultRoom is the reserved room every session joins on connect.
// It carries global chat and is never a project id.
const DefaultRoom = "global"

// Message is the envelope exchanged over the websocket in both directions
type Message struct {
	Type      string          `json:"type"`
	ProjectID string          `json:"project_id,omitempty"`
	Version   int64           `json:"version,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// RoomPayload is sent with join_project and leave_project
type RoomPayload struct {
	ProjectID string `json:"project_id"`
}

// RoomJoinedPayload acknowledges a join with the current project version
type RoomJoinedPayload struct {
	ProjectID string `json:"project_id"`
	Version   int64  `json:"version"`
}

// ErrorPayload reports a rejected client request
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewMessage builds a message with a JSON encoded payload
func NewMessage(msgType string, payload any) (Message, error) {
	msg := Message{Type: msgType}
	if payload == nil {
		return msg, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}
	msg.Payload = data
	return msg, nil
}

// MessageFromEvent converts a domain event into its wire message
func MessageFromEvent(event domain.Event) (Message, error) {
	msg, err := NewMessage(event.MessageType(), event.Payload)
	if err != nil {
		return Message{}, err
	}
	msg.ProjectID = event.ProjectID.String()
	msg.Version = event.Version
	return msg, nil
}

// DecodePayload unmarshals the message payload into v
func (m Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("message %s has no payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", m.Type, err)
	}
	return nil
}
