package events

import (
	"time"

	"github.com/civicwatch/incident-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIncidentAssigned      EventType = "incident_assigned"
	EventIncidentStatusChanged EventType = "incident_status_changed"
	EventIncidentResponseAdded EventType = "incident_response_added"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string          `json:"user_id"`
	Role   domain.UserRole `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	IncidentID string      `json:"incident_id"`
	Actor      Actor       `json:"actor"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// IncidentAssignedPayload payload. Emitted only when ownership actually
// changed; idempotent re-claims do not publish.
type IncidentAssignedPayload struct {
	AssigneeID       string  `json:"assignee_id"`
	PreviousAssignee *string `json:"previous_assignee,omitempty"`
	Override         bool    `json:"override"`
}

// IncidentStatusChangedPayload payload.
type IncidentStatusChangedPayload struct {
	OldStatus domain.IncidentStatus `json:"old_status"`
	NewStatus domain.IncidentStatus `json:"new_status"`
	Notes     string                `json:"notes,omitempty"`
}

// IncidentResponseAddedPayload payload.
type IncidentResponseAddedPayload struct {
	ResponseID string                    `json:"response_id"`
	ActionType domain.ResponseActionType `json:"action_type"`
}
