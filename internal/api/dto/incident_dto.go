package dto

import (
	"time"

	"github.com/civicwatch/incident-service/internal/domain"
)

// IncidentSummary response.
type IncidentSummary struct {
	ID         string                  `json:"id"`
	ReporterID string                  `json:"reporter_id"`
	Type       domain.IncidentType     `json:"incident_type"`
	Location   string                  `json:"location"`
	Status     domain.IncidentStatus   `json:"status"`
	Priority   domain.IncidentPriority `json:"priority"`
	AssignedTo *string                 `json:"assigned_to"`
	AssignedAt *time.Time              `json:"assigned_at"`
	CreatedAt  time.Time               `json:"created_at"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

// IncidentDetailResponse provides full incident info.
type IncidentDetailResponse struct {
	IncidentSummary
	Description     string                     `json:"description"`
	ResolutionNotes string                     `json:"resolution_notes,omitempty"`
	Responses       []IncidentResponseResponse `json:"responses"`
}

// IncidentResponseResponse represents a recorded action.
type IncidentResponseResponse struct {
	ID          string                    `json:"id"`
	ResponderID string                    `json:"responder_id"`
	ActionType  domain.ResponseActionType `json:"action_type"`
	Description string                    `json:"description"`
	CreatedAt   time.Time                 `json:"created_at"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status          domain.IncidentStatus `json:"status"`
	ResolutionNotes string                `json:"resolution_notes"`
}

// AddResponseRequest payload.
type AddResponseRequest struct {
	ActionType  domain.ResponseActionType `json:"action_type"`
	Description string                    `json:"description"`
}
