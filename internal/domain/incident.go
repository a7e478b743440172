package domain

import "time"

// IncidentStatus enumerates lifecycle states for incident reports.
type IncidentStatus string

const (
	IncidentStatusOpen     IncidentStatus = "OPEN"
	IncidentStatusAssigned IncidentStatus = "ASSIGNED"
	IncidentStatusResolved IncidentStatus = "RESOLVED"
	IncidentStatusClosed   IncidentStatus = "CLOSED"
)

// IncidentType categorizes reported irregularities.
type IncidentType string

const (
	IncidentTypeVoterIntimidation    IncidentType = "voter_intimidation"
	IncidentTypeBallotStuffing       IncidentType = "ballot_stuffing"
	IncidentTypeTechnicalIssue       IncidentType = "technical_issue"
	IncidentTypeViolence             IncidentType = "violence"
	IncidentTypeBribery              IncidentType = "bribery"
	IncidentTypeEquipmentMalfunction IncidentType = "equipment_malfunction"
	IncidentTypeUnauthorizedAccess   IncidentType = "unauthorized_access"
	IncidentTypeOther                IncidentType = "other"
)

// IncidentPriority enumerates urgency levels.
type IncidentPriority string

const (
	IncidentPriorityLow      IncidentPriority = "LOW"
	IncidentPriorityMedium   IncidentPriority = "MEDIUM"
	IncidentPriorityHigh     IncidentPriority = "HIGH"
	IncidentPriorityCritical IncidentPriority = "CRITICAL"
)

// IncidentReport is the aggregate for reported voting irregularities.
// AssignedTo is non-nil only while Status is ASSIGNED or RESOLVED; closing
// an incident clears the assignee.
type IncidentReport struct {
	ID              string
	ReporterID      string
	Type            IncidentType
	Description     string
	Location        string
	Status          IncidentStatus
	Priority        IncidentPriority
	AssignedTo      *string
	AssignedAt      *time.Time
	ResolutionNotes string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ResponseActionType enumerates actions an official records against an incident.
type ResponseActionType string

const (
	ActionInvestigationStarted ResponseActionType = "investigation_started"
	ActionEvidenceCollected    ResponseActionType = "evidence_collected"
	ActionWitnessInterviewed   ResponseActionType = "witness_interviewed"
	ActionCorrectiveAction     ResponseActionType = "corrective_action"
	ActionCaseClosed           ResponseActionType = "case_closed"
	ActionEscalated            ResponseActionType = "escalated"
)

// ValidResponseAction reports whether the action type is known.
func ValidResponseAction(a ResponseActionType) bool {
	switch a {
	case ActionInvestigationStarted, ActionEvidenceCollected, ActionWitnessInterviewed,
		ActionCorrectiveAction, ActionCaseClosed, ActionEscalated:
		return true
	}
	return false
}

// IncidentResponse records an action taken on an incident by an official.
type IncidentResponse struct {
	ID          string
	IncidentID  string
	ResponderID string
	ActionType  ResponseActionType
	Description string
	CreatedAt   time.Time
}

// IncidentStats aggregates reporting counters. Reads are served outside any
// lock and may lag behind committed assignments.
type IncidentStats struct {
	TotalIncidents      int64            `json:"total_incidents"`
	IncidentsByStatus   map[string]int64 `json:"incidents_by_status"`
	IncidentsByType     map[string]int64 `json:"incidents_by_type"`
	IncidentsByPriority map[string]int64 `json:"incidents_by_priority"`
	OpenIncidents       int64            `json:"open_incidents"`
	ResolvedIncidents   int64            `json:"resolved_incidents"`
}
