package domain

import "time"

// AssignmentAttempt carries one caller's claim on an incident. It lives for
// the duration of a single Assign call and is never persisted.
type AssignmentAttempt struct {
	IncidentID string
	CallerID   string
	CallerRole UserRole
}

// AssignmentOutcome enumerates the possible results of a claim.
type AssignmentOutcome string

const (
	AssignmentAccepted           AssignmentOutcome = "ACCEPTED"
	AssignmentAcceptedIdempotent AssignmentOutcome = "ACCEPTED_IDEMPOTENT"
	AssignmentConflict           AssignmentOutcome = "CONFLICT"
	AssignmentForbidden          AssignmentOutcome = "FORBIDDEN"
)

// Success reports whether the outcome is a success category from the
// caller's point of view. Fresh and idempotent accepts share one shape.
func (o AssignmentOutcome) Success() bool {
	return o == AssignmentAccepted || o == AssignmentAcceptedIdempotent
}

// AssignmentResult is the façade's answer to a claim. Incident, AssignedTo
// and AssignedAt are set on success outcomes; CurrentAssigneeID and
// CurrentAssigneeName are set on conflict so the caller can be told who
// holds the incident.
type AssignmentResult struct {
	Outcome             AssignmentOutcome
	Incident            *IncidentReport
	AssignedTo          string
	AssignedAt          time.Time
	CurrentAssigneeID   string
	CurrentAssigneeName string
}

// DecideAssignment evaluates a claim against the current assignee. The rules
// are checked strictly in order:
//
//  1. voters can neither hold nor change assignments
//  2. an unassigned incident goes to the caller
//  3. re-claiming one's own incident succeeds idempotently
//  4. admins may take over someone else's incident
//  5. officials are rejected with the holder's identity
//
// The function is pure; callers must invoke it while holding the incident's
// lock so the assignee it sees is the latest committed value.
func DecideAssignment(attempt AssignmentAttempt, currentAssignee *string) AssignmentOutcome {
	if !attempt.CallerRole.CanHoldAssignment() {
		return AssignmentForbidden
	}
	if currentAssignee == nil {
		return AssignmentAccepted
	}
	if *currentAssignee == attempt.CallerID {
		return AssignmentAcceptedIdempotent
	}
	if attempt.CallerRole == RoleAdmin {
		return AssignmentAccepted
	}
	return AssignmentConflict
}
