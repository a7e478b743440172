package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestDecideAssignment(t *testing.T) {
	cases := []struct {
		name            string
		callerID        string
		callerRole      UserRole
		currentAssignee *string
		want            AssignmentOutcome
	}{
		{
			name:       "voter rejected on unassigned incident",
			callerID:   "u1",
			callerRole: RoleVoter,
			want:       AssignmentForbidden,
		},
		{
			name:            "voter rejected even when incident is theirs",
			callerID:        "u1",
			callerRole:      RoleVoter,
			currentAssignee: strPtr("u1"),
			want:            AssignmentForbidden,
		},
		{
			name:       "official claims unassigned incident",
			callerID:   "official-a",
			callerRole: RoleOfficial,
			want:       AssignmentAccepted,
		},
		{
			name:       "admin claims unassigned incident",
			callerID:   "admin-c",
			callerRole: RoleAdmin,
			want:       AssignmentAccepted,
		},
		{
			name:            "official re-claims own incident idempotently",
			callerID:        "official-a",
			callerRole:      RoleOfficial,
			currentAssignee: strPtr("official-a"),
			want:            AssignmentAcceptedIdempotent,
		},
		{
			name:            "admin re-claims own incident idempotently",
			callerID:        "admin-c",
			callerRole:      RoleAdmin,
			currentAssignee: strPtr("admin-c"),
			want:            AssignmentAcceptedIdempotent,
		},
		{
			name:            "admin overrides another holder",
			callerID:        "admin-c",
			callerRole:      RoleAdmin,
			currentAssignee: strPtr("official-a"),
			want:            AssignmentAccepted,
		},
		{
			name:            "official blocked by another holder",
			callerID:        "official-b",
			callerRole:      RoleOfficial,
			currentAssignee: strPtr("official-a"),
			want:            AssignmentConflict,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			attempt := AssignmentAttempt{
				IncidentID: "incident-1",
				CallerID:   tc.callerID,
				CallerRole: tc.callerRole,
			}
			assert.Equal(t, tc.want, DecideAssignment(attempt, tc.currentAssignee))
		})
	}
}

func TestAssignmentOutcomeSuccess(t *testing.T) {
	assert.True(t, AssignmentAccepted.Success())
	assert.True(t, AssignmentAcceptedIdempotent.Success())
	assert.False(t, AssignmentConflict.Success())
	assert.False(t, AssignmentForbidden.Success())
}

func TestRoleCanHoldAssignment(t *testing.T) {
	assert.False(t, RoleVoter.CanHoldAssignment())
	assert.True(t, RoleOfficial.CanHoldAssignment())
	assert.True(t, RoleAdmin.CanHoldAssignment())
}
