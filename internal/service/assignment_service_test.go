package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicwatch/incident-service/internal/domain"
	"github.com/civicwatch/incident-service/internal/events"
	"github.com/civicwatch/incident-service/internal/observability"
	apperrors "github.com/civicwatch/incident-service/pkg/util"
)

var (
	officialA = &domain.User{ID: "official-a", Name: "Ada Official", Role: domain.RoleOfficial, Active: true}
	officialB = &domain.User{ID: "official-b", Name: "Ben Official", Role: domain.RoleOfficial, Active: true}
	adminC    = &domain.User{ID: "admin-c", Name: "Cara Admin", Role: domain.RoleAdmin, Active: true}
	voterV    = &domain.User{ID: "voter-v", Name: "Vic Voter", Role: domain.RoleVoter, Active: true}
)

func openIncident(id string) *domain.IncidentReport {
	return &domain.IncidentReport{
		ID:         id,
		ReporterID: voterV.ID,
		Type:       domain.IncidentTypeBallotStuffing,
		Status:     domain.IncidentStatusOpen,
		Priority:   domain.IncidentPriorityMedium,
		CreatedAt:  time.Now().Add(-time.Hour),
	}
}

func newAssignmentService(store *memStore) (*AssignmentService, *captureDispatcher, *observability.Metrics) {
	dispatcher := &captureDispatcher{}
	metrics := observability.NewMetrics()
	svc := NewAssignmentService(AssignmentDependencies{
		IncidentRepo: store,
		UserRepo:     newMemUserRepo(officialA, officialB, adminC, voterV),
		Locker:       store,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
	})
	return svc, dispatcher, metrics
}

func TestAssignClaimLifecycle(t *testing.T) {
	store := newMemStore(openIncident("i1"))
	svc, dispatcher, metrics := newAssignmentService(store)
	ctx := context.Background()

	// Official A claims the unassigned incident.
	result, err := svc.Assign(ctx, officialA, "i1")
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentAccepted, result.Outcome)
	assert.True(t, result.Outcome.Success())
	assert.Equal(t, officialA.ID, result.AssignedTo)
	require.NotNil(t, result.Incident.AssignedTo)
	assert.Equal(t, domain.IncidentStatusAssigned, result.Incident.Status)
	firstAssignedAt := result.AssignedAt

	// Official B is blocked and told who holds it.
	result, err = svc.Assign(ctx, officialB, "i1")
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentConflict, result.Outcome)
	assert.Equal(t, officialA.ID, result.CurrentAssigneeID)
	assert.Equal(t, officialA.Name, result.CurrentAssigneeName)

	stored, err := store.GetByID(ctx, "i1")
	require.NoError(t, err)
	require.NotNil(t, stored.AssignedTo)
	assert.Equal(t, officialA.ID, *stored.AssignedTo)

	// Official A re-claims: same success shape, fresh timestamp.
	result, err = svc.Assign(ctx, officialA, "i1")
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentAcceptedIdempotent, result.Outcome)
	assert.True(t, result.Outcome.Success())
	assert.Equal(t, officialA.ID, result.AssignedTo)
	assert.False(t, result.AssignedAt.Before(firstAssignedAt))

	// Admin C overrides.
	result, err = svc.Assign(ctx, adminC, "i1")
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentAccepted, result.Outcome)
	assert.Equal(t, adminC.ID, result.AssignedTo)

	stored, err = store.GetByID(ctx, "i1")
	require.NoError(t, err)
	require.NotNil(t, stored.AssignedTo)
	assert.Equal(t, adminC.ID, *stored.AssignedTo)

	// Ownership changed twice, so exactly two assignment events.
	assigned := dispatcher.byType(events.EventIncidentAssigned)
	require.Len(t, assigned, 2)
	override, ok := assigned[1].Payload.(events.IncidentAssignedPayload)
	require.True(t, ok)
	assert.True(t, override.Override)
	require.NotNil(t, override.PreviousAssignee)
	assert.Equal(t, officialA.ID, *override.PreviousAssignee)

	assert.Equal(t, int64(2), metrics.AssignmentCount(domain.AssignmentAccepted))
	assert.Equal(t, int64(1), metrics.AssignmentCount(domain.AssignmentAcceptedIdempotent))
	assert.Equal(t, int64(1), metrics.AssignmentCount(domain.AssignmentConflict))
}

func TestAssignVoterForbidden(t *testing.T) {
	store := newMemStore(openIncident("i1"))
	svc, dispatcher, _ := newAssignmentService(store)

	result, err := svc.Assign(context.Background(), voterV, "i1")
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentForbidden, result.Outcome)

	stored, err := store.GetByID(context.Background(), "i1")
	require.NoError(t, err)
	assert.Nil(t, stored.AssignedTo)
	assert.Empty(t, dispatcher.byType(events.EventIncidentAssigned))
}

func TestAssignVoterForbiddenEvenWhenAssigned(t *testing.T) {
	incident := openIncident("i1")
	holder := officialA.ID
	incident.AssignedTo = &holder
	incident.Status = domain.IncidentStatusAssigned
	store := newMemStore(incident)
	svc, _, _ := newAssignmentService(store)

	result, err := svc.Assign(context.Background(), voterV, "i1")
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentForbidden, result.Outcome)
}

func TestAssignUnknownIncident(t *testing.T) {
	store := newMemStore()
	svc, _, _ := newAssignmentService(store)

	_, err := svc.Assign(context.Background(), officialA, "missing")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, http.StatusNotFound, domainErr.HTTPStatus)
}

func TestAssignLockAcquisitionFailure(t *testing.T) {
	store := newMemStore(openIncident("i1"))
	store.lockErr = errors.New("lock wait exceeded")
	svc, _, _ := newAssignmentService(store)

	_, err := svc.Assign(context.Background(), officialA, "i1")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "STORE_UNAVAILABLE", domainErr.Code)
	assert.Equal(t, http.StatusServiceUnavailable, domainErr.HTTPStatus)
}

func TestAssignCommitFailureLeavesNoPartialState(t *testing.T) {
	store := newMemStore(openIncident("i1"))
	store.commitErr = errors.New("connection lost during commit")
	svc, dispatcher, _ := newAssignmentService(store)

	_, err := svc.Assign(context.Background(), officialA, "i1")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "STORE_UNAVAILABLE", domainErr.Code)

	stored, err := store.GetByID(context.Background(), "i1")
	require.NoError(t, err)
	assert.Nil(t, stored.AssignedTo)
	assert.Equal(t, domain.IncidentStatusOpen, stored.Status)
	assert.Empty(t, dispatcher.byType(events.EventIncidentAssigned))
}

func TestAssignConcurrentClaimsSingleWinner(t *testing.T) {
	store := newMemStore(openIncident("i1"))
	svc, _, _ := newAssignmentService(store)

	callers := []*domain.User{officialA, officialB}
	results := make([]*domain.AssignmentResult, len(callers))
	errs := make([]error, len(callers))

	var wg sync.WaitGroup
	for i, caller := range callers {
		wg.Add(1)
		go func(i int, caller *domain.User) {
			defer wg.Done()
			results[i], errs[i] = svc.Assign(context.Background(), caller, "i1")
		}(i, caller)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	var winners, losers []*domain.AssignmentResult
	for _, result := range results {
		switch result.Outcome {
		case domain.AssignmentAccepted:
			winners = append(winners, result)
		case domain.AssignmentConflict:
			losers = append(losers, result)
		default:
			t.Fatalf("unexpected outcome %s", result.Outcome)
		}
	}
	require.Len(t, winners, 1, "exactly one claim must win")
	require.Len(t, losers, 1)

	// The loser is told who won, and the store agrees.
	assert.Equal(t, winners[0].AssignedTo, losers[0].CurrentAssigneeID)
	stored, err := store.GetByID(context.Background(), "i1")
	require.NoError(t, err)
	require.NotNil(t, stored.AssignedTo)
	assert.Equal(t, winners[0].AssignedTo, *stored.AssignedTo)
}

func TestAssignManyConcurrentOfficials(t *testing.T) {
	store := newMemStore(openIncident("i1"))
	svc, _, _ := newAssignmentService(store)

	const n = 16
	officials := make([]*domain.User, n)
	users := newMemUserRepo(voterV)
	for i := 0; i < n; i++ {
		officials[i] = &domain.User{
			ID:     fmt.Sprintf("official-%d", i),
			Name:   fmt.Sprintf("Official %d", i),
			Role:   domain.RoleOfficial,
			Active: true,
		}
		require.NoError(t, users.Create(context.Background(), officials[i]))
	}
	svc.users = users

	results := make([]*domain.AssignmentResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range officials {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Assign(context.Background(), officials[i], "i1")
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	accepted := 0
	var winnerID string
	for _, result := range results {
		if result.Outcome == domain.AssignmentAccepted {
			accepted++
			winnerID = result.AssignedTo
		}
	}
	assert.Equal(t, 1, accepted, "at most one effective winner per incident")

	stored, err := store.GetByID(context.Background(), "i1")
	require.NoError(t, err)
	require.NotNil(t, stored.AssignedTo)
	assert.Equal(t, winnerID, *stored.AssignedTo)

	for _, result := range results {
		if result.Outcome == domain.AssignmentConflict {
			assert.Equal(t, winnerID, result.CurrentAssigneeID)
		}
	}
}

func TestAssignConflictNameFallsBackToID(t *testing.T) {
	incident := openIncident("i1")
	ghost := "departed-official"
	incident.AssignedTo = &ghost
	incident.Status = domain.IncidentStatusAssigned
	store := newMemStore(incident)
	svc, _, _ := newAssignmentService(store)

	result, err := svc.Assign(context.Background(), officialB, "i1")
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentConflict, result.Outcome)
	assert.Equal(t, ghost, result.CurrentAssigneeID)
	assert.Empty(t, result.CurrentAssigneeName)
}
