package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/civicwatch/incident-service/internal/domain"
	"github.com/civicwatch/incident-service/internal/events"
	"github.com/civicwatch/incident-service/internal/observability"
	"github.com/civicwatch/incident-service/internal/repository"
	apperrors "github.com/civicwatch/incident-service/pkg/util"
)

// AssignmentService is the single entry point for incident claims. It wraps
// the per-incident lock and the decision rules into one atomic operation:
// at most one effective winner per incident, idempotent re-claims for the
// current holder, and structured conflict information for losers.
type AssignmentService struct {
	incidents  repository.IncidentRepository
	users      repository.UserRepository
	locker     repository.IncidentLocker
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	IncidentRepo repository.IncidentRepository
	UserRepo     repository.UserRepository
	Locker       repository.IncidentLocker
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		incidents:  deps.IncidentRepo,
		users:      deps.UserRepo,
		locker:     deps.Locker,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// Assign lets the caller claim ownership of an incident. Policy outcomes
// (accepted, idempotent accept, conflict, forbidden) come back as values in
// the result; unknown incidents and storage failures come back as errors.
func (s *AssignmentService) Assign(ctx context.Context, caller *domain.User, incidentID string) (*domain.AssignmentResult, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("caller required")
	}

	// Unknown ids fail before any lock is taken.
	if _, err := s.incidents.GetByID(ctx, incidentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("incident", map[string]any{"incident_id": incidentID})
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}

	attempt := domain.AssignmentAttempt{
		IncidentID: incidentID,
		CallerID:   caller.ID,
		CallerRole: caller.Role,
	}

	var result *domain.AssignmentResult
	var previousAssignee *string

	// Once the lock is acquired the claim must commit or abort cleanly even
	// if the caller's request has been abandoned.
	lockCtx := context.WithoutCancel(ctx)
	err := s.locker.WithIncidentLock(lockCtx, incidentID, func(ctx context.Context, li repository.LockedIncident) error {
		incident := li.Incident()
		outcome := domain.DecideAssignment(attempt, incident.AssignedTo)
		now := time.Now().UTC()

		switch outcome {
		case domain.AssignmentForbidden:
			result = &domain.AssignmentResult{Outcome: outcome}
			return nil

		case domain.AssignmentConflict:
			holderID := *incident.AssignedTo
			holderName, err := s.assigneeName(ctx, holderID)
			if err != nil {
				return err
			}
			result = &domain.AssignmentResult{
				Outcome:             outcome,
				CurrentAssigneeID:   holderID,
				CurrentAssigneeName: holderName,
			}
			return nil

		case domain.AssignmentAcceptedIdempotent:
			if err := li.RefreshAssignedAt(ctx, now); err != nil {
				return err
			}
			result = successResult(outcome, li.Incident(), caller.ID, now)
			return nil

		default: // fresh accept or admin override
			if incident.AssignedTo != nil {
				prev := *incident.AssignedTo
				previousAssignee = &prev
			}
			if err := li.SetAssignee(ctx, caller.ID, now); err != nil {
				return err
			}
			result = successResult(outcome, li.Incident(), caller.ID, now)
			return nil
		}
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// row vanished between the pre-check and the lock
			return nil, apperrors.NewNotFound("incident", map[string]any{"incident_id": incidentID})
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}

	s.metrics.RecordAssignment(result.Outcome)
	s.observe(ctx, caller, incidentID, previousAssignee, result)
	return result, nil
}

// assigneeName resolves the display name for conflict payloads. A missing
// user row yields an empty name; the holder id is still reported.
func (s *AssignmentService) assigneeName(ctx context.Context, userID string) (string, error) {
	holder, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return holder.Name, nil
}

func successResult(outcome domain.AssignmentOutcome, incident *domain.IncidentReport, assigneeID string, at time.Time) *domain.AssignmentResult {
	return &domain.AssignmentResult{
		Outcome:    outcome,
		Incident:   incident,
		AssignedTo: assigneeID,
		AssignedAt: at,
	}
}

func (s *AssignmentService) observe(ctx context.Context, caller *domain.User, incidentID string, previousAssignee *string, result *domain.AssignmentResult) {
	switch result.Outcome {
	case domain.AssignmentAccepted:
		s.logger.Info("incident assigned",
			zap.String("incident_id", incidentID),
			zap.String("assignee_id", caller.ID),
			zap.Bool("override", previousAssignee != nil))
		s.publishAssigned(ctx, caller, incidentID, previousAssignee)
	case domain.AssignmentAcceptedIdempotent:
		s.logger.Debug("incident re-claimed by current holder",
			zap.String("incident_id", incidentID),
			zap.String("assignee_id", caller.ID))
	case domain.AssignmentConflict:
		// expected contention outcome, not a failure
		s.logger.Debug("incident claim rejected",
			zap.String("incident_id", incidentID),
			zap.String("caller_id", caller.ID),
			zap.String("holder_id", result.CurrentAssigneeID))
	case domain.AssignmentForbidden:
		s.logger.Debug("incident claim forbidden",
			zap.String("incident_id", incidentID),
			zap.String("caller_id", caller.ID),
			zap.String("caller_role", string(caller.Role)))
	}
}

func (s *AssignmentService) publishAssigned(ctx context.Context, caller *domain.User, incidentID string, previousAssignee *string) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:         uuid.NewString(),
		Type:       events.EventIncidentAssigned,
		IncidentID: incidentID,
		Actor:      events.Actor{UserID: caller.ID, Role: caller.Role},
		Timestamp:  time.Now(),
		Payload: events.IncidentAssignedPayload{
			AssigneeID:       caller.ID,
			PreviousAssignee: previousAssignee,
			Override:         previousAssignee != nil,
		},
	}
	_ = s.dispatcher.Publish(ctx, event)
}
