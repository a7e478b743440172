package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/civicwatch/incident-service/internal/domain"
	"github.com/civicwatch/incident-service/internal/events"
	"github.com/civicwatch/incident-service/internal/repository"
	apperrors "github.com/civicwatch/incident-service/pkg/util"
)

// IncidentService covers the incident management surface around the claim
// core: reads, lifecycle transitions and response records.
type IncidentService struct {
	incidents  repository.IncidentRepository
	responses  repository.ResponseRepository
	locker     repository.IncidentLocker
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// IncidentDependencies bundles collaborators.
type IncidentDependencies struct {
	IncidentRepo repository.IncidentRepository
	ResponseRepo repository.ResponseRepository
	Locker       repository.IncidentLocker
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewIncidentService creates the service.
func NewIncidentService(deps IncidentDependencies) *IncidentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IncidentService{
		incidents:  deps.IncidentRepo,
		responses:  deps.ResponseRepo,
		locker:     deps.Locker,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// GetIncident returns one incident with its responses. Voters may only read
// their own reports.
func (s *IncidentService) GetIncident(ctx context.Context, caller *domain.User, incidentID string) (*domain.IncidentReport, []domain.IncidentResponse, error) {
	if caller == nil {
		return nil, nil, apperrors.NewUnauthorized("caller required")
	}
	incident, err := s.incidents.GetByID(ctx, incidentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("incident", map[string]any{"incident_id": incidentID})
		}
		return nil, nil, apperrors.MapError(err)
	}
	if caller.Role == domain.RoleVoter && incident.ReporterID != caller.ID {
		return nil, nil, apperrors.NewForbidden("access denied")
	}
	responses, err := s.responses.ListByIncident(ctx, incidentID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return incident, responses, nil
}

// ListIncidents returns incidents matching the filter. Voters are restricted
// to their own reports regardless of the requested filter.
func (s *IncidentService) ListIncidents(ctx context.Context, caller *domain.User, filter repository.IncidentFilter) ([]domain.IncidentReport, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("caller required")
	}
	if caller.Role == domain.RoleVoter {
		filter.ReporterID = &caller.ID
	}
	incidents, err := s.incidents.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return incidents, nil
}

// MyIncidents returns the caller's own reports.
func (s *IncidentService) MyIncidents(ctx context.Context, caller *domain.User, limit, offset int) ([]domain.IncidentReport, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("caller required")
	}
	filter := repository.IncidentFilter{
		ReporterID: &caller.ID,
		Limit:      limit,
		Offset:     offset,
	}
	incidents, err := s.incidents.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return incidents, nil
}

// UpdateStatus transitions an incident to RESOLVED or CLOSED. Officials may
// only update incidents assigned to them; admins may update any. Closing
// releases the assignment. The transition runs under the incident row lock
// so it never races a concurrent claim.
func (s *IncidentService) UpdateStatus(ctx context.Context, caller *domain.User, incidentID string, newStatus domain.IncidentStatus, resolutionNotes string) (*domain.IncidentReport, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("caller required")
	}
	if !caller.Role.CanHoldAssignment() {
		return nil, apperrors.NewForbidden("official or admin access required")
	}
	if newStatus != domain.IncidentStatusResolved && newStatus != domain.IncidentStatusClosed {
		return nil, apperrors.NewValidationError("status must be RESOLVED or CLOSED", map[string]any{"status": newStatus})
	}
	if newStatus == domain.IncidentStatusResolved && strings.TrimSpace(resolutionNotes) == "" {
		return nil, apperrors.NewValidationError("resolution_notes required to resolve", nil)
	}

	if _, err := s.incidents.GetByID(ctx, incidentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("incident", map[string]any{"incident_id": incidentID})
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}

	var updated *domain.IncidentReport
	var oldStatus domain.IncidentStatus

	lockCtx := context.WithoutCancel(ctx)
	err := s.locker.WithIncidentLock(lockCtx, incidentID, func(ctx context.Context, li repository.LockedIncident) error {
		incident := li.Incident()
		if caller.Role == domain.RoleOfficial {
			if incident.AssignedTo == nil || *incident.AssignedTo != caller.ID {
				return apperrors.NewForbidden("you can only update incidents assigned to you")
			}
		}
		oldStatus = incident.Status
		clearAssignee := newStatus == domain.IncidentStatusClosed
		if err := li.SetStatus(ctx, newStatus, resolutionNotes, clearAssignee); err != nil {
			return err
		}
		updated = li.Incident()
		return nil
	})
	if err != nil {
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) {
			return nil, err
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("incident", map[string]any{"incident_id": incidentID})
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}

	s.logger.Info("incident status updated",
		zap.String("incident_id", incidentID),
		zap.String("old_status", string(oldStatus)),
		zap.String("new_status", string(newStatus)),
		zap.String("actor_id", caller.ID))
	s.publishStatusChanged(ctx, caller, incidentID, oldStatus, newStatus, resolutionNotes)
	return updated, nil
}

// AddResponse records an action taken on an incident.
func (s *IncidentService) AddResponse(ctx context.Context, caller *domain.User, incidentID string, actionType domain.ResponseActionType, description string) (*domain.IncidentResponse, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthorized("caller required")
	}
	if !caller.Role.CanHoldAssignment() {
		return nil, apperrors.NewForbidden("official or admin access required")
	}
	if !domain.ValidResponseAction(actionType) {
		return nil, apperrors.NewValidationError("unknown action_type", map[string]any{"action_type": actionType})
	}
	if strings.TrimSpace(description) == "" {
		return nil, apperrors.NewValidationError("description required", nil)
	}

	if _, err := s.incidents.GetByID(ctx, incidentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("incident", map[string]any{"incident_id": incidentID})
		}
		return nil, apperrors.MapError(err)
	}

	response := &domain.IncidentResponse{
		IncidentID:  incidentID,
		ResponderID: caller.ID,
		ActionType:  actionType,
		Description: description,
	}
	if err := s.responses.Create(ctx, response); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishResponseAdded(ctx, caller, incidentID, response)
	return response, nil
}

func (s *IncidentService) publishStatusChanged(ctx context.Context, caller *domain.User, incidentID string, oldStatus, newStatus domain.IncidentStatus, notes string) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:         uuid.NewString(),
		Type:       events.EventIncidentStatusChanged,
		IncidentID: incidentID,
		Actor:      events.Actor{UserID: caller.ID, Role: caller.Role},
		Timestamp:  time.Now(),
		Payload: events.IncidentStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Notes:     notes,
		},
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *IncidentService) publishResponseAdded(ctx context.Context, caller *domain.User, incidentID string, response *domain.IncidentResponse) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:         uuid.NewString(),
		Type:       events.EventIncidentResponseAdded,
		IncidentID: incidentID,
		Actor:      events.Actor{UserID: caller.ID, Role: caller.Role},
		Timestamp:  time.Now(),
		Payload: events.IncidentResponseAddedPayload{
			ResponseID: response.ID,
			ActionType: response.ActionType,
		},
	}
	_ = s.dispatcher.Publish(ctx, event)
}
