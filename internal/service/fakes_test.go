package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/civicwatch/incident-service/internal/domain"
	"github.com/civicwatch/incident-service/internal/events"
	"github.com/civicwatch/incident-service/internal/repository"
)

// memStore backs both the incident repository and the locker with a keyed
// mutex per incident row, mirroring the row-lock semantics of the real
// implementation: mutations are staged on a copy and published only when the
// lock section commits.
type memStore struct {
	mu        sync.Mutex
	rowLocks  map[string]*sync.Mutex
	incidents map[string]*domain.IncidentReport

	lockErr   error // injected acquisition failure
	commitErr error // injected commit failure
}

func newMemStore(incidents ...*domain.IncidentReport) *memStore {
	s := &memStore{
		rowLocks:  make(map[string]*sync.Mutex),
		incidents: make(map[string]*domain.IncidentReport),
	}
	for _, incident := range incidents {
		s.incidents[incident.ID] = incident
	}
	return s
}

func (s *memStore) rowLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rowLocks[id]; !ok {
		s.rowLocks[id] = &sync.Mutex{}
	}
	return s.rowLocks[id]
}

func (s *memStore) snapshot(id string) (*domain.IncidentReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	incident, ok := s.incidents[id]
	if !ok {
		return nil, false
	}
	copied := *incident
	return &copied, true
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.IncidentReport, error) {
	incident, ok := s.snapshot(id)
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return incident, nil
}

func (s *memStore) ListWithFilter(_ context.Context, filter repository.IncidentFilter) ([]domain.IncidentReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.IncidentReport
	for _, incident := range s.incidents {
		if filter.ReporterID != nil && incident.ReporterID != *filter.ReporterID {
			continue
		}
		if filter.AssigneeID != nil && (incident.AssignedTo == nil || *incident.AssignedTo != *filter.AssigneeID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, incident.Status) {
			continue
		}
		result = append(result, *incident)
	}
	return result, nil
}

func containsStatus(statuses []domain.IncidentStatus, status domain.IncidentStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s *memStore) CountTotal(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.incidents)), nil
}

func (s *memStore) CountByStatus(_ context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int64)
	for _, incident := range s.incidents {
		counts[string(incident.Status)]++
	}
	return counts, nil
}

func (s *memStore) CountByType(_ context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int64)
	for _, incident := range s.incidents {
		counts[string(incident.Type)]++
	}
	return counts, nil
}

func (s *memStore) CountByPriority(_ context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int64)
	for _, incident := range s.incidents {
		counts[string(incident.Priority)]++
	}
	return counts, nil
}

func (s *memStore) WithIncidentLock(ctx context.Context, incidentID string, fn func(ctx context.Context, li repository.LockedIncident) error) error {
	if s.lockErr != nil {
		return s.lockErr
	}
	lock := s.rowLock(incidentID)
	lock.Lock()
	defer lock.Unlock()

	staged, ok := s.snapshot(incidentID)
	if !ok {
		return pgx.ErrNoRows
	}
	if err := fn(ctx, &memLockedIncident{incident: staged}); err != nil {
		return err
	}
	if s.commitErr != nil {
		return s.commitErr
	}
	s.mu.Lock()
	s.incidents[incidentID] = staged
	s.mu.Unlock()
	return nil
}

type memLockedIncident struct {
	incident *domain.IncidentReport
}

func (li *memLockedIncident) Incident() *domain.IncidentReport {
	return li.incident
}

func (li *memLockedIncident) SetAssignee(_ context.Context, assigneeID string, at time.Time) error {
	li.incident.AssignedTo = &assigneeID
	li.incident.AssignedAt = &at
	li.incident.Status = domain.IncidentStatusAssigned
	return nil
}

func (li *memLockedIncident) RefreshAssignedAt(_ context.Context, at time.Time) error {
	li.incident.AssignedAt = &at
	return nil
}

func (li *memLockedIncident) SetStatus(_ context.Context, status domain.IncidentStatus, resolutionNotes string, clearAssignee bool) error {
	li.incident.Status = status
	li.incident.ResolutionNotes = resolutionNotes
	if clearAssignee {
		li.incident.AssignedTo = nil
		li.incident.AssignedAt = nil
	}
	return nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUserRepo(users ...*domain.User) *memUserRepo {
	r := &memUserRepo{users: make(map[string]*domain.User)}
	for _, user := range users {
		r.users[user.ID] = user
	}
	return r
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *memUserRepo) GetByPhone(_ context.Context, phoneNumber string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.PhoneNumber == phoneNumber {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memResponseRepo struct {
	mu        sync.Mutex
	responses []domain.IncidentResponse
	nextID    int
}

func (r *memResponseRepo) Create(_ context.Context, response *domain.IncidentResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	response.ID = fmt.Sprintf("response-%d", r.nextID)
	response.CreatedAt = time.Now()
	r.responses = append(r.responses, *response)
	return nil
}

func (r *memResponseRepo) ListByIncident(_ context.Context, incidentID string) ([]domain.IncidentResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.IncidentResponse
	for _, response := range r.responses {
		if response.IncidentID == incidentID {
			result = append(result, response)
		}
	}
	return result, nil
}

type captureDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *captureDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *captureDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *captureDispatcher) byType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []events.Event
	for _, event := range d.events {
		if event.Type == eventType {
			result = append(result, event)
		}
	}
	return result
}
