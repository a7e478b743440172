package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/civicwatch/incident-service/internal/domain"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu              sync.Mutex
	requestCount    map[string]int64
	errorCount      map[string]int64
	assignmentCount map[domain.AssignmentOutcome]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]int64),
		errorCount:      make(map[string]int64),
		assignmentCount: make(map[domain.AssignmentOutcome]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordAssignment counts claim outcomes. Fresh and idempotent accepts are
// indistinguishable to callers, so this is where the distinction surfaces.
func (m *Metrics) RecordAssignment(outcome domain.AssignmentOutcome) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignmentCount[outcome]++
}

// AssignmentCount returns the counter for one outcome.
func (m *Metrics) AssignmentCount(outcome domain.AssignmentOutcome) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assignmentCount[outcome]
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
