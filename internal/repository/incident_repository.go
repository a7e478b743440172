package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicwatch/incident-service/internal/domain"
)

const incidentColumns = `id, reporter_id, incident_type, description, location, status, priority,
               assigned_to, assigned_at, resolution_notes, created_at, updated_at`

// IncidentFilter captures search parameters for incident listings.
type IncidentFilter struct {
	ReporterID *string
	AssigneeID *string
	Statuses   []domain.IncidentStatus
	Types      []domain.IncidentType
	Priorities []domain.IncidentPriority
	Limit      int
	Offset     int
}

// IncidentRepository encapsulates incident report persistence. All
// assignment-relevant mutations go through IncidentLocker instead; this
// interface only covers plain reads and aggregation.
type IncidentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.IncidentReport, error)
	ListWithFilter(ctx context.Context, filter IncidentFilter) ([]domain.IncidentReport, error)
	CountTotal(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	CountByType(ctx context.Context) (map[string]int64, error)
	CountByPriority(ctx context.Context) (map[string]int64, error)
}

type incidentRepository struct {
	pool *pgxpool.Pool
}

// NewIncidentRepository instantiates repository.
func NewIncidentRepository(pool *pgxpool.Pool) IncidentRepository {
	return &incidentRepository{pool: pool}
}

func (r *incidentRepository) GetByID(ctx context.Context, id string) (*domain.IncidentReport, error) {
	query := fmt.Sprintf(`SELECT %s FROM incident_reports WHERE id=$1`, incidentColumns)
	var incident domain.IncidentReport
	if err := scanIncident(r.pool.QueryRow(ctx, query, id), &incident); err != nil {
		return nil, err
	}
	return &incident, nil
}

func (r *incidentRepository) ListWithFilter(ctx context.Context, filter IncidentFilter) ([]domain.IncidentReport, error) {
	base := fmt.Sprintf(`SELECT %s FROM incident_reports`, incidentColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("reporter_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, it := range filter.Types {
			args = append(args, it)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("incident_type IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIncidents(rows)
}

func (r *incidentRepository) CountTotal(ctx context.Context) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM incident_reports`).Scan(&total)
	return total, err
}

func (r *incidentRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return r.countGrouped(ctx, "status")
}

func (r *incidentRepository) CountByType(ctx context.Context) (map[string]int64, error) {
	return r.countGrouped(ctx, "incident_type")
}

func (r *incidentRepository) CountByPriority(ctx context.Context) (map[string]int64, error) {
	return r.countGrouped(ctx, "priority")
}

func (r *incidentRepository) countGrouped(ctx context.Context, column string) (map[string]int64, error) {
	query := fmt.Sprintf(`SELECT %s, COUNT(*) FROM incident_reports GROUP BY %s`, column, column)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

func scanIncident(row pgx.Row, incident *domain.IncidentReport) error {
	return row.Scan(
		&incident.ID,
		&incident.ReporterID,
		&incident.Type,
		&incident.Description,
		&incident.Location,
		&incident.Status,
		&incident.Priority,
		&incident.AssignedTo,
		&incident.AssignedAt,
		&incident.ResolutionNotes,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	)
}

func scanIncidents(rows pgx.Rows) ([]domain.IncidentReport, error) {
	var result []domain.IncidentReport
	for rows.Next() {
		var incident domain.IncidentReport
		if err := scanIncident(rows, &incident); err != nil {
			return nil, err
		}
		result = append(result, incident)
	}
	return result, rows.Err()
}
