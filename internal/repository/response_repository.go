package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicwatch/incident-service/internal/domain"
)

// ResponseRepository persists actions officials record against incidents.
type ResponseRepository interface {
	Create(ctx context.Context, response *domain.IncidentResponse) error
	ListByIncident(ctx context.Context, incidentID string) ([]domain.IncidentResponse, error)
}

type responseRepository struct {
	pool *pgxpool.Pool
}

// NewResponseRepository instantiates repository.
func NewResponseRepository(pool *pgxpool.Pool) ResponseRepository {
	return &responseRepository{pool: pool}
}

func (r *responseRepository) Create(ctx context.Context, response *domain.IncidentResponse) error {
	const query = `
        INSERT INTO incident_responses (incident_id, responder_id, action_type, description)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		response.IncidentID,
		response.ResponderID,
		response.ActionType,
		response.Description,
	).Scan(&response.ID, &response.CreatedAt)
}

func (r *responseRepository) ListByIncident(ctx context.Context, incidentID string) ([]domain.IncidentResponse, error) {
	const query = `
        SELECT id, incident_id, responder_id, action_type, description, created_at
        FROM incident_responses WHERE incident_id=$1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.IncidentResponse
	for rows.Next() {
		var response domain.IncidentResponse
		if err := rows.Scan(
			&response.ID,
			&response.IncidentID,
			&response.ResponderID,
			&response.ActionType,
			&response.Description,
			&response.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, response)
	}
	return result, rows.Err()
}
