package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicwatch/incident-service/internal/domain"
)

// ErrLockUnavailable is returned when the incident row lock could not be
// acquired within the configured wait bound.
var ErrLockUnavailable = errors.New("incident lock unavailable")

// LockedIncident is the view of an incident row while its lock is held.
// Mutations are staged in the surrounding transaction and become visible
// only when the lock section commits.
type LockedIncident interface {
	// Incident returns the row as of lock acquisition, i.e. the latest
	// committed state.
	Incident() *domain.IncidentReport
	// SetAssignee binds the incident to an official and moves it to ASSIGNED.
	SetAssignee(ctx context.Context, assigneeID string, at time.Time) error
	// RefreshAssignedAt updates only the assignment timestamp.
	RefreshAssignedAt(ctx context.Context, at time.Time) error
	// SetStatus transitions the lifecycle state, optionally clearing the
	// assignee (required when closing).
	SetStatus(ctx context.Context, status domain.IncidentStatus, resolutionNotes string, clearAssignee bool) error
}

// IncidentLocker serializes read-decide-write sequences per incident. The
// lock is scoped to a single row: claims on different incidents never
// contend. The callback's mutations and the lock release are one atomic
// unit; the commit happens before the lock is observed as released.
type IncidentLocker interface {
	WithIncidentLock(ctx context.Context, incidentID string, fn func(ctx context.Context, li LockedIncident) error) error
}

type incidentLocker struct {
	pool     *pgxpool.Pool
	lockWait time.Duration
}

// NewIncidentLocker builds a row-lock based locker. lockWait bounds the wait
// on a contended row; zero waits indefinitely.
func NewIncidentLocker(pool *pgxpool.Pool, lockWait time.Duration) IncidentLocker {
	return &incidentLocker{pool: pool, lockWait: lockWait}
}

func (l *incidentLocker) WithIncidentLock(ctx context.Context, incidentID string, fn func(ctx context.Context, li LockedIncident) error) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin incident lock tx: %w", err)
	}
	// Rollback is a no-op once the transaction has committed; it guarantees
	// the lock is released on every other exit path.
	defer tx.Rollback(ctx) //nolint:errcheck

	if l.lockWait > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", l.lockWait.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}

	query := fmt.Sprintf(`SELECT %s FROM incident_reports WHERE id=$1 FOR UPDATE`, incidentColumns)
	var incident domain.IncidentReport
	if err := scanIncident(tx.QueryRow(ctx, query, incidentID), &incident); err != nil {
		if isLockTimeout(err) {
			return fmt.Errorf("%w: %v", ErrLockUnavailable, err)
		}
		return err
	}

	li := &lockedIncident{tx: tx, incident: &incident}
	if err := fn(ctx, li); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit incident lock tx: %w", err)
	}
	return nil
}

// isLockTimeout matches Postgres lock_not_available (55P03).
func isLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "55P03"
}

type lockedIncident struct {
	tx       pgx.Tx
	incident *domain.IncidentReport
}

func (li *lockedIncident) Incident() *domain.IncidentReport {
	return li.incident
}

func (li *lockedIncident) SetAssignee(ctx context.Context, assigneeID string, at time.Time) error {
	const query = `
        UPDATE incident_reports
        SET assigned_to=$1, assigned_at=$2, status=$3, updated_at=NOW()
        WHERE id=$4`
	cmd, err := li.tx.Exec(ctx, query, assigneeID, at, domain.IncidentStatusAssigned, li.incident.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	li.incident.AssignedTo = &assigneeID
	li.incident.AssignedAt = &at
	li.incident.Status = domain.IncidentStatusAssigned
	return nil
}

func (li *lockedIncident) RefreshAssignedAt(ctx context.Context, at time.Time) error {
	const query = `
        UPDATE incident_reports SET assigned_at=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := li.tx.Exec(ctx, query, at, li.incident.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	li.incident.AssignedAt = &at
	return nil
}

func (li *lockedIncident) SetStatus(ctx context.Context, status domain.IncidentStatus, resolutionNotes string, clearAssignee bool) error {
	if clearAssignee {
		const query = `
            UPDATE incident_reports
            SET status=$1, resolution_notes=$2, assigned_to=NULL, assigned_at=NULL, updated_at=NOW()
            WHERE id=$3`
		if _, err := li.tx.Exec(ctx, query, status, resolutionNotes, li.incident.ID); err != nil {
			return err
		}
		li.incident.AssignedTo = nil
		li.incident.AssignedAt = nil
	} else {
		const query = `
            UPDATE incident_reports
            SET status=$1, resolution_notes=$2, updated_at=NOW()
            WHERE id=$3`
		if _, err := li.tx.Exec(ctx, query, status, resolutionNotes, li.incident.ID); err != nil {
			return err
		}
	}
	li.incident.Status = status
	li.incident.ResolutionNotes = resolutionNotes
	return nil
}
