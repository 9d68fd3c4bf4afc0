package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careops/smart-scheduling/internal/config"
)

// Statuses that occupy a provider's calendar.
var bookedStatuses = []string{"scheduled", "confirmed"}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanAppointmentRef(row pgx.Row) (*AppointmentRef, error) {
	var ref AppointmentRef
	var priority string

	err := row.Scan(
		&ref.ID,
		&ref.PatientID,
		&ref.ProviderID,
		&ref.Start,
		&ref.End,
		&priority,
		&ref.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	ref.Priority, err = ParsePriority(priority)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// Interface methods

func (r *PgRepository) ListProviders(ctx context.Context, filter ProviderFilter) ([]Provider, error) {
	query := `
		SELECT id, name, department_id, specialty
		FROM providers
		WHERE is_active
	`
	args := []any{}

	if filter.ProviderID != uuid.Nil {
		args = append(args, filter.ProviderID)
		query += fmt.Sprintf(" AND id = $%d", len(args))
	} else if filter.DepartmentID != uuid.Nil {
		args = append(args, filter.DepartmentID)
		query += fmt.Sprintf(" AND department_id = $%d", len(args))
	}
	if filter.Specialty != "" {
		args = append(args, filter.Specialty)
		query += fmt.Sprintf(" AND specialty = $%d", len(args))
	}
	query += " ORDER BY id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []Provider
	ids := []uuid.UUID{}
	for rows.Next() {
		var p Provider
		var departmentID *uuid.UUID
		var specialty *string

		if err := rows.Scan(&p.ID, &p.Name, &departmentID, &specialty); err != nil {
			return nil, err
		}
		if departmentID != nil {
			p.DepartmentID = *departmentID
		}
		p.Specialty = specialty

		providers = append(providers, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		return nil, nil
	}

	sessions, err := r.workingSessions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range providers {
		providers[i].WorkingSessions = sessions[providers[i].ID]
	}

	return providers, nil
}

func (r *PgRepository) workingSessions(ctx context.Context, providerIDs []uuid.UUID) (map[uuid.UUID][]config.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT provider_id, start_minute, end_minute
		FROM provider_sessions
		WHERE provider_id = ANY($1)
		ORDER BY provider_id, start_minute
	`, providerIDs)
	if err != nil {
		return nil, fmt.Errorf("load provider sessions: %w", err)
	}
	defer rows.Close()

	sessions := make(map[uuid.UUID][]config.Session)
	for rows.Next() {
		var providerID uuid.UUID
		var s config.Session
		if err := rows.Scan(&providerID, &s.StartMinute, &s.EndMinute); err != nil {
			return nil, err
		}
		sessions[providerID] = append(sessions[providerID], s)
	}
	return sessions, rows.Err()
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) BookedIntervals(ctx context.Context, providerID uuid.UUID, day time.Time) ([]Interval, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE provider_id = $1
		  AND start_time >= $2
		  AND start_time < $3
		  AND status = ANY($4)
		ORDER BY start_time
	`, providerID, dayStart, dayEnd, bookedStatuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intervals []Interval
	for rows.Next() {
		var iv Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}
	return intervals, rows.Err()
}

func (r *PgRepository) CountConfirmedAppointments(ctx context.Context, providerID uuid.UUID, day time.Time) (int, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE provider_id = $1
		  AND start_time >= $2
		  AND start_time < $3
		  AND status = ANY($4)
	`, providerID, dayStart, dayEnd, bookedStatuses).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CommitBooking inserts the appointment inside one transaction, guarded by
// an overlap query so a double-booking is refused even if the caller's lock
// was lost. An idempotency key makes retries return the original row.
func (r *PgRepository) CommitBooking(ctx context.Context, req BookingRequest) (*AppointmentRef, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if req.IdempotencyKey != uuid.Nil {
		ref, err := scanAppointmentRef(tx.QueryRow(ctx, `
			SELECT id, patient_id, provider_id, start_time, end_time, priority, created_at
			FROM appointments
			WHERE idempotency_key = $1
		`, req.IdempotencyKey))
		if err == nil {
			return ref, nil
		}
		if !errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
	}

	var conflict Interval
	err = tx.QueryRow(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE provider_id = $1
		  AND start_time < $3
		  AND end_time > $2
		  AND status = ANY($4)
		LIMIT 1
		FOR UPDATE
	`, req.Slot.ProviderID, req.Slot.Start, req.Slot.End, bookedStatuses).Scan(&conflict.Start, &conflict.End)
	if err == nil {
		return nil, &SlotConflictError{ProviderID: req.Slot.ProviderID, Conflict: conflict}
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("conflict check: %w", err)
	}

	id := uuid.New()
	var departmentID *uuid.UUID
	if req.Slot.DepartmentID != uuid.Nil {
		departmentID = &req.Slot.DepartmentID
	}
	var idemKey *uuid.UUID
	if req.IdempotencyKey != uuid.Nil {
		idemKey = &req.IdempotencyKey
	}

	ref, err := scanAppointmentRef(tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, patient_id, provider_id, department_id, start_time, end_time,
			 status, reason, priority, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'scheduled', $7, $8, $9, now(), now())
		RETURNING id, patient_id, provider_id, start_time, end_time, priority, created_at
	`, id, req.PatientID, req.Slot.ProviderID, departmentID,
		req.Slot.Start, req.Slot.End, req.Reason, req.Priority.String(), idemKey))
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit booking tx: %w", err)
	}

	return ref, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
