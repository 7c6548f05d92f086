package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"agenda-service/internal/apperr"
	"agenda-service/internal/model"
)

// exclusionViolation is the SQLSTATE raised when a write hits the
// appointments_no_overlap constraint.
const exclusionViolation = "23P01"

// slotTaken reports whether err is the database rejecting an overlapping
// appointment row.
func slotTaken(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == exclusionViolation
}

const appointmentColumns = `id, professional_id, specialty_id, client_id, start_at_utc, end_at_utc,
       status, COALESCE(external_event_id, ''), sync_tagged, created_at, updated_at`

func scanAppointment(row pgx.Row) (*model.Appointment, error) {
	a := &model.Appointment{}
	err := row.Scan(&a.ID, &a.ProfessionalID, &a.SpecialtyID, &a.ClientID,
		&a.StartAtUTC, &a.EndAtUTC, &a.Status, &a.ExternalEventID,
		&a.SyncTagged, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// InsertIfFree checks the overlap invariant and inserts in one
// transaction. The pre-check gives the common conflict a clean answer
// without burning an insert; it cannot serialize two transactions that
// both see an empty window, so the appointments_no_overlap exclusion
// constraint backstops writers in other processes. Either path reports an
// occupied interval as apperr.ErrSlotTaken.
func (s *Store) InsertIfFree(ctx context.Context, a *model.Appointment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	checkQ := `SELECT id FROM appointments
	           WHERE professional_id=$1 AND status != 'canceled'
	             AND start_at_utc < $3 AND end_at_utc > $2
	           LIMIT 1 FOR UPDATE`
	var existingID string
	err = tx.QueryRow(ctx, checkQ, a.ProfessionalID, a.StartAtUTC, a.EndAtUTC).Scan(&existingID)
	if err == nil {
		return apperr.ErrSlotTaken
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	now := time.Now().UTC()
	insertQ := `INSERT INTO appointments
	            (id, professional_id, specialty_id, client_id, start_at_utc, end_at_utc, status, sync_tagged, created_at, updated_at)
	            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)`
	_, err = tx.Exec(ctx, insertQ,
		a.ID, a.ProfessionalID, a.SpecialtyID, a.ClientID,
		a.StartAtUTC, a.EndAtUTC, a.Status, a.SyncTagged, now)
	if slotTaken(err) {
		return apperr.ErrSlotTaken
	}
	if err != nil {
		return err
	}
	a.CreatedAt = now
	a.UpdatedAt = now

	return tx.Commit(ctx)
}

func (s *Store) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	q := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id=$1`
	return scanAppointment(s.pool.QueryRow(ctx, q, id))
}

// GetAppointmentByExternalEvent resolves the 1:1 externalEventId mapping.
func (s *Store) GetAppointmentByExternalEvent(ctx context.Context, externalEventID string) (*model.Appointment, error) {
	q := `SELECT ` + appointmentColumns + ` FROM appointments WHERE external_event_id=$1`
	return scanAppointment(s.pool.QueryRow(ctx, q, externalEventID))
}

// ListActiveAppointments returns the non-canceled appointments whose
// interval intersects [from, to), ordered by start.
func (s *Store) ListActiveAppointments(ctx context.Context, professionalID string, from, to time.Time) ([]model.Appointment, error) {
	q := `SELECT ` + appointmentColumns + `
	      FROM appointments
	      WHERE professional_id=$1 AND status != 'canceled'
	        AND start_at_utc < $3 AND end_at_utc > $2
	      ORDER BY start_at_utc`
	rows, err := s.pool.Query(ctx, q, professionalID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// UpdateAppointmentStatus performs a status transition, the only mutation
// path besides reschedule. Returns the updated row.
func (s *Store) UpdateAppointmentStatus(ctx context.Context, id, status string) (*model.Appointment, error) {
	q := `UPDATE appointments SET status=$2, updated_at=now()
	      WHERE id=$1
	      RETURNING ` + appointmentColumns
	return scanAppointment(s.pool.QueryRow(ctx, q, id, status))
}

// RescheduleIfFree moves an appointment to a new interval, re-checking
// the overlap invariant (excluding the appointment itself) in the same
// transaction.
func (s *Store) RescheduleIfFree(ctx context.Context, id string, start, end time.Time) (*model.Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	current, err := scanAppointment(tx.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}

	checkQ := `SELECT id FROM appointments
	           WHERE professional_id=$1 AND status != 'canceled' AND id != $2
	             AND start_at_utc < $4 AND end_at_utc > $3
	           LIMIT 1 FOR UPDATE`
	var existingID string
	err = tx.QueryRow(ctx, checkQ, current.ProfessionalID, id, start, end).Scan(&existingID)
	if err == nil {
		return nil, apperr.ErrSlotTaken
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	updated, err := scanAppointment(tx.QueryRow(ctx,
		`UPDATE appointments SET start_at_utc=$2, end_at_utc=$3, updated_at=now()
		 WHERE id=$1 RETURNING `+appointmentColumns, id, start, end))
	if slotTaken(err) {
		return nil, apperr.ErrSlotTaken
	}
	if err != nil {
		return nil, err
	}
	return updated, tx.Commit(ctx)
}

// SetExternalEventID links an appointment to its remote event. The unique
// index on external_event_id enforces the 1:1 mapping.
func (s *Store) SetExternalEventID(ctx context.Context, id, externalEventID string) error {
	q := `UPDATE appointments SET external_event_id=$2, sync_tagged=true, updated_at=now() WHERE id=$1`
	tag, err := s.pool.Exec(ctx, q, id, externalEventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
