package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"agenda-service/internal/apperr"
	"agenda-service/internal/model"
)

func (s *Store) InsertWorkingHoursRule(ctx context.Context, r *model.WorkingHoursRule) error {
	now := time.Now().UTC()

	var existingID int
	checkQ := `SELECT id FROM working_hours_rules WHERE professional_id=$1 AND day_of_week=$2 LIMIT 1`
	err := s.pool.QueryRow(ctx, checkQ, r.ProfessionalID, r.DayOfWeek).Scan(&existingID)
	if err == nil {
		return fmt.Errorf("%w: rule already exists for day %d", apperr.ErrValidation, r.DayOfWeek)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	q := `INSERT INTO working_hours_rules
	      (professional_id, day_of_week, is_working_day, start_time, end_time, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$6) RETURNING id`
	row := s.pool.QueryRow(ctx, q,
		r.ProfessionalID, r.DayOfWeek, r.IsWorkingDay, r.StartTime, r.EndTime, now)
	return row.Scan(&r.ID)
}

func (s *Store) UpdateWorkingHoursRule(ctx context.Context, r *model.WorkingHoursRule) error {
	q := `UPDATE working_hours_rules
	      SET is_working_day=$1, start_time=$2, end_time=$3, updated_at=now()
	      WHERE id=$4 AND professional_id=$5
	      RETURNING id`
	err := s.pool.QueryRow(ctx, q,
		r.IsWorkingDay, r.StartTime, r.EndTime, r.ID, r.ProfessionalID).Scan(&r.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrNotFound
	}
	return err
}

func (s *Store) ListWorkingHoursRules(ctx context.Context, professionalID string) ([]model.WorkingHoursRule, error) {
	q := `SELECT id, professional_id, day_of_week, is_working_day, start_time, end_time, created_at, updated_at
	      FROM working_hours_rules WHERE professional_id=$1 ORDER BY day_of_week`
	rows, err := s.pool.Query(ctx, q, professionalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WorkingHoursRule
	for rows.Next() {
		var r model.WorkingHoursRule
		if err := rows.Scan(&r.ID, &r.ProfessionalID, &r.DayOfWeek, &r.IsWorkingDay,
			&r.StartTime, &r.EndTime, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetProfessionalSettings falls back to an open calendar in UTC when the
// professional has never saved settings.
func (s *Store) GetProfessionalSettings(ctx context.Context, professionalID string) (model.ProfessionalSettings, error) {
	settings := model.ProfessionalSettings{ProfessionalID: professionalID, CalendarOpen: true, Timezone: "UTC"}
	q := `SELECT is_24h, calendar_open, timezone FROM professional_settings WHERE professional_id=$1`
	err := s.pool.QueryRow(ctx, q, professionalID).Scan(&settings.Is24h, &settings.CalendarOpen, &settings.Timezone)
	if errors.Is(err, pgx.ErrNoRows) {
		return settings, nil
	}
	return settings, err
}

func (s *Store) SaveProfessionalSettings(ctx context.Context, settings model.ProfessionalSettings) error {
	q := `INSERT INTO professional_settings (professional_id, is_24h, calendar_open, timezone, updated_at)
	      VALUES ($1,$2,$3,$4,now())
	      ON CONFLICT (professional_id)
	      DO UPDATE SET is_24h=$2, calendar_open=$3, timezone=$4, updated_at=now()`
	_, err := s.pool.Exec(ctx, q, settings.ProfessionalID, settings.Is24h, settings.CalendarOpen, settings.Timezone)
	return err
}

func (s *Store) GetSpecialty(ctx context.Context, id string) (*model.Specialty, error) {
	sp := &model.Specialty{}
	q := `SELECT id, name, duration_minutes, price_cents FROM specialties WHERE id=$1`
	err := s.pool.QueryRow(ctx, q, id).Scan(&sp.ID, &sp.Name, &sp.DurationMinutes, &sp.PriceCents)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sp, nil
}
