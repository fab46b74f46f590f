package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const patientBatchSize = 500

// WritePostgres inserts the master data in one transaction and the patients
// in batches. Rows that already exist are left untouched.
func WritePostgres(ctx context.Context, pool *pgxpool.Pool, ds Dataset, logger zerolog.Logger) error {
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}

		for _, s := range ds.Services {
			batch.Queue(`
				INSERT INTO dental_services (id, code, name, duration_minutes, buffer_minutes, price, active,
					required_specializations, minimum_preparation_days, recovery_days, spacing_days, max_appointments_per_day)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				ON CONFLICT (code) DO NOTHING
			`, s.ID, s.Code, s.Name, s.DurationMinutes, s.BufferMinutes, s.Price, s.Active,
				s.RequiredSpecializations, s.MinimumPreparationDays, s.RecoveryDays, s.SpacingDays, s.MaxAppointmentsPerDay)
		}
		for _, e := range ds.Employees {
			batch.Queue(`
				INSERT INTO employees (id, name, role, active, specializations)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO NOTHING
			`, e.ID, e.Name, string(e.Role), e.Active, e.Specializations)
		}
		for _, r := range ds.Rooms {
			batch.Queue(`
				INSERT INTO rooms (id, code, name, active)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (code) DO NOTHING
			`, r.ID, r.Code, r.Name, r.Active)
			for _, sid := range r.ServiceIDs {
				// codes may already exist under other ids, so resolve both sides by code
				batch.Queue(`
					INSERT INTO room_services (room_id, service_id)
					SELECT r.id, s.id FROM rooms r, dental_services s
					WHERE r.code = $1 AND s.code = (SELECT code FROM dental_services WHERE id = $2)
					ON CONFLICT DO NOTHING
				`, r.Code, sid)
			}
		}
		for _, d := range ds.Dependencies {
			batch.Queue(`
				INSERT INTO service_dependencies (id, service_id, dependent_service_id, rule_type, min_days_apart, note)
				SELECT $1, $2, $3, $4, $5, $6
				WHERE EXISTS (SELECT 1 FROM dental_services WHERE id = $2)
				  AND EXISTS (SELECT 1 FROM dental_services WHERE id = $3)
				ON CONFLICT DO NOTHING
			`, d.ID, d.ServiceID, d.DependentServiceID, string(d.RuleType), d.MinDaysApart, d.Note)
		}
		for _, sh := range ds.Shifts {
			batch.Queue(`
				INSERT INTO working_shifts (employee_id, shift_date, start_time, end_time)
				VALUES ($1, $2, $3, $4)
			`, sh.EmployeeID, sh.Date, sh.Start, sh.End)
		}

		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("seed master data: %w", err)
	}
	logger.Info().
		Int("services", len(ds.Services)).
		Int("employees", len(ds.Employees)).
		Int("rooms", len(ds.Rooms)).
		Int("shifts", len(ds.Shifts)).
		Msg("master data seeded")

	for offset := 0; offset < len(ds.Patients); offset += patientBatchSize {
		end := min(offset+patientBatchSize, len(ds.Patients))

		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			batch := &pgx.Batch{}
			for _, p := range ds.Patients[offset:end] {
				batch.Queue(`
					INSERT INTO patients (id, name, email)
					VALUES ($1, $2, $3)
					ON CONFLICT (id) DO NOTHING
				`, p.ID, p.Name, p.Email)
			}
			return tx.SendBatch(ctx, batch).Close()
		})
		if err != nil {
			return fmt.Errorf("seed patients %d-%d: %w", offset, end, err)
		}
		logger.Info().Int("seeded", end).Int("total", len(ds.Patients)).Msg("patients seeded")
	}

	return nil
}
