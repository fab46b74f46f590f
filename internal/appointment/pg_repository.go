package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/conflict"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/interval"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queries holds the reads shared by the pool and by transactions.
type queries struct {
	db querier
}

type PgRepository struct {
	queries
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{queries: queries{db: pool}, pool: pool}
}

type pgTx struct {
	queries
	tx pgx.Tx
}

const appointmentColumns = `id, patient_id, doctor_id, room_id, start_time, end_time, status,
	rescheduled_to_appointment_id, reason_code, notes, completed_at, created_at, updated_at`

const serviceColumns = `id, code, name, duration_minutes, buffer_minutes, price, active,
	required_specializations, minimum_preparation_days, recovery_days, spacing_days, max_appointments_per_day`

const activeStatusList = `('SCHEDULED', 'CHECKED_IN', 'IN_PROGRESS')`

// Helpers

func scanPatient(row pgx.Row) (*domain.Patient, error) {
	var p domain.Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
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

func scanEmployee(row pgx.Row) (*domain.Employee, error) {
	var e domain.Employee

	err := row.Scan(&e.ID, &e.Name, &e.Role, &e.Active, &e.Specializations)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmployeeNotFound
		}
		return nil, err
	}
	return &e, nil
}

func scanRoom(row pgx.Row) (*domain.Room, error) {
	var r domain.Room
	var serviceIDs []string

	err := row.Scan(&r.ID, &r.Code, &r.Name, &r.Active, &serviceIDs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	ids, err := parseUUIDs(serviceIDs)
	if err != nil {
		return nil, err
	}
	r.ServiceIDs = ids
	return &r, nil
}

func scanService(row pgx.Row) (*domain.DentalService, error) {
	var s domain.DentalService

	err := row.Scan(
		&s.ID,
		&s.Code,
		&s.Name,
		&s.DurationMinutes,
		&s.BufferMinutes,
		&s.Price,
		&s.Active,
		&s.RequiredSpecializations,
		&s.MinimumPreparationDays,
		&s.RecoveryDays,
		&s.SpacingDays,
		&s.MaxAppointmentsPerDay,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanAppointment(row pgx.Row) (*domain.Appointment, error) {
	var a domain.Appointment
	var reasonCode, notes *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.RoomID,
		&a.Start,
		&a.End,
		&a.Status,
		&a.RescheduledToAppointmentID,
		&reasonCode,
		&notes,
		&a.CompletedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if reasonCode != nil {
		a.ReasonCode = *reasonCode
	}
	if notes != nil {
		a.Notes = *notes
	}
	return &a, nil
}

func scanDependency(row pgx.Row) (*domain.ServiceDependency, error) {
	var d domain.ServiceDependency
	var note *string

	err := row.Scan(&d.ID, &d.ServiceID, &d.DependentServiceID, &d.RuleType, &d.MinDaysApart, &note)
	if err != nil {
		return nil, err
	}
	if note != nil {
		d.Note = *note
	}
	return &d, nil
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse uuid %q: %w", s, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// mapTxError turns serialization failures, deadlocks and overlap
// exclusion violations into the retryable concurrent-write kind.
func mapTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return domain.ConcurrentWrite("transaction could not be serialized").With("pg_code", pgErr.Code)
		case "23P01":
			return domain.ConcurrentWrite("overlapping booking committed concurrently").
				With("pg_code", pgErr.Code).
				With("constraint", pgErr.ConstraintName)
		}
	}
	return err
}

func collectAppointments(rows pgx.Rows) ([]domain.Appointment, error) {
	defer rows.Close()

	var result []domain.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func collectServices(rows pgx.Rows) ([]domain.DentalService, error) {
	defer rows.Close()

	var result []domain.DentalService
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Shared reads

// ListBusy returns occupied intervals overlapping window. Doctors and
// participants resolve to the same employee: either role makes them busy.
func (q queries) ListBusy(ctx context.Context, kind conflict.ResourceKind, id uuid.UUID, window interval.Interval, exclude uuid.UUID) ([]interval.Interval, error) {
	var sql string
	switch kind {
	case conflict.KindRoom:
		sql = `
			SELECT a.start_time, a.end_time
			FROM appointments a
			WHERE a.room_id = $1
			  AND a.status IN ` + activeStatusList + `
			  AND a.start_time < $3 AND a.end_time > $2
			  AND a.id <> $4
			ORDER BY a.start_time`
	case conflict.KindDoctor, conflict.KindParticipant:
		sql = `
			SELECT a.start_time, a.end_time
			FROM appointments a
			WHERE a.status IN ` + activeStatusList + `
			  AND a.start_time < $3 AND a.end_time > $2
			  AND a.id <> $4
			  AND (a.doctor_id = $1 OR EXISTS (
			        SELECT 1 FROM appointment_participants p
			        WHERE p.appointment_id = a.id AND p.employee_id = $1))
			ORDER BY a.start_time`
	default:
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}

	rows, err := q.db.Query(ctx, sql, id, window.Start, window.End, exclude)
	if err != nil {
		return nil, fmt.Errorf("list busy %s: %w", kind, err)
	}
	defer rows.Close()

	var result []interval.Interval
	for rows.Next() {
		var iv interval.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		result = append(result, iv)
	}
	return result, rows.Err()
}

func (q queries) CountServiceBookings(ctx context.Context, serviceID uuid.UUID, date time.Time, exclude uuid.UUID) (int, error) {
	day := interval.DayWindow(date)

	var n int
	err := q.db.QueryRow(ctx, `
		SELECT count(DISTINCT a.id)
		FROM appointments a
		JOIN appointment_services s ON s.appointment_id = a.id
		WHERE s.service_id = $1
		  AND a.status <> 'CANCELLED'
		  AND a.start_time >= $2 AND a.start_time < $3
		  AND a.id <> $4
	`, serviceID, day.Start, day.End, exclude).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count service bookings: %w", err)
	}
	return n, nil
}

// Catalog

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*domain.Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetEmployee(ctx context.Context, id uuid.UUID) (*domain.Employee, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, role, active, specializations
		FROM employees
		WHERE id = $1
	`, id)
	return scanEmployee(row)
}

func (r *PgRepository) ListActiveEmployees(ctx context.Context) ([]domain.Employee, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, role, active, specializations
		FROM employees
		WHERE active
		ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var result []domain.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

const roomSelect = `
	SELECT r.id, r.code, r.name, r.active,
	       COALESCE(array_agg(rs.service_id::text) FILTER (WHERE rs.service_id IS NOT NULL), '{}')
	FROM rooms r
	LEFT JOIN room_services rs ON rs.room_id = r.id`

func (r *PgRepository) GetRoom(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	row := r.db.QueryRow(ctx, roomSelect+`
		WHERE r.id = $1
		GROUP BY r.id
	`, id)
	return scanRoom(row)
}

func (r *PgRepository) ListActiveRooms(ctx context.Context) ([]domain.Room, error) {
	rows, err := r.db.Query(ctx, roomSelect+`
		WHERE r.active
		GROUP BY r.id
		ORDER BY r.code
	`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var result []domain.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *room)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListServicesByCodes(ctx context.Context, codes []string) ([]domain.DentalService, error) {
	rows, err := r.db.Query(ctx, `SELECT `+serviceColumns+` FROM dental_services WHERE code = ANY($1)`, codes)
	if err != nil {
		return nil, fmt.Errorf("list services by code: %w", err)
	}
	return collectServices(rows)
}

func (r *PgRepository) ListServicesByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.DentalService, error) {
	rows, err := r.db.Query(ctx, `SELECT `+serviceColumns+` FROM dental_services WHERE id = ANY($1::uuid[])`, uuidStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("list services by id: %w", err)
	}
	return collectServices(rows)
}

// Calendar

func (r *PgRepository) ListShifts(ctx context.Context, employeeID uuid.UUID, date time.Time) ([]domain.WorkingShift, error) {
	rows, err := r.db.Query(ctx, `
		SELECT employee_id, shift_date, start_time, end_time
		FROM working_shifts
		WHERE employee_id = $1 AND shift_date = $2
		ORDER BY start_time
	`, employeeID, interval.DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	defer rows.Close()

	var result []domain.WorkingShift
	for rows.Next() {
		var s domain.WorkingShift
		if err := rows.Scan(&s.EmployeeID, &s.Date, &s.Start, &s.End); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListEmployeesOnShift(ctx context.Context, date time.Time) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT employee_id
		FROM working_shifts
		WHERE shift_date = $1
	`, interval.DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("list employees on shift: %w", err)
	}
	defer rows.Close()

	var result []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	return result, rows.Err()
}

func (r *PgRepository) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM holidays WHERE holiday_date = $1)
	`, interval.DateOf(date)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check holiday: %w", err)
	}
	return exists, nil
}

// History

func (r *PgRepository) ListCompletedVisits(ctx context.Context, patientID uuid.UUID, limit int) ([]domain.CompletedVisit, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.start_time, array_agg(s.service_id::text ORDER BY s.service_id)
		FROM appointments a
		JOIN appointment_services s ON s.appointment_id = a.id
		WHERE a.patient_id = $1 AND a.status = 'COMPLETED'
		GROUP BY a.id, a.start_time
		ORDER BY a.start_time DESC
		LIMIT $2
	`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list completed visits: %w", err)
	}
	defer rows.Close()

	var result []domain.CompletedVisit
	for rows.Next() {
		var v domain.CompletedVisit
		var start time.Time
		var raw []string
		if err := rows.Scan(&v.AppointmentID, &start, &raw); err != nil {
			return nil, err
		}
		ids, err := parseUUIDs(raw)
		if err != nil {
			return nil, err
		}
		v.Date = interval.DateOf(start)
		v.ServiceIDs = ids
		result = append(result, v)
	}
	return result, rows.Err()
}

func (r *PgRepository) CompletedServiceDates(ctx context.Context, patientID uuid.UUID) (map[uuid.UUID]time.Time, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.service_id, max(a.start_time)
		FROM appointments a
		JOIN appointment_services s ON s.appointment_id = a.id
		WHERE a.patient_id = $1 AND a.status = 'COMPLETED'
		GROUP BY s.service_id
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("completed service dates: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID]time.Time)
	for rows.Next() {
		var id uuid.UUID
		var last time.Time
		if err := rows.Scan(&id, &last); err != nil {
			return nil, err
		}
		result[id] = interval.DateOf(last)
	}
	return result, rows.Err()
}

// Dependencies

func (r *PgRepository) ListDependencies(ctx context.Context) ([]domain.ServiceDependency, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, service_id, dependent_service_id, rule_type, min_days_apart, note
		FROM service_dependencies
		ORDER BY service_id, rule_type, dependent_service_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	defer rows.Close()

	var result []domain.ServiceDependency
	for rows.Next() {
		d, err := scanDependency(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateDependencies(ctx context.Context, deps []domain.ServiceDependency) ([]domain.ServiceDependency, error) {
	created := make([]domain.ServiceDependency, 0, len(deps))

	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, dep := range deps {
			row := tx.QueryRow(ctx, `
				INSERT INTO service_dependencies (id, service_id, dependent_service_id, rule_type, min_days_apart, note)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id, service_id, dependent_service_id, rule_type, min_days_apart, note
			`, dep.ID, dep.ServiceID, dep.DependentServiceID, dep.RuleType, dep.MinDaysApart, nullIfEmpty(dep.Note))
			d, err := scanDependency(row)
			if err != nil {
				return err
			}
			created = append(created, *d)
		}
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return nil, domain.Conflict("dependency_exists", "dependency already exists")
			case "23503":
				return nil, domain.NotFound("service_not_found", "dependency references an unknown service")
			}
		}
		return nil, fmt.Errorf("create dependencies: %w", err)
	}
	return created, nil
}

// Appointments

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*domain.AppointmentDetail, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	detail := &domain.AppointmentDetail{Appointment: *a}

	rows, err := r.db.Query(ctx, `
		SELECT appointment_id, service_id, price_snapshot, duration_snapshot, buffer_snapshot
		FROM appointment_services
		WHERE appointment_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment services: %w", err)
	}
	for rows.Next() {
		var s domain.AppointmentService
		if err := rows.Scan(&s.AppointmentID, &s.ServiceID, &s.PriceSnapshot, &s.DurationSnapshot, &s.BufferSnapshot); err != nil {
			rows.Close()
			return nil, err
		}
		detail.Services = append(detail.Services, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.Query(ctx, `
		SELECT appointment_id, employee_id, role
		FROM appointment_participants
		WHERE appointment_id = $1
		ORDER BY employee_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment participants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.AppointmentParticipant
		if err := rows.Scan(&p.AppointmentID, &p.EmployeeID, &p.Role); err != nil {
			return nil, err
		}
		detail.Participants = append(detail.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return detail, nil
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]domain.Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FindStaleScheduled(ctx context.Context, cutoff time.Time, limit int) ([]domain.Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'SCHEDULED'
		  AND end_time < $1
		ORDER BY end_time
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to domain.AppointmentStatus, reasonCode string, at time.Time) (*domain.Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    reason_code = COALESCE($4, reason_code),
		    completed_at = CASE WHEN $2 = 'COMPLETED' THEN $5 ELSE completed_at END,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns, id, string(to), string(from), nullIfEmpty(reasonCode), at)

	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, r.missingOrChanged(ctx, r.queries, id)
	}
	return a, err
}

// missingOrChanged tells a vanished row apart from a status race after a
// conditional update matched nothing.
func (r *PgRepository) missingOrChanged(ctx context.Context, q queries, id uuid.UUID) error {
	var exists bool
	if err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrAppointmentNotFound
	}
	return ErrStatusChanged
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev domain.EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

// WithTx runs fn in a SERIALIZABLE transaction.
func (r *PgRepository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		return fn(&pgTx{queries: queries{db: tx}, tx: tx})
	})
	return mapTxError(err)
}

// Transaction writes

func (t *pgTx) InsertAppointment(ctx context.Context, d *domain.AppointmentDetail) error {
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO appointments (id, patient_id, doctor_id, room_id, start_time, end_time, status,
		                          reason_code, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, d.ID, d.PatientID, d.DoctorID, d.RoomID, d.Start, d.End, string(d.Status),
		nullIfEmpty(d.ReasonCode), nullIfEmpty(d.Notes), d.CreatedAt)

	for i, s := range d.Services {
		batch.Queue(`
			INSERT INTO appointment_services (appointment_id, service_id, position, price_snapshot, duration_snapshot, buffer_snapshot)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, d.ID, s.ServiceID, i, s.PriceSnapshot, s.DurationSnapshot, s.BufferSnapshot)
	}
	for _, p := range d.Participants {
		batch.Queue(`
			INSERT INTO appointment_participants (appointment_id, employee_id, role)
			VALUES ($1, $2, $3)
		`, d.ID, p.EmployeeID, string(p.Role))
	}

	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *pgTx) UpdateAppointmentTimes(ctx context.Context, id uuid.UUID, from, start, end time.Time) (*domain.Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $2,
		    end_time = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'SCHEDULED'
		  AND start_time = $4
		RETURNING `+appointmentColumns, id, start, end, from)

	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrStatusChanged
	}
	return a, err
}

func (t *pgTx) MarkRescheduled(ctx context.Context, oldID, newID uuid.UUID) (*domain.Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'CANCELLED',
		    reason_code = $3,
		    rescheduled_to_appointment_id = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'SCHEDULED'
		RETURNING `+appointmentColumns, oldID, newID, domain.ReasonRescheduled)

	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrStatusChanged
	}
	return a, err
}

func (t *pgTx) MarkPlanItemScheduled(ctx context.Context, itemID, appointmentID uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE treatment_plan_items
		SET status = 'SCHEDULED',
		    appointment_id = $2,
		    updated_at = now()
		WHERE id = $1
	`, itemID, appointmentID)
	if err != nil {
		return fmt.Errorf("mark plan item scheduled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPlanItemNotFound
	}
	return nil
}

var _ Repository = (*PgRepository)(nil)
