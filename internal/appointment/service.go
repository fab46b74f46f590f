package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/constraint"
	"github.com/hackgods/clinic-scheduling/internal/dependency"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/interval"
	"github.com/hackgods/clinic-scheduling/internal/notify"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentCheckedIn   = "APPOINTMENT_CHECKED_IN"
	EventAppointmentStarted     = "APPOINTMENT_STARTED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentDelayed     = "APPOINTMENT_DELAYED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
)

const noShowBatch = 200

type Service struct {
	repo      Repository
	locker    redisclient.Locker
	validator *constraint.Validator
	rules     *dependency.Engine
	cfg       config.Config
	publisher notify.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, validator *constraint.Validator, rules *dependency.Engine, cfg config.Config, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		locker:    locker,
		validator: validator,
		rules:     rules,
		cfg:       cfg,
		publisher: notify.Nop{},
		logger:    logger.With().Str("component", "appointment").Logger(),
		now:       interval.Now,
	}
}

// WithPublisher forwards every logged appointment event to p after it is
// stored.
func (s *Service) WithPublisher(p notify.Publisher) *Service {
	s.publisher = p
	return s
}

// WithClock replaces the clinic wall clock. now must return wall-clock
// readings labelled UTC, see interval.WallClock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type ParticipantInput struct {
	EmployeeID uuid.UUID              `json:"employee_id"`
	Role       domain.ParticipantRole `json:"role"`
}

type CreateInput struct {
	PatientID           uuid.UUID
	DoctorID            uuid.UUID
	RoomID              uuid.UUID
	ServiceIDs          []uuid.UUID
	Participants        []ParticipantInput
	Start               time.Time
	ReasonCode          string
	Notes               string
	TreatmentPlanItemID *uuid.UUID
}

func (in CreateInput) validate() error {
	switch {
	case in.PatientID == uuid.Nil:
		return domain.InvalidInput("patient_id_required", "patient_id is required")
	case in.DoctorID == uuid.Nil:
		return domain.InvalidInput("doctor_id_required", "doctor_id is required")
	case in.RoomID == uuid.Nil:
		return domain.InvalidInput("room_id_required", "room_id is required")
	case in.Start.IsZero():
		return domain.InvalidInput("start_required", "start is required")
	case len(in.ServiceIDs) == 0:
		return domain.InvalidInput("services_required", "at least one service is required")
	}

	seen := make(map[uuid.UUID]struct{}, len(in.ServiceIDs))
	for _, id := range in.ServiceIDs {
		if id == uuid.Nil {
			return domain.InvalidInput("service_id_invalid", "service ids must not be empty")
		}
		if _, ok := seen[id]; ok {
			return domain.InvalidInput("duplicate_service", "service %s is listed twice", id)
		}
		seen[id] = struct{}{}
	}

	people := map[uuid.UUID]struct{}{in.DoctorID: {}}
	for _, p := range in.Participants {
		if p.EmployeeID == uuid.Nil {
			return domain.InvalidInput("participant_id_required", "participant employee_id is required")
		}
		if !p.Role.Valid() {
			return domain.InvalidInput("participant_role_invalid", "unknown participant role %q", p.Role)
		}
		if _, ok := people[p.EmployeeID]; ok {
			return domain.InvalidInput("duplicate_participant", "employee %s is already on this appointment", p.EmployeeID)
		}
		people[p.EmployeeID] = struct{}{}
	}
	return nil
}

// booking is a fully validated appointment waiting for the write path.
type booking struct {
	detail   domain.AppointmentDetail
	services []domain.DentalService
	span     interval.Interval
}

func (b *booking) employeeIDs() []uuid.UUID {
	ids := []uuid.UUID{b.detail.DoctorID}
	for _, p := range b.detail.Participants {
		ids = append(ids, p.EmployeeID)
	}
	return ids
}

// CreateAppointment books a doctor, a room and optional participants for a
// set of services. Checks run cheapest first: day-based constraints,
// clinical dependencies, then resource conflicts under per-resource locks
// inside a serializable transaction. Nothing is written unless every step
// passes. A lost race is retried once.
func (s *Service) CreateAppointment(ctx context.Context, in CreateInput) (*domain.AppointmentDetail, error) {
	var created *domain.AppointmentDetail

	err := s.withRetry(ctx, "create", func() error {
		b, err := s.prepare(ctx, in, uuid.Nil)
		if err != nil {
			return err
		}
		if err := s.commit(ctx, b, uuid.Nil, in.TreatmentPlanItemID, nil); err != nil {
			return err
		}
		created = &b.detail
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, created.ID, EventAppointmentCreated, map[string]any{
		"patient_id": created.PatientID.String(),
		"doctor_id":  created.DoctorID.String(),
		"room_id":    created.RoomID.String(),
		"start":      created.Start,
		"end":        created.End,
	})
	s.logger.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", created.DoctorID.String()).
		Str("room_id", created.RoomID.String()).
		Time("start", created.Start).
		Time("end", created.End).
		Msg("appointment created")

	return created, nil
}

// prepare validates input, loads master data and runs every history-based
// rule. It performs reads only.
func (s *Service) prepare(ctx context.Context, in CreateInput, exclude uuid.UUID) (*booking, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPatientByID(ctx, in.PatientID); err != nil {
		return nil, err
	}

	services, err := s.loadServices(ctx, in.ServiceIDs)
	if err != nil {
		return nil, err
	}
	if err := s.checkDoctor(ctx, in.DoctorID, services); err != nil {
		return nil, err
	}
	if err := s.checkRoom(ctx, in.RoomID, services); err != nil {
		return nil, err
	}
	for _, p := range in.Participants {
		if err := s.checkParticipant(ctx, p.EmployeeID); err != nil {
			return nil, err
		}
	}

	total := domain.TotalDuration(services)
	span, err := interval.FromDuration(in.Start, total)
	if err != nil {
		return nil, domain.InvalidInput("non_positive_duration", "services add up to %s", total)
	}

	if err := s.validator.ValidateAll(ctx, in.PatientID, in.Start, services, exclude); err != nil {
		return nil, s.annotateServiceCodes(ctx, err, services)
	}
	if err := s.rules.Evaluate(ctx, in.PatientID, in.ServiceIDs, in.Start); err != nil {
		return nil, s.annotateServiceCodes(ctx, err, services)
	}

	now := s.now()
	id := uuid.New()
	detail := domain.AppointmentDetail{
		Appointment: domain.Appointment{
			ID:         id,
			PatientID:  in.PatientID,
			DoctorID:   in.DoctorID,
			RoomID:     in.RoomID,
			Start:      span.Start,
			End:        span.End,
			Status:     domain.StatusScheduled,
			ReasonCode: in.ReasonCode,
			Notes:      in.Notes,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
	for _, svc := range services {
		detail.Services = append(detail.Services, domain.AppointmentService{
			AppointmentID:    id,
			ServiceID:        svc.ID,
			PriceSnapshot:    svc.Price,
			DurationSnapshot: svc.DurationMinutes,
			BufferSnapshot:   svc.BufferMinutes,
		})
	}
	for _, p := range in.Participants {
		detail.Participants = append(detail.Participants, domain.AppointmentParticipant{
			AppointmentID: id,
			EmployeeID:    p.EmployeeID,
			Role:          p.Role,
		})
	}

	return &booking{detail: detail, services: services, span: span}, nil
}

// commit is the write path: locks, conflict re-checks and inserts in one
// transaction. after runs inside the same transaction.
func (s *Service) commit(ctx context.Context, b *booking, exclude uuid.UUID, planItem *uuid.UUID, after func(ctx context.Context, tx Tx) error) error {
	keys := lockKeys(b.employeeIDs(), b.detail.RoomID, b.services, b.span.Start)
	if exclude != uuid.Nil {
		keys = append(keys, appointmentKey(exclude))
	}

	return s.underLocks(ctx, keys, func(lockCtx context.Context) error {
		return s.repo.WithTx(lockCtx, func(tx Tx) error {
			if err := checkResources(lockCtx, tx, b.span, b.detail.DoctorID, b.detail.RoomID, b.detail.Participants, exclude); err != nil {
				return err
			}
			if err := recheckDailyCaps(lockCtx, tx, b.services, b.span.Start, exclude); err != nil {
				return err
			}
			if err := tx.InsertAppointment(lockCtx, &b.detail); err != nil {
				return fmt.Errorf("insert appointment: %w", err)
			}
			if planItem != nil {
				if err := tx.MarkPlanItemScheduled(lockCtx, *planItem, b.detail.ID); err != nil {
					return err
				}
			}
			if after != nil {
				return after(lockCtx, tx)
			}
			return nil
		})
	})
}

type DelayInput struct {
	Minutes  int
	NewStart *time.Time
}

// DelayAppointment moves a SCHEDULED appointment in place, keeping its
// identity and duration.
func (s *Service) DelayAppointment(ctx context.Context, id uuid.UUID, in DelayInput) (*domain.AppointmentDetail, error) {
	var result *domain.AppointmentDetail

	err := s.withRetry(ctx, "delay", func() error {
		current, err := s.repo.GetAppointmentDetail(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != domain.StatusScheduled {
			return invalidTransition(current.Status, "delay")
		}

		var newStart time.Time
		switch {
		case in.NewStart != nil:
			newStart = *in.NewStart
		case in.Minutes > 0:
			newStart = current.Start.Add(time.Duration(in.Minutes) * time.Minute)
		default:
			return domain.InvalidInput("delay_required", "minutes must be positive or new_start given")
		}

		span, err := interval.FromDuration(newStart, current.End.Sub(current.Start))
		if err != nil {
			return domain.InvalidInput("invalid_interval", "appointment has no duration")
		}

		services, err := s.loadServices(ctx, serviceIDsOf(current))
		if err != nil {
			return err
		}

		dayChanged := !interval.SameDay(current.Start, newStart)
		if dayChanged {
			if err := s.validator.ValidateAll(ctx, current.PatientID, newStart, services, id); err != nil {
				return s.annotateServiceCodes(ctx, err, services)
			}
			if err := s.rules.Evaluate(ctx, current.PatientID, serviceIDsOf(current), newStart); err != nil {
				return s.annotateServiceCodes(ctx, err, services)
			}
		}

		employees := []uuid.UUID{current.DoctorID}
		for _, p := range current.Participants {
			employees = append(employees, p.EmployeeID)
		}
		keys := append(lockKeys(employees, current.RoomID, services, newStart), appointmentKey(id))

		return s.underLocks(ctx, keys, func(lockCtx context.Context) error {
			return s.repo.WithTx(lockCtx, func(tx Tx) error {
				if err := checkResources(lockCtx, tx, span, current.DoctorID, current.RoomID, current.Participants, id); err != nil {
					return err
				}
				if dayChanged {
					if err := recheckDailyCaps(lockCtx, tx, services, newStart, id); err != nil {
						return err
					}
				}
				updated, err := tx.UpdateAppointmentTimes(lockCtx, id, current.Start, span.Start, span.End)
				if err != nil {
					// moved or left SCHEDULED since the read; the retry re-reads it
					if errors.Is(err, ErrStatusChanged) {
						return domain.ConcurrentWrite("appointment changed while it was being delayed").
							With("appointment_id", id.String())
					}
					return fmt.Errorf("update appointment times: %w", err)
				}
				current.Appointment = *updated
				result = current
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, id, EventAppointmentDelayed, map[string]any{
		"start": result.Start,
		"end":   result.End,
	})
	return result, nil
}

type RescheduleInput struct {
	Start        time.Time
	DoctorID     *uuid.UUID
	RoomID       *uuid.UUID
	Participants []ParticipantInput // nil keeps the current participants
	Notes        *string
}

type RescheduleResult struct {
	Old domain.Appointment       `json:"old"`
	New domain.AppointmentDetail `json:"new"`
}

// RescheduleAppointment books a replacement and cancels the original in the
// same transaction. The original is left CANCELLED with reason RESCHEDULED
// and a link to the replacement, and its interval becomes free.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, in RescheduleInput) (*RescheduleResult, error) {
	var result *RescheduleResult

	err := s.withRetry(ctx, "reschedule", func() error {
		old, err := s.repo.GetAppointmentDetail(ctx, id)
		if err != nil {
			return err
		}
		if old.Status != domain.StatusScheduled {
			return invalidTransition(old.Status, "reschedule")
		}

		create := CreateInput{
			PatientID:  old.PatientID,
			DoctorID:   old.DoctorID,
			RoomID:     old.RoomID,
			ServiceIDs: serviceIDsOf(old),
			Start:      in.Start,
			ReasonCode: old.ReasonCode,
			Notes:      old.Notes,
		}
		if in.DoctorID != nil {
			create.DoctorID = *in.DoctorID
		}
		if in.RoomID != nil {
			create.RoomID = *in.RoomID
		}
		if in.Notes != nil {
			create.Notes = *in.Notes
		}
		if in.Participants != nil {
			create.Participants = in.Participants
		} else {
			for _, p := range old.Participants {
				create.Participants = append(create.Participants, ParticipantInput{EmployeeID: p.EmployeeID, Role: p.Role})
			}
		}

		b, err := s.prepare(ctx, create, id)
		if err != nil {
			return err
		}

		var cancelled *domain.Appointment
		err = s.commit(ctx, b, id, nil, func(txCtx context.Context, tx Tx) error {
			a, err := tx.MarkRescheduled(txCtx, id, b.detail.ID)
			if err != nil {
				if errors.Is(err, ErrStatusChanged) {
					return invalidTransition(old.Status, "reschedule")
				}
				return fmt.Errorf("mark rescheduled: %w", err)
			}
			cancelled = a
			return nil
		})
		if err != nil {
			return err
		}

		result = &RescheduleResult{Old: *cancelled, New: b.detail}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, id, EventAppointmentRescheduled, map[string]any{
		"rescheduled_to": result.New.ID.String(),
	})
	s.logEvent(ctx, result.New.ID, EventAppointmentCreated, map[string]any{
		"rescheduled_from": id.String(),
		"start":            result.New.Start,
		"end":              result.New.End,
	})
	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("rescheduled_to", result.New.ID.String()).
		Msg("appointment rescheduled")

	return result, nil
}

func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	return s.transition(ctx, id, domain.StatusCheckedIn, "", EventAppointmentCheckedIn)
}

func (s *Service) StartTreatment(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	return s.transition(ctx, id, domain.StatusInProgress, "", EventAppointmentStarted)
}

// Complete closes the appointment. Its date becomes history for future
// day-based and dependency checks.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	return s.transition(ctx, id, domain.StatusCompleted, "", EventAppointmentCompleted)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reasonCode string) (*domain.Appointment, error) {
	return s.transition(ctx, id, domain.StatusCancelled, reasonCode, EventAppointmentCancelled)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to domain.AppointmentStatus, reasonCode, event string) (*domain.Appointment, error) {
	current, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(current.Status, to) {
		return nil, invalidTransition(current.Status, string(to))
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, current.Status, to, reasonCode, s.now())
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, invalidTransition(current.Status, string(to))
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	payload := map[string]any{"from": current.Status, "to": to}
	if reasonCode != "" {
		payload["reason_code"] = reasonCode
	}
	s.logEvent(ctx, id, event, payload)

	return updated, nil
}

// CancelNoShows cancels SCHEDULED appointments whose end passed more than
// the configured grace ago without a check-in. It is meant to be called
// periodically and returns how many were cancelled.
func (s *Service) CancelNoShows(ctx context.Context) (int, error) {
	now := s.now()
	stale, err := s.repo.FindStaleScheduled(ctx, now.Add(-s.cfg.NoShowGrace), noShowBatch)
	if err != nil {
		return 0, fmt.Errorf("find stale appointments: %w", err)
	}

	cancelled := 0
	for _, appt := range stale {
		_, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, domain.StatusScheduled, domain.StatusCancelled, domain.ReasonNoShow, now)
		if err != nil {
			// checked in or cancelled since the read
			if errors.Is(err, ErrStatusChanged) || errors.Is(err, domain.ErrNotFound) {
				continue
			}
			s.logger.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to cancel no-show")
			continue
		}
		s.logEvent(ctx, appt.ID, EventAppointmentCancelled, map[string]any{
			"from":        domain.StatusScheduled,
			"to":          domain.StatusCancelled,
			"reason_code": domain.ReasonNoShow,
			"reason":      "worker",
		})
		cancelled++
	}
	return cancelled, nil
}

// GetAppointment retrieves a fully hydrated appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*domain.AppointmentDetail, error) {
	return s.repo.GetAppointmentDetail(ctx, id)
}

// ListAppointmentsByPatient retrieves appointments for a specific patient
func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]domain.Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appointments, nil
}

func (s *Service) loadServices(ctx context.Context, ids []uuid.UUID) ([]domain.DentalService, error) {
	found, err := s.repo.ListServicesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	byID := make(map[uuid.UUID]domain.DentalService, len(found))
	for _, svc := range found {
		byID[svc.ID] = svc
	}

	ordered := make([]domain.DentalService, 0, len(ids))
	for _, id := range ids {
		svc, ok := byID[id]
		if !ok {
			return nil, domain.NotFound("service_not_found", "service %s not found", id).With("service_id", id.String())
		}
		if !svc.Active {
			return nil, domain.Conflict(domain.CodeServiceInactive, "service %s is not offered", svc.Code).With("service_code", svc.Code)
		}
		ordered = append(ordered, svc)
	}
	return ordered, nil
}

func (s *Service) checkDoctor(ctx context.Context, id uuid.UUID, services []domain.DentalService) error {
	doctor, err := s.repo.GetEmployee(ctx, id)
	if err != nil {
		return err
	}
	if doctor.Role != domain.RoleDoctor {
		return domain.InvalidInput("not_a_doctor", "employee %s is not a doctor", id)
	}
	if !doctor.Active {
		return domain.Conflict(domain.CodeEmployeeInactive, "doctor %s is not active", doctor.Name).With("doctor_id", id.String())
	}
	required := domain.RequiredSpecializations(services)
	if !doctor.HasSpecializations(required) {
		return domain.Conflict(domain.CodeDoctorNotQualified, "doctor %s lacks a required specialization", doctor.Name).
			With("doctor_id", id.String()).
			With("required_specializations", required)
	}
	return nil
}

func (s *Service) checkRoom(ctx context.Context, id uuid.UUID, services []domain.DentalService) error {
	room, err := s.repo.GetRoom(ctx, id)
	if err != nil {
		return err
	}
	if !room.Active {
		return domain.Conflict(domain.CodeRoomInactive, "room %s is not active", room.Code).With("room_code", room.Code)
	}
	if !room.Supports(domain.ServiceIDs(services)) {
		codes := make([]string, len(services))
		for i, svc := range services {
			codes[i] = svc.Code
		}
		return domain.Conflict(domain.CodeRoomIncompatible, "room %s does not support this service combination", room.Code).
			With("room_code", room.Code).
			With("service_codes", codes)
	}
	return nil
}

func (s *Service) checkParticipant(ctx context.Context, id uuid.UUID) error {
	e, err := s.repo.GetEmployee(ctx, id)
	if err != nil {
		return err
	}
	if !e.Active {
		return domain.Conflict(domain.CodeEmployeeInactive, "employee %s is not active", e.Name).With("employee_id", id.String())
	}
	return nil
}

// underLocks maps a lost lock race to a ConcurrentWrite error.
func (s *Service) underLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	err := s.locker.WithLocks(ctx, keys, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return domain.ConcurrentWrite("resource is being booked by another request").With("lock", err.Error())
	}
	return err
}

// withRetry re-runs fn once when it lost a write race. All checks before
// the write are reads, so the retry is safe.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if !errors.Is(err, domain.ErrConcurrentWrite) {
		return err
	}

	s.logger.Warn().Str("op", op).Err(err).Msg("lost booking race, retrying once")

	timer := time.NewTimer(s.cfg.RetryBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	return fn()
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := domain.EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}

	if err := s.publisher.Publish(ctx, notify.Event{
		Type:          eventType,
		AppointmentID: appointmentID,
		Payload:       data,
		OccurredAt:    ev.CreatedAt,
	}); err != nil {
		s.logger.Warn().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to publish event")
	}
}

func invalidTransition(from domain.AppointmentStatus, action string) error {
	return domain.Conflict(domain.CodeInvalidTransition, "cannot %s an appointment in status %s", action, from).
		With("status", string(from)).
		With("action", action)
}

func serviceIDsOf(d *domain.AppointmentDetail) []uuid.UUID {
	ids := make([]uuid.UUID, len(d.Services))
	for i, s := range d.Services {
		ids[i] = s.ServiceID
	}
	return ids
}
