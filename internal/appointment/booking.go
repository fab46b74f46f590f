package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/conflict"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/interval"
)

// lockKeys names every resource a booking touches. Doctors and participants
// share the employee namespace so one person is never booked twice in either
// role. Capped services also lock their day counter.
func lockKeys(employees []uuid.UUID, roomID uuid.UUID, services []domain.DentalService, day time.Time) []string {
	keys := make([]string, 0, len(employees)+len(services)+1)
	for _, id := range employees {
		keys = append(keys, "employee:"+id.String())
	}
	keys = append(keys, "room:"+roomID.String())
	for _, svc := range services {
		if domain.PositiveOrZero(svc.MaxAppointmentsPerDay) > 0 {
			keys = append(keys, fmt.Sprintf("service-day:%s:%s", svc.ID, day.Format("2006-01-02")))
		}
	}
	return keys
}

func appointmentKey(id uuid.UUID) string {
	return "appointment:" + id.String()
}

// checkResources is the authoritative overlap check. It reads through tx so
// it observes the same snapshot the insert commits against.
func checkResources(ctx context.Context, tx Tx, span interval.Interval, doctorID, roomID uuid.UUID, participants []domain.AppointmentParticipant, exclude uuid.UUID) error {
	detector := conflict.NewDetector(tx)

	busy, err := detector.HasConflictExcluding(ctx, conflict.KindDoctor, doctorID, span, exclude)
	if err != nil {
		return fmt.Errorf("check doctor: %w", err)
	}
	if busy {
		return domain.Conflict(domain.CodeDoctorBusy, "doctor is already booked in this interval").
			With("doctor_id", doctorID.String()).
			With("start", span.Start).
			With("end", span.End)
	}

	busy, err = detector.HasConflictExcluding(ctx, conflict.KindRoom, roomID, span, exclude)
	if err != nil {
		return fmt.Errorf("check room: %w", err)
	}
	if busy {
		return domain.Conflict(domain.CodeRoomBusy, "room is already booked in this interval").
			With("room_id", roomID.String()).
			With("start", span.Start).
			With("end", span.End)
	}

	for _, p := range participants {
		busy, err = detector.HasConflictExcluding(ctx, conflict.KindParticipant, p.EmployeeID, span, exclude)
		if err != nil {
			return fmt.Errorf("check participant: %w", err)
		}
		if busy {
			return domain.Conflict(domain.CodeParticipantBusy, "participant is already booked in this interval").
				With("employee_id", p.EmployeeID.String()).
				With("role", string(p.Role)).
				With("start", span.Start).
				With("end", span.End)
		}
	}
	return nil
}

// recheckDailyCaps repeats the cap check against the transaction snapshot,
// closing the window between validation and insert.
func recheckDailyCaps(ctx context.Context, tx Tx, services []domain.DentalService, day time.Time, exclude uuid.UUID) error {
	for _, svc := range services {
		limit := domain.PositiveOrZero(svc.MaxAppointmentsPerDay)
		if limit == 0 {
			continue
		}
		n, err := tx.CountServiceBookings(ctx, svc.ID, day, exclude)
		if err != nil {
			return fmt.Errorf("count bookings for %s: %w", svc.Code, err)
		}
		if n >= limit {
			return domain.Conflict(domain.CodeDailyCapReached, "service %s is fully booked on %s", svc.Code, day.Format("2006-01-02")).
				With("service_code", svc.Code).
				With("date", day.Format("2006-01-02")).
				With("booked", n).
				With("max_per_day", limit)
		}
	}
	return nil
}

var serviceIDDetails = map[string]string{
	"service_id":           "service_code",
	"dependent_service_id": "dependent_service_code",
	"excluded_service_id":  "excluded_service_code",
}

// annotateServiceCodes adds human readable service codes next to the IDs
// a rule violation carries. Lookups that fail leave the error as it is.
func (s *Service) annotateServiceCodes(ctx context.Context, err error, known []domain.DentalService) error {
	de, ok := domain.AsError(err)
	if !ok || len(de.Details) == 0 {
		return err
	}

	codes := make(map[uuid.UUID]string, len(known))
	for _, svc := range known {
		codes[svc.ID] = svc.Code
	}

	var missing []uuid.UUID
	for idKey := range serviceIDDetails {
		raw, ok := de.Details[idKey].(string)
		if !ok {
			continue
		}
		id, perr := uuid.Parse(raw)
		if perr != nil {
			continue
		}
		if _, ok := codes[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		if extra, lerr := s.repo.ListServicesByIDs(ctx, missing); lerr == nil {
			for _, svc := range extra {
				codes[svc.ID] = svc.Code
			}
		}
	}

	for idKey, codeKey := range serviceIDDetails {
		raw, ok := de.Details[idKey].(string)
		if !ok {
			continue
		}
		id, perr := uuid.Parse(raw)
		if perr != nil {
			continue
		}
		if code, ok := codes[id]; ok {
			de.With(codeKey, code)
		}
	}
	return err
}
