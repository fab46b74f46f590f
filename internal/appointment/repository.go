package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/conflict"
	"github.com/hackgods/clinic-scheduling/internal/constraint"
	"github.com/hackgods/clinic-scheduling/internal/dependency"
	"github.com/hackgods/clinic-scheduling/internal/domain"
)

var (
	ErrPatientNotFound     = domain.NotFound("patient_not_found", "patient not found")
	ErrEmployeeNotFound    = domain.NotFound("employee_not_found", "employee not found")
	ErrRoomNotFound        = domain.NotFound("room_not_found", "room not found")
	ErrAppointmentNotFound = domain.NotFound("appointment_not_found", "appointment not found")
	ErrPlanItemNotFound    = domain.NotFound("plan_item_not_found", "treatment plan item not found")

	// ErrStatusChanged is returned by conditional updates when the row is no
	// longer in the expected status.
	ErrStatusChanged = errors.New("appointment status changed concurrently")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	availability.Catalog
	availability.ShiftCalendar
	constraint.Facts
	dependency.Store
	conflict.BusyReader

	GetPatientByID(ctx context.Context, id uuid.UUID) (*domain.Patient, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*domain.Room, error)
	ListServicesByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.DentalService, error)

	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*domain.AppointmentDetail, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]domain.Appointment, error)
	// FindStaleScheduled returns SCHEDULED appointments that ended before
	// cutoff, oldest first.
	FindStaleScheduled(ctx context.Context, cutoff time.Time, limit int) ([]domain.Appointment, error)

	// UpdateAppointmentStatus moves id from -> to and returns
	// ErrStatusChanged if the row is not in from anymore.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to domain.AppointmentStatus, reasonCode string, at time.Time) (*domain.Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev domain.EventLog) error

	// WithTx runs fn in one serializable transaction. Failures to serialize
	// surface as domain.ErrConcurrentWrite.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side used inside the booking critical section. Reads
// through Tx observe the transaction's snapshot.
type Tx interface {
	conflict.BusyReader
	CountServiceBookings(ctx context.Context, serviceID uuid.UUID, date time.Time, exclude uuid.UUID) (int, error)

	InsertAppointment(ctx context.Context, detail *domain.AppointmentDetail) error
	// UpdateAppointmentTimes moves a SCHEDULED appointment that still starts
	// at from. A miss on either condition returns ErrStatusChanged.
	UpdateAppointmentTimes(ctx context.Context, id uuid.UUID, from, start, end time.Time) (*domain.Appointment, error)
	// MarkRescheduled cancels a SCHEDULED appointment with reason
	// RESCHEDULED and links it to its replacement.
	MarkRescheduled(ctx context.Context, oldID, newID uuid.UUID) (*domain.Appointment, error)
	// MarkPlanItemScheduled is the single write into the treatment-plan
	// collaborator.
	MarkPlanItemScheduled(ctx context.Context, itemID, appointmentID uuid.UUID) error
}
