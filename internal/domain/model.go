package domain

import (
	"time"

	"github.com/google/uuid"
)

type EmployeeRole string

const (
	RoleDoctor    EmployeeRole = "DOCTOR"
	RoleAssistant EmployeeRole = "ASSISTANT"
	RoleNurse     EmployeeRole = "NURSE"
)

// IsMedicalStaff reports whether the role can assist at a chair.
func (r EmployeeRole) IsMedicalStaff() bool {
	return r == RoleAssistant || r == RoleNurse
}

type ParticipantRole string

const (
	ParticipantAssistant       ParticipantRole = "ASSISTANT"
	ParticipantSecondaryDoctor ParticipantRole = "SECONDARY_DOCTOR"
	ParticipantNurse           ParticipantRole = "NURSE"
)

func (r ParticipantRole) Valid() bool {
	switch r {
	case ParticipantAssistant, ParticipantSecondaryDoctor, ParticipantNurse:
		return true
	}
	return false
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Employee struct {
	ID              uuid.UUID    `json:"id"`
	Name            string       `json:"name"`
	Role            EmployeeRole `json:"role"`
	Active          bool         `json:"active"`
	Specializations []string     `json:"specializations"`
}

// HasSpecializations reports whether every required specialization is
// carried by the employee.
func (e Employee) HasSpecializations(required []string) bool {
	have := make(map[string]struct{}, len(e.Specializations))
	for _, s := range e.Specializations {
		have[s] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}

type Room struct {
	ID         uuid.UUID   `json:"id"`
	Code       string      `json:"code"`
	Name       string      `json:"name"`
	Active     bool        `json:"active"`
	ServiceIDs []uuid.UUID `json:"service_ids"`
}

// Supports is a set-containment test: the room must list every service.
func (r Room) Supports(serviceIDs []uuid.UUID) bool {
	have := make(map[uuid.UUID]struct{}, len(r.ServiceIDs))
	for _, id := range r.ServiceIDs {
		have[id] = struct{}{}
	}
	for _, id := range serviceIDs {
		if _, ok := have[id]; !ok {
			return false
		}
	}
	return true
}

// DentalService is a bookable catalog entry. The four day-based limits are
// optional; nil or zero means unconstrained.
type DentalService struct {
	ID                      uuid.UUID `json:"id"`
	Code                    string    `json:"code"`
	Name                    string    `json:"name"`
	DurationMinutes         int       `json:"duration_minutes"`
	BufferMinutes           int       `json:"buffer_minutes"`
	Price                   int64     `json:"price"`
	Active                  bool      `json:"active"`
	RequiredSpecializations []string  `json:"required_specializations"`
	MinimumPreparationDays  *int      `json:"minimum_preparation_days,omitempty"`
	RecoveryDays            *int      `json:"recovery_days,omitempty"`
	SpacingDays             *int      `json:"spacing_days,omitempty"`
	MaxAppointmentsPerDay   *int      `json:"max_appointments_per_day,omitempty"`
}

// BlockMinutes is the time the service occupies its resources.
func (s DentalService) BlockMinutes() int {
	return s.DurationMinutes + s.BufferMinutes
}

// TotalDuration sums duration and buffer over services.
func TotalDuration(services []DentalService) time.Duration {
	total := 0
	for _, s := range services {
		total += s.BlockMinutes()
	}
	return time.Duration(total) * time.Minute
}

// RequiredSpecializations returns the deduplicated union across services.
func RequiredSpecializations(services []DentalService) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range services {
		for _, spec := range s.RequiredSpecializations {
			if _, ok := seen[spec]; ok {
				continue
			}
			seen[spec] = struct{}{}
			out = append(out, spec)
		}
	}
	return out
}

func ServiceIDs(services []DentalService) []uuid.UUID {
	ids := make([]uuid.UUID, len(services))
	for i, s := range services {
		ids[i] = s.ID
	}
	return ids
}

// PositiveOrZero dereferences an optional day limit.
func PositiveOrZero(v *int) int {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}

type Appointment struct {
	ID                         uuid.UUID         `json:"id"`
	PatientID                  uuid.UUID         `json:"patient_id"`
	DoctorID                   uuid.UUID         `json:"doctor_id"`
	RoomID                     uuid.UUID         `json:"room_id"`
	Start                      time.Time         `json:"start"`
	End                        time.Time         `json:"end"`
	Status                     AppointmentStatus `json:"status"`
	RescheduledToAppointmentID *uuid.UUID        `json:"rescheduled_to_appointment_id,omitempty"`
	ReasonCode                 string            `json:"reason_code,omitempty"`
	Notes                      string            `json:"notes,omitempty"`
	CompletedAt                *time.Time        `json:"completed_at,omitempty"`
	CreatedAt                  time.Time         `json:"created_at"`
	UpdatedAt                  time.Time         `json:"updated_at"`
}

// AppointmentService snapshots catalog values at booking time so later
// catalog edits do not alter booked appointments.
type AppointmentService struct {
	AppointmentID    uuid.UUID `json:"appointment_id"`
	ServiceID        uuid.UUID `json:"service_id"`
	PriceSnapshot    int64     `json:"price_snapshot"`
	DurationSnapshot int       `json:"duration_snapshot"`
	BufferSnapshot   int       `json:"buffer_snapshot"`
}

type AppointmentParticipant struct {
	AppointmentID uuid.UUID       `json:"appointment_id"`
	EmployeeID    uuid.UUID       `json:"employee_id"`
	Role          ParticipantRole `json:"role"`
}

// AppointmentDetail is the appointment aggregate with its join rows.
type AppointmentDetail struct {
	Appointment
	Services     []AppointmentService     `json:"services"`
	Participants []AppointmentParticipant `json:"participants"`
}

type WorkingShift struct {
	EmployeeID uuid.UUID
	Date       time.Time
	Start      time.Time
	End        time.Time
}

// CompletedVisit is one entry of a patient's completed history.
type CompletedVisit struct {
	AppointmentID uuid.UUID
	Date          time.Time
	ServiceIDs    []uuid.UUID
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
