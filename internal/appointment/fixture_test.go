package appointment_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/constraint"
	"github.com/hackgods/clinic-scheduling/internal/dependency"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/memstore"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

var monday = time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)

func at(day time.Time, hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func intPtr(v int) *int { return &v }

type fixture struct {
	store *memstore.Store
	svc   *appointment.Service
	rules *dependency.Engine

	patient uuid.UUID

	doctor  domain.Employee
	surgeon domain.Employee
	nurse   domain.Employee

	general domain.Room
	surgery domain.Room

	clean   domain.DentalService
	fill    domain.DentalService
	scale   domain.DentalService
	xray    domain.DentalService
	implant domain.DentalService
	whiten  domain.DentalService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{store: memstore.New(), patient: uuid.New()}

	f.clean = domain.DentalService{ID: uuid.New(), Code: "CLEAN", Name: "Cleaning", DurationMinutes: 30, BufferMinutes: 10, Price: 4000, Active: true}
	f.fill = domain.DentalService{ID: uuid.New(), Code: "FILL", Name: "Filling", DurationMinutes: 45, BufferMinutes: 15, Price: 9000, Active: true}
	f.scale = domain.DentalService{ID: uuid.New(), Code: "SCALE", Name: "Scaling", DurationMinutes: 40, Active: true, SpacingDays: intPtr(30)}
	f.xray = domain.DentalService{ID: uuid.New(), Code: "XRAY", Name: "Panoramic x-ray", DurationMinutes: 15, BufferMinutes: 5, Active: true}
	f.implant = domain.DentalService{ID: uuid.New(), Code: "IMPLANT", Name: "Implant", DurationMinutes: 90, BufferMinutes: 30, Active: true, RequiredSpecializations: []string{"surgery"}}
	f.whiten = domain.DentalService{ID: uuid.New(), Code: "WHITEN", Name: "Whitening", DurationMinutes: 60, Active: true, MaxAppointmentsPerDay: intPtr(1)}
	for _, s := range []domain.DentalService{f.clean, f.fill, f.scale, f.xray, f.implant, f.whiten} {
		f.store.AddService(s)
	}

	f.doctor = domain.Employee{ID: uuid.New(), Name: "Dr. Ana", Role: domain.RoleDoctor, Active: true, Specializations: []string{"general"}}
	f.surgeon = domain.Employee{ID: uuid.New(), Name: "Dr. Bruno", Role: domain.RoleDoctor, Active: true, Specializations: []string{"general", "surgery"}}
	f.nurse = domain.Employee{ID: uuid.New(), Name: "Carla", Role: domain.RoleNurse, Active: true}
	for _, e := range []domain.Employee{f.doctor, f.surgeon, f.nurse} {
		f.store.AddEmployee(e)
	}

	common := []uuid.UUID{f.clean.ID, f.fill.ID, f.scale.ID, f.xray.ID, f.whiten.ID}
	f.general = domain.Room{ID: uuid.New(), Code: "R1", Name: "Chair 1", Active: true, ServiceIDs: common}
	f.surgery = domain.Room{ID: uuid.New(), Code: "R2", Name: "Surgery", Active: true, ServiceIDs: append(append([]uuid.UUID{}, common...), f.implant.ID)}
	f.store.AddRoom(f.general)
	f.store.AddRoom(f.surgery)

	f.store.AddPatient(domain.Patient{ID: f.patient, Name: "Paula"})

	cfg := config.Config{HistoryLimit: 50, RetryBackoff: time.Millisecond}
	logger := zerolog.Nop()
	f.rules = dependency.NewEngine(f.store, logger)
	validator := constraint.NewValidator(f.store, cfg.HistoryLimit, logger)
	f.svc = appointment.NewService(f.store, redisclient.NewLocalResourceLocker(2*time.Second), validator, f.rules, cfg, logger)

	return f
}

func (f *fixture) input(doctor domain.Employee, room domain.Room, start time.Time, services ...domain.DentalService) appointment.CreateInput {
	ids := make([]uuid.UUID, len(services))
	for i, s := range services {
		ids[i] = s.ID
	}
	return appointment.CreateInput{
		PatientID:  f.patient,
		DoctorID:   doctor.ID,
		RoomID:     room.ID,
		ServiceIDs: ids,
		Start:      start,
	}
}

func (f *fixture) mustCreate(t *testing.T, in appointment.CreateInput) *domain.AppointmentDetail {
	t.Helper()
	created, err := f.svc.CreateAppointment(context.Background(), in)
	require.NoError(t, err)
	return created
}

// completed seeds a finished visit into the patient's history.
func (f *fixture) completed(start time.Time, services ...domain.DentalService) {
	id := uuid.New()
	d := domain.AppointmentDetail{
		Appointment: domain.Appointment{
			ID:        id,
			PatientID: f.patient,
			DoctorID:  f.doctor.ID,
			RoomID:    f.general.ID,
			Start:     start,
			End:       start.Add(domain.TotalDuration(services)),
			Status:    domain.StatusCompleted,
		},
	}
	for _, s := range services {
		d.Services = append(d.Services, domain.AppointmentService{AppointmentID: id, ServiceID: s.ID, DurationSnapshot: s.DurationMinutes})
	}
	f.store.PutAppointment(d)
}

func requireRejected(t *testing.T, err error, kind error, code string) *domain.Error {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	de, ok := domain.AsError(err)
	require.True(t, ok, "expected a structured error, got %v", err)
	require.Equal(t, code, de.Code)
	return de
}
