package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/conflict"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/interval"
)

var base = time.Date(2025, 11, 10, 9, 0, 0, 0, time.UTC)

func detail(doctor, room uuid.UUID, start time.Time, minutes int, status domain.AppointmentStatus) domain.AppointmentDetail {
	return domain.AppointmentDetail{Appointment: domain.Appointment{
		ID: uuid.New(), PatientID: uuid.New(), DoctorID: doctor, RoomID: room,
		Start: start, End: start.Add(time.Duration(minutes) * time.Minute), Status: status,
	}}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	d := detail(uuid.New(), uuid.New(), base, 30, domain.StatusScheduled)
	err := s.WithTx(ctx, func(tx appointment.Tx) error {
		require.NoError(t, tx.InsertAppointment(ctx, &d))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, s.Appointments())

	err = s.WithTx(ctx, func(tx appointment.Tx) error {
		return tx.InsertAppointment(ctx, &d)
	})
	require.NoError(t, err)
	assert.Len(t, s.Appointments(), 1)
}

func TestWithTx_InjectedErrors(t *testing.T) {
	s := New()
	injected := domain.ConcurrentWrite("lost")
	s.InjectTxErrors(injected)

	called := false
	err := s.WithTx(context.Background(), func(tx appointment.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrConcurrentWrite)
	assert.False(t, called)

	err = s.WithTx(context.Background(), func(tx appointment.Tx) error { return nil })
	assert.NoError(t, err)
}

func TestListBusy_EmployeeInAnyRole(t *testing.T) {
	s := New()
	ctx := context.Background()
	doctor, helper, room := uuid.New(), uuid.New(), uuid.New()

	d := detail(doctor, room, base, 60, domain.StatusScheduled)
	d.Participants = []domain.AppointmentParticipant{{AppointmentID: d.ID, EmployeeID: helper, Role: domain.ParticipantAssistant}}
	s.PutAppointment(d)
	s.PutAppointment(detail(helper, uuid.New(), base.Add(2*time.Hour), 30, domain.StatusCancelled))

	window := interval.DayWindow(base)
	for _, kind := range []conflict.ResourceKind{conflict.KindDoctor, conflict.KindParticipant} {
		busy, err := s.ListBusy(ctx, kind, helper, window, uuid.Nil)
		require.NoError(t, err)
		assert.Len(t, busy, 1, string(kind))
	}

	busy, err := s.ListBusy(ctx, conflict.KindRoom, room, window, d.ID)
	require.NoError(t, err)
	assert.Empty(t, busy)
}

func TestCountServiceBookings_SkipsCancelledAndExcluded(t *testing.T) {
	s := New()
	svc := uuid.New()

	mk := func(status domain.AppointmentStatus, start time.Time) domain.AppointmentDetail {
		d := detail(uuid.New(), uuid.New(), start, 30, status)
		d.Services = []domain.AppointmentService{{AppointmentID: d.ID, ServiceID: svc}}
		s.PutAppointment(d)
		return d
	}
	kept := mk(domain.StatusScheduled, base)
	mk(domain.StatusCompleted, base.Add(time.Hour))
	mk(domain.StatusCancelled, base.Add(2*time.Hour))
	mk(domain.StatusScheduled, base.AddDate(0, 0, 1))

	n, err := s.CountServiceBookings(context.Background(), svc, base, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.CountServiceBookings(context.Background(), svc, base, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCompletedHistory(t *testing.T) {
	s := New()
	patient, a, b := uuid.New(), uuid.New(), uuid.New()

	for i, ids := range [][]uuid.UUID{{a}, {a, b}, {b}} {
		d := detail(uuid.New(), uuid.New(), base.AddDate(0, 0, -10*(i+1)), 30, domain.StatusCompleted)
		d.PatientID = patient
		for _, id := range ids {
			d.Services = append(d.Services, domain.AppointmentService{AppointmentID: d.ID, ServiceID: id})
		}
		s.PutAppointment(d)
	}

	visits, err := s.ListCompletedVisits(context.Background(), patient, 2)
	require.NoError(t, err)
	require.Len(t, visits, 2)
	assert.True(t, visits[0].Date.After(visits[1].Date))

	dates, err := s.CompletedServiceDates(context.Background(), patient)
	require.NoError(t, err)
	assert.Equal(t, interval.DateOf(base.AddDate(0, 0, -10)), dates[a])
	assert.Equal(t, interval.DateOf(base.AddDate(0, 0, -20)), dates[b])
}

func TestCreateDependencies_RejectsDuplicates(t *testing.T) {
	s := New()
	a := domain.DentalService{ID: uuid.New(), Code: "A"}
	b := domain.DentalService{ID: uuid.New(), Code: "B"}
	s.AddService(a)
	s.AddService(b)

	edge := domain.ServiceDependency{ID: uuid.New(), ServiceID: a.ID, DependentServiceID: b.ID, RuleType: domain.RuleBundlesWith}
	_, err := s.CreateDependencies(context.Background(), []domain.ServiceDependency{edge})
	require.NoError(t, err)

	_, err = s.CreateDependencies(context.Background(), []domain.ServiceDependency{edge})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = s.CreateDependencies(context.Background(), []domain.ServiceDependency{{ServiceID: a.ID, DependentServiceID: uuid.New(), RuleType: domain.RuleBundlesWith}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWithTx_OverlapGuardRunsAtCommit(t *testing.T) {
	s := New()
	ctx := context.Background()
	doctor, room := uuid.New(), uuid.New()

	first := detail(doctor, room, base, 40, domain.StatusScheduled)
	s.PutAppointment(first)

	sameDoctor := detail(doctor, uuid.New(), base.Add(20*time.Minute), 40, domain.StatusScheduled)
	err := s.WithTx(ctx, func(tx appointment.Tx) error {
		return tx.InsertAppointment(ctx, &sameDoctor)
	})
	require.ErrorIs(t, err, domain.ErrConcurrentWrite)
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "appointments_doctor_no_overlap", de.Details["constraint"])

	sameRoom := detail(uuid.New(), room, base.Add(20*time.Minute), 40, domain.StatusScheduled)
	err = s.WithTx(ctx, func(tx appointment.Tx) error {
		return tx.InsertAppointment(ctx, &sameRoom)
	})
	require.ErrorIs(t, err, domain.ErrConcurrentWrite)
	assert.Len(t, s.Appointments(), 1)

	// the replacement may overlap the original it cancels in the same tx
	replacement := detail(doctor, room, base.Add(20*time.Minute), 40, domain.StatusScheduled)
	err = s.WithTx(ctx, func(tx appointment.Tx) error {
		if err := tx.InsertAppointment(ctx, &replacement); err != nil {
			return err
		}
		_, err := tx.MarkRescheduled(ctx, first.ID, replacement.ID)
		return err
	})
	require.NoError(t, err)
	assert.Len(t, s.Appointments(), 2)
}
