package appointment_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/interval"
)

func TestLifecycle_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.mustCreate(t, f.input(f.doctor, f.general, at(monday, 9, 0), f.clean))

	a, err := f.svc.CheckIn(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCheckedIn, a.Status)

	a, err = f.svc.StartTreatment(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, a.Status)

	a, err = f.svc.Complete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, a.Status)
	assert.NotNil(t, a.CompletedAt)

	var types []string
	for _, ev := range f.store.Events() {
		types = append(types, ev.EventType)
	}
	assert.Equal(t, []string{
		appointment.EventAppointmentCreated,
		appointment.EventAppointmentCheckedIn,
		appointment.EventAppointmentStarted,
		appointment.EventAppointmentCompleted,
	}, types)
}

func TestLifecycle_IllegalTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.mustCreate(t, f.input(f.doctor, f.general, at(monday, 9, 0), f.clean))

	_, err := f.svc.Complete(ctx, created.ID)
	requireRejected(t, err, domain.ErrConflict, domain.CodeInvalidTransition)

	_, err = f.svc.StartTreatment(ctx, created.ID)
	requireRejected(t, err, domain.ErrConflict, domain.CodeInvalidTransition)

	_, err = f.svc.CheckIn(ctx, created.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, created.ID, "NO_SHOW")
	requireRejected(t, err, domain.ErrConflict, domain.CodeInvalidTransition)

	_, err = f.svc.CheckIn(ctx, uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLifecycle_CancelledIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.mustCreate(t, f.input(f.doctor, f.general, at(monday, 9, 0), f.clean))

	cancelled, err := f.svc.Cancel(ctx, created.ID, "PATIENT_REQUEST")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, "PATIENT_REQUEST", cancelled.ReasonCode)

	for _, step := range []func(context.Context, uuid.UUID) (*domain.Appointment, error){
		f.svc.CheckIn, f.svc.StartTreatment, f.svc.Complete,
	} {
		_, err := step(ctx, created.ID)
		requireRejected(t, err, domain.ErrConflict, domain.CodeInvalidTransition)
	}
}

func TestReschedule_CancelsOldAndFreesInterval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := f.mustCreate(t, f.input(f.doctor, f.general, at(monday, 9, 0), f.clean, f.fill))

	res, err := f.svc.RescheduleAppointment(ctx, old.ID, appointment.RescheduleInput{Start: at(monday, 13, 0)})
	require.NoError(t, err)

	assert.Equal(t, old.ID, res.Old.ID)
	assert.Equal(t, domain.StatusCancelled, res.Old.Status)
	assert.Equal(t, domain.ReasonRescheduled, res.Old.ReasonCode)
	require.NotNil(t, res.Old.RescheduledToAppointmentID)
	assert.Equal(t, res.New.ID, *res.Old.RescheduledToAppointmentID)

	assert.NotEqual(t, old.ID, res.New.ID)
	assert.Equal(t, domain.StatusScheduled, res.New.Status)
	assert.Equal(t, at(monday, 13, 0), res.New.Start)
	assert.Equal(t, old.End.Sub(old.Start), res.New.End.Sub(res.New.Start))
	assert.Len(t, res.New.Services, 2)

	stored, err := f.svc.GetAppointment(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, stored.Status)

	// the original 09:00 interval is free again
	f.mustCreate(t, f.input(f.doctor, f.general, at(monday, 9, 0), f.clean))
	assertNoOverlaps(t, f.store.Appointments())
}

func TestReschedule_MayOverlapItsOwnOldInterval(t *testing.T) {
	f := newFixture(t)
	old := f.mustCreate(t, f.input(f.doctor, f.general, at(monday, 9, 0), f.clean))

	res, err := f.svc.RescheduleAppointment(context.Background(), old.ID, appointment.RescheduleInput{Start: at(monday, 9, 20)})
	require.NoError(t, err)
	assert.Equal(t, at(monday, 9, 20), res.New.Start)
}

func TestReschedule_ChangesDoctorAndRoom(t *testing.T) {
	f := newFixture(t)
	old := f.mustCreate(t, f.input(f.doctor, f.general, at(monday, 9, 0), f.clean))

	res, err := f.svc.RescheduleAppointment(context.Background(), old.ID, appointment.RescheduleInput{
		Start:    at(monday, 9, 0),
		DoctorID: &f.surgeon.ID,
		RoomID:   &f.surgery.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, f.surgeon.ID, res.New.DoctorID)
	assert.Equal(t, f.surgery.ID, res.New.RoomID)
}

func TestReschedule_ConflictLeavesOriginalUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := f.mustCreate(t, f.input(f.doctor, f.general, at(monday, 9, 0), f.clean))
	f.mustCreate(t, f.input(f.doctor, f.surgery, at(monday, 11, 0), f.clean))

	_, err := f.svc.RescheduleAppointment(ctx, old.ID, appointment.RescheduleInput{Start: at(monday, 11, 10)})
	requireRejected(t, err, domain.ErrConflict, domain.CodeDoctorBusy)

	stored, err := f.svc.GetAppointment(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, stored.Status)
	assert.Nil(t, stored.RescheduledToAppointmentID)
	assert.Len(t, f.store.Appointments(), 2)
}

func TestReschedule_OnlyFromScheduled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := f.mustCreate(t, f.input(f.doctor, f.general, at(monday, 9, 0), f.clean))
	_, err := f.svc.CheckIn(ctx, old.ID)
	require.NoError(t, err)

	_, err = f.svc.RescheduleAppointment(ctx, old.ID, appointment.RescheduleInput{Start: at(monday, 13, 0)})
	requireRejected(t, err, domain.ErrConflict, domain.CodeInvalidTransition)
}

func TestDelay_KeepsIdentityAndDuration(t *testing.T) {
	f := newFixture(t)
	created := f.mustCreate(t, f.input(f.doctor, f.general, at(monday, 9, 0), f.clean, f.fill))

	delayed, err := f.svc.DelayAppointment(context.Background(), created.ID, appointment.DelayInput{Minutes: 30})
	require.NoError(t, err)

	assert.Equal(t, created.ID, delayed.ID)
	assert.Equal(t, at(monday, 9, 30), delayed.Start)
	assert.Equal(t, 100*time.Minute, delayed.End.Sub(delayed.Start))
	assert.Len(t, delayed.Services, 2)
	assert.Len(t, f.store.Appointments(), 1)
}

func TestDelay_ToExplicitStart(t *testing.T) {
	f := newFixture(t)
	created := f.mustCreate(t, f.input(f.doctor, f.general, at(monday, 9, 0), f.clean))

	newStart := at(monday, 15, 0)
	delayed, err := f.svc.DelayAppointment(context.Background(), created.ID, appointment.DelayInput{NewStart: &newStart})
	require.NoError(t, err)
	assert.Equal(t, newStart, delayed.Start)
	assert.Equal(t, at(monday, 15, 40), delayed.End)
}

func TestDelay_IntoConflictIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.mustCreate(t, f.input(f.doctor, f.general, at(monday, 9, 0), f.clean))
	f.mustCreate(t, f.input(f.doctor, f.surgery, at(monday, 10, 0), f.clean))

	_, err := f.svc.DelayAppointment(ctx, first.ID, appointment.DelayInput{Minutes: 45})
	requireRejected(t, err, domain.ErrConflict, domain.CodeDoctorBusy)

	stored, err := f.svc.GetAppointment(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, at(monday, 9, 0), stored.Start)
}

func TestDelay_ToAnotherDayRechecksConstraints(t *testing.T) {
	f := newFixture(t)
	created := f.mustCreate(t, f.input(f.doctor, f.general, at(monday, 9, 0), f.clean))
	f.store.AddHoliday(monday.AddDate(0, 0, 1))

	newStart := at(monday.AddDate(0, 0, 1), 9, 0)
	_, err := f.svc.DelayAppointment(context.Background(), created.ID, appointment.DelayInput{NewStart: &newStart})
	requireRejected(t, err, domain.ErrConflict, domain.CodeHoliday)
}

func TestDelay_RequiresScheduledAndAnOffset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.mustCreate(t, f.input(f.doctor, f.general, at(monday, 9, 0), f.clean))

	_, err := f.svc.DelayAppointment(ctx, created.ID, appointment.DelayInput{})
	requireRejected(t, err, domain.ErrInvalidInput, "delay_required")

	_, err = f.svc.CheckIn(ctx, created.ID)
	require.NoError(t, err)

	_, err = f.svc.DelayAppointment(ctx, created.ID, appointment.DelayInput{Minutes: 10})
	requireRejected(t, err, domain.ErrConflict, domain.CodeInvalidTransition)
}

func TestCancelNoShows_OnlyTouchesPastScheduled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	missed := f.mustCreate(t, f.input(f.doctor, f.general, at(monday, 9, 0), f.clean))
	arrived := f.mustCreate(t, f.input(f.doctor, f.general, at(monday, 10, 0), f.clean))
	_, err := f.svc.CheckIn(ctx, arrived.ID)
	require.NoError(t, err)

	future := time.Now().UTC().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	upcoming := f.mustCreate(t, f.input(f.doctor, f.general, at(future, 9, 0), f.clean))

	n, err := f.svc.CancelNoShows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.GetAppointment(ctx, missed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, domain.ReasonNoShow, got.ReasonCode)

	got, err = f.svc.GetAppointment(ctx, arrived.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCheckedIn, got.Status)

	got, err = f.svc.GetAppointment(ctx, upcoming.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, got.Status)

	n, err = f.svc.CancelNoShows(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCancelNoShows_ComparesClinicWallClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 03:15 on a host five hours behind UTC is 08:15 as an instant
	host := time.Date(2025, 11, 10, 3, 15, 0, 0, time.FixedZone("EST", -5*60*60))
	f.svc.WithClock(func() time.Time { return interval.WallClock(host) })

	missed := f.mustCreate(t, f.input(f.doctor, f.general, at(monday, 1, 0), f.clean))
	upcoming := f.mustCreate(t, f.input(f.doctor, f.general, at(monday, 4, 0), f.clean))

	n, err := f.svc.CancelNoShows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.GetAppointment(ctx, missed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)

	got, err = f.svc.GetAppointment(ctx, upcoming.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, got.Status)
}
