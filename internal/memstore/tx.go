package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/conflict"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/interval"
)

type tx struct {
	st      *state
	now     func() time.Time
	touched map[uuid.UUID]struct{}
}

func (t *tx) touch(id uuid.UUID) {
	if t.touched == nil {
		t.touched = make(map[uuid.UUID]struct{})
	}
	t.touched[id] = struct{}{}
}

var _ appointment.Tx = (*tx)(nil)

func (t *tx) ListBusy(_ context.Context, kind conflict.ResourceKind, id uuid.UUID, window interval.Interval, exclude uuid.UUID) ([]interval.Interval, error) {
	return t.st.listBusy(kind, id, window, exclude), nil
}

func (t *tx) CountServiceBookings(_ context.Context, serviceID uuid.UUID, date time.Time, exclude uuid.UUID) (int, error) {
	return t.st.countServiceBookings(serviceID, date, exclude), nil
}

func (t *tx) InsertAppointment(_ context.Context, d *domain.AppointmentDetail) error {
	if _, ok := t.st.appointments[d.ID]; ok {
		return fmt.Errorf("appointment %s already exists", d.ID)
	}
	t.st.appointments[d.ID] = copyDetail(*d)
	t.touch(d.ID)
	return nil
}

func (t *tx) UpdateAppointmentTimes(_ context.Context, id uuid.UUID, from, start, end time.Time) (*domain.Appointment, error) {
	d, ok := t.st.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	if d.Status != domain.StatusScheduled || !d.Start.Equal(from) {
		return nil, appointment.ErrStatusChanged
	}
	d.Start, d.End = start, end
	d.UpdatedAt = t.now()
	t.st.appointments[id] = d
	t.touch(id)
	a := d.Appointment
	return &a, nil
}

func (t *tx) MarkRescheduled(_ context.Context, oldID, newID uuid.UUID) (*domain.Appointment, error) {
	d, ok := t.st.appointments[oldID]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	if d.Status != domain.StatusScheduled {
		return nil, appointment.ErrStatusChanged
	}
	next := newID
	d.Status = domain.StatusCancelled
	d.ReasonCode = domain.ReasonRescheduled
	d.RescheduledToAppointmentID = &next
	d.UpdatedAt = t.now()
	t.st.appointments[oldID] = d
	t.touch(oldID)
	a := d.Appointment
	return &a, nil
}

func (t *tx) MarkPlanItemScheduled(_ context.Context, itemID, appointmentID uuid.UUID) error {
	item, ok := t.st.planItems[itemID]
	if !ok {
		return appointment.ErrPlanItemNotFound
	}
	apptID := appointmentID
	item.Status = "SCHEDULED"
	item.AppointmentID = &apptID
	t.st.planItems[itemID] = item
	return nil
}
