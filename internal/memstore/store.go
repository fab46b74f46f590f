// Package memstore is an in-memory appointment.Repository. Transactions
// run one at a time against a copy of the mutable state, which is swapped
// in only when fn succeeds.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/conflict"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/interval"
)

type PlanItem struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	ServiceID     uuid.UUID
	Status        string
	AppointmentID *uuid.UUID
}

// state is everything a transaction may write.
type state struct {
	appointments map[uuid.UUID]domain.AppointmentDetail
	planItems    map[uuid.UUID]PlanItem
}

func (s *state) clone() *state {
	c := &state{
		appointments: make(map[uuid.UUID]domain.AppointmentDetail, len(s.appointments)),
		planItems:    make(map[uuid.UUID]PlanItem, len(s.planItems)),
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	for k, v := range s.planItems {
		c.planItems[k] = v
	}
	return c
}

type Store struct {
	mu sync.RWMutex

	patients  map[uuid.UUID]domain.Patient
	employees map[uuid.UUID]domain.Employee
	rooms     map[uuid.UUID]domain.Room
	services  map[uuid.UUID]domain.DentalService
	shifts    []domain.WorkingShift
	holidays  map[string]struct{}
	deps      []domain.ServiceDependency
	events    []domain.EventLog

	cur *state

	txErrs []error
	now    func() time.Time
}

func New() *Store {
	return &Store{
		patients:  make(map[uuid.UUID]domain.Patient),
		employees: make(map[uuid.UUID]domain.Employee),
		rooms:     make(map[uuid.UUID]domain.Room),
		services:  make(map[uuid.UUID]domain.DentalService),
		holidays:  make(map[string]struct{}),
		cur: &state{
			appointments: make(map[uuid.UUID]domain.AppointmentDetail),
			planItems:    make(map[uuid.UUID]PlanItem),
		},
		now: interval.Now,
	}
}

var _ appointment.Repository = (*Store)(nil)

func dayKey(t time.Time) string {
	return interval.DateOf(t).Format("2006-01-02")
}

// Seeding

func (s *Store) AddPatient(p domain.Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[p.ID] = p
}

func (s *Store) AddEmployee(e domain.Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[e.ID] = e
}

func (s *Store) AddRoom(r domain.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[r.ID] = r
}

func (s *Store) AddService(svc domain.DentalService) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
}

func (s *Store) AddShift(sh domain.WorkingShift) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shifts = append(s.shifts, sh)
}

func (s *Store) AddHoliday(date time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holidays[dayKey(date)] = struct{}{}
}

func (s *Store) AddPlanItem(item PlanItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.planItems[item.ID] = item
}

// PutAppointment stores an appointment as is, bypassing every check. It is
// meant for seeding history.
func (s *Store) PutAppointment(d domain.AppointmentDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.appointments[d.ID] = d
}

// InjectTxErrors makes the next WithTx calls fail with errs, in order,
// without running fn.
func (s *Store) InjectTxErrors(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txErrs = append(s.txErrs, errs...)
}

func (s *Store) PlanItem(id uuid.UUID) (PlanItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.cur.planItems[id]
	return item, ok
}

func (s *Store) Events() []domain.EventLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.EventLog(nil), s.events...)
}

// Appointments returns every stored appointment ordered by start.
func (s *Store) Appointments() []domain.AppointmentDetail {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AppointmentDetail, 0, len(s.cur.appointments))
	for _, d := range s.cur.appointments {
		out = append(out, copyDetail(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

func copyDetail(d domain.AppointmentDetail) domain.AppointmentDetail {
	d.Services = append([]domain.AppointmentService(nil), d.Services...)
	d.Participants = append([]domain.AppointmentParticipant(nil), d.Participants...)
	return d
}

// Catalog

func (s *Store) GetPatientByID(_ context.Context, id uuid.UUID) (*domain.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return nil, appointment.ErrPatientNotFound
	}
	return &p, nil
}

func (s *Store) GetEmployee(_ context.Context, id uuid.UUID) (*domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[id]
	if !ok {
		return nil, appointment.ErrEmployeeNotFound
	}
	return &e, nil
}

func (s *Store) ListActiveEmployees(_ context.Context) ([]domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Employee
	for _, e := range s.employees {
		if e.Active {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) GetRoom(_ context.Context, id uuid.UUID) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, appointment.ErrRoomNotFound
	}
	return &r, nil
}

func (s *Store) ListActiveRooms(_ context.Context) ([]domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Room
	for _, r := range s.rooms {
		if r.Active {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) ListServicesByCodes(_ context.Context, codes []string) ([]domain.DentalService, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		want[c] = struct{}{}
	}
	var out []domain.DentalService
	for _, svc := range s.services {
		if _, ok := want[svc.Code]; ok {
			out = append(out, svc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) ListServicesByIDs(_ context.Context, ids []uuid.UUID) ([]domain.DentalService, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.DentalService
	for _, id := range ids {
		if svc, ok := s.services[id]; ok {
			out = append(out, svc)
		}
	}
	return out, nil
}

// Calendar

func (s *Store) ListShifts(_ context.Context, employeeID uuid.UUID, date time.Time) ([]domain.WorkingShift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.WorkingShift
	for _, sh := range s.shifts {
		if sh.EmployeeID == employeeID && interval.SameDay(sh.Date, date) {
			out = append(out, sh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *Store) ListEmployeesOnShift(_ context.Context, date time.Time) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for _, sh := range s.shifts {
		if !interval.SameDay(sh.Date, date) {
			continue
		}
		if _, ok := seen[sh.EmployeeID]; ok {
			continue
		}
		seen[sh.EmployeeID] = struct{}{}
		out = append(out, sh.EmployeeID)
	}
	return out, nil
}

func (s *Store) IsHoliday(_ context.Context, date time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.holidays[dayKey(date)]
	return ok, nil
}

// History

func (s *Store) CountServiceBookings(_ context.Context, serviceID uuid.UUID, date time.Time, exclude uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.countServiceBookings(serviceID, date, exclude), nil
}

func (s *Store) ListCompletedVisits(_ context.Context, patientID uuid.UUID, limit int) ([]domain.CompletedVisit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var done []domain.AppointmentDetail
	for _, d := range s.cur.appointments {
		if d.PatientID == patientID && d.Status == domain.StatusCompleted {
			done = append(done, d)
		}
	}
	sort.Slice(done, func(i, j int) bool { return done[i].Start.After(done[j].Start) })
	if limit > 0 && len(done) > limit {
		done = done[:limit]
	}

	out := make([]domain.CompletedVisit, 0, len(done))
	for _, d := range done {
		v := domain.CompletedVisit{AppointmentID: d.ID, Date: interval.DateOf(d.Start)}
		for _, svc := range d.Services {
			v.ServiceIDs = append(v.ServiceIDs, svc.ServiceID)
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Store) CompletedServiceDates(_ context.Context, patientID uuid.UUID) (map[uuid.UUID]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uuid.UUID]time.Time)
	for _, d := range s.cur.appointments {
		if d.PatientID != patientID || d.Status != domain.StatusCompleted {
			continue
		}
		day := interval.DateOf(d.Start)
		for _, svc := range d.Services {
			if last, ok := out[svc.ServiceID]; !ok || day.After(last) {
				out[svc.ServiceID] = day
			}
		}
	}
	return out, nil
}

// Dependencies

func (s *Store) ListDependencies(_ context.Context) ([]domain.ServiceDependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ServiceDependency(nil), s.deps...), nil
}

func (s *Store) CreateDependencies(_ context.Context, deps []domain.ServiceDependency) ([]domain.ServiceDependency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, d := range deps {
		if _, ok := s.services[d.ServiceID]; !ok {
			return nil, domain.NotFound("service_not_found", "service %s not found", d.ServiceID)
		}
		if _, ok := s.services[d.DependentServiceID]; !ok {
			return nil, domain.NotFound("service_not_found", "service %s not found", d.DependentServiceID)
		}
		if containsEdge(s.deps, d) || containsEdge(deps[:i], d) {
			return nil, domain.Conflict("dependency_exists", "dependency already exists")
		}
	}
	s.deps = append(s.deps, deps...)
	return append([]domain.ServiceDependency(nil), deps...), nil
}

// Appointments

func (s *Store) ListBusy(_ context.Context, kind conflict.ResourceKind, id uuid.UUID, window interval.Interval, exclude uuid.UUID) ([]interval.Interval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.listBusy(kind, id, window, exclude), nil
}

func (s *Store) GetAppointmentDetail(_ context.Context, id uuid.UUID) (*domain.AppointmentDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.cur.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	c := copyDetail(d)
	return &c, nil
}

func (s *Store) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Appointment
	for _, d := range s.cur.appointments {
		if d.PatientID == patientID {
			out = append(out, d.Appointment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	if offset >= len(out) {
		return []domain.Appointment{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) FindStaleScheduled(_ context.Context, cutoff time.Time, limit int) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Appointment
	for _, d := range s.cur.appointments {
		if d.Status == domain.StatusScheduled && d.End.Before(cutoff) {
			out = append(out, d.Appointment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].End.Before(out[j].End) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to domain.AppointmentStatus, reasonCode string, at time.Time) (*domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.cur.appointments[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	if d.Status != from {
		return nil, appointment.ErrStatusChanged
	}
	d.Status = to
	if reasonCode != "" {
		d.ReasonCode = reasonCode
	}
	if to == domain.StatusCompleted {
		completed := at
		d.CompletedAt = &completed
	}
	d.UpdatedAt = at
	s.cur.appointments[id] = d
	a := d.Appointment
	return &a, nil
}

func (s *Store) InsertEvent(_ context.Context, ev domain.EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.ID = int64(len(s.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	s.events = append(s.events, ev)
	return nil
}

// WithTx serializes transactions under the store lock. Writes land on a
// copy of the state that replaces the current one only if fn succeeds and
// the rows it wrote pass the doctor and room overlap guard. Like the
// deferred Postgres exclusions, the guard runs at commit.
func (s *Store) WithTx(ctx context.Context, fn func(tx appointment.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.txErrs) > 0 {
		err := s.txErrs[0]
		s.txErrs = s.txErrs[1:]
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	staged := s.cur.clone()
	t := &tx{st: staged, now: s.now}
	if err := fn(t); err != nil {
		return err
	}
	if err := staged.checkOverlap(t.touched); err != nil {
		return err
	}
	s.cur = staged
	return nil
}

// state queries, called with the store lock held

func (st *state) listBusy(kind conflict.ResourceKind, id uuid.UUID, window interval.Interval, exclude uuid.UUID) []interval.Interval {
	var out []interval.Interval
	for _, d := range st.appointments {
		if d.ID == exclude || !d.Status.Active() {
			continue
		}
		iv := interval.Interval{Start: d.Start, End: d.End}
		if !iv.Overlaps(window) {
			continue
		}
		if holds(d, kind, id) {
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// checkOverlap mirrors appointments_doctor_no_overlap and
// appointments_room_no_overlap for the rows a transaction wrote.
func (st *state) checkOverlap(ids map[uuid.UUID]struct{}) error {
	for id := range ids {
		d, ok := st.appointments[id]
		if !ok || !d.Status.Active() {
			continue
		}
		iv := interval.Interval{Start: d.Start, End: d.End}
		for _, o := range st.appointments {
			if o.ID == d.ID || !o.Status.Active() || !iv.Overlaps(interval.Interval{Start: o.Start, End: o.End}) {
				continue
			}
			constraint := ""
			switch {
			case o.DoctorID == d.DoctorID:
				constraint = "appointments_doctor_no_overlap"
			case o.RoomID == d.RoomID:
				constraint = "appointments_room_no_overlap"
			default:
				continue
			}
			return domain.ConcurrentWrite("overlapping booking committed concurrently").
				With("constraint", constraint)
		}
	}
	return nil
}

// holds reports whether d occupies the resource. Doctor and participant
// kinds both mean "this employee in any role".
func holds(d domain.AppointmentDetail, kind conflict.ResourceKind, id uuid.UUID) bool {
	if kind == conflict.KindRoom {
		return d.RoomID == id
	}
	if d.DoctorID == id {
		return true
	}
	for _, p := range d.Participants {
		if p.EmployeeID == id {
			return true
		}
	}
	return false
}

func (st *state) countServiceBookings(serviceID uuid.UUID, date time.Time, exclude uuid.UUID) int {
	n := 0
	for _, d := range st.appointments {
		if d.ID == exclude || d.Status == domain.StatusCancelled || !interval.SameDay(d.Start, date) {
			continue
		}
		for _, svc := range d.Services {
			if svc.ServiceID == serviceID {
				n++
				break
			}
		}
	}
	return n
}

func containsEdge(edges []domain.ServiceDependency, d domain.ServiceDependency) bool {
	for _, e := range edges {
		if e.ServiceID == d.ServiceID && e.DependentServiceID == d.DependentServiceID && e.RuleType == d.RuleType {
			return true
		}
	}
	return false
}
