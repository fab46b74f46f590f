package availability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/conflict"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/interval"
)

const (
	ExplainNoQualifiedDoctor  = "no doctor with the required specializations works on this date"
	ExplainNoCompatibleRoom   = "no room supports this service combination"
	ExplainAllRoomsBusy       = "every compatible room is booked for this interval"
	ExplainNoAssistantFree    = "no assistant is free for this interval"
	ExplainNoGapLongEnough    = "no free gap is long enough for the requested duration"
	ExplainDoctorHasNoShift   = "doctor has no working shift on this date"
	ExplainNonPositiveMinutes = "duration must be positive"
)

// Catalog is the read side of the master data owned by other services.
type Catalog interface {
	ListServicesByCodes(ctx context.Context, codes []string) ([]domain.DentalService, error)
	GetEmployee(ctx context.Context, id uuid.UUID) (*domain.Employee, error)
	ListActiveEmployees(ctx context.Context) ([]domain.Employee, error)
	ListActiveRooms(ctx context.Context) ([]domain.Room, error)
}

// ShiftCalendar exposes declared working windows. It is never written here.
type ShiftCalendar interface {
	ListShifts(ctx context.Context, employeeID uuid.UUID, date time.Time) ([]domain.WorkingShift, error)
	ListEmployeesOnShift(ctx context.Context, date time.Time) ([]uuid.UUID, error)
}

// Slot is a free gap; Start is a candidate appointment start time.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type DoctorResult struct {
	Doctors     []domain.Employee `json:"doctors"`
	Explanation string            `json:"explanation,omitempty"`
}

type SlotResult struct {
	Slots       []Slot `json:"slots"`
	Explanation string `json:"explanation,omitempty"`
}

type Resources struct {
	Rooms       []domain.Room     `json:"rooms"`
	Assistants  []domain.Employee `json:"assistants"`
	Explanation string            `json:"explanation,omitempty"`
}

type Resolver struct {
	catalog  Catalog
	shifts   ShiftCalendar
	detector *conflict.Detector
	logger   zerolog.Logger
}

func NewResolver(catalog Catalog, shifts ShiftCalendar, detector *conflict.Detector, logger zerolog.Logger) *Resolver {
	return &Resolver{
		catalog:  catalog,
		shifts:   shifts,
		detector: detector,
		logger:   logger.With().Str("component", "availability").Logger(),
	}
}

// ResolveDoctors lists doctors qualified for every requested service who
// have at least one shift on date. Momentary busyness is not considered;
// that happens at slot selection.
func (r *Resolver) ResolveDoctors(ctx context.Context, date time.Time, serviceCodes []string) (*DoctorResult, error) {
	if date.IsZero() {
		return nil, domain.InvalidInput("date_required", "date is required")
	}
	services, err := LoadServices(ctx, r.catalog, serviceCodes)
	if err != nil {
		return nil, err
	}
	required := domain.RequiredSpecializations(services)

	onShift, err := r.shifts.ListEmployeesOnShift(ctx, interval.DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("list employees on shift: %w", err)
	}
	working := make(map[uuid.UUID]struct{}, len(onShift))
	for _, id := range onShift {
		working[id] = struct{}{}
	}

	employees, err := r.catalog.ListActiveEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}

	result := &DoctorResult{Doctors: []domain.Employee{}}
	for _, e := range employees {
		if e.Role != domain.RoleDoctor || !e.Active {
			continue
		}
		if _, ok := working[e.ID]; !ok {
			continue
		}
		if !e.HasSpecializations(required) {
			continue
		}
		result.Doctors = append(result.Doctors, e)
	}
	sort.Slice(result.Doctors, func(i, j int) bool {
		return result.Doctors[i].Name < result.Doctors[j].Name
	})

	if len(result.Doctors) == 0 {
		result.Explanation = ExplainNoQualifiedDoctor
	}

	r.logger.Debug().
		Time("date", date).
		Strs("service_codes", serviceCodes).
		Int("doctors", len(result.Doctors)).
		Msg("resolved doctors")

	return result, nil
}

// ResolveSlots subtracts the doctor's busy intervals from each declared
// shift and keeps gaps of at least durationMinutes. Only gap boundaries are
// returned; the caller picks the exact start within a gap.
func (r *Resolver) ResolveSlots(ctx context.Context, date time.Time, doctorID uuid.UUID, durationMinutes int) (*SlotResult, error) {
	if durationMinutes <= 0 {
		return &SlotResult{Slots: []Slot{}, Explanation: ExplainNonPositiveMinutes}, nil
	}
	if date.IsZero() {
		return nil, domain.InvalidInput("date_required", "date is required")
	}
	if _, err := r.catalog.GetEmployee(ctx, doctorID); err != nil {
		return nil, err
	}

	shifts, err := r.shifts.ListShifts(ctx, doctorID, interval.DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	if len(shifts) == 0 {
		return &SlotResult{Slots: []Slot{}, Explanation: ExplainDoctorHasNoShift}, nil
	}

	need := time.Duration(durationMinutes) * time.Minute
	result := &SlotResult{Slots: []Slot{}}
	for _, sh := range shifts {
		window, err := interval.New(sh.Start, sh.End)
		if err != nil {
			r.logger.Warn().Str("doctor_id", doctorID.String()).Time("start", sh.Start).Time("end", sh.End).Msg("skipping empty shift")
			continue
		}
		busy, err := r.detector.ListBusyWithin(ctx, conflict.KindDoctor, doctorID, window)
		if err != nil {
			return nil, err
		}
		for _, gap := range interval.FreeGaps(window, busy, need) {
			result.Slots = append(result.Slots, Slot{Start: gap.Start, End: gap.End})
		}
	}
	sort.Slice(result.Slots, func(i, j int) bool {
		return result.Slots[i].Start.Before(result.Slots[j].Start)
	})

	if len(result.Slots) == 0 {
		result.Explanation = ExplainNoGapLongEnough
	}
	return result, nil
}

// ResolveResources lists rooms compatible with all requested services and
// assisting staff, all free over iv.
func (r *Resolver) ResolveResources(ctx context.Context, iv interval.Interval, serviceCodes []string) (*Resources, error) {
	if !iv.End.After(iv.Start) {
		return nil, domain.InvalidInput("invalid_interval", "end must be after start")
	}
	services, err := LoadServices(ctx, r.catalog, serviceCodes)
	if err != nil {
		return nil, err
	}
	serviceIDs := domain.ServiceIDs(services)

	rooms, err := r.catalog.ListActiveRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	res := &Resources{Rooms: []domain.Room{}, Assistants: []domain.Employee{}}
	var explanations []string

	compatible := 0
	for _, room := range rooms {
		if !room.Active || !room.Supports(serviceIDs) {
			continue
		}
		compatible++
		busy, err := r.detector.HasConflict(ctx, conflict.KindRoom, room.ID, iv)
		if err != nil {
			return nil, err
		}
		if !busy {
			res.Rooms = append(res.Rooms, room)
		}
	}
	switch {
	case compatible == 0:
		explanations = append(explanations, ExplainNoCompatibleRoom)
	case len(res.Rooms) == 0:
		explanations = append(explanations, ExplainAllRoomsBusy)
	}

	employees, err := r.catalog.ListActiveEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	for _, e := range employees {
		if !e.Active || !e.Role.IsMedicalStaff() {
			continue
		}
		busy, err := r.detector.HasConflict(ctx, conflict.KindParticipant, e.ID, iv)
		if err != nil {
			return nil, err
		}
		if !busy {
			res.Assistants = append(res.Assistants, e)
		}
	}
	if len(res.Assistants) == 0 {
		explanations = append(explanations, ExplainNoAssistantFree)
	}

	res.Explanation = strings.Join(explanations, "; ")
	return res, nil
}

// LoadServices resolves codes to catalog entries, failing with NotFound if
// any code is unknown and with SERVICE_INACTIVE if any is no longer offered.
func LoadServices(ctx context.Context, catalog Catalog, codes []string) ([]domain.DentalService, error) {
	codes = normalizeCodes(codes)
	if len(codes) == 0 {
		return nil, domain.InvalidInput("service_codes_required", "at least one service code is required")
	}

	services, err := catalog.ListServicesByCodes(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}

	found := make(map[string]struct{}, len(services))
	for _, s := range services {
		found[s.Code] = struct{}{}
	}
	var missing []string
	for _, c := range codes {
		if _, ok := found[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, domain.NotFound("service_not_found", "unknown service codes: %s", strings.Join(missing, ", ")).
			With("service_codes", missing)
	}

	var inactive []string
	for _, s := range services {
		if !s.Active {
			inactive = append(inactive, s.Code)
		}
	}
	if len(inactive) > 0 {
		return nil, domain.Conflict(domain.CodeServiceInactive, "services not offered: %s", strings.Join(inactive, ", ")).
			With("service_codes", inactive)
	}
	return services, nil
}

func normalizeCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
