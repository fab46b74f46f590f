// Package seed generates a synthetic clinic: a fixed service catalog with
// its clinical rules, plus fake staff, rooms, patients and shifts.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/interval"
)

type Options struct {
	Seed       uint64 // 0 picks a random seed
	Doctors    int
	Assistants int
	Nurses     int
	Chairs     int // general rooms; one surgery room is always added
	Patients   int
	StartDate  time.Time
	Days       int // consecutive weekdays with shifts, starting at StartDate
}

func DefaultOptions() Options {
	return Options{
		Doctors:    6,
		Assistants: 4,
		Nurses:     2,
		Chairs:     4,
		Patients:   500,
		StartDate:  interval.DateOf(interval.Now()),
		Days:       10,
	}
}

type Dataset struct {
	Services     []domain.DentalService
	Dependencies []domain.ServiceDependency
	Employees    []domain.Employee
	Rooms        []domain.Room
	Patients     []domain.Patient
	Shifts       []domain.WorkingShift
}

func (ds Dataset) Service(code string) (domain.DentalService, bool) {
	for _, s := range ds.Services {
		if s.Code == code {
			return s, true
		}
	}
	return domain.DentalService{}, false
}

func intPtr(v int) *int { return &v }

// Catalog is the fixed service list. Only the IDs are random.
func Catalog() []domain.DentalService {
	svc := func(code, name string, duration, buffer int, price int64) domain.DentalService {
		return domain.DentalService{ID: uuid.New(), Code: code, Name: name, DurationMinutes: duration, BufferMinutes: buffer, Price: price, Active: true}
	}

	exam := svc("EXAM", "Check-up", 20, 5, 3000)
	clean := svc("CLEAN", "Professional cleaning", 30, 10, 4000)
	xray := svc("XRAY", "Panoramic x-ray", 15, 5, 2500)
	fill := svc("FILL", "Composite filling", 45, 15, 9000)
	scale := svc("SCALE", "Deep scaling", 40, 10, 7000)
	scale.SpacingDays = intPtr(30)
	extract := svc("EXTRACT", "Tooth extraction", 40, 20, 8000)
	extract.RecoveryDays = intPtr(7)
	implant := svc("IMPLANT", "Implant placement", 90, 30, 120000)
	implant.RequiredSpecializations = []string{"surgery"}
	implant.MinimumPreparationDays = intPtr(3)
	implant.RecoveryDays = intPtr(14)
	rootCanal := svc("ROOT_CANAL", "Root canal treatment", 75, 15, 35000)
	rootCanal.RequiredSpecializations = []string{"endodontics"}
	whiten := svc("WHITEN", "Whitening", 60, 10, 15000)
	whiten.MaxAppointmentsPerDay = intPtr(3)

	return []domain.DentalService{exam, clean, xray, fill, scale, extract, implant, rootCanal, whiten}
}

// Rules wires the clinical dependencies between catalog entries. Exclusion
// edges are returned together with their mirrors.
func Rules(services []domain.DentalService) ([]domain.ServiceDependency, error) {
	byCode := make(map[string]uuid.UUID, len(services))
	for _, s := range services {
		byCode[s.Code] = s.ID
	}

	edge := func(from, to string, rule domain.RuleType, minDays *int, note string) (domain.ServiceDependency, error) {
		fromID, ok := byCode[from]
		if !ok {
			return domain.ServiceDependency{}, fmt.Errorf("unknown service code %s", from)
		}
		toID, ok := byCode[to]
		if !ok {
			return domain.ServiceDependency{}, fmt.Errorf("unknown service code %s", to)
		}
		return domain.ServiceDependency{ID: uuid.New(), ServiceID: fromID, DependentServiceID: toID, RuleType: rule, MinDaysApart: minDays, Note: note}, nil
	}

	specs := []struct {
		from, to string
		rule     domain.RuleType
		minDays  *int
		note     string
	}{
		{"IMPLANT", "XRAY", domain.RuleRequiresPrerequisite, nil, "imaging before surgery"},
		{"ROOT_CANAL", "XRAY", domain.RuleRequiresPrerequisite, nil, "imaging before endodontics"},
		{"IMPLANT", "EXTRACT", domain.RuleRequiresMinDays, intPtr(60), "socket must heal"},
		{"WHITEN", "FILL", domain.RuleExcludesSameDay, nil, "fresh composite stains"},
		{"EXAM", "CLEAN", domain.RuleBundlesWith, nil, ""},
		{"EXAM", "XRAY", domain.RuleBundlesWith, nil, ""},
	}

	var out []domain.ServiceDependency
	for _, s := range specs {
		d, err := edge(s.from, s.to, s.rule, s.minDays, s.note)
		if err != nil {
			return nil, err
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		out = append(out, d)
		if d.RuleType == domain.RuleExcludesSameDay {
			m := d.Mirror()
			m.ID = uuid.New()
			out = append(out, m)
		}
	}
	return out, nil
}

// Generate builds a dataset. The same non-zero Seed yields the same names
// and shift layout; IDs are always fresh.
func Generate(opts Options) (Dataset, error) {
	if opts.Doctors <= 0 || opts.Chairs <= 0 {
		return Dataset{}, fmt.Errorf("need at least one doctor and one chair")
	}
	f := gofakeit.New(opts.Seed)

	ds := Dataset{Services: Catalog()}
	rules, err := Rules(ds.Services)
	if err != nil {
		return Dataset{}, err
	}
	ds.Dependencies = rules

	extras := [][]string{{"surgery"}, {"endodontics"}, {"orthodontics"}, nil}
	for i := 0; i < opts.Doctors; i++ {
		specs := []string{"general"}
		// the first doctor always operates so implants stay bookable
		if i == 0 {
			specs = append(specs, "surgery")
		} else {
			specs = append(specs, extras[f.Number(0, len(extras)-1)]...)
		}
		ds.Employees = append(ds.Employees, domain.Employee{ID: uuid.New(), Name: "Dr. " + f.Name(), Role: domain.RoleDoctor, Active: true, Specializations: specs})
	}
	for i := 0; i < opts.Assistants; i++ {
		ds.Employees = append(ds.Employees, domain.Employee{ID: uuid.New(), Name: f.Name(), Role: domain.RoleAssistant, Active: true, Specializations: []string{}})
	}
	for i := 0; i < opts.Nurses; i++ {
		ds.Employees = append(ds.Employees, domain.Employee{ID: uuid.New(), Name: f.Name(), Role: domain.RoleNurse, Active: true, Specializations: []string{}})
	}

	var general, all []uuid.UUID
	for _, s := range ds.Services {
		all = append(all, s.ID)
		if s.Code != "IMPLANT" {
			general = append(general, s.ID)
		}
	}
	for i := 1; i <= opts.Chairs; i++ {
		ds.Rooms = append(ds.Rooms, domain.Room{ID: uuid.New(), Code: fmt.Sprintf("CH%02d", i), Name: fmt.Sprintf("Chair %d", i), Active: true, ServiceIDs: general})
	}
	ds.Rooms = append(ds.Rooms, domain.Room{ID: uuid.New(), Code: "SURG", Name: "Surgery", Active: true, ServiceIDs: all})

	for i := 0; i < opts.Patients; i++ {
		email := f.Email()
		ds.Patients = append(ds.Patients, domain.Patient{ID: uuid.New(), Name: f.Name(), Email: &email})
	}

	start := opts.StartDate.UTC().Truncate(24 * time.Hour)
	for day, worked := start, 0; worked < opts.Days; day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		worked++
		for _, e := range ds.Employees {
			// early or late shift
			from := 8 + 2*f.Number(0, 1)
			ds.Shifts = append(ds.Shifts, domain.WorkingShift{
				EmployeeID: e.ID,
				Date:       day,
				Start:      day.Add(time.Duration(from) * time.Hour),
				End:        day.Add(time.Duration(from+8) * time.Hour),
			})
		}
	}

	return ds, nil
}

// Target is an in-process store that can take a dataset; memstore.Store
// satisfies it. Postgres goes through WritePostgres instead.
type Target interface {
	AddPatient(p domain.Patient)
	AddEmployee(e domain.Employee)
	AddRoom(r domain.Room)
	AddService(s domain.DentalService)
	AddShift(sh domain.WorkingShift)
	CreateDependencies(ctx context.Context, deps []domain.ServiceDependency) ([]domain.ServiceDependency, error)
}

func LoadInto(ctx context.Context, t Target, ds Dataset) error {
	for _, s := range ds.Services {
		t.AddService(s)
	}
	for _, e := range ds.Employees {
		t.AddEmployee(e)
	}
	for _, r := range ds.Rooms {
		t.AddRoom(r)
	}
	for _, p := range ds.Patients {
		t.AddPatient(p)
	}
	for _, sh := range ds.Shifts {
		t.AddShift(sh)
	}
	if _, err := t.CreateDependencies(ctx, ds.Dependencies); err != nil {
		return fmt.Errorf("load dependencies: %w", err)
	}
	return nil
}
