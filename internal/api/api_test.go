package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/conflict"
	"github.com/hackgods/clinic-scheduling/internal/constraint"
	"github.com/hackgods/clinic-scheduling/internal/dependency"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/memstore"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

var day = time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)

type clinic struct {
	server  *httptest.Server
	store   *memstore.Store
	patient uuid.UUID
	doctor  domain.Employee
	room    domain.Room
	clean   domain.DentalService
	xray    domain.DentalService
}

func newClinic(t *testing.T) *clinic {
	t.Helper()
	c := &clinic{store: memstore.New(), patient: uuid.New()}

	c.clean = domain.DentalService{ID: uuid.New(), Code: "CLEAN", Name: "Cleaning", DurationMinutes: 30, BufferMinutes: 10, Active: true}
	c.xray = domain.DentalService{ID: uuid.New(), Code: "XRAY", Name: "X-ray", DurationMinutes: 15, Active: true}
	c.store.AddService(c.clean)
	c.store.AddService(c.xray)

	c.doctor = domain.Employee{ID: uuid.New(), Name: "Dr. Ana", Role: domain.RoleDoctor, Active: true, Specializations: []string{"general"}}
	c.store.AddEmployee(c.doctor)
	c.room = domain.Room{ID: uuid.New(), Code: "R1", Name: "Chair 1", Active: true, ServiceIDs: []uuid.UUID{c.clean.ID, c.xray.ID}}
	c.store.AddRoom(c.room)
	c.store.AddPatient(domain.Patient{ID: c.patient, Name: "Paula"})
	c.store.AddShift(domain.WorkingShift{
		EmployeeID: c.doctor.ID,
		Date:       day,
		Start:      day.Add(9 * time.Hour),
		End:        day.Add(12 * time.Hour),
	})

	logger := zerolog.Nop()
	cfg := config.Config{HistoryLimit: 50, RetryBackoff: time.Millisecond}
	rules := dependency.NewEngine(c.store, logger)
	validator := constraint.NewValidator(c.store, cfg.HistoryLimit, logger)
	svc := appointment.NewService(c.store, redisclient.NewLocalResourceLocker(time.Second), validator, rules, cfg, logger)
	resolver := availability.NewResolver(c.store, c.store, conflict.NewDetector(c.store), logger)

	c.server = httptest.NewServer(api.NewRouter(api.RouterConfig{
		Appointments: svc,
		Resolver:     resolver,
		Rules:        rules,
		Health:       api.NewHealthHandler(nil, nil, "test", "v0"),
		Logger:       logger,
	}))
	t.Cleanup(c.server.Close)
	return c
}

func (c *clinic) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (c *clinic) book(t *testing.T, start string) *http.Response {
	return c.do(t, http.MethodPost, "/appointments", map[string]any{
		"patient_id":  c.patient.String(),
		"doctor_id":   c.doctor.ID.String(),
		"room_id":     c.room.ID.String(),
		"service_ids": []string{c.clean.ID.String(), c.xray.ID.String()},
		"start":       start,
	})
}

func TestCreateAppointment(t *testing.T) {
	c := newClinic(t)

	resp := c.book(t, "2025-11-10T09:00")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	created := decode[api.AppointmentDetailResponse](t, resp)
	assert.Equal(t, domain.StatusScheduled, created.Status)
	assert.Equal(t, day.Add(9*time.Hour), created.Start.UTC())
	assert.Equal(t, day.Add(9*time.Hour+55*time.Minute), created.End.UTC())
	assert.Len(t, created.Services, 2)

	get := c.do(t, http.MethodGet, "/appointments/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, get.StatusCode)
	assert.Equal(t, created.ID, decode[api.AppointmentDetailResponse](t, get).ID)
}

func TestCreateAppointmentConflict(t *testing.T) {
	c := newClinic(t)
	require.Equal(t, http.StatusCreated, c.book(t, "2025-11-10T09:00").StatusCode)

	resp := c.book(t, "2025-11-10T09:30")
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decode[api.ErrorResponse](t, resp)
	assert.Equal(t, domain.CodeDoctorBusy, body.Error)
	assert.Equal(t, c.doctor.ID.String(), body.Details["doctor_id"])
}

func TestCreateAppointmentBadRequests(t *testing.T) {
	c := newClinic(t)

	tests := []struct {
		name string
		body any
		code string
	}{
		{
			name: "malformed patient id",
			body: map[string]any{"patient_id": "nope", "doctor_id": c.doctor.ID.String(), "room_id": c.room.ID.String(), "start": "2025-11-10T09:00"},
			code: "invalid_patient_id",
		},
		{
			name: "unknown field",
			body: map[string]any{"slot_id": uuid.NewString()},
			code: "invalid_request_body",
		},
		{
			name: "bad timestamp",
			body: map[string]any{"start": "10/11/2025 09:00"},
			code: "invalid_request_body",
		},
		{
			name: "no services",
			body: map[string]any{"patient_id": c.patient.String(), "doctor_id": c.doctor.ID.String(), "room_id": c.room.ID.String(), "start": "2025-11-10T09:00"},
			code: "services_required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := c.do(t, http.MethodPost, "/appointments", tt.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.code, decode[api.ErrorResponse](t, resp).Error)
		})
	}
}

func TestGetAppointmentNotFound(t *testing.T) {
	c := newClinic(t)

	resp := c.do(t, http.MethodGet, "/appointments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = c.do(t, http.MethodGet, "/appointments/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLifecycleEndpoints(t *testing.T) {
	c := newClinic(t)
	created := decode[api.AppointmentDetailResponse](t, c.book(t, "2025-11-10T09:00"))
	base := "/appointments/" + created.ID.String()

	for _, step := range []struct {
		path   string
		status domain.AppointmentStatus
	}{
		{"/check-in", domain.StatusCheckedIn},
		{"/start", domain.StatusInProgress},
		{"/complete", domain.StatusCompleted},
	} {
		resp := c.do(t, http.MethodPost, base+step.path, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, step.path)
		assert.Equal(t, step.status, decode[api.AppointmentResponse](t, resp).Status)
	}

	resp := c.do(t, http.MethodPost, base+"/cancel", map[string]string{"reason_code": "PATIENT_REQUEST"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, domain.CodeInvalidTransition, decode[api.ErrorResponse](t, resp).Error)
}

func TestCancelFreesSlot(t *testing.T) {
	c := newClinic(t)
	created := decode[api.AppointmentDetailResponse](t, c.book(t, "2025-11-10T09:00"))

	resp := c.do(t, http.MethodPost, "/appointments/"+created.ID.String()+"/cancel", map[string]string{"reason_code": "PATIENT_REQUEST"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cancelled := decode[api.AppointmentResponse](t, resp)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Equal(t, "PATIENT_REQUEST", cancelled.ReasonCode)

	assert.Equal(t, http.StatusCreated, c.book(t, "2025-11-10T09:00").StatusCode)
}

func TestDelayAndReschedule(t *testing.T) {
	c := newClinic(t)
	created := decode[api.AppointmentDetailResponse](t, c.book(t, "2025-11-10T09:00"))
	base := "/appointments/" + created.ID.String()

	resp := c.do(t, http.MethodPost, base+"/delay", map[string]any{"minutes": 15})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	delayed := decode[api.AppointmentDetailResponse](t, resp)
	assert.Equal(t, day.Add(9*time.Hour+15*time.Minute), delayed.Start.UTC())

	resp = c.do(t, http.MethodPost, base+"/delay", map[string]any{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = c.do(t, http.MethodPost, base+"/reschedule", map[string]any{"start": "2025-11-10T11:00"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	res := decode[api.RescheduleResponse](t, resp)
	require.NotNil(t, res.Old.RescheduledToAppointmentID)
	assert.Equal(t, res.New.ID, *res.Old.RescheduledToAppointmentID)
	assert.Equal(t, domain.StatusCancelled, res.Old.Status)
	assert.Equal(t, day.Add(11*time.Hour), res.New.Start.UTC())
}

func TestListAppointmentsByPatient(t *testing.T) {
	c := newClinic(t)
	require.Equal(t, http.StatusCreated, c.book(t, "2025-11-10T09:00").StatusCode)
	require.Equal(t, http.StatusCreated, c.book(t, "2025-11-10T10:00").StatusCode)

	resp := c.do(t, http.MethodGet, "/appointments?patient_id="+c.patient.String()+"&limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]api.AppointmentResponse](t, resp), 1)

	resp = c.do(t, http.MethodGet, "/appointments?patient_id="+uuid.NewString(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]api.AppointmentResponse](t, resp))

	resp = c.do(t, http.MethodGet, "/appointments", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAvailabilityEndpoints(t *testing.T) {
	c := newClinic(t)
	require.Equal(t, http.StatusCreated, c.book(t, "2025-11-10T09:00").StatusCode)

	resp := c.do(t, http.MethodGet, "/availability/doctors?date=2025-11-10&service_codes=CLEAN", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doctors := decode[availability.DoctorResult](t, resp)
	require.Len(t, doctors.Doctors, 1)
	assert.Equal(t, c.doctor.ID, doctors.Doctors[0].ID)

	resp = c.do(t, http.MethodGet, "/availability/slots?date=2025-11-10&doctor_id="+c.doctor.ID.String()+"&duration_minutes=30", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	slots := decode[api.SlotsResponse](t, resp)
	require.NotEmpty(t, slots.Slots)
	assert.Equal(t, day.Add(9*time.Hour+55*time.Minute), slots.Slots[0].Start.UTC())

	resp = c.do(t, http.MethodGet, "/availability/resources?start=2025-11-10T09:00&end=2025-11-10T09:30&service_codes=CLEAN", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[availability.Resources](t, resp)
	assert.Empty(t, res.Rooms)
	assert.NotEmpty(t, res.Explanation)

	resp = c.do(t, http.MethodGet, "/availability/doctors?date=10-11-2025", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServiceDependencyEndpoints(t *testing.T) {
	c := newClinic(t)

	resp := c.do(t, http.MethodPost, "/service-dependencies", map[string]any{
		"service_id":           c.clean.ID.String(),
		"dependent_service_id": c.xray.ID.String(),
		"rule_type":            string(domain.RuleBundlesWith),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = c.do(t, http.MethodPost, "/service-dependencies", map[string]any{
		"service_id":           c.clean.ID.String(),
		"dependent_service_id": c.xray.ID.String(),
		"rule_type":            string(domain.RuleRequiresMinDays),
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "dependency_min_days", decode[api.ErrorResponse](t, resp).Error)

	resp = c.do(t, http.MethodGet, "/services/"+c.clean.ID.String()+"/bundle-suggestions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	links := decode[api.ServiceLinksResponse](t, resp)
	assert.Equal(t, []uuid.UUID{c.xray.ID}, links.Services)

	resp = c.do(t, http.MethodGet, "/services/"+c.xray.ID.String()+"/unlocked-by", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[api.ServiceLinksResponse](t, resp).Services)

	resp = c.do(t, http.MethodGet, "/service-dependencies", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.ServiceDependency](t, resp), 1)
}

func TestHealthWithoutBackends(t *testing.T) {
	c := newClinic(t)

	resp := c.do(t, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[api.ReadinessResponse](t, resp)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "disabled", body.Dependencies["postgres"])
	assert.Equal(t, "disabled", body.Dependencies["redis"])

	resp = c.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestParseClinicTime(t *testing.T) {
	want := time.Date(2025, 11, 10, 9, 30, 0, 0, time.UTC)
	for _, raw := range []string{"2025-11-10T09:30", "2025-11-10T09:30:00", "2025-11-10T09:30:00+02:00"} {
		got, err := api.ParseClinicTime(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := api.ParseClinicTime("09:30")
	assert.Error(t, err)
}

func TestClinicTimeMarshalsWithoutZone(t *testing.T) {
	for _, tt := range []struct {
		in   time.Time
		want string
	}{
		{time.Date(2025, 11, 10, 9, 30, 0, 0, time.UTC), `"2025-11-10T09:30"`},
		{time.Date(2025, 11, 10, 9, 30, 12, 500, time.UTC), `"2025-11-10T09:30:12"`},
	} {
		b, err := json.Marshal(api.ClinicTime{Time: tt.in})
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(b))
	}
}

func TestResponsesUseRequestTimeLayout(t *testing.T) {
	c := newClinic(t)

	resp := c.book(t, "2025-11-10T09:00")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var raw map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.Equal(t, "2025-11-10T09:00", raw["start"])
	assert.Equal(t, "2025-11-10T09:55", raw["end"])

	resp = c.do(t, http.MethodGet, "/availability/slots?date=2025-11-10&doctor_id="+c.doctor.ID.String()+"&duration_minutes=30", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var slots struct {
		Slots []map[string]string `json:"slots"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&slots))
	require.NotEmpty(t, slots.Slots)
	assert.Equal(t, "2025-11-10T09:55", slots.Slots[0]["start"])
	assert.Equal(t, "2025-11-10T12:00", slots.Slots[0]["end"])
}
