package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	ClinicTimeLayout = "2006-01-02T15:04"
	DateLayout       = "2006-01-02"
)

// ClinicTime is a naive wall-clock timestamp. Any offset in the input is
// dropped; the wall clock is kept and carried as UTC.
type ClinicTime struct {
	time.Time
}

func (c *ClinicTime) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	t, err := ParseClinicTime(raw)
	if err != nil {
		return err
	}
	c.Time = t
	return nil
}

// MarshalJSON writes the wall clock without an offset, in the same layout
// requests use. Seconds are kept only when set.
func (c ClinicTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(FormatClinicTime(c.Time))
}

func FormatClinicTime(t time.Time) string {
	if t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(ClinicTimeLayout)
	}
	return t.Format("2006-01-02T15:04:05")
}

func ParseClinicTime(raw string) (time.Time, error) {
	for _, layout := range []string{ClinicTimeLayout, "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q, expected %s", raw, ClinicTimeLayout)
}

type ParticipantRequest struct {
	EmployeeID string `json:"employee_id"`
	Role       string `json:"role"`
}

type CreateAppointmentRequest struct {
	PatientID           string               `json:"patient_id"`
	DoctorID            string               `json:"doctor_id"`
	RoomID              string               `json:"room_id"`
	ServiceIDs          []string             `json:"service_ids"`
	Participants        []ParticipantRequest `json:"participants"`
	Start               ClinicTime           `json:"start"`
	ReasonCode          string               `json:"reason_code"`
	Notes               string               `json:"notes"`
	TreatmentPlanItemID string               `json:"treatment_plan_item_id"`
}

type CancelRequest struct {
	ReasonCode string `json:"reason_code"`
}

type DelayRequest struct {
	Minutes  int         `json:"minutes"`
	NewStart *ClinicTime `json:"new_start"`
}

type RescheduleRequest struct {
	Start        ClinicTime           `json:"start"`
	DoctorID     string               `json:"doctor_id"`
	RoomID       string               `json:"room_id"`
	Participants []ParticipantRequest `json:"participants"`
	Notes        *string              `json:"notes"`
}

type CreateDependencyRequest struct {
	ServiceID          string `json:"service_id"`
	DependentServiceID string `json:"dependent_service_id"`
	RuleType           string `json:"rule_type"`
	MinDaysApart       *int   `json:"min_days_apart"`
	Note               string `json:"note"`
}

type ServiceLinksResponse struct {
	ServiceID uuid.UUID   `json:"service_id"`
	Services  []uuid.UUID `json:"services"`
}

type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}
