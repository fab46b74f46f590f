package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/domain"
)

type AppointmentResponse struct {
	ID                         uuid.UUID                `json:"id"`
	PatientID                  uuid.UUID                `json:"patient_id"`
	DoctorID                   uuid.UUID                `json:"doctor_id"`
	RoomID                     uuid.UUID                `json:"room_id"`
	Start                      ClinicTime               `json:"start"`
	End                        ClinicTime               `json:"end"`
	Status                     domain.AppointmentStatus `json:"status"`
	RescheduledToAppointmentID *uuid.UUID               `json:"rescheduled_to_appointment_id,omitempty"`
	ReasonCode                 string                   `json:"reason_code,omitempty"`
	Notes                      string                   `json:"notes,omitempty"`
	CompletedAt                *ClinicTime              `json:"completed_at,omitempty"`
	CreatedAt                  ClinicTime               `json:"created_at"`
	UpdatedAt                  ClinicTime               `json:"updated_at"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	Services     []domain.AppointmentService     `json:"services"`
	Participants []domain.AppointmentParticipant `json:"participants"`
}

type RescheduleResponse struct {
	Old AppointmentResponse       `json:"old"`
	New AppointmentDetailResponse `json:"new"`
}

type SlotResponse struct {
	Start ClinicTime `json:"start"`
	End   ClinicTime `json:"end"`
}

type SlotsResponse struct {
	Slots       []SlotResponse `json:"slots"`
	Explanation string         `json:"explanation,omitempty"`
}

func clinicTimePtr(t *time.Time) *ClinicTime {
	if t == nil {
		return nil
	}
	return &ClinicTime{Time: *t}
}

func toAppointmentResponse(a domain.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                         a.ID,
		PatientID:                  a.PatientID,
		DoctorID:                   a.DoctorID,
		RoomID:                     a.RoomID,
		Start:                      ClinicTime{Time: a.Start},
		End:                        ClinicTime{Time: a.End},
		Status:                     a.Status,
		RescheduledToAppointmentID: a.RescheduledToAppointmentID,
		ReasonCode:                 a.ReasonCode,
		Notes:                      a.Notes,
		CompletedAt:                clinicTimePtr(a.CompletedAt),
		CreatedAt:                  ClinicTime{Time: a.CreatedAt},
		UpdatedAt:                  ClinicTime{Time: a.UpdatedAt},
	}
}

func toAppointmentDetailResponse(d domain.AppointmentDetail) AppointmentDetailResponse {
	resp := AppointmentDetailResponse{
		AppointmentResponse: toAppointmentResponse(d.Appointment),
		Services:            d.Services,
		Participants:        d.Participants,
	}
	if resp.Services == nil {
		resp.Services = []domain.AppointmentService{}
	}
	if resp.Participants == nil {
		resp.Participants = []domain.AppointmentParticipant{}
	}
	return resp
}

func toAppointmentList(list []domain.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, len(list))
	for i, a := range list {
		out[i] = toAppointmentResponse(a)
	}
	return out
}

func toRescheduleResponse(r appointment.RescheduleResult) RescheduleResponse {
	return RescheduleResponse{
		Old: toAppointmentResponse(r.Old),
		New: toAppointmentDetailResponse(r.New),
	}
}

func toSlotsResponse(r availability.SlotResult) SlotsResponse {
	out := SlotsResponse{Slots: make([]SlotResponse, len(r.Slots)), Explanation: r.Explanation}
	for i, s := range r.Slots {
		out.Slots[i] = SlotResponse{Start: ClinicTime{Time: s.Start}, End: ClinicTime{Time: s.End}}
	}
	return out
}
