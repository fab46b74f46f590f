package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/domain"
)

func participantsFromRequest(reqs []ParticipantRequest) ([]appointment.ParticipantInput, error) {
	if reqs == nil {
		return nil, nil
	}
	out := make([]appointment.ParticipantInput, 0, len(reqs))
	for _, p := range reqs {
		id, err := parseUUID("participant_employee_id", p.EmployeeID)
		if err != nil {
			return nil, err
		}
		out = append(out, appointment.ParticipantInput{EmployeeID: id, Role: domain.ParticipantRole(p.Role)})
	}
	return out, nil
}

func createInputFromRequest(req CreateAppointmentRequest) (appointment.CreateInput, error) {
	var in appointment.CreateInput
	var err error

	if in.PatientID, err = parseUUID("patient_id", req.PatientID); err != nil {
		return in, err
	}
	if in.DoctorID, err = parseUUID("doctor_id", req.DoctorID); err != nil {
		return in, err
	}
	if in.RoomID, err = parseUUID("room_id", req.RoomID); err != nil {
		return in, err
	}
	for _, raw := range req.ServiceIDs {
		id, err := parseUUID("service_id", raw)
		if err != nil {
			return in, err
		}
		in.ServiceIDs = append(in.ServiceIDs, id)
	}
	if in.Participants, err = participantsFromRequest(req.Participants); err != nil {
		return in, err
	}
	if in.TreatmentPlanItemID, err = parseOptionalUUID("treatment_plan_item_id", req.TreatmentPlanItemID); err != nil {
		return in, err
	}
	in.Start = req.Start.Time
	in.ReasonCode = req.ReasonCode
	in.Notes = req.Notes
	return in, nil
}

func createAppointmentHandler(svc *appointment.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := decodeJSON(r, &req); err != nil {
			handleError(w, r, logger, err)
			return
		}

		in, err := createInputFromRequest(req)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), in)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentDetailResponse(*appt))
	}
}

func getAppointmentHandler(svc *appointment.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("appointment_id", chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentDetailResponse(*appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := parseUUID("patient_id", r.URL.Query().Get("patient_id"))
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		limit, err := queryInt(r, "limit", 20)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		offset, err := queryInt(r, "offset", 0)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		list, err := svc.ListAppointmentsByPatient(r.Context(), patientID, limit, offset)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentList(list))
	}
}

type transitionFunc func(r *http.Request, id uuid.UUID) (*domain.Appointment, error)

// transitionHandler serves the status-only lifecycle steps.
func transitionHandler(logger zerolog.Logger, fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("appointment_id", chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		appt, err := fn(r, id)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func cancelAppointment(svc *appointment.Service) transitionFunc {
	return func(r *http.Request, id uuid.UUID) (*domain.Appointment, error) {
		var req CancelRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(r, &req); err != nil {
				return nil, err
			}
		}
		return svc.Cancel(r.Context(), id, req.ReasonCode)
	}
}

func delayAppointmentHandler(svc *appointment.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("appointment_id", chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		var req DelayRequest
		if err := decodeJSON(r, &req); err != nil {
			handleError(w, r, logger, err)
			return
		}

		in := appointment.DelayInput{Minutes: req.Minutes}
		if req.NewStart != nil {
			in.NewStart = &req.NewStart.Time
		}

		appt, err := svc.DelayAppointment(r.Context(), id, in)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentDetailResponse(*appt))
	}
}

func rescheduleAppointmentHandler(svc *appointment.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("appointment_id", chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		var req RescheduleRequest
		if err := decodeJSON(r, &req); err != nil {
			handleError(w, r, logger, err)
			return
		}

		in := appointment.RescheduleInput{Start: req.Start.Time, Notes: req.Notes}
		if in.DoctorID, err = parseOptionalUUID("doctor_id", req.DoctorID); err != nil {
			handleError(w, r, logger, err)
			return
		}
		if in.RoomID, err = parseOptionalUUID("room_id", req.RoomID); err != nil {
			handleError(w, r, logger, err)
			return
		}
		if in.Participants, err = participantsFromRequest(req.Participants); err != nil {
			handleError(w, r, logger, err)
			return
		}

		res, err := svc.RescheduleAppointment(r.Context(), id, in)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, toRescheduleResponse(*res))
	}
}
