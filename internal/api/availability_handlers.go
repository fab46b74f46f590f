package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/interval"
)

func resolveDoctorsHandler(resolver *availability.Resolver, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		date, err := parseDate(q.Get("date"))
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		res, err := resolver.ResolveDoctors(r.Context(), date, parseCodes(q.Get("service_codes")))
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

func resolveSlotsHandler(resolver *availability.Resolver, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		date, err := parseDate(q.Get("date"))
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		doctorID, err := parseUUID("doctor_id", q.Get("doctor_id"))
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		minutes, err := queryInt(r, "duration_minutes", 0)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		res, err := resolver.ResolveSlots(r.Context(), date, doctorID, minutes)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotsResponse(*res))
	}
}

func resolveResourcesHandler(resolver *availability.Resolver, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		start, err := ParseClinicTime(q.Get("start"))
		if err != nil {
			handleError(w, r, logger, domain.InvalidInput("invalid_start", "%v", err))
			return
		}
		end, err := ParseClinicTime(q.Get("end"))
		if err != nil {
			handleError(w, r, logger, domain.InvalidInput("invalid_end", "%v", err))
			return
		}

		res, err := resolver.ResolveResources(r.Context(), interval.Interval{Start: start, End: end}, parseCodes(q.Get("service_codes")))
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}
