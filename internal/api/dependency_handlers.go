package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/dependency"
	"github.com/hackgods/clinic-scheduling/internal/domain"
)

func bundleSuggestionsHandler(rules *dependency.Engine, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("service_id", chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		// advisory only, never an error
		ids := rules.BundleSuggestions(r.Context(), id)
		if ids == nil {
			ids = []uuid.UUID{}
		}
		writeJSON(w, http.StatusOK, ServiceLinksResponse{ServiceID: id, Services: ids})
	}
}

func unlockedByHandler(rules *dependency.Engine, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("service_id", chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		ids, err := rules.UnlockedBy(r.Context(), id)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		if ids == nil {
			ids = []uuid.UUID{}
		}
		writeJSON(w, http.StatusOK, ServiceLinksResponse{ServiceID: id, Services: ids})
	}
}

func listDependenciesHandler(rules *dependency.Engine, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps, err := rules.ListDependencies(r.Context())
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		if deps == nil {
			deps = []domain.ServiceDependency{}
		}
		writeJSON(w, http.StatusOK, deps)
	}
}

func createDependencyHandler(rules *dependency.Engine, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateDependencyRequest
		if err := decodeJSON(r, &req); err != nil {
			handleError(w, r, logger, err)
			return
		}

		serviceID, err := parseUUID("service_id", req.ServiceID)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}
		dependentID, err := parseUUID("dependent_service_id", req.DependentServiceID)
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		created, err := rules.AddDependency(r.Context(), domain.ServiceDependency{
			ServiceID:          serviceID,
			DependentServiceID: dependentID,
			RuleType:           domain.RuleType(req.RuleType),
			MinDaysApart:       req.MinDaysApart,
			Note:               req.Note,
		})
		if err != nil {
			handleError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, created)
	}
}
