package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/dependency"
	"github.com/hackgods/clinic-scheduling/internal/domain"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Resolver     *availability.Resolver
	Rules        *dependency.Engine
	Health       *HealthHandler
	Logger       zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	logger := cfg.Logger

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	r.Route("/availability", func(r chi.Router) {
		r.Get("/doctors", resolveDoctorsHandler(cfg.Resolver, logger))
		r.Get("/slots", resolveSlotsHandler(cfg.Resolver, logger))
		r.Get("/resources", resolveResourcesHandler(cfg.Resolver, logger))
	})

	svc := cfg.Appointments
	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(svc, logger))
		r.Get("/", listAppointmentsHandler(svc, logger))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getAppointmentHandler(svc, logger))
			r.Post("/check-in", transitionHandler(logger, func(r *http.Request, id uuid.UUID) (*domain.Appointment, error) {
				return svc.CheckIn(r.Context(), id)
			}))
			r.Post("/start", transitionHandler(logger, func(r *http.Request, id uuid.UUID) (*domain.Appointment, error) {
				return svc.StartTreatment(r.Context(), id)
			}))
			r.Post("/complete", transitionHandler(logger, func(r *http.Request, id uuid.UUID) (*domain.Appointment, error) {
				return svc.Complete(r.Context(), id)
			}))
			r.Post("/cancel", transitionHandler(logger, cancelAppointment(svc)))
			r.Post("/delay", delayAppointmentHandler(svc, logger))
			r.Post("/reschedule", rescheduleAppointmentHandler(svc, logger))
		})
	})

	r.Get("/services/{id}/bundle-suggestions", bundleSuggestionsHandler(cfg.Rules, logger))
	r.Get("/services/{id}/unlocked-by", unlockedByHandler(cfg.Rules, logger))

	r.Get("/service-dependencies", listDependenciesHandler(cfg.Rules, logger))
	r.Post("/service-dependencies", createDependencyHandler(cfg.Rules, logger))

	return r
}
