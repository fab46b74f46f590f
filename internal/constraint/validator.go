package constraint

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/interval"
)

// Facts is the history snapshot source for day-based rules.
type Facts interface {
	IsHoliday(ctx context.Context, date time.Time) (bool, error)
	// CountServiceBookings counts non-cancelled appointments on date that
	// include the service, skipping exclude.
	CountServiceBookings(ctx context.Context, serviceID uuid.UUID, date time.Time, exclude uuid.UUID) (int, error)
	// ListCompletedVisits returns at most limit completed appointments of
	// the patient, most recent first.
	ListCompletedVisits(ctx context.Context, patientID uuid.UUID, limit int) ([]domain.CompletedVisit, error)
}

// Input is everything Check needs for one (date, service, patient) tuple.
type Input struct {
	Date          time.Time
	Service       domain.DentalService
	IsHoliday     bool
	BookedThatDay int
	History       []domain.CompletedVisit
}

// Check evaluates holiday, daily cap, preparation, recovery and spacing in
// that order and returns the first violation. It is a pure function of in.
func Check(in Input) error {
	svc := in.Service
	dateStr := in.Date.Format("2006-01-02")

	if in.IsHoliday {
		return domain.Conflict(domain.CodeHoliday, "%s is a clinic holiday", dateStr).
			With("date", dateStr).
			With("service_code", svc.Code)
	}

	if limit := domain.PositiveOrZero(svc.MaxAppointmentsPerDay); limit > 0 && in.BookedThatDay >= limit {
		return domain.Conflict(domain.CodeDailyCapReached,
			"service %s already has %d of %d appointments on %s", svc.Code, in.BookedThatDay, limit, dateStr).
			With("service_code", svc.Code).
			With("date", dateStr).
			With("booked", in.BookedThatDay).
			With("max_per_day", limit)
	}

	lastAny, lastSame, ok := lastCompleted(in.History, svc.ID)
	if !ok {
		return nil
	}

	// Preparation and recovery share the most recent completed visit of any
	// service as their baseline.
	sinceAny := interval.DaysBetween(lastAny, in.Date)
	if need := domain.PositiveOrZero(svc.MinimumPreparationDays); need > 0 && sinceAny < need {
		return dayGapViolation(domain.CodePreparationDays, "preparation", svc, lastAny, in.Date, sinceAny, need)
	}
	if need := domain.PositiveOrZero(svc.RecoveryDays); need > 0 && sinceAny < need {
		return dayGapViolation(domain.CodeRecoveryDays, "recovery", svc, lastAny, in.Date, sinceAny, need)
	}

	if need := domain.PositiveOrZero(svc.SpacingDays); need > 0 && !lastSame.IsZero() {
		sinceSame := interval.DaysBetween(lastSame, in.Date)
		if sinceSame < need {
			return dayGapViolation(domain.CodeSpacingDays, "spacing", svc, lastSame, in.Date, sinceSame, need)
		}
	}

	return nil
}

func dayGapViolation(code, label string, svc domain.DentalService, last, proposed time.Time, since, need int) error {
	return domain.Conflict(code, "service %s needs %d %s days, only %d since %s",
		svc.Code, need, label, since, last.Format("2006-01-02")).
		With("service_code", svc.Code).
		With("last_completed", last.Format("2006-01-02")).
		With("proposed_date", proposed.Format("2006-01-02")).
		With("days_since", since).
		With("days_required", need)
}

// lastCompleted returns the most recent completed visit date overall and for
// serviceID (zero if none). ok is false when history is empty.
func lastCompleted(history []domain.CompletedVisit, serviceID uuid.UUID) (lastAny, lastSame time.Time, ok bool) {
	for _, v := range history {
		if v.Date.After(lastAny) {
			lastAny = v.Date
		}
		for _, id := range v.ServiceIDs {
			if id == serviceID && v.Date.After(lastSame) {
				lastSame = v.Date
			}
		}
	}
	return lastAny, lastSame, !lastAny.IsZero()
}

type Validator struct {
	facts        Facts
	historyLimit int
	logger       zerolog.Logger
}

func NewValidator(facts Facts, historyLimit int, logger zerolog.Logger) *Validator {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &Validator{
		facts:        facts,
		historyLimit: historyLimit,
		logger:       logger.With().Str("component", "constraint").Logger(),
	}
}

// ValidateAll runs Check for every service on date. Per-service checks run
// in parallel; the violation reported is the first one in services order.
// exclude is skipped when counting daily bookings (reschedule, delay).
func (v *Validator) ValidateAll(ctx context.Context, patientID uuid.UUID, date time.Time, services []domain.DentalService, exclude uuid.UUID) error {
	if len(services) == 0 {
		return nil
	}
	day := interval.DateOf(date)

	holiday, err := v.facts.IsHoliday(ctx, day)
	if err != nil {
		return fmt.Errorf("load holiday calendar: %w", err)
	}
	if holiday {
		return Check(Input{Date: day, Service: services[0], IsHoliday: true})
	}

	history, err := v.facts.ListCompletedVisits(ctx, patientID, v.historyLimit)
	if err != nil {
		return fmt.Errorf("load completed history: %w", err)
	}

	verdicts := make([]error, len(services))
	g, gctx := errgroup.WithContext(ctx)
	for i, svc := range services {
		g.Go(func() error {
			booked := 0
			if domain.PositiveOrZero(svc.MaxAppointmentsPerDay) > 0 {
				n, err := v.facts.CountServiceBookings(gctx, svc.ID, day, exclude)
				if err != nil {
					return fmt.Errorf("count bookings for %s: %w", svc.Code, err)
				}
				booked = n
			}
			verdicts[i] = Check(Input{
				Date:          day,
				Service:       svc,
				BookedThatDay: booked,
				History:       history,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, verdict := range verdicts {
		if verdict != nil {
			v.logger.Debug().
				Str("patient_id", patientID.String()).
				Str("service_code", services[i].Code).
				Err(verdict).
				Msg("constraint rejected")
			return verdict
		}
	}
	return nil
}
