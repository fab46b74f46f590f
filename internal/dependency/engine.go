package dependency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/domain"
)

type Store interface {
	ListDependencies(ctx context.Context) ([]domain.ServiceDependency, error)
	// CompletedServiceDates maps each service the patient has completed to
	// its most recent completion date.
	CompletedServiceDates(ctx context.Context, patientID uuid.UUID) (map[uuid.UUID]time.Time, error)
	// CreateDependencies persists all edges atomically.
	CreateDependencies(ctx context.Context, deps []domain.ServiceDependency) ([]domain.ServiceDependency, error)
}

type Engine struct {
	store  Store
	logger zerolog.Logger
}

func NewEngine(store Store, logger zerolog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger.With().Str("component", "dependency").Logger(),
	}
}

func (e *Engine) graph(ctx context.Context) (*Graph, error) {
	edges, err := e.store.ListDependencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list service dependencies: %w", err)
	}
	return NewGraph(edges), nil
}

// Evaluate runs the clinical dependency rules once for the whole requested
// set against the patient's completed-service history.
func (e *Engine) Evaluate(ctx context.Context, patientID uuid.UUID, serviceIDs []uuid.UUID, proposed time.Time) error {
	g, err := e.graph(ctx)
	if err != nil {
		return err
	}
	completed, err := e.store.CompletedServiceDates(ctx, patientID)
	if err != nil {
		return fmt.Errorf("load completed services: %w", err)
	}
	return g.Evaluate(serviceIDs, proposed, completed)
}

// BundleSuggestions is a UI hint and never fails; store errors yield an
// empty list.
func (e *Engine) BundleSuggestions(ctx context.Context, serviceID uuid.UUID) []uuid.UUID {
	g, err := e.graph(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Str("service_id", serviceID.String()).Msg("bundle suggestions unavailable")
		return []uuid.UUID{}
	}
	return g.BundleSuggestions(serviceID)
}

// UnlockedBy lists services made bookable by completing serviceID. Used by
// treatment-plan item activation; it does not mutate anything.
func (e *Engine) UnlockedBy(ctx context.Context, serviceID uuid.UUID) ([]uuid.UUID, error) {
	g, err := e.graph(ctx)
	if err != nil {
		return nil, err
	}
	return g.UnlockedBy(serviceID), nil
}

// AddDependency validates and stores an edge. An EXCLUDES_SAME_DAY edge is
// always written together with its mirror.
func (e *Engine) AddDependency(ctx context.Context, dep domain.ServiceDependency) ([]domain.ServiceDependency, error) {
	if err := dep.Validate(); err != nil {
		return nil, err
	}
	if dep.ID == uuid.Nil {
		dep.ID = uuid.New()
	}
	rows := []domain.ServiceDependency{dep}
	if dep.RuleType == domain.RuleExcludesSameDay {
		mirror := dep.Mirror()
		mirror.ID = uuid.New()
		rows = append(rows, mirror)
	}

	created, err := e.store.CreateDependencies(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("create service dependency: %w", err)
	}

	e.logger.Info().
		Str("service_id", dep.ServiceID.String()).
		Str("dependent_service_id", dep.DependentServiceID.String()).
		Str("rule_type", string(dep.RuleType)).
		Int("rows", len(created)).
		Msg("service dependency created")

	return created, nil
}

func (e *Engine) ListDependencies(ctx context.Context) ([]domain.ServiceDependency, error) {
	return e.store.ListDependencies(ctx)
}
