package dependency

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/domain"
	"github.com/hackgods/clinic-scheduling/internal/interval"
)

type pair struct {
	a, b uuid.UUID
}

func unordered(x, y uuid.UUID) pair {
	if x.String() < y.String() {
		return pair{a: x, b: y}
	}
	return pair{a: y, b: x}
}

// Graph is an immutable view over the dependency edges. Exclusions are kept
// as one undirected set, so a missing mirror row cannot make the check
// order-dependent.
type Graph struct {
	outgoing   map[uuid.UUID][]domain.ServiceDependency
	incoming   map[uuid.UUID][]domain.ServiceDependency
	exclusions map[pair]domain.ServiceDependency
	bundles    map[uuid.UUID]map[uuid.UUID]struct{}
}

func NewGraph(edges []domain.ServiceDependency) *Graph {
	g := &Graph{
		outgoing:   make(map[uuid.UUID][]domain.ServiceDependency),
		incoming:   make(map[uuid.UUID][]domain.ServiceDependency),
		exclusions: make(map[pair]domain.ServiceDependency),
		bundles:    make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
	for _, e := range edges {
		switch e.RuleType {
		case domain.RuleExcludesSameDay:
			key := unordered(e.ServiceID, e.DependentServiceID)
			if _, ok := g.exclusions[key]; !ok {
				g.exclusions[key] = e
			}
		case domain.RuleBundlesWith:
			g.link(e.ServiceID, e.DependentServiceID)
			g.link(e.DependentServiceID, e.ServiceID)
		case domain.RuleRequiresPrerequisite, domain.RuleRequiresMinDays:
			g.outgoing[e.ServiceID] = append(g.outgoing[e.ServiceID], e)
			g.incoming[e.DependentServiceID] = append(g.incoming[e.DependentServiceID], e)
		}
	}
	return g
}

func (g *Graph) link(from, to uuid.UUID) {
	if from == to {
		return
	}
	set, ok := g.bundles[from]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		g.bundles[from] = set
	}
	set[to] = struct{}{}
}

// Excludes reports whether a and b may not be booked together.
func (g *Graph) Excludes(a, b uuid.UUID) bool {
	_, ok := g.exclusions[unordered(a, b)]
	return ok
}

// Evaluate checks the requested set against the patient's completed
// services (service ID -> most recent completion date). Order: exclusion,
// prerequisite, minimum days.
func (g *Graph) Evaluate(requested []uuid.UUID, proposed time.Time, completed map[uuid.UUID]time.Time) error {
	for i := 0; i < len(requested); i++ {
		for j := i + 1; j < len(requested); j++ {
			if requested[i] == requested[j] || !g.Excludes(requested[i], requested[j]) {
				continue
			}
			return domain.Conflict(domain.CodeExcludesSameDay, "services cannot be performed on the same day").
				With("service_id", requested[i].String()).
				With("excluded_service_id", requested[j].String())
		}
	}

	for _, svc := range requested {
		for _, e := range g.outgoing[svc] {
			if e.RuleType != domain.RuleRequiresPrerequisite {
				continue
			}
			if _, ok := completed[e.DependentServiceID]; !ok {
				return domain.Conflict(domain.CodePrerequisiteMissing, "prerequisite service has not been completed").
					With("service_id", svc.String()).
					With("dependent_service_id", e.DependentServiceID.String())
			}
		}
	}

	for _, svc := range requested {
		for _, e := range g.outgoing[svc] {
			if e.RuleType != domain.RuleRequiresMinDays {
				continue
			}
			need := domain.PositiveOrZero(e.MinDaysApart)
			done, ok := completed[e.DependentServiceID]
			if !ok {
				return domain.Conflict(domain.CodeMinDaysPrerequisiteMissing,
					"service requires a completed prerequisite at least %d days earlier", need).
					With("service_id", svc.String()).
					With("dependent_service_id", e.DependentServiceID.String()).
					With("days_required", need)
			}
			since := interval.DaysBetween(done, proposed)
			if since < need {
				return domain.Conflict(domain.CodeMinDaysNotElapsed,
					"only %d of %d required days have passed since the prerequisite", since, need).
					With("service_id", svc.String()).
					With("dependent_service_id", e.DependentServiceID.String()).
					With("completed_on", done.Format("2006-01-02")).
					With("proposed_date", proposed.Format("2006-01-02")).
					With("days_since", since).
					With("days_required", need)
			}
		}
	}

	return nil
}

// BundleSuggestions returns services linked to id by BUNDLES_WITH in either
// direction, deduplicated and sorted. It never fails.
func (g *Graph) BundleSuggestions(id uuid.UUID) []uuid.UUID {
	return sortedKeys(g.bundles[id])
}

// UnlockedBy returns services whose prerequisite or min-days requirement is
// satisfied by completing id.
func (g *Graph) UnlockedBy(id uuid.UUID) []uuid.UUID {
	set := make(map[uuid.UUID]struct{})
	for _, e := range g.incoming[id] {
		set[e.ServiceID] = struct{}{}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}
