package dependency

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/domain"
)

func day(s string) time.Time {
	d, _ := time.Parse("2006-01-02", s)
	return d
}

func intPtr(v int) *int { return &v }

type mockStore struct {
	edges     []domain.ServiceDependency
	completed map[uuid.UUID]map[uuid.UUID]time.Time
	err       error
}

func newMockStore() *mockStore {
	return &mockStore{completed: make(map[uuid.UUID]map[uuid.UUID]time.Time)}
}

func (m *mockStore) ListDependencies(_ context.Context) ([]domain.ServiceDependency, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.edges, nil
}

func (m *mockStore) CompletedServiceDates(_ context.Context, patientID uuid.UUID) (map[uuid.UUID]time.Time, error) {
	return m.completed[patientID], nil
}

func (m *mockStore) CreateDependencies(_ context.Context, deps []domain.ServiceDependency) ([]domain.ServiceDependency, error) {
	m.edges = append(m.edges, deps...)
	return deps, nil
}

func (m *mockStore) complete(patientID, serviceID uuid.UUID, on time.Time) {
	if m.completed[patientID] == nil {
		m.completed[patientID] = make(map[uuid.UUID]time.Time)
	}
	m.completed[patientID][serviceID] = on
}

func TestEngine_ExclusionScenario(t *testing.T) {
	store := newMockStore()
	engine := NewEngine(store, zerolog.Nop())
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	patient := uuid.New()

	created, err := engine.AddDependency(ctx, domain.ServiceDependency{ServiceID: a, DependentServiceID: b, RuleType: domain.RuleExcludesSameDay})
	require.NoError(t, err)
	require.Len(t, created, 2, "exclusion must be stored with its mirror")
	assert.Equal(t, created[0].ServiceID, created[1].DependentServiceID)
	assert.Equal(t, created[0].DependentServiceID, created[1].ServiceID)

	err = engine.Evaluate(ctx, patient, []uuid.UUID{a, b}, day("2025-11-10"))
	assert.True(t, domain.HasCode(err, domain.CodeExcludesSameDay))

	assert.NoError(t, engine.Evaluate(ctx, patient, []uuid.UUID{a}, day("2025-11-10")))
	assert.NoError(t, engine.Evaluate(ctx, patient, []uuid.UUID{b}, day("2025-11-11")))
}

func TestGraph_ExclusionIsSymmetricWithSingleRow(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	g := NewGraph([]domain.ServiceDependency{{ServiceID: a, DependentServiceID: b, RuleType: domain.RuleExcludesSameDay}})

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		set := []uuid.UUID{a, b, c}
		rng.Shuffle(len(set), func(i, j int) { set[i], set[j] = set[j], set[i] })
		err := g.Evaluate(set, day("2025-11-10"), nil)
		assert.True(t, domain.HasCode(err, domain.CodeExcludesSameDay), "order %v", set)
	}
	assert.True(t, g.Excludes(b, a))
	assert.False(t, g.Excludes(a, c))
}

func TestEngine_PrerequisiteScenario(t *testing.T) {
	store := newMockStore()
	engine := NewEngine(store, zerolog.Nop())
	ctx := context.Background()
	c, d := uuid.New(), uuid.New()
	patient := uuid.New()

	_, err := engine.AddDependency(ctx, domain.ServiceDependency{ServiceID: c, DependentServiceID: d, RuleType: domain.RuleRequiresPrerequisite})
	require.NoError(t, err)

	err = engine.Evaluate(ctx, patient, []uuid.UUID{c}, day("2025-11-10"))
	assert.True(t, domain.HasCode(err, domain.CodePrerequisiteMissing))
	assert.ErrorIs(t, err, domain.ErrConflict)

	store.complete(patient, d, day("2025-11-01"))
	assert.NoError(t, engine.Evaluate(ctx, patient, []uuid.UUID{c}, day("2025-11-10")))
}

func TestGraph_MinDays(t *testing.T) {
	crown, rootCanal := uuid.New(), uuid.New()
	g := NewGraph([]domain.ServiceDependency{{
		ServiceID:          crown,
		DependentServiceID: rootCanal,
		RuleType:           domain.RuleRequiresMinDays,
		MinDaysApart:       intPtr(14),
	}})

	err := g.Evaluate([]uuid.UUID{crown}, day("2025-11-10"), nil)
	assert.True(t, domain.HasCode(err, domain.CodeMinDaysPrerequisiteMissing))

	completed := map[uuid.UUID]time.Time{rootCanal: day("2025-11-01")}
	err = g.Evaluate([]uuid.UUID{crown}, day("2025-11-10"), completed)
	require.True(t, domain.HasCode(err, domain.CodeMinDaysNotElapsed))
	de, _ := domain.AsError(err)
	assert.Equal(t, 9, de.Details["days_since"])

	assert.NoError(t, g.Evaluate([]uuid.UUID{crown}, day("2025-11-15"), completed))
}

func TestGraph_EvaluationOrderExclusionBeforeHistory(t *testing.T) {
	a, b, pre := uuid.New(), uuid.New(), uuid.New()
	g := NewGraph([]domain.ServiceDependency{
		{ServiceID: a, DependentServiceID: pre, RuleType: domain.RuleRequiresPrerequisite},
		{ServiceID: b, DependentServiceID: a, RuleType: domain.RuleExcludesSameDay},
	})

	err := g.Evaluate([]uuid.UUID{a, b}, day("2025-11-10"), nil)
	assert.True(t, domain.HasCode(err, domain.CodeExcludesSameDay))
}

func TestGraph_EvaluateIsIdempotent(t *testing.T) {
	a, pre := uuid.New(), uuid.New()
	g := NewGraph([]domain.ServiceDependency{{ServiceID: a, DependentServiceID: pre, RuleType: domain.RuleRequiresMinDays, MinDaysApart: intPtr(5)}})
	completed := map[uuid.UUID]time.Time{pre: day("2025-11-08")}

	first := g.Evaluate([]uuid.UUID{a}, day("2025-11-10"), completed)
	second := g.Evaluate([]uuid.UUID{a}, day("2025-11-10"), completed)
	assert.Equal(t, first, second)
}

func TestBundleSuggestionsAndUnlockedBy(t *testing.T) {
	cleaning, whitening, polish, exam, xray := uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()
	store := newMockStore()
	store.edges = []domain.ServiceDependency{
		{ServiceID: cleaning, DependentServiceID: whitening, RuleType: domain.RuleBundlesWith},
		{ServiceID: whitening, DependentServiceID: cleaning, RuleType: domain.RuleBundlesWith},
		{ServiceID: polish, DependentServiceID: cleaning, RuleType: domain.RuleBundlesWith},
		{ServiceID: cleaning, DependentServiceID: exam, RuleType: domain.RuleRequiresPrerequisite},
		{ServiceID: xray, DependentServiceID: exam, RuleType: domain.RuleRequiresMinDays, MinDaysApart: intPtr(1)},
	}
	engine := NewEngine(store, zerolog.Nop())
	ctx := context.Background()

	assert.ElementsMatch(t, []uuid.UUID{whitening, polish}, engine.BundleSuggestions(ctx, cleaning))

	unlocked, err := engine.UnlockedBy(ctx, exam)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{cleaning, xray}, unlocked)

	before := len(store.edges)
	_, _ = engine.UnlockedBy(ctx, exam)
	assert.Len(t, store.edges, before)
}

func TestBundleSuggestions_NeverFails(t *testing.T) {
	store := newMockStore()
	store.err = errors.New("db down")
	engine := NewEngine(store, zerolog.Nop())

	assert.Empty(t, engine.BundleSuggestions(context.Background(), uuid.New()))
}

func TestAddDependency_RejectsInvalidEdges(t *testing.T) {
	engine := NewEngine(newMockStore(), zerolog.Nop())

	_, err := engine.AddDependency(context.Background(), domain.ServiceDependency{
		ServiceID:          uuid.New(),
		DependentServiceID: uuid.New(),
		RuleType:           domain.RuleRequiresMinDays,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
