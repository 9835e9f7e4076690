package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andresuchdata/autopo-dp/backend-go/internal/config"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/repository"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/solver"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]domain.SolveResult
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]domain.SolveResult)}
}

func (c *memoryCache) Get(_ context.Context, hash string) (*domain.SolveResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[hash]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (c *memoryCache) Set(_ context.Context, hash string, r *domain.SolveResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[hash] = *r
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, hash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, hash)
	return nil
}

func (c *memoryCache) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]domain.SolveResult)
	return nil
}

type memoryRuns struct {
	mu   sync.Mutex
	runs []domain.SolveResult
}

func (r *memoryRuns) SaveRun(_ context.Context, result *domain.SolveResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, *result)
	return nil
}

func (r *memoryRuns) GetRun(_ context.Context, id string) (*domain.RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.RunID == id {
			return &domain.RunSummary{ID: run.RunID, RootValue: run.Value, ExportKey: run.ExportKey}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", repository.ErrRunNotFound, id)
}

func (r *memoryRuns) ListRuns(_ context.Context, _ domain.RunFilter) ([]domain.RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.RunSummary, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, domain.RunSummary{ID: run.RunID, RootValue: run.Value})
	}
	return out, nil
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryStore) ListObjects(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ObjectInfo
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (m *memoryStore) UploadObject(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryStore) DownloadObject(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

func scenario(name string, inventory int) *domain.Scenario {
	return &domain.Scenario{
		Name:             name,
		Mode:             "standard",
		Steps:            []int{2, 2},
		Replenishments:   []int{3},
		InitialInventory: inventory,
		Arrivals:         domain.Arrivals{None: 0.2, Premium: 0.4, Base: 0.4},
		Premium:          domain.DistributionSource{Pairs: [][]float64{{0, 0.5}, {2, 0.5}}},
		Base:             domain.DistributionSource{Pairs: [][]float64{{0, 0.5}, {2, 0.5}}},
		Costs:            domain.Costs{Holding: 1, PremiumShortage: 8, BaseBacklog: 1.5, EndShortage: 4, Salvage: 0.5},
	}
}

func directValue(t *testing.T, inventory int) float64 {
	t.Helper()
	s, err := solver.New(solver.Params{
		Steps:            []int{2, 2},
		Replenishments:   []int{3},
		InitialInventory: inventory,
		Arrivals:         solver.Arrivals{None: 0.2, Premium: 0.4, Base: 0.4},
		Premium:          solver.Distribution{{Value: 0, Prob: 0.5}, {Value: 2, Prob: 0.5}},
		Base:             solver.Distribution{{Value: 0, Prob: 0.5}, {Value: 2, Prob: 0.5}},
		Costs:            solver.Costs{Holding: 1, PremiumShortage: 8, BaseBacklog: 1.5, EndShortage: 4, Salvage: 0.5},
		Mode:             solver.ModeStandard,
	})
	require.NoError(t, err)
	v, err := s.Solve()
	require.NoError(t, err)
	return v
}

func newTestService(opts Options) (*SolverService, *memoryCache) {
	c := newMemoryCache()
	svc := NewSolverService(c, opts)
	ids := 0
	svc.newID = func() string {
		ids++
		return fmt.Sprintf("run-%d", ids)
	}
	svc.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return svc, c
}

func TestSolve_MatchesSolverAndCaches(t *testing.T) {
	runs := &memoryRuns{}
	svc, _ := newTestService(Options{Runs: runs})
	ctx := context.Background()

	first, err := svc.Solve(ctx, scenario("base", 5))
	require.NoError(t, err)
	assert.Equal(t, directValue(t, 5), first.Value)
	assert.False(t, first.Cached)
	assert.Equal(t, "run-1", first.RunID)
	assert.Equal(t, "standard", first.Mode)
	assert.Empty(t, first.Policy)
	assert.Positive(t, first.Stats.States)
	require.Len(t, runs.runs, 1)

	second, err := svc.Solve(ctx, scenario("base", 5))
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Value, second.Value)
	assert.Len(t, runs.runs, 1, "cached results are not persisted again")

	got, err := svc.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, first.Value, got.RootValue)
}

func TestSolve_ExportsPolicyAndValues(t *testing.T) {
	store := &memoryStore{objects: make(map[string][]byte)}
	svc, _ := newTestService(Options{Storage: store, ExportPrefix: "policies"})

	sc := scenario("export", 5)
	sc.IncludePolicy = true
	result, err := svc.Solve(context.Background(), sc)
	require.NoError(t, err)

	assert.Equal(t, "policies/run-1/policy.csv", result.ExportKey)
	assert.NotEmpty(t, result.Policy)

	policy, err := store.DownloadObject(context.Background(), "policies/run-1/policy.csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(policy), "period,step,inventory,backlog,value,premium,base,prob,fulfill\n"))

	objects, err := store.ListObjects(context.Background(), "policies/run-1/")
	require.NoError(t, err)
	assert.Len(t, objects, 2)
}

func TestSolve_Rejections(t *testing.T) {
	ctx := context.Background()

	svc, _ := newTestService(Options{MaxCells: 10})
	_, err := svc.Solve(ctx, scenario("big", 5))
	assert.ErrorIs(t, err, ErrScenarioTooLarge)

	svc, _ = newTestService(Options{})
	bad := scenario("bad", 5)
	bad.Mode = "greedy"
	_, err = svc.Solve(ctx, bad)
	assert.ErrorIs(t, err, solver.ErrInvalidMode)
	assert.True(t, solver.IsConfigError(err))

	fromFile := scenario("file", 5)
	fromFile.Base = domain.DistributionSource{File: "/tmp/base.csv"}
	_, err = svc.Solve(ctx, fromFile)
	assert.ErrorIs(t, err, config.ErrFileSourceNotAllowed)

	_, err = svc.ListRuns(ctx, domain.RunFilter{})
	assert.ErrorIs(t, err, ErrPersistenceDisabled)
}

func TestSolveBatch_KeepsOrder(t *testing.T) {
	svc, _ := newTestService(Options{BatchWorkers: 3})
	svc.newID = func() string { return "batch" }

	var scenarios []*domain.Scenario
	for n := 4; n <= 8; n++ {
		scenarios = append(scenarios, scenario(fmt.Sprintf("n=%d", n), n))
	}

	results, err := svc.SolveBatch(context.Background(), scenarios)
	require.NoError(t, err)
	require.Len(t, results, len(scenarios))
	for i, r := range results {
		assert.Equal(t, scenarios[i].Name, r.ScenarioName)
		assert.Equal(t, directValue(t, 4+i), r.Value)
	}
}

func TestSolveBatch_FailsOnBadScenario(t *testing.T) {
	svc, _ := newTestService(Options{BatchWorkers: 2})
	svc.newID = func() string { return "batch" }

	bad := scenario("bad", 5)
	bad.Replenishments = nil

	_, err := svc.SolveBatch(context.Background(), []*domain.Scenario{scenario("ok", 5), bad})
	assert.ErrorIs(t, err, solver.ErrHorizonMismatch)
	assert.ErrorContains(t, err, "scenario 1 (bad)")
}

func TestSolve_OverflowingScenarioIsConfigError(t *testing.T) {
	svc, _ := newTestService(Options{MaxCells: 4_000_000})

	sc := scenario("overflow", 0)
	sc.Steps = []int{1 << 31}
	sc.Replenishments = []int{}
	sc.Premium = domain.DistributionSource{Pairs: [][]float64{{math.MaxInt32, 1}}}
	sc.Base = domain.DistributionSource{Pairs: [][]float64{{math.MaxInt32, 1}}}

	assert.NotPanics(t, func() {
		_, err := svc.Solve(context.Background(), sc)
		assert.ErrorIs(t, err, solver.ErrInvalidHorizon)
		assert.True(t, solver.IsConfigError(err))
	})

	sc.Premium = domain.DistributionSource{Pairs: [][]float64{{1 << 31, 1}}}
	_, err := svc.Solve(context.Background(), sc)
	assert.ErrorIs(t, err, solver.ErrInvalidDistribution)
}

func TestRunPolicyAndExports(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{objects: make(map[string][]byte)}
	runs := &memoryRuns{}
	svc, _ := newTestService(Options{Runs: runs, Storage: store, ExportPrefix: "policies"})

	result, err := svc.Solve(ctx, scenario("exported", 5))
	require.NoError(t, err)

	policy, err := svc.RunPolicy(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.objects["policies/run-1/policy.csv"], policy)

	exports, err := svc.RunExports(ctx, result.RunID)
	require.NoError(t, err)
	keys := make([]string, 0, len(exports))
	for _, o := range exports {
		keys = append(keys, o.Key)
		assert.Positive(t, o.Size)
	}
	assert.ElementsMatch(t, []string{"policies/run-1/policy.csv", "policies/run-1/values.csv"}, keys)

	_, err = svc.RunPolicy(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrRunNotFound)

	_, err = svc.RunExports(ctx, "missing")
	assert.ErrorIs(t, err, ErrExportNotFound)
}

func TestRunPolicy_Unavailable(t *testing.T) {
	ctx := context.Background()

	svc, _ := newTestService(Options{Runs: &memoryRuns{}})
	_, err := svc.RunPolicy(ctx, "run-1")
	assert.ErrorIs(t, err, ErrExportsDisabled)
	_, err = svc.RunExports(ctx, "run-1")
	assert.ErrorIs(t, err, ErrExportsDisabled)

	svc, _ = newTestService(Options{Storage: &memoryStore{objects: make(map[string][]byte)}})
	_, err = svc.RunPolicy(ctx, "run-1")
	assert.ErrorIs(t, err, ErrPersistenceDisabled)

	runs := &memoryRuns{runs: []domain.SolveResult{{RunID: "bare"}}}
	svc, _ = newTestService(Options{Runs: runs, Storage: &memoryStore{objects: make(map[string][]byte)}})
	_, err = svc.RunPolicy(ctx, "bare")
	assert.ErrorIs(t, err, ErrExportNotFound)
}

func TestFlushCache(t *testing.T) {
	ctx := context.Background()
	svc, c := newTestService(Options{})

	first, err := svc.Solve(ctx, scenario("a", 4))
	require.NoError(t, err)
	_, err = svc.Solve(ctx, scenario("b", 6))
	require.NoError(t, err)
	require.Len(t, c.entries, 2)

	require.NoError(t, svc.FlushCache(ctx, first.ScenarioHash))
	assert.Len(t, c.entries, 1)
	assert.NotContains(t, c.entries, first.ScenarioHash)

	again, err := svc.Solve(ctx, scenario("a", 4))
	require.NoError(t, err)
	assert.False(t, again.Cached)

	require.NoError(t, svc.FlushCache(ctx, ""))
	assert.Empty(t, c.entries)
}
