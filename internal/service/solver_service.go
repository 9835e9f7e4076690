package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/andresuchdata/autopo-dp/backend-go/internal/cache"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/config"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/repository"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/solver"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrScenarioTooLarge    = errors.New("scenario state space exceeds the configured limit")
	ErrPersistenceDisabled = errors.New("run persistence is not configured")
	ErrExportsDisabled     = errors.New("object storage is not configured")
	ErrExportNotFound      = errors.New("run has no policy export")
)

// Options wires the optional collaborators of a SolverService.
type Options struct {
	Runs             repository.RunRepository
	Storage          storage.ObjectStorage
	ExportPrefix     string
	BatchWorkers     int
	MaxCells         int
	AllowFileSources bool
}

type SolverService struct {
	cache cache.ResultCache
	runs  repository.RunRepository
	store storage.ObjectStorage
	opts  Options
	now   func() time.Time
	newID func() string
}

func NewSolverService(cacheImpl cache.ResultCache, opts Options) *SolverService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopResultCache()
	}
	if opts.BatchWorkers < 1 {
		opts.BatchWorkers = 1
	}
	return &SolverService{
		cache: cacheImpl,
		runs:  opts.Runs,
		store: opts.Storage,
		opts:  opts,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Solve evaluates one scenario from its root state. Identical scenarios are
// served from the result cache.
func (s *SolverService) Solve(ctx context.Context, sc *domain.Scenario) (*domain.SolveResult, error) {
	params, err := config.BuildParams(sc, s.opts.AllowFileSources)
	if err != nil {
		return nil, err
	}

	hash, err := cache.ScenarioHash(params, sc.IncludePolicy)
	if err != nil {
		return nil, err
	}

	if cached, ok, err := s.cache.Get(ctx, hash); err == nil && ok {
		cached.Cached = true
		return cached, nil
	} else if err != nil {
		log.Warn().Err(err).Str("hash", hash).Msg("solver: cache get failed")
	}

	bounds, err := solver.Plan(params)
	if err != nil {
		return nil, err
	}
	if s.opts.MaxCells > 0 && bounds.Size() > s.opts.MaxCells {
		return nil, fmt.Errorf("%w: %d cells > %d", ErrScenarioTooLarge, bounds.Size(), s.opts.MaxCells)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := s.now()
	dp, err := solver.New(params)
	if err != nil {
		return nil, err
	}
	value, err := dp.Solve()
	if err != nil {
		return nil, fmt.Errorf("solve %s: %w", sc.Name, err)
	}
	elapsed := s.now().Sub(start)

	result := &domain.SolveResult{
		RunID:        s.newID(),
		ScenarioName: sc.Name,
		ScenarioHash: hash,
		Mode:         string(dp.Mode()),
		Value:        value,
		Bounds:       dp.Bounds(),
		Stats:        dp.Stats(),
		DurationMs:   elapsed.Milliseconds(),
		CreatedAt:    start.UTC(),
	}
	if sc.IncludePolicy {
		result.Policy = dp.Policy()
	}

	log.Info().
		Str("scenario", sc.Name).
		Str("hash", hash).
		Str("mode", result.Mode).
		Float64("value", value).
		Int("states", result.Stats.States).
		Int("decisions", result.Stats.Decisions).
		Dur("duration", elapsed).
		Msg("solver: scenario solved")

	if s.store != nil {
		key, err := s.export(ctx, result.RunID, dp)
		if err != nil {
			return nil, err
		}
		result.ExportKey = key
	}

	if s.runs != nil {
		if err := s.runs.SaveRun(ctx, result); err != nil {
			return nil, fmt.Errorf("persist run %s: %w", result.RunID, err)
		}
	}

	if err := s.cache.Set(ctx, hash, result); err != nil {
		log.Warn().Err(err).Str("hash", hash).Msg("solver: cache set failed")
	}

	return result, nil
}

// SolveBatch solves independent scenarios concurrently. Every scenario owns its
// own solver and memo tables. Results keep the input order.
func (s *SolverService) SolveBatch(ctx context.Context, scenarios []*domain.Scenario) ([]*domain.SolveResult, error) {
	results := make([]*domain.SolveResult, len(scenarios))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BatchWorkers)
	for i, sc := range scenarios {
		g.Go(func() error {
			r, err := s.Solve(gctx, sc)
			if err != nil {
				return fmt.Errorf("scenario %d (%s): %w", i, sc.Name, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// export uploads the policy and the value table and returns the policy key.
func (s *SolverService) export(ctx context.Context, runID string, dp *solver.Solver) (string, error) {
	policy, err := storage.PolicyCSV(dp.Policy())
	if err != nil {
		return "", fmt.Errorf("render policy: %w", err)
	}
	values, err := storage.ValueTableCSV(dp.ValueTable())
	if err != nil {
		return "", fmt.Errorf("render value table: %w", err)
	}

	policyKey := path.Join(s.opts.ExportPrefix, runID, "policy.csv")
	if err := s.store.UploadObject(ctx, policyKey, policy, "text/csv"); err != nil {
		return "", err
	}
	if err := s.store.UploadObject(ctx, path.Join(s.opts.ExportPrefix, runID, "values.csv"), values, "text/csv"); err != nil {
		return "", err
	}
	return policyKey, nil
}

func (s *SolverService) GetRun(ctx context.Context, id string) (*domain.RunSummary, error) {
	if s.runs == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.runs.GetRun(ctx, id)
}

func (s *SolverService) ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.RunSummary, error) {
	if s.runs == nil {
		return nil, ErrPersistenceDisabled
	}
	return s.runs.ListRuns(ctx, filter)
}

// RunPolicy downloads the policy CSV exported for a persisted run.
func (s *SolverService) RunPolicy(ctx context.Context, id string) ([]byte, error) {
	if s.store == nil {
		return nil, ErrExportsDisabled
	}
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.ExportKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrExportNotFound, id)
	}
	return s.store.DownloadObject(ctx, run.ExportKey)
}

// RunExports lists every object exported under a run ID.
func (s *SolverService) RunExports(ctx context.Context, id string) ([]storage.ObjectInfo, error) {
	if s.store == nil {
		return nil, ErrExportsDisabled
	}
	objects, err := s.store.ListObjects(ctx, path.Join(s.opts.ExportPrefix, id)+"/")
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrExportNotFound, id)
	}
	return objects, nil
}

// FlushCache drops one cached result, or all of them when hash is empty.
func (s *SolverService) FlushCache(ctx context.Context, hash string) error {
	if hash == "" {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			return fmt.Errorf("flush result cache: %w", err)
		}
		log.Info().Msg("solver: result cache flushed")
		return nil
	}
	if err := s.cache.Invalidate(ctx, hash); err != nil {
		return fmt.Errorf("invalidate %s: %w", hash, err)
	}
	log.Info().Str("hash", hash).Msg("solver: cached result invalidated")
	return nil
}
