package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/andresuchdata/autopo-dp/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/solver"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioYAML = `
name: two-period
mode: standard
steps: [2, 2]
replenishments: [3]
initial_inventory: 5
arrivals:
  pi_0: 0.2
  pi_p: 0.4
  pi_b: 0.4
premium:
  pairs: [[0, 0.5], [2, 0.5]]
base:
  file: base.csv
costs:
  h: 1
  c_p: 8
  c_b: 1.5
  s_p: 4
  salvage: 0.5
`

func TestLoadScenario_YAMLWithFileSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.csv"), []byte("value,proba\n0,0.5\n2,0.5\n"), 0o644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML), 0o644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "two-period", sc.Name)
	assert.Equal(t, []int{2, 2}, sc.Steps)
	assert.Equal(t, filepath.Join(dir, "base.csv"), sc.Base.File)
	assert.Nil(t, sc.Joint)

	p, err := BuildParams(sc, true)
	require.NoError(t, err)
	assert.Equal(t, solver.ModeStandard, p.Mode)
	assert.Equal(t, []int{3}, p.Replenishments)
	assert.Equal(t, solver.Arrivals{None: 0.2, Premium: 0.4, Base: 0.4}, p.Arrivals)
	assert.Equal(t, solver.Distribution{{Value: 0, Prob: 0.5}, {Value: 2, Prob: 0.5}}, p.Premium)
	assert.Equal(t, solver.Distribution{{Value: 0, Prob: 0.5}, {Value: 2, Prob: 0.5}}, p.Base)
	assert.Equal(t, 4.0, p.Costs.EndShortage)

	_, err = BuildParams(sc, false)
	assert.ErrorIs(t, err, ErrFileSourceNotAllowed)

	s, err := solver.New(p)
	require.NoError(t, err)
	_, err = s.Solve()
	require.NoError(t, err)
}

func TestBuildParams_ModeHandling(t *testing.T) {
	sc := &domain.Scenario{
		Steps:   []int{1},
		Premium: domain.DistributionSource{Pairs: [][]float64{{1, 1}}},
		Base:    domain.DistributionSource{Pairs: [][]float64{{1, 1}}},
		Joint:   &domain.JointSource{Triples: [][]float64{{1, 1, 1}}},
	}

	p, err := BuildParams(sc, false)
	require.NoError(t, err)
	assert.Equal(t, solver.ModeJoint, p.Mode)
	assert.Equal(t, []int{}, p.Replenishments)
	assert.Equal(t, solver.JointDistribution{{Premium: 1, Base: 1, Prob: 1}}, p.Joint)

	sc.Mode = "mixed"
	_, err = BuildParams(sc, false)
	assert.ErrorIs(t, err, solver.ErrInvalidMode)
}

func TestFromViper(t *testing.T) {
	v := viper.New()
	v.Set("SERVER_PORT", "9090")
	v.Set("CACHE_ENABLED", true)
	v.Set("CACHE_RESULT_TTL_SECONDS", 10)
	v.Set("SOLVER_BATCH_WORKERS", 2)
	v.Set("STORAGE_BUCKET", "policies")

	cfg := fromViper(v)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 10, cfg.Cache.ResultTTLSeconds)
	assert.Equal(t, 2, cfg.Solver.BatchWorkers)
	assert.Equal(t, "policies", cfg.Storage.Bucket)
	assert.False(t, cfg.Database.Enabled)
}

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 4, cfg.Solver.BatchWorkers)
	assert.Equal(t, 4_000_000, cfg.Solver.MaxCells)
	assert.Equal(t, "policies", cfg.Storage.Prefix)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Cache.Enabled)
}
