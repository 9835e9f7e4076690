package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/andresuchdata/autopo-dp/backend-go/internal/demand"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-dp/backend-go/internal/solver"
	"github.com/spf13/viper"
)

var ErrFileSourceNotAllowed = errors.New("file distribution sources are not allowed here")

// LoadScenario reads a scenario document (yaml, json or toml by extension).
// Relative distribution file paths are resolved against the document's directory.
func LoadScenario(path string) (*domain.Scenario, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("mode", string(solver.ModeJoint))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}

	var sc domain.Scenario
	if err := v.Unmarshal(&sc); err != nil {
		return nil, fmt.Errorf("failed to decode scenario %s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = filepath.Base(path)
	}

	dir := filepath.Dir(path)
	sc.Premium.File = resolve(dir, sc.Premium.File)
	sc.Base.File = resolve(dir, sc.Base.File)
	if sc.Joint != nil {
		sc.Joint.File = resolve(dir, sc.Joint.File)
	}
	return &sc, nil
}

func resolve(dir, file string) string {
	if file == "" || filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(dir, file)
}

// BuildParams turns a scenario into solver inputs. An empty mode means joint.
// When allowFiles is false, any file source is rejected.
func BuildParams(sc *domain.Scenario, allowFiles bool) (solver.Params, error) {
	raw := sc.Mode
	if raw == "" {
		raw = string(solver.ModeJoint)
	}
	mode, err := solver.ParseMode(raw)
	if err != nil {
		return solver.Params{}, err
	}

	p := solver.Params{
		Steps:            sc.Steps,
		Replenishments:   sc.Replenishments,
		InitialInventory: sc.InitialInventory,
		Arrivals: solver.Arrivals{
			None:    sc.Arrivals.None,
			Premium: sc.Arrivals.Premium,
			Base:    sc.Arrivals.Base,
		},
		Costs: solver.Costs{
			Holding:         sc.Costs.Holding,
			PremiumShortage: sc.Costs.PremiumShortage,
			BaseBacklog:     sc.Costs.BaseBacklog,
			EndShortage:     sc.Costs.EndShortage,
			Salvage:         sc.Costs.Salvage,
		},
		Mode: mode,
	}
	if p.Replenishments == nil {
		p.Replenishments = []int{}
	}

	if p.Premium, err = distribution(sc.Premium, allowFiles); err != nil {
		return solver.Params{}, fmt.Errorf("premium: %w", err)
	}
	if p.Base, err = distribution(sc.Base, allowFiles); err != nil {
		return solver.Params{}, fmt.Errorf("base: %w", err)
	}
	if sc.Joint != nil {
		if p.Joint, err = joint(*sc.Joint, allowFiles); err != nil {
			return solver.Params{}, fmt.Errorf("joint: %w", err)
		}
	}
	return p, nil
}

func distribution(src domain.DistributionSource, allowFiles bool) (solver.Distribution, error) {
	if src.File != "" {
		if !allowFiles {
			return nil, ErrFileSourceNotAllowed
		}
		return demand.LoadDistribution(src.File)
	}
	if len(src.Pairs) == 0 {
		return nil, nil
	}
	return demand.FromPairs(src.Pairs)
}

func joint(src domain.JointSource, allowFiles bool) (solver.JointDistribution, error) {
	if src.File != "" {
		if !allowFiles {
			return nil, ErrFileSourceNotAllowed
		}
		return demand.LoadJoint(src.File)
	}
	if len(src.Triples) == 0 {
		return nil, nil
	}
	return demand.JointFromTriples(src.Triples)
}
