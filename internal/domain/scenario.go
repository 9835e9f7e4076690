// backend-go/internal/domain/scenario.go
package domain

import (
	"time"

	"github.com/andresuchdata/autopo-dp/backend-go/internal/solver"
)

// DistributionSource is either inline [outcome, probability] pairs or a CSV/XLSX file.
type DistributionSource struct {
	Pairs [][]float64 `json:"pairs,omitempty" mapstructure:"pairs"`
	File  string      `json:"file,omitempty" mapstructure:"file"`
}

// JointSource is either inline [premium, base, probability] triples or a file.
type JointSource struct {
	Triples [][]float64 `json:"triples,omitempty" mapstructure:"triples"`
	File    string      `json:"file,omitempty" mapstructure:"file"`
}

// Arrivals holds pi_0, pi_p and pi_b.
type Arrivals struct {
	None    float64 `json:"pi_0" mapstructure:"pi_0"`
	Premium float64 `json:"pi_p" mapstructure:"pi_p"`
	Base    float64 `json:"pi_b" mapstructure:"pi_b"`
}

type Costs struct {
	Holding         float64 `json:"h" mapstructure:"h"`
	PremiumShortage float64 `json:"c_p" mapstructure:"c_p"`
	BaseBacklog     float64 `json:"c_b" mapstructure:"c_b"`
	EndShortage     float64 `json:"s_p" mapstructure:"s_p"`
	Salvage         float64 `json:"salvage" mapstructure:"salvage"`
}

// Scenario is the user-facing description of one inventory problem.
type Scenario struct {
	Name             string             `json:"name" mapstructure:"name"`
	Mode             string             `json:"mode" mapstructure:"mode"`
	Steps            []int              `json:"steps" mapstructure:"steps"`
	Replenishments   []int              `json:"replenishments" mapstructure:"replenishments"`
	InitialInventory int                `json:"initial_inventory" mapstructure:"initial_inventory"`
	Arrivals         Arrivals           `json:"arrivals" mapstructure:"arrivals"`
	Premium          DistributionSource `json:"premium" mapstructure:"premium"`
	Base             DistributionSource `json:"base" mapstructure:"base"`
	Joint            *JointSource       `json:"joint,omitempty" mapstructure:"joint"`
	Costs            Costs              `json:"costs" mapstructure:"costs"`
	IncludePolicy    bool               `json:"include_policy" mapstructure:"include_policy"`
}

// SolveResult is what a solve run produces and what gets cached and persisted.
type SolveResult struct {
	RunID        string               `json:"run_id" db:"id"`
	ScenarioName string               `json:"scenario_name" db:"scenario_name"`
	ScenarioHash string               `json:"scenario_hash" db:"scenario_hash"`
	Mode         string               `json:"mode" db:"mode"`
	Value        float64              `json:"value" db:"root_value"`
	Bounds       solver.Bounds        `json:"bounds" db:"-"`
	Stats        solver.Stats         `json:"stats" db:"-"`
	Policy       []solver.PolicyEntry `json:"policy,omitempty" db:"-"`
	DurationMs   int64                `json:"duration_ms" db:"duration_ms"`
	ExportKey    string               `json:"export_key,omitempty" db:"export_key"`
	Cached       bool                 `json:"cached" db:"-"`
	CreatedAt    time.Time            `json:"created_at" db:"created_at"`
}

// RunSummary is a persisted solve run as listed by the API.
type RunSummary struct {
	ID           string    `json:"id" db:"id"`
	ScenarioName string    `json:"scenario_name" db:"scenario_name"`
	ScenarioHash string    `json:"scenario_hash" db:"scenario_hash"`
	Mode         string    `json:"mode" db:"mode"`
	RootValue    float64   `json:"root_value" db:"root_value"`
	States       int       `json:"states" db:"states"`
	Decisions    int       `json:"decisions" db:"decisions"`
	DurationMs   int64     `json:"duration_ms" db:"duration_ms"`
	ExportKey    string    `json:"export_key" db:"export_key"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// RunFilter narrows run listings.
type RunFilter struct {
	ScenarioHash string `json:"scenario_hash"`
	Mode         string `json:"mode"`
	Limit        int    `json:"limit"`
}
