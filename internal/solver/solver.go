package solver

import (
	"fmt"
	"math"
	"strings"
)

// Mode selects how mid-period demand is evaluated.
type Mode string

const (
	// ModeStandard weights a no-order step, a premium arrival and a base arrival
	// by fixed probabilities.
	ModeStandard Mode = "standard"
	// ModeJoint resolves premium and base demand together from one joint distribution.
	ModeJoint Mode = "joint"
)

// ParseMode is case-insensitive.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeStandard:
		return ModeStandard, nil
	case ModeJoint:
		return ModeJoint, nil
	}
	return "", fmt.Errorf("%w: got %q", ErrInvalidMode, s)
}

// Arrivals are the per-step event probabilities used in standard mode.
type Arrivals struct {
	None    float64 `json:"pi_0"`
	Premium float64 `json:"pi_p"`
	Base    float64 `json:"pi_b"`
}

// Costs are linear per-unit rates.
type Costs struct {
	Holding         float64 `json:"h"`
	PremiumShortage float64 `json:"c_p"`
	BaseBacklog     float64 `json:"c_b"`
	EndShortage     float64 `json:"s_p"`
	Salvage         float64 `json:"salvage"`
}

// Params are the construction inputs of a Solver.
type Params struct {
	// Steps holds T[i], the number of time steps of macro-period i.
	Steps []int
	// Replenishments holds Q[i], delivered at the end of period i. One shorter than Steps.
	Replenishments   []int
	InitialInventory int
	Arrivals         Arrivals
	Premium          Distribution
	Base             Distribution
	// Joint is built from Premium and Base when left nil.
	Joint JointDistribution
	Costs Costs
	Mode  Mode
}

// Solver evaluates the finite-horizon cost-to-go with memoised recursion.
// A Solver owns its memo tables and must not be shared between goroutines.
type Solver struct {
	params   Params
	joint    JointDistribution
	bounds   Bounds
	maxDepth int
	memo     *Memo
}

// New validates p, sizes the state space and allocates the memo tables.
func New(p Params) (*Solver, error) {
	p, err := prepare(p)
	if err != nil {
		return nil, err
	}

	b, err := sizeBounds(p)
	if err != nil {
		return nil, err
	}
	return &Solver{
		params:   p,
		joint:    p.Joint,
		bounds:   b,
		maxDepth: sum(p.Steps) + len(p.Steps),
		memo:     NewMemo(b),
	}, nil
}

// Plan validates p and returns the table dimensions New would allocate.
func Plan(p Params) (Bounds, error) {
	p, err := prepare(p)
	if err != nil {
		return Bounds{}, err
	}
	return sizeBounds(p)
}

// prepare validates p and returns a private copy with the joint distribution
// resolved.
func prepare(p Params) (Params, error) {
	if p.Mode != ModeStandard && p.Mode != ModeJoint {
		return p, fmt.Errorf("%w: got %q", ErrInvalidMode, p.Mode)
	}
	if len(p.Steps) == 0 {
		return p, fmt.Errorf("%w: at least one period is required", ErrInvalidHorizon)
	}
	if len(p.Steps) != len(p.Replenishments)+1 {
		return p, fmt.Errorf("%w: len(T)=%d, len(Q)=%d", ErrHorizonMismatch, len(p.Steps), len(p.Replenishments))
	}
	for i, t := range p.Steps {
		if t < 0 {
			return p, fmt.Errorf("%w: T[%d]=%d is negative", ErrInvalidHorizon, i, t)
		}
	}
	for i, q := range p.Replenishments {
		if q < 0 {
			return p, fmt.Errorf("%w: Q[%d]=%d is negative", ErrInvalidHorizon, i, q)
		}
	}

	p.Steps = append([]int(nil), p.Steps...)
	p.Replenishments = append([]int(nil), p.Replenishments...)
	p.Premium = append(Distribution(nil), p.Premium...)
	p.Base = append(Distribution(nil), p.Base...)

	joint := p.Joint
	switch p.Mode {
	case ModeStandard:
		if err := p.Premium.validate("premium"); err != nil {
			return p, err
		}
		if err := p.Base.validate("base"); err != nil {
			return p, err
		}
		if joint == nil {
			joint = Joint(p.Premium, p.Base)
		}
	case ModeJoint:
		if joint == nil {
			if err := p.Premium.validate("premium"); err != nil {
				return p, err
			}
			if err := p.Base.validate("base"); err != nil {
				return p, err
			}
			joint = Joint(p.Premium, p.Base)
		}
		if err := joint.validate(); err != nil {
			return p, err
		}
	}
	p.Joint = append(JointDistribution(nil), joint...)
	return p, nil
}

// MaxCells is the largest table New will allocate, independent of any limit a
// caller applies on top.
const MaxCells = math.MaxInt32

// sizeBounds derives the table dimensions. Inventory can drop by at most one
// step's worst demand per step and can only rise through replenishment. Backlog
// grows by at most one step's largest base order per step. Both rules follow the
// distribution the active mode actually draws from. Every product is checked,
// so huge horizons or outcomes fail here instead of in make.
func sizeBounds(p Params) (Bounds, error) {
	tooLarge := func(what string) (Bounds, error) {
		return Bounds{}, fmt.Errorf("%w: state space too large (%s overflows)", ErrInvalidHorizon, what)
	}

	steps, ok := checkedSum(p.Steps)
	if !ok {
		return tooLarge("sum(T)")
	}
	replenished, ok := checkedSum(p.Replenishments)
	if !ok {
		return tooLarge("sum(Q)")
	}
	maxT := 0
	for _, t := range p.Steps {
		maxT = max(maxT, t)
	}

	var drop, baseMax int
	if p.Mode == ModeJoint {
		drop = p.Joint.MaxTotal()
		baseMax = p.Joint.MaxBase()
	} else {
		drop = max(p.Premium.Max(), p.Base.Max())
		baseMax = p.Base.Max()
	}

	fall, ok := checkedMul(drop, steps)
	if !ok {
		return tooLarge("inventory drop")
	}
	backlog, ok := checkedMul(baseMax, steps)
	if !ok {
		return tooLarge("backlog")
	}
	minInv, ok := checkedAdd(p.InitialInventory, -fall)
	if !ok {
		return tooLarge("minimum inventory")
	}
	maxInv, ok := checkedAdd(p.InitialInventory, replenished)
	if !ok {
		return tooLarge("maximum inventory")
	}

	stepLevels, ok := checkedAdd(maxT, 1)
	if !ok {
		return tooLarge("steps")
	}
	span, ok := checkedAdd(maxInv, -minInv)
	if !ok {
		return tooLarge("inventory range")
	}
	invLevels, ok := checkedAdd(span, 1)
	if !ok {
		return tooLarge("inventory range")
	}
	backlogLevels, ok := checkedAdd(backlog, 1)
	if !ok {
		return tooLarge("backlog")
	}

	cells := 1
	for _, dim := range []int{len(p.Steps), stepLevels, invLevels, backlogLevels} {
		if cells, ok = checkedMul(cells, dim); !ok || cells > MaxCells {
			return tooLarge("table size")
		}
	}

	return Bounds{
		Periods:      len(p.Steps),
		Steps:        stepLevels,
		MinInventory: minInv,
		MaxInventory: maxInv,
		MaxBacklog:   backlog,
	}, nil
}

func checkedAdd(a, b int) (int, bool) {
	c := a + b
	if (b > 0 && c < a) || (b < 0 && c > a) {
		return 0, false
	}
	return c, true
}

func checkedMul(a, b int) (int, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt) || (b == -1 && a == math.MinInt) {
		return 0, false
	}
	return c, true
}

func checkedSum(xs []int) (int, bool) {
	total := 0
	for _, x := range xs {
		var ok bool
		if total, ok = checkedAdd(total, x); !ok {
			return 0, false
		}
	}
	return total, true
}

func (s *Solver) Bounds() Bounds { return s.bounds }

// MaxDepth bounds the recursion: sum(T) + len(T).
func (s *Solver) MaxDepth() int { return s.maxDepth }

func (s *Solver) Mode() Mode { return s.params.Mode }

// JointDistribution returns the joint distribution in use.
func (s *Solver) JointDistribution() JointDistribution {
	return append(JointDistribution(nil), s.joint...)
}

// Root is the state (0, 0, n_init, 0).
func (s *Solver) Root() State {
	return State{Inventory: s.params.InitialInventory}
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}
