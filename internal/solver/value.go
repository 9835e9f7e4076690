package solver

import "fmt"

// Solve returns the cost-to-go of the root state.
func (s *Solver) Solve() (float64, error) {
	return s.Value(s.Root())
}

// Value returns V(i, t, n, m). Coordinates outside the sized state space fail
// with an error wrapping ErrOutOfRange.
func (s *Solver) Value(st State) (float64, error) {
	if st.Period >= 0 && st.Period < len(s.params.Steps) && st.Step > s.params.Steps[st.Period] {
		return 0, &RangeError{State: st, Field: "step", Min: 0, Max: s.params.Steps[st.Period]}
	}
	return s.value(st, 0)
}

func (s *Solver) value(st State, depth int) (float64, error) {
	if depth > s.maxDepth {
		return 0, fmt.Errorf("%w: depth %d at %s", ErrDepthExceeded, depth, st)
	}

	v, ok, err := s.memo.Get(st)
	if err != nil {
		return 0, err
	}
	if ok {
		return v, nil
	}

	var decision []bool
	last := len(s.params.Steps) - 1

	switch {
	case st.Step < s.params.Steps[st.Period]:
		v, decision, err = s.midPeriod(st, depth)
	case st.Period == last:
		v = s.terminal(st.Inventory, st.Backlog)
	default:
		n, m := replenish(st.Inventory, s.params.Replenishments[st.Period], st.Backlog)
		v, err = s.value(State{Period: st.Period + 1, Step: 0, Inventory: n, Backlog: m}, depth+1)
	}
	if err != nil {
		return 0, err
	}

	if decision != nil {
		if err := s.memo.SetDecision(st, decision); err != nil {
			return 0, err
		}
	}
	if err := s.memo.Set(st, v); err != nil {
		return 0, err
	}
	return v, nil
}

func (s *Solver) midPeriod(st State, depth int) (float64, []bool, error) {
	if s.params.Mode == ModeJoint {
		return s.expectJoint(st, depth)
	}

	a := s.params.Arrivals
	idle, err := s.stage(st.Period, st.Step+1, st.Inventory, st.Backlog, depth)
	if err != nil {
		return 0, nil, err
	}
	premium, err := s.expectPremium(st, depth)
	if err != nil {
		return 0, nil, err
	}
	base, decision, err := s.expectBase(st, depth)
	if err != nil {
		return 0, nil, err
	}
	return a.None*idle + a.Premium*premium + a.Base*base, decision, nil
}

// terminal nets outstanding base backlog against what is left on hand.
func (s *Solver) terminal(n, m int) float64 {
	c := s.params.Costs
	return c.EndShortage*float64(max(0, m-n)) + c.Salvage*float64(max(0, n-m))
}

// stage is the cost of landing in (i, t, n, m): V there plus the step cost
// charged at the landing inventory and backlog.
func (s *Solver) stage(i, t, n, m, depth int) (float64, error) {
	v, err := s.value(State{Period: i, Step: t, Inventory: n, Backlog: m}, depth+1)
	if err != nil {
		return 0, err
	}
	return v + s.stepCost(n, m), nil
}

func (s *Solver) stepCost(n, m int) float64 {
	c := s.params.Costs
	return c.Holding*float64(max(0, n)) +
		c.PremiumShortage*float64(max(0, -n)) +
		c.BaseBacklog*float64(m)
}

// replenish applies delivery q at a period boundary. Incoming stock repays
// backlog first; a delivery that does not lift inventory above zero leaves the
// backlog untouched.
func replenish(n, q, m int) (int, int) {
	if n+q <= 0 {
		return n + q, m
	}
	return max(0, n+q-m), max(0, m-n-q)
}

// fulfil serves base demand y from inventory n and returns the new inventory and
// the part of y that must still be backlogged. Nothing is served from stock that
// is already short.
func fulfil(n, y int) (int, int) {
	if n > 0 {
		return max(0, n-y), max(0, y-n)
	}
	return n, y
}
