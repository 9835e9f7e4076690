package solver

// expectPremium serves every premium outcome unconditionally.
func (s *Solver) expectPremium(st State, depth int) (float64, error) {
	var total float64
	for _, o := range s.params.Premium {
		c, err := s.stage(st.Period, st.Step+1, st.Inventory-o.Value, st.Backlog, depth)
		if err != nil {
			return 0, err
		}
		total += o.Prob * c
	}
	return total, nil
}

// expectBase chooses, per base outcome, between backlogging and serving from
// stock. The returned vector holds true where serving won.
func (s *Solver) expectBase(st State, depth int) (float64, []bool, error) {
	decision := make([]bool, len(s.params.Base))
	var total float64
	for k, o := range s.params.Base {
		c, served, err := s.resolveBase(st.Period, st.Step+1, st.Inventory, st.Backlog, o.Value, depth)
		if err != nil {
			return 0, nil, err
		}
		decision[k] = served
		total += o.Prob * c
	}
	return total, decision, nil
}

// expectJoint serves premium demand first and then resolves base demand against
// the remaining inventory, once per joint outcome.
func (s *Solver) expectJoint(st State, depth int) (float64, []bool, error) {
	decision := make([]bool, len(s.joint))
	var total float64
	for k, o := range s.joint {
		c, served, err := s.resolveBase(st.Period, st.Step+1, st.Inventory-o.Premium, st.Backlog, o.Base, depth)
		if err != nil {
			return 0, nil, err
		}
		decision[k] = served
		total += o.Prob * c
	}
	return total, decision, nil
}

// resolveBase returns the cheaper of backlogging y and serving it from n,
// landing at step t. Ties keep the full backlog.
func (s *Solver) resolveBase(i, t, n, m, y, depth int) (float64, bool, error) {
	backlog, err := s.stage(i, t, n, m+y, depth)
	if err != nil {
		return 0, false, err
	}
	served, short := fulfil(n, y)
	serve, err := s.stage(i, t, served, m+short, depth)
	if err != nil {
		return 0, false, err
	}
	if serve < backlog {
		return serve, true, nil
	}
	return backlog, false, nil
}
