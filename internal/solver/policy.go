package solver

// Choice is the fulfilment decision for one demand outcome at a state.
type Choice struct {
	Premium int     `json:"premium"`
	Base    int     `json:"base"`
	Prob    float64 `json:"prob"`
	Fulfill bool    `json:"fulfill"`
}

// PolicyEntry is the recorded decision vector of one state, expanded against
// the outcomes it was computed over.
type PolicyEntry struct {
	State   State    `json:"state"`
	Value   float64  `json:"value"`
	Choices []Choice `json:"choices"`
}

// StateValue is one computed cell of the value table.
type StateValue struct {
	State State   `json:"state"`
	Value float64 `json:"value"`
}

// Stats summarises the memo tables.
type Stats struct {
	States    int `json:"states"`
	Decisions int `json:"decisions"`
	Cells     int `json:"cells"`
	MaxDepth  int `json:"max_depth"`
}

// Decision returns the decision vector recorded for st. In standard mode it is
// indexed like the base distribution, in joint mode like the joint distribution.
func (s *Solver) Decision(st State) ([]bool, bool, error) {
	d, ok, err := s.memo.Decision(st)
	if err != nil || !ok {
		return nil, ok, err
	}
	return append([]bool(nil), d...), true, nil
}

// Policy lists every recorded decision ordered by (i, t, n, m).
func (s *Solver) Policy() []PolicyEntry {
	var out []PolicyEntry
	s.memo.Each(func(st State, v float64, d []bool) {
		if d == nil {
			return
		}
		out = append(out, PolicyEntry{State: st, Value: v, Choices: s.choices(d)})
	})
	return out
}

func (s *Solver) choices(d []bool) []Choice {
	out := make([]Choice, len(d))
	for k, served := range d {
		if s.params.Mode == ModeJoint {
			o := s.joint[k]
			out[k] = Choice{Premium: o.Premium, Base: o.Base, Prob: o.Prob, Fulfill: served}
			continue
		}
		o := s.params.Base[k]
		out[k] = Choice{Base: o.Value, Prob: o.Prob, Fulfill: served}
	}
	return out
}

// ValueTable lists every computed state ordered by (i, t, n, m).
func (s *Solver) ValueTable() []StateValue {
	out := make([]StateValue, 0, s.memo.Len())
	s.memo.Each(func(st State, v float64, _ []bool) {
		out = append(out, StateValue{State: st, Value: v})
	})
	return out
}

func (s *Solver) Stats() Stats {
	decisions := 0
	s.memo.Each(func(_ State, _ float64, d []bool) {
		if d != nil {
			decisions++
		}
	})
	return Stats{
		States:    s.memo.Len(),
		Decisions: decisions,
		Cells:     s.bounds.Size(),
		MaxDepth:  s.maxDepth,
	}
}
