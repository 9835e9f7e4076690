package solver

import "fmt"

// State is a point (i, t, n, m) of the value function.
type State struct {
	Period    int `json:"period"`
	Step      int `json:"step"`
	Inventory int `json:"inventory"`
	Backlog   int `json:"backlog"`
}

func (s State) String() string {
	return fmt.Sprintf("(i=%d, t=%d, n=%d, m=%d)", s.Period, s.Step, s.Inventory, s.Backlog)
}

// Bounds are the table dimensions fixed at construction time.
type Bounds struct {
	Periods      int `json:"periods"`
	Steps        int `json:"steps"`
	MinInventory int `json:"min_inventory"`
	MaxInventory int `json:"max_inventory"`
	MaxBacklog   int `json:"max_backlog"`
}

func (b Bounds) InventoryLevels() int { return b.MaxInventory - b.MinInventory + 1 }

func (b Bounds) BacklogLevels() int { return b.MaxBacklog + 1 }

// Size is the number of cells in each table.
func (b Bounds) Size() int {
	return b.Periods * b.Steps * b.InventoryLevels() * b.BacklogLevels()
}

// Memo holds the cost-to-go values and the decision vectors of every visited
// state in two flat arrays sharing one index. A cell is written once and never
// mutated afterwards. Not safe for concurrent use.
type Memo struct {
	bounds    Bounds
	values    []float64
	filled    []bool
	decisions [][]bool
	count     int
}

// NewMemo allocates both tables with the full dimensions of b.
func NewMemo(b Bounds) *Memo {
	size := b.Size()
	return &Memo{
		bounds:    b,
		values:    make([]float64, size),
		filled:    make([]bool, size),
		decisions: make([][]bool, size),
	}
}

func (m *Memo) Bounds() Bounds { return m.bounds }

// index maps a state to ((i*numT + t)*numN + (n-minN))*numM + m.
func (m *Memo) index(s State) (int, error) {
	b := m.bounds
	switch {
	case s.Period < 0 || s.Period >= b.Periods:
		return 0, &RangeError{State: s, Field: "period", Min: 0, Max: b.Periods - 1}
	case s.Step < 0 || s.Step >= b.Steps:
		return 0, &RangeError{State: s, Field: "step", Min: 0, Max: b.Steps - 1}
	case s.Inventory < b.MinInventory || s.Inventory > b.MaxInventory:
		return 0, &RangeError{State: s, Field: "inventory", Min: b.MinInventory, Max: b.MaxInventory}
	case s.Backlog < 0 || s.Backlog > b.MaxBacklog:
		return 0, &RangeError{State: s, Field: "backlog", Min: 0, Max: b.MaxBacklog}
	}
	idx := (s.Period*b.Steps + s.Step)
	idx = idx*b.InventoryLevels() + (s.Inventory - b.MinInventory)
	idx = idx*b.BacklogLevels() + s.Backlog
	return idx, nil
}

func (m *Memo) state(idx int) State {
	b := m.bounds
	backlog := idx % b.BacklogLevels()
	idx /= b.BacklogLevels()
	inv := idx%b.InventoryLevels() + b.MinInventory
	idx /= b.InventoryLevels()
	return State{Period: idx / b.Steps, Step: idx % b.Steps, Inventory: inv, Backlog: backlog}
}

// Get returns the stored value and whether the state has been computed.
func (m *Memo) Get(s State) (float64, bool, error) {
	idx, err := m.index(s)
	if err != nil {
		return 0, false, err
	}
	if !m.filled[idx] {
		return 0, false, nil
	}
	return m.values[idx], true, nil
}

func (m *Memo) Set(s State, v float64) error {
	idx, err := m.index(s)
	if err != nil {
		return err
	}
	if !m.filled[idx] {
		m.count++
	}
	m.values[idx] = v
	m.filled[idx] = true
	return nil
}

// Decision returns the decision vector recorded for s, if any.
func (m *Memo) Decision(s State) ([]bool, bool, error) {
	idx, err := m.index(s)
	if err != nil {
		return nil, false, err
	}
	d := m.decisions[idx]
	return d, d != nil, nil
}

func (m *Memo) SetDecision(s State, d []bool) error {
	idx, err := m.index(s)
	if err != nil {
		return err
	}
	if d == nil {
		d = []bool{}
	}
	m.decisions[idx] = d
	return nil
}

// Len is the number of computed states.
func (m *Memo) Len() int { return m.count }

// Each visits every computed state in index order.
func (m *Memo) Each(fn func(s State, v float64, decision []bool)) {
	for idx, ok := range m.filled {
		if ok {
			fn(m.state(idx), m.values[idx], m.decisions[idx])
		}
	}
}
