package solver

import "fmt"

// Outcome is one point of a discrete demand distribution.
type Outcome struct {
	Value int     `json:"value"`
	Prob  float64 `json:"prob"`
}

// Distribution is an ordered list of demand outcomes. Probabilities are expected
// to sum to 1; that is the caller's contract and is not enforced here.
type Distribution []Outcome

// JointOutcome pairs a premium and a base demand realisation.
type JointOutcome struct {
	Premium int     `json:"premium"`
	Base    int     `json:"base"`
	Prob    float64 `json:"prob"`
}

type JointDistribution []JointOutcome

// Joint builds the cross product of two independent marginals. Every pair is kept
// as its own entry, premium-major, and equal pairs are never merged.
func Joint(premium, base Distribution) JointDistribution {
	out := make(JointDistribution, 0, len(premium)*len(base))
	for _, p := range premium {
		for _, b := range base {
			out = append(out, JointOutcome{
				Premium: p.Value,
				Base:    b.Value,
				Prob:    p.Prob * b.Prob,
			})
		}
	}
	return out
}

// Max returns the largest outcome value, or 0 for an empty distribution.
func (d Distribution) Max() int {
	best := 0
	for i, o := range d {
		if i == 0 || o.Value > best {
			best = o.Value
		}
	}
	return best
}

// TotalProb sums the probability mass.
func (d Distribution) TotalProb() float64 {
	total := 0.0
	for _, o := range d {
		total += o.Prob
	}
	return total
}

func (d Distribution) validate(name string) error {
	if len(d) == 0 {
		return fmt.Errorf("%w: %s distribution is empty", ErrInvalidDistribution, name)
	}
	for _, o := range d {
		if o.Value < 0 {
			return fmt.Errorf("%w: %s outcome %d is negative", ErrInvalidDistribution, name, o.Value)
		}
		if o.Prob < 0 {
			return fmt.Errorf("%w: %s outcome %d has negative probability", ErrInvalidDistribution, name, o.Value)
		}
	}
	return nil
}

// MaxTotal returns the largest premium+base outcome sum.
func (j JointDistribution) MaxTotal() int {
	best := 0
	for i, o := range j {
		if s := o.Premium + o.Base; i == 0 || s > best {
			best = s
		}
	}
	return best
}

// MaxBase returns the largest base outcome.
func (j JointDistribution) MaxBase() int {
	best := 0
	for i, o := range j {
		if i == 0 || o.Base > best {
			best = o.Base
		}
	}
	return best
}

func (j JointDistribution) TotalProb() float64 {
	total := 0.0
	for _, o := range j {
		total += o.Prob
	}
	return total
}

func (j JointDistribution) validate() error {
	if len(j) == 0 {
		return fmt.Errorf("%w: joint distribution is empty", ErrInvalidDistribution)
	}
	for _, o := range j {
		if o.Premium < 0 || o.Base < 0 {
			return fmt.Errorf("%w: joint outcome (%d, %d) is negative", ErrInvalidDistribution, o.Premium, o.Base)
		}
		if o.Prob < 0 {
			return fmt.Errorf("%w: joint outcome (%d, %d) has negative probability", ErrInvalidDistribution, o.Premium, o.Base)
		}
	}
	return nil
}
