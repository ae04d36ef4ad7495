package engine

import (
	"fmt"
	"math"
)

// TransferFunction turns one converted temperature sample into the degree
// days it adds for that timestep. NaN in gives NaN out.
type TransferFunction interface {
	Contribution(temp float64) float64
	String() string
}

// Threshold is the fixed-point form: max(0, temp - Value).
type Threshold struct {
	Value float64
}

func (t Threshold) Contribution(temp float64) float64 {
	return math.Max(0, temp-t.Value)
}

func (t Threshold) String() string {
	return fmt.Sprintf("threshold(%g)", t.Value)
}

// Range is the clamped form: max(0, min(temp, Max) - Min), with temp already
// converted to Unit.
type Range struct {
	Min  float64
	Max  float64
	Unit string
}

func (r Range) Contribution(temp float64) float64 {
	return math.Max(0, math.Min(temp, r.Max)-r.Min)
}

func (r Range) String() string {
	return fmt.Sprintf("range(%g..%g %s)", r.Min, r.Max, r.Unit)
}
