package metrics

import (
	"math"

	"github.com/san-kum/gridmarch/internal/field"
)

// Energy is the mean over observed slices of ∫|u|² dV.
type Energy struct {
	name        string
	samples     int
	totalEnergy float64
}

func NewEnergy() *Energy {
	return &Energy{name: "energy"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(_ int, values []field.Sample, cell float64) {
	e.totalEnergy += sumSquares(values) * cell
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}

// EnergyDrift is the largest relative change of ∫|u|² dV against the first
// observed slice. A unitary scheme keeps it near zero.
type EnergyDrift struct {
	name          string
	initialEnergy float64
	currentEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(_ int, values []field.Sample, cell float64) {
	energy := sumSquares(values) * cell

	if e.samples == 0 {
		e.initialEnergy = energy
	}

	e.currentEnergy = energy
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.currentEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}

// Mass tracks ∫Re(u₀) dV of the latest slice.
type Mass struct {
	name    string
	current float64
}

func NewMass() *Mass {
	return &Mass{name: "mass"}
}

func (m *Mass) Name() string { return m.name }

func (m *Mass) Observe(_ int, values []field.Sample, cell float64) {
	sum := 0.0
	for _, v := range values {
		if len(v) > 0 {
			sum += real(v[0])
		}
	}
	m.current = sum * cell
}

func (m *Mass) Value() float64 { return m.current }

func (m *Mass) Reset() { m.current = 0 }
