package cosmod

import (
	"math"
	"testing"
	"time"

	"github.com/gonum/matrix/mat64"
)

func TestNavPropagatorTwoBody(t *testing.T) {
	cosm := testCosm(t)
	eme2000 := cosm.Frame("EME2000")
	orbit := NewOrbitKeplerian(22000, 0.01, 30, 80, 40, 0, testEpoch, eme2000)
	step := 10 * time.Second
	duration := time.Hour

	prop := NewNavPropagator("test", orbit, step)
	steps := int(duration/step) + 2
	rx := make(chan NavState, steps)
	prop.PropagateUntil(testEpoch.Add(duration), rx)

	var states []NavState
	for state := range rx {
		states = append(states, state)
	}
	if len(states) != int(duration/step) {
		t.Fatalf("expected %d steps, got %d", int(duration/step), len(states))
	}
	// Epochs advance by exactly one step.
	for i, state := range states {
		expected := testEpoch.Add(time.Duration(i+1) * step)
		if !state.Orbit.DT.Equal(expected) {
			t.Fatalf("unexpected epoch at step %d: %s", i, state.Orbit.DT)
		}
	}
	// Two body propagation conserves the energy.
	last := states[len(states)-1].Orbit
	if math.Abs(last.Energy()-orbit.Energy())/math.Abs(orbit.Energy()) > 1e-9 {
		t.Fatalf("energy not conserved: %f vs %f", last.Energy(), orbit.Energy())
	}

	// Reset restores the initial conditions.
	prop.Reset()
	if !vectorsEqual(prop.Orbit.Vector(), orbit.Vector()) || !prop.Epoch().Equal(testEpoch) {
		t.Fatal("Reset did not restore the initial orbit")
	}
}

// TestNavPropagatorSTM propagates a perturbed orbit alongside the nominal one and
// verifies that the chained per-step STMs map the initial deviation onto the final one.
func TestNavPropagatorSTM(t *testing.T) {
	cosm := testCosm(t)
	eme2000 := cosm.Frame("EME2000")
	nominal := NewOrbitKeplerian(22000, 0.01, 30, 80, 40, 0, testEpoch, eme2000)
	δ0 := mat64.NewVector(6, []float64{1e-3, 0, 0, 0, 1e-6, 0})
	perturbed := NewOrbitCartesian(nominal.X+δ0.At(0, 0), nominal.Y, nominal.Z,
		nominal.VX, nominal.VY+δ0.At(4, 0), nominal.VZ, testEpoch, eme2000)

	step := 10 * time.Second
	numSteps := 100
	endDT := testEpoch.Add(time.Duration(numSteps) * step)

	run := func(o Orbit) ([]NavState, Orbit) {
		prop := NewNavPropagator("stm", o, step)
		rx := make(chan NavState, numSteps+2)
		prop.PropagateUntil(endDT, rx)
		var states []NavState
		for state := range rx {
			states = append(states, state)
		}
		return states, states[len(states)-1].Orbit
	}
	nomStates, nomFinal := run(nominal)
	_, pertFinal := run(perturbed)

	// Chain the per-step STMs into the cumulative one.
	cumΦ := DenseIdentity(6)
	for _, state := range nomStates {
		var next mat64.Dense
		next.Mul(state.Φ, cumΦ)
		cumΦ = &next
	}
	mapped := mat64.NewVector(6, nil)
	mapped.MulVec(cumΦ, δ0)

	truthDiff := pertFinal.Sub(nomFinal)
	for i, val := range truthDiff.Vector() {
		if math.Abs(mapped.At(i, 0)-val) > 1e-6 {
			t.Fatalf("STM mapping fail on component %d: %e vs %e", i, mapped.At(i, 0), val)
		}
	}
}

func TestNavPropagatorRecenter(t *testing.T) {
	cosm := testCosm(t)
	eme2000 := cosm.Frame("EME2000")
	orbit := NewOrbitKeplerian(22000, 0.01, 30, 80, 40, 0, testEpoch, eme2000)
	prop := NewNavPropagator("recenter", orbit, 10*time.Second)

	other := NewOrbitKeplerian(24000, 0.02, 31, 80, 40, 0, testEpoch, eme2000)
	prop.Recenter(other)
	if !vectorsEqual(prop.Orbit.Vector(), other.Vector()) {
		t.Fatal("Recenter did not rebase the orbit")
	}
	prop.Reset()
	if !vectorsEqual(prop.Orbit.Vector(), other.Vector()) {
		t.Fatal("Reset after Recenter must restore the rebased orbit")
	}
}
